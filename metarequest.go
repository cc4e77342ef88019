package s3transfer

import (
	"net/http"
	"sync"
)

// MetaRequestType distinguishes the concrete variants for admission-
// control purposes. Only AutoRangedPut is implemented here; Get and
// Default are named so the shared contract below has somewhere to point,
// per the collaborator boundary this engine draws around itself.
type MetaRequestType int

const (
	MetaRequestTypeDefault MetaRequestType = iota
	MetaRequestTypePut
	MetaRequestTypeGet
)

// UpdateFlags are scheduler hints passed into Update.
type UpdateFlags int

const (
	UpdateFlagsNone UpdateFlags = 0
	// UpdateFlagConservative instructs a meta-request to refrain from
	// emitting new work when the queue is already long enough.
	UpdateFlagConservative UpdateFlags = 1 << 0
)

// FinishResult is the terminal outcome of a meta-request, captured once
// and never overwritten.
type FinishResult struct {
	Err            error
	FailedRequest  *Request
	ResponseStatus int
}

// ProgressCallback is invoked as body bytes become available, in
// increasing part-number order.
type ProgressCallback func(partNum int, data []byte)

// HeadersCallback is invoked once the final user-facing response headers
// are known.
type HeadersCallback func(status int, headers http.Header)

// FinishCallback is invoked exactly once, when the meta-request reaches
// a terminal state.
type FinishCallback func(result FinishResult)

// MetaRequest is the scheduler's view of a logical transfer: the
// polymorphic contract every variant (AutoRangedPut here; AutoRangedGet
// and Default are out of scope) implements.
type MetaRequest interface {
	// Update asks the variant to produce its next unit of work. It must
	// either return a Request to prepare and send, or report that no
	// more work is currently available. Called under no lock held by
	// the caller; implementations take their own lock internally.
	Update(flags UpdateFlags) (req *Request, hasWork bool)

	// PrepareRequest serializes body bytes and finishes composing the
	// HTTP message for req. Runs off the meta-request lock, on a
	// goroutine the scheduler starts per request (prepareAndQueue), not
	// on the process-work goroutine.
	PrepareRequest(req *Request) error

	// SignRequest is a per-variant signing hook. The scheduler does not
	// call it: outgoing requests are signed by the Client's Signer in
	// sendOnEndpoint. metaRequestBase.SignRequest is a no-op default.
	SignRequest(req *Request) error

	// FinishedRequest is invoked off-lock when the HTTP layer reports a
	// request's completion (success, or terminal failure after
	// retries). It must acquire its own lock to mutate phase counters.
	FinishedRequest(req *Request, err error)

	// Finish is invoked exactly once when the meta-request has reached
	// a terminal state.
	Finish()

	// Pause attempts to serialize a resume token. ok is false if the
	// meta-request has not reached a pausable state.
	Pause() (token []byte, ok bool)

	// Destroy releases any resources (connections, endpoint refs) held
	// by the variant. Called after Finish.
	Destroy()

	// requestType reports the admission-control bucket this
	// meta-request belongs to.
	requestType() MetaRequestType
}

// metaRequestBase holds the state and locking shared by every
// MetaRequest variant: the finish result, the body-delivery priority
// queue, backpressure bookkeeping, and user callbacks. Variants embed
// this and add their own protocol-phase state on top.
type metaRequestBase struct {
	mu sync.Mutex

	client *Client

	checksumAlgorithm ChecksumAlgorithm
	contentMD5Enabled bool

	onProgress ProgressCallback
	onHeaders  HeadersCallback
	onFinish   FinishCallback

	finishResult   *FinishResult
	finishDispatch bool

	body          *bodyQueue
	nextDelivered int

	// releaseBody, if set, reclaims a chunk's buffer once it has actually
	// been drained in order and handed to onProgress — not merely
	// enqueued, since an out-of-order chunk can sit in body for a while
	// with nothing else referencing its backing array.
	releaseBody func([]byte)

	// backpressureWindow and queuedBytes are not read or updated by
	// deliverBody or any variant; delivery is not metered by a window.
	backpressureWindow int64
	queuedBytes        int64
}

// setFailSynced records a terminal failure under the lock, first-write-
// wins. Returns true if this call was the one that set it.
func (b *metaRequestBase) setFailSynced(err error, failedReq *Request, status int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setFailLocked(err, failedReq, status)
}

func (b *metaRequestBase) setFailLocked(err error, failedReq *Request, status int) bool {
	if b.finishResult != nil {
		return false
	}
	b.finishResult = &FinishResult{Err: err, FailedRequest: failedReq, ResponseStatus: status}
	return true
}

func (b *metaRequestBase) setSuccessLocked(status int) bool {
	return b.setFailLocked(nil, nil, status)
}

func (b *metaRequestBase) isFinishedLocked() bool {
	return b.finishResult != nil
}

// deliverBody enqueues a completed part's bytes, then hands every chunk
// now deliverable in order to onProgress (and releaseBody), advancing the
// expected-next pointer.
func (b *metaRequestBase) deliverBody(partNum int, data []byte) {
	b.mu.Lock()
	b.body.push(bodyChunk{partNum: partNum, data: data})
	ready := b.body.drainInOrder(&b.nextDelivered)
	cb := b.onProgress
	release := b.releaseBody
	b.mu.Unlock()

	for _, c := range ready {
		if cb != nil {
			cb(c.partNum, c.data)
		}
		if release != nil {
			release(c.data)
		}
	}
}

// SignRequest is the default no-op signer hook; the Client signs each
// outgoing request with its configured Signer in sendOnEndpoint, so
// variants generally don't need to override this.
func (b *metaRequestBase) SignRequest(req *Request) error {
	return nil
}
