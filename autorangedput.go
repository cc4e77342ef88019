package s3transfer

import (
	"io"
	"net/http"
	"sync"

	"github.com/packit-aws-playground/s3transfer/internal"
	"github.com/packit-aws-playground/s3transfer/wire"
)

type autoRangedPutPhase int

const (
	phaseInitial autoRangedPutPhase = iota
	phaseListParts
	phaseCreateMPU
	phasePartLoop
	phaseWait
	phaseCompleteMPU
	phaseAbort
	phaseTerminal
)

// phaseState tracks whether a single-shot control request (list-parts
// page, create/complete/abort) has been sent and has completed, plus
// the error that completed it if any. Kept as one struct per phase
// rather than reusing a single pair of fields across phases, unlike the
// upstream implementation this is ported from: that avoids the
// cross-wired list-parts/create-multipart-upload error fields the
// original carries as what looks like a field-naming accident.
type phaseState struct {
	sent      bool
	completed bool
	err       error
}

// PutObjectInput describes one AutoRangedPut submission.
type PutObjectInput struct {
	Bucket        string
	Key           string
	Body          io.Reader
	ContentLength int64

	// ResumeToken, if non-empty, is a previously paused upload's token;
	// its contents are validated against ContentLength and the client's
	// configured bounds before any request is sent.
	ResumeToken []byte

	ChecksumAlgorithm *ChecksumAlgorithm // nil: use client default
	ContentMD5Enabled *bool              // nil: use client default

	OnProgress ProgressCallback
	OnHeaders  HeadersCallback
	OnFinish   FinishCallback
}

type pendingHeaders struct {
	status  int
	headers http.Header
}

// AutoRangedPut is the resumable, checksummed multi-part upload state
// machine: it decomposes one logical PutObject into CreateMultipartUpload,
// N PART uploads, and CompleteMultipartUpload, optionally resuming from a
// prior ListParts-verified position.
type AutoRangedPut struct {
	metaRequestBase

	bucket string
	key    string

	bodyMu    sync.Mutex
	source    io.Reader
	streamPos int64

	contentLength int64
	partSize      int64
	totalNumParts int

	uploadID string

	checksumsList []string
	etagList      []string

	neededResponseHeaders map[string]string

	listPartsState   phaseState
	createMPUState   phaseState
	completeMPUState phaseState
	abortMPUState    phaseState

	listPartsMarker    string
	listPartsTruncated bool

	threadedNextPartNumber int

	numPartsSent       int
	numPartsCompleted  int
	numPartsSuccessful int
	numPartsFailed     int

	phase autoRangedPutPhase

	resumeToken *pauseToken

	pendingHeaders *pendingHeaders

	bufPool *internal.BufferPool
}

// NewAutoRangedPut constructs an AutoRangedPut for submission to a
// Client. Construction fails with ErrInvalidArgument if a resume token is
// present and fails validation.
func NewAutoRangedPut(c *Client, in PutObjectInput) (*AutoRangedPut, error) {
	if in.Bucket == "" || in.Key == "" {
		return nil, newError(KindInvalidArgument, "bucket and key are required")
	}
	if in.Body == nil {
		return nil, newError(KindInvalidArgument, "body is required")
	}

	algo := c.cfg.ChecksumAlgorithm
	if in.ChecksumAlgorithm != nil {
		algo = *in.ChecksumAlgorithm
	}
	md5Enabled := c.cfg.ContentMD5Enabled
	if in.ContentMD5Enabled != nil {
		md5Enabled = *in.ContentMD5Enabled
	}

	p := &AutoRangedPut{
		bucket:        in.Bucket,
		key:           in.Key,
		source:        in.Body,
		contentLength: in.ContentLength,
		partSize:      c.cfg.PartSize,
	}
	p.client = c
	p.checksumAlgorithm = algo
	p.contentMD5Enabled = md5Enabled
	p.onProgress = in.OnProgress
	p.onHeaders = in.OnHeaders
	p.onFinish = in.OnFinish

	if len(in.ResumeToken) > 0 {
		tok, err := parsePauseToken(in.ResumeToken)
		if err != nil {
			return nil, err
		}
		if err := validateResumeToken(tok, &c.cfg, in.ContentLength); err != nil {
			return nil, err
		}
		p.resumeToken = &tok
		p.partSize = tok.PartitionSize
		p.totalNumParts = tok.TotalNumParts
		p.uploadID = tok.MultipartUploadID
	} else {
		p.totalNumParts = partsForContentLength(in.ContentLength, p.partSize)
		if p.totalNumParts > c.cfg.MaxUploadParts {
			return nil, newError(KindInvalidArgument, "content length needs more parts than the configured maximum")
		}
	}

	p.checksumsList = make([]string, p.totalNumParts)
	p.etagList = make([]string, p.totalNumParts)
	p.metaRequestBase.body = newBodyQueue()
	p.metaRequestBase.nextDelivered = 1
	p.bufPool = internal.NewBufferPool(int(p.partSize))
	p.metaRequestBase.releaseBody = p.bufPool.Put

	return p, nil
}

func (p *AutoRangedPut) requestType() MetaRequestType { return MetaRequestTypePut }

func (p *AutoRangedPut) endpointHost() string {
	if p.client.cfg.Endpoint != "" {
		return p.client.cfg.Endpoint
	}
	region := p.client.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return p.bucket + ".s3." + region + ".amazonaws.com"
}

// Update is the scheduler's handle on the state machine: it produces the
// next Request to prepare and send, or reports no work is currently
// available.
func (p *AutoRangedPut) Update(flags UpdateFlags) (*Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == phaseTerminal {
		return nil, false
	}
	if p.finishResult != nil {
		return p.updateAbortLocked()
	}

	for {
		switch p.phase {
		case phaseInitial:
			if p.resumeToken != nil {
				p.phase = phaseListParts
			} else {
				p.phase = phaseCreateMPU
			}

		case phaseListParts:
			if !p.listPartsState.sent {
				p.listPartsState.sent = true
				return newRequest(TagListParts, 0, RequestFlagsNone, p), true
			}
			if !p.listPartsState.completed {
				return nil, false
			}
			p.phase = phasePartLoop

		case phaseCreateMPU:
			if !p.createMPUState.sent {
				p.createMPUState.sent = true
				return newRequest(TagCreateMultipartUpload, 0, RequestFlagsNone, p), true
			}
			if !p.createMPUState.completed {
				return nil, false
			}
			p.phase = phasePartLoop

		case phasePartLoop:
			if flags&UpdateFlagConservative != 0 && p.numPartsSent-p.numPartsCompleted > 0 {
				return nil, false
			}
			if p.numPartsSent >= p.totalNumParts {
				p.phase = phaseWait
				continue
			}
			for p.threadedNextPartNumber < p.totalNumParts {
				idx := p.threadedNextPartNumber
				p.threadedNextPartNumber++
				if p.etagList[idx] != "" {
					continue
				}
				p.numPartsSent++
				req := newRequest(TagPart, idx+1, RequestFlagsNone, p)
				req.VIPIndex = vipForPart(p.uploadID, idx+1, p.client.vipCount)
				return req, true
			}
			return nil, false

		case phaseWait:
			if p.numPartsCompleted < p.totalNumParts {
				return nil, false
			}
			p.phase = phaseCompleteMPU

		case phaseCompleteMPU:
			if !p.completeMPUState.sent {
				p.completeMPUState.sent = true
				return newRequest(TagCompleteMultipartUpload, 0, RequestFlagsNone, p), true
			}
			return nil, false
		}
	}
}

// updateAbortLocked implements the cancellation/abort branch: it waits
// for create-MPU and any in-flight parts to drain, then sends at most
// one ABORT_MULTIPART_UPLOAD unless the finish reason suppresses it.
func (p *AutoRangedPut) updateAbortLocked() (*Request, bool) {
	if p.createMPUState.sent && !p.createMPUState.completed {
		return nil, false
	}
	if p.numPartsCompleted < p.numPartsSent {
		return nil, false
	}
	if p.listPartsState.sent && !p.listPartsState.completed {
		return nil, false
	}

	if p.phase != phaseAbort {
		p.phase = phaseAbort
	}

	if !p.abortMPUState.sent {
		if p.uploadID == "" || p.shouldSkipAbortLocked() {
			p.phase = phaseTerminal
			return nil, false
		}
		p.abortMPUState.sent = true
		return newRequest(TagAbortMultipartUpload, 0, RequestFlagAlwaysSend, p), true
	}
	if !p.abortMPUState.completed {
		return nil, false
	}
	p.phase = phaseTerminal
	return nil, false
}

// shouldSkipAbortLocked reports whether the in-progress multi-part
// upload must be left alone rather than torn down: pause and resume
// failure both want a later resume attempt to find the upload_id still
// valid, and a checksum mismatch discovered mid-resume is treated the
// same way since the mismatch says nothing about the parts already
// accepted by the server.
func (p *AutoRangedPut) shouldSkipAbortLocked() bool {
	if p.finishResult == nil {
		return true
	}
	if p.completeMPUState.completed {
		return true
	}
	switch {
	case IsKind(p.finishResult.Err, KindPaused),
		IsKind(p.finishResult.Err, KindResumeFailed),
		IsKind(p.finishResult.Err, KindResumedPartChecksumMismatch):
		return true
	default:
		return false
	}
}

// PrepareRequest reads body bytes (for PART requests) off the
// meta-request lock; the control requests (create/list/complete/abort)
// carry no body to read here.
func (p *AutoRangedPut) PrepareRequest(req *Request) error {
	if req.Tag != TagPart {
		return nil
	}
	return p.preparePart(req)
}

func (p *AutoRangedPut) preparePart(req *Request) error {
	if req.NumTimesPrepared > 0 {
		return nil
	}
	req.NumTimesPrepared++

	partNum := req.PartNum
	start := int64(partNum-1) * p.partSize
	length := p.partSize
	if partNum == p.totalNumParts {
		length = p.contentLength - start
	}

	p.bodyMu.Lock()
	defer p.bodyMu.Unlock()

	if p.streamPos < start {
		if err := p.skipAndVerifyLocked(start); err != nil {
			return err
		}
	}

	buf := p.getBuf(int(length))
	if _, err := io.ReadFull(p.source, buf); err != nil {
		return wrapError(KindInternal, "reading part body", err)
	}
	p.streamPos += length
	req.Body = buf

	if p.checksumAlgorithm != ChecksumNone {
		sum := computeChecksum(p.checksumAlgorithm, buf)
		p.mu.Lock()
		p.checksumsList[partNum-1] = sum
		p.mu.Unlock()
	}
	return nil
}

// skipAndVerifyLocked discards already-uploaded parts' bytes from the
// body stream on resume, re-verifying each one's checksum against the
// value ListParts reported before trusting the skip.
func (p *AutoRangedPut) skipAndVerifyLocked(target int64) error {
	for p.streamPos < target {
		partIdx := int(p.streamPos / p.partSize)
		partStart := int64(partIdx) * p.partSize
		partLen := p.partSize
		if partIdx+1 == p.totalNumParts {
			partLen = p.contentLength - partStart
		}

		buf := p.getBuf(int(partLen))
		if _, err := io.ReadFull(p.source, buf); err != nil {
			return wrapError(KindResumeFailed, "reading skipped part body", err)
		}
		p.streamPos += partLen

		p.mu.Lock()
		storedSum := p.checksumsList[partIdx]
		p.mu.Unlock()

		if p.checksumAlgorithm != ChecksumNone && storedSum != "" {
			if computeChecksum(p.checksumAlgorithm, buf) != storedSum {
				err := newError(KindResumedPartChecksumMismatch, "resumed part checksum mismatch")
				p.setFailSynced(err, nil, 0)
				return err
			}
		}
		p.deliverBody(partIdx+1, buf)
	}
	return nil
}

// getBuf returns a buffer of exactly n bytes, drawn from the pool when
// its pooled capacity is big enough and freshly allocated otherwise (the
// last part of an upload is usually shorter than partSize, and the very
// first read of any given size always misses).
func (p *AutoRangedPut) getBuf(n int) []byte {
	b := p.bufPool.Get()
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

func (p *AutoRangedPut) buildHTTPRequest(req *Request) (*wire.HTTPRequest, string, error) {
	host := p.endpointHost()

	switch req.Tag {
	case TagCreateMultipartUpload:
		headers := map[string]string{}
		if name := p.checksumAlgorithm.awsAlgorithmName(); name != "" {
			headers["x-amz-checksum-algorithm"] = name
		}
		return wire.NewCreateMultipartUpload(p.bucket, p.key, headers), host, nil

	case TagPart:
		headers := map[string]string{}
		p.mu.Lock()
		sum := p.checksumsList[req.PartNum-1]
		p.mu.Unlock()
		if p.checksumAlgorithm != ChecksumNone && sum != "" {
			headers[p.checksumAlgorithm.headerName()] = sum
		}
		if p.contentMD5Enabled {
			headers["Content-MD5"] = contentMD5(req.Body)
		}
		return wire.NewUploadPart(p.bucket, p.key, p.uploadID, req.PartNum, req.Body, headers), host, nil

	case TagCompleteMultipartUpload:
		p.mu.Lock()
		parts := make([]wire.PartRecord, p.totalNumParts)
		for i := 0; i < p.totalNumParts; i++ {
			rec := wire.PartRecord{Number: i + 1, ETag: p.etagList[i]}
			if p.checksumAlgorithm != ChecksumNone {
				rec.ChecksumElem = p.checksumAlgorithm.xmlElement()
				rec.ChecksumValue = p.checksumsList[i]
			}
			parts[i] = rec
		}
		p.mu.Unlock()
		return wire.NewCompleteMultipartUpload(p.bucket, p.key, p.uploadID, parts), host, nil

	case TagAbortMultipartUpload:
		return wire.NewAbortMultipartUpload(p.bucket, p.key, p.uploadID), host, nil

	case TagListParts:
		p.mu.Lock()
		marker := p.listPartsMarker
		p.mu.Unlock()
		return wire.NewListParts(p.bucket, p.key, p.uploadID, marker), host, nil
	}
	return nil, "", newError(KindInternal, "unknown request tag")
}

// FinishedRequest advances phase counters for req's tag; it runs off
// the meta-request lock per the shared contract, acquiring it only to
// mutate state.
func (p *AutoRangedPut) FinishedRequest(req *Request, err error) {
	p.mu.Lock()
	var deliver *bodyChunk
	switch req.Tag {
	case TagListParts:
		p.handleListPartsFinishedLocked(req, err)
	case TagCreateMultipartUpload:
		p.handleCreateMPUFinishedLocked(req, err)
	case TagPart:
		deliver = p.handlePartFinishedLocked(req, err)
	case TagCompleteMultipartUpload:
		p.handleCompleteMPUFinishedLocked(req, err)
	case TagAbortMultipartUpload:
		p.abortMPUState.completed = true
	}
	p.mu.Unlock()

	if deliver != nil {
		p.deliverBody(deliver.partNum, deliver.data)
	}
	p.client.scheduleProcessWork()
}

func (p *AutoRangedPut) handleListPartsFinishedLocked(req *Request, err error) {
	if oerr := httpOutcomeError(req, err); oerr != nil {
		p.listPartsState.err = oerr
		p.setFailLocked(wrapError(KindListPartsParseFailed, "list parts request failed", oerr), req, req.ResponseStatus)
		return
	}
	page, perr := wire.ParseListParts(req.ResponseBody)
	if perr != nil {
		p.listPartsState.err = perr
		p.setFailLocked(wrapError(KindListPartsParseFailed, "parsing list parts response", perr), req, req.ResponseStatus)
		return
	}

	for _, part := range page.Parts {
		if part.Number < 1 || part.Number > p.totalNumParts {
			continue
		}
		idx := part.Number - 1
		p.etagList[idx] = part.ETag
		if val, ok := part.Checksums[p.checksumAlgorithm.xmlElement()]; ok {
			p.checksumsList[idx] = val
		}
	}
	p.listPartsTruncated = page.IsTruncated
	p.listPartsMarker = page.NextPartMarker

	if page.IsTruncated {
		p.listPartsState.sent = false
		return
	}

	for i := 0; i < p.totalNumParts; i++ {
		if p.etagList[i] != "" {
			p.numPartsSent++
			p.numPartsCompleted++
			p.numPartsSuccessful++
		}
	}
	p.listPartsState.completed = true
	p.createMPUState.sent = true
	p.createMPUState.completed = true
}

func (p *AutoRangedPut) handleCreateMPUFinishedLocked(req *Request, err error) {
	if oerr := httpOutcomeError(req, err); oerr != nil {
		p.createMPUState.err = oerr
		p.setFailLocked(oerr, req, req.ResponseStatus)
		return
	}
	uploadID, perr := wire.ParseCreateMultipartUpload(req.ResponseBody)
	if perr != nil {
		e := wrapError(KindMissingUploadID, "create multipart upload response", perr)
		p.createMPUState.err = e
		p.setFailLocked(e, req, req.ResponseStatus)
		return
	}
	p.uploadID = uploadID
	p.neededResponseHeaders = wire.CaptureSSEHeaders(headerMapFromHTTP(req.ResponseHeaders))
	p.createMPUState.completed = true
}

func (p *AutoRangedPut) handlePartFinishedLocked(req *Request, err error) *bodyChunk {
	idx := req.PartNum - 1
	if oerr := httpOutcomeError(req, err); oerr != nil {
		p.numPartsCompleted++
		p.numPartsFailed++
		p.setFailLocked(oerr, req, req.ResponseStatus)
		return nil
	}
	etag, ok := wire.ParseUploadPartETag(headerMapFromHTTP(req.ResponseHeaders))
	if !ok {
		p.numPartsCompleted++
		p.numPartsFailed++
		p.setFailLocked(newError(KindInternal, "part response missing ETag header"), req, req.ResponseStatus)
		return nil
	}
	p.etagList[idx] = etag
	p.numPartsCompleted++
	p.numPartsSuccessful++
	p.client.stats.recordPartUploaded(int64(len(req.Body)))
	return &bodyChunk{partNum: req.PartNum, data: req.Body}
}

func (p *AutoRangedPut) handleCompleteMPUFinishedLocked(req *Request, err error) {
	if oerr := httpOutcomeError(req, err); oerr != nil {
		p.completeMPUState.err = oerr
		p.setFailLocked(oerr, req, req.ResponseStatus)
		return
	}

	headers := headerMapFromHTTP(req.ResponseHeaders)
	for k, v := range p.neededResponseHeaders {
		headers[k] = v
	}
	if etag, ok := wire.ParseCompleteMultipartUpload(req.ResponseBody); ok {
		headers["ETag"] = `"` + etag + `"`
	}

	p.completeMPUState.completed = true
	p.phase = phaseTerminal
	p.setSuccessLocked(req.ResponseStatus)
	p.pendingHeaders = &pendingHeaders{status: req.ResponseStatus, headers: toHTTPHeader(headers)}
}

// Finish dispatches the user's headers and finish callbacks exactly
// once, outside the meta-request lock.
func (p *AutoRangedPut) Finish() {
	p.mu.Lock()
	result := p.finishResult
	headers := p.pendingHeaders
	cbHeaders := p.onHeaders
	cbFinish := p.onFinish
	already := p.finishDispatch
	p.finishDispatch = true
	p.mu.Unlock()

	if already || result == nil {
		return
	}
	p.client.stats.recordMetaRequestFinished(result.Err)
	fireEvent(&p.client.cfg, Event{Kind: EventMetaRequestFinished, Err: result.Err})
	if headers != nil && cbHeaders != nil {
		cbHeaders(headers.status, headers.headers)
	}
	if cbFinish != nil {
		cbFinish(*result)
	}
}

// Pause serializes a resume token if the upload has progressed far
// enough to have an upload_id, marking the meta-request failed with
// PAUSED so the abort branch leaves the server-side upload intact.
func (p *AutoRangedPut) Pause() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.createMPUState.completed {
		return nil, false
	}
	tok := pauseToken{
		Type:              putMetaRequestTypeLiteral,
		MultipartUploadID: p.uploadID,
		PartitionSize:     p.partSize,
		TotalNumParts:     p.totalNumParts,
	}
	data, err := marshalPauseToken(tok)
	if err != nil {
		return nil, false
	}
	p.setFailLocked(ErrPaused, nil, 0)
	return data, true
}

// Destroy is a no-op: AutoRangedPut holds no connections or endpoint
// references of its own outside the scheduler's per-request lifecycle.
func (p *AutoRangedPut) Destroy() {}

func httpOutcomeError(req *Request, err error) error {
	if err != nil {
		return err
	}
	if req.ResponseStatus != 0 && (req.ResponseStatus < 200 || req.ResponseStatus >= 300) {
		er := wire.ParseErrorResponse(req.ResponseBody)
		return &Error{Kind: KindInternal, ResponseStatus: req.ResponseStatus, Message: er.Code + ": " + er.Message}
	}
	return nil
}

func headerMapFromHTTP(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func toHTTPHeader(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
