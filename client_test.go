package s3transfer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeMetaRequest is a bare MetaRequest double whose Update behavior is
// entirely caller-scripted, so the scheduler's bookkeeping can be
// exercised without a real HTTP exchange or preparation goroutine.
type fakeMetaRequest struct {
	mu       sync.Mutex
	updateFn func(UpdateFlags) (*Request, bool)

	finished  bool
	destroyed bool
}

func (f *fakeMetaRequest) Update(flags UpdateFlags) (*Request, bool) { return f.updateFn(flags) }
func (f *fakeMetaRequest) PrepareRequest(req *Request) error         { return nil }
func (f *fakeMetaRequest) SignRequest(req *Request) error            { return nil }
func (f *fakeMetaRequest) FinishedRequest(req *Request, err error)   {}
func (f *fakeMetaRequest) Pause() ([]byte, bool)                     { return nil, false }
func (f *fakeMetaRequest) requestType() MetaRequestType              { return MetaRequestTypePut }

func (f *fakeMetaRequest) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
}

func (f *fakeMetaRequest) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

func (f *fakeMetaRequest) isFinished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

func (f *fakeMetaRequest) isDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func newSchedulerTestClient() *Client {
	cfg := Config{}
	cfg.fillDefaults()
	c := &Client{cfg: cfg}
	c.vipCount = idealVIPCount(cfg.TargetThroughputGbps, cfg.PerVIPGbps)
	return c
}

// A meta-request whose Update has nothing new to offer must stay in
// ongoingMetaRequests as long as it still has an outstanding request
// being prepared or in flight — a bare "no new work" reply is not the
// same as "truly done". This is the direct scheduler-level reproduction
// of the hang where a control request dispatched in one pass (and so not
// yet reflected in requestQueue) was mistaken for a finished upload.
func TestUpdateMetaRequestsStaysLiveWhileRequestOutstanding(t *testing.T) {
	c := newSchedulerTestClient()

	mr := &fakeMetaRequest{
		updateFn: func(UpdateFlags) (*Request, bool) { return nil, false },
	}
	c.threaded.ongoingMetaRequests = []MetaRequest{mr}
	c.threaded.outstanding = map[MetaRequest]int{mr: 1}

	c.updateMetaRequestsThreaded()

	assert.Len(t, c.threaded.ongoingMetaRequests, 1)
	assert.False(t, mr.isFinished())
	assert.False(t, mr.isDestroyed())

	// The outstanding request now reaches a terminal FinishedRequest call
	// (synchronously, as updateConnectionsThreaded's acquire-failure path
	// does) and Update is polled again with nothing left outstanding.
	c.decrementOutstandingThreaded(mr, 1)
	c.updateMetaRequestsThreaded()

	assert.Empty(t, c.threaded.ongoingMetaRequests)
	assert.True(t, mr.isFinished())
	assert.True(t, mr.isDestroyed())
}

// The same transition, but completed the way an off-loop goroutine
// (prepareAndQueue, sendOnEndpoint) actually reports it: through
// synced.finishedByMR, retired by drainSyncedIntoThreaded before the next
// updateMetaRequestsThreaded pass runs.
func TestDrainSyncedRetiresOutstandingBeforeFinishing(t *testing.T) {
	c := newSchedulerTestClient()

	mr := &fakeMetaRequest{
		updateFn: func(UpdateFlags) (*Request, bool) { return nil, false },
	}
	c.threaded.ongoingMetaRequests = []MetaRequest{mr}
	c.threaded.outstanding = map[MetaRequest]int{mr: 1}

	c.updateMetaRequestsThreaded()
	assert.Len(t, c.threaded.ongoingMetaRequests, 1, "must not finish while a request is still outstanding")

	c.synced.finishedByMR = map[MetaRequest]int{mr: 1}
	c.drainSyncedIntoThreaded()
	c.updateMetaRequestsThreaded()

	assert.Empty(t, c.threaded.ongoingMetaRequests)
	assert.True(t, mr.isFinished())
	assert.True(t, mr.isDestroyed())
}
