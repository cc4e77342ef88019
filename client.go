package s3transfer

import (
	"context"
	"sync"

	"github.com/packit-aws-playground/s3transfer/wire"
	"golang.org/x/sync/semaphore"
)

// preparedRequest pairs a Request ready to send with the meta-request
// that owns it and the host it must be sent to.
type preparedRequest struct {
	req   *Request
	owner MetaRequest
	host  string
	http  *wire.HTTPRequest
}

// clientSynced is guarded by Client.mu. Everything in it may be read or
// written from any goroutine, provided the lock is held.
type clientSynced struct {
	endpoints map[string]*endpoint

	pendingMetaRequests []MetaRequest
	preparedRequests    []*preparedRequest

	active                bool
	startDestroyExecuting bool
	finishDestroy         bool
	workScheduled         bool

	endpointsAllocated uint64
	failedPrepareCount uint64

	// finishedPrepares and finishedInFlight accumulate completions
	// reported by prepareAndQueue/sendOnEndpoint goroutines, which run
	// off the process-work goroutine and so must not touch
	// clientThreaded fields directly. drainSyncedIntoThreaded applies
	// them each pass.
	finishedPrepares int
	finishedInFlight int

	// finishedByMR accumulates, per meta-request, how many of its
	// requests reached a terminal FinishedRequest call off the
	// process-work goroutine. drainSyncedIntoThreaded retires these
	// against clientThreaded.outstanding each pass, the same way
	// finishedPrepares/finishedInFlight retire their counters.
	finishedByMR map[MetaRequest]int

	shutdownCallback func()
}

// clientThreaded is touched only from the process-work goroutine: it
// needs no synchronization as long as that invariant holds.
type clientThreaded struct {
	requestQueue          []*preparedRequest
	ongoingMetaRequests   []MetaRequest
	requestsBeingPrepared int
	requestsInFlight      int
	roundRobinCursor      int

	// outstanding counts, per meta-request, requests dispatched to
	// prepareAndQueue that have not yet reached a terminal
	// FinishedRequest call — whether they're still being prepared off
	// goroutine, sitting in synced.preparedRequests, queued in
	// requestQueue, or in flight. A meta-request is live as long as its
	// count here is nonzero, even across passes where Update itself
	// reports no new work.
	outstanding map[MetaRequest]int
}

// Client owns the endpoint table, the admission controller, and the
// single process-work goroutine that drives every submitted
// MetaRequest's update -> prepare -> send -> finish pipeline.
type Client struct {
	cfg Config

	vipCount      int
	dnsResolver   DNSResolver
	retryStrategy RetryStrategy
	signer        Signer

	stats clientStatsCollector

	// prepareSem bounds concurrent part-body preparation across every
	// meta-request the client is driving; see Config.MaxConcurrentPreparations.
	prepareSem *semaphore.Weighted

	mu     sync.Mutex
	synced clientSynced

	threaded clientThreaded

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClient constructs a Client from cfg, filling in defaults and
// starting the process-work goroutine. Call Shutdown when done.
func NewClient(cfg Config) (*Client, error) {
	cfg.fillDefaults()

	c := &Client{
		cfg:        cfg,
		prepareSem: semaphore.NewWeighted(cfg.MaxConcurrentPreparations),
		wakeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	c.synced.endpoints = make(map[string]*endpoint)
	c.synced.active = true

	c.vipCount = idealVIPCount(cfg.TargetThroughputGbps, cfg.PerVIPGbps)

	if cfg.DNSResolver != nil {
		c.dnsResolver = cfg.DNSResolver
	} else {
		c.dnsResolver = newDefaultDNSResolver()
	}

	if cfg.RetryStrategy != nil {
		c.retryStrategy = cfg.RetryStrategy
	} else {
		c.retryStrategy = newDefaultRetryStrategy()
	}

	switch {
	case cfg.Signer != nil:
		c.signer = cfg.Signer
	case cfg.CredentialsProvider != nil:
		c.signer = newStaticCredentialsSigner(cfg.CredentialsProvider)
	default:
		c.signer = noopSigner{}
	}

	if cfg.MetricsRegisterer != nil {
		_ = cfg.MetricsRegisterer.Register(&prometheusCollector{c: &c.stats})
	}

	go c.processWorkLoop()

	return c, nil
}

// Submit registers a MetaRequest with the scheduler and wakes the
// process-work loop.
func (c *Client) Submit(mr MetaRequest) error {
	c.mu.Lock()
	if !c.synced.active {
		c.mu.Unlock()
		return newError(KindInternal, "client is shutting down")
	}
	c.synced.pendingMetaRequests = append(c.synced.pendingMetaRequests, mr)
	c.mu.Unlock()

	c.stats.recordMetaRequestStarted()
	c.scheduleProcessWork()
	return nil
}

// scheduleProcessWork marks work pending and wakes the work goroutine if
// it isn't already scheduled to run.
func (c *Client) scheduleProcessWork() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// queueRequestsThreaded appends (or, if front is true, prepends) ready
// requests to the thread-local queue. Must be called only from the
// process-work goroutine.
func (c *Client) queueRequestsThreaded(reqs []*preparedRequest, front bool) {
	if front {
		c.threaded.requestQueue = append(reqs, c.threaded.requestQueue...)
	} else {
		c.threaded.requestQueue = append(c.threaded.requestQueue, reqs...)
	}
}

func (c *Client) processWorkLoop() {
	defer close(c.doneCh)
	// Once stopCh is closed every later receive from it succeeds
	// immediately, so the loop free-spins draining outstanding work
	// instead of blocking indefinitely on wakeCh; that's bounded by
	// however long the last in-flight requests take to complete.
	shuttingDown := false
	for {
		select {
		case <-c.stopCh:
			shuttingDown = true
		case <-c.wakeCh:
		}

		c.drainSyncedIntoThreaded()
		c.updateMetaRequestsThreaded()
		c.updateConnectionsThreaded()

		if shuttingDown && c.drainForShutdown() {
			return
		}
		if c.shouldReschedule() || shuttingDown {
			c.scheduleProcessWork()
		}
	}
}

func (c *Client) drainSyncedIntoThreaded() {
	c.mu.Lock()
	pending := c.synced.pendingMetaRequests
	c.synced.pendingMetaRequests = nil
	prepared := c.synced.preparedRequests
	c.synced.preparedRequests = nil
	finishedPrepares := c.synced.finishedPrepares
	c.synced.finishedPrepares = 0
	finishedInFlight := c.synced.finishedInFlight
	c.synced.finishedInFlight = 0
	finishedByMR := c.synced.finishedByMR
	c.synced.finishedByMR = nil
	c.mu.Unlock()

	c.threaded.ongoingMetaRequests = append(c.threaded.ongoingMetaRequests, pending...)
	c.queueRequestsThreaded(prepared, false)
	c.threaded.requestsBeingPrepared -= finishedPrepares
	c.threaded.requestsInFlight -= finishedInFlight
	for mr, n := range finishedByMR {
		c.decrementOutstandingThreaded(mr, n)
	}
}

// decrementOutstandingThreaded retires n completions against mr's
// outstanding count. Must be called only from the process-work goroutine.
func (c *Client) decrementOutstandingThreaded(mr MetaRequest, n int) {
	if c.threaded.outstanding == nil {
		return
	}
	c.threaded.outstanding[mr] -= n
	if c.threaded.outstanding[mr] <= 0 {
		delete(c.threaded.outstanding, mr)
	}
}

// updateMetaRequestsThreaded polls every ongoing meta-request round-robin
// for its next unit of work until either nobody has work or the
// preparation ceiling is reached.
func (c *Client) updateMetaRequestsThreaded() {
	if len(c.threaded.ongoingMetaRequests) == 0 {
		return
	}

	maxPrepare := maxRequestsToPrepare(&c.cfg, c.vipCount, c.threaded.ongoingMetaRequests[0].requestType())

	remaining := make([]MetaRequest, 0, len(c.threaded.ongoingMetaRequests))
	for _, mr := range c.threaded.ongoingMetaRequests {
		flags := UpdateFlagsNone
		if len(c.threaded.requestQueue) >= maxPrepare {
			flags = UpdateFlagConservative
		}

		stillLive := true
		for c.threaded.requestsBeingPrepared < maxPrepare {
			req, hasWork := mr.Update(flags)
			if !hasWork {
				if req == nil {
					stillLive = c.metaRequestHasOutstandingWork(mr)
				}
				break
			}
			c.threaded.requestsBeingPrepared++
			if c.threaded.outstanding == nil {
				c.threaded.outstanding = make(map[MetaRequest]int)
			}
			c.threaded.outstanding[mr]++
			c.prepareAndQueue(mr, req)
		}
		if stillLive {
			remaining = append(remaining, mr)
		} else {
			mr.Finish()
			mr.Destroy()
		}
	}
	c.threaded.ongoingMetaRequests = remaining
}

// metaRequestHasOutstandingWork reports whether mr still has requests
// being prepared, queued, or in flight; once Update reports no work and
// its outstanding count has drained to zero, the meta-request has
// reached a terminal state and is finished and destroyed below.
func (c *Client) metaRequestHasOutstandingWork(mr MetaRequest) bool {
	return c.threaded.outstanding[mr] > 0
}

// noteFinishedForMRLocked records that one of mr's requests reached a
// terminal FinishedRequest call, for drainSyncedIntoThreaded to retire
// against mr's outstanding count. Must be called with c.mu held.
func (c *Client) noteFinishedForMRLocked(mr MetaRequest) {
	if c.synced.finishedByMR == nil {
		c.synced.finishedByMR = make(map[MetaRequest]int)
	}
	c.synced.finishedByMR[mr]++
}

func (c *Client) prepareAndQueue(mr MetaRequest, req *Request) {
	go func() {
		ctx := context.Background()
		if err := c.prepareSem.Acquire(ctx, 1); err != nil {
			mr.FinishedRequest(req, err)
			c.mu.Lock()
			c.synced.finishedPrepares++
			c.noteFinishedForMRLocked(mr)
			c.mu.Unlock()
			c.scheduleProcessWork()
			return
		}
		err := mr.PrepareRequest(req)
		c.prepareSem.Release(1)
		if err != nil {
			mr.FinishedRequest(req, err)
			c.mu.Lock()
			c.synced.failedPrepareCount++
			c.synced.finishedPrepares++
			c.noteFinishedForMRLocked(mr)
			c.mu.Unlock()
			c.scheduleProcessWork()
			return
		}

		builder, ok := mr.(httpRequestBuilder)
		var httpReq *wire.HTTPRequest
		var host string
		if ok {
			httpReq, host, err = builder.buildHTTPRequest(req)
			if err != nil {
				mr.FinishedRequest(req, err)
				c.mu.Lock()
				c.synced.finishedPrepares++
				c.noteFinishedForMRLocked(mr)
				c.mu.Unlock()
				c.scheduleProcessWork()
				return
			}
		}

		c.mu.Lock()
		c.synced.preparedRequests = append(c.synced.preparedRequests, &preparedRequest{
			req: req, owner: mr, host: host, http: httpReq,
		})
		c.synced.finishedPrepares++
		c.mu.Unlock()
		c.scheduleProcessWork()
	}()
}

// httpRequestBuilder is implemented by MetaRequest variants that need to
// turn a Request into a wire.HTTPRequest. It is not part of the public
// MetaRequest contract because Default and AutoRangedGet build requests
// differently; AutoRangedPut implements it.
type httpRequestBuilder interface {
	buildHTTPRequest(req *Request) (*wire.HTTPRequest, string, error)
}

// updateConnectionsThreaded matches queued requests to acquired HTTP
// connections while admission allows it.
func (c *Client) updateConnectionsThreaded() {
	for len(c.threaded.requestQueue) > 0 {
		t := c.threaded.requestQueue[0].owner.requestType()
		ceiling := admissionCeiling(&c.cfg, c.vipCount, t)
		if c.threaded.requestsInFlight >= ceiling {
			break
		}

		pr := c.threaded.requestQueue[0]
		c.threaded.requestQueue = c.threaded.requestQueue[1:]
		c.threaded.requestsInFlight++

		ep, err := c.acquireEndpoint(pr.host)
		if err != nil {
			c.threaded.requestsInFlight--
			c.decrementOutstandingThreaded(pr.owner, 1)
			pr.owner.FinishedRequest(pr.req, err)
			continue
		}
		c.stats.recordRequestSent()
		go c.sendOnEndpoint(ep, pr)
	}
}

func (c *Client) acquireEndpoint(host string) (*endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ep, ok := c.synced.endpoints[host]; ok {
		ep.acquire(true)
		return ep, nil
	}

	ep, err := newEndpoint(c, host)
	if err != nil {
		return nil, err
	}
	ep.refCount = 1
	c.synced.endpoints[host] = ep
	c.synced.endpointsAllocated++
	c.stats.recordEndpointCreated()
	fireEvent(&c.cfg, Event{Kind: EventEndpointCreated, Host: host})
	return ep, nil
}

// sendOnEndpoint performs the actual HTTP exchange off the event-loop
// thread; no lock is held across this suspension point.
func (c *Client) sendOnEndpoint(ep *endpoint, pr *preparedRequest) {
	defer ep.release()

	ctx := context.Background()
	token, err := c.retryStrategy.AcquireToken(pr.host)
	if err != nil {
		fireEvent(&c.cfg, Event{Kind: EventCircuitOpened, Host: pr.host, Err: err})
		c.finishSend(pr, err, 0)
		return
	}
	// The breaker state is rechecked fresh on every attempt (above), but the
	// attempt count itself must survive across requeues of the same request
	// or the retry ceiling never trips: AcquireToken hands back a brand new
	// token each call, so without this the breaker would see attempt 0 on
	// every retry and RecordFailure would never reach maxRetries.
	if rt, ok := token.(*retryToken); ok {
		rt.attempt = pr.req.NumTimesPrepared
	}

	if c.signer != nil {
		sreq := &signableRequest{Method: pr.http.Method, URL: pr.host + pr.http.Path, Headers: pr.http.Headers, Body: pr.http.Body}
		if err := c.signer.Sign(ctx, sreq); err != nil {
			c.finishSend(pr, err, 0)
			return
		}
		pr.http.Headers = sreq.Headers
	}

	conn, err := ep.acquireHTTPConnection(ctx, pr.req.VIPIndex)
	if err != nil {
		c.retryStrategy.RecordFailure(token, err)
		c.finishSend(pr, err, 0)
		return
	}

	status, headers, body, sendErr := doHTTPRequest(ctx, conn.client(), pr.host, pr.http)
	if sendErr != nil || status >= 500 {
		conn.destroy()
		failErr := sendErr
		if failErr == nil {
			failErr = &Error{Kind: KindInternal, ResponseStatus: status, Message: "server error"}
		}
		decision := c.retryStrategy.RecordFailure(token, failErr)
		c.stats.recordRequestFailed()
		if decision == RetryDecisionRetry {
			pr.req.NumTimesPrepared++
			c.requeue(pr, failErr)
			return
		}
		pr.req.ResponseHeaders = headers
		pr.req.ResponseBody = body
		c.finishSend(pr, failErr, status)
		return
	}

	conn.release()
	c.retryStrategy.RecordSuccess(token)
	pr.req.ResponseStatus = status
	pr.req.ResponseHeaders = headers
	pr.req.ResponseBody = body
	pr.owner.FinishedRequest(pr.req, nil)

	c.mu.Lock()
	c.synced.finishedInFlight++
	c.noteFinishedForMRLocked(pr.owner)
	c.mu.Unlock()
	c.scheduleProcessWork()
}

func (c *Client) finishSend(pr *preparedRequest, err error, status int) {
	pr.req.ResponseStatus = status
	pr.owner.FinishedRequest(pr.req, err)
	c.mu.Lock()
	c.synced.finishedInFlight++
	c.noteFinishedForMRLocked(pr.owner)
	c.mu.Unlock()
	c.scheduleProcessWork()
}

// requeue puts a retried request at the front of synced.preparedRequests
// without returning to the preparer (its body is already materialized);
// the next drainSyncedIntoThreaded pass appends it to the back of the
// ready queue.
func (c *Client) requeue(pr *preparedRequest, err error) {
	c.mu.Lock()
	c.synced.preparedRequests = append([]*preparedRequest{pr}, c.synced.preparedRequests...)
	c.synced.finishedInFlight++
	c.mu.Unlock()
	c.stats.recordRequestRetried()
	fireEvent(&c.cfg, Event{Kind: EventRequestRetried, Host: pr.host, Err: err, PartNum: pr.req.PartNum})
	c.scheduleProcessWork()
}

func (c *Client) shouldReschedule() bool {
	return len(c.threaded.requestQueue) > 0 || len(c.threaded.ongoingMetaRequests) > 0
}

// Shutdown halts new meta-request acceptance and waits for every
// ongoing meta-request, connection, and endpoint to drain before
// returning.
func (c *Client) Shutdown() {
	c.mu.Lock()
	c.synced.active = false
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
}

func (c *Client) drainForShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced.active &&
		len(c.threaded.ongoingMetaRequests) == 0 &&
		len(c.threaded.requestQueue) == 0 &&
		c.threaded.requestsInFlight == 0 &&
		len(c.synced.endpoints) == 0 {
		if c.synced.shutdownCallback != nil {
			c.synced.shutdownCallback()
		}
		return true
	}
	return false
}

// Stats returns a snapshot of lifetime client counters.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}
