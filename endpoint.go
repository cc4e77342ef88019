package s3transfer

import (
	"context"
	"net/http"

	"github.com/jackc/puddle/v2"
)

// acquiredConnection is one live HTTP connection handed out by an
// Endpoint's pool. It is a thin wrapper so the scheduler can pair it with
// a Request without depending on puddle's resource type directly.
type acquiredConnection struct {
	res *puddle.Resource[*http.Client]
}

func (a *acquiredConnection) client() *http.Client {
	return a.res.Value()
}

func (a *acquiredConnection) release() {
	a.res.Release()
}

func (a *acquiredConnection) destroy() {
	a.res.Destroy()
}

// endpointVTable is the seam for interposing on acquire/release without a
// mutable global. newEndpoint always installs defaultEndpointVTable;
// Client construction offers no hook to substitute another.
type endpointVTable interface {
	acquire(e *endpoint, alreadyHoldingClientLock bool)
	release(e *endpoint)
}

type defaultEndpointVTable struct{ client *Client }

func (v *defaultEndpointVTable) acquire(e *endpoint, alreadyHoldingClientLock bool) {
	if !alreadyHoldingClientLock {
		v.client.mu.Lock()
		defer v.client.mu.Unlock()
	}
	e.refCount++
}

func (v *defaultEndpointVTable) release(e *endpoint) {
	v.client.mu.Lock()
	e.refCount--
	zero := e.refCount == 0
	if zero {
		delete(v.client.synced.endpoints, e.host)
	}
	v.client.mu.Unlock()

	// The pools are torn down without holding the client lock: closing
	// them drains in-flight acquires, which could otherwise deadlock
	// against a connection-manager callback that itself wants the
	// client lock.
	if zero {
		for _, p := range e.pools {
			p.Close()
		}
		v.client.stats.recordEndpointDestroyed()
		fireEvent(&v.client.cfg, Event{Kind: EventEndpointDestroyed, Host: e.host})
	}
}

// endpoint is a per-host connection-manager holder: a reference-counted
// entry in the Client's endpoint table. The ref-count is protected
// transitively by the Client lock — it is read or written only while
// that lock is held — which lets "acquire if present, else create" stay
// atomic with the table lookup.
//
// pools holds one sub-pool per VIP: a Request's vipForPart assignment
// picks which sub-pool its connection comes from, so distinct VIPs never
// share a connection even though they share a host.
type endpoint struct {
	host     string
	refCount int // guarded by Client.mu; never touched otherwise

	pools []*puddle.Pool[*http.Client]

	vtable endpointVTable
}

func newEndpoint(c *Client, host string) (*endpoint, error) {
	e := &endpoint{host: host}
	e.vtable = &defaultEndpointVTable{client: c}

	transport := buildTransport(&c.cfg)

	vipCount := c.vipCount
	if vipCount < 1 {
		vipCount = 1
	}
	perVIPCeiling := maxRequestsInFlight(&c.cfg, c.vipCount, MetaRequestTypePut) / vipCount
	if perVIPCeiling < 1 {
		perVIPCeiling = 1
	}

	e.pools = make([]*puddle.Pool[*http.Client], vipCount)
	for i := range e.pools {
		poolCfg := &puddle.Config[*http.Client]{
			Constructor: func(ctx context.Context) (*http.Client, error) {
				return &http.Client{Transport: transport}, nil
			},
			Destructor: func(*http.Client) {},
			MaxSize:    int32(perVIPCeiling),
		}
		pool, err := puddle.NewPool(poolCfg)
		if err != nil {
			for _, p := range e.pools[:i] {
				p.Close()
			}
			return nil, err
		}
		e.pools[i] = pool
	}
	return e, nil
}

// acquireHTTPConnection acquires a connection from the sub-pool assigned
// to vipIndex. Control requests never set VIPIndex and so use sub-pool 0;
// an index outside [0, len(pools)) wraps modulo the pool count rather
// than failing.
func (e *endpoint) acquireHTTPConnection(ctx context.Context, vipIndex int) (*acquiredConnection, error) {
	if vipIndex < 0 {
		vipIndex = -vipIndex
	}
	pool := e.pools[vipIndex%len(e.pools)]
	res, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &acquiredConnection{res: res}, nil
}

func (e *endpoint) acquire(alreadyHoldingClientLock bool) {
	e.vtable.acquire(e, alreadyHoldingClientLock)
}

// release decrements the ref-count. It must never be called while the
// Client lock is held: releasing under the lock risks a deadlock against
// the pool's own teardown.
func (e *endpoint) release() {
	e.vtable.release(e)
}
