package s3transfer

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryDecision is what the retry strategy tells the scheduler to do
// after a request's HTTP outcome is known.
type RetryDecision int

const (
	RetryDecisionSuccess RetryDecision = iota
	RetryDecisionRetry
	RetryDecisionFailed
)

// RetryToken is an opaque handle a RetryStrategy may attach to a request
// so it can correlate the eventual outcome back to the acquisition.
type RetryToken interface{}

// RetryStrategy decides whether a failed request should be retried,
// succeed, or fail terminally. Implementations typically track recent
// failure rates per host (a circuit breaker) so that retries back off
// once a host is clearly unhealthy rather than hammering it.
type RetryStrategy interface {
	// AcquireToken is called before a request is sent.
	AcquireToken(host string) (RetryToken, error)
	// RecordSuccess reports a successful request.
	RecordSuccess(token RetryToken)
	// RecordFailure reports a failed request and returns the decision.
	RecordFailure(token RetryToken, err error) RetryDecision
}

// breakerRetryStrategy is the default RetryStrategy: one gobreaker
// circuit breaker per host, opened once a host's recent failure ratio
// crosses a threshold, so retries on a broken host fail fast instead of
// queuing work the scheduler cannot complete.
type breakerRetryStrategy struct {
	maxRetries int

	mu         sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[struct{}]
	newBreaker func(host string) *gobreaker.CircuitBreaker[struct{}]
}

func newDefaultRetryStrategy() RetryStrategy {
	s := &breakerRetryStrategy{
		maxRetries: 3,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
	s.newBreaker = func(host string) *gobreaker.CircuitBreaker[struct{}] {
		return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        host,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		})
	}
	return s
}

type retryToken struct {
	host    string
	breaker *gobreaker.CircuitBreaker[struct{}]
	attempt int
}

func (s *breakerRetryStrategy) breakerFor(host string) *gobreaker.CircuitBreaker[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[host]; ok {
		return b
	}
	b := s.newBreaker(host)
	s.breakers[host] = b
	return b
}

func (s *breakerRetryStrategy) AcquireToken(host string) (RetryToken, error) {
	b := s.breakerFor(host)
	if b.State() == gobreaker.StateOpen {
		return nil, &Error{Kind: KindInternal, Message: "circuit open for " + host}
	}
	return &retryToken{host: host, breaker: b}, nil
}

func (s *breakerRetryStrategy) RecordSuccess(token RetryToken) {
	t, ok := token.(*retryToken)
	if !ok {
		return
	}
	_, _ = t.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })
}

func (s *breakerRetryStrategy) RecordFailure(token RetryToken, err error) RetryDecision {
	t, ok := token.(*retryToken)
	if !ok {
		return RetryDecisionFailed
	}
	_, _ = t.breaker.Execute(func() (struct{}, error) { return struct{}{}, err })
	t.attempt++
	if t.attempt >= s.maxRetries {
		return RetryDecisionFailed
	}
	return RetryDecisionRetry
}
