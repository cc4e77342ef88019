package s3transfer

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientStats contains lifetime counters about a Client's operation.
// All fields are safe for concurrent access.
type ClientStats struct {
	MetaRequestsStarted   uint64
	MetaRequestsSucceeded uint64
	MetaRequestsFailed    uint64
	MetaRequestsPaused    uint64

	RequestsSent    uint64
	RequestsRetried uint64
	RequestsFailed  uint64

	PartsUploaded uint64
	BytesUploaded uint64

	EndpointsCreated   uint64
	EndpointsDestroyed uint64
}

type clientStatsCollector struct {
	stats ClientStats
}

func (c *clientStatsCollector) recordMetaRequestStarted() {
	atomic.AddUint64(&c.stats.MetaRequestsStarted, 1)
}

// recordMetaRequestFinished tallies a terminal outcome. err is the finish
// error, or nil on success.
func (c *clientStatsCollector) recordMetaRequestFinished(err error) {
	switch {
	case err == nil:
		atomic.AddUint64(&c.stats.MetaRequestsSucceeded, 1)
	case IsKind(err, KindPaused):
		atomic.AddUint64(&c.stats.MetaRequestsPaused, 1)
	default:
		atomic.AddUint64(&c.stats.MetaRequestsFailed, 1)
	}
}

func (c *clientStatsCollector) recordRequestSent() {
	atomic.AddUint64(&c.stats.RequestsSent, 1)
}

func (c *clientStatsCollector) recordRequestRetried() {
	atomic.AddUint64(&c.stats.RequestsRetried, 1)
}

func (c *clientStatsCollector) recordRequestFailed() {
	atomic.AddUint64(&c.stats.RequestsFailed, 1)
}

func (c *clientStatsCollector) recordPartUploaded(n int64) {
	atomic.AddUint64(&c.stats.PartsUploaded, 1)
	atomic.AddUint64(&c.stats.BytesUploaded, uint64(n))
}

func (c *clientStatsCollector) recordEndpointCreated() {
	atomic.AddUint64(&c.stats.EndpointsCreated, 1)
}

func (c *clientStatsCollector) recordEndpointDestroyed() {
	atomic.AddUint64(&c.stats.EndpointsDestroyed, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		MetaRequestsStarted:   atomic.LoadUint64(&c.stats.MetaRequestsStarted),
		MetaRequestsSucceeded: atomic.LoadUint64(&c.stats.MetaRequestsSucceeded),
		MetaRequestsFailed:    atomic.LoadUint64(&c.stats.MetaRequestsFailed),
		MetaRequestsPaused:    atomic.LoadUint64(&c.stats.MetaRequestsPaused),
		RequestsSent:          atomic.LoadUint64(&c.stats.RequestsSent),
		RequestsRetried:       atomic.LoadUint64(&c.stats.RequestsRetried),
		RequestsFailed:        atomic.LoadUint64(&c.stats.RequestsFailed),
		PartsUploaded:         atomic.LoadUint64(&c.stats.PartsUploaded),
		BytesUploaded:         atomic.LoadUint64(&c.stats.BytesUploaded),
		EndpointsCreated:      atomic.LoadUint64(&c.stats.EndpointsCreated),
		EndpointsDestroyed:    atomic.LoadUint64(&c.stats.EndpointsDestroyed),
	}
}

// prometheusCollector adapts clientStatsCollector to prometheus.Collector
// so a Client can optionally be registered into a caller's registry.
type prometheusCollector struct {
	c *clientStatsCollector
}

var (
	descMetaRequestsTotal = prometheus.NewDesc(
		"s3transfer_meta_requests_total", "Meta-requests by terminal outcome.",
		[]string{"outcome"}, nil)
	descRequestsTotal = prometheus.NewDesc(
		"s3transfer_requests_total", "HTTP requests by outcome.",
		[]string{"outcome"}, nil)
	descPartsUploaded = prometheus.NewDesc(
		"s3transfer_parts_uploaded_total", "Parts successfully uploaded.", nil, nil)
	descBytesUploaded = prometheus.NewDesc(
		"s3transfer_bytes_uploaded_total", "Bytes successfully uploaded.", nil, nil)
	descEndpoints = prometheus.NewDesc(
		"s3transfer_endpoints_total", "Endpoints by lifecycle event.",
		[]string{"event"}, nil)
)

func (p *prometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descMetaRequestsTotal
	ch <- descRequestsTotal
	ch <- descPartsUploaded
	ch <- descBytesUploaded
	ch <- descEndpoints
}

func (p *prometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.c.snapshot()
	ch <- prometheus.MustNewConstMetric(descMetaRequestsTotal, prometheus.CounterValue, float64(s.MetaRequestsSucceeded), "succeeded")
	ch <- prometheus.MustNewConstMetric(descMetaRequestsTotal, prometheus.CounterValue, float64(s.MetaRequestsFailed), "failed")
	ch <- prometheus.MustNewConstMetric(descMetaRequestsTotal, prometheus.CounterValue, float64(s.MetaRequestsPaused), "paused")
	ch <- prometheus.MustNewConstMetric(descRequestsTotal, prometheus.CounterValue, float64(s.RequestsSent), "sent")
	ch <- prometheus.MustNewConstMetric(descRequestsTotal, prometheus.CounterValue, float64(s.RequestsRetried), "retried")
	ch <- prometheus.MustNewConstMetric(descRequestsTotal, prometheus.CounterValue, float64(s.RequestsFailed), "failed")
	ch <- prometheus.MustNewConstMetric(descPartsUploaded, prometheus.CounterValue, float64(s.PartsUploaded))
	ch <- prometheus.MustNewConstMetric(descBytesUploaded, prometheus.CounterValue, float64(s.BytesUploaded))
	ch <- prometheus.MustNewConstMetric(descEndpoints, prometheus.CounterValue, float64(s.EndpointsCreated), "created")
	ch <- prometheus.MustNewConstMetric(descEndpoints, prometheus.CounterValue, float64(s.EndpointsDestroyed), "destroyed")
}
