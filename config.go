package s3transfer

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DialContextFunc dials a network connection for the HTTP layer. It is
// compatible with net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProxyEnvSetting controls whether Config.ProxyURL falls back to reading
// the standard proxy environment variables when unset.
type ProxyEnvSetting int

const (
	// ProxyEnvDisable never consults the environment.
	ProxyEnvDisable ProxyEnvSetting = iota
	// ProxyEnvEnable consults HTTP_PROXY/HTTPS_PROXY/NO_PROXY when
	// Config.ProxyURL is empty.
	ProxyEnvEnable
)

// PerVIPConnections gives the per-meta-request-type connection budget for
// a single virtual IP, used to derive the admission ceiling.
type PerVIPConnections struct {
	Put     int
	Get     int
	Default int
}

// DefaultPerVIPConnections mirrors the ratios a put-heavy high-throughput
// client tunes for: puts spread across more connections per VIP than a
// plain single-shot request.
var DefaultPerVIPConnections = PerVIPConnections{
	Put:     10,
	Get:     10,
	Default: 2,
}

// Config holds configuration options for the transfer Client.
type Config struct {
	// Region is the object-store region the client targets.
	Region string

	// Endpoint, if set, overrides the host the client connects to
	// (useful for S3-compatible stores or local testing).
	Endpoint string

	// TargetThroughputGbps is the aggregate bandwidth the client is
	// trying to saturate. It drives the ideal VIP count and therefore
	// the connection ceiling per meta-request.
	TargetThroughputGbps float64

	// PerVIPGbps is the assumed achievable throughput of a single VIP.
	// Default is 1.25 if unset.
	PerVIPGbps float64

	// PerVIPConnections gives the per-type connection budget per VIP.
	PerVIPConnections PerVIPConnections

	// MaxConnectionsOverride, if > 0, clamps the derived admission
	// ceiling regardless of the VIP computation.
	MaxConnectionsOverride int

	// PartSize is the size in bytes of each part of a multi-part
	// upload, except possibly the last. Default 8 MiB if unset.
	PartSize int64

	// MaxPartSize is the largest part size the client is configured
	// for. Default 5 GiB (the object store's own ceiling) if unset.
	// Neither PartSize nor a resume token's partition_size is checked
	// against it.
	MaxPartSize int64

	// MinPartSize bounds the minimum acceptable partition_size on
	// resume. Default 5 MiB (the object store's own floor) if unset.
	MinPartSize int64

	// MaxUploadParts bounds total_num_parts accepted both for fresh
	// uploads and from a resume token. Default 10000 if unset.
	MaxUploadParts int

	// ChecksumAlgorithm is the pluggable per-part checksum computed for
	// every part and echoed into the Complete-MPU request.
	ChecksumAlgorithm ChecksumAlgorithm

	// ContentMD5Enabled adds a Content-MD5 header to every part upload
	// when true, or when the caller supplies one explicitly.
	ContentMD5Enabled bool

	// BackpressureWindowSize is stored with the configuration but no
	// meta-request reads it: body delivery is not metered by a window.
	BackpressureWindowSize int64

	// MaxRequestsPrepareMultiple scales the admission ceiling to compute
	// how many requests may be in preparation concurrently. Default 2.
	MaxRequestsPrepareMultiple int

	// MaxConcurrentPreparations bounds, across all meta-requests, how
	// many part bodies may be read and checksummed at once. This is
	// independent of MaxRequestsPrepareMultiple's per-type ceiling: it
	// exists to cap peak memory (each preparation holds one part-sized
	// buffer) when several large uploads run concurrently. Default 32.
	MaxConcurrentPreparations int64

	// DialTimeout is the timeout for establishing new connections.
	// Default 5s if unset.
	DialTimeout time.Duration

	// DialFunc is an optional custom dialer. If nil, a default dialer
	// using DialTimeout is used.
	DialFunc DialContextFunc

	// ProxyURL is an explicit proxy URL. See ProxyEnvSetting for the
	// environment-variable fallback behavior.
	ProxyURL string
	// ProxyEnvSetting controls env-var proxy fallback.
	ProxyEnvSetting ProxyEnvSetting

	// RetryStrategy drives per-request retry/backoff decisions. If nil,
	// a gobreaker-backed default is used.
	RetryStrategy RetryStrategy

	// Signer signs outgoing requests. If nil and CredentialsProvider is
	// set, a minimal signer stamping the provider's access key is used;
	// if both are nil, requests are sent unsigned (suitable only against
	// a test double or a pre-signed endpoint).
	Signer Signer

	// CredentialsProvider supplies the credentials for the minimal
	// default signer. It is used only when Signer is nil; a configured
	// Signer is not given it.
	CredentialsProvider CredentialsProvider

	// DNSResolver is stored on the Client; if nil, a net.Resolver-backed
	// default is stored. The VIP count is computed from the throughput
	// settings alone and does not consult it.
	DNSResolver DNSResolver

	// HTTPTransport is the round-tripper used to actually send
	// requests. If nil, a transport derived from DialFunc/ProxyURL is
	// constructed.
	HTTPTransport http.RoundTripper

	// OnEvent, if set, receives lifecycle notifications (endpoint
	// creation/teardown, meta-request finish, retries) for diagnostics.
	// It must not block the event loop: implementations should not do
	// I/O synchronously.
	OnEvent func(Event)

	// MetricsRegisterer, if set, receives a collector exposing
	// client/endpoint/meta-request stats. Optional.
	MetricsRegisterer prometheus.Registerer
}

func (c *Config) fillDefaults() {
	if c.PerVIPGbps <= 0 {
		c.PerVIPGbps = 1.25
	}
	if c.PerVIPConnections == (PerVIPConnections{}) {
		c.PerVIPConnections = DefaultPerVIPConnections
	}
	if c.PartSize <= 0 {
		c.PartSize = 8 * 1024 * 1024
	}
	if c.MaxPartSize <= 0 {
		c.MaxPartSize = 5 * 1024 * 1024 * 1024
	}
	if c.MinPartSize <= 0 {
		c.MinPartSize = 5 * 1024 * 1024
	}
	if c.MaxUploadParts <= 0 {
		c.MaxUploadParts = 10000
	}
	if c.MaxRequestsPrepareMultiple <= 0 {
		c.MaxRequestsPrepareMultiple = 2
	}
	if c.MaxConcurrentPreparations <= 0 {
		c.MaxConcurrentPreparations = 32
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialFunc == nil {
		d := &net.Dialer{Timeout: c.DialTimeout}
		c.DialFunc = d.DialContext
	}
}

// proxyEnvAllowed mirrors http.ProxyFromEnvironment but only consults the
// environment when explicitly enabled, since the object-store endpoint is
// usually reached directly.
func proxyEnvAllowed(setting ProxyEnvSetting) bool {
	if setting != ProxyEnvEnable {
		return false
	}
	_, httpProxy := os.LookupEnv("HTTP_PROXY")
	_, httpsProxy := os.LookupEnv("HTTPS_PROXY")
	return httpProxy || httpsProxy
}
