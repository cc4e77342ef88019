package s3transfer

import (
	"net/http"
	"net/url"
)

// buildTransport returns the round-tripper the default connection
// manager dials through. If cfg.HTTPTransport is set, it is used as-is
// (tests rely on this to interpose a fake round-tripper); otherwise an
// *http.Transport is constructed from DialFunc and the proxy
// configuration.
func buildTransport(cfg *Config) http.RoundTripper {
	if cfg.HTTPTransport != nil {
		return cfg.HTTPTransport
	}
	t := &http.Transport{
		DialContext:         cfg.DialFunc,
		MaxIdleConnsPerHost: 0, // pooling is owned by the endpoint's puddle pool, not net/http
	}

	switch {
	case cfg.ProxyURL != "":
		if u, err := url.Parse(cfg.ProxyURL); err == nil {
			t.Proxy = http.ProxyURL(u)
		}
	case proxyEnvAllowed(cfg.ProxyEnvSetting):
		t.Proxy = http.ProxyFromEnvironment
	}

	return t
}
