package s3transfer

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/packit-aws-playground/s3transfer/wire"
)

// doHTTPRequest turns a wire.HTTPRequest into an actual *http.Request
// against host and executes it on hc, returning the status, headers, and
// fully-drained body.
func doHTTPRequest(ctx context.Context, hc *http.Client, host string, w *wire.HTTPRequest) (int, http.Header, []byte, error) {
	u := "https://" + host + w.Path
	if len(w.Query) > 0 {
		u += "?" + w.Query.Encode()
	}

	var bodyReader io.Reader
	if len(w.Body) > 0 {
		bodyReader = bytes.NewReader(w.Body)
	}

	req, err := http.NewRequestWithContext(ctx, w.Method, u, bodyReader)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}
