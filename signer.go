package s3transfer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// CredentialsProvider supplies the credentials a Signer uses. It is the
// aws-sdk-go-v2 interface directly, so any of that SDK's providers (
// static, environment, instance-profile, SSO) can be handed to a Client
// without an adapter.
type CredentialsProvider = aws.CredentialsProvider

// Signer signs an outgoing wire.HTTPRequest in place before it is sent.
// The production default wraps the object store's request-signing
// scheme; this package only declares the collaborator boundary, per the
// external-interfaces split that keeps signing out of the engine core.
type Signer interface {
	Sign(ctx context.Context, req *signableRequest) error
}

// signableRequest is the minimal view of an outgoing request a Signer
// needs: method, URL (host plus path), headers, and body, mirroring wire.HTTPRequest
// without importing the wire package into the signing boundary.
type signableRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// noopSigner is used when a Client is configured without a Signer, e.g.
// against a pre-signed endpoint or a test double that doesn't check
// authorization.
type noopSigner struct{}

func (noopSigner) Sign(ctx context.Context, req *signableRequest) error {
	return nil
}

// staticCredentialsSigner is a minimal Signer usable for local testing: it
// retrieves credentials from the configured provider and stamps an
// Authorization header carrying the access key, without implementing the
// object store's full signature computation (that belongs to the
// out-of-scope signer collaborator named in the external interfaces).
type staticCredentialsSigner struct {
	provider aws.CredentialsProvider
}

func newStaticCredentialsSigner(p aws.CredentialsProvider) Signer {
	return &staticCredentialsSigner{provider: p}
}

func (s *staticCredentialsSigner) Sign(ctx context.Context, req *signableRequest) error {
	creds, err := s.provider.Retrieve(ctx)
	if err != nil {
		return err
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = "AWS4-HMAC-SHA256 Credential=" + creds.AccessKeyID
	return nil
}
