package live

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrBadToken marks a resume token that failed verification.
var ErrBadToken = errors.New("live: invalid resume token")

// sessionIDBytes is the raw length of a session ID. IDs are shown and
// stored hex-encoded.
const sessionIDBytes = 16

// newSessionID returns a fresh 128-bit session ID in hex.
func newSessionID() (string, error) {
	raw := make([]byte, sessionIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("live: generate session id: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// tokenSigner mints and verifies resume tokens. A token is the raw
// session ID followed by an HMAC-SHA256 over it, base64url-encoded.
// Tokens carry no expiry of their own; their useful life is bounded by
// the resume window and the snapshot TTL.
type tokenSigner struct {
	secret []byte
}

// newTokenSigner builds a signer from secret. An empty secret gets a
// random one, which makes tokens valid only for this process: resume
// keeps working across reconnects but not across restarts.
func newTokenSigner(secret []byte) *tokenSigner {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("live: generate signing secret: %v", err))
		}
	}
	return &tokenSigner{secret: secret}
}

// Sign returns the resume token for a session ID.
func (t *tokenSigner) Sign(sessionID string) (string, error) {
	raw, err := hex.DecodeString(sessionID)
	if err != nil || len(raw) != sessionIDBytes {
		return "", fmt.Errorf("live: sign: malformed session id %q", sessionID)
	}
	mac := hmac.New(sha256.New, t.secret)
	mac.Write(raw)
	return base64.URLEncoding.EncodeToString(mac.Sum(raw)), nil
}

// Verify checks a token's signature and returns the session ID it was
// minted for.
func (t *tokenSigner) Verify(token string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: not base64url", ErrBadToken)
	}
	if len(data) != sessionIDBytes+sha256.Size {
		return "", fmt.Errorf("%w: wrong length", ErrBadToken)
	}
	raw, sig := data[:sessionIDBytes], data[sessionIDBytes:]
	mac := hmac.New(sha256.New, t.secret)
	mac.Write(raw)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", fmt.Errorf("%w: signature mismatch", ErrBadToken)
	}
	return hex.EncodeToString(raw), nil
}
