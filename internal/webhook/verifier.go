// Package webhook implements verification and decoding of signed identity
// provider events delivered over HTTP (svix header convention: svix-id,
// svix-timestamp, svix-signature).
//
// Verification recomputes an HMAC-SHA256 over "<id>.<timestamp>.<payload>"
// with the configured signing secret and compares it against every candidate
// in the signature header using constant-time comparison. Errors are generic
// on purpose: a failed check must not reveal which part mismatched.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Required header names, fixed by the upstream provider's convention.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// secretPrefix is stripped from configured secrets before base64 decoding.
const secretPrefix = "whsec_"

// DefaultTolerance bounds the accepted clock skew between the sender's
// timestamp and local time, matching the upstream SDK.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMissingHeaders is returned when any of the three required headers is
	// absent or empty.
	ErrMissingHeaders = errors.New("missing required webhook headers")

	// ErrInvalidSignature is returned when no candidate signature matches the
	// recomputed MAC, or the timestamp is malformed or outside tolerance.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrInvalidSecret is returned when the configured signing secret is
	// empty or not valid base64. This is an operator fault, not a sender one.
	ErrInvalidSecret = errors.New("invalid webhook signing secret")
)

// Envelope is a raw inbound delivery: the unmodified payload bytes plus the
// three required headers.
type Envelope struct {
	ID        string
	Timestamp string
	Signature string
	Payload   []byte
}

// Complete reports whether all three required headers are present.
func (e Envelope) Complete() bool {
	return e.ID != "" && e.Timestamp != "" && e.Signature != ""
}

// Verifier checks delivery signatures for a single signing secret.
type Verifier struct {
	key       []byte
	tolerance time.Duration

	nowFn func() time.Time // test seam
}

// NewVerifier decodes the configured secret ("whsec_..." or bare base64) and
// returns a ready Verifier. Returns ErrInvalidSecret when the secret is empty
// or undecodable.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	if trimmed == "" {
		return nil, ErrInvalidSecret
	}
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	return &Verifier{key: key, tolerance: DefaultTolerance, nowFn: time.Now}, nil
}

// Verify checks env against the configured secret.
//
// Failure modes:
//   - ErrMissingHeaders when any required header is absent.
//   - ErrInvalidSignature when the timestamp is malformed, outside the
//     tolerance window, or no signature candidate matches.
//
// The signature header carries one or more space-separated "v1,<base64>"
// entries (the provider includes old signatures during secret rotation);
// verification passes when any one of them matches.
func (v *Verifier) Verify(env Envelope) error {
	if !env.Complete() {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(env.Timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	now := v.nowFn()
	sent := time.Unix(ts, 0)
	if sent.Before(now.Add(-v.tolerance)) || sent.After(now.Add(v.tolerance)) {
		return ErrInvalidSignature
	}

	expected := v.sign(env.ID, env.Timestamp, env.Payload)

	for _, candidate := range strings.Fields(env.Signature) {
		version, b64, found := strings.Cut(candidate, ",")
		if !found || version != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// sign computes the raw MAC over "<id>.<timestamp>.<payload>".
func (v *Verifier) sign(id, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// Sign produces a "v1,<base64>" signature for the given delivery. Exists for
// tests and local tooling that need to fabricate valid deliveries.
func Sign(secret, id string, ts time.Time, payload []byte) (string, error) {
	v, err := NewVerifier(secret)
	if err != nil {
		return "", err
	}
	mac := v.sign(id, strconv.FormatInt(ts.Unix(), 10), payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac), nil
}
