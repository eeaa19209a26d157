package webhook

import (
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
	"time"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// signedEnvelope builds a correctly signed envelope for payload at ts.
func signedEnvelope(t *testing.T, id string, ts time.Time, payload []byte) Envelope {
	t.Helper()
	sig, err := Sign(testSecret, id, ts, payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return Envelope{
		ID:        id,
		Timestamp: strconv.FormatInt(ts.Unix(), 10),
		Signature: sig,
		Payload:   payload,
	}
}

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	v.nowFn = func() time.Time { return now }
	return v
}

func TestNewVerifier_SecretFormats(t *testing.T) {
	if _, err := NewVerifier(""); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("empty secret: %v", err)
	}
	if _, err := NewVerifier("whsec_"); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("prefix only: %v", err)
	}
	if _, err := NewVerifier("whsec_!!!not-base64!!!"); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("bad base64: %v", err)
	}
	// Bare base64 without the whsec_ prefix is accepted.
	if _, err := NewVerifier(base64.StdEncoding.EncodeToString([]byte("key"))); err != nil {
		t.Errorf("bare base64 secret: %v", err)
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)
	env := signedEnvelope(t, "msg_1", now, []byte(`{"type":"user.created"}`))
	if err := v.Verify(env); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)
	env := signedEnvelope(t, "msg_1", now, []byte(`{"type":"user.created"}`))
	env.Payload = []byte(`{"type":"user.deleted"}`)
	if err := v.Verify(env); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered payload: %v", err)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)
	base := signedEnvelope(t, "msg_1", now, []byte(`{}`))

	for name, mutate := range map[string]func(*Envelope){
		"id":        func(e *Envelope) { e.ID = "" },
		"timestamp": func(e *Envelope) { e.Timestamp = "" },
		"signature": func(e *Envelope) { e.Signature = "" },
	} {
		env := base
		mutate(&env)
		if err := v.Verify(env); !errors.Is(err, ErrMissingHeaders) {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestVerify_TimestampTolerance(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)

	stale := signedEnvelope(t, "msg_1", now.Add(-6*time.Minute), []byte(`{}`))
	if err := v.Verify(stale); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("stale timestamp: %v", err)
	}
	future := signedEnvelope(t, "msg_1", now.Add(6*time.Minute), []byte(`{}`))
	if err := v.Verify(future); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("future timestamp: %v", err)
	}
	edge := signedEnvelope(t, "msg_1", now.Add(-4*time.Minute), []byte(`{}`))
	if err := v.Verify(edge); err != nil {
		t.Errorf("within tolerance: %v", err)
	}
}

func TestVerify_MalformedTimestamp(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)
	env := signedEnvelope(t, "msg_1", now, []byte(`{}`))
	env.Timestamp = "yesterday"
	if err := v.Verify(env); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("malformed timestamp: %v", err)
	}
}

func TestVerify_SignatureList(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, now)
	env := signedEnvelope(t, "msg_1", now, []byte(`{"ok":true}`))

	// Rotation: a bogus entry followed by the valid one still verifies.
	env.Signature = "v1,AAAA v2,ignored " + env.Signature
	if err := v.Verify(env); err != nil {
		t.Fatalf("multi-entry header: %v", err)
	}

	// Only unusable entries: rejected.
	env.Signature = "v2,AAAA v1,%%%notbase64"
	if err := v.Verify(env); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("unusable entries: %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	env := signedEnvelope(t, "msg_1", now, []byte(`{}`))

	other, err := NewVerifier("whsec_b3RoZXItc2VjcmV0LWtleQ==")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	other.nowFn = func() time.Time { return now }
	if err := other.Verify(env); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong secret: %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"type": "user.created",
		"data": {
			"id": "user_abc",
			"email_addresses": [{"email_address": "a@example.com", "id": "idn_1"}],
			"first_name": "Ann",
			"last_name": null,
			"image_url": null
		}
	}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Type != EventUserCreated || ev.Data.ID != "user_abc" {
		t.Errorf("event = %+v", ev)
	}
	email, ok := ev.PrimaryEmail()
	if !ok || email != "a@example.com" {
		t.Errorf("PrimaryEmail = %q, %v", email, ok)
	}
	if ev.Data.FirstName == nil || *ev.Data.FirstName != "Ann" || ev.Data.LastName != nil {
		t.Errorf("names = %v %v", ev.Data.FirstName, ev.Data.LastName)
	}

	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Errorf("expected parse error")
	}

	empty := Event{}
	if _, ok := empty.PrimaryEmail(); ok {
		t.Errorf("empty event should have no primary email")
	}
}
