package webhook

import "encoding/json"

// Event types emitted by the identity provider that this service reacts to.
// Unknown types are acknowledged without effect so the endpoint stays
// forward-compatible as the provider adds new ones.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// EmailAddress is one address attached to a provider subject.
type EmailAddress struct {
	EmailAddress string `json:"email_address"`
	ID           string `json:"id"`
}

// EventData is the subject payload common to user.* events.
type EventData struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	ImageURL       *string        `json:"image_url"`
}

// Event is a verified, deserialized identity-provider event.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// PrimaryEmail returns the first (primary) email address on the event, and
// whether one is present.
func (e Event) PrimaryEmail() (string, bool) {
	if len(e.Data.EmailAddresses) == 0 || e.Data.EmailAddresses[0].EmailAddress == "" {
		return "", false
	}
	return e.Data.EmailAddresses[0].EmailAddress, true
}

// ParseEvent deserializes a verified payload. Call only after Verify has
// accepted the envelope; the canonical byte form matters up to that point.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
