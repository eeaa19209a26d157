// Webhook ingestion endpoint.
//
// The route reads the request payload as raw bytes BEFORE any structured
// parsing: signature verification runs over the canonical byte form, and a
// payload that has passed through a JSON decoder cannot be verified anymore.
// For that reason the route is mounted outside the JSON-bound API groups and
// applies its own body cap.
//
// Status contract (drives the sender's retry behavior):
//   - 400: missing headers, bad signature, or no email on create. Permanent;
//     the sender must not retry.
//   - 500: missing server secret or a processing fault after successful
//     verification. Transient; the sender re-delivers.
//   - 200 {"received": true}: event processed or safely no-op'd.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
	"github.com/tbourn/go-user-sync-backend/internal/services"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

// maxWebhookBody caps the raw webhook payload. Provider events are small;
// anything near this size is abuse.
const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookReceived is the acknowledgement body for processed deliveries.
type WebhookReceived struct {
	Received bool `json:"received" example:"true"`
}

// ClerkWebhook godoc
// @ID          clerkWebhook
// @Summary     Identity provider webhook sink
// @Description Verifies the svix signature over the raw payload and applies the event to the user store idempotently.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       svix-id         header  string  true  "Delivery id"
// @Param       svix-timestamp  header  string  true  "Unix seconds"
// @Param       svix-signature  header  string  true  "v1,<base64> signature list"
//
// @Success     200  {object}  handlers.WebhookReceived
// @Failure     400  {object}  handlers.ErrorResponse  "Missing headers / bad signature / no email"
// @Failure     500  {object}  handlers.ErrorResponse  "Secret not configured or processing fault"
// @Router      /api/webhooks/clerk [post]
func (h *Handlers) ClerkWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Unreadable or oversized payload")
		return
	}

	env := webhook.Envelope{
		ID:        c.GetHeader(webhook.HeaderID),
		Timestamp: c.GetHeader(webhook.HeaderTimestamp),
		Signature: c.GetHeader(webhook.HeaderSignature),
		Payload:   payload,
	}
	if !env.Complete() {
		lg.Warn().Msg("missing svix headers in webhook request")
		fail(c, http.StatusBadRequest, ErrCodeMissingHeaders, "Missing required headers")
		return
	}

	// A missing secret is an operator fault, not a sender one: fail closed.
	if h.verifier == nil {
		lg.Error().Msg("webhook signing secret is not configured")
		fail(c, http.StatusInternalServerError, ErrCodeWebhookNotConfigured, "Webhook secret not configured")
		return
	}

	if err := h.verifier.Verify(env); err != nil {
		lg.Warn().Err(err).Msg("webhook signature verification failed")
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	ev, err := webhook.ParseEvent(payload)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Malformed event payload")
		return
	}

	ctx := c.Request.Context()

	// Redelivered? Acknowledge without reapplying.
	seen, err := repo.DeliverySeen(ctx, h.db, env.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeProcessingFailed, "Error processing webhook")
		return
	}
	if seen {
		lg.Info().Str("event_id", env.ID).Msg("duplicate webhook delivery acknowledged")
		middleware.ObserveWebhookEvent(ev.Type, "duplicate")
		ok(c, http.StatusOK, WebhookReceived{Received: true})
		return
	}

	res, err := h.sync.Apply(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNoEmail):
		lg.Warn().Str("event_type", ev.Type).Msg("event carries no email address")
		middleware.ObserveWebhookEvent(ev.Type, "rejected")
		fail(c, http.StatusBadRequest, ErrCodeNoEmail, "No email address provided")
		return
	default:
		lg.Error().Err(err).Str("event_type", ev.Type).Msg("error processing webhook event")
		middleware.ObserveWebhookEvent(ev.Type, "failed")
		fail(c, http.StatusInternalServerError, ErrCodeProcessingFailed, "Error processing webhook")
		return
	}

	if err := repo.RecordDelivery(ctx, h.db, env.ID, ev.Type); err != nil {
		// The event is already applied; redelivery would no-op. Not worth a retry.
		lg.Warn().Err(err).Str("event_id", env.ID).Msg("failed to record webhook delivery")
	}

	middleware.ObserveWebhookEvent(ev.Type, string(res.Outcome))
	ok(c, http.StatusOK, WebhookReceived{Received: true})
}
