// Package services defines the business logic for webhook-driven user
// synchronization and profile management. This file implements the event
// application state machine: verified identity-provider events are folded
// into the local user store with idempotent outcomes, so at-least-once and
// out-of-order delivery converge to the same state.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/repo"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

// SyncOutcome names the effect applying an event had on the store.
type SyncOutcome string

const (
	// OutcomeCreated: a new projection was inserted.
	OutcomeCreated SyncOutcome = "created"
	// OutcomeUpdated: an existing projection was overwritten.
	OutcomeUpdated SyncOutcome = "updated"
	// OutcomeUpserted: an update arrived before its create and materialized
	// the projection (reordered delivery tolerance).
	OutcomeUpserted SyncOutcome = "upserted"
	// OutcomeDeleted: the projection was removed.
	OutcomeDeleted SyncOutcome = "deleted"
	// OutcomeNoop: the event was a duplicate delivery; state already matched.
	OutcomeNoop SyncOutcome = "noop"
	// OutcomeSkipped: the event type is unknown and was acknowledged without
	// touching state.
	OutcomeSkipped SyncOutcome = "skipped"
)

// SyncResult reports what applying one event did.
type SyncResult struct {
	Outcome SyncOutcome
	ClerkID string
}

// SyncService folds identity-provider events into User projections.
// Safe for concurrent use; idempotence is a property of the operations
// themselves (keyed upsert/delete), not of added locking.
type SyncService struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// Apply dispatches on the event type, keyed by the subject's external id.
//
// Semantics:
//   - user.created: requires a primary email (ErrNoEmail otherwise); an
//     existing projection for the external id means duplicate delivery and
//     yields a no-op success.
//   - user.updated: overwrites provider-owned fields, leaving the stored
//     email unchanged when the event carries none; a missing projection
//     (update before create) is upserted rather than failed, and the upsert
//     insert does require an email.
//   - user.deleted: removes the projection; deleting an absent one is a
//     no-op success.
//   - anything else: logged and skipped so new provider event types never
//     break the endpoint.
func (s *SyncService) Apply(ctx context.Context, ev webhook.Event) (SyncResult, error) {
	switch ev.Type {
	case webhook.EventUserCreated:
		return s.applyCreated(ctx, ev)
	case webhook.EventUserUpdated:
		return s.applyUpdated(ctx, ev)
	case webhook.EventUserDeleted:
		return s.applyDeleted(ctx, ev)
	default:
		s.Log.Info().Str("event_type", ev.Type).Msg("unhandled webhook event type")
		return SyncResult{Outcome: OutcomeSkipped, ClerkID: ev.Data.ID}, nil
	}
}

func (s *SyncService) applyCreated(ctx context.Context, ev webhook.Event) (SyncResult, error) {
	email, ok := ev.PrimaryEmail()
	if !ok {
		return SyncResult{}, ErrNoEmail
	}

	if _, err := repo.GetUserByClerkID(ctx, s.DB, ev.Data.ID); err == nil {
		// Duplicate delivery; the projection already exists.
		return SyncResult{Outcome: OutcomeNoop, ClerkID: ev.Data.ID}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return SyncResult{}, err
	}

	_, err := repo.CreateUser(ctx, s.DB, ev.Data.ID, fieldsOf(ev, email))
	if repo.IsDuplicate(err) {
		// Lost a race against a concurrent duplicate delivery; state converged.
		return SyncResult{Outcome: OutcomeNoop, ClerkID: ev.Data.ID}, nil
	}
	if err != nil {
		return SyncResult{}, err
	}
	s.Log.Info().Str("clerk_id", ev.Data.ID).Msg("user created")
	return SyncResult{Outcome: OutcomeCreated, ClerkID: ev.Data.ID}, nil
}

func (s *SyncService) applyUpdated(ctx context.Context, ev webhook.Event) (SyncResult, error) {
	// An update without an email address still applies names and image;
	// an empty email leaves the stored address unchanged.
	email, _ := ev.PrimaryEmail()

	_, err := repo.UpdateUserByClerkID(ctx, s.DB, ev.Data.ID, fieldsOf(ev, email))
	if errors.Is(err, repo.ErrNotFound) {
		// Update arrived before its create: materialize the projection.
		// Inserting requires an address, so only this branch demands one.
		if email == "" {
			return SyncResult{}, ErrNoEmail
		}
		if _, err := repo.CreateUser(ctx, s.DB, ev.Data.ID, fieldsOf(ev, email)); err != nil {
			if repo.IsDuplicate(err) {
				return SyncResult{Outcome: OutcomeNoop, ClerkID: ev.Data.ID}, nil
			}
			return SyncResult{}, err
		}
		s.Log.Info().Str("clerk_id", ev.Data.ID).Msg("user upserted from out-of-order update")
		return SyncResult{Outcome: OutcomeUpserted, ClerkID: ev.Data.ID}, nil
	}
	if err != nil {
		return SyncResult{}, err
	}
	s.Log.Info().Str("clerk_id", ev.Data.ID).Msg("user updated")
	return SyncResult{Outcome: OutcomeUpdated, ClerkID: ev.Data.ID}, nil
}

func (s *SyncService) applyDeleted(ctx context.Context, ev webhook.Event) (SyncResult, error) {
	n, err := repo.DeleteUserByClerkID(ctx, s.DB, ev.Data.ID)
	if err != nil {
		return SyncResult{}, err
	}
	if n == 0 {
		return SyncResult{Outcome: OutcomeNoop, ClerkID: ev.Data.ID}, nil
	}
	s.Log.Info().Str("clerk_id", ev.Data.ID).Msg("user deleted")
	return SyncResult{Outcome: OutcomeDeleted, ClerkID: ev.Data.ID}, nil
}

func fieldsOf(ev webhook.Event, email string) repo.UserFields {
	return repo.UserFields{
		Email:     email,
		FirstName: ev.Data.FirstName,
		LastName:  ev.Data.LastName,
		ImageURL:  ev.Data.ImageURL,
	}
}
