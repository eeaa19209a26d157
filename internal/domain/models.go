// Package domain defines the persistence models for user projections and
// webhook delivery records. These types are mapped with GORM and form the
// core data layer of the user-sync backend.
package domain

import "time"

// Plan values accepted on every write path (webhook and API).
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// ValidPlan reports whether p is one of the enumerated subscription plans.
func ValidPlan(p string) bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// User is the local projection of an identity-provider subject. The external
// ClerkID is the join key used by all webhook-driven mutations; Email must be
// unique across projections.
//
// Fields:
//   - ID: stable UUID primary key (char(36)), generated locally.
//   - ClerkID: unique external identity-provider id.
//   - Email: unique primary email (first address in the provider event).
//   - FirstName / LastName / ImageURL: optional display fields.
//   - Plan: one of free|pro|enterprise, defaults to free.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	ClerkID   string    `json:"clerkId"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_clerk_id"`
	Email     string    `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	FirstName *string   `json:"firstName,omitempty" gorm:"type:varchar(100)"`
	LastName  *string   `json:"lastName,omitempty"  gorm:"type:varchar(100)"`
	ImageURL  *string   `json:"imageUrl,omitempty"  gorm:"type:varchar(2048)"`
	Plan      string    `json:"plan"      gorm:"type:varchar(16);not null;default:'free';check:plan IN ('free','pro','enterprise')"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// WebhookDelivery records a processed provider event, keyed by the provider's
// delivery id (svix-id). A delivery seen again is acknowledged without being
// reapplied, which keeps at-least-once redelivery cheap.
type WebhookDelivery struct {
	EventID     string    `gorm:"type:varchar(64);primaryKey"`
	EventType   string    `gorm:"type:varchar(64);not null"`
	ProcessedAt time.Time `gorm:"not null;autoCreateTime"`
}

// TableName returns the database table name for WebhookDelivery.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
