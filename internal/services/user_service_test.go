package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-user-sync-backend/internal/domain"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return &UserService{DB: newTestDB(t)}
}

func seedUser(t *testing.T, svc *UserService, clerkID, email string) {
	t.Helper()
	if _, err := repo.CreateUser(context.Background(), svc.DB, clerkID, repo.UserFields{Email: email}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestUserService_Get(t *testing.T) {
	svc := newUserService(t)
	seedUser(t, svc, "user_1", "a@example.com")

	u, err := svc.Get(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Email != "a@example.com" {
		t.Errorf("user = %+v", u)
	}

	if _, err := svc.Get(context.Background(), "user_unprovisioned"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	svc := newUserService(t)
	seedUser(t, svc, "user_1", "a@example.com")
	ctx := context.Background()

	plan := domain.PlanPro
	first := "Ann"
	u, err := svc.UpdateProfile(ctx, "user_1", ProfileUpdateInput{FirstName: &first, Plan: &plan})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Plan != domain.PlanPro || u.FirstName == nil || *u.FirstName != "Ann" {
		t.Errorf("user = %+v", u)
	}
}

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	svc := newUserService(t)
	seedUser(t, svc, "user_1", "a@example.com")
	ctx := context.Background()

	vip := "vip"
	if _, err := svc.UpdateProfile(ctx, "user_1", ProfileUpdateInput{Plan: &vip}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("plan vip: %v", err)
	}

	empty := ""
	if _, err := svc.UpdateProfile(ctx, "user_1", ProfileUpdateInput{FirstName: &empty}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: %v", err)
	}

	long := strings.Repeat("x", 101)
	if _, err := svc.UpdateProfile(ctx, "user_1", ProfileUpdateInput{LastName: &long}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long name: %v", err)
	}
}

func TestUserService_UpdateProfile_Unprovisioned(t *testing.T) {
	svc := newUserService(t)
	plan := domain.PlanPro
	if _, err := svc.UpdateProfile(context.Background(), "user_ghost", ProfileUpdateInput{Plan: &plan}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
