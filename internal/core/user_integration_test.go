package core_test

import (
	"context"
	"strings"
	"testing"

	"costing-service/internal/core"
)

func TestUserService_ActiveOnlyLookup(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO users (company_id, username, email, password_hash, role, is_active) VALUES
		(1, 'merchandiser', 'm@example.com', 'x', 'user', true),
		(1, 'former-emp', 'f@example.com', 'x', 'user', false);
	`)
	if err != nil {
		t.Fatalf("failed to seed users: %v", err)
	}

	users := core.NewUserService(pool)

	u, err := users.GetByUsername(ctx, "merchandiser")
	if err != nil {
		t.Fatalf("GetByUsername(merchandiser) failed: %v", err)
	}
	if u.CompanyID != 1 || u.Email != "m@example.com" {
		t.Errorf("unexpected user: company=%d email=%q", u.CompanyID, u.Email)
	}

	// A deactivated account must be invisible to login lookups.
	if _, err := users.GetByUsername(ctx, "former-emp"); err == nil {
		t.Error("expected lookup of deactivated user to fail")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got: %v", err)
	}

	// GetByID ignores is_active: session resolution still works for a user
	// deactivated mid-session.
	byID, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID(%d) failed: %v", u.ID, err)
	}
	if byID.Username != "merchandiser" {
		t.Errorf("GetByID returned username %q, want merchandiser", byID.Username)
	}

	if _, err := users.GetByID(ctx, 999999); err == nil {
		t.Error("expected GetByID of missing user to fail")
	}
}
