package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/libshelf/accounts/internal/models"
)

func TestIssueToken_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	user := &models.User{
		ID:       7,
		Username: "alice",
		Role:     models.RoleAdmin,
	}

	token, err := tm.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != 7 {
		t.Errorf("UserID: got %d, want 7", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username: got %q, want %q", claims.Username, "alice")
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("Role: got %q, want %q", claims.Role, models.RoleAdmin)
	}
	if claims.ID == "" {
		t.Error("expected a jti claim")
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expected an expiry claim")
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry not near one hour out: %v remaining", remaining)
	}
}

func TestIssueToken_UniqueJTI(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	user := &models.User{ID: 1, Username: "bob", Role: models.RoleMember}

	t1, err := tm.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	t2, err := tm.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	c1, _ := tm.ValidateToken(t1)
	c2, _ := tm.ValidateToken(t2)
	if c1.ID == c2.ID {
		t.Error("expected distinct jti values for separate tokens")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)
	user := &models.User{ID: 1, Username: "bob", Role: models.RoleMember}

	token, err := tm.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	_, err = tm.ValidateToken(token)
	if !errors.Is(err, models.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	if _, err := tm.ValidateToken("definitely.not.ajwt"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}

func TestValidateToken_TamperedSignature(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)
	user := &models.User{ID: 1, Username: "bob", Role: models.RoleMember}

	token, err := other.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := tm.ValidateToken(token); err == nil {
		t.Error("expected validation to fail for a token signed with a different secret")
	}
}
