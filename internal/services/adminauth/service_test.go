package adminauth

import (
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

const (
	testTOTPSecret = "JBSWY3DPEHPK3PXP"
	testJWTSecret  = "test-jwt-secret"
	testAdminID    = int64(777)
)

func newTestService(now time.Time) *Service {
	svc := NewService(testJWTSecret, testTOTPSecret, testAdminID, time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func codeAt(t *testing.T, now time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(testTOTPSecret, now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

func TestLoginIssuesValidToken(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	token, err := svc.Login(testAdminID, codeAt(t, now))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	adminID, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if adminID != testAdminID {
		t.Fatalf("expected admin id %d, got %d", testAdminID, adminID)
	}
}

func TestLoginRejectsWrongCode(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	if _, err := svc.Login(testAdminID, "000000"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginRejectsUnknownAdmin(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	if _, err := svc.Login(123, codeAt(t, now)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	token, err := svc.Login(testAdminID, codeAt(t, now))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUnconfiguredServiceIsUnavailable(t *testing.T) {
	svc := NewService("", "", 0, time.Hour)

	if _, err := svc.Login(testAdminID, "123456"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.ValidateToken("anything"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
