package adminauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("admin auth is unavailable")
)

type Service struct {
	secret     []byte
	totpSecret string
	adminID    int64
	tokenTTL   time.Duration
	now        func() time.Time
	configured bool
}

type tokenClaims struct {
	AdminID int64 `json:"aid"`
	jwt.RegisteredClaims
}

func NewService(jwtSecret, totpSecret string, adminID int64, tokenTTL time.Duration) *Service {
	secret := strings.TrimSpace(jwtSecret)
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	return &Service{
		secret:     []byte(secret),
		totpSecret: strings.TrimSpace(totpSecret),
		adminID:    adminID,
		tokenTTL:   tokenTTL,
		now:        time.Now,
		configured: secret != "" && strings.TrimSpace(totpSecret) != "" && adminID > 0,
	}
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.configured
}

// Login validates a one-time code against the configured TOTP secret and
// issues a bearer token for the admin API.
func (s *Service) Login(adminID int64, code string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrUnavailable
	}
	if adminID != s.adminID {
		return "", ErrUnauthorized
	}

	if !validTOTP(s.totpSecret, code, s.now()) {
		return "", ErrUnauthorized
	}

	now := s.now()
	claims := tokenClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}

	return token, nil
}

// ValidateToken parses a bearer token and returns the admin id it carries.
func (s *Service) ValidateToken(accessToken string) (int64, error) {
	if !s.IsConfigured() {
		return 0, ErrUnavailable
	}

	token, err := jwt.ParseWithClaims(accessToken, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthorized
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, ErrUnauthorized
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.AdminID != s.adminID {
		return 0, ErrUnauthorized
	}

	return claims.AdminID, nil
}

func validTOTP(secret, code string, now time.Time) bool {
	cleanCode := strings.TrimSpace(code)
	if len(cleanCode) != 6 {
		return false
	}
	valid, err := totp.ValidateCustom(cleanCode, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
