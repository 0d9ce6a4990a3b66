package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("token is invalid")

	ErrTokenMalformed      = fmt.Errorf("%w: malformed or bad signature", ErrInvalidToken)
	ErrTokenMissingExpiry  = fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	ErrTokenMissingSubject = fmt.Errorf("%w: missing subject", ErrInvalidToken)
	ErrTokenExpired        = errors.New("token expired")
)

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenConfig is the process-wide signing configuration, built once at
// startup and passed to the token issuer.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

func NewTokenConfig(cfg config.AuthConfig) (TokenConfig, error) {
	if cfg.Secret == "" {
		return TokenConfig{}, config.ErrMissingSecret
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = "HS256"
	}
	if _, ok := signingMethods[alg]; !ok {
		return TokenConfig{}, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return TokenConfig{
		Secret:    []byte(cfg.Secret),
		Algorithm: alg,
		TTL:       ttl,
	}, nil
}

// Claims is the validated content of an access token.
type Claims struct {
	UserID    int
	ExpiresAt time.Time
}

type Tokens struct {
	cfg    TokenConfig
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

func NewTokens(cfg TokenConfig) *Tokens {
	return NewTokensWithClock(cfg, time.Now)
}

func NewTokensWithClock(cfg TokenConfig, now func() time.Time) *Tokens {
	return &Tokens{
		cfg:    cfg,
		method: signingMethods[cfg.Algorithm],
		// Expiry is checked by ValidateToken against the injected clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{cfg.Algorithm}),
			jwt.WithoutClaimsValidation(),
		),
		now: now,
	}
}

func (t *Tokens) TTL() time.Duration {
	return t.cfg.TTL
}

// IssueToken signs a token for userID that expires after the configured TTL.
func (t *Tokens) IssueToken(userID int) (string, time.Time, error) {
	now := t.now()
	expiresAt := jwt.NewNumericDate(now.Add(t.cfg.TTL))

	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: expiresAt,
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// ValidateToken checks the signature, then expiry (now >= exp is expired),
// then the subject.
func (t *Tokens) ValidateToken(raw string) (Claims, error) {
	var claims jwt.RegisteredClaims

	token, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrTokenMalformed
	}

	if claims.ExpiresAt == nil {
		return Claims{}, ErrTokenMissingExpiry
	}
	if !t.now().Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}

	if claims.Subject == "" {
		return Claims{}, ErrTokenMissingSubject
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return Claims{}, ErrTokenMalformed
	}

	return Claims{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
