// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinTokenSecretLength is the minimum HMAC secret length in bytes.
const MinTokenSecretLength = 32

// DefaultTokenTTL is the bearer token lifetime when none is configured.
const DefaultTokenTTL = time.Hour

// TokenConfig configures a JWTIssuer.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// IssuedToken is a signed bearer token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Principal is the identity proven by a verified bearer token.
type Principal struct {
	UserID    ulid.ULID
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies stateless bearer tokens. Verification checks
// signature and expiry only; there is no revocation.
type TokenIssuer interface {
	Issue(userID ulid.ULID, role Role) (*IssuedToken, error)
	Verify(token string) (*Principal, error)
}

// tokenClaims is the JWT payload: {userId, role, iat, exp}.
type tokenClaims struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer implements TokenIssuer with HS256 JWTs.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer validates cfg and creates a JWTIssuer.
func NewJWTIssuer(cfg TokenConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) < MinTokenSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("ttl", cfg.TTL.String()).
			Errorf("token ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &JWTIssuer{secret: secret, ttl: cfg.TTL, now: now}, nil
}

// Issue signs a token for the user.
func (j *JWTIssuer) Issue(userID ulid.ULID, role Role) (*IssuedToken, error) {
	issuedAt := j.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(j.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm and expiry and returns the principal.
func (j *JWTIssuer) Verify(token string) (*Principal, error) {
	if token == "" {
		return nil, oops.Code(CodeTokenInvalid).Errorf("token cannot be empty")
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeTokenExpired).Errorf("token has expired")
		}
		return nil, oops.Code(CodeTokenInvalid).Errorf("token is not valid")
	}

	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return nil, oops.Code(CodeTokenInvalid).Errorf("token subject is not valid")
	}
	if !claims.Role.Valid() {
		return nil, oops.Code(CodeTokenInvalid).Errorf("token role is not valid")
	}

	p := &Principal{UserID: userID, Role: claims.Role}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// Compile-time interface check.
var _ TokenIssuer = (*JWTIssuer)(nil)
