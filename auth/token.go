package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long an issued token stays valid.
const TokenLifetime = 72 * time.Hour

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

var signingMethod = jwt.SigningMethodRS512

// Principal is the identity a verified token resolves to.
type Principal struct {
	UserID string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type Issuer struct {
	key      *rsa.PrivateKey
	issuer   string
	audience string
	now      func() time.Time
}

func NewIssuer(key *rsa.PrivateKey, issuer, audience string) *Issuer {
	return &Issuer{key: key, issuer: issuer, audience: audience, now: time.Now}
}

// Issue signs a token whose subject is userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: empty subject")
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

type Verifier struct {
	key      *rsa.PublicKey
	issuer   string
	audience string
	now      func() time.Time
}

func NewVerifier(key *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{key: key, issuer: issuer, audience: audience, now: time.Now}
}

// Verify checks signature, algorithm, issuer, audience and expiry. It returns
// ErrTokenExpired or ErrTokenInvalid on failure.
func (v *Verifier) Verify(token string) (Principal, error) {
	return v.VerifyAt(token, v.now())
}

// VerifyAt is Verify with expiry judged at now.
func (v *Verifier) VerifyAt(token string, now time.Time) (Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims jwt.RegisteredClaims
	tok, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return Principal{}, ErrTokenInvalid
	}
	return Principal{UserID: claims.Subject}, nil
}
