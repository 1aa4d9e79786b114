package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

// Claims carried by operator tokens issued by the back office.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTProvider resolves HS256-signed bearer tokens into actors.
type JWTProvider struct {
	secret []byte
	issuer string
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

func (p *JWTProvider) Resolve(_ context.Context, credential string) (domain.Actor, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if raw == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing token", port.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, fmt.Errorf("%w: token has expired", port.ErrUnauthenticated)
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", port.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: invalid claims", port.ErrUnauthenticated)
	}
	return domain.Actor{ID: claims.Subject, Email: claims.Email}, nil
}

// IssueToken signs a token for the actor. Used by tooling and tests.
func (p *JWTProvider) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: actor.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// HeaderProvider trusts an operator email passed in clear text. Meant for
// development setups without a token issuer.
type HeaderProvider struct{}

func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{}
}

func (HeaderProvider) Resolve(_ context.Context, credential string) (domain.Actor, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(credential))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %q is not an email address", port.ErrUnauthenticated, credential)
	}
	email := strings.ToLower(addr.Address)
	return domain.Actor{ID: email, Email: email}, nil
}
