package port

import (
	"context"
	"errors"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type IdentityProvider interface {
	// Resolve maps a request credential to the acting operator
	Resolve(ctx context.Context, credential string) (domain.Actor, error)
}
