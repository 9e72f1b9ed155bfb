// Package identity verifies the credentials clients present over the wire
// and resolves them to player identities.
package identity

import (
	"context"
	"errors"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
)

// ErrInvalidCredential is returned for any credential that cannot be
// verified: bad signature, expired, malformed, or missing its subject.
var ErrInvalidCredential = errors.New("invalid credential")

// Provider turns an opaque credential string into a player identity.
type Provider interface {
	Verify(ctx context.Context, credential string) (state.Identity, error)
}
