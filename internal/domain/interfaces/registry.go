package interfaces

import (
	"context"

	domaintypes "portseal/internal/domain/types"
)

// PreKeyRegistry is the external directory of published pre-key bundles.
//
// Claim hands out at most one one-time pre-key per call and never the same
// one twice. Implementations return ErrPrincipalNotFound for unknown
// principals and may return ErrPreKeyExhausted when configured to refuse
// bundles without one-time material.
type PreKeyRegistry interface {
	Publish(ctx context.Context, bundle domaintypes.PublishedBundle) error
	Claim(ctx context.Context, principal domaintypes.PrincipalID) (domaintypes.PreKeyBundle, error)
}
