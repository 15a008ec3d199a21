package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/core/ports"
)

// StoreLoginRecorder writes last-login timestamps inline. Write errors are
// logged and dropped.
type StoreLoginRecorder struct {
	store ports.IdentityStore
	log   zerolog.Logger
}

func NewStoreLoginRecorder(store ports.IdentityStore, log zerolog.Logger) *StoreLoginRecorder {
	return &StoreLoginRecorder{store: store, log: log}
}

func (r *StoreLoginRecorder) RecordLogin(ctx context.Context, identityID string, at time.Time) {
	if err := r.store.UpdateLastLogin(ctx, identityID, at); err != nil {
		r.log.Warn().Err(err).Str("identity_id", identityID).Msg("failed to record last login")
	}
}
