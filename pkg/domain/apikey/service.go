package apikey

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/bus"
	"github.com/snagmail/snagmail/pkg/eventlog"
)

// Service executes API key commands through the repository and publishes
// integration events after successful saves.
type Service struct {
	Repo *aggregate.Repository[*APIKey]
	Hub  *bus.Hub
}

// NewService wires an API key service over the event log.
func NewService(elog eventlog.Log, projector aggregate.InlineProjector, hub *bus.Hub) *Service {
	return &Service{
		Repo: aggregate.NewRepository(elog, StreamType, New, DecodeEvent, projector),
		Hub:  hub,
	}
}

// Issue creates a new API key for a tenant and returns its id.
func (s *Service) Issue(ctx context.Context, tenantID, label, digest string) (string, error) {
	k := New()
	id := uuid.NewString()
	if err := k.Issue(id, tenantID, label, digest); err != nil {
		return "", err
	}
	if err := s.Repo.Save(ctx, k); err != nil {
		return "", err
	}
	log.Info().Str("module", "apikey").Str("id", id).
		Str("tenant", tenantID).Msg("API key issued")
	return id, nil
}

// Revoke permanently invalidates a key.  A version conflict from a racing
// revoke surfaces as eventlog.ErrVersionConflict; the caller reloads and
// retries, at which point ErrAlreadyRevoked reports the race's winner.
func (s *Service) Revoke(ctx context.Context, id, reason string) error {
	k, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := k.Revoke(reason); err != nil {
		return err
	}
	if err := s.Repo.Save(ctx, k); err != nil {
		return err
	}
	if s.Hub != nil {
		s.Hub.Dispatch(bus.APIKeyRevoked{APIKeyID: k.ID(), TenantID: k.TenantID()})
	}
	return nil
}
