package subdomain

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/bus"
	"github.com/snagmail/snagmail/pkg/eventlog"
)

// Service executes subdomain commands through the repository and publishes
// integration events after successful saves.
type Service struct {
	Repo *aggregate.Repository[*Subdomain]
	Hub  *bus.Hub
}

// NewService wires a subdomain service over the event log.
func NewService(elog eventlog.Log, projector aggregate.InlineProjector, hub *bus.Hub) *Service {
	return &Service{
		Repo: aggregate.NewRepository(elog, StreamType, New, DecodeEvent, projector),
		Hub:  hub,
	}
}

// Provision creates a new subdomain and returns its id.
func (s *Service) Provision(ctx context.Context, tenantID, domainName string) (string, error) {
	sd := New()
	id := uuid.NewString()
	if err := sd.Create(id, tenantID, domainName); err != nil {
		return "", err
	}
	if err := s.Repo.Save(ctx, sd); err != nil {
		return "", err
	}
	log.Info().Str("module", "subdomain").Str("id", id).
		Str("domain", sd.DomainName()).Msg("Subdomain provisioned")
	s.publishStatus(sd)
	return id, nil
}

// Suspend stops delivery for a subdomain.
func (s *Service) Suspend(ctx context.Context, id, reason string) error {
	return s.update(ctx, id, func(sd *Subdomain) error { return sd.Suspend(reason) })
}

// Reinstate lifts a suspension.
func (s *Service) Reinstate(ctx context.Context, id string) error {
	return s.update(ctx, id, func(sd *Subdomain) error { return sd.Reinstate() })
}

// SetCatchAll toggles catch-all delivery.
func (s *Service) SetCatchAll(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, id, func(sd *Subdomain) error { return sd.SetCatchAll(enabled) })
}

// Delete terminally removes a subdomain.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.update(ctx, id, func(sd *Subdomain) error { return sd.Delete() })
}

func (s *Service) update(ctx context.Context, id string, op func(*Subdomain) error) error {
	sd, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := op(sd); err != nil {
		return err
	}
	if len(sd.UncommittedEvents()) == 0 {
		return nil
	}
	if err := s.Repo.Save(ctx, sd); err != nil {
		return err
	}
	s.publishStatus(sd)
	return nil
}

// publishStatus notifies other modules and caches that the subdomain's
// externally visible state changed.  Publishing is fire-and-forget.
func (s *Service) publishStatus(sd *Subdomain) {
	if s.Hub == nil {
		return
	}
	s.Hub.Dispatch(bus.SubdomainStatusChanged{
		SubdomainID: sd.ID(),
		DomainName:  sd.DomainName(),
		Suspended:   sd.Suspended(),
		Deleted:     sd.Deleted(),
	})
}
