package chaosaddr

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/bus"
	"github.com/snagmail/snagmail/pkg/eventlog"
)

// Service executes chaos address commands through the repository and
// publishes integration events after successful saves.
type Service struct {
	Repo *aggregate.Repository[*ChaosAddress]
	Hub  *bus.Hub
}

// NewService wires a chaos address service over the event log.
func NewService(elog eventlog.Log, projector aggregate.InlineProjector, hub *bus.Hub) *Service {
	return &Service{
		Repo: aggregate.NewRepository(elog, StreamType, New, DecodeEvent, projector),
		Hub:  hub,
	}
}

// Define creates a new chaos address under a subdomain and returns its id.
func (s *Service) Define(ctx context.Context, subdomainID, domainName, localPart, mode string) (string, error) {
	ca := New()
	id := uuid.NewString()
	if err := ca.Create(id, subdomainID, domainName, localPart, mode); err != nil {
		return "", err
	}
	if err := s.Repo.Save(ctx, ca); err != nil {
		return "", err
	}
	log.Info().Str("module", "chaosaddr").Str("id", id).
		Str("address", ca.AddressKey()).Str("mode", mode).Msg("Chaos address defined")
	s.publishUpdated(ca)
	return id, nil
}

// ChangeMode switches the failure mode of a chaos address.
func (s *Service) ChangeMode(ctx context.Context, id, mode string) error {
	return s.update(ctx, id, func(ca *ChaosAddress) error { return ca.ChangeMode(mode) })
}

// Remove terminally deletes a chaos address.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.update(ctx, id, func(ca *ChaosAddress) error { return ca.Delete() })
}

func (s *Service) update(ctx context.Context, id string, op func(*ChaosAddress) error) error {
	ca, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := op(ca); err != nil {
		return err
	}
	if err := s.Repo.Save(ctx, ca); err != nil {
		return err
	}
	s.publishUpdated(ca)
	return nil
}

func (s *Service) publishUpdated(ca *ChaosAddress) {
	if s.Hub == nil {
		return
	}
	s.Hub.Dispatch(bus.ChaosAddressUpdated{
		ChaosAddressID: ca.ID(),
		SubdomainID:    ca.SubdomainID(),
		DomainName:     ca.DomainName(),
		AddressKey:     ca.AddressKey(),
		Deleted:        ca.Deleted(),
	})
}
