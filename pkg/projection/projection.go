// Package projection folds committed events into read-model documents.
//
// Projections run in two lifecycles: inline, applied in the same logical
// unit of work as the event append so the synchronous query path never
// observes a read model behind its own aggregate; and rebuild, an explicit
// administrative replay of all history into freshly truncated collections.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/readmodel"
)

var (
	// ErrRebuildInProgress is returned when a rebuild is requested while
	// one is already running for the same projection.
	ErrRebuildInProgress = errors.New("rebuild already in progress")

	// ErrUnknownProjection is returned for a rebuild of an unregistered
	// projection name.
	ErrUnknownProjection = errors.New("unknown projection")
)

// Progress log cadence during rebuild.
const rebuildLogEvery = 1000

// Projection is an independent, partial subscriber to the event vocabulary.
// Apply must be side-effect-free beyond writing the read model: no external
// I/O, no event publishing.  Events the projection has no handler for are
// skipped silently.
type Projection interface {
	// Name identifies the projection for rebuild requests and logs.
	Name() string

	// Collections lists the read-model collections this projection owns;
	// they are truncated at the start of a rebuild.
	Collections() []string

	// Apply folds one committed event into the read model.
	Apply(ctx context.Context, store readmodel.Store, ev eventlog.Event) error
}

// Engine applies registered projections inline and coordinates rebuilds.
type Engine struct {
	elog   eventlog.Log
	store  readmodel.Store
	projs  []Projection
	logger zerolog.Logger

	mu         sync.Mutex
	rebuilding map[string]bool
}

// NewEngine creates an engine over the given log and store.
func NewEngine(elog eventlog.Log, store readmodel.Store, projs ...Projection) *Engine {
	return &Engine{
		elog:       elog,
		store:      store,
		projs:      projs,
		logger:     log.With().Str("module", "projection").Logger(),
		rebuilding: make(map[string]bool),
	}
}

// Names returns the registered projection names.
func (e *Engine) Names() []string {
	names := make([]string, len(e.projs))
	for i, p := range e.projs {
		names[i] = p.Name()
	}
	return names
}

// ApplyCommitted folds freshly committed events through every registered
// projection.  Called from the repository save path.
func (e *Engine) ApplyCommitted(ctx context.Context, events []eventlog.Event) error {
	for _, p := range e.projs {
		for _, ev := range events {
			if err := p.Apply(ctx, e.store, ev); err != nil {
				return fmt.Errorf("projection %s on %q seq %d: %w",
					p.Name(), ev.Name, ev.Sequence, err)
			}
		}
	}
	return nil
}

// Rebuild truncates the named projection's collections and refolds the
// entire event history into them.  Only one rebuild per projection may run
// at a time; a concurrent request returns ErrRebuildInProgress.  Rebuilds
// of other projections and inline application are unaffected.
//
// A failed rebuild leaves partially rebuilt collections behind; the failure
// is logged with the position reached and the operation must be re-run.
// Returns the number of distinct streams folded.
func (e *Engine) Rebuild(ctx context.Context, name string) (int, error) {
	var proj Projection
	for _, p := range e.projs {
		if p.Name() == name {
			proj = p
			break
		}
	}
	if proj == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProjection, name)
	}

	e.mu.Lock()
	if e.rebuilding[name] {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: %q", ErrRebuildInProgress, name)
	}
	e.rebuilding[name] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.rebuilding, name)
		e.mu.Unlock()
	}()

	plog := e.logger.With().Str("projection", name).Logger()
	start := time.Now()
	plog.Info().Msg("Rebuild starting")
	for _, coll := range proj.Collections() {
		if err := e.store.DeleteAll(ctx, coll); err != nil {
			plog.Error().Err(err).Str("collection", coll).Msg("Rebuild truncate failed")
			return 0, fmt.Errorf("truncate %s: %w", coll, err)
		}
	}

	streams := make(map[string]bool)
	count := 0
	var applyErr error
	visitErr := e.elog.VisitAll(ctx, func(ev eventlog.Event) bool {
		if err := ctx.Err(); err != nil {
			applyErr = err
			return false
		}
		if err := proj.Apply(ctx, e.store, ev); err != nil {
			applyErr = fmt.Errorf("apply %q seq %d of %s/%s: %w",
				ev.Name, ev.Sequence, ev.StreamType, ev.StreamID, err)
			return false
		}
		streams[ev.StreamType+"/"+ev.StreamID] = true
		count++
		if count%rebuildLogEvery == 0 {
			plog.Info().Int("events", count).Int("streams", len(streams)).
				Msg("Rebuild progress")
		}
		return true
	})
	if applyErr == nil {
		applyErr = visitErr
	}
	if applyErr != nil {
		plog.Error().Err(applyErr).Int("events", count).Int("streams", len(streams)).
			Msg("Rebuild failed, read model left partially rebuilt; re-run required")
		return len(streams), applyErr
	}
	plog.Info().Int("events", count).Int("streams", len(streams)).
		Dur("took", time.Since(start)).Msg("Rebuild complete")
	return len(streams), nil
}
