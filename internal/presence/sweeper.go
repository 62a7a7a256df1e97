package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/internal/events"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/outbox"
	"github.com/lekbanken/playserver/internal/participant"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// Store is what the sweeper needs from the participant feature
type Store interface {
	ListStale(ctx context.Context, olderThan string, statuses []models.ParticipantStatus) ([]participant.StaleParticipant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error)
}

type Config struct {
	SweepInterval   time.Duration
	IdleAfter       time.Duration
	DisconnectAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:   30 * time.Second,
		IdleAfter:       60 * time.Second,
		DisconnectAfter: 180 * time.Second,
	}
}

// Sweeper demotes participants whose heartbeats have gone quiet:
// active -> idle after IdleAfter, then -> disconnected after
// DisconnectAfter. Host-moderated statuses are never touched; the next
// heartbeat promotes idle/disconnected participants back to active.
type Sweeper struct {
	store  Store
	db     sqlutil.DBTX
	clock  clockwork.Clock
	config Config
}

func NewSweeper(store Store, db sqlutil.DBTX, clock clockwork.Clock, config Config) *Sweeper {
	return &Sweeper{
		store:  store,
		db:     db,
		clock:  clock,
		config: config,
	}
}

// Run sweeps on a fixed interval until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("sweep_interval", s.config.SweepInterval).
		Dur("idle_after", s.config.IdleAfter).
		Dur("disconnect_after", s.config.DisconnectAfter).
		Msg("presence sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("presence sweeper stopped")
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one demotion pass
func (s *Sweeper) Sweep(ctx context.Context) {
	// Disconnect first so a participant past both thresholds does not
	// bounce through idle.
	s.demote(ctx, s.config.DisconnectAfter,
		[]models.ParticipantStatus{models.ParticipantStatusActive, models.ParticipantStatusIdle},
		models.ParticipantStatusDisconnected)
	s.demote(ctx, s.config.IdleAfter,
		[]models.ParticipantStatus{models.ParticipantStatusActive},
		models.ParticipantStatusIdle)
}

func (s *Sweeper) demote(ctx context.Context, olderThan time.Duration, from []models.ParticipantStatus, to models.ParticipantStatus) {
	stale, err := s.store.ListStale(ctx, interval(olderThan), from)
	if err != nil {
		log.Error().Err(err).Msg("presence sweep failed to list stale participants")
		return
	}

	for _, sp := range stale {
		updated, err := s.store.UpdateStatus(ctx, sp.ID, to)
		if err != nil {
			log.Error().
				Err(err).
				Str("participant_id", sp.ID.String()).
				Msg("presence sweep failed to update participant")
			continue
		}

		if err := outbox.Enqueue(ctx, s.db, sp.SessionID, "ParticipantUpdated", events.ParticipantUpdatedPayload{
			SessionID:     sp.SessionID.String(),
			ParticipantID: sp.ID.String(),
			Status:        string(updated.Status),
			IsNextStarter: updated.IsNextStarter,
		}); err != nil {
			log.Warn().Err(err).Str("participant_id", sp.ID.String()).Msg("failed to enqueue presence event")
		}

		log.Debug().
			Str("participant_id", sp.ID.String()).
			Str("status", string(to)).
			Msg("participant demoted by presence sweep")
	}
}

func interval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}
