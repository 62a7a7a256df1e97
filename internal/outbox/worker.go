package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int32
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	}
}

// Worker drains the outbox table and publishes events to the broadcast
// transport. Delivery is at-least-once; gateway consumers tolerate
// duplicates.
type Worker struct {
	db        *sql.DB
	publisher EventPublisher
	config    Config

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(db *sql.DB, publisher EventPublisher, cfg Config) *Worker {
	return &Worker{
		db:        db,
		publisher: publisher,
		config:    cfg,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("outbox: failed to begin transaction")
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repo := NewRepository(tx)

	events, err := repo.FetchUnsent(ctx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("outbox: failed to fetch unsent events")
		return
	}

	for _, event := range events {
		if pubErr := w.publisher.Publish(ctx, event); pubErr != nil {
			log.Warn().
				Err(pubErr).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("attempts", event.Attempts+1).
				Msg("outbox: publish failed")
			if err = repo.MarkFailed(ctx, event.ID); err != nil {
				return
			}
			continue
		}
		if err = repo.MarkSent(ctx, event.ID); err != nil {
			return
		}
	}

	if err = tx.Commit(); err != nil {
		log.Error().Err(err).Msg("outbox: failed to commit batch")
	}
}
