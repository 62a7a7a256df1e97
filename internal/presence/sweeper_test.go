package presence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/participant"
	"github.com/stretchr/testify/require"
)

type fakePresenceStore struct {
	// stale participants returned per threshold bucket, keyed by the
	// interval string the sweeper derives from its config
	stale    map[string][]participant.StaleParticipant
	statuses map[uuid.UUID]models.ParticipantStatus
}

func (f *fakePresenceStore) ListStale(_ context.Context, olderThan string, statuses []models.ParticipantStatus) ([]participant.StaleParticipant, error) {
	var out []participant.StaleParticipant
	for _, sp := range f.stale[olderThan] {
		current := f.statuses[sp.ID]
		for _, s := range statuses {
			if current == s {
				out = append(out, sp)
				break
			}
		}
	}
	return out, nil
}

func (f *fakePresenceStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error) {
	f.statuses[id] = status
	return &models.Participant{ID: id, Status: status}, nil
}

// fakeDB satisfies the outbox write the sweeper does per demotion
type fakeDB struct {
	execs int
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (f *fakeDB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	f.execs++
	return fakeResult{}, nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func Test_Sweep_DemotesIdleThenDisconnected(t *testing.T) {
	sessionID := uuid.New()
	quiet := uuid.New()
	gone := uuid.New()

	store := &fakePresenceStore{
		stale: map[string][]participant.StaleParticipant{
			"60 seconds": {
				{ID: quiet, SessionID: sessionID},
				{ID: gone, SessionID: sessionID},
			},
			"180 seconds": {
				{ID: gone, SessionID: sessionID},
			},
		},
		statuses: map[uuid.UUID]models.ParticipantStatus{
			quiet: models.ParticipantStatusActive,
			gone:  models.ParticipantStatusActive,
		},
	}
	db := &fakeDB{}

	sweeper := NewSweeper(store, db, clockwork.NewFakeClock(), DefaultConfig())
	sweeper.Sweep(context.Background())

	require.Equal(t, models.ParticipantStatusIdle, store.statuses[quiet])
	// Past both thresholds goes straight to disconnected, not through idle
	require.Equal(t, models.ParticipantStatusDisconnected, store.statuses[gone])
	require.Equal(t, 2, db.execs)
}

func Test_Sweep_LeavesModeratedStatusesAlone(t *testing.T) {
	sessionID := uuid.New()
	kicked := uuid.New()

	store := &fakePresenceStore{
		stale: map[string][]participant.StaleParticipant{
			"60 seconds":  {{ID: kicked, SessionID: sessionID}},
			"180 seconds": {{ID: kicked, SessionID: sessionID}},
		},
		statuses: map[uuid.UUID]models.ParticipantStatus{
			kicked: models.ParticipantStatusKicked,
		},
	}
	db := &fakeDB{}

	sweeper := NewSweeper(store, db, clockwork.NewFakeClock(), DefaultConfig())
	sweeper.Sweep(context.Background())

	require.Equal(t, models.ParticipantStatusKicked, store.statuses[kicked])
	require.Zero(t, db.execs)
}

func Test_Run_SweepsOnTicks(t *testing.T) {
	sessionID := uuid.New()
	quiet := uuid.New()

	store := &fakePresenceStore{
		stale: map[string][]participant.StaleParticipant{
			"60 seconds": {{ID: quiet, SessionID: sessionID}},
		},
		statuses: map[uuid.UUID]models.ParticipantStatus{
			quiet: models.ParticipantStatusActive,
		},
	}
	db := &fakeDB{}
	clock := clockwork.NewFakeClock()

	sweeper := NewSweeper(store, db, clock, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		return store.statuses[quiet] == models.ParticipantStatusIdle
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
