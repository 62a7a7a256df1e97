package session

import (
	"testing"
	"time"

	"github.com/lekbanken/playserver/internal/models"
	"github.com/stretchr/testify/require"
)

func session(status models.SessionStatus) *models.PlaySession {
	return &models.PlaySession{Status: status}
}

func Test_NextStatus_Transitions(t *testing.T) {
	cases := []struct {
		name   string
		from   models.SessionStatus
		action models.SessionAction
		want   models.SessionStatus
		ok     bool
	}{
		{"start active", models.SessionStatusActive, models.SessionActionStart, models.SessionStatusActive, true},
		{"pause active", models.SessionStatusActive, models.SessionActionPause, models.SessionStatusPaused, true},
		{"pause locked", models.SessionStatusLocked, models.SessionActionPause, models.SessionStatusPaused, true},
		{"resume paused", models.SessionStatusPaused, models.SessionActionResume, models.SessionStatusActive, true},
		{"resume active", models.SessionStatusActive, models.SessionActionResume, "", false},
		{"lock active", models.SessionStatusActive, models.SessionActionLock, models.SessionStatusLocked, true},
		{"lock paused", models.SessionStatusPaused, models.SessionActionLock, "", false},
		{"unlock locked", models.SessionStatusLocked, models.SessionActionUnlock, models.SessionStatusActive, true},
		{"unlock active", models.SessionStatusActive, models.SessionActionUnlock, "", false},
		{"end active", models.SessionStatusActive, models.SessionActionEnd, models.SessionStatusEnded, true},
		{"end paused", models.SessionStatusPaused, models.SessionActionEnd, models.SessionStatusEnded, true},
		{"cancel locked", models.SessionStatusLocked, models.SessionActionCancel, models.SessionStatusCancelled, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := nextStatus(session(tc.from), tc.action)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func Test_NextStatus_TerminalStatesRejectEverything(t *testing.T) {
	actions := []models.SessionAction{
		models.SessionActionStart, models.SessionActionPause, models.SessionActionResume,
		models.SessionActionEnd, models.SessionActionCancel,
		models.SessionActionLock, models.SessionActionUnlock,
	}

	for _, status := range []models.SessionStatus{models.SessionStatusEnded, models.SessionStatusCancelled} {
		for _, action := range actions {
			_, _, err := nextStatus(session(status), action)
			require.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", action, status)
		}
	}
}

func Test_NextStatus_StartIsOneShot(t *testing.T) {
	started := time.Now()
	s := session(models.SessionStatusActive)
	s.StartedAt = &started

	_, _, err := nextStatus(s, models.SessionActionStart)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func Test_NextStatus_UnknownAction(t *testing.T) {
	_, _, err := nextStatus(session(models.SessionStatusActive), "explode")
	require.ErrorIs(t, err, ErrUnknownAction)
}

func Test_NextStatus_StampsTimestamps(t *testing.T) {
	_, stamps, err := nextStatus(session(models.SessionStatusActive), models.SessionActionPause)
	require.NoError(t, err)
	require.NotNil(t, stamps.PausedAt)
	require.Nil(t, stamps.StartedAt)
	require.Nil(t, stamps.EndedAt)

	_, stamps, err = nextStatus(session(models.SessionStatusActive), models.SessionActionEnd)
	require.NoError(t, err)
	require.NotNil(t, stamps.EndedAt)
}
