package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func decisionAt(status DecisionStatus, step, phase int) SessionDecision {
	return SessionDecision{Status: status, StepIndex: step, PhaseIndex: phase}
}

func Test_DecisionVisibleAt(t *testing.T) {
	cases := []struct {
		name     string
		decision SessionDecision
		step     int
		phase    int
		visible  bool
	}{
		{"open at earlier step", decisionAt(DecisionStatusOpen, 1, 5), 2, 0, true},
		{"open at same step earlier phase", decisionAt(DecisionStatusOpen, 2, 1), 2, 3, true},
		{"open at same step same phase", decisionAt(DecisionStatusOpen, 2, 3), 2, 3, true},
		{"open at same step later phase", decisionAt(DecisionStatusOpen, 2, 4), 2, 3, false},
		{"open at later step", decisionAt(DecisionStatusOpen, 3, 0), 2, 9, false},
		{"revealed at earlier position", decisionAt(DecisionStatusRevealed, 0, 0), 1, 0, true},
		{"draft never visible", decisionAt(DecisionStatusDraft, 0, 0), 5, 5, false},
		{"closed never visible", decisionAt(DecisionStatusClosed, 0, 0), 5, 5, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.visible, tc.decision.VisibleAt(tc.step, tc.phase))
		})
	}
}

func Test_SessionStatusIsTerminal(t *testing.T) {
	require.True(t, SessionStatusEnded.IsTerminal())
	require.True(t, SessionStatusCancelled.IsTerminal())
	require.False(t, SessionStatusActive.IsTerminal())
	require.False(t, SessionStatusPaused.IsTerminal())
	require.False(t, SessionStatusLocked.IsTerminal())
}

func Test_ParticipantStatusModerated(t *testing.T) {
	require.True(t, ParticipantStatusKicked.Moderated())
	require.True(t, ParticipantStatusBlocked.Moderated())
	require.True(t, ParticipantStatusPending.Moderated())
	require.False(t, ParticipantStatusActive.Moderated())
	require.False(t, ParticipantStatusIdle.Moderated())
	require.False(t, ParticipantStatusDisconnected.Moderated())
}
