package playclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/pkg/playclient/tokenstore"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mux        *http.ServeMux
	joins      int
	rejoins    int
	validToken string
}

func newFakeServer(validToken string) *fakeServer {
	f := &fakeServer{mux: http.NewServeMux(), validToken: validToken}

	participant := Participant{ID: "p1", SessionID: "s1", DisplayName: "Maja", Role: "player", Status: "active"}
	session := Session{ID: "s1", SessionCode: "ABC123", DisplayName: "Fredagsmys", Status: "active"}

	f.mux.HandleFunc("/api/play/join", func(w http.ResponseWriter, r *http.Request) {
		f.joins++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":          f.validToken,
			"participant_id": "p1",
			"session_id":     "s1",
			"display_name":   "Maja",
			"participant":    participant,
		})
	})
	f.mux.HandleFunc("/api/play/rejoin", func(w http.ResponseWriter, r *http.Request) {
		f.rejoins++
		if r.Header.Get(headerParticipantToken) != f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid participant token"})
			return
		}
		json.NewEncoder(w).Encode(stateResponse{Participant: participant, Session: session})
	})
	f.mux.HandleFunc("/api/play/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerParticipantToken) != f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid participant token"})
			return
		}
		json.NewEncoder(w).Encode(stateResponse{Participant: participant, Session: session})
	})
	f.mux.HandleFunc("/api/play/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(heartbeatResponse{OK: true, Session: session})
	})
	return f
}

func newTestClient(t *testing.T, baseURL string) (*Client, *tokenstore.Store) {
	t.Helper()
	store, err := tokenstore.NewStore(t.TempDir())
	require.NoError(t, err)
	// Fake clock keeps the poll and heartbeat tickers silent
	return NewClient(baseURL, store, WithClock(clockwork.NewFakeClock())), store
}

func Test_Join_PersistsCredentialAndJoins(t *testing.T) {
	server := httptest.NewServer(newFakeServer("tok-1").mux)
	defer server.Close()

	client, store := newTestClient(t, server.URL)
	defer client.Close()

	require.NoError(t, client.Join(context.Background(), "abc123", "Maja"))
	require.Equal(t, StateJoined, client.State())

	// The code is normalized before it keys the credential
	cred, err := store.Load("ABC123")
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, "tok-1", cred.Token)
	require.Equal(t, "p1", cred.ParticipantID)
}

func Test_TryRejoin_RestoresWithoutJoinCall(t *testing.T) {
	fake := newFakeServer("tok-1")
	server := httptest.NewServer(fake.mux)
	defer server.Close()

	store, err := tokenstore.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("ABC123", tokenstore.Credential{
		Token: "tok-1", ParticipantID: "p1", SessionID: "s1", DisplayName: "Maja",
	}))

	client := NewClient(server.URL, store, WithClock(clockwork.NewFakeClock()))
	defer client.Close()
	client.SetSessionCode("abc123")

	ok, err := client.TryRejoin(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StateJoined, client.State())
	require.Zero(t, fake.joins)

	p, s := client.Snapshot()
	require.Equal(t, "Maja", p.DisplayName)
	require.Equal(t, "ABC123", s.SessionCode)
}

func Test_TryRejoin_InvalidTokenClearsCredential(t *testing.T) {
	server := httptest.NewServer(newFakeServer("tok-1").mux)
	defer server.Close()

	client, store := newTestClient(t, server.URL)
	defer client.Close()
	require.NoError(t, store.Save("ABC123", tokenstore.Credential{Token: "stale"}))
	client.SetSessionCode("ABC123")

	ok, err := client.TryRejoin(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StateIdle, client.State())

	cred, err := store.Load("ABC123")
	require.NoError(t, err)
	require.Nil(t, cred)

	// Idempotent: a second attempt finds nothing and stays false
	ok, err = client.TryRejoin(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_TryRejoin_NoStoredCredential(t *testing.T) {
	server := httptest.NewServer(newFakeServer("tok-1").mux)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	defer client.Close()
	client.SetSessionCode("ABC123")

	ok, err := client.TryRejoin(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Leave_ClearsCredentialAndResets(t *testing.T) {
	server := httptest.NewServer(newFakeServer("tok-1").mux)
	defer server.Close()

	client, store := newTestClient(t, server.URL)
	require.NoError(t, client.Join(context.Background(), "ABC123", "Maja"))

	require.NoError(t, client.Leave())
	require.Equal(t, StateIdle, client.State())

	cred, err := store.Load("ABC123")
	require.NoError(t, err)
	require.Nil(t, cred)

	p, s := client.Snapshot()
	require.Nil(t, p)
	require.Nil(t, s)
}

func Test_Poll_FailureAfterStateSetsReconnecting(t *testing.T) {
	fake := newFakeServer("tok-1")
	server := httptest.NewServer(fake.mux)

	client, _ := newTestClient(t, server.URL)
	defer client.Close()
	require.NoError(t, client.Join(context.Background(), "ABC123", "Maja"))

	client.poll(context.Background())
	reconnecting, attempts := client.Reconnecting()
	require.False(t, reconnecting)
	require.Zero(t, attempts)

	// Lost connection flips the indicator instead of erroring out
	server.Close()
	client.poll(context.Background())
	client.poll(context.Background())

	reconnecting, attempts = client.Reconnecting()
	require.True(t, reconnecting)
	require.Equal(t, 2, attempts)
	require.NoError(t, client.Err())
}

func Test_Poll_RecoveryClearsReconnecting(t *testing.T) {
	fake := newFakeServer("tok-1")
	server := httptest.NewServer(fake.mux)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	defer client.Close()
	require.NoError(t, client.Join(context.Background(), "ABC123", "Maja"))

	client.mu.Lock()
	client.reconnecting = true
	client.attempts = 3
	client.mu.Unlock()

	client.poll(context.Background())
	reconnecting, attempts := client.Reconnecting()
	require.False(t, reconnecting)
	require.Zero(t, attempts)
}

func Test_Join_FromJoinedStateFails(t *testing.T) {
	server := httptest.NewServer(newFakeServer("tok-1").mux)
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	defer client.Close()
	require.NoError(t, client.Join(context.Background(), "ABC123", "Maja"))

	err := client.Join(context.Background(), "ABC123", "Maja")
	require.Error(t, err)
}
