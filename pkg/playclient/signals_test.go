package playclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/pkg/playclient/tokenstore"
	"github.com/stretchr/testify/require"
)

type signalRecorder struct {
	mu       sync.Mutex
	channels []string
	reject   bool
}

func (rec *signalRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Channel string `json:"channel"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.reject {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "signal channel is required"})
			return
		}
		rec.channels = append(rec.channels, body.Channel)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"signal": map[string]string{}})
	}
}

func (rec *signalRecorder) received() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.channels...)
}

func newSenderClient(t *testing.T, baseURL string, clock clockwork.Clock) (*Client, *tokenstore.Store) {
	t.Helper()
	store, err := tokenstore.NewStore(t.TempDir())
	require.NoError(t, err)

	client := NewClient(baseURL, store, WithClock(clock))
	client.mu.Lock()
	client.code = "ABC123"
	client.cred = &tokenstore.Credential{Token: "tok-1"}
	client.state = StateJoined
	client.mu.Unlock()
	return client, store
}

func Test_Send_DeliversSignal(t *testing.T) {
	rec := &signalRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/play/signals", rec.handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	client, store := newSenderClient(t, server.URL, clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	require.NoError(t, sender.Send(context.Background(), "READY", nil))
	require.Equal(t, []string{"READY"}, rec.received())
	require.Zero(t, sender.Pending())
}

func Test_Send_CooldownPerChannel(t *testing.T) {
	rec := &signalRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/play/signals", rec.handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	clock := clockwork.NewFakeClock()
	client, store := newSenderClient(t, server.URL, clock)
	sender := NewSignalSender(client, store)
	defer sender.Close()

	require.NoError(t, sender.Send(context.Background(), "READY", nil))
	require.ErrorIs(t, sender.Send(context.Background(), "READY", nil), ErrCooldown)

	// Another channel has its own window
	require.NoError(t, sender.Send(context.Background(), "SOS", nil))

	// Past the widest window the channel opens again
	clock.Advance(1200 * time.Millisecond)
	require.NoError(t, sender.Send(context.Background(), "READY", nil))

	require.Equal(t, []string{"READY", "SOS", "READY"}, rec.received())
}

func Test_Send_NetworkFailureQueues(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, store := newSenderClient(t, url, clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	require.NoError(t, sender.Send(context.Background(), "READY", nil))
	require.Equal(t, 1, sender.Pending())
}

func Test_Send_ApplicationErrorNotQueued(t *testing.T) {
	rec := &signalRecorder{reject: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/play/signals", rec.handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	client, store := newSenderClient(t, server.URL, clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	err := sender.Send(context.Background(), "READY", nil)
	require.Error(t, err)
	require.Zero(t, sender.Pending())
}

func Test_Queue_CapDropsOldest(t *testing.T) {
	client, store := newSenderClient(t, "http://127.0.0.1:0", clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	for i := 0; i < maxQueued+10; i++ {
		sender.enqueue(queuedSignal{Channel: "READY", QueuedAt: time.Now()})
	}
	require.Equal(t, maxQueued, sender.Pending())
}

func Test_Drain_RetriesNewestFirst(t *testing.T) {
	rec := &signalRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/play/signals", rec.handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	client, store := newSenderClient(t, server.URL, clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	sender.enqueue(queuedSignal{Channel: "first"})
	sender.enqueue(queuedSignal{Channel: "second"})
	sender.enqueue(queuedSignal{Channel: "third"})

	sender.drain(context.Background())

	require.Equal(t, []string{"third", "second", "first"}, rec.received())
	require.Zero(t, sender.Pending())
}

func Test_Online_NudgesRetry(t *testing.T) {
	rec := &signalRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/play/signals", rec.handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	client, store := newSenderClient(t, server.URL, clockwork.NewFakeClock())
	sender := NewSignalSender(client, store)
	defer sender.Close()

	sender.enqueue(queuedSignal{Channel: "READY"})
	sender.Online()

	require.Eventually(t, func() bool {
		return sender.Pending() == 0
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"READY"}, rec.received())
}

func Test_Queue_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := tokenstore.NewStore(dir)
	require.NoError(t, err)

	client := NewClient("http://127.0.0.1:0", store, WithClock(clockwork.NewFakeClock()))
	client.mu.Lock()
	client.code = "ABC123"
	client.cred = &tokenstore.Credential{Token: "tok-1"}
	client.mu.Unlock()

	sender := NewSignalSender(client, store)
	sender.enqueue(queuedSignal{Channel: "READY"})
	sender.Close()

	// A new sender over the same store restores the pending queue
	restored := NewSignalSender(client, store)
	defer restored.Close()
	require.Equal(t, 1, restored.Pending())
}
