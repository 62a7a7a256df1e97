package playclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/pkg/playclient/tokenstore"
)

const (
	cooldownMin   = 800 * time.Millisecond
	cooldownMax   = 1200 * time.Millisecond
	retryInterval = 5 * time.Second
	maxQueued     = 50
)

// ErrCooldown indicates a signal on the same channel was sent too recently
var ErrCooldown = errors.New("signal cooldown active")

// queuedSignal is a signal awaiting redelivery
type queuedSignal struct {
	Channel  string          `json:"channel"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	QueuedAt time.Time       `json:"queued_at"`
}

// SignalSender sends ephemeral in-session signals with a per-channel
// cooldown. Sends that fail at the transport level are queued, capped at
// 50 with the oldest dropped, persisted alongside the credential, and
// retried newest first every 5 seconds or on an Online nudge. Application
// rejections are not queued; the server said no and a retry would too.
type SignalSender struct {
	client *Client
	store  *tokenstore.Store
	clock  clockwork.Clock
	rand   *rand.Rand

	queueKey string

	mu       sync.Mutex
	lastSent map[string]time.Time
	queue    []queuedSignal

	cancel context.CancelFunc
	wg     sync.WaitGroup
	nudge  chan struct{}
}

// NewSignalSender creates a sender bound to an authenticated client. Any
// queue persisted under the same session survives a restart and is
// restored for retry.
func NewSignalSender(client *Client, store *tokenstore.Store) *SignalSender {
	s := &SignalSender{
		client:   client,
		store:    store,
		clock:    client.clock,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		lastSent: make(map[string]time.Time),
		nudge:    make(chan struct{}, 1),
	}

	client.mu.Lock()
	code := client.code
	client.mu.Unlock()

	prefix := client.Token()
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	s.queueKey = fmt.Sprintf("signal-queue.%s.%s", code, prefix)
	store.LoadQueue(s.queueKey, &s.queue)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.retryLoop(ctx)
	return s
}

// Send raises a signal on a channel. Within the channel's cooldown window
// the send is rejected locally with ErrCooldown and never reaches the
// server.
func (s *SignalSender) Send(ctx context.Context, channel string, payload json.RawMessage) error {
	now := s.clock.Now()

	s.mu.Lock()
	if last, ok := s.lastSent[channel]; ok && now.Sub(last) < s.cooldown() {
		s.mu.Unlock()
		return ErrCooldown
	}
	s.lastSent[channel] = now
	s.mu.Unlock()

	err := s.client.transport.raiseSignal(ctx, s.client.Token(), channel, payload)
	if err == nil {
		return nil
	}
	if !isNetworkError(err) {
		return err
	}

	s.enqueue(queuedSignal{Channel: channel, Payload: payload, QueuedAt: now})
	return nil
}

// Online nudges the retry loop, for callers that observe connectivity
// coming back.
func (s *SignalSender) Online() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued signals awaiting redelivery
func (s *SignalSender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops the retry loop. The queue stays persisted.
func (s *SignalSender) Close() {
	s.cancel()
	s.wg.Wait()
}

// cooldown returns a randomized window so simultaneous taps from many
// clients do not resynchronize.
func (s *SignalSender) cooldown() time.Duration {
	spread := int64(cooldownMax - cooldownMin)
	return cooldownMin + time.Duration(s.rand.Int63n(spread))
}

func (s *SignalSender) enqueue(sig queuedSignal) {
	s.mu.Lock()
	s.queue = append(s.queue, sig)
	if len(s.queue) > maxQueued {
		s.queue = s.queue[len(s.queue)-maxQueued:]
	}
	s.persistLocked()
	s.mu.Unlock()
}

// persistLocked writes the queue through to disk; callers hold s.mu
func (s *SignalSender) persistLocked() {
	s.store.SaveQueue(s.queueKey, s.queue)
}

func (s *SignalSender) retryLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.drain(ctx)
		case <-s.nudge:
			s.drain(ctx)
		}
	}
}

// drain retries queued signals newest first, stopping at the first
// transport failure since older entries will fail the same way.
func (s *SignalSender) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		n := len(s.queue)
		if n == 0 {
			s.mu.Unlock()
			return
		}
		sig := s.queue[n-1]
		s.mu.Unlock()

		err := s.client.transport.raiseSignal(ctx, s.client.Token(), sig.Channel, sig.Payload)
		if err != nil && isNetworkError(err) {
			return
		}

		// Delivered, or rejected by the server; either way it leaves
		// the queue.
		s.mu.Lock()
		if len(s.queue) > 0 {
			s.queue = s.queue[:len(s.queue)-1]
		}
		s.persistLocked()
		s.mu.Unlock()
	}
}
