package playclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lekbanken/playserver/pkg/playclient/tokenstore"
)

// State is the client's local lifecycle state
type State string

const (
	StateIdle    State = "idle"
	StateJoining State = "joining"
	StateJoined  State = "joined"
)

const (
	defaultPollInterval      = 3 * time.Second
	defaultHeartbeatInterval = 10 * time.Second
)

// Client orchestrates one participant in one session: join or rejoin,
// then a fixed-interval state poll and heartbeat until Close. Poll and
// heartbeat are best-effort and uncoordinated; overlapping requests are
// allowed. A failure after state was ever populated flips a reconnecting
// indicator instead of surfacing an error.
type Client struct {
	transport *transport
	store     *tokenstore.Store
	clock     clockwork.Clock

	pollInterval      time.Duration
	heartbeatInterval time.Duration

	mu           sync.Mutex
	state        State
	code         string
	cred         *tokenstore.Credential
	session      *Session
	participant  *Participant
	reconnecting bool
	attempts     int
	lastErr      error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Client
type Option func(*Client)

// WithClock swaps the wall clock, used by tests
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithHTTPClient swaps the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.transport.http = hc }
}

// WithIntervals overrides the poll and heartbeat intervals
func WithIntervals(poll, heartbeat time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = poll
		c.heartbeatInterval = heartbeat
	}
}

// NewClient creates a participant client against baseURL, persisting
// credentials in store.
func NewClient(baseURL string, store *tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		transport:         &transport{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 10 * time.Second}},
		store:             store,
		clock:             clockwork.NewRealClock(),
		pollInterval:      defaultPollInterval,
		heartbeatInterval: defaultHeartbeatInterval,
		state:             StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join performs a fresh join with a display name. The returned credential
// is persisted so the session survives a restart.
func (c *Client) Join(ctx context.Context, code, displayName string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("join from state %s", c.state)
	}
	c.state = StateJoining
	c.mu.Unlock()

	code = strings.ToUpper(code)
	resp, err := c.transport.join(ctx, code, displayName)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("join failed: %w", err)
	}

	cred := tokenstore.Credential{
		Token:         resp.Token,
		ParticipantID: resp.ParticipantID,
		SessionID:     resp.SessionID,
		DisplayName:   resp.DisplayName,
	}
	if err := c.store.Save(code, cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	c.mu.Lock()
	c.state = StateJoined
	c.code = code
	c.cred = &cred
	p := resp.Participant
	c.participant = &p
	c.lastErr = nil
	c.mu.Unlock()

	c.startLoops()
	return nil
}

// TryRejoin restores a previous join from the stored credential. Any
// rejoin failure clears the credential and reports false: the token is
// assumed invalid and a fresh Join is required. Idempotent across calls.
func (c *Client) TryRejoin(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false, fmt.Errorf("rejoin from state %s", c.state)
	}
	code := c.code
	c.mu.Unlock()

	cred, err := c.store.Load(code)
	if err != nil {
		return false, err
	}
	if cred == nil {
		return false, nil
	}

	resp, err := c.transport.rejoin(ctx, code, cred.Token)
	if err != nil {
		if clearErr := c.store.Clear(code); clearErr != nil {
			return false, clearErr
		}
		return false, nil
	}

	c.mu.Lock()
	c.state = StateJoined
	c.cred = cred
	c.participant = &resp.Participant
	c.session = &resp.Session
	c.lastErr = nil
	c.mu.Unlock()

	c.startLoops()
	return true, nil
}

// SetSessionCode points an idle client at a session code, enabling
// TryRejoin before any Join in this process.
func (c *Client) SetSessionCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		c.code = strings.ToUpper(code)
	}
}

// Leave clears the stored credential and resets to idle
func (c *Client) Leave() error {
	c.stopLoops()

	c.mu.Lock()
	code := c.code
	c.state = StateIdle
	c.cred = nil
	c.session = nil
	c.participant = nil
	c.reconnecting = false
	c.attempts = 0
	c.lastErr = nil
	c.mu.Unlock()

	if code == "" {
		return nil
	}
	return c.store.Clear(code)
}

// Close stops the poll and heartbeat loops. In-flight requests are not
// aborted; the credential stays persisted for a later rejoin.
func (c *Client) Close() {
	c.stopLoops()
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the latest known participant and session state
func (c *Client) Snapshot() (*Participant, *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant, c.session
}

// Reconnecting reports whether the last poll failed after state had been
// populated, along with the consecutive failure count.
func (c *Client) Reconnecting() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting, c.attempts
}

// Err returns the last join or poll error
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Token exposes the active credential token, used by the signal sender
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		return ""
	}
	return c.cred.Token
}

func (c *Client) startLoops() {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go c.pollLoop(ctx)
	go c.heartbeatLoop(ctx)
}

func (c *Client) stopLoops() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Client) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			go c.poll(ctx)
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			go c.heartbeat(ctx)
		}
	}
}

func (c *Client) poll(ctx context.Context) {
	c.mu.Lock()
	code, cred := c.code, c.cred
	c.mu.Unlock()
	if cred == nil {
		return
	}

	resp, err := c.transport.me(ctx, code, cred.Token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// Lost connection after a working session is shown as
		// reconnecting, not as a fresh error.
		if c.session != nil || c.participant != nil {
			c.reconnecting = true
			c.attempts++
		} else {
			c.lastErr = err
		}
		return
	}
	c.participant = &resp.Participant
	c.session = &resp.Session
	c.reconnecting = false
	c.attempts = 0
	c.lastErr = nil
}

func (c *Client) heartbeat(ctx context.Context) {
	c.mu.Lock()
	code, cred := c.code, c.cred
	c.mu.Unlock()
	if cred == nil {
		return
	}

	// Best-effort; a missed heartbeat costs at most a presence demotion
	// that the next one undoes.
	if resp, err := c.transport.heartbeat(ctx, code, cred.Token); err == nil {
		c.mu.Lock()
		c.session = &resp.Session
		c.mu.Unlock()
	}
}
