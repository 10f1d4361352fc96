// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/netutil"
	"github.com/foredeck-sh/foredeck/lib/sse"
)

// Reconnect backoff. The delay doubles on consecutive failures up to
// the cap and snaps back to the floor after any successful connection.
// There is no retry limit: a subscription keeps trying until it is
// disconnected.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// ChannelConfig describes one streaming channel: where to dial, how to
// authenticate, and how to interpret frames.
type ChannelConfig struct {
	// Endpoint is the absolute URL of the stream. Required.
	Endpoint string

	// Method is the HTTP method; GET when empty.
	Method string

	// Body is the request body for POST channels. It is replayed from
	// the start on every attempt — the one-shot auth retry and every
	// reconnect included.
	Body []byte

	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource

	// Dispatch interprets decoded frames. Required.
	Dispatch Dispatcher

	// HTTPClient overrides the client used to dial. The default has no
	// timeout, which is deliberate: a healthy event stream stays open
	// indefinitely.
	HTTPClient *http.Client

	// Clock overrides the timer source for reconnect backoff. Tests
	// inject clock.Fake; nil means the system clock.
	Clock clock.Clock

	// Logger receives connection diagnostics. nil means slog.Default().
	Logger *slog.Logger

	// Label names the channel in log output, e.g. "inbox" or "chat".
	Label string

	// OnStateChange observes lifecycle transitions. backoff is the
	// pending reconnect delay when state is StateReconnecting and zero
	// otherwise. Like every other callback it stops firing once the
	// subscription is disconnected, so StateClosed is never reported.
	OnStateChange func(state State, backoff time.Duration)
}

// Subscription is a resilient connection to one streaming channel. It
// dials the endpoint, decodes frames, dispatches them through the
// configured Dispatcher, and reconnects with exponential backoff for
// as long as it stays connected. All callbacks fire sequentially on
// the subscription's stream goroutine.
//
// A Subscription is single-use: after Disconnect it stays closed and
// Connect becomes a no-op. Bindings that need to resume later build a
// fresh Subscription per activation.
type Subscription struct {
	config ChannelConfig
	client *http.Client
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	closed     bool
}

// NewSubscription validates the config and returns an idle
// subscription. Nothing is dialed until Connect.
func NewSubscription(cfg ChannelConfig) (*Subscription, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("stream: endpoint required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("stream: token source required")
	}
	if cfg.Dispatch == nil {
		return nil, errors.New("stream: dispatcher required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Label != "" {
		logger = logger.With("channel", cfg.Label)
	}
	return &Subscription{
		config: cfg,
		client: client,
		clock:  clk,
		logger: logger,
		state:  StateIdle,
	}, nil
}

// Connect starts the stream goroutine. Calling Connect while a
// previous attempt is live tears that attempt down first, so repeated
// calls converge on exactly one active connection. After Disconnect,
// Connect is a no-op.
//
// The new stream goroutine does not start until the previous one has
// fully exited, which keeps dispatcher access single-threaded across
// restarts.
func (s *Subscription) Connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prevCancel := s.cancel
	prevDone := s.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	go func() {
		defer close(done)
		if prevDone != nil {
			<-prevDone
		}
		if !s.live(gen) {
			return
		}
		s.streamLoop(ctx, gen)
	}()
}

// Reconnect drops the current connection, if any, and dials fresh with
// the backoff reset to its floor. Useful when the caller knows
// conditions changed — a token was replaced, the network came back —
// and waiting out a long backoff would be pointless.
func (s *Subscription) Reconnect() {
	s.Connect()
}

// Disconnect permanently closes the subscription: it cancels any
// in-flight request, clears any pending reconnect timer, and
// invalidates the liveness of outstanding work so that no callback
// fires afterward. A timer or response that resolves later lands in a
// no-op. Idempotent. Safe to call from within a callback.
func (s *Subscription) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateClosed
	s.generation++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the stream is open and decoding frames.
func (s *Subscription) IsConnected() bool {
	return s.State() == StateOpen
}

// live reports whether gen is still the current generation. Every
// callback and state transition checks this immediately before firing:
// work belonging to a superseded Connect or a completed Disconnect
// resolves silently.
func (s *Subscription) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.generation
}

// guarded runs fn only if gen is still live.
func (s *Subscription) guarded(gen uint64, fn func()) {
	if s.live(gen) {
		fn()
	}
}

func (s *Subscription) setState(gen uint64, state State, backoff time.Duration) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	if s.config.OnStateChange != nil {
		s.config.OnStateChange(state, backoff)
	}
}

// streamLoop runs connect attempts until the subscription is torn down
// or found unauthenticated. One iteration per connection.
func (s *Subscription) streamLoop(ctx context.Context, gen uint64) {
	backoff := initialBackoff
	for {
		established, err := s.runAttempt(ctx, gen)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errNoToken) {
			// Not authenticated. This is client state, not a fault:
			// settle into Idle without retrying or reporting.
			s.logger.Debug("no auth token, leaving stream idle")
			s.setState(gen, StateIdle, 0)
			return
		}
		if established {
			backoff = initialBackoff
		}
		if err != nil {
			s.logger.Warn("stream attempt failed",
				"error", err,
				"backoff", backoff)
			s.guarded(gen, func() { s.config.Dispatch.StreamError(err) })
		} else {
			// Server ended the stream cleanly. Reconnecting is still
			// correct: notification channels end streams on deploys
			// and idle timeouts, and expect clients to come back.
			s.logger.Debug("stream ended by server", "backoff", backoff)
		}
		s.setState(gen, StateReconnecting, backoff)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(backoff):
		}
		if ctx.Err() != nil {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// runAttempt performs one connect-decode-dispatch cycle. established
// reports whether a 2xx response was obtained; the caller uses it to
// reset backoff even when the connection later drops mid-stream. A nil
// error with established=true means the server ended the stream
// cleanly.
func (s *Subscription) runAttempt(ctx context.Context, gen uint64) (established bool, err error) {
	s.setState(gen, StateConnecting, 0)
	resp, err := s.open(ctx)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	s.setState(gen, StateOpen, 0)
	s.guarded(gen, s.config.Dispatch.BeginStream)

	scanner := sse.NewScanner(resp.Body)
	for scanner.Next() {
		frame := scanner.Frame()
		s.guarded(gen, func() { s.config.Dispatch.Dispatch(frame) })
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || isCancellation(err) {
			return true, ctx.Err()
		}
		return true, &TransportError{Err: fmt.Errorf("reading stream: %w", err)}
	}
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	terminated := scanner.Terminated()
	s.guarded(gen, func() { s.config.Dispatch.StreamEnd(terminated) })
	return true, nil
}

// open dials the endpoint and returns a response with a 2xx status
// whose body is the event stream. A 401 triggers at most one token
// refresh and one retry; if the refresh fails or yields no token, the
// error carries the original 401 and its body so the caller sees what
// the server actually said.
func (s *Subscription) open(ctx context.Context) (*http.Response, error) {
	token, err := s.config.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream: reading auth token: %w", err)
	}
	if token == "" {
		return nil, errNoToken
	}
	resp, err := s.dial(ctx, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		body := netutil.ErrorBody(resp.Body)
		resp.Body.Close()
		fresh, refreshErr := s.config.Tokens.Refresh(ctx)
		if refreshErr != nil || fresh == "" {
			if refreshErr != nil {
				s.logger.Warn("token refresh failed", "error", refreshErr)
			}
			return nil, &TransportError{StatusCode: http.StatusUnauthorized, Body: body}
		}
		s.logger.Debug("retrying with refreshed token")
		resp, err = s.dial(ctx, fresh)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := netutil.ErrorBody(resp.Body)
		resp.Body.Close()
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp, nil
}

func (s *Subscription) dial(ctx context.Context, token string) (*http.Response, error) {
	method := s.config.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(s.config.Body) > 0 {
		body = bytes.NewReader(s.config.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("stream: building request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	if len(s.config.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}
