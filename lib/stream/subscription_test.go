// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// fakeTokens is a scriptable TokenSource. Refresh swaps the token to
// refreshTo unless refreshErr is set.
type fakeTokens struct {
	mu           sync.Mutex
	token        string
	refreshTo    string
	refreshErr   error
	refreshCalls int
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.refreshTo
	return f.refreshTo, nil
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type stateChange struct {
	state   State
	backoff time.Duration
}

// streamRecorder funnels subscription callbacks into buffered channels
// so tests can block on them with testutil.RequireReceive.
type streamRecorder struct {
	connected chan struct{}
	events    chan any
	errors    chan error
	ended     chan struct{}
	states    chan stateChange
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{
		connected: make(chan struct{}, 16),
		events:    make(chan any, 64),
		errors:    make(chan error, 16),
		ended:     make(chan struct{}, 16),
		states:    make(chan stateChange, 64),
	}
}

func (r *streamRecorder) handlers() TypedHandlers {
	return TypedHandlers{
		OnConnected: func() { r.connected <- struct{}{} },
		OnEvent:     func(event any) { r.events <- event },
		OnError:     func(err error) { r.errors <- err },
		OnStreamEnd: func() { r.ended <- struct{}{} },
	}
}

func (r *streamRecorder) onStateChange(state State, backoff time.Duration) {
	r.states <- stateChange{state, backoff}
}

// waitState consumes state changes until target arrives.
func (r *streamRecorder) waitState(t *testing.T, target State) stateChange {
	t.Helper()
	deadline := time.After(5 * time.Second) //nolint:realclock test hang prevention
	for {
		select {
		case change := <-r.states:
			if change.state == target {
				return change
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", target)
		}
	}
}

// passthroughRoutes decodes matching frames to their raw payload
// string, which keeps assertions simple.
func passthroughRoutes(prefix string) []Route {
	return []Route{{Prefix: prefix, Decode: func(frameType string, data []byte) (any, error) {
		return string(data), nil
	}}}
}

func writeFrame(w http.ResponseWriter, frameType, data string) {
	if frameType != "" {
		fmt.Fprintf(w, "event: %s\n", frameType)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func newTestSubscription(t *testing.T, cfg ChannelConfig) *Subscription {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	sub, err := NewSubscription(cfg)
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	// Registered after the server's Close cleanup, so it runs first and
	// releases any handler parked on the request context.
	t.Cleanup(sub.Disconnect)
	return sub
}

func TestNewSubscriptionValidation(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "tok"}
	dispatch := NewTypedDispatcher(ConnectedOnControlFrame, nil, TypedHandlers{}, discardLogger())

	tests := []struct {
		name string
		cfg  ChannelConfig
	}{
		{"missing endpoint", ChannelConfig{Tokens: tokens, Dispatch: dispatch}},
		{"missing tokens", ChannelConfig{Endpoint: "http://example.invalid", Dispatch: dispatch}},
		{"missing dispatcher", ChannelConfig{Endpoint: "http://example.invalid", Tokens: tokens}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSubscription(tt.cfg); err == nil {
				t.Error("NewSubscription succeeded, want error")
			}
		})
	}
}

func TestSubscriptionDeliversFrames(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("got Accept %q, want text/event-stream", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("got Authorization %q, want Bearer tok-1", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(w, "connected", "{}")
		writeFrame(w, "inbox.task.created", `{"id":"t-1"}`)
		writeFrame(w, "inbox.task.closed", `{"id":"t-2"}`)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok-1"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, passthroughRoutes("inbox."), rec.handlers(), discardLogger()),
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	testutil.RequireReceive(t, rec.connected, 5*time.Second, "waiting for connected signal")
	if !sub.IsConnected() {
		t.Error("IsConnected() = false while stream is open")
	}
	first := testutil.RequireReceive(t, rec.events, 5*time.Second, "waiting for first event")
	if first != `{"id":"t-1"}` {
		t.Errorf("got first event %v, want t-1 payload", first)
	}
	second := testutil.RequireReceive(t, rec.events, 5*time.Second, "waiting for second event")
	if second != `{"id":"t-2"}` {
		t.Errorf("got second event %v, want t-2 payload", second)
	}

	sub.Disconnect()
	if got := sub.State(); got != StateClosed {
		t.Errorf("got state %v after Disconnect, want closed", got)
	}
}

func TestSubscriptionRefreshesTokenOn401(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			if got := r.Header.Get("Authorization"); got != "Bearer stale" {
				t.Errorf("first request got Authorization %q, want Bearer stale", got)
			}
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"token expired"}`)
		default:
			if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
				t.Errorf("retry got Authorization %q, want Bearer fresh", got)
			}
			writeFrame(w, "connected", "{}")
			<-r.Context().Done()
		}
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	tokens := &fakeTokens{token: "stale", refreshTo: "fresh"}
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint: server.URL,
		Tokens:   tokens,
		Dispatch: NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
	})
	sub.Connect()

	testutil.RequireReceive(t, rec.connected, 5*time.Second, "waiting for connected after refresh")
	if got := tokens.refreshCount(); got != 1 {
		t.Errorf("got %d refresh calls, want 1", got)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("got %d requests, want 2", got)
	}
	// The transparent refresh path is not an error.
	testutil.RequireNoReceive(t, rec.errors, 50*time.Millisecond, "after successful refresh")
}

func TestSubscriptionRefreshFailureSurfacesOriginal401(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "session revoked")
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	tokens := &fakeTokens{token: "stale", refreshErr: errors.New("refresh endpoint down")}
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        tokens,
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clock.Fake(testEpoch),
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	err := testutil.RequireReceive(t, rec.errors, 5*time.Second, "waiting for transport error")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got error of type %T, want *TransportError", err)
	}
	if transportErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", transportErr.StatusCode)
	}
	if transportErr.Body != "session revoked" {
		t.Errorf("got body %q, want the original 401 body", transportErr.Body)
	}
	// No retry without a fresh token, and only the one refresh attempt.
	if got := requests.Load(); got != 1 {
		t.Errorf("got %d requests, want 1", got)
	}
	if got := tokens.refreshCount(); got != 1 {
		t.Errorf("got %d refresh calls, want 1", got)
	}
	rec.waitState(t, StateReconnecting)
}

func TestSubscriptionNoTokenSettlesIdle(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: ""},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clock.Fake(testEpoch),
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	rec.waitState(t, StateIdle)
	if got := requests.Load(); got != 0 {
		t.Errorf("got %d requests without a token, want 0", got)
	}
	// Missing auth is a silent no-op, not an error.
	testutil.RequireNoReceive(t, rec.errors, 50*time.Millisecond, "missing token must not error")
}

func TestSubscriptionBackoffSchedule(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	clk := clock.Fake(testEpoch)
	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clk,
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, wantDelay := range want {
		change := rec.waitState(t, StateReconnecting)
		if change.backoff != wantDelay {
			t.Fatalf("attempt %d: got backoff %v, want %v", i+1, change.backoff, wantDelay)
		}
		clk.WaitForTimers(1)
		clk.Advance(wantDelay)
	}
}

func TestSubscriptionBackoffResetsAfterSuccess(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			writeFrame(w, "connected", "{}")
			writeFrame(w, "inbox.ping", "{}")
			// Returning ends the stream cleanly.
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	clk := clock.Fake(testEpoch)
	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, passthroughRoutes("inbox."), rec.handlers(), discardLogger()),
		Clock:         clk,
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	// First attempt fails: floor delay.
	change := rec.waitState(t, StateReconnecting)
	if change.backoff != 1*time.Second {
		t.Fatalf("got backoff %v after first failure, want 1s", change.backoff)
	}
	clk.WaitForTimers(1)
	clk.Advance(1 * time.Second)

	// Second attempt succeeds, delivers a frame, and ends cleanly. The
	// success snaps the backoff to the floor — without the reset this
	// delay would be 2s.
	testutil.RequireReceive(t, rec.events, 5*time.Second, "waiting for event from successful attempt")
	testutil.RequireReceive(t, rec.ended, 5*time.Second, "waiting for clean stream end")
	change = rec.waitState(t, StateReconnecting)
	if change.backoff != 1*time.Second {
		t.Fatalf("got backoff %v after success, want reset to 1s", change.backoff)
	}
	clk.WaitForTimers(1)
	clk.Advance(1 * time.Second)

	// Third attempt fails: doubling resumes from the floor.
	change = rec.waitState(t, StateReconnecting)
	if change.backoff != 2*time.Second {
		t.Fatalf("got backoff %v, want 2s", change.backoff)
	}
}

func TestSubscriptionSentinelEndsStreamAndReconnects(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			writeFrame(w, "inbox.ping", `{}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			writeFrame(w, "connected", "{}")
			<-r.Context().Done()
		}
	}))
	t.Cleanup(server.Close)

	clk := clock.Fake(testEpoch)
	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, passthroughRoutes("inbox."), rec.handlers(), discardLogger()),
		Clock:         clk,
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	testutil.RequireReceive(t, rec.events, 5*time.Second, "waiting for frame before sentinel")
	testutil.RequireReceive(t, rec.ended, 5*time.Second, "sentinel ends the stream cleanly")

	// A terminated stream still reconnects: completion of one response
	// does not end the subscription.
	rec.waitState(t, StateReconnecting)
	clk.WaitForTimers(1)
	clk.Advance(1 * time.Second)
	testutil.RequireReceive(t, rec.connected, 5*time.Second, "waiting for reconnect")
	if got := requests.Load(); got != 2 {
		t.Errorf("got %d requests, want 2", got)
	}
}

func TestSubscriptionNetworkErrorRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      endpoint,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clock.Fake(testEpoch),
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	err := testutil.RequireReceive(t, rec.errors, 5*time.Second, "waiting for dial error")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got error of type %T, want *TransportError", err)
	}
	if transportErr.StatusCode != 0 {
		t.Errorf("got status %d for network failure, want 0", transportErr.StatusCode)
	}
	if transportErr.Err == nil {
		t.Error("network failure should carry an underlying error")
	}
	rec.waitState(t, StateReconnecting)
}

func TestSubscriptionDisconnectStopsReconnectTimer(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	clk := clock.Fake(testEpoch)
	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clk,
		OnStateChange: rec.onStateChange,
	})
	sub.Connect()

	rec.waitState(t, StateReconnecting)
	testutil.RequireReceive(t, rec.errors, 5*time.Second, "draining first error")
	clk.WaitForTimers(1)

	// Disconnect with the backoff timer armed: firing it later must be
	// a no-op.
	sub.Disconnect()
	clk.Advance(10 * time.Minute)

	testutil.RequireNoReceive(t, rec.states, 100*time.Millisecond, "no transitions after disconnect")
	testutil.RequireNoReceive(t, rec.errors, 100*time.Millisecond, "no errors after disconnect")
	if got := requests.Load(); got != 1 {
		t.Errorf("got %d requests, want 1", got)
	}
	if got := sub.State(); got != StateClosed {
		t.Errorf("got state %v, want closed", got)
	}
}

// lateTransport serves a canned streaming response whose body the test
// writes by hand. It deliberately ignores request-context cancellation
// so a frame can arrive after the subscription is torn down.
type lateTransport struct {
	started chan struct{}
	body    io.ReadCloser
}

func (tr *lateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	close(tr.started)
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       tr.body,
		Request:    req,
	}, nil
}

func TestSubscriptionFrameAfterDisconnectIsDropped(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	transport := &lateTransport{started: make(chan struct{}), body: pr}

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:   "http://stream.invalid/feed",
		Tokens:     &fakeTokens{token: "tok"},
		Dispatch:   NewTypedDispatcher(ConnectedOnControlFrame, passthroughRoutes("inbox."), rec.handlers(), discardLogger()),
		HTTPClient: &http.Client{Transport: transport},
		Clock:      clock.Fake(testEpoch),
	})
	sub.Connect()

	testutil.RequireClosed(t, transport.started, 5*time.Second, "waiting for dial")
	sub.Disconnect()

	// The connection's read resolves with a complete frame only after
	// teardown. It must vanish without reaching any callback.
	fmt.Fprint(pw, "event: inbox.ping\ndata: {}\n\n")
	pw.Close()

	testutil.RequireNoReceive(t, rec.events, 200*time.Millisecond, "frame resolving after disconnect")
	testutil.RequireNoReceive(t, rec.connected, 100*time.Millisecond, "connected after disconnect")
	testutil.RequireNoReceive(t, rec.ended, 100*time.Millisecond, "stream end after disconnect")
}

func TestSubscriptionConnectSupersedesPriorAttempt(t *testing.T) {
	t.Parallel()

	arrived := make(chan int, 4)
	release := make(chan struct{})
	firstClosed := make(chan struct{})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(requests.Add(1))
		arrived <- n
		if n == 1 {
			// Parks until the superseding Connect cancels it.
			<-r.Context().Done()
			close(firstClosed)
			return
		}
		<-release
		writeFrame(w, "connected", "{}")
		writeFrame(w, "inbox.ping", fmt.Sprintf(`{"attempt":%d}`, n))
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint: server.URL,
		Tokens:   &fakeTokens{token: "tok"},
		Dispatch: NewTypedDispatcher(ConnectedOnControlFrame, passthroughRoutes("inbox."), rec.handlers(), discardLogger()),
		Clock:    clock.Fake(testEpoch),
	})
	sub.Connect()
	if got := testutil.RequireReceive(t, arrived, 5*time.Second, "waiting for first dial"); got != 1 {
		t.Fatalf("got request %d, want 1", got)
	}

	// Re-entrant Connect: the first attempt is torn down and replaced.
	sub.Connect()
	testutil.RequireClosed(t, firstClosed, 5*time.Second, "first connection should be canceled")
	if got := testutil.RequireReceive(t, arrived, 5*time.Second, "waiting for second dial"); got != 2 {
		t.Fatalf("got request %d, want 2", got)
	}

	close(release)
	event := testutil.RequireReceive(t, rec.events, 5*time.Second, "waiting for event from second attempt")
	if event != `{"attempt":2}` {
		t.Errorf("got event %v, want payload from attempt 2", event)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("got %d requests, want 2", got)
	}
}

func TestSubscriptionConnectAfterDisconnectIsNoop(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(server.Close)

	rec := newStreamRecorder()
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint:      server.URL,
		Tokens:        &fakeTokens{token: "tok"},
		Dispatch:      NewTypedDispatcher(ConnectedOnControlFrame, nil, rec.handlers(), discardLogger()),
		Clock:         clock.Fake(testEpoch),
		OnStateChange: rec.onStateChange,
	})
	sub.Disconnect()
	sub.Connect()

	testutil.RequireNoReceive(t, rec.states, 100*time.Millisecond, "closed subscription never transitions")
	if got := requests.Load(); got != 0 {
		t.Errorf("got %d requests after close, want 0", got)
	}
	if got := sub.State(); got != StateClosed {
		t.Errorf("got state %v, want closed", got)
	}
}

func TestSubscriptionPostBodyReplayedOnAuthRetry(t *testing.T) {
	t.Parallel()

	const payload = `{"conversation_id":"c-1","message":"hello"}`
	bodies := make(chan string, 4)
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("got Content-Type %q, want application/json", got)
		}
		data, _ := io.ReadAll(r.Body)
		bodies <- string(data)
		switch requests.Add(1) {
		case 1:
			w.WriteHeader(http.StatusUnauthorized)
		default:
			writeFrame(w, "", `{"content":"partial answer"}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
	}))
	t.Cleanup(server.Close)

	contents := make(chan string, 8)
	dones := make(chan struct{}, 4)
	sub := newTestSubscription(t, ChannelConfig{
		Endpoint: server.URL,
		Method:   http.MethodPost,
		Body:     []byte(payload),
		Tokens:   &fakeTokens{token: "stale", refreshTo: "fresh"},
		Dispatch: NewFieldDispatcher(FieldHandlers{
			OnContent: func(delta string) { contents <- delta },
			OnDone:    func() { dones <- struct{}{} },
		}, discardLogger()),
		Clock: clock.Fake(testEpoch),
	})
	sub.Connect()

	// The body is replayed in full on the auth retry.
	if got := testutil.RequireReceive(t, bodies, 5*time.Second, "first request body"); got != payload {
		t.Errorf("got first body %q, want full payload", got)
	}
	if got := testutil.RequireReceive(t, bodies, 5*time.Second, "retry request body"); got != payload {
		t.Errorf("got retry body %q, want full payload", got)
	}
	if got := testutil.RequireReceive(t, contents, 5*time.Second, "content delta"); got != "partial answer" {
		t.Errorf("got content %q", got)
	}
	testutil.RequireReceive(t, dones, 5*time.Second, "sentinel fires done on simple channels")
}
