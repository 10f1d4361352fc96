// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foredeck-sh/foredeck/lib/capture"
	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/netutil"
)

// Config configures a replay server.
type Config struct {
	// Source provides the records, scripted failures, and end
	// behavior.
	Source Source

	// Listen is the TCP address Start binds. Empty means
	// "127.0.0.1:0" — an ephemeral local port, readable from Addr.
	Listen string

	// Speed scales replay pace: 2 halves the recorded gaps, 0.5
	// doubles them. Zero means real time.
	Speed float64

	// ChunkSize splits SSE writes into pieces of at most this many
	// bytes, each flushed separately. Zero writes whole frames. Small
	// chunks land frame boundaries on arbitrary bytes, exercising
	// decoder reassembly end to end.
	ChunkSize int

	// FlushDelay pauses between chunk writes. Unscaled by Speed —
	// it simulates transport latency, not event timing.
	FlushDelay time.Duration

	// ExpectedToken, when set, requires "Authorization: Bearer
	// <token>" on every stream request; anything else is answered
	// 401.
	ExpectedToken string

	// FailFirst answers this many initial stream requests with 401
	// regardless of credentials, ahead of the source's scripted
	// failures. Exercises the client's refresh-and-retry path.
	FailFirst int

	// Clock paces the replay. Nil means the system clock.
	Clock clock.Clock

	// Logger records request handling. Nil means slog.Default().
	Logger *slog.Logger
}

// Server replays a record source as a local SSE endpoint.
type Server struct {
	source     Source
	speed      float64
	chunkSize  int
	flushDelay time.Duration
	expected   string
	listen     string
	clk        clock.Clock
	logger     *slog.Logger

	mu       sync.Mutex
	failures []int

	requests atomic.Uint64

	listener   net.Listener
	httpServer *http.Server
}

// New validates the configuration and builds a server. Start binds the
// listener; for in-process use mount Handler directly.
func New(config Config) (*Server, error) {
	if config.Speed < 0 {
		return nil, fmt.Errorf("speed must be non-negative, got %v", config.Speed)
	}
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be non-negative, got %d", config.ChunkSize)
	}
	if config.FailFirst < 0 {
		return nil, fmt.Errorf("fail-first must be non-negative, got %d", config.FailFirst)
	}
	switch config.Source.End {
	case "", capture.EndDone, capture.EndEOF, capture.EndDrop:
	default:
		return nil, fmt.Errorf("unknown end behavior %q", config.Source.End)
	}

	speed := config.Speed
	if speed == 0 {
		speed = 1
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	listen := config.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}

	failures := make([]int, 0, config.FailFirst+len(config.Source.Failures))
	for range config.FailFirst {
		failures = append(failures, http.StatusUnauthorized)
	}
	failures = append(failures, config.Source.Failures...)

	server := &Server{
		source:     config.Source,
		speed:      speed,
		chunkSize:  config.ChunkSize,
		flushDelay: config.FlushDelay,
		expected:   config.ExpectedToken,
		listen:     listen,
		clk:        clk,
		logger:     logger,
		failures:   failures,
	}
	server.httpServer = &http.Server{
		Handler:     server.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: streams are paced by their recorded gaps
		// and can be arbitrarily long-lived.
	}
	return server, nil
}

// Handler returns the replay handler without a listener. Tests mount
// it on httptest servers directly.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleStream)
}

// Start binds the listen address and serves in the background. The
// bound address is available from Addr.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}
	s.listener = listener

	s.logger.Info("replay server started",
		"address", listener.Addr().String(),
		"label", s.source.Label,
		"records", len(s.source.Records),
	)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("replay server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address. Empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL clients dial. Empty before Start.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Requests returns the number of stream requests handled so far,
// scripted failures included.
func (s *Server) Requests() uint64 {
	return s.requests.Load()
}

// Shutdown stops the server, waiting for in-flight streams up to the
// context deadline, then severing whatever remains.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.httpServer.Close()
	}
	return err
}

func (s *Server) handleStream(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet && request.Method != http.MethodPost {
		http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	number := s.requests.Add(1)
	logger := s.logger.With("request", number, "method", request.Method, "path", request.URL.Path)

	if status, ok := s.nextFailure(); ok {
		logger.Info("replay scripted failure", "status", status)
		writeError(writer, status, http.StatusText(status))
		return
	}

	if s.expected != "" && request.Header.Get("Authorization") != "Bearer "+s.expected {
		logger.Info("replay rejecting request without expected bearer")
		writeError(writer, http.StatusUnauthorized, "invalid or missing bearer token")
		return
	}

	if request.Method == http.MethodPost {
		// The chat request body does not change what is replayed;
		// drain it so the connection stays reusable.
		io.Copy(io.Discard, io.LimitReader(request.Body, netutil.MaxResponseSize))
	}

	s.stream(writer, request, logger)
}

// nextFailure pops the next scripted connection failure, if any.
func (s *Server) nextFailure() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return 0, false
	}
	status := s.failures[0]
	s.failures = s.failures[1:]
	return status, true
}

// writeError answers with the platform's {"error": "..."} body shape.
func writeError(writer http.ResponseWriter, status int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"error": message})
}

func (s *Server) stream(writer http.ResponseWriter, request *http.Request, logger *slog.Logger) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		http.Error(writer, "streaming not supported", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	started := s.clk.Now()
	ctx := request.Context()

	for i, record := range s.source.Records {
		if i > 0 {
			gap := record.At.Sub(s.source.Records[i-1].At)
			if !s.pause(ctx, time.Duration(float64(gap)/s.speed)) {
				logger.Debug("client went away during pacing", "records_sent", i)
				return
			}
		}
		if !s.writeFrame(ctx, writer, flusher, encodeFrame(record)) {
			logger.Debug("client went away mid-frame", "records_sent", i)
			return
		}
	}

	switch s.source.End {
	case capture.EndDone:
		s.writeFrame(ctx, writer, flusher, []byte("data: [DONE]\n\n"))
		logger.Info("replay complete with sentinel",
			"records", len(s.source.Records),
			"duration", s.clk.Now().Sub(started),
		)
	case capture.EndDrop:
		logger.Info("replay dropping connection", "records", len(s.source.Records))
		panic(http.ErrAbortHandler)
	default:
		logger.Info("replay complete",
			"records", len(s.source.Records),
			"duration", s.clk.Now().Sub(started),
		)
	}
}

// pause waits out a pacing gap, returning false when the client
// disconnects first.
func (s *Server) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-s.clk.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// writeFrame writes one SSE frame, in chunkSize pieces with a flush
// after each when chunking is configured. Returns false when the
// client is gone.
func (s *Server) writeFrame(ctx context.Context, writer io.Writer, flusher http.Flusher, frame []byte) bool {
	if s.chunkSize <= 0 {
		if _, err := writer.Write(frame); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for len(frame) > 0 {
		n := min(s.chunkSize, len(frame))
		if _, err := writer.Write(frame[:n]); err != nil {
			return false
		}
		flusher.Flush()
		frame = frame[n:]
		if len(frame) > 0 && s.flushDelay > 0 {
			if !s.pause(ctx, s.flushDelay) {
				return false
			}
		}
	}
	return true
}

// encodeFrame renders a record as SSE wire text. Multi-line payloads
// become one data: line each, per the SSE format.
func encodeFrame(record capture.Record) []byte {
	var b strings.Builder
	if record.Type != "" {
		b.WriteString("event: ")
		b.WriteString(record.Type)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(string(record.Data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
