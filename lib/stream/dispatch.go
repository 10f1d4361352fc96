// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/foredeck-sh/foredeck/lib/sse"
)

// Control frame types shared by the typed channels.
const (
	frameConnected = "connected"
	frameError     = "error"
)

// Dispatcher interprets decoded frames for one channel shape. A
// dispatcher is owned by a single subscription and invoked only from
// its stream goroutine, so implementations carry per-connection state
// without locking.
type Dispatcher interface {
	// BeginStream resets per-connection state. Called once for each
	// established connection, before any Dispatch call.
	BeginStream()

	// Dispatch routes one frame to its callback.
	Dispatch(frame sse.Frame)

	// StreamEnd reports that the server ended the stream cleanly.
	// terminated is true when the end came from the [DONE] sentinel
	// rather than plain EOF.
	StreamEnd(terminated bool)

	// StreamError forwards a transport-level failure from the owning
	// subscription to the channel's error callback, so consumers get
	// connection faults and in-band errors through one path.
	StreamError(err error)
}

// Route maps a frame-type prefix to a payload decoder. The decoder
// returns the domain event to hand to OnEvent; a decode error is
// surfaced as a ProtocolError without dropping the connection.
type Route struct {
	// Prefix matches frame types by prefix, e.g. "inbox." matches
	// "inbox.task.created". Routes are tried in order; the first match
	// wins.
	Prefix string

	// Decode parses the frame payload. frameType carries the full wire
	// type so one route can fan out to several event shapes. Returning
	// (nil, nil) drops the frame: the route recognizes the prefix but
	// not this particular type.
	Decode func(frameType string, data []byte) (any, error)
}

// TypedHandlers are the callbacks for a typed channel. Any callback
// may be nil.
type TypedHandlers struct {
	// OnConnected fires at most once per connection, per the channel's
	// ConnectedPolicy.
	OnConnected func()

	// OnEvent receives each decoded domain event.
	OnEvent func(event any)

	// OnError receives server-reported errors, payload decode
	// failures, and transport errors from the owning subscription.
	OnError func(err error)

	// OnStreamEnd fires when the server ends the stream cleanly,
	// whether by sentinel or by EOF.
	OnStreamEnd func()
}

// TypedDispatcher handles channels whose frames carry a type: control
// frames ("connected", "error") plus domain frames matched by route
// prefix. Frames matching no route are dropped with a debug log so an
// older client survives a newer server.
type TypedDispatcher struct {
	routes   []Route
	policy   ConnectedPolicy
	handlers TypedHandlers
	logger   *slog.Logger

	connectedFired bool
}

// NewTypedDispatcher builds a dispatcher over the given routes. A nil
// logger falls back to slog.Default().
func NewTypedDispatcher(policy ConnectedPolicy, routes []Route, handlers TypedHandlers, logger *slog.Logger) *TypedDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedDispatcher{
		routes:   routes,
		policy:   policy,
		handlers: handlers,
		logger:   logger,
	}
}

func (d *TypedDispatcher) BeginStream() {
	d.connectedFired = false
}

func (d *TypedDispatcher) Dispatch(frame sse.Frame) {
	switch frame.Type {
	case frameConnected:
		d.markConnected()
	case frameError:
		d.emitError(serverError(frame.Data))
	default:
		for _, route := range d.routes {
			if !strings.HasPrefix(frame.Type, route.Prefix) {
				continue
			}
			event, err := route.Decode(frame.Type, []byte(frame.Data))
			if err != nil {
				d.emitError(&ProtocolError{FrameType: frame.Type, Raw: frame.Data, Err: err})
				return
			}
			if event == nil {
				d.logger.Debug("ignoring unhandled frame type", "frame.type", frame.Type)
				return
			}
			if d.policy == ConnectedOnFirstFrame {
				d.markConnected()
			}
			if d.handlers.OnEvent != nil {
				d.handlers.OnEvent(event)
			}
			return
		}
		d.logger.Debug("ignoring unrecognized frame type", "frame.type", frame.Type)
	}
}

func (d *TypedDispatcher) StreamEnd(terminated bool) {
	if d.handlers.OnStreamEnd != nil {
		d.handlers.OnStreamEnd()
	}
}

func (d *TypedDispatcher) StreamError(err error) {
	d.emitError(err)
}

func (d *TypedDispatcher) markConnected() {
	if d.connectedFired {
		return
	}
	d.connectedFired = true
	if d.handlers.OnConnected != nil {
		d.handlers.OnConnected()
	}
}

func (d *TypedDispatcher) emitError(err error) {
	if d.handlers.OnError != nil {
		d.handlers.OnError(err)
	}
}

// serverError converts an "error" frame payload to an error. The
// payload is normally {"error": "..."}; anything else is forwarded as
// raw text rather than dropped.
func serverError(data string) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.Error != "" {
		return &ServerError{Message: payload.Error}
	}
	return &ServerError{Message: data}
}

// FieldHandlers are the callbacks for a simple channel. Any callback
// may be nil.
type FieldHandlers struct {
	// OnConversationID receives the conversation the stream is bound
	// to, typically on the first payload.
	OnConversationID func(id string)

	// OnStatus receives status transitions along with the full payload
	// they arrived in.
	OnStatus func(status string, payload json.RawMessage)

	// OnContent receives incremental content deltas.
	OnContent func(delta string)

	// OnError receives server-reported errors, payload decode
	// failures, and transport errors from the owning subscription.
	OnError func(err error)

	// OnDone fires at most once per connection, on a done field or the
	// [DONE] sentinel.
	OnDone func()

	// OnStreamEnd fires when the server ends the stream cleanly.
	OnStreamEnd func()
}

// FieldDispatcher handles simple channels: untyped frames whose JSON
// payload carries some subset of the well-known fields. A single
// payload may set several fields at once; callbacks fire in a fixed
// order — conversation_id, status, content, error, done — so identity
// precedes status, status precedes content, and done always comes
// last.
type FieldDispatcher struct {
	handlers FieldHandlers
	logger   *slog.Logger

	doneFired bool
}

// NewFieldDispatcher builds a dispatcher over the well-known field
// set. A nil logger falls back to slog.Default().
func NewFieldDispatcher(handlers FieldHandlers, logger *slog.Logger) *FieldDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldDispatcher{handlers: handlers, logger: logger}
}

func (d *FieldDispatcher) BeginStream() {
	d.doneFired = false
}

func (d *FieldDispatcher) Dispatch(frame sse.Frame) {
	var fields struct {
		ConversationID *string `json:"conversation_id"`
		Status         *string `json:"status"`
		Content        *string `json:"content"`
		Error          *string `json:"error"`
		Done           *bool   `json:"done"`
	}
	if err := json.Unmarshal([]byte(frame.Data), &fields); err != nil {
		if d.handlers.OnError != nil {
			d.handlers.OnError(&ProtocolError{FrameType: frame.Type, Raw: frame.Data, Err: err})
		}
		return
	}
	if fields.ConversationID != nil && d.handlers.OnConversationID != nil {
		d.handlers.OnConversationID(*fields.ConversationID)
	}
	if fields.Status != nil && d.handlers.OnStatus != nil {
		d.handlers.OnStatus(*fields.Status, json.RawMessage(frame.Data))
	}
	if fields.Content != nil && d.handlers.OnContent != nil {
		d.handlers.OnContent(*fields.Content)
	}
	if fields.Error != nil && d.handlers.OnError != nil {
		d.handlers.OnError(&ServerError{Message: *fields.Error})
	}
	if fields.Done != nil && *fields.Done {
		d.markDone()
	}
}

func (d *FieldDispatcher) StreamEnd(terminated bool) {
	if terminated {
		d.markDone()
	}
	if d.handlers.OnStreamEnd != nil {
		d.handlers.OnStreamEnd()
	}
}

func (d *FieldDispatcher) StreamError(err error) {
	if d.handlers.OnError != nil {
		d.handlers.OnError(err)
	}
}

func (d *FieldDispatcher) markDone() {
	if d.doneFired {
		return
	}
	d.doneFired = true
	if d.handlers.OnDone != nil {
		d.handlers.OnDone()
	}
}
