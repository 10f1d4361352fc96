// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// ChatHandlers are the callbacks for a chat turn stream. Any callback
// may be nil.
type ChatHandlers struct {
	// OnConversationID receives the conversation the turn belongs to.
	// For a request that started a new conversation this is the
	// server-assigned ID, reported in the first payload.
	OnConversationID func(id string)

	// OnStatus receives phase transitions within the turn.
	OnStatus func(status schema.ChatStatus)

	// OnContent receives incremental content deltas.
	OnContent func(delta string)

	// OnError receives transport failures, server-reported errors, and
	// payload decode failures.
	OnError func(err error)

	// OnDone fires once when the turn completes, whether signaled by a
	// done field or the end-of-stream sentinel.
	OnDone func()

	// OnStreamEnd fires when the server ends the stream cleanly.
	OnStreamEnd func()
}

// Chat returns a subscription that POSTs the request and streams the
// agent's turn back. Note the subscription's reconnect semantics: if
// the connection drops mid-turn the request is re-sent from the start,
// so consumers that treat a turn as finished on OnDone should
// Disconnect from within that callback (or bind the subscription to
// view state so deactivation tears it down).
func Chat(cfg Config, req schema.ChatRequest, handlers ChatHandlers) (*stream.Subscription, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if req.Message == "" {
		return nil, errors.New("feed: chat message required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("feed: encoding chat request: %w", err)
	}
	dispatch := stream.NewFieldDispatcher(stream.FieldHandlers{
		OnConversationID: handlers.OnConversationID,
		OnStatus: func(status string, payload json.RawMessage) {
			if handlers.OnStatus != nil {
				handlers.OnStatus(schema.ChatStatus(status))
			}
		},
		OnContent:   handlers.OnContent,
		OnError:     handlers.OnError,
		OnDone:      handlers.OnDone,
		OnStreamEnd: handlers.OnStreamEnd,
	}, cfg.Logger)

	channel := cfg.channel(cfg.endpoint("/api/v1/chat/stream"), "chat", dispatch)
	channel.Method = http.MethodPost
	channel.Body = body
	return stream.NewSubscription(channel)
}
