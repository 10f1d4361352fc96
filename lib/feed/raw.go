// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/foredeck-sh/foredeck/lib/sse"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// RawHandlers are the callbacks for an uninterpreted channel stream.
// Any callback may be nil.
type RawHandlers struct {
	// OnFrame receives every frame the server sends, control frames
	// included, before any decoding.
	OnFrame func(frame sse.Frame)

	// OnError receives transport failures.
	OnError func(err error)

	// OnStreamEnd fires when the server closes the stream, whether by
	// sentinel or by EOF. The sentinel itself is consumed at the wire
	// layer and never reaches OnFrame.
	OnStreamEnd func()
}

// Raw returns a subscription that delivers a channel's frames verbatim:
// control frames included, payloads undecoded. Recording surfaces use
// it so a capture contains exactly what the server sent.
//
// The label selects the channel: "inbox", "integration:<id>", or
// "trigger:<id>". Chat streams are request-scoped and have no raw form.
func Raw(cfg Config, label string, handlers RawHandlers) (*stream.Subscription, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	path, err := channelPath(label)
	if err != nil {
		return nil, err
	}
	return stream.NewSubscription(cfg.channel(
		cfg.endpoint(path), label, rawDispatcher{handlers: handlers}))
}

// channelPath maps a channel label to its stream endpoint.
func channelPath(label string) (string, error) {
	if label == "inbox" {
		return "/api/v1/inbox/notifications/stream", nil
	}
	if id, ok := strings.CutPrefix(label, "integration:"); ok && id != "" {
		return "/api/v1/integrations/" + url.PathEscape(id) + "/events/stream", nil
	}
	if id, ok := strings.CutPrefix(label, "trigger:"); ok && id != "" {
		return "/api/v1/triggers/" + url.PathEscape(id) + "/events/stream", nil
	}
	return "", fmt.Errorf("feed: unknown channel %q (want inbox, integration:<id>, or trigger:<id>)", label)
}

// rawDispatcher forwards frames without interpretation.
type rawDispatcher struct {
	handlers RawHandlers
}

func (d rawDispatcher) BeginStream() {}

func (d rawDispatcher) Dispatch(frame sse.Frame) {
	if d.handlers.OnFrame != nil {
		d.handlers.OnFrame(frame)
	}
}

func (d rawDispatcher) StreamEnd(terminated bool) {
	if d.handlers.OnStreamEnd != nil {
		d.handlers.OnStreamEnd()
	}
}

func (d rawDispatcher) StreamError(err error) {
	if d.handlers.OnError != nil {
		d.handlers.OnError(err)
	}
}
