// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"encoding/json"
	"errors"
	"net/url"

	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// IntegrationHandlers are the callbacks for one integration's activity
// stream. Any callback may be nil.
type IntegrationHandlers struct {
	// OnConnected fires when the server acknowledges the stream with
	// its connected control frame.
	OnConnected func()

	// OnSync receives sync cycle transitions.
	OnSync func(sync schema.IntegrationSyncEvent)

	// OnItem receives items the integration surfaces.
	OnItem func(item schema.IntegrationItemEvent)

	// OnError receives transport failures, server-reported errors, and
	// payload decode failures.
	OnError func(err error)

	// OnStreamEnd fires when the server ends the stream cleanly.
	OnStreamEnd func()
}

// Integration returns a subscription to one integration's activity
// stream.
func Integration(cfg Config, integrationID string, handlers IntegrationHandlers) (*stream.Subscription, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if integrationID == "" {
		return nil, errors.New("feed: integration ID required")
	}
	routes := []stream.Route{{Prefix: schema.PrefixIntegration, Decode: decodeIntegration}}
	dispatch := stream.NewTypedDispatcher(stream.ConnectedOnControlFrame, routes, stream.TypedHandlers{
		OnConnected: handlers.OnConnected,
		OnEvent: func(event any) {
			switch ev := event.(type) {
			case schema.IntegrationSyncEvent:
				if handlers.OnSync != nil {
					handlers.OnSync(ev)
				}
			case schema.IntegrationItemEvent:
				if handlers.OnItem != nil {
					handlers.OnItem(ev)
				}
			}
		},
		OnError:     handlers.OnError,
		OnStreamEnd: handlers.OnStreamEnd,
	}, cfg.Logger)
	return stream.NewSubscription(cfg.channel(
		cfg.endpoint("/api/v1/integrations/"+url.PathEscape(integrationID)+"/events/stream"),
		"integration", dispatch))
}

func decodeIntegration(frameType string, data []byte) (any, error) {
	switch frameType {
	case schema.EventTypeIntegrationSync:
		var ev schema.IntegrationSyncEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case schema.EventTypeIntegrationItem:
		var ev schema.IntegrationItemEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, nil
	}
}
