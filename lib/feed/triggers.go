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

// TriggerHandlers are the callbacks for one trigger's event stream.
// Any callback may be nil.
type TriggerHandlers struct {
	// OnConnected fires on the first decoded frame: the trigger stream
	// predates the connected control frame and starts straight into
	// domain events.
	OnConnected func()

	// OnFired receives trigger activations.
	OnFired func(fired schema.TriggerFiredEvent)

	// OnRun receives run progress for fired triggers.
	OnRun func(run schema.TriggerRunEvent)

	// OnError receives transport failures, server-reported errors, and
	// payload decode failures.
	OnError func(err error)

	// OnStreamEnd fires when the server ends the stream cleanly.
	OnStreamEnd func()
}

// Trigger returns a subscription to one trigger's event stream.
func Trigger(cfg Config, triggerID string, handlers TriggerHandlers) (*stream.Subscription, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if triggerID == "" {
		return nil, errors.New("feed: trigger ID required")
	}
	routes := []stream.Route{{Prefix: schema.PrefixTrigger, Decode: decodeTrigger}}
	dispatch := stream.NewTypedDispatcher(stream.ConnectedOnFirstFrame, routes, stream.TypedHandlers{
		OnConnected: handlers.OnConnected,
		OnEvent: func(event any) {
			switch ev := event.(type) {
			case schema.TriggerFiredEvent:
				if handlers.OnFired != nil {
					handlers.OnFired(ev)
				}
			case schema.TriggerRunEvent:
				if handlers.OnRun != nil {
					handlers.OnRun(ev)
				}
			}
		},
		OnError:     handlers.OnError,
		OnStreamEnd: handlers.OnStreamEnd,
	}, cfg.Logger)
	return stream.NewSubscription(cfg.channel(
		cfg.endpoint("/api/v1/triggers/"+url.PathEscape(triggerID)+"/events/stream"),
		"trigger", dispatch))
}

func decodeTrigger(frameType string, data []byte) (any, error) {
	switch frameType {
	case schema.EventTypeTriggerFired:
		var ev schema.TriggerFiredEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case schema.EventTypeTriggerRun:
		var ev schema.TriggerRunEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, nil
	}
}
