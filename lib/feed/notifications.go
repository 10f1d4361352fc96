// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"encoding/json"

	"github.com/foredeck-sh/foredeck/lib/schema"
	"github.com/foredeck-sh/foredeck/lib/stream"
)

// NotificationHandlers are the callbacks for the inbox notification
// stream. Any callback may be nil.
type NotificationHandlers struct {
	// OnConnected fires when the server acknowledges the stream with
	// its connected control frame.
	OnConnected func()

	// OnTask receives task lifecycle events. eventType is the frame
	// type, one of schema.EventTypeTaskCreated, EventTypeTaskUpdated,
	// or EventTypeTaskClosed.
	OnTask func(eventType string, task schema.TaskEvent)

	// OnMention receives mentions of the current user.
	OnMention func(mention schema.MentionEvent)

	// OnApproval receives pending approval requests.
	OnApproval func(approval schema.ApprovalEvent)

	// OnError receives transport failures, server-reported errors, and
	// payload decode failures.
	OnError func(err error)

	// OnStreamEnd fires when the server ends the stream cleanly. The
	// subscription reconnects on its own.
	OnStreamEnd func()
}

// taskFrame pairs a task payload with the frame type that carried it,
// so the handler fan-out knows which lifecycle transition happened.
type taskFrame struct {
	eventType string
	task      schema.TaskEvent
}

// Notifications returns a subscription to the workspace inbox stream.
// The server emits an explicit connected control frame before the
// first domain frame.
func Notifications(cfg Config, handlers NotificationHandlers) (*stream.Subscription, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	routes := []stream.Route{{Prefix: schema.PrefixInbox, Decode: decodeInbox}}
	dispatch := stream.NewTypedDispatcher(stream.ConnectedOnControlFrame, routes, stream.TypedHandlers{
		OnConnected: handlers.OnConnected,
		OnEvent: func(event any) {
			switch ev := event.(type) {
			case taskFrame:
				if handlers.OnTask != nil {
					handlers.OnTask(ev.eventType, ev.task)
				}
			case schema.MentionEvent:
				if handlers.OnMention != nil {
					handlers.OnMention(ev)
				}
			case schema.ApprovalEvent:
				if handlers.OnApproval != nil {
					handlers.OnApproval(ev)
				}
			}
		},
		OnError:     handlers.OnError,
		OnStreamEnd: handlers.OnStreamEnd,
	}, cfg.Logger)
	return stream.NewSubscription(cfg.channel(
		cfg.endpoint("/api/v1/inbox/notifications/stream"), "inbox", dispatch))
}

func decodeInbox(frameType string, data []byte) (any, error) {
	switch frameType {
	case schema.EventTypeTaskCreated, schema.EventTypeTaskUpdated, schema.EventTypeTaskClosed:
		var ev schema.TaskEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return taskFrame{eventType: frameType, task: ev}, nil
	case schema.EventTypeMention:
		var ev schema.MentionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case schema.EventTypeApprovalRequested:
		var ev schema.ApprovalEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		// Unknown inbox subtype from a newer server.
		return nil, nil
	}
}
