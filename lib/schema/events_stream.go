// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Frame type prefixes, one per typed channel. The stream dispatcher
// routes by prefix so new event types under a known prefix degrade
// gracefully instead of breaking older clients.
const (
	// PrefixInbox covers workspace notification frames.
	PrefixInbox = "inbox."

	// PrefixIntegration covers per-integration activity frames.
	PrefixIntegration = "integration."

	// PrefixTrigger covers automation trigger frames.
	PrefixTrigger = "trigger."
)

// Event type strings for the inbox notification stream.
const (
	// EventTypeTaskCreated is sent when an agent task enters the
	// workspace inbox.
	EventTypeTaskCreated = "inbox.task.created"

	// EventTypeTaskUpdated is sent on task status or assignment
	// changes.
	EventTypeTaskUpdated = "inbox.task.updated"

	// EventTypeTaskClosed is sent when a task reaches a terminal
	// status and leaves the active inbox.
	EventTypeTaskClosed = "inbox.task.closed"

	// EventTypeMention is sent when someone mentions the current user
	// in a task thread.
	EventTypeMention = "inbox.mention"

	// EventTypeApprovalRequested is sent when an agent pauses and
	// waits for a human decision before acting.
	EventTypeApprovalRequested = "inbox.approval.requested"
)

// Event type strings for integration streams.
const (
	// EventTypeIntegrationSync is sent across a sync cycle: once when
	// the sync starts and once when it completes or fails.
	EventTypeIntegrationSync = "integration.sync"

	// EventTypeIntegrationItem is sent for each external item the
	// integration surfaces — a new pull request, a calendar invite, a
	// support ticket.
	EventTypeIntegrationItem = "integration.item"
)

// Event type strings for trigger streams.
const (
	// EventTypeTriggerFired is sent the moment a trigger's condition
	// matches.
	EventTypeTriggerFired = "trigger.fired"

	// EventTypeTriggerRun is sent as the resulting run progresses.
	EventTypeTriggerRun = "trigger.run"
)

// TaskStatus is the lifecycle state of an agent task. Values are
// self-describing strings that serialize directly to JSON.
type TaskStatus string

const (
	// TaskQueued means the task is accepted but no agent has picked
	// it up.
	TaskQueued TaskStatus = "queued"

	// TaskRunning means an agent is actively working the task.
	TaskRunning TaskStatus = "running"

	// TaskWaitingInput means the agent is paused on a human decision
	// or missing information.
	TaskWaitingInput TaskStatus = "waiting_input"

	// TaskCompleted means the task finished successfully.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed means the task ended with an unrecoverable error.
	TaskFailed TaskStatus = "failed"

	// TaskCancelled means a human withdrew the task before it
	// finished.
	TaskCancelled TaskStatus = "cancelled"
)

// IsKnown reports whether s is one of the defined TaskStatus values.
func (s TaskStatus) IsKnown() bool {
	switch s {
	case TaskQueued, TaskRunning, TaskWaitingInput, TaskCompleted,
		TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final state: the task will not
// change status again.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// ChatStatus is the server-reported phase of a chat turn, carried in
// the status field of chat stream payloads. Values are self-describing
// strings that serialize directly to JSON.
type ChatStatus string

const (
	// ChatThinking means the agent is planning before producing
	// output.
	ChatThinking ChatStatus = "thinking"

	// ChatStreaming means content deltas are flowing.
	ChatStreaming ChatStatus = "streaming"

	// ChatToolUse means the agent is executing a tool call and output
	// is paused until it returns.
	ChatToolUse ChatStatus = "tool_use"

	// ChatCompleted means the turn finished.
	ChatCompleted ChatStatus = "completed"

	// ChatFailed means the turn ended with an error.
	ChatFailed ChatStatus = "failed"
)

// IsKnown reports whether s is one of the defined ChatStatus values.
func (s ChatStatus) IsKnown() bool {
	switch s {
	case ChatThinking, ChatStreaming, ChatToolUse, ChatCompleted, ChatFailed:
		return true
	}
	return false
}

// SyncStatus is the phase of an integration sync cycle. Values are
// self-describing strings that serialize directly to JSON.
type SyncStatus string

const (
	// SyncStarted means a sync cycle began.
	SyncStarted SyncStatus = "started"

	// SyncCompleted means the cycle finished and items_synced is
	// meaningful.
	SyncCompleted SyncStatus = "completed"

	// SyncFailed means the cycle aborted; error carries the cause.
	SyncFailed SyncStatus = "failed"
)

// IsKnown reports whether s is one of the defined SyncStatus values.
func (s SyncStatus) IsKnown() bool {
	switch s {
	case SyncStarted, SyncCompleted, SyncFailed:
		return true
	}
	return false
}

// TriggerRunStatus is the phase of a trigger-initiated run. Values are
// self-describing strings that serialize directly to JSON.
type TriggerRunStatus string

const (
	// TriggerRunStarted means the run's task was created and handed to
	// an agent.
	TriggerRunStarted TriggerRunStatus = "started"

	// TriggerRunCompleted means the run finished successfully.
	TriggerRunCompleted TriggerRunStatus = "completed"

	// TriggerRunFailed means the run ended with an error.
	TriggerRunFailed TriggerRunStatus = "failed"
)

// IsKnown reports whether s is one of the defined TriggerRunStatus values.
func (s TriggerRunStatus) IsKnown() bool {
	switch s {
	case TriggerRunStarted, TriggerRunCompleted, TriggerRunFailed:
		return true
	}
	return false
}

// TaskEvent is the payload of inbox.task.* frames. The same shape is
// used for created, updated, and closed; the frame type says which
// transition happened.
type TaskEvent struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	Agent          string     `json:"agent,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MentionEvent is the payload of inbox.mention frames.
type MentionEvent struct {
	TaskID  string `json:"task_id"`
	Author  string `json:"author"`
	Excerpt string `json:"excerpt"`
}

// ApprovalEvent is the payload of inbox.approval.requested frames: an
// agent is paused waiting for a human decision. ExpiresAt is the
// moment the request lapses and the task fails over to waiting_input.
type ApprovalEvent struct {
	TaskID    string    `json:"task_id"`
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IntegrationSyncEvent is the payload of integration.sync frames.
type IntegrationSyncEvent struct {
	IntegrationID string     `json:"integration_id"`
	Provider      string     `json:"provider"`
	Status        SyncStatus `json:"status"`
	ItemsSynced   int        `json:"items_synced,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// IntegrationItemEvent is the payload of integration.item frames: one
// external item the integration surfaced into the workspace.
type IntegrationItemEvent struct {
	IntegrationID string `json:"integration_id"`
	Provider      string `json:"provider"`
	ItemType      string `json:"item_type"`
	ItemID        string `json:"item_id"`
	Summary       string `json:"summary"`
	URL           string `json:"url,omitempty"`
}

// TriggerFiredEvent is the payload of trigger.fired frames.
type TriggerFiredEvent struct {
	TriggerID string    `json:"trigger_id"`
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	FiredAt   time.Time `json:"fired_at"`
}

// TriggerRunEvent is the payload of trigger.run frames. TaskID is set
// once the run has spawned its task.
type TriggerRunEvent struct {
	TriggerID string           `json:"trigger_id"`
	RunID     string           `json:"run_id"`
	Status    TriggerRunStatus `json:"status"`
	TaskID    string           `json:"task_id,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// ChatRequest is the POST body that opens a chat stream. An empty
// ConversationID starts a new conversation; the server assigns one and
// reports it in the first payload.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatPayload is the shape of chat stream frames. Payloads are sparse:
// any subset of the fields may be present, and a single payload often
// carries several (a status flip plus the first content delta, or a
// final delta plus done).
type ChatPayload struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	Status         ChatStatus `json:"status,omitempty"`
	Content        string     `json:"content,omitempty"`
	Error          string     `json:"error,omitempty"`
	Done           bool       `json:"done,omitempty"`
}
