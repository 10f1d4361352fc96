// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package watchui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/foredeck-sh/foredeck/lib/schema"
)

// Row is one feed entry. Rows are derived from decoded stream events
// by the RowFrom constructors; the model treats them as opaque display
// records and never re-inspects the originating event.
type Row struct {
	// Time is the arrival wall-clock time shown in the feed.
	Time time.Time

	// Channel is the originating channel label, e.g. "inbox" or
	// "integration:github". The part before the colon selects the
	// accent color.
	Channel string

	// Kind is the short event kind within the channel, e.g.
	// "task.created" or "mention".
	Kind string

	// Resource is the primary resource the event concerns (task ID,
	// item ID, run ID). May be empty.
	Resource string

	// Title is the one-line summary shown in the feed.
	Title string

	// Status is the lifecycle badge, when the event carries one.
	Status string

	// Body is the detail pane content: markdown when Markdown is set,
	// a JSON document otherwise.
	Body string

	// Markdown reports whether Body should be rendered as markdown.
	Markdown bool
}

// FilterText returns the haystack the fuzzy filter matches against.
// The title comes first so match positions below the title rune length
// index title characters directly for highlighting.
func (r Row) FilterText() string {
	return r.Title + " " + r.Channel + " " + r.Kind + " " + r.Resource + " " + r.Status
}

// RowFromTask builds a feed row for an inbox task lifecycle event.
// eventType is the wire frame type (schema.EventTypeTaskCreated,
// EventTypeTaskUpdated, or EventTypeTaskClosed).
func RowFromTask(now time.Time, eventType string, task schema.TaskEvent) Row {
	return Row{
		Time:     now,
		Channel:  "inbox",
		Kind:     strings.TrimPrefix(eventType, schema.PrefixInbox),
		Resource: task.ID,
		Title:    task.Title,
		Status:   string(task.Status),
		Body:     prettyJSON(task),
	}
}

// RowFromMention builds a feed row for a mention of the current user.
// The excerpt is thread content, so the detail pane renders it as
// markdown.
func RowFromMention(now time.Time, mention schema.MentionEvent) Row {
	return Row{
		Time:     now,
		Channel:  "inbox",
		Kind:     "mention",
		Resource: mention.TaskID,
		Title:    mention.Author + ": " + firstLine(mention.Excerpt),
		Body:     mention.Excerpt,
		Markdown: true,
	}
}

// RowFromApproval builds a feed row for a pending approval request.
// The badge is waiting_input because that is what the request means
// for the task: an agent is paused on a human decision.
func RowFromApproval(now time.Time, approval schema.ApprovalEvent) Row {
	return Row{
		Time:     now,
		Channel:  "inbox",
		Kind:     "approval",
		Resource: approval.TaskID,
		Title:    "approval requested: " + approval.Action,
		Status:   string(schema.TaskWaitingInput),
		Body:     prettyJSON(approval),
	}
}

// RowFromSync builds a feed row for an integration sync transition.
// channel is the label of the originating subscription, e.g.
// "integration:github".
func RowFromSync(now time.Time, channel string, sync schema.IntegrationSyncEvent) Row {
	title := sync.Provider + " sync " + string(sync.Status)
	switch sync.Status {
	case schema.SyncCompleted:
		title = fmt.Sprintf("%s sync completed, %d items", sync.Provider, sync.ItemsSynced)
	case schema.SyncFailed:
		title = sync.Provider + " sync failed: " + sync.Error
	}
	return Row{
		Time:     now,
		Channel:  channel,
		Kind:     "sync",
		Resource: sync.IntegrationID,
		Title:    title,
		Status:   string(sync.Status),
		Body:     prettyJSON(sync),
	}
}

// RowFromItem builds a feed row for an external item an integration
// surfaced into the workspace.
func RowFromItem(now time.Time, channel string, item schema.IntegrationItemEvent) Row {
	return Row{
		Time:     now,
		Channel:  channel,
		Kind:     "item",
		Resource: item.ItemID,
		Title:    item.ItemType + ": " + item.Summary,
		Body:     prettyJSON(item),
	}
}

// RowFromTriggerFired builds a feed row for a trigger activation.
func RowFromTriggerFired(now time.Time, channel string, fired schema.TriggerFiredEvent) Row {
	return Row{
		Time:     now,
		Channel:  channel,
		Kind:     "fired",
		Resource: fired.RunID,
		Title:    fired.TriggerID + " fired by " + fired.Source,
		Body:     prettyJSON(fired),
	}
}

// RowFromTriggerRun builds a feed row for trigger run progress.
func RowFromTriggerRun(now time.Time, channel string, run schema.TriggerRunEvent) Row {
	title := run.TriggerID + " run " + string(run.Status)
	if run.Status == schema.TriggerRunFailed && run.Error != "" {
		title = run.TriggerID + " run failed: " + run.Error
	}
	return Row{
		Time:     now,
		Channel:  channel,
		Kind:     "run",
		Resource: run.RunID,
		Title:    title,
		Status:   string(run.Status),
		Body:     prettyJSON(run),
	}
}

// RowFromChatStatus builds a feed row for a chat turn phase change.
func RowFromChatStatus(now time.Time, conversationID string, status schema.ChatStatus) Row {
	return Row{
		Time:     now,
		Channel:  "chat",
		Kind:     "status",
		Resource: conversationID,
		Title:    "turn " + string(status),
		Status:   string(status),
		Body:     prettyJSON(schema.ChatPayload{ConversationID: conversationID, Status: status}),
	}
}

// RowFromChatTurn builds a feed row for a completed chat turn. The
// caller accumulates content deltas across the turn and hands over
// the full text, which the detail pane renders as markdown.
func RowFromChatTurn(now time.Time, conversationID, content string) Row {
	return Row{
		Time:     now,
		Channel:  "chat",
		Kind:     "turn",
		Resource: conversationID,
		Title:    firstLine(content),
		Status:   string(schema.ChatCompleted),
		Body:     content,
		Markdown: true,
	}
}

// firstLine returns the first non-blank line of text, for use as a
// one-line feed title. Truncation to the column width happens at
// render time.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// prettyJSON renders an event payload as an indented JSON document
// for the detail pane.
func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
