// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foredeck-sh/foredeck/lib/sse"
	"github.com/foredeck-sh/foredeck/lib/stream"
	"github.com/foredeck-sh/foredeck/lib/testutil"
)

func TestRawDeliversFramesVerbatim(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/integrations/github/events/stream" {
			t.Errorf("got path %q, want integration stream path", r.URL.Path)
		}
		writeFrame(w, "connected", "{}")
		writeFrame(w, "integration.item", `{"item_id":"pr-12"}`)
		// Frames a typed channel would drop or turn into errors still
		// come through untouched.
		writeFrame(w, "error", `{"message":"rate limited"}`)
		writeFrame(w, "billing.invoice", `{}`)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	frames := make(chan sse.Frame, 8)
	errs := make(chan error, 8)
	sub, err := Raw(testConfig(server.URL), "integration:github", RawHandlers{
		OnFrame: func(frame sse.Frame) { frames <- frame },
		OnError: func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	t.Cleanup(sub.Disconnect)
	sub.Connect()

	want := []sse.Frame{
		{Type: "connected", Data: "{}"},
		{Type: "integration.item", Data: `{"item_id":"pr-12"}`},
		{Type: "error", Data: `{"message":"rate limited"}`},
		{Type: "billing.invoice", Data: "{}"},
	}
	for _, w := range want {
		got := testutil.RequireReceive(t, frames, 5*time.Second, "frame %q", w.Type)
		if got != w {
			t.Errorf("got frame %+v, want %+v", got, w)
		}
	}
	// The server error frame stays a frame; it is not promoted to the
	// error callback.
	testutil.RequireNoReceive(t, errs, 100*time.Millisecond, "error frames are not errors")
}

func TestRawStreamEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(w, "inbox.task.created", `{"id":"task-1"}`)
	}))
	t.Cleanup(server.Close)

	frames := make(chan sse.Frame, 4)
	ends := make(chan struct{}, 4)
	sub, err := Raw(testConfig(server.URL), "inbox", RawHandlers{
		OnFrame:     func(frame sse.Frame) { frames <- frame },
		OnStreamEnd: func() { ends <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	t.Cleanup(sub.Disconnect)
	sub.Connect()

	testutil.RequireReceive(t, frames, 5*time.Second, "task frame")
	testutil.RequireReceive(t, ends, 5*time.Second, "stream end")
}

func TestChannelPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  string
	}{
		{"inbox", "/api/v1/inbox/notifications/stream"},
		{"integration:github", "/api/v1/integrations/github/events/stream"},
		{"trigger:nightly", "/api/v1/triggers/nightly/events/stream"},
		{"integration:a/b", "/api/v1/integrations/a%2Fb/events/stream"},
	}
	for _, tt := range tests {
		got, err := channelPath(tt.label)
		if err != nil {
			t.Errorf("channelPath(%q): %v", tt.label, err)
			continue
		}
		if got != tt.want {
			t.Errorf("channelPath(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}

	for _, label := range []string{"", "chat", "integration:", "trigger:", "inbox:extra"} {
		if _, err := channelPath(label); err == nil {
			t.Errorf("channelPath(%q) should fail", label)
		}
	}

	if _, err := Raw(Config{BaseURL: "http://example.invalid", Tokens: stream.StaticToken("t")}, "nope", RawHandlers{}); err == nil {
		t.Error("Raw with unknown label should fail")
	}
}
