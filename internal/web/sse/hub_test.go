package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/testutil"
)

type staticSnapshot struct {
	frames []broadcast.Frame
}

func (s staticSnapshot) Frames(context.Context) ([]broadcast.Frame, error) {
	return s.frames, nil
}

func newHub(t *testing.T, frames ...broadcast.Frame) *Hub {
	t.Helper()
	hub := NewHub(staticSnapshot{frames: frames}, testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func frame(t *testing.T, event model.EventType, payload any) broadcast.Frame {
	t.Helper()
	f, err := broadcast.Encode(event, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return f
}

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "online list",
			data:      `{"event":"online list","payload":{}}`,
			expected:  "event: online list\ndata: {\"event\":\"online list\",\"payload\":{}}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "list of games",
			data:      "{\n  \"a\": 1\n}",
			expected:  "event: list of games\ndata: {\ndata:   \"a\": 1\ndata: }\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "data with carriage returns",
			eventName: "test",
			data:      "line1\r\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSSEMessage(tt.eventName, tt.data)
			if string(result) != tt.expected {
				t.Errorf("formatSSEMessage(%q, %q)\ngot:  %q\nwant: %q",
					tt.eventName, tt.data, string(result), tt.expected)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single line", input: "hello", expected: []string{"hello"}},
		{name: "two lines", input: "line1\nline2", expected: []string{"line1", "line2"}},
		{name: "trailing newline", input: "line1\n", expected: []string{"line1"}},
		{name: "empty string", input: "", expected: []string{""}},
		{name: "crlf line endings", input: "line1\r\nline2\r\n", expected: []string{"line1", "line2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitLines(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitLines(%q) returned %d lines, want %d", tt.input, len(result), len(tt.expected))
			}
			for i, line := range result {
				if line != tt.expected[i] {
					t.Errorf("splitLines(%q)[%d] = %q, want %q", tt.input, i, line, tt.expected[i])
				}
			}
		})
	}
}

func TestHub_DeliverReachesRegisteredClients(t *testing.T) {
	hub := newHub(t)

	clients := []*Client{NewClient("10.0.0.1"), NewClient("10.0.0.2")}
	for _, c := range clients {
		hub.Register(c)
	}
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	if err := hub.Deliver(context.Background(), []broadcast.Frame{frame(t, model.EventOnlineList, map[string]string{})}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	for i, c := range clients {
		select {
		case msg := <-c.send:
			want := "event: online list\ndata: {\"event\":\"online list\",\"payload\":{}}\n\n"
			if string(msg) != want {
				t.Errorf("client %d received %q, want %q", i+1, string(msg), want)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %d did not receive message", i+1)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := newHub(t)

	client := NewClient("10.0.0.1")
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after unregister, want 0", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel still open after unregister")
	}
}

func TestHub_RegisterAfterClose(t *testing.T) {
	hub := NewHub(staticSnapshot{}, testutil.NopLogger())
	go hub.Run()
	hub.Close()

	if hub.Register(NewClient("10.0.0.1")) {
		t.Error("Register succeeded on a closed hub")
	}
}

func TestServeHTTP_StreamsSnapshotThenPublishes(t *testing.T) {
	hub := newHub(t, frame(t, model.EventListOfGames, map[string]any{}))
	server := httptest.NewServer(hub)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(prefix string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitFor("event: list of games")

	// wait until the stream's client is registered before publishing
	for hub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	_ = hub.Deliver(ctx, []broadcast.Frame{frame(t, model.EventOnlineList, map[string]string{"alice": "/"})})
	waitFor("event: online list")
}
