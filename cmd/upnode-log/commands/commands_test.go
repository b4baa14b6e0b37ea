package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ulog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	return events
}

var ts = time.Date(2026, 3, 2, 9, 30, 0, 123456000, time.UTC)

func TestFormatCallEvent(t *testing.T) {
	event := log.Event{
		Timestamp:     ts,
		ConnectionID:  "abc12345-6789-0123-4567-890abcdef012",
		Direction:     log.DirectionOut,
		Layer:         log.LayerRPC,
		Category:      log.CategoryMessage,
		LocalRole:     log.RoleClient,
		PeerSessionID: "fedcba98-7654",
		Message: &log.MessageEvent{
			Type:     wire.TypeCall,
			ID:       7,
			Method:   "time",
			ArgCount: 1,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.123456Z",
		"[conn:abc12345]",
		"CLIENT",
		"OUT",
		"RPC CALL",
		"ID: 7",
		"Method: time (1 args)",
		"Peer: fedcba98",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatHelloEvent(t *testing.T) {
	event := log.Event{
		Timestamp: ts,
		Layer:     log.LayerRPC,
		Message: &log.MessageEvent{
			Type:    wire.TypeHello,
			Methods: []string{"echo", "ping"},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "HELLO") {
		t.Errorf("expected HELLO label, got:\n%s", output)
	}
	if !strings.Contains(output, "Methods: echo, ping") {
		t.Errorf("expected method list, got:\n%s", output)
	}
	if strings.Contains(output, "ID:") {
		t.Errorf("hello has no call id, got:\n%s", output)
	}
}

func TestFormatStateChange(t *testing.T) {
	event := log.NewStateEvent("handle-1", log.RoleClient, log.StateEntityHandle, "READY", "ENDING", "peer closed")
	event.Timestamp = ts

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{"CONNECTION State", "Entity: HANDLE", "READY -> ENDING", "Reason: peer closed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatHeartbeat(t *testing.T) {
	tests := []struct {
		name  string
		hb    *log.HeartbeatEvent
		label string
		want  string
	}{
		{"answered", &log.HeartbeatEvent{RTT: 1500 * time.Microsecond}, "Heartbeat", "RTT: 1.500ms"},
		{"timeout", &log.HeartbeatEvent{TimedOut: true}, "Timeout", "No reply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, log.Event{Timestamp: ts, Category: log.CategoryHeartbeat, Heartbeat: tt.hb})
			output := buf.String()
			if !strings.Contains(output, tt.label) {
				t.Errorf("expected label %q, got:\n%s", tt.label, output)
			}
			if !strings.Contains(output, tt.want) {
				t.Errorf("expected %q, got:\n%s", tt.want, output)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{2500 * time.Microsecond, "2.500ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("RPC"); err != nil || l != log.LayerRPC {
		t.Errorf("ParseLayerFlag(RPC) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("Out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(Out) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("heartbeat"); err != nil || c != log.CategoryHeartbeat {
		t.Errorf("ParseCategoryFlag(heartbeat) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
	if r, err := ParseRoleFlag("server"); err != nil || r != log.RoleServer {
		t.Errorf("ParseRoleFlag(server) = %v, %v", r, err)
	}
}

func TestRunViewFilters(t *testing.T) {
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "aaaaaaaa", Layer: log.LayerTransport, Frame: &log.FrameEvent{Size: 12}},
		{Timestamp: ts, ConnectionID: "bbbbbbbb", Layer: log.LayerConnection, Category: log.CategoryHeartbeat,
			LocalRole: log.RoleServer, Heartbeat: &log.HeartbeatEvent{RTT: time.Millisecond}},
		{Timestamp: ts, ConnectionID: "cccccccc", Layer: log.LayerConnection, Category: log.CategoryHeartbeat,
			LocalRole: log.RoleClient, Heartbeat: &log.HeartbeatEvent{RTT: time.Millisecond}},
	}
	path := createTestLogFile(t, events)

	layer := log.LayerConnection
	role := log.RoleServer
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer, Role: &role}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "[conn:bbbbbbbb]") {
		t.Errorf("expected server heartbeat, got:\n%s", output)
	}
	if strings.Contains(output, "[conn:aaaaaaaa]") || strings.Contains(output, "[conn:cccccccc]") {
		t.Errorf("filtered events leaked into output:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.ulog"), ViewFilter{}, io.Discard)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunFilter(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, ConnectionID: "conn-1", PeerSessionID: "peer-a"},
		{Timestamp: base.Add(time.Minute), ConnectionID: "conn-2", PeerSessionID: "peer-b"},
		{Timestamp: base.Add(2 * time.Minute), ConnectionID: "conn-1", PeerSessionID: "peer-a"},
		{Timestamp: base.Add(3 * time.Minute), ConnectionID: "conn-1", PeerSessionID: "peer-a", LocalRole: log.RoleServer},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"connection", FilterOptions{ConnID: "conn-1"}, 3},
		{"peer session", FilterOptions{PeerSessionID: "peer-b"}, 1},
		{"time range", FilterOptions{
			TimeStart: base.Add(time.Minute).Format(time.RFC3339),
			TimeEnd:   base.Add(3 * time.Minute).Format(time.RFC3339),
		}, 2},
		{"role", FilterOptions{Role: "server"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = filepath.Join(t.TempDir(), "filtered.ulog")
			n, err := RunFilter(path, tt.opts)
			if err != nil {
				t.Fatalf("RunFilter failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("RunFilter wrote %d events, want %d", n, tt.want)
			}
			if got := len(readAll(t, tt.opts.Output)); got != tt.want {
				t.Errorf("output holds %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestRunFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: ts}})
	out := filepath.Join(t.TempDir(), "out.ulog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, Layer: "service"},
		{Output: out, Role: "observer"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("RunFilter(%+v) succeeded, want error", opts)
		}
	}
}

func TestRunExportJSONL(t *testing.T) {
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "c1", Layer: log.LayerRPC,
			Message: &log.MessageEvent{Type: wire.TypeCall, ID: 1, Method: "echo"}},
		{Timestamp: ts, ConnectionID: "c1", Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerRPC, Message: "boom"}},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded log.Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if decoded.Message == nil || decoded.Message.Method != "echo" {
		t.Errorf("decoded message = %+v, want method echo", decoded.Message)
	}
}

func TestRunExportCSV(t *testing.T) {
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "c1", Layer: log.LayerRPC,
			Message: &log.MessageEvent{Type: wire.TypeCall, ID: 3, Method: "time"}},
		{Timestamp: ts, ConnectionID: "c1", Category: log.CategoryHeartbeat,
			Heartbeat: &log.HeartbeatEvent{TimedOut: true}},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][7] != "CALL" || rows[1][8] != "3" || rows[1][9] != "time" {
		t.Errorf("call row = %v", rows[1])
	}
	if rows[2][7] != "Timeout" || rows[2][10] != "timeout" {
		t.Errorf("heartbeat row = %v", rows[2])
	}
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: ts}})
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunStats(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	state := func(at time.Duration, old, new string) log.Event {
		e := log.NewStateEvent("handle-1", log.RoleClient, log.StateEntityHandle, old, new, "")
		e.Timestamp = base.Add(at)
		return e
	}
	hb := func(at time.Duration, rtt time.Duration, timedOut bool) log.Event {
		return log.Event{
			Timestamp:    base.Add(at),
			ConnectionID: "handle-1",
			Layer:        log.LayerConnection,
			Category:     log.CategoryHeartbeat,
			Heartbeat:    &log.HeartbeatEvent{RTT: rtt, TimedOut: timedOut},
		}
	}
	events := []log.Event{
		state(0, "", "CONNECTING"),
		state(time.Second, "CONNECTING", "READY"),
		hb(2*time.Second, 2*time.Millisecond, false),
		hb(3*time.Second, 4*time.Millisecond, false),
		hb(4*time.Second, 0, true),
		state(5*time.Second, "READY", "CONNECTING"),
		{Timestamp: base.Add(6 * time.Second), ConnectionID: "session-1", LocalRole: log.RoleServer,
			Category: log.CategoryError, Error: &log.ErrorEventData{Message: "reset"}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 7",
		"Connections: 2",
		"CONNECTION:",
		"HEARTBEAT:",
		"State: CONNECTING (attempts: 2)",
		"Heartbeats: 2 (mean 3.000ms, max 4.000ms, timeouts 1)",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestConnectionStatsMeanRTT(t *testing.T) {
	var cs ConnectionStats
	if cs.MeanRTT() != 0 {
		t.Errorf("MeanRTT without samples = %v, want 0", cs.MeanRTT())
	}
}
