package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"portseal/internal/observability/logging"
)

func TestNewLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.Config{ServiceName: "portseal", Environment: "test", Level: "warn", Output: &buf})

	log.Info("dropped")
	log.Warn("kept", "session_id", "abc")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["service"] != "portseal" || rec["env"] != "test" || rec["msg"] != "kept" || rec["session_id"] != "abc" {
		t.Fatalf("unexpected record: %v", rec)
	}
}
