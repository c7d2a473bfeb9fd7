package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesJSONToNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("info", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.WithField("k", "v").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestDiscardDropsEntries(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	if l.IsLevelEnabled(logrus.ErrorLevel) {
		t.Fatalf("discard logger must not enable error level")
	}
}
