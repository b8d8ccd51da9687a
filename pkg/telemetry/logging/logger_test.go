package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"loomworks/trawl/pkg/config"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("export started", "project", "demo")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "export started" || entry["project"] != "demo" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("export started")
	if !strings.Contains(buf.String(), "export started") {
		t.Errorf("missing message in output: %s", buf.String())
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info message emitted at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn message missing")
	}
}

func TestNewRejectsUnknownValues(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}
