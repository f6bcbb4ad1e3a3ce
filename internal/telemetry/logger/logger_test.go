package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Output = &buf
	log := New(cfg)

	log.Info("server started", "listen", "127.0.0.1:31337")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "server started" {
		t.Errorf("msg = %v, want server started", entry["msg"])
	}
	if entry["listen"] != "127.0.0.1:31337" {
		t.Errorf("listen = %v", entry["listen"])
	}
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Format = "text"
	cfg.Output = &buf
	log := New(cfg)

	log.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output missing message: %s", buf.String())
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Level = "warn"
	cfg.Output = &buf
	log := New(cfg)

	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info entry emitted at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn entry missing")
	}
}

func TestSetLevel_Dynamic(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Level = "info"
	cfg.Output = &buf
	log := New(cfg)

	log.Debug("before")
	SetLevel("debug")
	defer SetLevel("info")
	log.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("debug entry emitted before SetLevel")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug entry missing after SetLevel(debug)")
	}
}

func TestGetLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		SetLevel(level)
		if got := GetLevel(); got != level {
			t.Errorf("GetLevel() after SetLevel(%q) = %q", level, got)
		}
	}
	SetLevel("info")
}

func TestParseLevel_Unknown(t *testing.T) {
	if got := parseLevel("chatty"); got != parseLevel("info") {
		t.Errorf("parseLevel(chatty) = %v, want info level", got)
	}
}

func TestRedaction_InOutput(t *testing.T) {
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Output = &buf
	log := New(cfg)

	log.Info("loaded config", "passphrase", "hunter2-hunter2", "listen", "127.0.0.1:31337")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("passphrase leaked into log output: %s", out)
	}
	if !strings.Contains(out, redactedValue) {
		t.Errorf("redaction placeholder missing: %s", out)
	}
	if !strings.Contains(out, "127.0.0.1:31337") {
		t.Errorf("non-sensitive attr redacted: %s", out)
	}
}
