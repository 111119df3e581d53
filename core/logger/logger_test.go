package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/relaybot/core/config"
)

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(nil)
	if s.format != formatJSON || s.level != slog.LevelInfo || s.sampleDen != 50 {
		t.Fatalf("unexpected defaults: %+v", s)
	}

	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "Warning",
		Profile:     "DEV",
		KeysOrder:   "event, ,level",
		DebugSample: "0",
		Dir:         "/var/log/relay",
		BotFile:     "bot.log",
	}}
	s = settingsFrom(cfg)
	if s.format != formatKV {
		t.Fatalf("dev profile should select kv, got %s", s.format)
	}
	if s.level != slog.LevelWarn {
		t.Fatalf("level = %v", s.level)
	}
	if len(s.keyOrder) != 2 || s.keyOrder[0] != "event" || s.keyOrder[1] != "level" {
		t.Fatalf("key order = %v", s.keyOrder)
	}
	if s.sampleNum != 0 || s.sampleDen != 0 {
		t.Fatalf("sample 0 should disable sampling, got %d/%d", s.sampleNum, s.sampleDen)
	}
	if s.file != filepath.Join("/var/log/relay", "bot.log") {
		t.Fatalf("file = %s", s.file)
	}

	cfg.Logging.Format = "json"
	if got := settingsFrom(cfg).format; got != formatJSON {
		t.Fatalf("explicit json should win over profile, got %s", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 5)
	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("allowed %d of 10, want 4", allowed)
	}

	s.Set(0, 0)
	for i := 0; i < 3; i++ {
		if !s.Allow() {
			t.Fatal("disabled sampler must allow everything")
		}
	}
}

func TestParseRatio(t *testing.T) {
	cases := map[string][2]int{
		"1/10": {1, 10},
		"20":   {1, 20},
		"0":    {0, 0},
		"x/2":  {0, 0},
		"":     {0, 0},
	}
	for raw, want := range cases {
		num, den := parseRatio(raw)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", raw, num, den, want[0], want[1])
		}
	}
}

func TestContextMeta(t *testing.T) {
	ctx := WithRID(Background(), "r1")
	ctx = WithUpdateMeta(ctx, 3, 4, -100)
	ctx = WithHandler(ctx, "start")

	want := Meta{RID: "r1", UpdateID: 3, UserID: 4, ChatID: -100, Handler: "start"}
	if got := MetaFrom(ctx); got != want {
		t.Fatalf("meta = %+v, want %+v", got, want)
	}
	if ChatIDFrom(ctx) != -100 || UserIDFrom(ctx) != 4 || UpdateIDFrom(ctx) != 3 {
		t.Fatal("accessors disagree with meta")
	}
	if WithHandler(ctx, "") != ctx {
		t.Fatal("empty handler should keep ctx")
	}
	if FromContext(ctx) != L {
		t.Fatal("expected base logger without WithLogger")
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("пр\x00ивет\tмир", 6); got != "привет" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("ok", 10); got != "ok" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if BuildRID(1, -2, 3) != "1:-2:3" {
		t.Fatal("BuildRID format changed")
	}
}
