package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"calbot/internal/schedule"
)

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calbot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, `
telegram:
  token: "123:abc"
storage:
  driver: memory
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.PollTimeout != "10s" {
		t.Fatalf("poll_timeout default = %q", cfg.Telegram.PollTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging.level default = %q", cfg.Logging.Level)
	}
	if cfg.Scheduling.WorkStart != "09:00" || cfg.Scheduling.WorkEnd != "17:00" {
		t.Fatalf("scheduling defaults = %+v", cfg.Scheduling)
	}
	if cfg.Reminder.Cron != "0 8 * * *" || cfg.Reminder.RatePerSec != 3 {
		t.Fatalf("reminder defaults = %+v", cfg.Reminder)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, `
telegram:
  token: "123:abc"
  pol_timeout: "10s"
`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("typo'd key accepted")
	}
}

func TestValidateRequiresToken(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, `
logging:
  level: debug
`)
	if _, err := m.Load(); err == nil {
		t.Fatal("missing telegram.token accepted")
	}
}

func TestStorageConfigDurations(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        "./calbot.db",
			BusyTimeout: "5s",
			Pending:     PendingConfig{TTL: "15m"},
		},
	}
	sc, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("storage config: %v", err)
	}
	if sc.BusyTimeout != 5*time.Second || sc.Pending.TTL != 15*time.Minute {
		t.Fatalf("durations = %v / %v", sc.BusyTimeout, sc.Pending.TTL)
	}

	cfg.Storage.BusyTimeout = "soon"
	if _, err := cfg.StorageConfig(); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	cfg := &Config{Scheduling: SchedulingConfig{
		WorkStart:  "08:30",
		WorkEnd:    "16:00",
		BreakStart: "12:00",
		BreakEnd:   "12:30",
		Timezone:   "UTC",
	}}
	p, err := cfg.DefaultPolicy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	if p.WorkStart != (schedule.Clock{Hour: 8, Minute: 30}) || p.BreakEnd == nil || p.BreakEnd.Minute != 30 {
		t.Fatalf("policy = %+v", p)
	}

	cfg.Scheduling.BreakEnd = ""
	if _, err := cfg.DefaultPolicy(); err == nil {
		t.Fatal("half-configured break accepted")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"10s", 10 * time.Second, false},
		{" 2m ", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"banana", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("test.field", tc.raw)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tc.raw, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if d, err := ParseDurationOrDefault("test.field", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("ParseDurationOrDefault empty = %v, %v", d, err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging:  LoggingConfig{Level: "debug"},
		Reminder: ReminderConfig{Enabled: true, Cron: "0 8 * * *"},
	}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"logging", "reminder"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}
