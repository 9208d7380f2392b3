package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("TIMEZONE", "UTC")

	cfg := LoadConfig()

	if cfg.DBPath != "./abengine.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ReportOutputDir != "./reports" {
		t.Fatalf("unexpected report output dir default: %q", cfg.ReportOutputDir)
	}
	if cfg.LLMModel != defaultAnthropicModel {
		t.Fatalf("unexpected llm model default: %q", cfg.LLMModel)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SweepSchedule != "" {
		t.Fatalf("sweep schedule must default to disabled, got %q", cfg.SweepSchedule)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_path: "/tmp/yaml.db"
report_output_dir: "/tmp/yaml-reports"
sweep_schedule: "0 * * * *"
slack_bot_token: "yaml-bot"
event_channel_id: "C012345"
timezone: "America/Los_Angeles"
models:
  - name: pm25
    versions: ["1.0", "2.0"]
  - name: ozone
    versions: ["1.1"]
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("SWEEP_SCHEDULE", "*/10 * * * *")

	cfg := LoadConfig()

	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("env must override yaml, got %q", cfg.DBPath)
	}
	if cfg.ReportOutputDir != "/tmp/yaml-reports" {
		t.Fatalf("yaml value lost: %q", cfg.ReportOutputDir)
	}
	if cfg.SweepSchedule != "*/10 * * * *" {
		t.Fatalf("sweep schedule = %q", cfg.SweepSchedule)
	}
	if cfg.SlackBotToken != "yaml-bot" || cfg.EventChannelID != "C012345" {
		t.Fatalf("slack config lost: %q / %q", cfg.SlackBotToken, cfg.EventChannelID)
	}
	if len(cfg.Models) != 2 || cfg.Models[0].Name != "pm25" || len(cfg.Models[0].Versions) != 2 {
		t.Fatalf("model entries not parsed: %+v", cfg.Models)
	}
	if cfg.Location == nil || cfg.Location.String() != "America/Los_Angeles" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}
