package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/garagescholars/garage-tech-stack-sub001/notify"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fieldwork.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Driver != "memory" || cfg.Media.Driver != "memory" || cfg.Generator.Driver != "none" {
		t.Errorf("drivers = %q/%q/%q", cfg.Store.Driver, cfg.Media.Driver, cfg.Generator.Driver)
	}
	fc := cfg.FieldworkConfig()
	if fc.GenerationTimeout != 5*time.Minute {
		t.Errorf("GenerationTimeout = %v, want 5m", fc.GenerationTimeout)
	}
	if fc.ReconcileAttempts != 3 {
		t.Errorf("ReconcileAttempts = %d, want 3", fc.ReconcileAttempts)
	}
	if !slices.Equal(fc.MilestoneThresholds, []int{80, 90, 100}) {
		t.Errorf("MilestoneThresholds = %v", fc.MilestoneThresholds)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http.addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	p := writeConfig(t, `
store:
  driver: redis
  redis:
    addr: cache:6379
engine:
  second_half_delay: 48h
  admin_recipients:
    - ops@example.com
    - "+15555550100"
generator:
  driver: remote
  remote:
    url: http://gen.internal/v1/sop
`)
	t.Setenv("FIELDWORK_STORE_REDIS_DB", "4")
	t.Setenv("FIELDWORK_HTTP_ADDR", ":9090")

	cfg, err := loadConfig(viper.New(), p)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Driver != "redis" || cfg.Store.Redis.Addr != "cache:6379" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.Redis.DB != 4 {
		t.Errorf("redis db = %d, want 4 from env", cfg.Store.Redis.DB)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("http.addr = %q, want env override", cfg.HTTP.Addr)
	}
	fc := cfg.FieldworkConfig()
	if fc.SecondHalfDelay != 48*time.Hour {
		t.Errorf("SecondHalfDelay = %v", fc.SecondHalfDelay)
	}
	if len(fc.AdminRecipients) != 2 {
		t.Errorf("AdminRecipients = %v", fc.AdminRecipients)
	}
}

func TestValidateRejectsIncompleteDrivers(t *testing.T) {
	cases := map[string]string{
		"unknown store":     "store:\n  driver: cassandra\n",
		"postgres no dsn":   "store:\n  driver: postgres\n",
		"claude no key":     "generator:\n  driver: claude\n",
		"remote no url":     "generator:\n  driver: remote\n",
		"s3 no bucket":      "media:\n  driver: s3\n",
		"unknown generator": "generator:\n  driver: gpt\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(viper.New(), writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(LogConfig{Level: "debug", Format: "text"}); err != nil {
		t.Errorf("text logger: %v", err)
	}
	if _, err := newLogger(LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newLogger(LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestNewNotifierFallsBackToLog(t *testing.T) {
	n, err := newNotifier(NotifyConfig{}, discardLogger())
	if err != nil {
		t.Fatalf("newNotifier: %v", err)
	}
	r, ok := n.(notify.Router)
	if !ok {
		t.Fatalf("notifier = %T, want notify.Router", n)
	}
	if _, ok := r.Email.(notify.Log); !ok {
		t.Errorf("email channel = %T, want notify.Log", r.Email)
	}
	if _, ok := r.SMS.(notify.Log); !ok {
		t.Errorf("sms channel = %T, want notify.Log", r.SMS)
	}

	if _, err := newNotifier(NotifyConfig{SendGrid: SendGridConfig{APIKey: "k"}}, discardLogger()); err == nil {
		t.Error("expected error when sendgrid has no from address")
	}
}

func TestMigrateCommandMemory(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "--config", writeConfig(t, "log:\n  level: error\n")})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "fieldworkd ") {
		t.Errorf("output = %q", out.String())
	}
}
