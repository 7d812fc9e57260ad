package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("INTERVIEW_MAX_QUESTIONS", "")
	t.Setenv("INTERVIEW_IDLE_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.MaxQuestions != 7 {
		t.Errorf("MaxQuestions = %d", cfg.MaxQuestions)
	}
	if cfg.IdleTimeout != 300*time.Second {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
}

func TestLoadAddr(t *testing.T) {
	cases := []struct {
		port string
		want string
	}{
		{"9090", ":9090"},
		{":9090", ":9090"},
		{"127.0.0.1:9090", "127.0.0.1:9090"},
		{" 9090 ", ":9090"},
	}
	for _, tc := range cases {
		t.Setenv("PORT", tc.port)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("PORT=%q: %v", tc.port, err)
		}
		if cfg.Addr != tc.want {
			t.Errorf("PORT=%q: Addr = %q, want %q", tc.port, cfg.Addr, tc.want)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INTERVIEW_MAX_QUESTIONS", "3")
	t.Setenv("INTERVIEW_IDLE_TIMEOUT", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxQuestions != 3 {
		t.Errorf("MaxQuestions = %d", cfg.MaxQuestions)
	}
	if cfg.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"INTERVIEW_MAX_QUESTIONS", "abc"},
		{"INTERVIEW_MAX_QUESTIONS", "0"},
		{"INTERVIEW_MAX_QUESTIONS", "-1"},
		{"INTERVIEW_IDLE_TIMEOUT", "soon"},
		{"INTERVIEW_IDLE_TIMEOUT", "0"},
	}
	for _, tc := range cases {
		t.Setenv(tc.key, tc.value)
		if _, err := Load(); err == nil {
			t.Errorf("%s=%q: expected error", tc.key, tc.value)
		}
		t.Setenv(tc.key, "")
	}
}
