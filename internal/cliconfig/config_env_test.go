package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		changed map[string]bool
		initial Config
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "applies valid env vars",
			envVars: map[string]string{
				"DISTSOLVE_TRANSPORT":      "nats",
				"DISTSOLVE_PREDIFFERS":     "a:1,b:2",
				"DISTSOLVE_DIAL_TIMEOUT":   "10s",
				"DISTSOLVE_MAX_ITERATIONS": "25",
				"DISTSOLVE_TIME_START":     "-5.5",
				"DISTSOLVE_CALC_UVW":       "true",
			},
			changed: map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				if cfg.Transport != "nats" {
					t.Errorf("Transport = %v, want nats", cfg.Transport)
				}
				if len(cfg.Prediffers) != 2 || cfg.Prediffers[1] != "b:2" {
					t.Errorf("Prediffers = %q", cfg.Prediffers)
				}
				if cfg.DialTimeout != 10*time.Second {
					t.Errorf("DialTimeout = %v, want 10s", cfg.DialTimeout)
				}
				if cfg.MaxIterations != 25 {
					t.Errorf("MaxIterations = %v, want 25", cfg.MaxIterations)
				}
				if cfg.TimeStart != -5.5 {
					t.Errorf("TimeStart = %v, want -5.5", cfg.TimeStart)
				}
				if !cfg.CalcUVW {
					t.Error("CalcUVW = false, want true")
				}
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"DISTSOLVE_LISTEN":    "0.0.0.0:9000",
				"DISTSOLVE_LOG_LEVEL": "debug",
			},
			changed: map[string]bool{"listen": true},
			initial: Config{Listen: "127.0.0.1:1"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Listen != "127.0.0.1:1" {
					t.Errorf("Listen = %v, flag should win", cfg.Listen)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
				}
			},
		},
		{
			name:    "zero iteration cap is accepted",
			envVars: map[string]string{"DISTSOLVE_MAX_ITERATIONS": "0"},
			changed: map[string]bool{},
			initial: Config{MaxIterations: 7},
			check: func(t *testing.T, cfg Config) {
				if cfg.MaxIterations != 0 {
					t.Errorf("MaxIterations = %v, want 0", cfg.MaxIterations)
				}
			},
		},
		{
			name:    "handles bool '1' as true",
			envVars: map[string]string{"DISTSOLVE_CALC_UVW": "1"},
			changed: map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				if !cfg.CalcUVW {
					t.Error("CalcUVW = false, want true")
				}
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"DISTSOLVE_DIAL_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"DISTSOLVE_CHUNK_MAX": "lots"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"DISTSOLVE_FREQ_END": "wide"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

// Precedence order: flags > env > file.
func TestConfigPrecedence(t *testing.T) {
	trueVal := true
	fileEnd := 4.0

	fileConf := FileConfig{
		Listen:   "file:1",
		Dataset:  "file.ms",
		LogLevel: "warn",
		FreqEnd:  &fileEnd,
		CalcUVW:  &trueVal,
	}

	t.Setenv("DISTSOLVE_LISTEN", "env:1")
	t.Setenv("DISTSOLVE_DATASET", "env.ms")
	t.Setenv("DISTSOLVE_COLUMN", "CORRECTED")

	changed := map[string]bool{"listen": true}
	cfg := Config{Listen: "flag:1"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Listen != "flag:1" {
		t.Errorf("Listen = %v, want flag:1 (flag should win)", cfg.Listen)
	}
	if cfg.Dataset != "env.ms" {
		t.Errorf("Dataset = %v, want env.ms (env should override file)", cfg.Dataset)
	}
	if cfg.Column != "CORRECTED" {
		t.Errorf("Column = %v, want CORRECTED (env should set)", cfg.Column)
	}
	if cfg.LogLevel != "warn" || cfg.FreqEnd != 4 || !cfg.CalcUVW {
		t.Errorf("file values not applied: %+v", cfg)
	}
}
