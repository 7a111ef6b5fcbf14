package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "DISTSOLVE_"

// ApplyEnvConfig applies configuration from environment variables (DISTSOLVE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("transport", env("TRANSPORT"), &cfg.Transport)
	s.setListFromString("prediffers", env("PREDIFFERS"), &cfg.Prediffers)
	s.setListFromString("solvers", env("SOLVERS"), &cfg.Solvers)
	s.setString("listen", env("LISTEN"), &cfg.Listen)
	s.setString("nats-url", env("NATS_URL"), &cfg.NATSURL)
	s.setString("nats-prefix", env("NATS_PREFIX"), &cfg.NATSPrefix)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("dataset", env("DATASET"), &cfg.Dataset)
	s.setString("column", env("COLUMN"), &cfg.Column)
	s.setListFromString("models", env("MODELS"), &cfg.Models)
	s.setListFromString("steps", env("STEPS"), &cfg.Steps)
	s.setString("role", env("ROLE"), &cfg.Role)

	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag, key string
		dst       *int
	}{
		{"chunk-max", "CHUNK_MAX", &cfg.ChunkMax},
		{"max-message-bytes", "MAX_MESSAGE_BYTES", &cfg.MaxMessageBytes},
		{"max-frame-bytes", "MAX_FRAME_BYTES", &cfg.MaxFrameBytes},
		{"max-iterations", "MAX_ITERATIONS", &cfg.MaxIterations},
		{"sub-band", "SUB_BAND", &cfg.SubBand},
		{"index", "INDEX", &cfg.Index},
		{"samples", "SAMPLES", &cfg.Samples},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, env(v.key), v.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		flag, key string
		dst       *float64
	}{
		{"freq-start", "FREQ_START", &cfg.FreqStart},
		{"freq-end", "FREQ_END", &cfg.FreqEnd},
		{"time-start", "TIME_START", &cfg.TimeStart},
		{"time-end", "TIME_END", &cfg.TimeEnd},
		{"freq-size", "FREQ_SIZE", &cfg.FreqSize},
		{"time-size", "TIME_SIZE", &cfg.TimeSize},
		{"tolerance", "TOLERANCE", &cfg.Tolerance},
	}
	for _, v := range floats {
		if err := s.setFloatFromString(v.flag, env(v.key), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("calc-uvw", env("CALC_UVW"), &cfg.CalcUVW)

	return nil
}
