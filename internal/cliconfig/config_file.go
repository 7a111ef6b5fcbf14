package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and pointers for
// values whose zero is meaningful, to make TOML friendly.
type FileConfig struct {
	Transport       string   `toml:"transport"`
	Prediffers      []string `toml:"prediffers"`
	Solvers         []string `toml:"solvers"`
	Listen          string   `toml:"listen"`
	NATSURL         string   `toml:"nats_url"`
	NATSPrefix      string   `toml:"nats_prefix"`
	ChunkMax        int      `toml:"chunk_max"`
	MaxMessageBytes int      `toml:"max_message_bytes"`
	MaxFrameBytes   int      `toml:"max_frame_bytes"`
	MaxIterations   int      `toml:"max_iterations"`
	DialTimeout     string   `toml:"dial_timeout"`
	LogLevel        string   `toml:"log_level"`
	MetricsAddr     string   `toml:"metrics_addr"`

	Dataset string   `toml:"dataset"`
	Column  string   `toml:"column"`
	Models  []string `toml:"models"`
	SubBand int      `toml:"sub_band"`
	CalcUVW *bool    `toml:"calc_uvw"`

	FreqStart *float64 `toml:"freq_start"`
	FreqEnd   *float64 `toml:"freq_end"`
	TimeStart *float64 `toml:"time_start"`
	TimeEnd   *float64 `toml:"time_end"`
	FreqSize  *float64 `toml:"freq_size"`
	TimeSize  *float64 `toml:"time_size"`
	Steps     []string `toml:"steps"`

	Role      string   `toml:"role"`
	Index     int      `toml:"index"`
	Samples   int      `toml:"samples"`
	Tolerance *float64 `toml:"tolerance"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.distsolve/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".distsolve", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setList("prediffers", fc.Prediffers, &cfg.Prediffers)
	s.setList("solvers", fc.Solvers, &cfg.Solvers)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("nats-url", fc.NATSURL, &cfg.NATSURL)
	s.setString("nats-prefix", fc.NATSPrefix, &cfg.NATSPrefix)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("dataset", fc.Dataset, &cfg.Dataset)
	s.setString("column", fc.Column, &cfg.Column)
	s.setList("models", fc.Models, &cfg.Models)
	s.setList("steps", fc.Steps, &cfg.Steps)
	s.setString("role", fc.Role, &cfg.Role)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}

	s.setInt("chunk-max", fc.ChunkMax, &cfg.ChunkMax)
	s.setInt("max-message-bytes", fc.MaxMessageBytes, &cfg.MaxMessageBytes)
	s.setInt("max-frame-bytes", fc.MaxFrameBytes, &cfg.MaxFrameBytes)
	s.setInt("max-iterations", fc.MaxIterations, &cfg.MaxIterations)
	s.setInt("sub-band", fc.SubBand, &cfg.SubBand)
	s.setInt("index", fc.Index, &cfg.Index)
	s.setInt("samples", fc.Samples, &cfg.Samples)

	s.setFloat("freq-start", fc.FreqStart, &cfg.FreqStart)
	s.setFloat("freq-end", fc.FreqEnd, &cfg.FreqEnd)
	s.setFloat("time-start", fc.TimeStart, &cfg.TimeStart)
	s.setFloat("time-end", fc.TimeEnd, &cfg.TimeEnd)
	s.setFloat("freq-size", fc.FreqSize, &cfg.FreqSize)
	s.setFloat("time-size", fc.TimeSize, &cfg.TimeSize)
	s.setFloat("tolerance", fc.Tolerance, &cfg.Tolerance)

	s.setBool("calc-uvw", fc.CalcUVW, &cfg.CalcUVW)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
