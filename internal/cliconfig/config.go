package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/distsolve/internal/domain"
)

// Transport names accepted by the transport key.
const (
	TransportTCP  = "tcp"
	TransportNATS = "nats"
)

// Worker roles.
const (
	RolePrediffer = "prediffer"
	RoleSolver    = "solver"
)

// DefaultListen is the worker listen address for the TCP transport.
const DefaultListen = "127.0.0.1:7400"

// Config holds CLI configuration for distsolve.
type Config struct {
	Transport  string
	Prediffers []string
	Solvers    []string
	Listen     string
	NATSURL    string
	NATSPrefix string

	ChunkMax        int
	MaxMessageBytes int
	MaxFrameBytes   int
	MaxIterations   int
	DialTimeout     time.Duration

	LogLevel    string
	MetricsAddr string

	Dataset string
	Column  string
	Models  []string
	SubBand int
	CalcUVW bool

	FreqStart float64
	FreqEnd   float64
	TimeStart float64
	TimeEnd   float64
	FreqSize  float64
	TimeSize  float64
	Steps     []string

	// Worker side.
	Role      string
	Index     int
	Samples   int
	Tolerance float64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Transport:       TransportTCP,
		Listen:          DefaultListen,
		NATSURL:         "nats://127.0.0.1:4222",
		NATSPrefix:      "distsolve",
		ChunkMax:        1 << 20,
		MaxMessageBytes: 64 << 20, // 64MB
		MaxFrameBytes:   1 << 30,  // 1GB
		DialTimeout:     30 * time.Second,
		LogLevel:        "info",
		FreqStart:       0,
		FreqEnd:         1,
		TimeStart:       0,
		TimeEnd:         10,
		Steps:           []string{"solve"},
		Role:            RolePrediffer,
		Samples:         200,
		Tolerance:       1e-9,
	}
}

// Validate checks the configuration for errors and normalises list values.
// master selects the master checks; otherwise the worker checks apply.
func (c *Config) Validate(master bool) error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch c.Transport {
	case TransportTCP, TransportNATS:
	case "":
		c.Transport = TransportTCP
	default:
		return fmt.Errorf("unknown transport %q (want tcp or nats)", c.Transport)
	}

	c.Prediffers = splitList(c.Prediffers)
	c.Solvers = splitList(c.Solvers)
	c.Models = splitList(c.Models)
	c.Steps = splitList(c.Steps)

	if c.ChunkMax <= 0 {
		return fmt.Errorf("chunk-max must be positive")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max-message-bytes must be positive")
	}
	if c.MaxFrameBytes < c.MaxMessageBytes {
		return fmt.Errorf("max-frame-bytes must be at least max-message-bytes")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max-iterations must not be negative")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial-timeout must be positive")
	}

	if master {
		return c.validateMaster()
	}
	return c.validateWorker()
}

func (c *Config) validateMaster() error {
	if len(c.Prediffers) == 0 {
		return fmt.Errorf("at least one prediffer is required")
	}
	if err := c.FullDomain().Validate(); err != nil {
		return err
	}
	if len(c.Steps) == 0 {
		c.Steps = []string{"solve"}
	}
	for _, s := range c.Steps {
		k, err := ParseStepKind(s)
		if err != nil {
			return err
		}
		if k == domain.StepSolve && len(c.Solvers) == 0 {
			return fmt.Errorf("step %q needs at least one solver", s)
		}
	}
	return nil
}

func (c *Config) validateWorker() error {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if c.Role != RolePrediffer && c.Role != RoleSolver {
		return fmt.Errorf("unknown role %q (want prediffer or solver)", c.Role)
	}
	if c.Transport == TransportTCP && c.Listen == "" {
		return fmt.Errorf("listen is required for the tcp transport")
	}
	if c.Index < 0 {
		return fmt.Errorf("index must not be negative")
	}
	if c.Role == RolePrediffer && c.Samples <= 0 {
		return fmt.Errorf("samples must be positive")
	}
	if c.Role == RoleSolver && c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	return nil
}

// FullDomain returns the configured observation domain.
func (c Config) FullDomain() domain.Box {
	return domain.Box{FreqStart: c.FreqStart, FreqEnd: c.FreqEnd, TimeStart: c.TimeStart, TimeEnd: c.TimeEnd}
}

// Shape returns the configured work domain shape.
func (c Config) Shape() domain.Shape {
	return domain.Shape{FreqSize: c.FreqSize, TimeSize: c.TimeSize}
}

// InitInfo builds the handshake payload sent to every worker.
func (c Config) InitInfo() domain.InitInfo {
	return domain.InitInfo{
		Dataset:    c.Dataset,
		Column:     c.Column,
		Models:     append([]string(nil), c.Models...),
		SubBand:    uint32(c.SubBand),
		CalcUVW:    c.CalcUVW,
		FullDomain: c.FullDomain(),
	}
}

// ParseStepKind maps a step name to its kind.
func ParseStepKind(s string) (domain.StepKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return domain.StepSimple, nil
	case "solve":
		return domain.StepSolve, nil
	default:
		return 0, fmt.Errorf("unknown step %q (want simple or solve)", s)
	}
}

// splitList flattens comma separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setList sets a list if it has entries and flag not changed.
func (s *configSetter) setList(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value from a pointer if not nil and flag not changed.
// Domain bounds may legitimately be zero or negative, hence the pointer.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Zero is accepted so a variable can switch a cap off.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma separated value.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = splitList([]string{value})
}
