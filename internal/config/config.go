package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultProcesses  = 1
	DefaultIterations = 5
	DefaultG          = 10.0
	DefaultDt         = 0.1
	DefaultOutput     = "output.csv"
	DefaultSubject    = "ringbody"
	DefaultNATSURL    = "nats://127.0.0.1:4222"
)

const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

type Config struct {
	File       string          `yaml:"file"`
	Processes  int             `yaml:"processes"`
	Iterations int             `yaml:"iterations"`
	G          float64         `yaml:"g"`
	Dt         float64         `yaml:"dt"`
	Softening  float64         `yaml:"softening"`
	Integrator string          `yaml:"integrator"`
	ForceLaw   string          `yaml:"force_law"`
	Transport  TransportConfig `yaml:"transport"`
	Save       bool            `yaml:"save"`
	Output     string          `yaml:"output"`
	Record     bool            `yaml:"record"`
}

// TransportConfig selects how ranks exchange particles. With "nats" each
// OS process runs the single rank named by Rank.
type TransportConfig struct {
	Kind    string `yaml:"kind"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Rank    int    `yaml:"rank"`
}

func DefaultConfig() *Config {
	return &Config{
		Processes:  DefaultProcesses,
		Iterations: DefaultIterations,
		G:          DefaultG,
		Dt:         DefaultDt,
		Integrator: "semi-implicit",
		ForceLaw:   "gravity",
		Transport: TransportConfig{
			Kind:    TransportLocal,
			NATSURL: DefaultNATSURL,
			Subject: DefaultSubject,
		},
		Output: DefaultOutput,
		Record: true,
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Merge(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays the fields present in the YAML file at path onto cfg.
func Merge(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.File == "" {
		errs = append(errs, errors.New("file is required"))
	}
	if c.Processes < 1 {
		errs = append(errs, fmt.Errorf("processes must be at least 1, got %d", c.Processes))
	}
	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must be non-negative, got %d", c.Iterations))
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Softening < 0 {
		errs = append(errs, fmt.Errorf("softening must be non-negative, got %g", c.Softening))
	}
	if c.Save && c.Output == "" {
		errs = append(errs, errors.New("output is required when save is set"))
	}

	switch c.Transport.Kind {
	case TransportLocal:
	case TransportNATS:
		if c.Transport.NATSURL == "" {
			errs = append(errs, errors.New("transport.nats_url is required for nats"))
		}
		if c.Transport.Subject == "" {
			errs = append(errs, errors.New("transport.subject is required for nats"))
		}
		if c.Transport.Rank < 0 || c.Transport.Rank >= c.Processes {
			errs = append(errs, fmt.Errorf("transport.rank %d outside [0,%d)", c.Transport.Rank, c.Processes))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport.Kind))
	}

	return errors.Join(errs...)
}
