package args

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"portscan/types"
	"portscan/utils"
)

var scanModes = []string{"", "connect", "tcp", "syn"}

// FileConfig is the YAML config file read with -c. Absent keys leave the
// defaults alone.
type FileConfig struct {
	Threads     *int     `yaml:"threads"`
	Timeout     Duration `yaml:"timeout"`      // e.g. "500ms", "2s"
	Mode        string   `yaml:"mode"`         // "connect" or "syn"
	Interface   string   `yaml:"interface"`    // SYN capture interface
	MaxParallel int      `yaml:"max_parallel"` // workers running at once
	Verbose     bool     `yaml:"verbose"`
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "5s", "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// LoadConfig reads a YAML configuration file from the specified path.
// Unknown keys are rejected.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func (f *FileConfig) apply(cfg *types.ScanConfig) error {
	if f.Threads != nil {
		if *f.Threads < 1 {
			return fmt.Errorf("threads must be a positive integer, got %d", *f.Threads)
		}
		cfg.Workers = *f.Threads
	}
	if f.Timeout.Duration < 0 {
		return fmt.Errorf("timeout must be positive, got %s", f.Timeout.Duration)
	}
	if f.Timeout.Duration > 0 {
		cfg.Timeout = f.Timeout.Duration
	}
	name := strings.ToLower(strings.TrimSpace(f.Mode))
	if !utils.Contains(scanModes, name) {
		return fmt.Errorf("unknown scan mode %q", f.Mode)
	}
	if name != "" {
		mode, err := types.ParseScanMode(name)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if f.Interface != "" {
		cfg.Interface = f.Interface
	}
	if f.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must not be negative, got %d", f.MaxParallel)
	}
	if f.MaxParallel > 0 {
		cfg.MaxParallel = f.MaxParallel
	}
	cfg.Verbose = cfg.Verbose || f.Verbose
	return nil
}
