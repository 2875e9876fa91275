package config

import "fmt"

// TracingConfig selects where query spans are exported.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`       // none, stdout
	File        string  `yaml:"file,omitempty"` // stdout exporter target; empty = the command's output stream
	SampleRatio float64 `yaml:"sample_ratio"`   // fraction of root spans kept
}

// DefaultTracingConfig exports nothing.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Exporter:    "none",
		SampleRatio: 1,
	}
}

// Enabled reports whether an exporter is configured.
func (c TracingConfig) Enabled() bool {
	return c.Exporter != "" && c.Exporter != "none"
}

// Validate checks the exporter name and the sample ratio.
func (c TracingConfig) Validate() error {
	switch c.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("invalid exporter %q (valid: none, stdout)", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be in [0, 1], got %g", c.SampleRatio)
	}
	return nil
}
