package config

import "fmt"

// UIConfig holds user interface configuration.
type UIConfig struct {
	// Theme selects the palette: auto follows the terminal background.
	Theme string `yaml:"theme"`

	// SpinnerFPS overrides the spinner frame rate (0 = widget default).
	SpinnerFPS int `yaml:"spinner_fps,omitempty"`
}

// ValidThemes lists the accepted theme names.
var ValidThemes = []string{"auto", "dark", "light"}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Theme: "auto",
	}
}

// Validate validates the UI section.
func (c *UIConfig) Validate() error {
	if c.SpinnerFPS < 0 {
		return fmt.Errorf("spinner_fps must not be negative, got %d", c.SpinnerFPS)
	}
	for _, t := range ValidThemes {
		if c.Theme == t {
			return nil
		}
	}
	return fmt.Errorf("invalid theme: %s (valid: %v)", c.Theme, ValidThemes)
}
