package ui

import (
	"strings"
	"testing"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("PRIMECHECK_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when PRIMECHECK_DARK_MODE=1")
	}

	t.Setenv("PRIMECHECK_DARK_MODE", "0")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when PRIMECHECK_DARK_MODE=0")
	}
}

func TestDetectTheme_ColorFGBG(t *testing.T) {
	t.Setenv("PRIMECHECK_DARK_MODE", "")

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for background 0")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for background 15")
	}
}

func TestThemeFor(t *testing.T) {
	if !ThemeFor("dark").IsDark {
		t.Errorf("ThemeFor(dark) is light")
	}
	if ThemeFor("light").IsDark {
		t.Errorf("ThemeFor(light) is dark")
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(LightTheme())
	if got := s.RenderDivider(5); !strings.Contains(got, "─────") {
		t.Errorf("RenderDivider(5) = %q", got)
	}
	if got := s.RenderDivider(0); !strings.Contains(got, "─") {
		t.Errorf("RenderDivider(0) = %q", got)
	}
}
