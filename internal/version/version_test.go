package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColored(t *testing.T) {
	orig := Version
	origNoColor := color.NoColor
	t.Cleanup(func() {
		Version = orig
		color.NoColor = origNoColor
	})
	color.NoColor = true

	tests := []struct {
		in   string
		want string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.2.3-rc.1+build.123", "1.2.3-rc.1+build.123"},
		{"nightly", "nightly"},
		{"", "dev"},
	}
	for _, tt := range tests {
		Version = tt.in
		if got := Colored(); got != tt.want {
			t.Errorf("Colored() with %q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColoredHighlightsComponents(t *testing.T) {
	orig := Version
	origNoColor := color.NoColor
	t.Cleanup(func() {
		Version = orig
		color.NoColor = origNoColor
	})
	color.NoColor = false
	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" {
		t.Fatalf("expected ANSI sequences in %q", got)
	}
}
