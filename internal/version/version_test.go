package version

import (
	"strings"
	"testing"
)

func TestCurrentMatchesInfo(t *testing.T) {
	b := Current()
	v, c, d := Info()

	if b.Version != v || b.Commit != c || b.Date != d {
		t.Errorf("Current() = %+v, Info() = (%s, %s, %s)", b, v, c, d)
	}
	if b.Version == "" {
		t.Error("version should not be empty")
	}
}

func TestString(t *testing.T) {
	s := String()

	if !strings.HasPrefix(s, ServiceName) {
		t.Errorf("String should start with service name, got %q", s)
	}
	for _, field := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, field) {
			t.Errorf("String should contain %q, got %q", field, s)
		}
	}
}
