package version_test

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/ludo-technologies/astsim/internal/version"
)

func TestShort(t *testing.T) {
	if version.Short() == "" {
		t.Error("Short() should return non-empty string")
	}
}

func TestInfo(t *testing.T) {
	info := version.Info()

	if !strings.Contains(info, "astsim") {
		t.Error("Info() should contain 'astsim'")
	}

	if !strings.Contains(info, runtime.Version()) {
		t.Errorf("Info() should contain Go version %s", runtime.Version())
	}

	expectedArch := runtime.GOOS + "/" + runtime.GOARCH
	if !strings.Contains(info, expectedArch) {
		t.Errorf("Info() should contain OS/Arch %s", expectedArch)
	}
}

func TestInfoFormat(t *testing.T) {
	lines := strings.Split(version.Info(), "\n")
	if len(lines) != 5 {
		t.Fatalf("Info() should contain 5 lines, got %d", len(lines))
	}

	expectedPrefixes := []string{"astsim ", "Commit:", "Built:", "Go:", "OS/Arch:"}
	for i, prefix := range expectedPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d should start with %q, got %q", i+1, prefix, lines[i])
		}
	}
}

func TestInfoIncludesBuildMetadata(t *testing.T) {
	b := version.Get()
	info := version.Info()

	expected := []string{
		fmt.Sprintf("astsim %s", version.Version),
		fmt.Sprintf("Commit: %s", b.Commit),
		fmt.Sprintf("Built: %s by %s", b.Date, version.BuiltBy),
	}
	for _, e := range expected {
		if !strings.Contains(info, e) {
			t.Errorf("Info() output missing %q", e)
		}
	}
}

func TestGet(t *testing.T) {
	b := version.Get()
	if b.Version != version.Version {
		t.Errorf("Version = %q, want %q", b.Version, version.Version)
	}
	if b.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", b.GoVersion, runtime.Version())
	}
	if b.Commit == "" || b.Date == "" {
		t.Error("Commit and Date should never be empty")
	}
}
