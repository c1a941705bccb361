package evictsync

import (
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	versionInfo := GetVersionInfo()

	if versionInfo.Version == "" {
		t.Error("Version should not be empty")
	}

	if versionInfo.Version != Version {
		t.Errorf("Expected version %s, got %s", Version, versionInfo.Version)
	}
}

func TestVersionConstant(t *testing.T) {
	if Version == "" {
		t.Error("Version constant should not be empty")
	}

	// Version should follow semantic versioning format (basic check)
	if len(Version) < 5 {
		t.Errorf("Version %s seems too short, expected format like '0.1.0'", Version)
	}
}
