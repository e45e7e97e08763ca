package cfg

import "testing"

func TestGetVersion(t *testing.T) {
	if GetVersion() != "dev" {
		t.Errorf("Expected default version dev, got %s", GetVersion())
	}

	saved := Version
	defer func() { Version = saved }()

	Version = "1.2.3"
	if GetVersion() != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %s", GetVersion())
	}

	Version = ""
	if GetVersion() != "unknown" {
		t.Errorf("Expected unknown for empty version, got %s", GetVersion())
	}
}

func TestGetPanicsBeforeLoad(t *testing.T) {
	saved := globalCfg
	defer func() { globalCfg = saved }()
	globalCfg = nil

	defer func() {
		if recover() == nil {
			t.Error("Expected panic when configuration is not loaded")
		}
	}()
	Get()
}

func TestGetReturnsLoaded(t *testing.T) {
	saved := globalCfg
	defer func() { globalCfg = saved }()

	globalCfg = &Cfg{Port: "9090", Debug: true}

	got := Get()
	if got.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", got.Port)
	}
	if !got.Debug {
		t.Error("Expected debug enabled")
	}
}

func TestApplyTimezone(t *testing.T) {
	if err := applyTimezone("UTC"); err != nil {
		t.Errorf("Expected UTC to be valid, got %v", err)
	}
	if err := applyTimezone("Not/AZone"); err == nil {
		t.Error("Expected error for unknown timezone")
	}
	if err := applyTimezone(""); err != nil {
		t.Errorf("Expected empty timezone to be a no-op, got %v", err)
	}
}
