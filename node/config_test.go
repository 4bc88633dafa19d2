package node

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Network == "" || cfg.DataDir == "" || cfg.LogLevel == "" {
		t.Fatalf("default config has an empty field: %+v", cfg)
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatalf("DefaultDataDir must never return an empty path")
	}
}

func TestValidateConfigRejectsEmptyNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "   "
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected an error for a blank network")
	}
}

func TestValidateConfigRejectsEmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected an error for an empty data_dir")
	}
}

func TestValidateConfigRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected an error for an unrecognized log level")
	}
}

func TestValidateConfigAcceptsLogLevelCaseInsensitively(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "WARN"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("log level matching should be case-insensitive: %v", err)
	}
}

func TestValidateConfigAcceptsEachAllowedLogLevel(t *testing.T) {
	for level := range allowedLogLevels {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := ValidateConfig(cfg); err != nil {
			t.Fatalf("log level %q should be valid: %v", level, err)
		}
	}
}
