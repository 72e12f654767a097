package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "TABLE_PREFIX", "DATABASE_DRIVER", "LOCK_TIMEOUT", "ALLOCATION_MAX_RETRIES", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Environment != "dev" {
		t.Errorf("Environment = %q, want dev", cfg.Environment)
	}
	if cfg.TablePrefix != "dev_" {
		t.Errorf("TablePrefix = %q, want dev_", cfg.TablePrefix)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("DatabaseDriver = %q, want %q", cfg.DatabaseDriver, DriverPostgres)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s", cfg.LockTimeout)
	}
	if cfg.AllocationMaxRetries != 3 {
		t.Errorf("AllocationMaxRetries = %d, want 3", cfg.AllocationMaxRetries)
	}
	if !cfg.Debug {
		t.Error("Debug should default to true outside prod")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("DEBUG", "")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("ALLOCATION_MAX_RETRIES", "not-a-number")

	cfg := Load()

	if cfg.TablePrefix != "prod_" {
		t.Errorf("TablePrefix = %q, want prod_", cfg.TablePrefix)
	}
	if cfg.Debug {
		t.Error("Debug should default to false in prod")
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Errorf("LockTimeout = %v, want 750ms", cfg.LockTimeout)
	}
	if cfg.AllocationMaxRetries != 3 {
		t.Errorf("invalid ALLOCATION_MAX_RETRIES should fall back to 3, got %d", cfg.AllocationMaxRetries)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "postgres with url", cfg: Config{DatabaseDriver: DriverPostgres, DatabaseURL: "postgres://x"}},
		{name: "postgres without url", cfg: Config{DatabaseDriver: DriverPostgres}, wantErr: true},
		{name: "sqlite", cfg: Config{DatabaseDriver: DriverSQLite, SQLitePath: ":memory:"}},
		{name: "unknown driver", cfg: Config{DatabaseDriver: "mysql"}, wantErr: true},
		{name: "negative retries", cfg: Config{DatabaseDriver: DriverSQLite, SQLitePath: "x.db", AllocationMaxRetries: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
