package database

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "filevault",
		Password: "secret",
		DBName:   "filevault",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=filevault password=secret dbname=filevault sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		cfg := &Config{DBName: "filevault"}
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing user")
		}
	})

	t.Run("missing dbname", func(t *testing.T) {
		cfg := &Config{User: "filevault"}
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing dbname")
		}
	})

	t.Run("valid", func(t *testing.T) {
		cfg := &Config{User: "filevault", DBName: "filevault"}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{User: "u", DBName: "d"}
	cfg.SetDefaults()

	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}
	if cfg.MaxOpenConns != 100 {
		t.Errorf("MaxOpenConns = %d, want 100", cfg.MaxOpenConns)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"translated", gorm.ErrDuplicatedKey, true},
		{"wrapped translated", errors.New("create failed: " + gorm.ErrDuplicatedKey.Error()), false},
		{"sqlstate", errors.New(`ERROR: duplicate key value violates unique constraint "file_metadata_pkey" (SQLSTATE 23505)`), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKeyError(tt.err); got != tt.want {
				t.Fatalf("IsDuplicateKeyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRecordNotFoundError(t *testing.T) {
	if !IsRecordNotFoundError(gorm.ErrRecordNotFound) {
		t.Fatal("expected true for gorm.ErrRecordNotFound")
	}
	if IsRecordNotFoundError(errors.New("boom")) {
		t.Fatal("expected false for unrelated error")
	}
}
