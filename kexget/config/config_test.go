package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/session"
	"github.com/TheusHen/kexget/kexget/transport/tcp"
)

func boolPtr(v bool) *bool {
	return &v
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kexget.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeFile(t, `
address: 0.0.0.0:7000
secure: false
framing: length
idleTimeout: 30s
crypto:
  suite: xchacha20poly1305
  kdf: argon2id
  iterations: 5000
  maxAge: 2m
exchange:
  dir: /var/lib/kexget
  name: alpha
  peer: beta
server:
  concurrent: true
  rateLimit: 2.5
  rateBurst: 4
log:
  level: debug
  format: json
`)
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Address != "0.0.0.0:7000" || cfg.Secure {
		t.Fatalf("unexpected address/secure: %+v", cfg)
	}
	if cfg.TransportFraming() != tcp.FramingLength || cfg.IdleTimeout != 30*time.Second {
		t.Fatalf("unexpected transport settings: %+v", cfg)
	}
	if cfg.Name != "alpha" || cfg.PeerName != "beta" || cfg.ExchangeDir != "/var/lib/kexget" {
		t.Fatalf("unexpected exchange settings: %+v", cfg)
	}
	if !cfg.Concurrent || cfg.RateLimit != 2.5 || cfg.RateBurst != 4 {
		t.Fatalf("unexpected server settings: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected log settings: %+v", cfg)
	}

	p, err := cfg.SessionParams()
	if err != nil {
		t.Fatalf("SessionParams: %v", err)
	}
	if p.Suite != crypto.SuiteXChaCha20Poly1305 || p.KDF != session.KDFArgon2id || p.Iterations != 5000 || p.MaxAge != 2*time.Minute {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestLoadFromPathMissingExplicitFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadFromPathInvalidValue(t *testing.T) {
	path := writeFile(t, "crypto:\n  suite: rot13\n")
	if _, err := LoadFromPath(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestMergeDoesNotOverwriteDefaultsWhenUnset(t *testing.T) {
	dst := Default()
	Merge(&dst, File{Address: "127.0.0.1:1"})

	if dst.Address != "127.0.0.1:1" {
		t.Fatalf("expected address override, got %q", dst.Address)
	}
	if !dst.Secure {
		t.Fatal("secure default was overwritten")
	}
	if dst.Iterations != crypto.DefaultIterations {
		t.Fatalf("iterations default was overwritten: %d", dst.Iterations)
	}

	Merge(&dst, File{Secure: boolPtr(false)})
	if dst.Secure {
		t.Fatal("expected secure=false after explicit merge")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KEXGET_ADDRESS", " 10.0.0.1:9 ")
	t.Setenv("KEXGET_SECURE", "false")
	t.Setenv("KEXGET_ITERATIONS", "42")
	t.Setenv("KEXGET_MAX_AGE", "90s")
	t.Setenv("KEXGET_CONCURRENT", "not-a-bool")

	cfg := Default()
	ApplyEnvOverrides(&cfg)

	if cfg.Address != "10.0.0.1:9" {
		t.Fatalf("expected trimmed address, got %q", cfg.Address)
	}
	if cfg.Secure {
		t.Fatal("expected secure=false")
	}
	if cfg.Iterations != 42 || cfg.MaxAge != 90*time.Second {
		t.Fatalf("unexpected crypto overrides: %+v", cfg)
	}
	if cfg.Concurrent {
		t.Fatal("unparseable bool must be ignored")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "address: 127.0.0.1:1000\n")
	t.Setenv("KEXGET_ADDRESS", "127.0.0.1:2000")
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Address != "127.0.0.1:2000" {
		t.Fatalf("environment should win over file, got %q", cfg.Address)
	}
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"framing":    func(c *Config) { c.Framing = "lines" },
		"kdf":        func(c *Config) { c.KDF = "scrypt" },
		"iterations": func(c *Config) { c.Iterations = 0 },
		"address":    func(c *Config) { c.Address = "" },
		"maxAge":     func(c *Config) { c.MaxAge = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
