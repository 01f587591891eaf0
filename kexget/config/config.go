// Package config loads kexget settings from a YAML file and KEXGET_*
// environment variables, and reads and writes private key files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/session"
	"github.com/TheusHen/kexget/kexget/transport/tcp"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid value")

// DefaultAddress is where the server listens and the client connects.
const DefaultAddress = "127.0.0.1:65432"

// Config is the resolved configuration shared by the example programs.
type Config struct {
	Address     string
	Secure      bool
	Framing     string
	IdleTimeout time.Duration

	Suite      string
	KDF        string
	Iterations int
	MaxAge     time.Duration

	ExchangeDir string
	Name        string
	PeerName    string
	KeyFile     string

	ResourceDir string
	Concurrent  bool
	RateLimit   float64
	RateBurst   int
	MetricsAddr string

	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		Address:     DefaultAddress,
		Secure:      true,
		Framing:     "chunk",
		Suite:       string(crypto.SuiteFernet),
		KDF:         string(session.KDFPBKDF2),
		Iterations:  crypto.DefaultIterations,
		ExchangeDir: "keys",
		Name:        "server",
		PeerName:    "client",
		RateBurst:   1,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// File is the YAML document. Pointer fields distinguish "unset" from false.
type File struct {
	Address     string        `yaml:"address"`
	Secure      *bool         `yaml:"secure"`
	Framing     string        `yaml:"framing"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	Crypto      FileCrypto    `yaml:"crypto"`
	Exchange    FileExchange  `yaml:"exchange"`
	Server      FileServer    `yaml:"server"`
	Log         FileLog       `yaml:"log"`
}

type FileCrypto struct {
	Suite      string        `yaml:"suite"`
	KDF        string        `yaml:"kdf"`
	Iterations int           `yaml:"iterations"`
	MaxAge     time.Duration `yaml:"maxAge"`
}

type FileExchange struct {
	Dir      string `yaml:"dir"`
	Name     string `yaml:"name"`
	PeerName string `yaml:"peer"`
	KeyFile  string `yaml:"keyFile"`
}

type FileServer struct {
	ResourceDir string  `yaml:"resourceDir"`
	Concurrent  *bool   `yaml:"concurrent"`
	RateLimit   float64 `yaml:"rateLimit"`
	RateBurst   int     `yaml:"rateBurst"`
	MetricsAddr string  `yaml:"metricsAddr"`
}

type FileLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadFromPath returns the defaults merged with the first readable config
// file and then the environment. An explicit path must exist and parse; the
// fallback candidates are skipped when absent.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := []string{"configs/kexget.yaml", "kexget.yaml"}
	if configPath != "" {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath == "" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, err
		}

		var parsed File
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Merge copies every set field of src onto dst.
func Merge(dst *Config, src File) {
	if src.Address != "" {
		dst.Address = src.Address
	}
	if src.Secure != nil {
		dst.Secure = *src.Secure
	}
	if src.Framing != "" {
		dst.Framing = src.Framing
	}
	if src.IdleTimeout != 0 {
		dst.IdleTimeout = src.IdleTimeout
	}
	if src.Crypto.Suite != "" {
		dst.Suite = src.Crypto.Suite
	}
	if src.Crypto.KDF != "" {
		dst.KDF = src.Crypto.KDF
	}
	if src.Crypto.Iterations != 0 {
		dst.Iterations = src.Crypto.Iterations
	}
	if src.Crypto.MaxAge != 0 {
		dst.MaxAge = src.Crypto.MaxAge
	}
	if src.Exchange.Dir != "" {
		dst.ExchangeDir = src.Exchange.Dir
	}
	if src.Exchange.Name != "" {
		dst.Name = src.Exchange.Name
	}
	if src.Exchange.PeerName != "" {
		dst.PeerName = src.Exchange.PeerName
	}
	if src.Exchange.KeyFile != "" {
		dst.KeyFile = src.Exchange.KeyFile
	}
	if src.Server.ResourceDir != "" {
		dst.ResourceDir = src.Server.ResourceDir
	}
	if src.Server.Concurrent != nil {
		dst.Concurrent = *src.Server.Concurrent
	}
	if src.Server.RateLimit != 0 {
		dst.RateLimit = src.Server.RateLimit
	}
	if src.Server.RateBurst != 0 {
		dst.RateBurst = src.Server.RateBurst
	}
	if src.Server.MetricsAddr != "" {
		dst.MetricsAddr = src.Server.MetricsAddr
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.LogFormat = src.Log.Format
	}
}

// ApplyEnvOverrides applies KEXGET_* variables. Values that do not parse are
// ignored.
func ApplyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	str("KEXGET_ADDRESS", &cfg.Address)
	str("KEXGET_FRAMING", &cfg.Framing)
	str("KEXGET_SUITE", &cfg.Suite)
	str("KEXGET_KDF", &cfg.KDF)
	str("KEXGET_EXCHANGE_DIR", &cfg.ExchangeDir)
	str("KEXGET_NAME", &cfg.Name)
	str("KEXGET_PEER", &cfg.PeerName)
	str("KEXGET_KEY_FILE", &cfg.KeyFile)
	str("KEXGET_RESOURCE_DIR", &cfg.ResourceDir)
	str("KEXGET_METRICS_ADDR", &cfg.MetricsAddr)
	str("KEXGET_LOG_LEVEL", &cfg.LogLevel)
	str("KEXGET_LOG_FORMAT", &cfg.LogFormat)

	if raw := strings.TrimSpace(os.Getenv("KEXGET_SECURE")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Secure = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("KEXGET_CONCURRENT")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Concurrent = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("KEXGET_ITERATIONS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Iterations = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("KEXGET_MAX_AGE")); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			cfg.MaxAge = v
		}
	}
}

// Validate checks the fields that have a closed set of values.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalid)
	}
	if _, err := tcp.ParseFraming(c.Framing); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.SessionParams(); err != nil {
		return err
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("%w: negative rate limit", ErrInvalid)
	}
	return nil
}

// SessionParams converts the crypto section to session parameters.
func (c Config) SessionParams() (session.Params, error) {
	p := session.DefaultParams()
	suite, err := crypto.ParseSuite(c.Suite)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p.Suite = suite

	switch session.KDF(c.KDF) {
	case "", session.KDFPBKDF2:
		p.KDF = session.KDFPBKDF2
	case session.KDFArgon2id:
		p.KDF = session.KDFArgon2id
	default:
		return p, fmt.Errorf("%w: kdf %q", ErrInvalid, c.KDF)
	}

	if c.Iterations <= 0 {
		return p, fmt.Errorf("%w: iterations must be positive", ErrInvalid)
	}
	p.Iterations = c.Iterations
	if c.MaxAge < 0 {
		return p, fmt.Errorf("%w: negative max age", ErrInvalid)
	}
	p.MaxAge = c.MaxAge
	return p, nil
}

// TransportFraming returns the parsed framing mode.
func (c Config) TransportFraming() tcp.Framing {
	f, err := tcp.ParseFraming(c.Framing)
	if err != nil {
		return tcp.FramingChunk
	}
	return f
}
