package campaignctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rewardcampaign/crypto"
	"rewardcampaign/observability/logging"
	"rewardcampaign/sdk/reward"
)

// Environment variables read by LoadConfig. Values set here override the
// YAML file.
const (
	EnvConfigPath    = "CAMPAIGN_CONFIG"
	EnvEnvironment   = "CAMPAIGN_ENV"
	EnvRPCURL        = "CAMPAIGN_RPC_URL"
	EnvKeystore      = "CAMPAIGN_KEYSTORE"
	EnvPassphraseEnv = "CAMPAIGN_PASSPHRASE_ENV"
	EnvDryRun        = "CAMPAIGN_DRY_RUN"
	EnvLogLevel      = "CAMPAIGN_LOG_LEVEL"

	defaultPassphraseEnv = "CAMPAIGN_KEYSTORE_PASSPHRASE"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for a campaign run.
type Config struct {
	Environment       string        `yaml:"env"`
	RPC               RPCConfig     `yaml:"rpc"`
	Signer            SignerConfig  `yaml:"signer"`
	SS58Format        uint16        `yaml:"ss58_format"`
	DryRun            bool          `yaml:"dry_run"`
	LockAfterPopulate bool          `yaml:"lock_after_populate"`
	Logging           LoggingConfig `yaml:"logging"`
	MetricsTextfile   string        `yaml:"metrics_textfile"`
}

// RPCConfig describes the node connection.
type RPCConfig struct {
	Endpoint             string   `yaml:"endpoint"`
	WaitFor              string   `yaml:"wait_for"`
	DialTimeout          Duration `yaml:"dial_timeout"`
	SubmitTimeout        Duration `yaml:"submit_timeout"`
	SubmissionsPerSecond float64  `yaml:"submissions_per_second"`
	BearerSecret         string   `yaml:"bearer_secret"`
	BearerSecretFile     string   `yaml:"bearer_secret_file"`
	BearerSecretEnv      string   `yaml:"bearer_secret_env"`
}

// SignerConfig locates the signing key. The passphrase itself never lives in
// the file: it is read from the environment variable named by PassphraseEnv or
// prompted for.
type SignerConfig struct {
	Keystore      string `yaml:"keystore"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// LoggingConfig controls log verbosity and the optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// LoadConfig reads the optional YAML file at path, applies environment
// overrides and defaults, and validates the result. An empty path skips the
// file entirely.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Config{}
	if path = strings.TrimSpace(path); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := cfg.RPC.normalise(getenv); err != nil {
		return cfg, fmt.Errorf("rpc bearer secret: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvEnvironment)); v != "" {
		cfg.Environment = v
	}
	if v := strings.TrimSpace(getenv(EnvRPCURL)); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := strings.TrimSpace(getenv(EnvKeystore)); v != "" {
		cfg.Signer.Keystore = v
	}
	if v := strings.TrimSpace(getenv(EnvPassphraseEnv)); v != "" {
		cfg.Signer.PassphraseEnv = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvDryRun)); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDryRun, err)
		}
		cfg.DryRun = parsed
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPC.Endpoint == "" {
		cfg.RPC.Endpoint = "ws://127.0.0.1:9944"
	}
	if cfg.RPC.WaitFor == "" {
		cfg.RPC.WaitFor = reward.WaitFinalized.String()
	}
	if cfg.RPC.DialTimeout.Duration == 0 {
		cfg.RPC.DialTimeout.Duration = 10 * time.Second
	}
	if cfg.RPC.SubmitTimeout.Duration == 0 {
		cfg.RPC.SubmitTimeout.Duration = 2 * time.Minute
	}
	if cfg.Signer.PassphraseEnv == "" {
		cfg.Signer.PassphraseEnv = defaultPassphraseEnv
	}
	if cfg.SS58Format == 0 {
		cfg.SS58Format = crypto.DataHighwayFormat
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 5
	}
}

func validateConfig(cfg Config) error {
	endpoint := strings.ToLower(cfg.RPC.Endpoint)
	if !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://") {
		return fmt.Errorf("rpc endpoint must use ws:// or wss://")
	}
	if _, err := reward.ParseWaitPolicy(cfg.RPC.WaitFor); err != nil {
		return err
	}
	if cfg.RPC.SubmissionsPerSecond < 0 {
		return fmt.Errorf("rpc submissions_per_second must not be negative")
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if !cfg.DryRun && strings.TrimSpace(cfg.Signer.Keystore) == "" {
		return fmt.Errorf("signer keystore must be configured (set %s)", EnvKeystore)
	}
	return nil
}

func (r *RPCConfig) normalise(getenv func(string) string) error {
	r.BearerSecret = strings.TrimSpace(r.BearerSecret)
	r.BearerSecretEnv = strings.TrimSpace(r.BearerSecretEnv)
	r.BearerSecretFile = strings.TrimSpace(r.BearerSecretFile)
	if r.BearerSecret != "" {
		return nil
	}
	switch {
	case r.BearerSecretEnv != "":
		value := strings.TrimSpace(getenv(r.BearerSecretEnv))
		if value == "" {
			return fmt.Errorf("bearer_secret_env %s is empty", r.BearerSecretEnv)
		}
		r.BearerSecret = value
	case r.BearerSecretFile != "":
		contents, err := os.ReadFile(r.BearerSecretFile)
		if err != nil {
			return fmt.Errorf("read bearer_secret_file: %w", err)
		}
		r.BearerSecret = strings.TrimSpace(string(contents))
	}
	return nil
}
