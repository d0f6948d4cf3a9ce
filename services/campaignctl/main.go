package campaignctl

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"rewardcampaign/core/campaign"
	"rewardcampaign/crypto"
	"rewardcampaign/observability"
	"rewardcampaign/observability/logging"
	telemetry "rewardcampaign/observability/otel"
	"rewardcampaign/sdk/reward"
)

const (
	serviceName         = "reward-campaign"
	defaultCampaignFile = "campaign.json"
)

// MainOption customises the process surface, mostly for tests.
type MainOption func(*runtime)

// WithGetenv replaces os.Getenv as the source of environment settings.
func WithGetenv(getenv func(string) string) MainOption {
	return func(r *runtime) { r.getenv = getenv }
}

// WithPassphrase supplies the keystore passphrase lookup. It receives the
// name of the environment variable configured for the signer.
func WithPassphrase(fn func(envVar string) (string, error)) MainOption {
	return func(r *runtime) { r.passphrase = fn }
}

// WithLogOutput redirects log lines, which otherwise go to stdout.
func WithLogOutput(w io.Writer) MainOption {
	return func(r *runtime) { r.logOutput = w }
}

// WithRegistry records metrics into reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) MainOption {
	return func(r *runtime) {
		r.metrics = observability.NewCampaignMetrics(reg)
		r.gatherer = reg
	}
}

type runtime struct {
	getenv     func(string) string
	passphrase func(envVar string) (string, error)
	logOutput  io.Writer
	metrics    *observability.CampaignMetrics
	gatherer   prometheus.Gatherer
}

// Main runs one campaign population. args holds the command line without the
// program name: at most one campaign file path. Contributor failures are
// logged and do not make Main fail; anything that stops the run does.
func Main(args []string, opts ...MainOption) error {
	rt := &runtime{getenv: os.Getenv}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.metrics == nil {
		rt.metrics = observability.Campaign()
		rt.gatherer = prometheus.DefaultGatherer
	}
	if rt.passphrase == nil {
		rt.passphrase = func(envVar string) (string, error) {
			value := rt.getenv(envVar)
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is not set", envVar)
			}
			return value, nil
		}
	}

	if len(args) > 1 {
		return fmt.Errorf("usage: %s [campaign-file]", serviceName)
	}
	campaignPath := defaultCampaignFile
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		campaignPath = args[0]
	}

	cfg, err := LoadConfig(rt.getenv(EnvConfigPath), rt.getenv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, closeLog := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      level,
		Output:     rt.logOutput,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer func() { _ = closeLog() }()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    strings.TrimSpace(rt.getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    otlpInsecure(rt.getenv("OTEL_EXPORTER_OTLP_INSECURE")),
		Headers:     telemetry.ParseHeaders(rt.getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger = logger.With(slog.String("run_id", uuid.NewString()))
	logger.Info("configuration loaded",
		slog.String("endpoint", cfg.RPC.Endpoint),
		slog.String("wait_for", cfg.RPC.WaitFor),
		slog.Bool("dry_run", cfg.DryRun),
		slog.Bool("lock_after_populate", cfg.LockAfterPopulate),
		logging.MaskField("bearer_secret", cfg.RPC.BearerSecret))

	c, err := campaign.Load(campaignPath)
	if err != nil {
		return err
	}
	fingerprint := c.Fingerprint()
	logger.Info("campaign loaded",
		slog.String("file", campaignPath),
		slog.Uint64("campaign_id", uint64(c.ID)),
		slog.String("hoster", c.Hoster.SS58(cfg.SS58Format)),
		slog.String("instant_percentage", c.InstantPercentage.String()),
		slog.Uint64("starts_from", uint64(c.StartsFrom)),
		slog.Uint64("ends_at", uint64(c.EndsAt)),
		slog.Int("contributors", len(c.Contributors)),
		slog.String("fingerprint", hex.EncodeToString(fingerprint[:])))

	client, closeClient, err := rt.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeClient() }()

	pipeline := NewPipeline(client,
		WithLogger(logger),
		WithMetrics(rt.metrics),
		WithLockAfterPopulate(cfg.LockAfterPopulate),
	)
	report, runErr := pipeline.Run(ctx, c)
	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile, rt.gatherer); err != nil {
			logger.Warn("metrics textfile not written", slog.String("path", cfg.MetricsTextfile), slog.String("error", err.Error()))
		}
	}
	if runErr != nil {
		return runErr
	}

	skipped := report.Skipped()
	for _, o := range skipped {
		logger.Warn("contributor requires follow-up",
			slog.Int("index", o.Allocation.Index),
			slog.String("who", o.Allocation.Contributor.Who.SS58(cfg.SS58Format)),
			slog.String("reward", o.Allocation.Reward.Dec()),
			slog.String("error", o.Err.Error()))
	}
	logger.Info("campaign run finished",
		slog.Uint64("campaign_id", uint64(report.CampaignID)),
		slog.String("state", report.State.String()),
		slog.Int("added", len(report.Outcomes)-len(skipped)),
		slog.Int("skipped", len(skipped)),
		slog.Bool("locked", report.Locked != nil))
	return nil
}

// connect returns the chain client for the run and a function releasing it.
func (rt *runtime) connect(ctx context.Context, cfg Config, logger *slog.Logger) (ChainClient, func() error, error) {
	if cfg.DryRun {
		logger.Warn("dry run: transactions are logged, not submitted")
		return reward.NewPallet(newDryRunSubmitter(logger)), func() error { return nil }, nil
	}

	passphrase, err := rt.passphrase(cfg.Signer.PassphraseEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("signer passphrase: %w", err)
	}
	key, err := crypto.LoadFromKeystore(cfg.Signer.Keystore, passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("load signer key: %w", err)
	}
	policy, err := reward.ParseWaitPolicy(cfg.RPC.WaitFor)
	if err != nil {
		return nil, nil, err
	}
	opts := []reward.Option{
		reward.WithWaitPolicy(policy),
		reward.WithDialTimeout(cfg.RPC.DialTimeout.Duration),
		reward.WithSubmitTimeout(cfg.RPC.SubmitTimeout.Duration),
		reward.WithRateLimit(cfg.RPC.SubmissionsPerSecond, 1),
		reward.WithSS58Format(cfg.SS58Format),
		reward.WithLogger(logger),
	}
	if cfg.RPC.BearerSecret != "" {
		opts = append(opts, reward.WithBearerSecret([]byte(cfg.RPC.BearerSecret)))
	}
	client, err := reward.Dial(ctx, cfg.RPC.Endpoint, key, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.RPC.Endpoint, err)
	}
	logger.Info("signer ready",
		slog.String("account", client.Account().SS58(cfg.SS58Format)),
		slog.String("endpoint", cfg.RPC.Endpoint),
		slog.String("keystore", cfg.Signer.Keystore),
		slog.String("passphrase_env", cfg.Signer.PassphraseEnv))
	return reward.NewPallet(client), client.Close, nil
}

func otlpInsecure(raw string) bool {
	if value := strings.TrimSpace(raw); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return true
}
