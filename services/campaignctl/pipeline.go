package campaignctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardcampaign/core/campaign"
	"rewardcampaign/crypto"
	"rewardcampaign/observability"
	"rewardcampaign/sdk/reward"
)

// ChainClient is the subset of the reward pallet the pipeline drives.
type ChainClient interface {
	StartNewCampaign(ctx context.Context, campaignID uint32, info reward.CreateCampaignParams) (reward.Confirmation, error)
	AddContributer(ctx context.Context, campaignID uint32, who crypto.AccountID, amount *uint256.Int) (reward.Confirmation, error)
	LockCampaign(ctx context.Context, campaignID uint32) (reward.Confirmation, error)
}

// State tracks how far a run progressed.
type State int

const (
	StateIdle State = iota
	StateCampaignCreated
	StateContributorsInFlight
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCampaignCreated:
		return "campaign_created"
	case StateContributorsInFlight:
		return "contributors_in_flight"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// CampaignCreationError aborts a run: contributors cannot be added to a
// campaign that does not exist.
type CampaignCreationError struct {
	CampaignID uint32
	Err        error
}

func (e *CampaignCreationError) Error() string {
	return fmt.Sprintf("campaignctl: start campaign %d: %v", e.CampaignID, e.Err)
}

func (e *CampaignCreationError) Unwrap() error { return e.Err }

// ContributorSubmissionError records a contributor that could not be added.
// It never aborts the run.
type ContributorSubmissionError struct {
	Index  int
	Who    crypto.AccountID
	Amount *uint256.Int
	Err    error
}

func (e *ContributorSubmissionError) Error() string {
	return fmt.Sprintf("campaignctl: add contributor %d (%s): %v", e.Index, e.Who, e.Err)
}

func (e *ContributorSubmissionError) Unwrap() error { return e.Err }

// CampaignLockError reports a failed lock after the contributor loop.
type CampaignLockError struct {
	CampaignID uint32
	Err        error
}

func (e *CampaignLockError) Error() string {
	return fmt.Sprintf("campaignctl: lock campaign %d: %v", e.CampaignID, e.Err)
}

func (e *CampaignLockError) Unwrap() error { return e.Err }

// Outcome is the result of one contributor submission. Err is a
// *ContributorSubmissionError when the contributor was skipped.
type Outcome struct {
	Allocation   campaign.Allocation
	Confirmation reward.Confirmation
	Err          error
}

// Succeeded reports whether the contributor was added.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Report summarises a run. Outcomes holds exactly one entry per contributor
// attempted, in input order.
type Report struct {
	CampaignID uint32
	State      State
	Created    reward.Confirmation
	Outcomes   []Outcome
	Locked     *reward.Confirmation
}

// Skipped returns the outcomes whose submission failed.
func (r *Report) Skipped() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// PipelineOption customises the pipeline.
type PipelineOption func(*Pipeline)

// WithRewardPool overrides the reward pool shared between contributors.
func WithRewardPool(pool *uint256.Int) PipelineOption {
	return func(p *Pipeline) { p.pool = pool }
}

// WithLogger overrides the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics overrides the metrics registry.
func WithMetrics(m *observability.CampaignMetrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer overrides the tracer used for submission spans.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = tracer }
}

// WithLockAfterPopulate locks the campaign once every contributor was attempted.
func WithLockAfterPopulate(lock bool) PipelineOption {
	return func(p *Pipeline) { p.lock = lock }
}

// WithClock sets the function used to measure submissions.
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = clock }
}

// Pipeline starts a campaign and populates it with contributors, one
// transaction at a time.
type Pipeline struct {
	client  ChainClient
	pool    *uint256.Int
	logger  *slog.Logger
	metrics *observability.CampaignMetrics
	tracer  trace.Tracer
	lock    bool
	now     func() time.Time
}

// NewPipeline constructs a pipeline submitting through client.
func NewPipeline(client ChainClient, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client: client,
		pool:   campaign.DefaultRewardPool(),
		logger: slog.Default(),
		tracer: otel.Tracer("rewardcampaign/services/campaignctl"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the campaign. Rewards are planned up front, so an arithmetic
// failure aborts before any transaction is sent. The returned report is
// non-nil whenever the campaign was created. A cancelled ctx stops the run
// before the next contributor and is returned as an error; the report then
// stays in StateContributorsInFlight and holds only the attempted outcomes.
func (p *Pipeline) Run(ctx context.Context, c *campaign.Campaign) (*Report, error) {
	if p.client == nil {
		return nil, errors.New("campaignctl: chain client not configured")
	}
	if c == nil {
		return nil, errors.New("campaignctl: campaign required")
	}
	allocations, err := campaign.Allocate(c, p.pool)
	if err != nil {
		return nil, fmt.Errorf("campaignctl: plan rewards: %w", err)
	}
	allocated := new(uint256.Int)
	for _, a := range allocations {
		allocated.Add(allocated, a.Reward)
	}
	p.metrics.SetContributors("planned", len(allocations))
	p.metrics.SetAllocated(allocated.ToBig())
	p.logger.Info("rewards planned",
		slog.Uint64("campaign_id", uint64(c.ID)),
		slog.Int("contributors", len(allocations)),
		slog.String("pool", p.pool.Dec()),
		slog.String("allocated", allocated.Dec()))

	report := &Report{CampaignID: c.ID, State: StateIdle}

	created, err := p.start(ctx, c.Descriptor)
	if err != nil {
		return nil, &CampaignCreationError{CampaignID: c.ID, Err: err}
	}
	report.Created = created
	report.State = StateCampaignCreated
	p.logger.Info("campaign started",
		slog.Uint64("campaign_id", uint64(c.ID)),
		slog.String("extrinsic", created.ExtrinsicHash),
		slog.String("block", created.BlockHash))

	report.State = StateContributorsInFlight
	report.Outcomes = make([]Outcome, 0, len(allocations))
	for _, alloc := range allocations {
		if err := ctx.Err(); err != nil {
			p.logger.Error("run interrupted",
				slog.Uint64("campaign_id", uint64(c.ID)),
				slog.Int("attempted", len(report.Outcomes)),
				slog.Int("remaining", len(allocations)-len(report.Outcomes)))
			return report, fmt.Errorf("campaignctl: interrupted after %d of %d contributors: %w",
				len(report.Outcomes), len(allocations), err)
		}
		report.Outcomes = append(report.Outcomes, p.addContributor(ctx, c.ID, alloc))
	}
	report.State = StateDone

	skipped := len(report.Skipped())
	p.metrics.SetContributors("added", len(report.Outcomes)-skipped)
	p.metrics.SetContributors("skipped", skipped)
	p.metrics.MarkCompleted(p.now())
	p.logger.Info("contributors processed",
		slog.Uint64("campaign_id", uint64(c.ID)),
		slog.Int("added", len(report.Outcomes)-skipped),
		slog.Int("skipped", skipped))

	if p.lock {
		conf, err := p.submit(ctx, reward.MethodLockCampaign, func(ctx context.Context) (reward.Confirmation, error) {
			return p.client.LockCampaign(ctx, c.ID)
		})
		if err != nil {
			return report, &CampaignLockError{CampaignID: c.ID, Err: err}
		}
		report.Locked = &conf
		p.logger.Info("campaign locked", slog.Uint64("campaign_id", uint64(c.ID)), slog.String("block", conf.BlockHash))
	}
	return report, nil
}

func (p *Pipeline) start(ctx context.Context, d campaign.Descriptor) (reward.Confirmation, error) {
	hoster := d.Hoster
	startsFrom := d.StartsFrom
	info := reward.CreateCampaignParams{
		Hoster: &hoster,
		InstantPercentage: reward.SmallRational{
			Numerator:   d.InstantPercentage.Numerator,
			Denominator: d.InstantPercentage.Denominator,
		},
		StartsFrom: &startsFrom,
		EndTarget:  d.EndsAt,
	}
	return p.submit(ctx, reward.MethodStartNewCampaign, func(ctx context.Context) (reward.Confirmation, error) {
		return p.client.StartNewCampaign(ctx, d.ID, info)
	})
}

func (p *Pipeline) addContributor(ctx context.Context, campaignID uint32, alloc campaign.Allocation) Outcome {
	who := alloc.Contributor.Who
	conf, err := p.submit(ctx, reward.MethodAddContributer, func(ctx context.Context) (reward.Confirmation, error) {
		return p.client.AddContributer(ctx, campaignID, who, alloc.Reward)
	}, attribute.Int("contributor.index", alloc.Index), attribute.String("contributor.who", who.String()))
	if err != nil {
		p.logger.Warn("contributor skipped",
			slog.Uint64("campaign_id", uint64(campaignID)),
			slog.Int("index", alloc.Index),
			slog.String("who", who.String()),
			slog.String("contributed", alloc.Contributor.Contributed.Dec()),
			slog.String("reward", alloc.Reward.Dec()),
			slog.String("error", err.Error()))
		return Outcome{
			Allocation: alloc,
			Err:        &ContributorSubmissionError{Index: alloc.Index, Who: who, Amount: alloc.Reward, Err: err},
		}
	}
	p.logger.Info("contributor added",
		slog.Uint64("campaign_id", uint64(campaignID)),
		slog.Int("index", alloc.Index),
		slog.String("who", who.String()),
		slog.String("reward", alloc.Reward.Dec()),
		slog.String("extrinsic", conf.ExtrinsicHash))
	return Outcome{Allocation: alloc, Confirmation: conf}
}

// submit wraps one chain call with a span and submission metrics.
func (p *Pipeline) submit(ctx context.Context, method string, fn func(context.Context) (reward.Confirmation, error), attrs ...attribute.KeyValue) (reward.Confirmation, error) {
	call := reward.PalletName + "." + method
	ctx, span := p.tracer.Start(ctx, call, trace.WithAttributes(attrs...))
	defer span.End()

	started := p.now()
	conf, err := fn(ctx)
	elapsed := p.now().Sub(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObserveSubmission(call, outcomeLabel(err), elapsed)
		return conf, err
	}
	span.SetAttributes(
		attribute.String("extrinsic.hash", conf.ExtrinsicHash),
		attribute.String("block.hash", conf.BlockHash),
		attribute.Bool("finalized", conf.Finalized))
	p.metrics.ObserveSubmission(call, "confirmed", elapsed)
	return conf, nil
}

func outcomeLabel(err error) string {
	if kind := reward.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}
