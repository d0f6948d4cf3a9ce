package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	campaignMetricsOnce sync.Once
	campaignRegistry    *CampaignMetrics

	// baseUnitsPerToken converts base-unit balances into whole tokens for gauges.
	baseUnitsPerToken = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
)

// CampaignMetrics wraps collectors tracking a campaign population run.
type CampaignMetrics struct {
	submissions  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	contributors *prometheus.GaugeVec
	allocated    prometheus.Gauge
	completed    prometheus.Gauge
}

// Campaign exposes the process-wide campaign metrics registered with the
// default Prometheus registerer.
func Campaign() *CampaignMetrics {
	campaignMetricsOnce.Do(func() {
		campaignRegistry = NewCampaignMetrics(prometheus.DefaultRegisterer)
	})
	return campaignRegistry
}

// NewCampaignMetrics builds the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewCampaignMetrics(reg prometheus.Registerer) *CampaignMetrics {
	m := &CampaignMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dhx",
			Subsystem: "reward_campaign",
			Name:      "submissions_total",
			Help:      "Extrinsic submissions segmented by pallet call and outcome.",
		}, []string{"call", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dhx",
			Subsystem: "reward_campaign",
			Name:      "submission_duration_seconds",
			Help:      "Time from submission to confirmation or failure.",
			Buckets:   []float64{0.5, 1, 2, 6, 12, 24, 48, 96, 192},
		}, []string{"call"}),
		contributors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dhx",
			Subsystem: "reward_campaign",
			Name:      "contributors",
			Help:      "Contributors in the current run segmented by state (planned, added, skipped).",
		}, []string{"state"}),
		allocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dhx",
			Subsystem: "reward_campaign",
			Name:      "reward_allocated_tokens",
			Help:      "Sum of computed contributor rewards in whole tokens.",
		}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dhx",
			Subsystem: "reward_campaign",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time at which the last run finished its contributor loop.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.latency, m.contributors, m.allocated, m.completed)
	}
	return m
}

// ObserveSubmission records a finished submission for the pallet call.
func (m *CampaignMetrics) ObserveSubmission(call, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	call = strings.TrimSpace(call)
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome == "" {
		outcome = "unknown"
	}
	m.submissions.WithLabelValues(call, outcome).Inc()
	m.latency.WithLabelValues(call).Observe(elapsed.Seconds())
}

// SetContributors records how many contributors are in the given state.
func (m *CampaignMetrics) SetContributors(state string, count int) {
	if m == nil {
		return
	}
	m.contributors.WithLabelValues(strings.ToLower(strings.TrimSpace(state))).Set(float64(count))
}

// SetAllocated records the allocated reward total given in base units.
func (m *CampaignMetrics) SetAllocated(amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	tokens, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), baseUnitsPerToken).Float64()
	m.allocated.Set(tokens)
}

// MarkCompleted stamps the completion gauge.
func (m *CampaignMetrics) MarkCompleted(at time.Time) {
	if m == nil {
		return
	}
	m.completed.Set(float64(at.Unix()))
}

// WriteTextfile renders everything gathered by g into path in the text
// exposition format, for node_exporter's textfile collector. An empty path
// is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
