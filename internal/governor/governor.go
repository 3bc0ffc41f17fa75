// Package governor enforces the sending safety policy. It is pure
// policy: a stateless check over externally supplied counters. It
// never authorizes autonomous sending; every send requires a prior
// human approval on the draft.
package governor

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Refusal reasons. Callers match with eris.Is.
var (
	ErrNotApproved    = eris.New("governor: draft not approved")
	ErrAlreadySent    = eris.New("governor: draft already sent")
	ErrDailyCap       = eris.New("governor: daily send cap reached")
	ErrTooSoon        = eris.New("governor: minimum send interval not elapsed")
	ErrLowICP         = eris.New("governor: lead below minimum ICP score")
	ErrBatchTooLarge  = eris.New("governor: batch exceeds maximum size")
	ErrBounceRate     = eris.New("governor: bounce rate above alert threshold")
	ErrComplaintRate  = eris.New("governor: complaint rate above alert threshold")
	ErrBounceCooldown = eris.New("governor: in cooldown after a bounce")
	ErrUnsendable     = eris.New("governor: lead not in a sendable state")
)

// Limits are the hard sending constants.
type Limits struct {
	DailySendCap       int
	MinSendInterval    time.Duration
	MaxBatchSize       int
	MinICPScore        float64
	BounceRateAlert    float64
	ComplaintRateAlert float64
	BounceCooldown     time.Duration
}

// LimitsFromConfig converts the config section into Limits.
func LimitsFromConfig(cfg config.GovernorConfig) Limits {
	return Limits{
		DailySendCap:       cfg.DailySendCap,
		MinSendInterval:    time.Duration(cfg.MinSendIntervalSecs) * time.Second,
		MaxBatchSize:       cfg.MaxBatchSize,
		MinICPScore:        cfg.MinICPScore,
		BounceRateAlert:    cfg.BounceRateAlert,
		ComplaintRateAlert: cfg.ComplaintRateAlert,
		BounceCooldown:     time.Duration(cfg.BounceCooldownSecs) * time.Second,
	}
}

// Governor applies Limits to send decisions.
type Governor struct {
	limits Limits
}

func New(limits Limits) *Governor {
	return &Governor{limits: limits}
}

// SendCheck carries everything CheckSend needs. Counters are supplied
// by the caller; the governor holds no state of its own.
type SendCheck struct {
	Lead      model.Lead
	Draft     model.DraftEmail
	SentToday int
	Totals    store.SendTotals
	Now       time.Time
}

// CheckSend returns nil when a live send may proceed, or the first
// refusal reason otherwise. The approval check comes first: without an
// explicit human approval on the draft nothing else matters.
func (g *Governor) CheckSend(chk SendCheck) error {
	if chk.Draft.Status != model.DraftStatusApproved {
		return eris.Wrapf(ErrNotApproved, "draft %s is %s", chk.Draft.ID, chk.Draft.Status)
	}
	if chk.Draft.SentAt != nil {
		return eris.Wrapf(ErrAlreadySent, "draft %s", chk.Draft.ID)
	}
	if chk.Lead.Status != model.LeadStatusApproved {
		return eris.Wrapf(ErrUnsendable, "lead %s is %s", chk.Lead.ID, chk.Lead.Status)
	}
	if chk.Lead.ICPScore < g.limits.MinICPScore {
		return eris.Wrapf(ErrLowICP, "lead %s scored %.1f, minimum %.1f",
			chk.Lead.ID, chk.Lead.ICPScore, g.limits.MinICPScore)
	}
	if chk.SentToday >= g.limits.DailySendCap {
		return eris.Wrapf(ErrDailyCap, "%d sent today, cap %d", chk.SentToday, g.limits.DailySendCap)
	}
	if chk.Totals.LastSentAt != nil {
		if elapsed := chk.Now.Sub(*chk.Totals.LastSentAt); elapsed < g.limits.MinSendInterval {
			return eris.Wrapf(ErrTooSoon, "last send %s ago, minimum %s", elapsed, g.limits.MinSendInterval)
		}
	}
	if chk.Totals.LastBounceAt != nil {
		if elapsed := chk.Now.Sub(*chk.Totals.LastBounceAt); elapsed < g.limits.BounceCooldown {
			return eris.Wrapf(ErrBounceCooldown, "bounce %s ago, cooldown %s", elapsed, g.limits.BounceCooldown)
		}
	}
	if chk.Totals.Total > 0 {
		bounceRate := float64(chk.Totals.Bounces) / float64(chk.Totals.Total)
		if bounceRate > g.limits.BounceRateAlert {
			return eris.Wrapf(ErrBounceRate, "%.3f over %.3f", bounceRate, g.limits.BounceRateAlert)
		}
		complaintRate := float64(chk.Totals.Complaints) / float64(chk.Totals.Total)
		if complaintRate > g.limits.ComplaintRateAlert {
			return eris.Wrapf(ErrComplaintRate, "%.3f over %.3f", complaintRate, g.limits.ComplaintRateAlert)
		}
	}
	return nil
}

// CheckBatch refuses batches over the maximum size.
func (g *Governor) CheckBatch(size int) error {
	if size > g.limits.MaxBatchSize {
		return eris.Wrapf(ErrBatchTooLarge, "%d over %d", size, g.limits.MaxBatchSize)
	}
	return nil
}

// Pacer returns a limiter that spaces live sends by the minimum
// interval. The send loop waits on it between items, on top of the
// stateless interval check against the persisted send log.
func (g *Governor) Pacer() *rate.Limiter {
	if g.limits.MinSendInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(g.limits.MinSendInterval), 1)
}

// Limits returns the configured constants.
func (g *Governor) Limits() Limits {
	return g.limits
}
