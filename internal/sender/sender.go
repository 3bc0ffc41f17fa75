// Package sender delivers approved drafts through SMTP under the
// safety governor. It is only reachable from the explicitly invoked
// send command, never from the pipeline.
package sender

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/governor"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/usage"
	"github.com/sells-group/outreach-cli/pkg/smtp"
)

// Options tune one send invocation.
type Options struct {
	// Test sends every draft to TestAddress instead of the lead, records
	// test_sent_at, and leaves statuses untouched.
	Test bool
	// TestAddress receives test sends.
	TestAddress string
	// Limit caps how many drafts this invocation attempts. Bounded by
	// the governor's batch cap either way.
	Limit int
}

// Summary reports one send run.
type Summary struct {
	Attempted int
	Sent      int
	Refused   int
	Failed    int
}

// Sender runs the send loop.
type Sender struct {
	store    store.Store
	smtp     smtp.Sender
	governor *governor.Governor
	tracker  usage.Tracker
	now      func() time.Time
}

func New(s store.Store, sm smtp.Sender, g *governor.Governor, tracker usage.Tracker) *Sender {
	return &Sender{store: s, smtp: sm, governor: g, tracker: tracker, now: time.Now}
}

// Send walks approved drafts strictly one at a time. Each live send is
// re-checked against the governor with fresh counters; a refusal skips
// the draft, a delivery failure skips the draft, and the loop
// continues either way. Live sends advance draft and lead to sent and
// are recorded for daily accounting.
func (s *Sender) Send(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Test && opts.TestAddress == "" {
		return nil, eris.New("sender: test send requires a test address")
	}

	drafts, err := s.store.ListDrafts(ctx, store.DraftFilter{
		Status: model.DraftStatusApproved,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "sender: list approved drafts")
	}
	if err := s.governor.CheckBatch(len(drafts)); err != nil {
		drafts = drafts[:s.governor.Limits().MaxBatchSize]
		zap.L().Warn("batch truncated to governor maximum",
			zap.Int("max", s.governor.Limits().MaxBatchSize))
	}

	pacer := s.governor.Pacer()
	summary := &Summary{}
	for _, draft := range drafts {
		summary.Attempted++

		lead, err := s.store.GetLead(ctx, draft.LeadID)
		if err != nil {
			return nil, eris.Wrapf(err, "sender: load lead for draft %s", draft.ID)
		}

		if opts.Test {
			if err := s.sendTest(ctx, draft, opts.TestAddress); err != nil {
				zap.L().Error("test send failed",
					zap.String("draft_id", draft.ID), zap.Error(err))
				summary.Failed++
				continue
			}
			summary.Sent++
			continue
		}

		if err := s.checkGovernor(ctx, *lead, draft); err != nil {
			zap.L().Warn("send refused",
				zap.String("draft_id", draft.ID),
				zap.String("reason", eris.ToString(err, false)))
			summary.Refused++
			continue
		}

		if err := pacer.Wait(ctx); err != nil {
			return summary, eris.Wrap(err, "sender: pacing wait")
		}

		if err := s.sendLive(ctx, *lead, draft); err != nil {
			zap.L().Error("send failed",
				zap.String("draft_id", draft.ID), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Sent++
	}

	zap.L().Info("send run complete",
		zap.Bool("test", opts.Test),
		zap.Int("attempted", summary.Attempted),
		zap.Int("sent", summary.Sent),
		zap.Int("refused", summary.Refused),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *Sender) checkGovernor(ctx context.Context, lead model.Lead, draft model.DraftEmail) error {
	sentToday, err := s.tracker.Count(ctx, usage.KeySends)
	if err != nil {
		return eris.Wrap(err, "sender: daily count")
	}
	totals, err := s.store.SendTotals(ctx)
	if err != nil {
		return eris.Wrap(err, "sender: send totals")
	}
	return s.governor.CheckSend(governor.SendCheck{
		Lead:      lead,
		Draft:     draft,
		SentToday: sentToday,
		Totals:    *totals,
		Now:       s.now(),
	})
}

func (s *Sender) sendTest(ctx context.Context, draft model.DraftEmail, to string) error {
	if err := s.smtp.Send(smtp.Email{
		To:       to,
		Subject:  "[TEST] " + draft.Subject,
		BodyText: draft.BodyText,
		BodyHTML: draft.BodyHTML,
	}); err != nil {
		return err
	}
	now := s.now()
	if err := s.store.MarkDraftTestSent(ctx, draft.ID, now); err != nil {
		return err
	}
	return s.store.RecordSend(ctx, store.SendEvent{
		LeadID:  draft.LeadID,
		DraftID: draft.ID,
		Kind:    store.SendKindTest,
		Result:  store.SendResultOK,
		At:      now,
	})
}

func (s *Sender) sendLive(ctx context.Context, lead model.Lead, draft model.DraftEmail) error {
	if err := s.smtp.Send(smtp.Email{
		To:       lead.Email,
		Subject:  draft.Subject,
		BodyText: draft.BodyText,
		BodyHTML: draft.BodyHTML,
	}); err != nil {
		return err
	}

	now := s.now()
	if err := s.store.MarkDraftSent(ctx, draft.ID, now); err != nil {
		return eris.Wrapf(err, "sender: mark draft %s sent", draft.ID)
	}
	if err := s.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusSent); err != nil {
		return eris.Wrapf(err, "sender: advance lead %s", lead.ID)
	}
	if err := s.store.RecordSend(ctx, store.SendEvent{
		LeadID:  lead.ID,
		DraftID: draft.ID,
		Kind:    store.SendKindLive,
		Result:  store.SendResultOK,
		At:      now,
	}); err != nil {
		return eris.Wrap(err, "sender: record send")
	}
	if _, err := s.tracker.Record(ctx, usage.KeySends, 1); err != nil {
		return eris.Wrap(err, "sender: record daily count")
	}
	return nil
}
