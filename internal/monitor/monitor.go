// Package monitor scans the mailbox for replies to sent outreach and
// persists them exactly once.
package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/mailbox"
)

// Summary reports one scan. Skipped counts messages whose owning lead
// or draft could not be resolved; those are logged and dropped so the
// reply table never holds a dangling reference.
type Summary struct {
	Fetched    int
	New        int
	Duplicates int
	Skipped    int
}

// Monitor persists new replies from the mailbox.
type Monitor struct {
	store   store.Store
	mailbox mailbox.Client
}

func New(s store.Store, mb mailbox.Client) *Monitor {
	return &Monitor{store: s, mailbox: mb}
}

// Scan fetches inbound messages since the given time and appends the
// genuinely new ones as replies. The already-known set is re-derived
// from persisted message ids on every run, so rerunning after a
// partial failure is safe: the mailbox is at-least-once, persistence
// is exactly-once on the provider message id. Messages are processed
// strictly one at a time.
func (m *Monitor) Scan(ctx context.Context, since time.Time) (*Summary, error) {
	messages, err := m.mailbox.ListMessages(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: list messages")
	}

	known, err := m.store.KnownMessageIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: load known message ids")
	}

	summary := &Summary{Fetched: len(messages)}
	for _, msg := range messages {
		if _, seen := known[msg.MessageID]; seen {
			summary.Duplicates++
			continue
		}

		lead, err := m.resolveLead(ctx, msg)
		if err != nil {
			return nil, err
		}
		if lead == nil {
			summary.Skipped++
			continue
		}

		draft, err := m.store.ActiveDraft(ctx, lead.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "monitor: active draft for lead %s", lead.ID)
		}
		if draft == nil || draft.SentAt == nil {
			zap.L().Warn("reply for lead without a sent draft, skipping",
				zap.String("message_id", msg.MessageID),
				zap.String("lead_id", lead.ID))
			summary.Skipped++
			continue
		}

		_, err = m.store.InsertReply(ctx, model.Reply{
			LeadID:            lead.ID,
			DraftID:           draft.ID,
			ProviderMessageID: msg.MessageID,
			Body:              msg.BodyText,
			ReceivedAt:        msg.ReceivedAt,
		})
		if eris.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent scan; the unique key on the
			// message id keeps persistence exactly-once either way.
			summary.Duplicates++
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "monitor: persist reply %s", msg.MessageID)
		}
		known[msg.MessageID] = struct{}{}
		summary.New++

		if !lead.Status.AtOrPast(model.LeadStatusReplied) {
			if err := m.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusReplied); err != nil {
				return nil, eris.Wrapf(err, "monitor: mark lead %s replied", lead.ID)
			}
		}
	}

	zap.L().Info("mailbox scan complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// resolveLead maps a message to its owning lead by sender address. An
// unresolvable sender is logged and skipped, never persisted.
func (m *Monitor) resolveLead(ctx context.Context, msg mailbox.Message) (*model.Lead, error) {
	from := strings.ToLower(strings.TrimSpace(msg.From))
	lead, err := m.store.GetLeadByEmail(ctx, from)
	if eris.Is(err, store.ErrNotFound) {
		zap.L().Warn("no lead for reply sender, skipping",
			zap.String("message_id", msg.MessageID),
			zap.String("from", from))
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "monitor: resolve lead for %s", from)
	}
	return lead, nil
}
