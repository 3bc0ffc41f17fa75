package intent

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// ReplyClassifier classifies one reply.
type ReplyClassifier interface {
	Classify(ctx context.Context, originalSubject, replyBody string) (*Result, error)
}

// BatchSummary reports one classification run.
type BatchSummary struct {
	Pending      int
	Classified   int
	Unsubscribed int
}

// Batch classifies pending replies against the store.
type Batch struct {
	store      store.Store
	classifier ReplyClassifier
	now        func() time.Time
}

func NewBatch(s store.Store, c ReplyClassifier) *Batch {
	return &Batch{store: s, classifier: c, now: time.Now}
}

// ClassifyPending classifies every unclassified reply strictly one at
// a time. A classification failure, malformed output included, aborts
// the batch; already classified replies keep their results and the
// rerun picks up where this one stopped. An unsubscribe intent moves
// the lead to unsubscribed immediately.
func (b *Batch) ClassifyPending(ctx context.Context, limit int) (*BatchSummary, error) {
	replies, err := b.store.ListReplies(ctx, store.ReplyFilter{Unclassified: true, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "intent: list pending replies")
	}

	summary := &BatchSummary{Pending: len(replies)}
	for _, reply := range replies {
		draft, err := b.store.GetDraft(ctx, reply.DraftID)
		if err != nil {
			return summary, eris.Wrapf(err, "intent: load draft for reply %s", reply.ID)
		}

		result, err := b.classifier.Classify(ctx, draft.Subject, reply.Body)
		if err != nil {
			return summary, eris.Wrapf(err, "intent: reply %s", reply.ID)
		}

		if err := b.store.UpdateReplyClassification(ctx, reply.ID, *result.Parsed, b.now()); err != nil {
			return summary, eris.Wrapf(err, "intent: persist classification for reply %s", reply.ID)
		}
		summary.Classified++

		if result.Parsed.Intent == model.IntentUnsubscribe {
			if err := b.store.UpdateLeadStatus(ctx, reply.LeadID, model.LeadStatusUnsubscribed); err != nil {
				return summary, eris.Wrapf(err, "intent: unsubscribe lead %s", reply.LeadID)
			}
			summary.Unsubscribed++
			zap.L().Info("lead unsubscribed",
				zap.String("lead_id", reply.LeadID),
				zap.String("reply_id", reply.ID))
		}
	}

	zap.L().Info("classification run complete",
		zap.Int("pending", summary.Pending),
		zap.Int("classified", summary.Classified),
		zap.Int("unsubscribed", summary.Unsubscribed))
	return summary, nil
}
