// Package review implements the human approval step on drafts.
package review

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	ErrNotReviewable = eris.New("review: draft not awaiting review")
)

// Reviewer applies approve and reject transitions to drafts and keeps
// the owning lead's status in step.
type Reviewer struct {
	store store.Store
}

func New(s store.Store) *Reviewer {
	return &Reviewer{store: s}
}

// Approve marks a pending draft approved and advances the lead from
// draft_ready to approved. A lead already past draft_ready is left
// alone; statuses never rewind.
func (r *Reviewer) Approve(ctx context.Context, draftID string) error {
	draft, err := r.store.GetDraft(ctx, draftID)
	if err != nil {
		return eris.Wrapf(err, "review: approve %s", draftID)
	}
	if draft.Status != model.DraftStatusDraft {
		return eris.Wrapf(ErrNotReviewable, "draft %s is %s", draftID, draft.Status)
	}

	if err := r.store.UpdateDraftStatus(ctx, draftID, model.DraftStatusApproved); err != nil {
		return eris.Wrapf(err, "review: approve %s", draftID)
	}

	lead, err := r.store.GetLead(ctx, draft.LeadID)
	if err != nil {
		return eris.Wrapf(err, "review: load lead for draft %s", draftID)
	}
	if !lead.Status.AtOrPast(model.LeadStatusApproved) {
		if err := r.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusApproved); err != nil {
			return eris.Wrapf(err, "review: advance lead %s", lead.ID)
		}
	}

	zap.L().Info("draft approved",
		zap.String("draft_id", draftID),
		zap.String("lead_id", draft.LeadID))
	return nil
}

// Reject marks a pending draft rejected and returns the lead to
// analyzed so a fresh draft can be generated.
func (r *Reviewer) Reject(ctx context.Context, draftID string) error {
	draft, err := r.store.GetDraft(ctx, draftID)
	if err != nil {
		return eris.Wrapf(err, "review: reject %s", draftID)
	}
	if draft.Status != model.DraftStatusDraft {
		return eris.Wrapf(ErrNotReviewable, "draft %s is %s", draftID, draft.Status)
	}

	if err := r.store.UpdateDraftStatus(ctx, draftID, model.DraftStatusRejected); err != nil {
		return eris.Wrapf(err, "review: reject %s", draftID)
	}
	if err := r.store.UpdateLeadStatus(ctx, draft.LeadID, model.LeadStatusAnalyzed); err != nil {
		return eris.Wrapf(err, "review: rewind lead %s", draft.LeadID)
	}

	zap.L().Info("draft rejected",
		zap.String("draft_id", draftID),
		zap.String("lead_id", draft.LeadID))
	return nil
}
