// Package server exposes the review dashboard API.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/review"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Server serves the dashboard API over the store.
type Server struct {
	store    store.Store
	reviewer *review.Reviewer
}

func New(s store.Store) *Server {
	return &Server{store: s, reviewer: review.New(s)}
}

// Router builds the chi router with all dashboard routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/drafts", s.handleListDrafts)
		r.Post("/drafts/{id}/approve", s.handleApprove)
		r.Post("/drafts/{id}/reject", s.handleReject)
		r.Get("/replies", s.handleListReplies)
		r.Post("/replies/{id}/approve", s.handleApproveReply)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	filter := store.DraftFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = model.DraftStatus(status)
	}
	drafts, err := s.store.ListDrafts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "下書きの取得に失敗しました", err)
		return
	}
	if drafts == nil {
		drafts = []model.DraftEmail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.applyReview(w, r, s.reviewer.Approve, "approved")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.applyReview(w, r, s.reviewer.Reject, "rejected")
}

func (s *Server) applyReview(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) error, verb string) {
	id := chi.URLParam(r, "id")
	err := apply(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": verb})
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "下書きが見つかりません", err)
	case eris.Is(err, review.ErrNotReviewable):
		writeError(w, http.StatusConflict, "この下書きはレビュー待ちではありません", err)
	default:
		writeError(w, http.StatusInternalServerError, "処理に失敗しました", err)
	}
}

func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	filter := store.ReplyFilter{}
	if intent := r.URL.Query().Get("intent"); intent != "" {
		if !model.ValidIntent(intent) {
			writeError(w, http.StatusBadRequest, "不正なインテントです", nil)
			return
		}
		filter.Intent = model.Intent(intent)
	}
	if r.URL.Query().Get("unclassified") == "true" {
		filter.Unclassified = true
	}
	replies, err := s.store.ListReplies(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "返信の取得に失敗しました", err)
		return
	}
	if replies == nil {
		replies = []model.Reply{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
}

// handleApproveReply sets the human-approval flag, the only mutable
// field on a classified reply.
func (s *Server) handleApproveReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.SetReplyApproval(r.Context(), id, true)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "approved"})
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "返信が見つかりません", err)
	default:
		writeError(w, http.StatusInternalServerError, "処理に失敗しました", err)
	}
}

// handleStats reports lead counts per status plus live send totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "統計の取得に失敗しました", err)
		return
	}
	byStatus := map[string]int{}
	for _, lead := range leads {
		byStatus[string(lead.Status)]++
	}

	totals, err := s.store.SendTotals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "統計の取得に失敗しました", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads_total":     len(leads),
		"leads_by_status": byStatus,
		"sends":           totals,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": message})
}
