// Package pipeline orchestrates the two-stage outreach pipeline:
// scrape+validate, then analyze+draft. Sending is not a stage and
// cannot be reached from here; it is a separate, explicitly invoked
// command gated by human approval.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/drafter"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scrape"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Stage is one named pipeline step.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// StageResult records one stage's outcome.
type StageResult struct {
	Name     string
	Summary  string
	Err      error
	Duration time.Duration
}

// Run executes stages in order, strictly one at a time. A stage
// failure aborts the run; completed stages keep whatever they
// persisted, there is no rollback.
func Run(ctx context.Context, stages []Stage) ([]StageResult, error) {
	var results []StageResult
	for _, stage := range stages {
		start := time.Now()
		zap.L().Info("stage starting", zap.String("stage", stage.Name))

		summary, err := stage.Run(ctx)
		results = append(results, StageResult{
			Name:     stage.Name,
			Summary:  summary,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil {
			zap.L().Error("stage failed",
				zap.String("stage", stage.Name),
				zap.Error(err))
			return results, eris.Wrapf(err, "pipeline: stage %s", stage.Name)
		}
		zap.L().Info("stage complete",
			zap.String("stage", stage.Name),
			zap.String("summary", summary),
			zap.Duration("duration", results[len(results)-1].Duration))
	}
	return results, nil
}

// Crawler walks a website into plaintext pages.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) ([]scrape.Page, error)
}

// Analyzer scores a lead's site.
type Analyzer interface {
	Analyze(ctx context.Context, websiteURL, siteText string) (*drafter.Analysis, error)
}

// Drafter writes an outreach draft for a lead.
type Drafter interface {
	Draft(ctx context.Context, lead model.Lead) (*model.DraftEmail, error)
}

// Extractor finds email candidates in page text.
type Extractor interface {
	Extract(ctx context.Context, text, sourceURL string, known map[string]struct{}) []model.ValidatedEmail
}

// Options tune one pipeline invocation.
type Options struct {
	// TargetURL is the site to scrape in stage one.
	TargetURL string
	// MinICP gates drafting: analyzed leads below it get no draft.
	MinICP float64
	// Limit caps how many leads stage two processes. Zero means no cap.
	Limit int
}

// Pipeline wires the stages over shared dependencies.
type Pipeline struct {
	store     store.Store
	crawler   Crawler
	extractor Extractor
	analyzer  Analyzer
	drafter   Drafter
}

func New(s store.Store, c Crawler, e Extractor, a Analyzer, d Drafter) *Pipeline {
	return &Pipeline{store: s, crawler: c, extractor: e, analyzer: a, drafter: d}
}

// Stages builds the ordered stage list for one invocation. There are
// exactly two; nothing here sends email.
func (p *Pipeline) Stages(opts Options) []Stage {
	return []Stage{
		{Name: "scrape_validate", Run: func(ctx context.Context) (string, error) {
			return p.scrapeValidate(ctx, opts)
		}},
		{Name: "analyze_draft", Run: func(ctx context.Context) (string, error) {
			return p.analyzeDraft(ctx, opts)
		}},
	}
}

// scrapeValidate crawls the target site, extracts and validates email
// candidates, and creates new leads. Candidates whose email is already
// stored are skipped; MX-invalid candidates are still created, flagged.
func (p *Pipeline) scrapeValidate(ctx context.Context, opts Options) (string, error) {
	pages, err := p.crawler.Crawl(ctx, opts.TargetURL)
	if err != nil {
		return "", eris.Wrap(err, "scrape target")
	}

	knownList, err := p.store.KnownEmails(ctx)
	if err != nil {
		return "", eris.Wrap(err, "load known emails")
	}
	known := extract.NormalizeKnown(knownList)

	created := 0
	for _, page := range pages {
		for _, candidate := range p.extractor.Extract(ctx, page.Text, page.URL, known) {
			_, err := p.store.CreateLead(ctx, model.Lead{
				Email:           candidate.Address,
				WebsiteURL:      opts.TargetURL,
				DiscoveryMethod: "scrape",
				MXValid:         candidate.MXValid,
				Status:          model.LeadStatusNew,
			})
			if eris.Is(err, store.ErrDuplicate) {
				continue
			}
			if err != nil {
				return "", eris.Wrapf(err, "create lead %s", candidate.Address)
			}
			known[candidate.Address] = struct{}{}
			created++
		}
	}
	return fmt.Sprintf("%d pages, %d leads created", len(pages), created), nil
}

// analyzeDraft analyzes each new lead and drafts outreach for those at
// or above the ICP gate. A per-lead analysis or draft failure skips
// that lead and continues; earlier leads keep their results.
func (p *Pipeline) analyzeDraft(ctx context.Context, opts Options) (string, error) {
	leads, err := p.store.ListLeads(ctx, store.LeadFilter{
		Status: model.LeadStatusNew,
		Limit:  opts.Limit,
	})
	if err != nil {
		return "", eris.Wrap(err, "list new leads")
	}

	pages := map[string][]scrape.Page{}
	analyzed, drafted, skipped := 0, 0, 0
	for _, lead := range leads {
		siteText, err := p.siteText(ctx, pages, lead.WebsiteURL)
		if err != nil {
			zap.L().Warn("site fetch failed, skipping lead",
				zap.String("lead_id", lead.ID), zap.Error(err))
			skipped++
			continue
		}

		analysis, err := p.analyzer.Analyze(ctx, lead.WebsiteURL, siteText)
		if err != nil {
			zap.L().Warn("analysis failed, skipping lead",
				zap.String("lead_id", lead.ID), zap.Error(err))
			skipped++
			continue
		}
		if err := p.store.UpdateLeadAnalysis(ctx, lead.ID, analysis.Industry, analysis.ICPScore); err != nil {
			return "", eris.Wrapf(err, "store analysis for lead %s", lead.ID)
		}
		analyzed++

		if analysis.ICPScore < opts.MinICP {
			continue
		}

		lead.Industry = analysis.Industry
		lead.ICPScore = analysis.ICPScore
		if lead.CompanyName == "" {
			lead.CompanyName = analysis.CompanyName
		}
		draft, err := p.drafter.Draft(ctx, lead)
		if err != nil {
			zap.L().Warn("draft failed, lead stays analyzed",
				zap.String("lead_id", lead.ID), zap.Error(err))
			skipped++
			continue
		}
		draft.LeadID = lead.ID
		if _, err := p.store.CreateDraft(ctx, *draft); err != nil {
			return "", eris.Wrapf(err, "store draft for lead %s", lead.ID)
		}
		if err := p.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusDraftReady); err != nil {
			return "", eris.Wrapf(err, "advance lead %s", lead.ID)
		}
		drafted++
	}
	return fmt.Sprintf("%d analyzed, %d drafted, %d skipped", analyzed, drafted, skipped), nil
}

// siteText fetches and memoizes the concatenated page text for a
// lead's website.
func (p *Pipeline) siteText(ctx context.Context, cache map[string][]scrape.Page, url string) (string, error) {
	pages, ok := cache[url]
	if !ok {
		var err error
		pages, err = p.crawler.Crawl(ctx, url)
		if err != nil {
			return "", err
		}
		cache[url] = pages
	}
	text := ""
	for _, page := range pages {
		text += page.Text + "\n\n"
	}
	return text, nil
}
