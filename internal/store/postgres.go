package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	company_name     TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL UNIQUE,
	website_url      TEXT NOT NULL DEFAULT '',
	industry         TEXT NOT NULL DEFAULT 'other',
	discovery_method TEXT NOT NULL DEFAULT '',
	icp_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	mx_valid         BOOLEAN NOT NULL DEFAULT false,
	status           TEXT NOT NULL DEFAULT 'new',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drafts (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	subject      TEXT NOT NULL,
	body_text    TEXT NOT NULL,
	body_html    TEXT NOT NULL DEFAULT '',
	template     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'draft',
	test_sent_at TIMESTAMPTZ,
	sent_at      TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS replies (
	id                  TEXT PRIMARY KEY,
	lead_id             TEXT NOT NULL REFERENCES leads(id),
	draft_id            TEXT NOT NULL REFERENCES drafts(id),
	provider_message_id TEXT NOT NULL UNIQUE,
	body                TEXT NOT NULL,
	intent              TEXT,
	confidence          DOUBLE PRECISION,
	summary             TEXT NOT NULL DEFAULT '',
	suggested_action    TEXT NOT NULL DEFAULT '',
	drafted_response    TEXT NOT NULL DEFAULT '',
	research_notes      TEXT NOT NULL DEFAULT '',
	human_approved      BOOLEAN NOT NULL DEFAULT false,
	received_at         TIMESTAMPTZ NOT NULL,
	classified_at       TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS send_log (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	draft_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_counters (
	key    TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count  BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (key, bucket)
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_active_lead ON drafts(lead_id) WHERE status != 'rejected';
CREATE INDEX IF NOT EXISTS idx_replies_lead_id ON replies(lead_id);
CREATE INDEX IF NOT EXISTS idx_send_log_created_at ON send_log(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if lead.Industry == "" {
		lead.Industry = model.IndustryOther
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, company_name, email, website_url, industry, discovery_method, icp_score, mx_valid, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lead.ID, lead.CompanyName, lead.Email, lead.WebsiteURL, string(lead.Industry),
		lead.DiscoveryMethod, lead.ICPScore, lead.MXValid, string(lead.Status), now, now,
	)
	if err != nil {
		if isPgUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "postgres: lead email %s", lead.Email)
		}
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanPgLead(row)
}

func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE lower(email) = lower($1)`, email)
	return scanPgLead(row)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.Industry != "" {
		conds = append(conds, "industry = "+arg(string(filter.Industry)))
	}
	if filter.MinICP > 0 {
		conds = append(conds, "icp_score >= "+arg(filter.MinICP))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}
	return checkPgRowsAffected(tag, "lead", id)
}

func (s *PostgresStore) UpdateLeadAnalysis(ctx context.Context, id string, industry model.Industry, icpScore float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET industry = $1, icp_score = $2, status = $3, updated_at = $4 WHERE id = $5`,
		string(industry), icpScore, string(model.LeadStatusAnalyzed), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead analysis %s", id)
	}
	return checkPgRowsAffected(tag, "lead", id)
}

func (s *PostgresStore) KnownEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM leads`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: known emails")
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, eris.Wrap(err, "postgres: scan email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "postgres: known emails rows")
}

// --- Drafts ---

func (s *PostgresStore) CreateDraft(ctx context.Context, draft model.DraftEmail) (*model.DraftEmail, error) {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.Status == "" {
		draft.Status = model.DraftStatusDraft
	}
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO drafts (id, lead_id, subject, body_text, body_html, template, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		draft.ID, draft.LeadID, draft.Subject, draft.BodyText, draft.BodyHTML,
		draft.Template, string(draft.Status), now, now,
	)
	if err != nil {
		if isPgUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "postgres: active draft exists for lead %s", draft.LeadID)
		}
		return nil, eris.Wrap(err, "postgres: insert draft")
	}
	return &draft, nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, id string) (*model.DraftEmail, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id)
	return scanPgDraft(row)
}

func (s *PostgresStore) ActiveDraft(ctx context.Context, leadID string) (*model.DraftEmail, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE lead_id = $1 AND status != 'rejected'`, leadID)
	draft, err := scanPgDraft(row)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return draft, nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftEmail, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = $1"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var drafts []model.DraftEmail
	for rows.Next() {
		d, err := scanPgDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list drafts rows")
}

func (s *PostgresStore) UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update draft status %s", id)
	}
	return checkPgRowsAffected(tag, "draft", id)
}

func (s *PostgresStore) MarkDraftTestSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET test_sent_at = $1, updated_at = $2 WHERE id = $3`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark draft test sent %s", id)
	}
	return checkPgRowsAffected(tag, "draft", id)
}

func (s *PostgresStore) MarkDraftSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET status = $1, sent_at = $2, updated_at = $3 WHERE id = $4`,
		string(model.DraftStatusSent), at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark draft sent %s", id)
	}
	return checkPgRowsAffected(tag, "draft", id)
}

// --- Replies ---

func (s *PostgresStore) InsertReply(ctx context.Context, reply model.Reply) (*model.Reply, error) {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reply.CreatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO replies (id, lead_id, draft_id, provider_message_id, body, human_approved, received_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reply.ID, reply.LeadID, reply.DraftID, reply.ProviderMessageID, reply.Body,
		reply.HumanApproved, reply.ReceivedAt.UTC(), now,
	)
	if err != nil {
		if isPgUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "postgres: reply message id %s", reply.ProviderMessageID)
		}
		return nil, eris.Wrap(err, "postgres: insert reply")
	}
	return &reply, nil
}

func (s *PostgresStore) KnownMessageIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT provider_message_id FROM replies`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: known message ids")
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message id")
		}
		known[id] = struct{}{}
	}
	return known, eris.Wrap(rows.Err(), "postgres: known message ids rows")
}

func (s *PostgresStore) ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies`
	var conds []string
	var args []any
	if filter.Unclassified {
		conds = append(conds, "intent IS NULL")
	}
	if filter.Intent != "" {
		args = append(args, string(filter.Intent))
		conds = append(conds, fmt.Sprintf("intent = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY received_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list replies")
	}
	defer rows.Close()

	var replies []model.Reply
	for rows.Next() {
		r, err := scanPgReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *r)
	}
	return replies, eris.Wrap(rows.Err(), "postgres: list replies rows")
}

func (s *PostgresStore) UpdateReplyClassification(ctx context.Context, id string, c model.Classification, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE replies SET intent = $1, confidence = $2, summary = $3, suggested_action = $4, research_notes = $5, classified_at = $6
		 WHERE id = $7 AND intent IS NULL`,
		string(c.Intent), c.Confidence, c.Summary, c.SuggestedAction,
		strings.Join(c.ResearchTopics, "\n"), at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update reply classification %s", id)
	}
	return checkPgRowsAffected(tag, "reply", id)
}

func (s *PostgresStore) SetReplyApproval(ctx context.Context, id string, approved bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE replies SET human_approved = $1 WHERE id = $2`,
		approved, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set reply approval %s", id)
	}
	return checkPgRowsAffected(tag, "reply", id)
}

// --- Send accounting ---

func (s *PostgresStore) RecordSend(ctx context.Context, ev SendEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO send_log (id, lead_id, draft_id, kind, result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), ev.LeadID, ev.DraftID, ev.Kind, ev.Result, at.UTC(),
	)
	return eris.Wrap(err, "postgres: record send")
}

func (s *PostgresStore) SendTotals(ctx context.Context) (*SendTotals, error) {
	totals := &SendTotals{}

	row := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE result = 'bounce'),
			COUNT(*) FILTER (WHERE result = 'complaint'),
			MAX(created_at),
			MAX(created_at) FILTER (WHERE result = 'bounce')
		 FROM send_log WHERE kind = 'send'`)

	var lastSent, lastBounce *time.Time
	if err := row.Scan(&totals.Total, &totals.Bounces, &totals.Complaints, &lastSent, &lastBounce); err != nil {
		return nil, eris.Wrap(err, "postgres: send totals")
	}
	totals.LastSentAt = lastSent
	totals.LastBounceAt = lastBounce
	return totals, nil
}

// --- Usage counters ---

func (s *PostgresStore) GetCounter(ctx context.Context, key, bucket string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM usage_counters WHERE key = $1 AND bucket = $2`, key, bucket,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get counter %s/%s", key, bucket)
	}
	return count, nil
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, key, bucket string, delta int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_counters (key, bucket, count) VALUES ($1, $2, $3)
		 ON CONFLICT (key, bucket) DO UPDATE SET count = usage_counters.count + EXCLUDED.count
		 RETURNING count`,
		key, bucket, delta,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: increment counter %s/%s", key, bucket)
	}
	return count, nil
}

// --- scan helpers ---

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var lead model.Lead
	var industry, status string

	err := row.Scan(&lead.ID, &lead.CompanyName, &lead.Email, &lead.WebsiteURL,
		&industry, &lead.DiscoveryMethod, &lead.ICPScore, &lead.MXValid, &status,
		&lead.CreatedAt, &lead.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	lead.Industry = model.Industry(industry)
	lead.Status = model.LeadStatus(status)
	return &lead, nil
}

func scanPgDraft(row pgx.Row) (*model.DraftEmail, error) {
	var d model.DraftEmail
	var status string

	err := row.Scan(&d.ID, &d.LeadID, &d.Subject, &d.BodyText, &d.BodyHTML,
		&d.Template, &status, &d.TestSentAt, &d.SentAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: draft")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan draft")
	}
	d.Status = model.DraftStatus(status)
	return &d, nil
}

func scanPgReply(row pgx.Row) (*model.Reply, error) {
	var r model.Reply
	var intent *string

	err := row.Scan(&r.ID, &r.LeadID, &r.DraftID, &r.ProviderMessageID, &r.Body,
		&intent, &r.Confidence, &r.Summary, &r.SuggestedAction, &r.DraftedResponse,
		&r.ResearchNotes, &r.HumanApproved, &r.ReceivedAt, &r.ClassifiedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: reply")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan reply")
	}
	if intent != nil {
		i := model.Intent(*intent)
		r.Intent = &i
	}
	return &r, nil
}

func checkPgRowsAffected(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s %s", entity, id)
	}
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
