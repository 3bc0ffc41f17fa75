package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	company_name     TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL UNIQUE,
	website_url      TEXT NOT NULL DEFAULT '',
	industry         TEXT NOT NULL DEFAULT 'other',
	discovery_method TEXT NOT NULL DEFAULT '',
	icp_score        REAL NOT NULL DEFAULT 0,
	mx_valid         INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'new',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drafts (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	subject      TEXT NOT NULL,
	body_text    TEXT NOT NULL,
	body_html    TEXT NOT NULL DEFAULT '',
	template     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'draft',
	test_sent_at DATETIME,
	sent_at      DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS replies (
	id                  TEXT PRIMARY KEY,
	lead_id             TEXT NOT NULL REFERENCES leads(id),
	draft_id            TEXT NOT NULL REFERENCES drafts(id),
	provider_message_id TEXT NOT NULL UNIQUE,
	body                TEXT NOT NULL,
	intent              TEXT,
	confidence          REAL,
	summary             TEXT NOT NULL DEFAULT '',
	suggested_action    TEXT NOT NULL DEFAULT '',
	drafted_response    TEXT NOT NULL DEFAULT '',
	research_notes      TEXT NOT NULL DEFAULT '',
	human_approved      INTEGER NOT NULL DEFAULT 0,
	received_at         DATETIME NOT NULL,
	classified_at       DATETIME,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS send_log (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	draft_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_counters (
	key    TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (key, bucket)
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_active_lead ON drafts(lead_id) WHERE status != 'rejected';
CREATE INDEX IF NOT EXISTS idx_replies_lead_id ON replies(lead_id);
CREATE INDEX IF NOT EXISTS idx_send_log_created_at ON send_log(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, company_name, email, website_url, industry, discovery_method, icp_score, mx_valid, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.CompanyName, lead.Email, lead.WebsiteURL, string(lead.Industry),
		lead.DiscoveryMethod, lead.ICPScore, boolToInt(lead.MXValid), string(lead.Status), now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: lead email %s", lead.Email)
		}
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

const leadColumns = `id, company_name, email, website_url, industry, discovery_method, icp_score, mx_valid, status, created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	return scanLead(row)
}

func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = ? COLLATE NOCASE`, email)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Industry != "" {
		conds = append(conds, "industry = ?")
		args = append(args, string(filter.Industry))
	}
	if filter.MinICP > 0 {
		conds = append(conds, "icp_score >= ?")
		args = append(args, filter.MinICP)
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLeadRow(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) UpdateLeadAnalysis(ctx context.Context, id string, industry model.Industry, icpScore float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET industry = ?, icp_score = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(industry), icpScore, string(model.LeadStatusAnalyzed), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead analysis %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) KnownEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM leads`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: known emails")
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: known emails rows")
}

// --- Drafts ---

func (s *SQLiteStore) CreateDraft(ctx context.Context, draft model.DraftEmail) (*model.DraftEmail, error) {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.Status == "" {
		draft.Status = model.DraftStatusDraft
	}
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, lead_id, subject, body_text, body_html, template, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.ID, draft.LeadID, draft.Subject, draft.BodyText, draft.BodyHTML,
		draft.Template, string(draft.Status), now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: active draft exists for lead %s", draft.LeadID)
		}
		return nil, eris.Wrap(err, "sqlite: insert draft")
	}
	return &draft, nil
}

const draftColumns = `id, lead_id, subject, body_text, body_html, template, status, test_sent_at, sent_at, created_at, updated_at`

func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*model.DraftEmail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	return scanDraft(row)
}

func (s *SQLiteStore) ActiveDraft(ctx context.Context, leadID string) (*model.DraftEmail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE lead_id = ? AND status != 'rejected'`, leadID)
	draft, err := scanDraft(row)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return draft, nil
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftEmail, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close()

	var drafts []model.DraftEmail
	for rows.Next() {
		d, err := scanDraftRow(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list drafts rows")
}

func (s *SQLiteStore) UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update draft status %s", id)
	}
	return checkRowsAffected(res, "draft", id)
}

func (s *SQLiteStore) MarkDraftTestSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET test_sent_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark draft test sent %s", id)
	}
	return checkRowsAffected(res, "draft", id)
}

func (s *SQLiteStore) MarkDraftSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET status = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
		string(model.DraftStatusSent), at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark draft sent %s", id)
	}
	return checkRowsAffected(res, "draft", id)
}

// --- Replies ---

func (s *SQLiteStore) InsertReply(ctx context.Context, reply model.Reply) (*model.Reply, error) {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reply.CreatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replies (id, lead_id, draft_id, provider_message_id, body, human_approved, received_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reply.ID, reply.LeadID, reply.DraftID, reply.ProviderMessageID, reply.Body,
		boolToInt(reply.HumanApproved), reply.ReceivedAt.UTC(), now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: reply message id %s", reply.ProviderMessageID)
		}
		return nil, eris.Wrap(err, "sqlite: insert reply")
	}
	return &reply, nil
}

func (s *SQLiteStore) KnownMessageIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider_message_id FROM replies`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: known message ids")
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message id")
		}
		known[id] = struct{}{}
	}
	return known, eris.Wrap(rows.Err(), "sqlite: known message ids rows")
}

const replyColumns = `id, lead_id, draft_id, provider_message_id, body, intent, confidence, summary, suggested_action, drafted_response, research_notes, human_approved, received_at, classified_at, created_at`

func (s *SQLiteStore) ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies`
	var conds []string
	var args []any
	if filter.Unclassified {
		conds = append(conds, "intent IS NULL")
	}
	if filter.Intent != "" {
		conds = append(conds, "intent = ?")
		args = append(args, string(filter.Intent))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY received_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list replies")
	}
	defer rows.Close()

	var replies []model.Reply
	for rows.Next() {
		r, err := scanReplyRow(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *r)
	}
	return replies, eris.Wrap(rows.Err(), "sqlite: list replies rows")
}

func (s *SQLiteStore) UpdateReplyClassification(ctx context.Context, id string, c model.Classification, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE replies SET intent = ?, confidence = ?, summary = ?, suggested_action = ?, research_notes = ?, classified_at = ?
		 WHERE id = ? AND intent IS NULL`,
		string(c.Intent), c.Confidence, c.Summary, c.SuggestedAction,
		strings.Join(c.ResearchTopics, "\n"), at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update reply classification %s", id)
	}
	return checkRowsAffected(res, "reply", id)
}

func (s *SQLiteStore) SetReplyApproval(ctx context.Context, id string, approved bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE replies SET human_approved = ? WHERE id = ?`,
		boolToInt(approved), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set reply approval %s", id)
	}
	return checkRowsAffected(res, "reply", id)
}

// --- Send accounting ---

func (s *SQLiteStore) RecordSend(ctx context.Context, ev SendEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO send_log (id, lead_id, draft_id, kind, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ev.LeadID, ev.DraftID, ev.Kind, ev.Result, at.UTC(),
	)
	return eris.Wrap(err, "sqlite: record send")
}

func (s *SQLiteStore) SendTotals(ctx context.Context) (*SendTotals, error) {
	totals := &SendTotals{}

	row := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN result = 'bounce' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result = 'complaint' THEN 1 ELSE 0 END), 0),
			MAX(created_at),
			MAX(CASE WHEN result = 'bounce' THEN created_at END)
		 FROM send_log WHERE kind = 'send'`)

	var lastSent, lastBounce sql.NullTime
	if err := row.Scan(&totals.Total, &totals.Bounces, &totals.Complaints, &lastSent, &lastBounce); err != nil {
		return nil, eris.Wrap(err, "sqlite: send totals")
	}
	if lastSent.Valid {
		totals.LastSentAt = &lastSent.Time
	}
	if lastBounce.Valid {
		totals.LastBounceAt = &lastBounce.Time
	}
	return totals, nil
}

// --- Usage counters ---

func (s *SQLiteStore) GetCounter(ctx context.Context, key, bucket string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE key = ? AND bucket = ?`, key, bucket,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get counter %s/%s", key, bucket)
	}
	return count, nil
}

func (s *SQLiteStore) IncrementCounter(ctx context.Context, key, bucket string, delta int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO usage_counters (key, bucket, count) VALUES (?, ?, ?)
		 ON CONFLICT (key, bucket) DO UPDATE SET count = count + excluded.count
		 RETURNING count`,
		key, bucket, delta,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: increment counter %s/%s", key, bucket)
	}
	return count, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	return scanLeadRow(row)
}

func scanLeadRow(row rowScanner) (*model.Lead, error) {
	var lead model.Lead
	var industry, status string
	var mxValid int

	err := row.Scan(&lead.ID, &lead.CompanyName, &lead.Email, &lead.WebsiteURL,
		&industry, &lead.DiscoveryMethod, &lead.ICPScore, &mxValid, &status,
		&lead.CreatedAt, &lead.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}
	lead.Industry = model.Industry(industry)
	lead.Status = model.LeadStatus(status)
	lead.MXValid = mxValid != 0
	return &lead, nil
}

func scanDraft(row rowScanner) (*model.DraftEmail, error) {
	return scanDraftRow(row)
}

func scanDraftRow(row rowScanner) (*model.DraftEmail, error) {
	var d model.DraftEmail
	var status string
	var testSentAt, sentAt sql.NullTime

	err := row.Scan(&d.ID, &d.LeadID, &d.Subject, &d.BodyText, &d.BodyHTML,
		&d.Template, &status, &testSentAt, &sentAt, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: draft")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan draft")
	}
	d.Status = model.DraftStatus(status)
	if testSentAt.Valid {
		d.TestSentAt = &testSentAt.Time
	}
	if sentAt.Valid {
		d.SentAt = &sentAt.Time
	}
	return &d, nil
}

func scanReplyRow(row rowScanner) (*model.Reply, error) {
	var r model.Reply
	var intent sql.NullString
	var confidence sql.NullFloat64
	var classifiedAt sql.NullTime
	var approved int

	err := row.Scan(&r.ID, &r.LeadID, &r.DraftID, &r.ProviderMessageID, &r.Body,
		&intent, &confidence, &r.Summary, &r.SuggestedAction, &r.DraftedResponse,
		&r.ResearchNotes, &approved, &r.ReceivedAt, &classifiedAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: reply")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan reply")
	}
	if intent.Valid {
		i := model.Intent(intent.String)
		r.Intent = &i
	}
	if confidence.Valid {
		c := confidence.Float64
		r.Confidence = &c
	}
	if classifiedAt.Valid {
		r.ClassifiedAt = &classifiedAt.Time
	}
	r.HumanApproved = approved != 0
	return &r, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
