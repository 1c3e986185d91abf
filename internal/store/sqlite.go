package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL,
	target_audience   TEXT NOT NULL DEFAULT '',
	copy_variants     TEXT NOT NULL DEFAULT '[]',
	lead_list_id      TEXT NOT NULL DEFAULT '',
	enrichment_job_id TEXT NOT NULL DEFAULT '',
	lead_count        INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'draft',
	sent              INTEGER NOT NULL DEFAULT 0,
	opened            INTEGER NOT NULL DEFAULT 0,
	clicked           INTEGER NOT NULL DEFAULT 0,
	replied           INTEGER NOT NULL DEFAULT 0,
	bounced           INTEGER NOT NULL DEFAULT 0,
	open_rate         REAL NOT NULL DEFAULT 0,
	click_rate        REAL NOT NULL DEFAULT 0,
	reply_rate        REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_campaigns_user_created ON campaigns(user_id, created_at);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id            TEXT PRIMARY KEY,
	campaign_id   TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	resource_type TEXT NOT NULL DEFAULT 'list',
	requested     INTEGER NOT NULL DEFAULT 0,
	last_count    INTEGER NOT NULL DEFAULT 0,
	state         TEXT NOT NULL DEFAULT 'pending',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	user_id       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_enrichment_jobs_state ON enrichment_jobs(state, created_at);
CREATE INDEX IF NOT EXISTS idx_enrichment_jobs_resource ON enrichment_jobs(resource_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_lead_list ON campaigns(lead_list_id);

CREATE TABLE IF NOT EXISTS campaign_leads (
	campaign_id    TEXT NOT NULL,
	email          TEXT NOT NULL,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	company        TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	linkedin       TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	source_list_id TEXT NOT NULL DEFAULT '',
	bound_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	seq            INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (campaign_id, email)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		return eris.New("sqlite: save campaign: empty id")
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	args, err := campaignArgs(c)
	if err != nil {
		return err
	}
	// copy_variants is TEXT here.
	args[5] = string(args[5].([]byte))
	_, err = s.db.ExecContext(ctx, `INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (`+placeholders(20)+`)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id, name = excluded.name, url = excluded.url,
			target_audience = excluded.target_audience, copy_variants = excluded.copy_variants,
			lead_list_id = excluded.lead_list_id, enrichment_job_id = excluded.enrichment_job_id,
			lead_count = excluded.lead_count, status = excluded.status, updated_at = excluded.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "sqlite: save campaign %s", c.ID)
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get campaign %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) GetCampaigns(ctx context.Context, userID string) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE (? = '' OR user_id = ?) ORDER BY created_at DESC, rowid DESC`,
		userID, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list campaigns")
}

func (s *SQLiteStore) UpdateStats(ctx context.Context, id string, a model.Analytics) error {
	a = a.WithRates()
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET sent = ?, opened = ?, clicked = ?, replied = ?, bounced = ?,
			open_rate = ?, click_rate = ?, reply_rate = ?, updated_at = ? WHERE id = ?`,
		a.Sent, a.Opened, a.Clicked, a.Replied, a.Bounced, a.OpenRate, a.ClickRate, a.ReplyRate, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update stats %s", id)
	}
	return checkRowsAffected(res, "sqlite: update stats", id)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return checkRowsAffected(res, "sqlite: update status", id)
}

func (s *SQLiteStore) DeleteCampaign(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete campaign: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_leads WHERE campaign_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete leads of %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrichment_jobs WHERE campaign_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete jobs of %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete campaign %s", id)
	}
	if err := checkRowsAffected(res, "sqlite: delete campaign", id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: delete campaign: commit")
}

func (s *SQLiteStore) GetUserStats(ctx context.Context, userID string) (model.UserStats, error) {
	campaigns, err := s.GetCampaigns(ctx, userID)
	if err != nil {
		return model.UserStats{}, err
	}
	return model.Aggregate(campaigns), nil
}

func (s *SQLiteStore) SaveEnrichmentJob(ctx context.Context, j *model.EnrichmentJob) error {
	if j.ID == "" {
		return eris.New("sqlite: save enrichment job: empty id")
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO enrichment_jobs (`+jobColumns+`)
		VALUES (`+placeholders(10)+`)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = excluded.campaign_id, last_count = excluded.last_count,
			state = excluded.state, updated_at = excluded.updated_at,
			user_id = excluded.user_id`,
		jobArgs(j)...,
	)
	return eris.Wrapf(err, "sqlite: save enrichment job %s", j.ID)
}

func (s *SQLiteStore) UpdateEnrichmentJob(ctx context.Context, j *model.EnrichmentJob) error {
	j.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_jobs SET last_count = ?, state = ?, updated_at = ? WHERE id = ?`,
		j.LastCount, string(j.State), j.UpdatedAt, j.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update enrichment job %s", j.ID)
	}
	return checkRowsAffected(res, "sqlite: update enrichment job", j.ID)
}

func (s *SQLiteStore) PendingEnrichmentJobs(ctx context.Context, limit int) ([]model.EnrichmentJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs j
		 WHERE state IN (?, ?, ?) AND EXISTS (SELECT 1 FROM campaigns c WHERE c.id = j.campaign_id)
		 ORDER BY created_at, rowid LIMIT ?`,
		pendingStates[0], pendingStates[1], pendingStates[2], limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending enrichment jobs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EnrichmentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment job")
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pending enrichment jobs")
}

func (s *SQLiteStore) LeadListOwner(ctx context.Context, listID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM (
			SELECT user_id, 0 AS rank FROM campaigns WHERE lead_list_id = ?
			UNION ALL
			SELECT user_id, 1 AS rank FROM enrichment_jobs WHERE resource_id = ?
		) ORDER BY rank LIMIT 1`, listID, listID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", eris.Wrapf(ErrNotFound, "sqlite: lead list %s", listID)
	}
	return owner, eris.Wrapf(err, "sqlite: lead list owner %s", listID)
}

func (s *SQLiteStore) SaveLeads(ctx context.Context, campaignID string, leads []model.Lead) (int64, error) {
	leads = dedupeLeads(campaignID, leads)
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save leads: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO campaign_leads (`+leadColumns+`, seq)
		VALUES (`+placeholders(13)+`)
		ON CONFLICT (campaign_id, email) DO UPDATE SET
			first_name = excluded.first_name, last_name = excluded.last_name, company = excluded.company,
			title = excluded.title, website = excluded.website, linkedin = excluded.linkedin,
			city = excluded.city, state = excluded.state, country = excluded.country,
			source_list_id = excluded.source_list_id`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save leads: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i, l := range leads {
		res, err := stmt.ExecContext(ctx, append(leadRow(l), i)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: save lead %s", l.Email)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: save leads: commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, campaignID string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM campaign_leads WHERE campaign_id = ? ORDER BY bound_at, seq, email`, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads of %s", campaignID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads")
}

func checkRowsAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", op, id)
	}
	return nil
}
