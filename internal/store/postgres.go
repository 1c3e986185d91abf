package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL,
	target_audience   TEXT NOT NULL DEFAULT '',
	copy_variants     JSONB NOT NULL DEFAULT '[]',
	lead_list_id      TEXT NOT NULL DEFAULT '',
	enrichment_job_id TEXT NOT NULL DEFAULT '',
	lead_count        INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'draft',
	sent              INTEGER NOT NULL DEFAULT 0,
	opened            INTEGER NOT NULL DEFAULT 0,
	clicked           INTEGER NOT NULL DEFAULT 0,
	replied           INTEGER NOT NULL DEFAULT 0,
	bounced           INTEGER NOT NULL DEFAULT 0,
	open_rate         DOUBLE PRECISION NOT NULL DEFAULT 0,
	click_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	reply_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_user_created ON campaigns(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id            TEXT PRIMARY KEY,
	campaign_id   TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	resource_type TEXT NOT NULL DEFAULT 'list',
	requested     INTEGER NOT NULL DEFAULT 0,
	last_count    INTEGER NOT NULL DEFAULT 0,
	state         TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	bound_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (campaign_id, email)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		return eris.New("postgres: save campaign: empty id")
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
	_, err = s.pool.Exec(ctx, `INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, name = EXCLUDED.name, url = EXCLUDED.url,
			target_audience = EXCLUDED.target_audience, copy_variants = EXCLUDED.copy_variants,
			lead_list_id = EXCLUDED.lead_list_id, enrichment_job_id = EXCLUDED.enrichment_job_id,
			lead_count = EXCLUDED.lead_count, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "postgres: save campaign %s", c.ID)
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get campaign %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}
	return c, nil
}

func (s *PostgresStore) GetCampaigns(ctx context.Context, userID string) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE ($1::text = '' OR user_id = $1) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list campaigns")
}

func (s *PostgresStore) UpdateStats(ctx context.Context, id string, a model.Analytics) error {
	a = a.WithRates()
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET sent = $1, opened = $2, clicked = $3, replied = $4, bounced = $5,
			open_rate = $6, click_rate = $7, reply_rate = $8, updated_at = $9 WHERE id = $10`,
		a.Sent, a.Opened, a.Clicked, a.Replied, a.Bounced, a.OpenRate, a.ClickRate, a.ReplyRate, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update stats %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update stats %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update status %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteCampaign(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: delete campaign: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM campaign_leads WHERE campaign_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete leads of %s", id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM enrichment_jobs WHERE campaign_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete jobs of %s", id)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete campaign %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete campaign %s", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: delete campaign: commit")
}

func (s *PostgresStore) GetUserStats(ctx context.Context, userID string) (model.UserStats, error) {
	campaigns, err := s.GetCampaigns(ctx, userID)
	if err != nil {
		return model.UserStats{}, err
	}
	return model.Aggregate(campaigns), nil
}

func (s *PostgresStore) SaveEnrichmentJob(ctx context.Context, j *model.EnrichmentJob) error {
	if j.ID == "" {
		return eris.New("postgres: save enrichment job: empty id")
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO enrichment_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id, last_count = EXCLUDED.last_count,
			state = EXCLUDED.state, updated_at = EXCLUDED.updated_at,
			user_id = EXCLUDED.user_id`,
		jobArgs(j)...,
	)
	return eris.Wrapf(err, "postgres: save enrichment job %s", j.ID)
}

func (s *PostgresStore) UpdateEnrichmentJob(ctx context.Context, j *model.EnrichmentJob) error {
	j.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_jobs SET last_count = $1, state = $2, updated_at = $3 WHERE id = $4`,
		j.LastCount, string(j.State), j.UpdatedAt, j.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update enrichment job %s", j.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update enrichment job %s", j.ID)
	}
	return nil
}

func (s *PostgresStore) PendingEnrichmentJobs(ctx context.Context, limit int) ([]model.EnrichmentJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs j
		 WHERE state = ANY($1) AND EXISTS (SELECT 1 FROM campaigns c WHERE c.id = j.campaign_id)
		 ORDER BY created_at LIMIT $2`,
		pendingStates, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending enrichment jobs")
	}
	defer rows.Close()

	var out []model.EnrichmentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment job")
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "postgres: pending enrichment jobs")
}

func (s *PostgresStore) LeadListOwner(ctx context.Context, listID string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM (
			SELECT user_id, 0 AS rank FROM campaigns WHERE lead_list_id = $1
			UNION ALL
			SELECT user_id, 1 AS rank FROM enrichment_jobs WHERE resource_id = $1
		) owners ORDER BY rank LIMIT 1`, listID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Wrapf(ErrNotFound, "postgres: lead list %s", listID)
	}
	return owner, eris.Wrapf(err, "postgres: lead list owner %s", listID)
}

var leadUpsert = db.UpsertConfig{
	Table: "campaign_leads",
	Columns: []string{"email", "first_name", "last_name", "company", "title", "website",
		"linkedin", "city", "state", "country", "source_list_id", "campaign_id"},
	ConflictKeys:  []string{"campaign_id", "email"},
	SkipUnchanged: true,
}

func (s *PostgresStore) SaveLeads(ctx context.Context, campaignID string, leads []model.Lead) (int64, error) {
	leads = dedupeLeads(campaignID, leads)
	rows := make([][]any, len(leads))
	for i, l := range leads {
		rows[i] = leadRow(l)
	}
	n, err := db.BulkUpsert(ctx, s.pool, leadUpsert, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save leads of %s", campaignID)
	}
	return n, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, campaignID string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM campaign_leads WHERE campaign_id = $1 ORDER BY bound_at, email`, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads of %s", campaignID)
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads")
}
