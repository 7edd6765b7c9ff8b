package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/caracol-labs/salesmachine/internal/db"
	"github.com/caracol-labs/salesmachine/internal/model"
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	domain            TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'NEW',
	origin_query      TEXT,
	requester_id      TEXT,
	fingerprint       JSONB,
	profile           JSONB,
	contacts          JSONB,
	registry          JSONB,
	copies            JSONB,
	preliminary_score INTEGER NOT NULL DEFAULT 0,
	final_score       INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_update       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS registry_cache (
	tax_id     TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_registry_cache_expires_at ON registry_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, domain, originQuery, requesterID string) (*model.Lead, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (domain, status, origin_query, requester_id, created_at, last_update)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain) DO UPDATE SET
			status = excluded.status,
			origin_query = excluded.origin_query,
			requester_id = excluded.requester_id,
			created_at = excluded.created_at,
			last_update = excluded.last_update`,
		domain, string(model.StatusNew), originQuery, requesterID, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create lead %s", domain)
	}
	return &model.Lead{
		Domain:      domain,
		Status:      model.StatusNew,
		OriginQuery: originQuery,
		RequesterID: requesterID,
		CreatedAt:   now,
		LastUpdate:  now,
	}, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, domain string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT domain, status, origin_query, requester_id, fingerprint, profile,
		       contacts, registry, copies, preliminary_score, final_score,
		       created_at, last_update
		FROM leads WHERE domain = $1`, domain)
	return scanPGLead(row)
}

func scanPGLead(row pgx.Row) (*model.Lead, error) {
	var lead model.Lead
	var status string
	var originQuery, requesterID *string
	var fingerprint, profile, contacts, registry, copies []byte

	err := row.Scan(&lead.Domain, &status, &originQuery, &requesterID,
		&fingerprint, &profile, &contacts, &registry, &copies,
		&lead.PreliminaryScore, &lead.FinalScore, &lead.CreatedAt, &lead.LastUpdate)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	lead.Status = model.Status(status)
	if originQuery != nil {
		lead.OriginQuery = *originQuery
	}
	if requesterID != nil {
		lead.RequesterID = *requesterID
	}

	if err := unmarshalBytes(fingerprint, &lead.Fingerprint); err != nil {
		return nil, err
	}
	if err := unmarshalBytes(profile, &lead.CompanyProfile); err != nil {
		return nil, err
	}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &lead.Contacts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contacts")
		}
	}
	if err := unmarshalBytes(registry, &lead.Registry); err != nil {
		return nil, err
	}
	if err := unmarshalBytes(copies, &lead.Copies); err != nil {
		return nil, err
	}

	return &lead, nil
}

func unmarshalBytes[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "postgres: unmarshal column")
	}
	*dst = &v
	return nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, patch LeadPatch) error {
	sets := []string{"last_update = $1"}
	args := []any{time.Now().UTC()}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	addJSON := func(col string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal %s", col)
		}
		add(col, data)
		return nil
	}

	if patch.OriginQuery != nil {
		add("origin_query", *patch.OriginQuery)
	}
	if patch.RequesterID != nil {
		add("requester_id", *patch.RequesterID)
	}
	if patch.Fingerprint != nil {
		if err := addJSON("fingerprint", patch.Fingerprint); err != nil {
			return err
		}
	}
	if patch.Profile != nil {
		if err := addJSON("profile", patch.Profile); err != nil {
			return err
		}
	}
	if patch.Contacts != nil {
		if err := addJSON("contacts", patch.Contacts); err != nil {
			return err
		}
	}
	if patch.Registry != nil {
		if err := addJSON("registry", patch.Registry); err != nil {
			return err
		}
	}
	if patch.Copies != nil {
		if err := addJSON("copies", patch.Copies); err != nil {
			return err
		}
	}
	if patch.PreliminaryScore != nil {
		add("preliminary_score", *patch.PreliminaryScore)
	}
	if patch.FinalScore != nil {
		add("final_score", *patch.FinalScore)
	}

	args = append(args, patch.Domain)
	tag, err := s.pool.Exec(ctx,
		"UPDATE leads SET "+strings.Join(sets, ", ")+" WHERE domain = $"+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", patch.Domain)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, domain string, next model.Status) error {
	if !next.Valid() {
		return ErrInvalidTransition
	}

	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM leads WHERE domain = $1`, domain).Scan(&current)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: load status %s", domain)
	}

	cur := model.Status(current)
	if cur == next {
		return nil
	}
	if !cur.CanTransition(next) {
		return eris.Wrapf(ErrInvalidTransition, "%s: %s -> %s", domain, cur, next)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, last_update = $2 WHERE domain = $3 AND status = $4`,
		string(next), time.Now().UTC(), domain, current,
	)
	return eris.Wrapf(err, "postgres: transition %s", domain)
}

func (s *PostgresStore) ResetLead(ctx context.Context, domain string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, created_at = $2, last_update = $3 WHERE domain = $4`,
		string(model.StatusNew), now, now, domain,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset lead %s", domain)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IsFresh(ctx context.Context, domain string, window time.Duration) (bool, error) {
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT created_at FROM leads WHERE domain = $1`, domain).Scan(&createdAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: freshness %s", domain)
	}
	return isFresh(createdAt, time.Now(), window), nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter ListFilter) ([]model.Lead, error) {
	query := `
		SELECT domain, status, origin_query, requester_id, fingerprint, profile,
		       contacts, registry, copies, preliminary_score, final_score,
		       created_at, last_update
		FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Query != "" {
		args = append(args, filter.Query)
		query += " AND origin_query LIKE '%' || $" + strconv.Itoa(len(args)) + " || '%'"
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanPGLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

func (s *PostgresStore) PurgeLeads(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE created_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge leads")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetRegistryCache(ctx context.Context, taxID string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM registry_cache WHERE tax_id = $1 AND expires_at > now()`,
		taxID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: registry cache %s", taxID)
	}
	return payload, nil
}

func (s *PostgresStore) SetRegistryCache(ctx context.Context, taxID string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registry_cache (tax_id, payload, cached_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tax_id) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		taxID, payload, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set registry cache %s", taxID)
}

func (s *PostgresStore) DeleteExpiredRegistryCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM registry_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired registry cache")
	}
	return int(tag.RowsAffected()), nil
}
