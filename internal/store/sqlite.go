package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/caracol-labs/salesmachine/internal/model"
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	domain            TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'NEW',
	origin_query      TEXT,
	requester_id      TEXT,
	fingerprint       TEXT,
	profile           TEXT,
	contacts          TEXT,
	registry          TEXT,
	copies            TEXT,
	preliminary_score INTEGER NOT NULL DEFAULT 0,
	final_score       INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	last_update       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS registry_cache (
	tax_id    TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_registry_cache_expires_at ON registry_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateLead upserts a lead at the start of the pipeline. An existing stale
// record is refreshed in place: status back to NEW, created_at reset.
func (s *SQLiteStore) CreateLead(ctx context.Context, domain, originQuery, requesterID string) (*model.Lead, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (domain, status, origin_query, requester_id, created_at, last_update)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			status = excluded.status,
			origin_query = excluded.origin_query,
			requester_id = excluded.requester_id,
			created_at = excluded.created_at,
			last_update = excluded.last_update`,
		domain, string(model.StatusNew), originQuery, requesterID, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create lead %s", domain)
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

func (s *SQLiteStore) GetLead(ctx context.Context, domain string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, status, origin_query, requester_id, fingerprint, profile,
		       contacts, registry, copies, preliminary_score, final_score,
		       created_at, last_update
		FROM leads WHERE domain = ?`, domain)
	return scanLead(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var lead model.Lead
	var status string
	var originQuery, requesterID sql.NullString
	var fingerprint, profile, contacts, registry, copies sql.NullString

	err := row.Scan(&lead.Domain, &status, &originQuery, &requesterID,
		&fingerprint, &profile, &contacts, &registry, &copies,
		&lead.PreliminaryScore, &lead.FinalScore, &lead.CreatedAt, &lead.LastUpdate)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	lead.Status = model.Status(status)
	lead.OriginQuery = originQuery.String
	lead.RequesterID = requesterID.String

	if err := unmarshalInto(fingerprint, &lead.Fingerprint); err != nil {
		return nil, err
	}
	if err := unmarshalInto(profile, &lead.CompanyProfile); err != nil {
		return nil, err
	}
	if contacts.Valid && contacts.String != "" {
		if err := json.Unmarshal([]byte(contacts.String), &lead.Contacts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contacts")
		}
	}
	if err := unmarshalInto(registry, &lead.Registry); err != nil {
		return nil, err
	}
	if err := unmarshalInto(copies, &lead.Copies); err != nil {
		return nil, err
	}

	return &lead, nil
}

func unmarshalInto[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal column")
	}
	*dst = &v
	return nil
}

// UpdateLead merge-upserts the patch: only non-nil field groups are written.
func (s *SQLiteStore) UpdateLead(ctx context.Context, patch LeadPatch) error {
	sets := []string{"last_update = ?"}
	args := []any{time.Now().UTC()}

	appendJSON := func(col string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal %s", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, string(data))
		return nil
	}

	if patch.OriginQuery != nil {
		sets = append(sets, "origin_query = ?")
		args = append(args, *patch.OriginQuery)
	}
	if patch.RequesterID != nil {
		sets = append(sets, "requester_id = ?")
		args = append(args, *patch.RequesterID)
	}
	if patch.Fingerprint != nil {
		if err := appendJSON("fingerprint", patch.Fingerprint); err != nil {
			return err
		}
	}
	if patch.Profile != nil {
		if err := appendJSON("profile", patch.Profile); err != nil {
			return err
		}
	}
	if patch.Contacts != nil {
		if err := appendJSON("contacts", patch.Contacts); err != nil {
			return err
		}
	}
	if patch.Registry != nil {
		if err := appendJSON("registry", patch.Registry); err != nil {
			return err
		}
	}
	if patch.Copies != nil {
		if err := appendJSON("copies", patch.Copies); err != nil {
			return err
		}
	}
	if patch.PreliminaryScore != nil {
		sets = append(sets, "preliminary_score = ?")
		args = append(args, *patch.PreliminaryScore)
	}
	if patch.FinalScore != nil {
		sets = append(sets, "final_score = ?")
		args = append(args, *patch.FinalScore)
	}

	args = append(args, patch.Domain)
	res, err := s.db.ExecContext(ctx,
		"UPDATE leads SET "+strings.Join(sets, ", ")+" WHERE domain = ?", args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", patch.Domain)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus validates the move against the transition table before
// writing. Transitioning to the current status is a no-op, which makes
// redelivered messages safe.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, domain string, next model.Status) error {
	if !next.Valid() {
		return ErrInvalidTransition
	}

	var current string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM leads WHERE domain = ?`, domain).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load status %s", domain)
	}

	cur := model.Status(current)
	if cur == next {
		return nil
	}
	if !cur.CanTransition(next) {
		return eris.Wrapf(ErrInvalidTransition, "%s: %s -> %s", domain, cur, next)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, last_update = ? WHERE domain = ? AND status = ?`,
		string(next), time.Now().UTC(), domain, current,
	)
	return eris.Wrapf(err, "sqlite: transition %s", domain)
}

// ResetLead is the explicit operator-triggered backward move: the record is
// put back to NEW with a fresh created_at so discovery will reprocess it.
func (s *SQLiteStore) ResetLead(ctx context.Context, domain string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, created_at = ?, last_update = ? WHERE domain = ?`,
		string(model.StatusNew), now, now, domain,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset lead %s", domain)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) IsFresh(ctx context.Context, domain string, window time.Duration) (bool, error) {
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM leads WHERE domain = ?`, domain).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: freshness %s", domain)
	}
	if !createdAt.Valid {
		return false, nil
	}
	return isFresh(createdAt.Time, time.Now(), window), nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter ListFilter) ([]model.Lead, error) {
	query := `
		SELECT domain, status, origin_query, requester_id, fingerprint, profile,
		       contacts, registry, copies, preliminary_score, final_score,
		       created_at, last_update
		FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Query != "" {
		query += " AND origin_query LIKE '%' || ? || '%'"
		args = append(args, filter.Query)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

func (s *SQLiteStore) PurgeLeads(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge leads")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: purge rows affected")
}

func (s *SQLiteStore) GetRegistryCache(ctx context.Context, taxID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM registry_cache WHERE tax_id = ? AND expires_at > datetime('now')`,
		taxID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: registry cache %s", taxID)
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) SetRegistryCache(ctx context.Context, taxID string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_cache (tax_id, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tax_id) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		taxID, string(payload), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: set registry cache %s", taxID)
}

func (s *SQLiteStore) DeleteExpiredRegistryCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registry_cache WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired registry cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: delete expired rows affected")
}
