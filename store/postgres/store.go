// Package postgres implements the composite store on PostgreSQL via pgx.
//
// Single-key atomicity comes from single-statement upserts: merge, remove,
// and overwrite each compile to one INSERT ... ON CONFLICT or UPDATE, so the
// row-level locking of the database serializes concurrent mutators of the
// same (AclKey, Principal) key with no advisory locks. Permission arrays are
// stored sorted and deduplicated, which makes exact-match queries a plain
// array equality.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
	"github.com/parallax-data/bastion/store"
)

// Store is the PostgreSQL-backed composite store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ store.Store       = (*Store)(nil)
	_ ace.Store         = (*Store)(nil)
	_ reservation.Store = (*Store)(nil)
	_ authlog.Store     = (*Store)(nil)
)

// Option configures the store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New connects to the given DSN and returns a store. Call Migrate before
// first use.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return NewWithPool(pool, opts...), nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bastion_aces (
		acl_key        uuid[]      NOT NULL,
		acl_key_index  text        NOT NULL,
		principal_type text        NOT NULL,
		principal_id   text        NOT NULL,
		permissions    text[]      NOT NULL DEFAULT '{}',
		object_type    text        NOT NULL DEFAULT '',
		expires_at     timestamptz,
		PRIMARY KEY (acl_key_index, principal_type, principal_id)
	)`,
	`CREATE INDEX IF NOT EXISTS bastion_aces_principal_idx
		ON bastion_aces (principal_type, principal_id)`,
	`CREATE INDEX IF NOT EXISTS bastion_aces_object_type_idx
		ON bastion_aces (object_type)`,
	`CREATE INDEX IF NOT EXISTS bastion_aces_permissions_idx
		ON bastion_aces USING gin (permissions)`,
	`CREATE TABLE IF NOT EXISTS bastion_object_types (
		acl_key_index text   PRIMARY KEY,
		acl_key       uuid[] NOT NULL,
		object_type   text   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bastion_names (
		name text PRIMARY KEY,
		id   uuid NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bastion_ids (
		id   uuid PRIMARY KEY,
		name text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bastion_decision_log (
		id           text        PRIMARY KEY,
		acl_key      text        NOT NULL,
		principals   text[]      NOT NULL,
		requested    text[]      NOT NULL,
		granted      text[]      NOT NULL DEFAULT '{}',
		allowed      boolean     NOT NULL,
		eval_time_ns bigint      NOT NULL,
		created_at   timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bastion_decision_log_acl_key_idx
		ON bastion_decision_log (acl_key, created_at DESC)`,
}

// Migrate runs all schema migrations. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	s.logger.Debug("postgres migrations applied", slog.Int("statements", len(migrations)))
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ace.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// mapErr folds connection-level failures into ace.ErrUnavailable so callers
// can distinguish "store down" from query errors.
func mapErr(err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ace.ErrUnavailable, err)
	}
	return err
}

// ──────────────────────────────────────────────────
// Ace store
// ──────────────────────────────────────────────────

const aceColumns = `acl_key, principal_type, principal_id, permissions, object_type, expires_at`

// rowKeyExpr is the derived cursor used by the paginated scan. Its ordering
// matches the in-memory backend's row keys, so bookmarks are interchangeable.
const rowKeyExpr = `a.acl_key_index || '#' || a.principal_type || '|' || a.principal_id`

func (s *Store) SetObjectType(ctx context.Context, key ace.AclKey, t ace.ObjectType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bastion_object_types (acl_key_index, acl_key, object_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (acl_key_index) DO UPDATE SET object_type = EXCLUDED.object_type`,
		key.Index(), []uuid.UUID(key), string(t))
	if err != nil {
		return fmt.Errorf("postgres: set object type: %w", mapErr(err))
	}
	// Back-fill the tag onto existing Aces. Runs outside a transaction:
	// partial completion is tolerated and fixed by idempotent retry.
	_, err = s.pool.Exec(ctx, `
		UPDATE bastion_aces SET object_type = $2 WHERE acl_key_index = $1`,
		key.Index(), string(t))
	if err != nil {
		return fmt.Errorf("postgres: back-fill object type: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetObjectType(ctx context.Context, key ace.AclKey) (ace.ObjectType, error) {
	var t string
	err := s.pool.QueryRow(ctx, `
		SELECT object_type FROM bastion_object_types WHERE acl_key_index = $1`,
		key.Index()).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return ace.ObjectTypeUnknown, ace.ErrNotFound
	}
	if err != nil {
		return ace.ObjectTypeUnknown, fmt.Errorf("postgres: get object type: %w", mapErr(err))
	}
	return ace.ObjectType(t), nil
}

func (s *Store) MergePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, t ace.ObjectType, expiresAt time.Time) error {
	if t != ace.ObjectTypeUnknown {
		// The tag is seeded before the ace so a key never carries grants
		// without its recorded type.
		_, err := s.pool.Exec(ctx, `
			INSERT INTO bastion_object_types (acl_key_index, acl_key, object_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (acl_key_index) DO NOTHING`,
			k.AclKey.Index(), []uuid.UUID(k.AclKey), string(t))
		if err != nil {
			return fmt.Errorf("postgres: seed object type: %w", mapErr(err))
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bastion_aces (acl_key, acl_key_index, principal_type, principal_id, permissions, object_type, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (acl_key_index, principal_type, principal_id) DO UPDATE SET
			permissions = (
				SELECT COALESCE(array_agg(DISTINCT p ORDER BY p), '{}')
				FROM unnest(bastion_aces.permissions || EXCLUDED.permissions) AS p
			),
			object_type = CASE WHEN EXCLUDED.object_type <> ''
				THEN EXCLUDED.object_type ELSE bastion_aces.object_type END,
			expires_at = EXCLUDED.expires_at`,
		[]uuid.UUID(k.AclKey), k.AclKey.Index(),
		string(k.Principal.Type), k.Principal.ID,
		perms.Names(), string(t), nullableTime(expiresAt))
	if err != nil {
		return fmt.Errorf("postgres: merge permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) RemovePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE bastion_aces SET permissions = COALESCE(
			(SELECT array_agg(p ORDER BY p) FROM unnest(permissions) AS p
			 WHERE p <> ALL($4::text[])),
			'{}')
		WHERE acl_key_index = $1 AND principal_type = $2 AND principal_id = $3`,
		k.AclKey.Index(), string(k.Principal.Type), k.Principal.ID, perms.Names())
	if err != nil {
		return fmt.Errorf("postgres: remove permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) OverwritePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, expiresAt time.Time) error {
	// DO UPDATE leaves object_type untouched, so the recorded tag survives
	// an overwrite of an existing row.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bastion_aces (acl_key, acl_key_index, principal_type, principal_id, permissions, object_type, expires_at)
		VALUES ($1, $2, $3, $4, $5,
			COALESCE((SELECT object_type FROM bastion_object_types WHERE acl_key_index = $2), ''),
			$6)
		ON CONFLICT (acl_key_index, principal_type, principal_id) DO UPDATE SET
			permissions = EXCLUDED.permissions,
			expires_at  = EXCLUDED.expires_at`,
		[]uuid.UUID(k.AclKey), k.AclKey.Index(),
		string(k.Principal.Type), k.Principal.ID,
		perms.Names(), nullableTime(expiresAt))
	if err != nil {
		return fmt.Errorf("postgres: overwrite permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetAce(ctx context.Context, k ace.Key) (*ace.Ace, error) {
	var r aceRow
	r.PrincipalType = string(k.Principal.Type)
	r.PrincipalID = k.Principal.ID
	err := s.pool.QueryRow(ctx, `
		SELECT acl_key, permissions, object_type, expires_at FROM bastion_aces
		WHERE acl_key_index = $1 AND principal_type = $2 AND principal_id = $3`,
		k.AclKey.Index(), r.PrincipalType, r.PrincipalID).
		Scan(&r.AclKey, &r.Permissions, &r.ObjectType, &r.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get ace: %w", mapErr(err))
	}
	a, err := r.toAce()
	if err != nil {
		return nil, fmt.Errorf("postgres: get ace: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAces(ctx context.Context, keys []ace.Key) ([]ace.Ace, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	indexes, types, ids := keyColumns(keys)
	rows, err := s.pool.Query(ctx, `
		SELECT a.`+aceColumns+`
		FROM bastion_aces a
		JOIN unnest($1::text[], $2::text[], $3::text[]) AS q(acl_key_index, principal_type, principal_id)
			ON a.acl_key_index = q.acl_key_index
			AND a.principal_type = q.principal_type
			AND a.principal_id = q.principal_id`,
		indexes, types, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: bulk get aces: %w", mapErr(err))
	}
	return scanAces(rows)
}

func (s *Store) ListAcesByAclKey(ctx context.Context, key ace.AclKey) ([]ace.Ace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+aceColumns+` FROM bastion_aces WHERE acl_key_index = $1`,
		key.Index())
	if err != nil {
		return nil, fmt.Errorf("postgres: list aces by acl key: %w", mapErr(err))
	}
	return scanAces(rows)
}

func (s *Store) ListAcesByPrincipal(ctx context.Context, p principal.Principal) ([]ace.Ace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+aceColumns+` FROM bastion_aces
		WHERE principal_type = $1 AND principal_id = $2`,
		string(p.Type), p.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list aces by principal: %w", mapErr(err))
	}
	return scanAces(rows)
}

func (s *Store) DeleteByAclKey(ctx context.Context, key ace.AclKey) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_aces WHERE acl_key_index = $1`, key.Index()); err != nil {
		return fmt.Errorf("postgres: delete by acl key: %w", mapErr(err))
	}
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_object_types WHERE acl_key_index = $1`, key.Index()); err != nil {
		return fmt.Errorf("postgres: delete object type: %w", mapErr(err))
	}
	return nil
}

func (s *Store) DeleteByPrincipal(ctx context.Context, p principal.Principal) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_aces WHERE principal_type = $1 AND principal_id = $2`,
		string(p.Type), p.ID)
	if err != nil {
		return fmt.Errorf("postgres: delete by principal: %w", mapErr(err))
	}
	return nil
}

func (s *Store) ListAclKeysByTypeAndExactPermissions(ctx context.Context, ps principal.Set, objectType ace.ObjectType, perms ace.PermissionSet) ([]ace.AclKey, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	types, ids := principalColumns(ps)
	// Stored arrays are sorted and deduplicated, so exact set match is array
	// equality against the canonical encoding.
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (a.acl_key_index) a.acl_key
		FROM bastion_aces a
		JOIN unnest($1::text[], $2::text[]) AS q(principal_type, principal_id)
			ON a.principal_type = q.principal_type AND a.principal_id = q.principal_id
		WHERE a.object_type = $3
			AND a.permissions = $4::text[]
			AND (a.expires_at IS NULL OR a.expires_at > now())
		ORDER BY a.acl_key_index`,
		types, ids, string(objectType), perms.Names())
	if err != nil {
		return nil, fmt.Errorf("postgres: list by type and permissions: %w", mapErr(err))
	}
	defer rows.Close()

	var keys []ace.AclKey
	for rows.Next() {
		var k []uuid.UUID
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: list by type and permissions: %w", err)
		}
		keys = append(keys, ace.AclKey(k))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list by type and permissions: %w", mapErr(err))
	}
	return keys, nil
}

func (s *Store) ListAuthorizedAclKeys(ctx context.Context, ps principal.Set, perms ace.PermissionSet, bookmark string, limit int) ([]ace.AclKey, string, error) {
	if len(ps) == 0 || limit <= 0 {
		return nil, "", nil
	}
	after, err := decodeBookmark(bookmark)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: list authorized: %w", err)
	}
	types, ids := principalColumns(ps)

	// A key may match through several principals, so over-fetch by the
	// principal count and deduplicate in row-key order. Rows for one key are
	// adjacent because the row key is prefixed by the acl key index.
	fetch := limit*len(ps) + 1
	rows, err := s.pool.Query(ctx, `
		SELECT a.acl_key, `+rowKeyExpr+` AS row_key
		FROM bastion_aces a
		JOIN unnest($1::text[], $2::text[]) AS q(principal_type, principal_id)
			ON a.principal_type = q.principal_type AND a.principal_id = q.principal_id
		WHERE a.permissions @> $3::text[]
			AND (a.expires_at IS NULL OR a.expires_at > now())
			AND `+rowKeyExpr+` > $4
		ORDER BY row_key
		LIMIT $5`,
		types, ids, perms.Names(), after, fetch)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: list authorized: %w", mapErr(err))
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var keys []ace.AclKey
	var last string
	n := 0
	for rows.Next() {
		var k []uuid.UUID
		var rowKey string
		if err := rows.Scan(&k, &rowKey); err != nil {
			return nil, "", fmt.Errorf("postgres: list authorized: %w", err)
		}
		n++
		key := ace.AclKey(k)
		idx := key.Index()
		if _, dup := seen[idx]; dup {
			// Consume rows of already-listed keys so the bookmark lands
			// past them and the next page starts on a fresh key.
			last = rowKey
			continue
		}
		if len(keys) >= limit {
			return keys, encodeBookmark(last), nil
		}
		last = rowKey
		seen[idx] = struct{}{}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("postgres: list authorized: %w", mapErr(err))
	}
	if n == fetch {
		// The window filled exactly; more rows may remain.
		return keys, encodeBookmark(last), nil
	}
	return keys, "", nil
}

func scanAces(rows pgx.Rows) ([]ace.Ace, error) {
	defer rows.Close()
	var out []ace.Ace
	for rows.Next() {
		var r aceRow
		if err := rows.Scan(&r.AclKey, &r.PrincipalType, &r.PrincipalID, &r.Permissions, &r.ObjectType, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ace: %w", err)
		}
		a, err := r.toAce()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ace: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan aces: %w", mapErr(err))
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Reservation store
// ──────────────────────────────────────────────────

func (s *Store) PutNameIfAbsent(ctx context.Context, name string, id uuid.UUID) (uuid.UUID, bool, error) {
	// The no-op DO UPDATE locks the surviving row, so the statement returns
	// it even when a concurrent insert commits mid-statement. xmax = 0 only
	// on a fresh insert.
	var existing uuid.UUID
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO bastion_names (name, id) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET id = bastion_names.id
		RETURNING id, (xmax = 0)`,
		name, id).Scan(&existing, &inserted)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("postgres: put name if absent: %w", mapErr(err))
	}
	return existing, inserted, nil
}

func (s *Store) PutIDIfAbsent(ctx context.Context, id uuid.UUID, name string) (string, bool, error) {
	var existing string
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO bastion_ids (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = bastion_ids.name
		RETURNING name, (xmax = 0)`,
		id, name).Scan(&existing, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("postgres: put id if absent: %w", mapErr(err))
	}
	return existing, inserted, nil
}

func (s *Store) GetIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM bastion_names WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%w: name %q", reservation.ErrNotFound, name)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: get id by name: %w", mapErr(err))
	}
	return id, nil
}

func (s *Store) GetNameByID(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT name FROM bastion_ids WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: id %s", reservation.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get name by id: %w", mapErr(err))
	}
	return name, nil
}

func (s *Store) SetNameForID(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bastion_ids SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("postgres: set name for id: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", reservation.ErrNotFound, id)
	}
	return nil
}

func (s *Store) DeleteName(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_names WHERE name = $1`, name); err != nil {
		return fmt.Errorf("postgres: delete name: %w", mapErr(err))
	}
	return nil
}

func (s *Store) DeleteID(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_ids WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete id: %w", mapErr(err))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Decision log store
// ──────────────────────────────────────────────────

func (s *Store) CreateEntry(ctx context.Context, entry *authlog.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bastion_decision_log
			(id, acl_key, principals, requested, granted, allowed, eval_time_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID.String(), entry.AclKey, entry.Principals, entry.Requested,
		entry.Granted, entry.Allowed, entry.EvalTimeNs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create decision log entry: %w", mapErr(err))
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, f *authlog.QueryFilter) ([]*authlog.Entry, error) {
	if f == nil {
		f = &authlog.QueryFilter{}
	}
	q := `SELECT id, acl_key, principals, requested, granted, allowed, eval_time_ns, created_at
		FROM bastion_decision_log WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.AclKey != "" {
		q += ` AND acl_key = ` + arg(f.AclKey)
	}
	if f.Principal != "" {
		q += ` AND ` + arg(f.Principal) + ` = ANY(principals)`
	}
	if f.Allowed != nil {
		q += ` AND allowed = ` + arg(*f.Allowed)
	}
	if f.After != nil {
		q += ` AND created_at > ` + arg(*f.After)
	}
	if f.Before != nil {
		q += ` AND created_at < ` + arg(*f.Before)
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decision log: %w", mapErr(err))
	}
	defer rows.Close()

	var out []*authlog.Entry
	for rows.Next() {
		var e authlog.Entry
		var rawID string
		if err := rows.Scan(&rawID, &e.AclKey, &e.Principals, &e.Requested, &e.Granted, &e.Allowed, &e.EvalTimeNs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan decision log entry: %w", err)
		}
		if e.ID, err = parseEntryID(rawID); err != nil {
			return nil, fmt.Errorf("postgres: scan decision log entry: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list decision log: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM bastion_decision_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge decision log: %w", mapErr(err))
	}
	return tag.RowsAffected(), nil
}
