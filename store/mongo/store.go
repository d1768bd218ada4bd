// Package mongo implements the composite store on MongoDB.
//
// Every permission mutation is a single UpdateOne against the row-key _id,
// so the driver's per-document atomicity provides the single-key
// read-modify-write guarantee without transactions. The reservation
// insert-if-absent primitive maps to InsertOne plus duplicate-key detection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/id"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
	"github.com/parallax-data/bastion/store"
)

// Collection name constants.
const (
	colAces        = "bastion_aces"
	colObjectTypes = "bastion_object_types"
	colNames       = "bastion_names"
	colIDs         = "bastion_ids"
	colDecisionLog = "bastion_decision_log"
)

var (
	_ store.Store       = (*Store)(nil)
	_ ace.Store         = (*Store)(nil)
	_ reservation.Store = (*Store)(nil)
	_ authlog.Store     = (*Store)(nil)
)

// Store is the MongoDB-backed composite store.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps an existing database handle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials uri and returns a store over the named database. Call
// Migrate before first use.
func Connect(uri, database string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	return New(client.Database(database), opts...), nil
}

// Migrate creates the collection indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", ace.ErrUnavailable, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	return s.db.Client().Disconnect(context.Background())
}

// migrationIndexes returns the index definitions for all collections. The
// _id of each collection already carries the primary uniqueness invariant;
// these cover the secondary access paths.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colAces: {
			{Keys: bson.D{{Key: "acl_key_index", Value: 1}}},
			{Keys: bson.D{{Key: "principal_type", Value: 1}, {Key: "principal_id", Value: 1}}},
			{Keys: bson.D{{Key: "object_type", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colDecisionLog: {
			{Keys: bson.D{{Key: "acl_key", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}

// mapErr folds driver-level connectivity failures into ace.ErrUnavailable.
func mapErr(err error) error {
	if mongod.IsNetworkError(err) || mongod.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ace.ErrUnavailable, err)
	}
	return err
}

// unexpiredFilter matches documents whose expiration is absent or in the
// future.
func unexpiredFilter() bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "expires_at", Value: nil}},
		bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: time.Now()}}}},
	}}}
}

// principalFilter matches documents naming any principal in ps.
func principalFilter(ps principal.Set) bson.D {
	ors := make(bson.A, len(ps))
	for i, p := range ps {
		ors[i] = bson.D{
			{Key: "principal_type", Value: string(p.Type)},
			{Key: "principal_id", Value: p.ID},
		}
	}
	return bson.D{{Key: "$or", Value: ors}}
}

// exactPermissionsFilter is set equality regardless of element order. $all
// with an empty array matches nothing, so the empty set gets its own clause.
func exactPermissionsFilter(perms ace.PermissionSet) bson.D {
	names := perms.Names()
	if len(names) == 0 {
		return bson.D{{Key: "$size", Value: 0}}
	}
	return bson.D{
		{Key: "$all", Value: names},
		{Key: "$size", Value: len(names)},
	}
}

// ──────────────────────────────────────────────────
// Ace store
// ──────────────────────────────────────────────────

func (s *Store) SetObjectType(ctx context.Context, key ace.AclKey, t ace.ObjectType) error {
	_, err := s.db.Collection(colObjectTypes).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: key.Index()}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "object_type", Value: string(t)}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "acl_key", Value: key.Strings()}}},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: set object type: %w", mapErr(err))
	}
	// Back-fill onto existing Aces; partial completion is tolerated and
	// fixed by idempotent retry.
	_, err = s.db.Collection(colAces).UpdateMany(ctx,
		bson.D{{Key: "acl_key_index", Value: key.Index()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "object_type", Value: string(t)}}}})
	if err != nil {
		return fmt.Errorf("mongo: back-fill object type: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetObjectType(ctx context.Context, key ace.AclKey) (ace.ObjectType, error) {
	var doc objectTypeDoc
	err := s.db.Collection(colObjectTypes).
		FindOne(ctx, bson.D{{Key: "_id", Value: key.Index()}}).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return ace.ObjectTypeUnknown, ace.ErrNotFound
	}
	if err != nil {
		return ace.ObjectTypeUnknown, fmt.Errorf("mongo: get object type: %w", mapErr(err))
	}
	return ace.ObjectType(doc.ObjectType), nil
}

func (s *Store) MergePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, t ace.ObjectType, expiresAt time.Time) error {
	setFields := bson.D{{Key: "expires_at", Value: nullableTime(expiresAt)}}
	onInsert := bson.D{
		{Key: "acl_key", Value: k.AclKey.Strings()},
		{Key: "acl_key_index", Value: k.AclKey.Index()},
		{Key: "principal_type", Value: string(k.Principal.Type)},
		{Key: "principal_id", Value: k.Principal.ID},
	}
	if t != ace.ObjectTypeUnknown {
		setFields = append(setFields, bson.E{Key: "object_type", Value: string(t)})
	} else {
		onInsert = append(onInsert, bson.E{Key: "object_type", Value: ""})
	}

	if t != ace.ObjectTypeUnknown {
		// The tag is seeded before the ace so a key never carries grants
		// without its recorded type.
		_, err := s.db.Collection(colObjectTypes).UpdateOne(ctx,
			bson.D{{Key: "_id", Value: k.AclKey.Index()}},
			bson.D{{Key: "$setOnInsert", Value: bson.D{
				{Key: "acl_key", Value: k.AclKey.Strings()},
				{Key: "object_type", Value: string(t)},
			}}},
			options.UpdateOne().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("mongo: seed object type: %w", mapErr(err))
		}
	}

	names := perms.Names()
	_, err := s.db.Collection(colAces).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: k.String()}},
		bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "permissions", Value: bson.D{{Key: "$each", Value: names}}}}},
			{Key: "$set", Value: setFields},
			{Key: "$setOnInsert", Value: onInsert},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: merge permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) RemovePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet) error {
	_, err := s.db.Collection(colAces).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: k.String()}},
		bson.D{{Key: "$pullAll", Value: bson.D{{Key: "permissions", Value: perms.Names()}}}})
	if err != nil {
		return fmt.Errorf("mongo: remove permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) OverwritePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, expiresAt time.Time) error {
	// The recorded object type lives only in $setOnInsert, so overwriting
	// an existing document leaves its tag untouched.
	t, err := s.GetObjectType(ctx, k.AclKey)
	if err != nil && !errors.Is(err, ace.ErrNotFound) {
		return fmt.Errorf("mongo: overwrite permissions: %w", err)
	}
	_, err = s.db.Collection(colAces).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: k.String()}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "permissions", Value: perms.Names()},
				{Key: "expires_at", Value: nullableTime(expiresAt)},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "acl_key", Value: k.AclKey.Strings()},
				{Key: "acl_key_index", Value: k.AclKey.Index()},
				{Key: "principal_type", Value: string(k.Principal.Type)},
				{Key: "principal_id", Value: k.Principal.ID},
				{Key: "object_type", Value: string(t)},
			}},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: overwrite permissions: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetAce(ctx context.Context, k ace.Key) (*ace.Ace, error) {
	var doc aceDoc
	err := s.db.Collection(colAces).
		FindOne(ctx, bson.D{{Key: "_id", Value: k.String()}}).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return nil, ace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get ace: %w", mapErr(err))
	}
	a, err := doc.toAce()
	if err != nil {
		return nil, fmt.Errorf("mongo: get ace: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAces(ctx context.Context, keys []ace.Key) ([]ace.Ace, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rowKeys := make([]string, len(keys))
	for i, k := range keys {
		rowKeys[i] = k.String()
	}
	cur, err := s.db.Collection(colAces).Find(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: rowKeys}}}})
	if err != nil {
		return nil, fmt.Errorf("mongo: bulk get aces: %w", mapErr(err))
	}
	return decodeAces(ctx, cur)
}

func (s *Store) ListAcesByAclKey(ctx context.Context, key ace.AclKey) ([]ace.Ace, error) {
	cur, err := s.db.Collection(colAces).Find(ctx,
		bson.D{{Key: "acl_key_index", Value: key.Index()}})
	if err != nil {
		return nil, fmt.Errorf("mongo: list aces by acl key: %w", mapErr(err))
	}
	return decodeAces(ctx, cur)
}

func (s *Store) ListAcesByPrincipal(ctx context.Context, p principal.Principal) ([]ace.Ace, error) {
	cur, err := s.db.Collection(colAces).Find(ctx, bson.D{
		{Key: "principal_type", Value: string(p.Type)},
		{Key: "principal_id", Value: p.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: list aces by principal: %w", mapErr(err))
	}
	return decodeAces(ctx, cur)
}

func (s *Store) DeleteByAclKey(ctx context.Context, key ace.AclKey) error {
	if _, err := s.db.Collection(colAces).DeleteMany(ctx,
		bson.D{{Key: "acl_key_index", Value: key.Index()}}); err != nil {
		return fmt.Errorf("mongo: delete by acl key: %w", mapErr(err))
	}
	if _, err := s.db.Collection(colObjectTypes).DeleteOne(ctx,
		bson.D{{Key: "_id", Value: key.Index()}}); err != nil {
		return fmt.Errorf("mongo: delete object type: %w", mapErr(err))
	}
	return nil
}

func (s *Store) DeleteByPrincipal(ctx context.Context, p principal.Principal) error {
	_, err := s.db.Collection(colAces).DeleteMany(ctx, bson.D{
		{Key: "principal_type", Value: string(p.Type)},
		{Key: "principal_id", Value: p.ID},
	})
	if err != nil {
		return fmt.Errorf("mongo: delete by principal: %w", mapErr(err))
	}
	return nil
}

func (s *Store) ListAclKeysByTypeAndExactPermissions(ctx context.Context, ps principal.Set, objectType ace.ObjectType, perms ace.PermissionSet) ([]ace.AclKey, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	filter := bson.D{
		{Key: "object_type", Value: string(objectType)},
		{Key: "permissions", Value: exactPermissionsFilter(perms)},
		{Key: "$and", Value: bson.A{principalFilter(ps), unexpiredFilter()}},
	}
	cur, err := s.db.Collection(colAces).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo: list by type and permissions: %w", mapErr(err))
	}
	aces, err := decodeAces(ctx, cur)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var keys []ace.AclKey
	for _, a := range aces {
		idx := a.Key.AclKey.Index()
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		keys = append(keys, a.Key.AclKey)
	}
	return keys, nil
}

func (s *Store) ListAuthorizedAclKeys(ctx context.Context, ps principal.Set, perms ace.PermissionSet, bookmark string, limit int) ([]ace.AclKey, string, error) {
	if len(ps) == 0 || limit <= 0 {
		return nil, "", nil
	}
	after, err := decodeBookmark(bookmark)
	if err != nil {
		return nil, "", fmt.Errorf("mongo: list authorized: %w", err)
	}

	filter := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$gt", Value: after}}},
		{Key: "permissions", Value: bson.D{{Key: "$all", Value: perms.Names()}}},
		{Key: "$and", Value: bson.A{principalFilter(ps), unexpiredFilter()}},
	}
	// A key may match through several principals; over-fetch by the
	// principal count and deduplicate in row-key order.
	fetch := limit*len(ps) + 1
	cur, err := s.db.Collection(colAces).Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetLimit(int64(fetch)))
	if err != nil {
		return nil, "", fmt.Errorf("mongo: list authorized: %w", mapErr(err))
	}
	defer cur.Close(ctx)

	seen := make(map[string]struct{})
	var keys []ace.AclKey
	var last string
	n := 0
	for cur.Next(ctx) {
		var doc aceDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, "", fmt.Errorf("mongo: list authorized: %w", err)
		}
		n++
		a, err := doc.toAce()
		if err != nil {
			return nil, "", fmt.Errorf("mongo: list authorized: %w", err)
		}
		idx := a.Key.AclKey.Index()
		if _, dup := seen[idx]; dup {
			// Consume rows of already-listed keys so the bookmark lands
			// past them and the next page starts on a fresh key.
			last = doc.RowKey
			continue
		}
		if len(keys) >= limit {
			return keys, encodeBookmark(last), nil
		}
		last = doc.RowKey
		seen[idx] = struct{}{}
		keys = append(keys, a.Key.AclKey)
	}
	if err := cur.Err(); err != nil {
		return nil, "", fmt.Errorf("mongo: list authorized: %w", mapErr(err))
	}
	if n == fetch {
		// The window filled exactly; more rows may remain.
		return keys, encodeBookmark(last), nil
	}
	return keys, "", nil
}

func decodeAces(ctx context.Context, cur *mongod.Cursor) ([]ace.Ace, error) {
	defer cur.Close(ctx)
	var out []ace.Ace
	for cur.Next(ctx) {
		var doc aceDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode ace: %w", err)
		}
		a, err := doc.toAce()
		if err != nil {
			return nil, fmt.Errorf("mongo: decode ace: %w", err)
		}
		out = append(out, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: decode aces: %w", mapErr(err))
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Reservation store
// ──────────────────────────────────────────────────

func (s *Store) PutNameIfAbsent(ctx context.Context, name string, resID uuid.UUID) (uuid.UUID, bool, error) {
	_, err := s.db.Collection(colNames).InsertOne(ctx, nameDoc{Name: name, ID: resID.String()})
	if err == nil {
		return resID, true, nil
	}
	if !mongod.IsDuplicateKeyError(err) {
		return uuid.Nil, false, fmt.Errorf("mongo: put name if absent: %w", mapErr(err))
	}
	var doc nameDoc
	if err := s.db.Collection(colNames).
		FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&doc); err != nil {
		return uuid.Nil, false, fmt.Errorf("mongo: put name if absent: read back: %w", mapErr(err))
	}
	existing, err := uuid.Parse(doc.ID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("mongo: put name if absent: %w", err)
	}
	return existing, false, nil
}

func (s *Store) PutIDIfAbsent(ctx context.Context, resID uuid.UUID, name string) (string, bool, error) {
	_, err := s.db.Collection(colIDs).InsertOne(ctx, idDoc{ID: resID.String(), Name: name})
	if err == nil {
		return name, true, nil
	}
	if !mongod.IsDuplicateKeyError(err) {
		return "", false, fmt.Errorf("mongo: put id if absent: %w", mapErr(err))
	}
	var doc idDoc
	if err := s.db.Collection(colIDs).
		FindOne(ctx, bson.D{{Key: "_id", Value: resID.String()}}).Decode(&doc); err != nil {
		return "", false, fmt.Errorf("mongo: put id if absent: read back: %w", mapErr(err))
	}
	return doc.Name, false, nil
}

func (s *Store) GetIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var doc nameDoc
	err := s.db.Collection(colNames).
		FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return uuid.Nil, fmt.Errorf("%w: name %q", reservation.ErrNotFound, name)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("mongo: get id by name: %w", mapErr(err))
	}
	return uuid.Parse(doc.ID)
}

func (s *Store) GetNameByID(ctx context.Context, resID uuid.UUID) (string, error) {
	var doc idDoc
	err := s.db.Collection(colIDs).
		FindOne(ctx, bson.D{{Key: "_id", Value: resID.String()}}).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return "", fmt.Errorf("%w: id %s", reservation.ErrNotFound, resID)
	}
	if err != nil {
		return "", fmt.Errorf("mongo: get name by id: %w", mapErr(err))
	}
	return doc.Name, nil
}

func (s *Store) SetNameForID(ctx context.Context, resID uuid.UUID, name string) error {
	res, err := s.db.Collection(colIDs).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: resID.String()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: name}}}})
	if err != nil {
		return fmt.Errorf("mongo: set name for id: %w", mapErr(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: id %s", reservation.ErrNotFound, resID)
	}
	return nil
}

func (s *Store) DeleteName(ctx context.Context, name string) error {
	if _, err := s.db.Collection(colNames).DeleteOne(ctx,
		bson.D{{Key: "_id", Value: name}}); err != nil {
		return fmt.Errorf("mongo: delete name: %w", mapErr(err))
	}
	return nil
}

func (s *Store) DeleteID(ctx context.Context, resID uuid.UUID) error {
	if _, err := s.db.Collection(colIDs).DeleteOne(ctx,
		bson.D{{Key: "_id", Value: resID.String()}}); err != nil {
		return fmt.Errorf("mongo: delete id: %w", mapErr(err))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Decision log store
// ──────────────────────────────────────────────────

func (s *Store) CreateEntry(ctx context.Context, entry *authlog.Entry) error {
	doc := entryDoc{
		ID:         entry.ID.String(),
		AclKey:     entry.AclKey,
		Principals: entry.Principals,
		Requested:  entry.Requested,
		Granted:    entry.Granted,
		Allowed:    entry.Allowed,
		EvalTimeNs: entry.EvalTimeNs,
		CreatedAt:  entry.CreatedAt,
	}
	if _, err := s.db.Collection(colDecisionLog).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: create decision log entry: %w", mapErr(err))
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, f *authlog.QueryFilter) ([]*authlog.Entry, error) {
	if f == nil {
		f = &authlog.QueryFilter{}
	}
	filter := bson.D{}
	if f.AclKey != "" {
		filter = append(filter, bson.E{Key: "acl_key", Value: f.AclKey})
	}
	if f.Principal != "" {
		filter = append(filter, bson.E{Key: "principals", Value: f.Principal})
	}
	if f.Allowed != nil {
		filter = append(filter, bson.E{Key: "allowed", Value: *f.Allowed})
	}
	created := bson.D{}
	if f.After != nil {
		created = append(created, bson.E{Key: "$gt", Value: *f.After})
	}
	if f.Before != nil {
		created = append(created, bson.E{Key: "$lt", Value: *f.Before})
	}
	if len(created) > 0 {
		filter = append(filter, bson.E{Key: "created_at", Value: created})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}

	cur, err := s.db.Collection(colDecisionLog).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list decision log: %w", mapErr(err))
	}
	defer cur.Close(ctx)

	var out []*authlog.Entry
	for cur.Next(ctx) {
		var doc entryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode decision log entry: %w", err)
		}
		entryID, err := id.ParseDecisionLogID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("mongo: decode decision log entry: %w", err)
		}
		out = append(out, &authlog.Entry{
			ID:         entryID,
			AclKey:     doc.AclKey,
			Principals: doc.Principals,
			Requested:  doc.Requested,
			Granted:    doc.Granted,
			Allowed:    doc.Allowed,
			EvalTimeNs: doc.EvalTimeNs,
			CreatedAt:  doc.CreatedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: list decision log: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colDecisionLog).DeleteMany(ctx,
		bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: before}}}})
	if err != nil {
		return 0, fmt.Errorf("mongo: purge decision log: %w", mapErr(err))
	}
	return res.DeletedCount, nil
}
