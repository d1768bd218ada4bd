package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/principal"
)

// aceRow is the scan target for bastion_aces.
type aceRow struct {
	AclKey        []uuid.UUID
	PrincipalType string
	PrincipalID   string
	Permissions   []string
	ObjectType    string
	ExpiresAt     *time.Time
}

func (r aceRow) toAce() (ace.Ace, error) {
	perms, err := ace.ParsePermissionSet(r.Permissions)
	if err != nil {
		return ace.Ace{}, err
	}
	var expires time.Time
	if r.ExpiresAt != nil {
		expires = *r.ExpiresAt
	}
	return ace.Ace{
		Key: ace.Key{
			AclKey:    ace.AclKey(r.AclKey),
			Principal: principal.Principal{Type: principal.Type(r.PrincipalType), ID: r.PrincipalID},
		},
		Value: ace.Value{
			Permissions: perms,
			ObjectType:  ace.ObjectType(r.ObjectType),
			ExpiresAt:   expires,
		},
	}, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// principalColumns splits a principal set into parallel slices for unnest
// joins.
func principalColumns(ps principal.Set) (types, ids []string) {
	types = make([]string, len(ps))
	ids = make([]string, len(ps))
	for i, p := range ps {
		types[i] = string(p.Type)
		ids[i] = p.ID
	}
	return types, ids
}

// keyColumns splits ace keys into parallel slices for unnest joins.
func keyColumns(keys []ace.Key) (indexes, types, ids []string) {
	indexes = make([]string, len(keys))
	types = make([]string, len(keys))
	ids = make([]string, len(keys))
	for i, k := range keys {
		indexes[i] = k.AclKey.Index()
		types[i] = string(k.Principal.Type)
		ids[i] = k.Principal.ID
	}
	return indexes, types, ids
}
