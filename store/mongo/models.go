package mongo

import (
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/principal"
)

// aceDoc is the bastion_aces document. The _id is the row key
// ("index#TYPE|id"), which gives single-document update atomicity per
// (AclKey, Principal) pair and a sortable pagination cursor for free.
type aceDoc struct {
	RowKey        string     `bson:"_id"`
	AclKey        []string   `bson:"acl_key"`
	AclKeyIndex   string     `bson:"acl_key_index"`
	PrincipalType string     `bson:"principal_type"`
	PrincipalID   string     `bson:"principal_id"`
	Permissions   []string   `bson:"permissions"`
	ObjectType    string     `bson:"object_type"`
	ExpiresAt     *time.Time `bson:"expires_at,omitempty"`
}

func (d aceDoc) toAce() (ace.Ace, error) {
	key := make(ace.AclKey, len(d.AclKey))
	for i, s := range d.AclKey {
		u, err := uuid.Parse(s)
		if err != nil {
			return ace.Ace{}, err
		}
		key[i] = u
	}
	perms, err := ace.ParsePermissionSet(d.Permissions)
	if err != nil {
		return ace.Ace{}, err
	}
	var expires time.Time
	if d.ExpiresAt != nil {
		expires = *d.ExpiresAt
	}
	return ace.Ace{
		Key: ace.Key{
			AclKey:    key,
			Principal: principal.Principal{Type: principal.Type(d.PrincipalType), ID: d.PrincipalID},
		},
		Value: ace.Value{
			Permissions: perms,
			ObjectType:  ace.ObjectType(d.ObjectType),
			ExpiresAt:   expires,
		},
	}, nil
}

// objectTypeDoc is the bastion_object_types document, keyed by AclKey index.
type objectTypeDoc struct {
	AclKeyIndex string   `bson:"_id"`
	AclKey      []string `bson:"acl_key"`
	ObjectType  string   `bson:"object_type"`
}

// nameDoc is the name→id side of the reservation bijection.
type nameDoc struct {
	Name string `bson:"_id"`
	ID   string `bson:"id"`
}

// idDoc is the id→name side of the reservation bijection.
type idDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

// entryDoc is the bastion_decision_log document.
type entryDoc struct {
	ID         string    `bson:"_id"`
	AclKey     string    `bson:"acl_key"`
	Principals []string  `bson:"principals"`
	Requested  []string  `bson:"requested"`
	Granted    []string  `bson:"granted"`
	Allowed    bool      `bson:"allowed"`
	EvalTimeNs int64     `bson:"eval_time_ns"`
	CreatedAt  time.Time `bson:"created_at"`
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
