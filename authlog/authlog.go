// Package authlog defines the authorization decision audit log Entry entity.
package authlog

import (
	"time"

	"github.com/parallax-data/bastion/id"
)

// Entry is a single authorization decision audit record.
type Entry struct {
	ID         id.DecisionLogID `json:"id" db:"id"`
	AclKey     string           `json:"acl_key" db:"acl_key"`
	Principals []string         `json:"principals" db:"principals"`
	Requested  []string         `json:"requested" db:"requested"`
	Granted    []string         `json:"granted,omitempty" db:"granted"`
	Allowed    bool             `json:"allowed" db:"allowed"`
	EvalTimeNs int64            `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying decision logs.
type QueryFilter struct {
	AclKey    string     `json:"acl_key,omitempty"`
	Principal string     `json:"principal,omitempty"`
	Allowed   *bool      `json:"allowed,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}
