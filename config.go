package bastion

// Config holds configuration for the decision engine.
type Config struct {
	// BulkChunkSize is the number of (AclKey, Principal) pairs fetched from
	// the store in one bulk call. Defaults to 128.
	BulkChunkSize int `json:"bulk_chunk_size,omitempty"`

	// BulkParallelism is the number of bulk fetches in flight at once for a
	// single query. Defaults to 8.
	BulkParallelism int `json:"bulk_parallelism,omitempty"`

	// PageSize is the fallback page size for the paged authorized-objects
	// scan when the caller does not give a limit. Defaults to 100.
	PageSize int `json:"page_size,omitempty"`

	// AuditDecisions enables writing a decision-log entry for every point
	// check. Defaults to false; decision logging is best effort and never
	// blocks or fails a check.
	AuditDecisions bool `json:"audit_decisions,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BulkChunkSize:   128,
		BulkParallelism: 8,
		PageSize:        100,
	}
}

func (c Config) chunkSize() int {
	if c.BulkChunkSize > 0 {
		return c.BulkChunkSize
	}
	return 128
}

func (c Config) parallelism() int {
	if c.BulkParallelism > 0 {
		return c.BulkParallelism
	}
	return 8
}

func (c Config) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return 100
}
