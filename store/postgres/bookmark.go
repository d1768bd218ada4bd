package postgres

import (
	"encoding/base64"

	"github.com/parallax-data/bastion/id"
)

// Bookmarks are the opaque form of the last-consumed row key, shared with
// the other backends so a scan can resume against any of them.

func encodeBookmark(rowKey string) string {
	if rowKey == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(rowKey))
}

func decodeBookmark(bookmark string) (string, error) {
	if bookmark == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(bookmark)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseEntryID(s string) (id.DecisionLogID, error) {
	return id.ParseDecisionLogID(s)
}
