package util

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// NewID returns a prefixed random identifier such as "bkg_3f2a...". Entity ids are
// uuid v4 without dashes so they stay URL and filename safe.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// NewRequestID returns a short sortable id for request correlation.
func NewRequestID() string {
	return xid.New().String()
}
