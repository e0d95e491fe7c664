package models

import (
	"strings"

	id "anonid/pkg/domain"
)

// RedisKey builds the storage key for a (tenant, segment) pair.
func RedisKey(prefix string, tenantID id.TenantID, segment id.SegmentKey) string {
	return prefix + "corr:" + sanitize(tenantID.String()) + ":" + sanitize(segment.String())
}

func sanitize(s string) string {
	return strings.NewReplacer(":", "_", " ", "_").Replace(s)
}
