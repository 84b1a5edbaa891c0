package cache

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

const taskListPrefix = "tasks"

// TaskListKey builds the key for one task-list response. Identical inputs
// always yield the same key regardless of filter order; empty filters are
// dropped.
func TaskListKey(identity uuid.UUID, page, limit int, filters map[string]string) string {
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))
	for k, v := range filters {
		if v != "" {
			values.Set(k, v)
		}
	}
	// Encode sorts by key.
	return taskListPrefix + ":" + identity.String() + ":" + values.Encode()
}

// TaskListPattern matches every task-list key of identity.
func TaskListPattern(identity uuid.UUID) string {
	return taskListPrefix + ":" + identity.String() + ":*"
}
