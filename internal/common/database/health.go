package database

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Pinger is anything with a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency with a shared deadline and returns the
// failures keyed by name. An empty map means everything answered.
func CheckAll(ctx context.Context, timeout time.Duration, deps map[string]Pinger) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failed := map[string]error{}
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Summary renders failures as "name: error" pairs in name order.
func Summary(failed map[string]error) string {
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + failed[name].Error()
	}
	return strings.Join(parts, "; ")
}
