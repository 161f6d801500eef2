// Package cache stores rendered API payloads by namespace so that writes can
// invalidate every cached view derived from the data they change.
package cache

import (
	"context"
	"net/url"
)

// Namespaces used by the HTTP layer.
const (
	NamespaceLedger    = "ledger"
	NamespaceRollover  = "rollover"
	NamespaceAnalytics = "analytics"
)

// Cache is a namespaced byte cache. Get reports a miss with ok == false and a nil error.
//
// Generation changes whenever namespace is invalidated by DeleteNamespace or Clear.
// Callers that compute a value before storing it read the generation first and
// put it in the key, so a value computed from data older than the latest
// invalidation is stored under a key no later reader asks for.
type Cache interface {
	Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Generation(ctx context.Context, namespace string) (string, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Clear(ctx context.Context) error
}

// VersionedKey prefixes key with a namespace generation.
func VersionedKey(generation, key string) string {
	return "g" + generation + "|" + key
}

// KeyFromQuery derives a stable cache key from a path and its query parameters.
func KeyFromQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	// Encode sorts by key.
	return path + "?" + q.Encode()
}

// Noop is a Cache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, string, []byte) error { return nil }
func (Noop) Generation(context.Context, string) (string, error) { return "0", nil }
func (Noop) DeleteNamespace(context.Context, string) error { return nil }
func (Noop) Clear(context.Context) error { return nil }
