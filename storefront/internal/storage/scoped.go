package storage

import (
	"context"
	"strings"
)

// Scoped confines a Store to one session, the way browser storage is confined
// to one origin. Keys seen by callers never include the namespace.
type Scoped struct {
	inner     Store
	namespace string
}

func NewScoped(inner Store, sessionID string) *Scoped {
	return &Scoped{inner: inner, namespace: "session:" + sessionID + ":"}
}

func (s *Scoped) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.namespace+key)
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.namespace+key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.namespace+key)
}

func (s *Scoped) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, s.namespace+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.namespace))
	}
	return out, nil
}
