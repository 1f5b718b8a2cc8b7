// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"sync/atomic"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const (
	defaultNormalizerTTL = 5 * time.Minute
	defaultFolderEntries = 4096
	defaultFolderKeyLen  = 256
)

// TransformFunc is a function that transforms K to V.
type TransformFunc[K, V any] func(K) V

// Normalizer memoizes a transform in a TTL cache holding at most maxEntries
// results. Once full, new inputs are transformed without being stored until
// entries expire.
type Normalizer[K comparable, V any] struct {
	cache      *ttlcache.Cache[K, V]
	transform  TransformFunc[K, V]
	maxEntries int64
	entries    atomic.Int64
}

// NewNormalizer returns a Normalizer. maxEntries <= 0 leaves the cache unbounded.
func NewNormalizer[K comparable, V any](ttl time.Duration, maxEntries int, transform TransformFunc[K, V]) *Normalizer[K, V] {
	n := &Normalizer[K, V]{
		transform:  transform,
		maxEntries: int64(maxEntries),
	}
	n.cache = ttlcache.New(ttlcache.Options[K, V]{}.
		SetDefaultTTL(ttl).
		SetDeallocationFunc(func(K, V, ttlcache.DeallocationReason) {
			n.entries.Add(-1)
		}))
	return n
}

// Normalize returns the transformed value.
func (n *Normalizer[K, V]) Normalize(key K) V {
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}

	transformed := n.transform(key)
	if n.maxEntries <= 0 || n.entries.Load() < n.maxEntries {
		n.entries.Add(1)
		n.cache.Set(key, transformed, ttlcache.DefaultTTL)
	}
	return transformed
}

// Clear removes a cached entry.
func (n *Normalizer[K, V]) Clear(key K) {
	n.cache.Delete(key)
}

// Len is the number of cached results.
func (n *Normalizer[K, V]) Len() int {
	return int(n.entries.Load())
}

// Folder applies Fold through a bounded cache. Titles repeat across search
// results and association passes; long fragments such as whole posts rarely
// do and are folded without caching.
type Folder struct {
	cache  *Normalizer[string, string]
	maxLen int
}

// NewFolder returns a Folder caching inputs up to maxLen bytes.
func NewFolder(ttl time.Duration, maxEntries, maxLen int) *Folder {
	return &Folder{
		cache:  NewNormalizer(ttl, maxEntries, Fold),
		maxLen: maxLen,
	}
}

// Normalize folds s.
func (f *Folder) Normalize(s string) string {
	if len(s) > f.maxLen {
		return Fold(s)
	}
	return f.cache.Normalize(s)
}

// DefaultFolder is shared by the title parser.
var DefaultFolder = NewFolder(defaultNormalizerTTL, defaultFolderEntries, defaultFolderKeyLen)
