// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// Scheme prefixes every handle.
const Scheme = "blob:"

// DefaultOrigin is used when Config.Origin is empty.
const DefaultOrigin = "assetstore"

// RecordSource is the read side of the asset store the cache
// materializes handles from.
type RecordSource interface {
	Get(ctx context.Context, projectID string, id asset.ID) (*asset.Record, error)
}

// Config holds the parameters for a Cache.
type Config struct {
	// Origin is embedded in every handle. Defaults to DefaultOrigin.
	Origin string

	// Store supplies payloads on a cache miss. Required for Resolve.
	Store RecordSource

	// ProjectID scopes store lookups.
	ProjectID string

	// Logger receives debug messages. Nil discards.
	Logger *slog.Logger
}

// Blob is the in-memory payload behind a handle. Its bytes must be
// treated as read-only.
type Blob struct {
	id       asset.ID
	mime     string
	filename string
	data     []byte
}

// ID returns the asset id.
func (b *Blob) ID() asset.ID { return b.id }

// Mime returns the payload's media type.
func (b *Blob) Mime() string { return b.mime }

// Filename returns the display filename, possibly empty.
func (b *Blob) Filename() string { return b.filename }

// Bytes returns the payload. The slice is shared; do not modify it.
func (b *Blob) Bytes() []byte { return b.data }

// Size returns the payload length.
func (b *Blob) Size() int { return len(b.data) }

// Reader returns a new reader over the payload.
func (b *Blob) Reader() *bytes.Reader { return bytes.NewReader(b.data) }

type entry struct {
	handle string
	blob   *Blob
}

// Cache is the id↔handle bimap. Safe for concurrent use.
type Cache struct {
	origin    string
	prefix    string
	store     RecordSource
	projectID string
	logger    *slog.Logger

	mu       sync.Mutex
	byID     map[asset.ID]*entry
	byHandle map[string]asset.ID

	// revocations counts Revoke calls per id and epoch counts RevokeAll
	// calls. Resolve compares both across its store read so a load
	// that raced a revocation is never installed.
	revocations map[asset.ID]uint64
	epoch       uint64
}

// revocationStamp identifies the revocation state of one id.
type revocationStamp struct {
	epoch uint64
	count uint64
}

// New creates an empty Cache.
func New(config Config) *Cache {
	origin := config.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		origin:      origin,
		prefix:      Scheme + origin + "/",
		store:       config.Store,
		projectID:   config.ProjectID,
		logger:      logger,
		byID:        make(map[asset.ID]*entry),
		byHandle:    make(map[string]asset.ID),
		revocations: make(map[asset.ID]uint64),
	}
}

// Origin returns the origin embedded in this cache's handles.
func (c *Cache) Origin() string { return c.origin }

// Resolve returns the handle for id, loading the payload from the
// store on a miss. A cache hit does no I/O. A store miss returns an
// error wrapping asset.ErrNotFound. Concurrent first resolutions of
// one id all receive the same handle. A load that overlaps a Revoke of
// id is discarded and reported as not found.
func (c *Cache) Resolve(ctx context.Context, id asset.ID) (string, error) {
	c.mu.Lock()
	if cached, ok := c.byID[id]; ok {
		c.mu.Unlock()
		return cached.handle, nil
	}
	stamp := c.stampLocked(id)
	c.mu.Unlock()

	if c.store == nil {
		return "", fmt.Errorf("handle: resolve %s: no store configured: %w", id, asset.ErrNotFound)
	}
	record, err := c.store.Get(ctx, c.projectID, id)
	if err != nil {
		return "", fmt.Errorf("handle: resolve %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.byID[id]; ok {
		return cached.handle, nil
	}
	if c.stampLocked(id) != stamp {
		c.logger.Debug("discarding load that raced a revocation", "asset_id", id)
		return "", fmt.Errorf("handle: resolve %s: revoked while loading: %w", id, asset.ErrNotFound)
	}
	return c.installLocked(record), nil
}

func (c *Cache) stampLocked(id asset.ID) revocationStamp {
	return revocationStamp{epoch: c.epoch, count: c.revocations[id]}
}

// ResolveSync returns the cached handle for id without touching the
// store.
func (c *Cache) ResolveSync(id asset.ID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.byID[id]; ok {
		return cached.handle, true
	}
	return "", false
}

// Put installs a handle for a record already in memory and returns
// it. If id already has a handle, that handle is returned and record
// is ignored.
func (c *Cache) Put(record *asset.Record) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installLocked(record)
}

func (c *Cache) installLocked(record *asset.Record) string {
	if cached, ok := c.byID[record.ID]; ok {
		return cached.handle
	}
	handle := c.prefix + uuid.NewString()
	c.byID[record.ID] = &entry{
		handle: handle,
		blob: &Blob{
			id:       record.ID,
			mime:     record.Mime,
			filename: record.Filename,
			data:     record.Payload,
		},
	}
	c.byHandle[handle] = record.ID
	c.logger.Debug("handle created", "asset_id", record.ID, "handle", handle)
	return handle
}

// Lookup returns the asset id a live handle refers to.
func (c *Cache) Lookup(handle string) (asset.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byHandle[handle]
	return id, ok
}

// Open returns the payload behind a live handle. A revoked or unknown
// handle returns an error wrapping asset.ErrNotFound.
func (c *Cache) Open(handle string) (*Blob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("handle: open %s: %w", handle, asset.ErrNotFound)
	}
	return c.byID[id].blob, nil
}

// Revoke invalidates the handle for id and reports whether one
// existed. A Resolve of id already reading the store when Revoke runs
// installs nothing.
func (c *Cache) Revoke(id asset.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revocations[id]++
	cached, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	delete(c.byHandle, cached.handle)
	c.logger.Debug("handle revoked", "asset_id", id, "handle", cached.handle)
	return true
}

// RevokeAll invalidates every handle and returns how many there were.
func (c *Cache) RevokeAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := len(c.byID)
	c.byID = make(map[asset.ID]*entry)
	c.byHandle = make(map[string]asset.ID)
	c.revocations = make(map[asset.ID]uint64)
	c.epoch++
	if count > 0 {
		c.logger.Debug("all handles revoked", "count", count)
	}
	return count
}

// Len returns the number of live handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// Each calls fn for every live (id, handle) pair. It iterates a
// snapshot, so fn may call back into the cache.
func (c *Cache) Each(fn func(id asset.ID, handle string)) {
	c.mu.Lock()
	pairs := make([][2]string, 0, len(c.byID))
	for id, cached := range c.byID {
		pairs = append(pairs, [2]string{string(id), cached.handle})
	}
	c.mu.Unlock()

	for _, pair := range pairs {
		fn(asset.ID(pair[0]), pair[1])
	}
}

// IsHandle reports whether s has the shape of a handle from this
// cache's origin.
func (c *Cache) IsHandle(s string) bool {
	return strings.HasPrefix(s, c.prefix)
}
