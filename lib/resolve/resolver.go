// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// Handles is the handle cache as seen by the resolver.
type Handles interface {
	// Resolve returns the handle for id, consulting the store on a
	// cache miss. A store miss wraps asset.ErrNotFound.
	Resolve(ctx context.Context, id asset.ID) (string, error)

	// ResolveSync returns the cached handle for id without I/O.
	ResolveSync(id asset.ID) (string, bool)

	// Each calls fn for every live (id, handle) pair.
	Each(fn func(id asset.ID, handle string))
}

// Fetcher schedules background downloads of missing assets.
type Fetcher interface {
	// Request starts a background fetch of id unless one is already
	// in flight, and reports whether it started one.
	Request(id asset.ID) bool

	// InFlight reports whether a fetch of id is running.
	InFlight(id asset.ID) bool
}

// ResolveOptions controls ResolveTextWith.
type ResolveOptions struct {
	// UsePlaceholder substitutes a placeholder image for tokens that
	// cannot be resolved. When false, such tokens are left as written.
	UsePlaceholder bool

	// AddTracking records unresolved ids in the missing set and asks
	// the fetcher to download them. When false, resolution has no side
	// effects beyond the handle cache.
	AddTracking bool
}

// DefaultResolveOptions returns the options ResolveText uses: both
// placeholders and tracking enabled.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{UsePlaceholder: true, AddTracking: true}
}

// Config holds the parameters for a Resolver.
type Config struct {
	// Handles is required.
	Handles Handles

	// Missing receives unresolved ids. Nil gets a private set.
	Missing *asset.IDSet

	// Fetcher is optional. Without one, unresolved ids render as
	// not-found instead of loading.
	Fetcher Fetcher

	// Logger receives warnings about failed lookups. Nil discards.
	Logger *slog.Logger
}

// Resolver converts between reference tokens and handles. Safe for
// concurrent use.
type Resolver struct {
	handles Handles
	missing *asset.IDSet
	fetcher Fetcher
	logger  *slog.Logger

	// emitted maps every handle and placeholder this resolver wrote
	// into text back to the token it replaced, display name included.
	// It also covers handles revoked since resolution.
	mu      sync.Mutex
	emitted map[string]string
}

// New creates a Resolver.
func New(config Config) *Resolver {
	missing := config.Missing
	if missing == nil {
		missing = asset.NewIDSet()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		handles: config.Handles,
		missing: missing,
		fetcher: config.Fetcher,
		logger:  logger,
		emitted: make(map[string]string),
	}
}

// Missing returns the set of referenced ids not available locally.
func (r *Resolver) Missing() *asset.IDSet { return r.missing }

// ResolveText is ResolveTextWith using DefaultResolveOptions.
func (r *Resolver) ResolveText(ctx context.Context, text string) string {
	return r.ResolveTextWith(ctx, text, DefaultResolveOptions())
}

// ResolveTextWith replaces every token in text with a handle. Each
// distinct id is looked up once; all of its occurrences receive the
// same substitute.
func (r *Resolver) ResolveTextWith(ctx context.Context, text string, options ResolveOptions) string {
	substitutes := make(map[asset.ID]string)
	return asset.ReplaceReferences(text, func(reference asset.Reference) (string, bool) {
		if substitute, done := substitutes[reference.ID]; done {
			return substitute, substitute != ""
		}
		substitute := r.resolveOne(ctx, reference, options)
		substitutes[reference.ID] = substitute
		return substitute, substitute != ""
	})
}

// resolveOne returns the substitute for one token, or "" to leave the
// token in place.
func (r *Resolver) resolveOne(ctx context.Context, reference asset.Reference, options ResolveOptions) string {
	token := asset.FormatReference(reference.ID, reference.DisplayName)

	handle, err := r.handles.Resolve(ctx, reference.ID)
	if err == nil {
		r.remember(handle, token)
		return handle
	}

	var status asset.Status
	switch {
	case !errors.Is(err, asset.ErrNotFound):
		r.logger.Warn("asset lookup failed",
			"asset_id", reference.ID,
			"error", err,
		)
		status = asset.StatusError
	case options.AddTracking:
		r.missing.Add(reference.ID)
		status = asset.StatusNotFound
		if r.fetcher != nil {
			r.fetcher.Request(reference.ID)
			status = asset.StatusLoading
		}
	default:
		status = r.missStatus(reference.ID)
	}

	if !options.UsePlaceholder {
		return ""
	}
	return r.placeholder(reference, token, status)
}

// ResolveTextSync replaces tokens using only cached handles. Misses
// become placeholders and are added to the missing set; no store or
// network access happens and no fetch is started.
func (r *Resolver) ResolveTextSync(text string) string {
	substitutes := make(map[asset.ID]string)
	return asset.ReplaceReferences(text, func(reference asset.Reference) (string, bool) {
		if substitute, done := substitutes[reference.ID]; done {
			return substitute, true
		}
		token := asset.FormatReference(reference.ID, reference.DisplayName)

		substitute, ok := r.handles.ResolveSync(reference.ID)
		if ok {
			r.remember(substitute, token)
		} else {
			r.missing.Add(reference.ID)
			substitute = r.placeholder(reference, token, r.missStatus(reference.ID))
		}
		substitutes[reference.ID] = substitute
		return substitute, true
	})
}

// UnresolveText rewrites every handle and placeholder back into its
// reference token.
func (r *Resolver) UnresolveText(text string) string {
	if !strings.Contains(text, "blob:") && !strings.Contains(text, asset.PlaceholderPrefix) {
		return text
	}

	replacements := make(map[string]string)
	r.handles.Each(func(id asset.ID, handle string) {
		replacements[handle] = asset.FormatReference(id, "")
	})
	for placeholder, id := range asset.FindPlaceholders(text) {
		replacements[placeholder] = asset.FormatReference(id, "")
	}
	r.mu.Lock()
	for emitted, token := range r.emitted {
		replacements[emitted] = token
	}
	r.mu.Unlock()

	pairs := make([]string, 0, 2*len(replacements))
	for emitted, token := range replacements {
		if strings.Contains(text, emitted) {
			pairs = append(pairs, emitted, token)
		}
	}
	if len(pairs) == 0 {
		return text
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ExtractReferences returns the distinct ids referenced in text, in
// order of first appearance.
func (r *Resolver) ExtractReferences(text string) []asset.ID {
	return asset.ExtractReferences(text)
}

// Forget drops the resolver's memory of emitted handles and
// placeholders. Call it after persisting unresolved text when the
// rendered copies are discarded.
func (r *Resolver) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = make(map[string]string)
}

func (r *Resolver) missStatus(id asset.ID) asset.Status {
	if r.fetcher != nil && r.fetcher.InFlight(id) {
		return asset.StatusLoading
	}
	return asset.StatusNotFound
}

func (r *Resolver) placeholder(reference asset.Reference, token string, status asset.Status) string {
	caption := reference.DisplayName
	if caption == "" {
		caption = string(reference.ID)
	}
	placeholder := asset.Placeholder(reference.ID, status, caption)
	r.remember(placeholder, token)
	return placeholder
}

func (r *Resolver) remember(emitted, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted[emitted] = token
}
