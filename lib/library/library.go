// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/assetdb"
	"github.com/bureau-foundation/assetstore/lib/assetsync"
	"github.com/bureau-foundation/assetstore/lib/clock"
	"github.com/bureau-foundation/assetstore/lib/handle"
	"github.com/bureau-foundation/assetstore/lib/resolve"
)

// Config holds the parameters for a Library.
type Config struct {
	// ProjectID scopes every operation. Required.
	ProjectID string

	// Store is an initialized store. Required. The library does not
	// close it; several libraries may share one store.
	Store *assetdb.Store

	// Remote is optional. Without it the library works offline:
	// unresolved references render as not-found and Sync fails with
	// assetsync.ErrNoRemote.
	Remote assetsync.Remote

	// StateDir holds the persisted missing set. Empty disables
	// persistence.
	StateDir string

	// Origin is embedded in handle URLs. Defaults to
	// handle.DefaultOrigin.
	Origin string

	// AutoFetch makes the resolver request missing assets from the
	// remote as soon as it meets them. Ignored without a Remote.
	AutoFetch bool

	// FetchTimeout and FetchConcurrency are passed to the reconciler.
	FetchTimeout     time.Duration
	FetchConcurrency int

	// OnResolved is called when a previously missing asset becomes
	// available, whether fetched or inserted locally.
	OnResolved func(id asset.ID, handle string)

	// Metrics is optional.
	Metrics *assetsync.Metrics

	// Clock stamps inserted records. Nil means the real clock.
	Clock clock.Clock

	// Logger is optional. Nil discards.
	Logger *slog.Logger
}

// Library is one project's view of the asset store. Safe for
// concurrent use.
type Library struct {
	projectID  string
	store      *assetdb.Store
	handles    *handle.Cache
	missing    *asset.IDSet
	resolver   *resolve.Resolver
	reconciler *assetsync.Reconciler
	stateDir   string
	onResolved func(asset.ID, string)
	clock      clock.Clock
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open assembles a Library and restores the missing set persisted by
// a previous session.
func Open(ctx context.Context, config Config) (*Library, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("library: ProjectID is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("library: Store is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("project_id", config.ProjectID)
	libraryClock := config.Clock
	if libraryClock == nil {
		libraryClock = clock.Real()
	}

	library := &Library{
		projectID:  config.ProjectID,
		store:      config.Store,
		missing:    asset.NewIDSet(),
		stateDir:   config.StateDir,
		onResolved: config.OnResolved,
		clock:      libraryClock,
		logger:     logger,
	}

	if err := library.loadMissing(); err != nil {
		return nil, err
	}

	library.handles = handle.New(handle.Config{
		Origin:    config.Origin,
		Store:     config.Store,
		ProjectID: config.ProjectID,
		Logger:    logger,
	})

	reconciler, err := assetsync.New(assetsync.Config{
		ProjectID:        config.ProjectID,
		Store:            config.Store,
		Handles:          library.handles,
		Missing:          library.missing,
		Remote:           config.Remote,
		Clock:            libraryClock,
		Logger:           logger,
		FetchTimeout:     config.FetchTimeout,
		FetchConcurrency: config.FetchConcurrency,
		OnResolved:       library.notify,
		Metrics:          config.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	library.reconciler = reconciler

	resolverConfig := resolve.Config{
		Handles: library.handles,
		Missing: library.missing,
		Logger:  logger,
	}
	if config.AutoFetch && config.Remote != nil {
		resolverConfig.Fetcher = reconciler
	}
	library.resolver = resolve.New(resolverConfig)

	logger.Debug("library opened",
		"missing", library.missing.Len(),
		"remote", config.Remote != nil,
	)
	return library, nil
}

// ProjectID returns the project this library serves.
func (l *Library) ProjectID() string { return l.projectID }

// Handles returns the handle cache, for serving handle URLs.
func (l *Library) Handles() *handle.Cache { return l.handles }

// Resolver returns the reference resolver.
func (l *Library) Resolver() *resolve.Resolver { return l.resolver }

// Reconciler returns the sync reconciler.
func (l *Library) Reconciler() *assetsync.Reconciler { return l.reconciler }

// Missing returns the ids referenced but not available locally.
func (l *Library) Missing() *asset.IDSet { return l.missing }

// Get returns the record for id, payload included.
func (l *Library) Get(ctx context.Context, id asset.ID) (*asset.Record, error) {
	return l.store.Get(ctx, l.projectID, id)
}

// List returns the metadata of every record in the project.
func (l *Library) List(ctx context.Context) ([]*asset.Record, error) {
	return l.store.ListByProject(ctx, l.projectID)
}

// Delete removes id and revokes its handle. Deleting a record that
// does not exist logs a warning and succeeds. The handle is revoked
// only after the delete commits, so no resolution can reinstall it.
func (l *Library) Delete(ctx context.Context, id asset.ID) error {
	deleted, err := l.store.Delete(ctx, l.projectID, id)
	if err != nil {
		return err
	}
	l.handles.Revoke(id)
	if !deleted {
		l.logger.Warn("delete of missing asset", "asset_id", id)
		return nil
	}
	l.logger.Info("asset deleted", "asset_id", id)
	return nil
}

// UpdateMetadata edits the filename and mime type of id. Concurrent
// edits resolve last-writer-wins.
func (l *Library) UpdateMetadata(ctx context.Context, id asset.ID, update assetdb.MetadataUpdate) error {
	return l.store.UpdateMetadata(ctx, l.projectID, id, update)
}

// Rename sets the filename of id.
func (l *Library) Rename(ctx context.Context, id asset.ID, filename string) error {
	return l.UpdateMetadata(ctx, id, assetdb.MetadataUpdate{Filename: &filename})
}

// ResolveText replaces asset references in text with handles, falling
// back to placeholders and scheduling fetches for missing assets.
func (l *Library) ResolveText(ctx context.Context, text string) string {
	return l.resolver.ResolveText(ctx, text)
}

// ResolveTextSync replaces references using cached handles only.
func (l *Library) ResolveTextSync(text string) string {
	return l.resolver.ResolveTextSync(text)
}

// UnresolveText restores reference tokens in place of handles and
// placeholders.
func (l *Library) UnresolveText(text string) string {
	return l.resolver.UnresolveText(text)
}

// ExtractReferences returns the distinct ids referenced in text.
func (l *Library) ExtractReferences(text string) []asset.ID {
	return l.resolver.ExtractReferences(text)
}

// Sync runs one reconcile pass against the remote.
func (l *Library) Sync(ctx context.Context) (assetsync.ReconcileResult, error) {
	return l.reconciler.Reconcile(ctx)
}

// Stats summarizes the project.
type Stats struct {
	assetdb.Stats

	// Missing is the number of referenced ids not available locally.
	Missing int

	// Handles is the number of live handles.
	Handles int
}

// String renders the stats on one line with human-readable sizes.
func (s Stats) String() string {
	return fmt.Sprintf("%d assets, %s (%s on disk), %d pending upload, %d missing",
		s.Count, asset.FormatSize(s.Bytes), asset.FormatSize(s.StoredBytes), s.Pending, s.Missing)
}

// Stats returns the project's storage and sync summary.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	stored, err := l.store.Stats(ctx, l.projectID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Stats:   stored,
		Missing: l.missing.Len(),
		Handles: l.handles.Len(),
	}, nil
}

// Close waits for background fetches, revokes every handle, and
// persists the missing set. The store stays open. Close is
// idempotent.
func (l *Library) Close() error {
	l.closeOnce.Do(func() {
		l.reconciler.Close()
		revoked := l.handles.RevokeAll()
		l.resolver.Forget()
		l.closeErr = l.saveMissing()
		l.logger.Debug("library closed", "revoked_handles", revoked)
	})
	return l.closeErr
}

// notify removes id from the missing set and forwards the event.
func (l *Library) notify(id asset.ID, handleURL string) {
	l.missing.Remove(id)
	if l.onResolved != nil {
		l.onResolved(id, handleURL)
	}
}
