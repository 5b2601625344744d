// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/clock"
	"github.com/bureau-foundation/assetstore/lib/remote"
)

// Defaults for Config fields left zero.
const (
	DefaultFetchTimeout     = 2 * time.Minute
	DefaultFetchConcurrency = 4
)

// ErrNoRemote is returned by sync operations on a reconciler that was
// built without a remote.
var ErrNoRemote = errors.New("assetsync: no remote configured")

// Store is the local asset store as seen by the reconciler.
type Store interface {
	Put(ctx context.Context, record *asset.Record) error
	Exists(ctx context.Context, projectID string, id asset.ID) (bool, error)
	ListByProject(ctx context.Context, projectID string) ([]*asset.Record, error)
	ListPending(ctx context.Context, projectID string) ([]*asset.Record, error)
	MarkUploaded(ctx context.Context, projectID string, ids []asset.ID) (int, error)
}

// Remote is the asset server. *remote.Client implements it.
type Remote interface {
	Upload(ctx context.Context, projectID string, records []*asset.Record) (int, error)
	List(ctx context.Context, projectID string) ([]remote.Entry, error)
	Fetch(ctx context.Context, projectID string, id asset.ID) (*remote.Download, error)
}

// Handles is the handle cache as seen by the reconciler.
type Handles interface {
	// Put installs a handle for a record already in memory.
	Put(record *asset.Record) string

	// Resolve returns the handle for a stored id.
	Resolve(ctx context.Context, id asset.ID) (string, error)
}

// Config holds the parameters for a Reconciler.
type Config struct {
	// ProjectID scopes every store and remote call. Required.
	ProjectID string

	// Store is required.
	Store Store

	// Handles is required.
	Handles Handles

	// Missing is the set of referenced-but-absent ids, shared with the
	// resolver. Nil gets a private set.
	Missing *asset.IDSet

	// Remote is optional. Without it, every sync operation returns
	// ErrNoRemote and Request never starts a fetch.
	Remote Remote

	// Clock drives Run and stamps fetched records. Nil means the real
	// clock.
	Clock clock.Clock

	// Logger receives progress and per-asset failures. Nil discards.
	Logger *slog.Logger

	// FetchTimeout bounds each download. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration

	// FetchConcurrency bounds parallel downloads in FetchMissing.
	// Defaults to DefaultFetchConcurrency.
	FetchConcurrency int

	// OnResolved is called after a previously missing asset becomes
	// available, so views holding its placeholder can refresh. It runs
	// on the fetching goroutine and must not block for long.
	OnResolved func(id asset.ID, handle string)

	// Metrics is optional.
	Metrics *Metrics
}

// UploadResult reports one UploadPending pass.
type UploadResult struct {
	Uploaded int   `json:"uploaded"`
	Failed   int   `json:"failed"`
	Bytes    int64 `json:"bytes"`
}

// FetchResult reports one FetchMissing pass.
type FetchResult struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`

	// Skipped counts ids that were already in flight, or that appeared
	// locally before the download started.
	Skipped int `json:"skipped"`
}

// ReconcileResult reports one Reconcile pass.
type ReconcileResult struct {
	// Discovered is the number of remote-only assets added to the
	// missing set.
	Discovered int `json:"discovered"`

	Upload UploadResult `json:"upload"`
	Fetch  FetchResult  `json:"fetch"`
}

// Reconciler moves assets between the local store and the remote.
// Safe for concurrent use.
type Reconciler struct {
	projectID    string
	store        Store
	handles      Handles
	missing      *asset.IDSet
	remote       Remote
	clock        clock.Clock
	logger       *slog.Logger
	fetchTimeout time.Duration
	concurrency  int
	onResolved   func(asset.ID, string)
	metrics      *Metrics

	// flights holds the ids with a fetch in flight. Each channel is
	// closed when its fetch finishes.
	flightMu sync.Mutex
	flights  map[asset.ID]chan struct{}
	group    singleflight.Group

	// uploadMu serializes UploadPending so a batch is never sent twice.
	uploadMu sync.Mutex

	closeMu    sync.Mutex
	closed     bool
	background sync.WaitGroup
}

// New creates a Reconciler.
func New(config Config) (*Reconciler, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("assetsync: ProjectID is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("assetsync: Store is required")
	}
	if config.Handles == nil {
		return nil, fmt.Errorf("assetsync: Handles is required")
	}

	missing := config.Missing
	if missing == nil {
		missing = asset.NewIDSet()
	}
	reconcilerClock := config.Clock
	if reconcilerClock == nil {
		reconcilerClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	concurrency := config.FetchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Reconciler{
		projectID:    config.ProjectID,
		store:        config.Store,
		handles:      config.Handles,
		missing:      missing,
		remote:       config.Remote,
		clock:        reconcilerClock,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		concurrency:  concurrency,
		onResolved:   config.OnResolved,
		metrics:      metrics,
		flights:      make(map[asset.ID]chan struct{}),
	}, nil
}

// Missing returns the shared missing set.
func (r *Reconciler) Missing() *asset.IDSet { return r.missing }

// HasRemote reports whether the reconciler can reach a remote.
func (r *Reconciler) HasRemote() bool { return r.remote != nil }

// UploadPending sends every local record not yet uploaded as one
// batch. On success all of them are marked uploaded; on a transport
// failure none are, and the whole batch counts as failed without an
// error being returned. Failures reading or updating the local store
// are returned.
func (r *Reconciler) UploadPending(ctx context.Context) (UploadResult, error) {
	if r.remote == nil {
		return UploadResult{}, ErrNoRemote
	}
	r.uploadMu.Lock()
	defer r.uploadMu.Unlock()

	records, err := r.store.ListPending(ctx, r.projectID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("assetsync: listing pending uploads: %w", err)
	}
	if len(records) == 0 {
		return UploadResult{}, nil
	}

	ids := make([]asset.ID, len(records))
	var bytes int64
	for i, record := range records {
		ids[i] = record.ID
		bytes += record.Size
	}

	acknowledged, err := r.remote.Upload(ctx, r.projectID, records)
	if err != nil {
		r.metrics.Uploads.WithLabelValues(outcomeFailed).Add(float64(len(records)))
		r.logger.Warn("upload batch failed",
			"project_id", r.projectID,
			"assets", len(records),
			"error", err,
		)
		return UploadResult{Failed: len(records)}, nil
	}
	if acknowledged != len(records) {
		r.logger.Warn("remote acknowledged a different batch size",
			"project_id", r.projectID,
			"sent", len(records),
			"acknowledged", acknowledged,
		)
	}

	if _, err := r.store.MarkUploaded(ctx, r.projectID, ids); err != nil {
		return UploadResult{Failed: len(records)}, fmt.Errorf("assetsync: marking uploaded: %w", err)
	}

	r.metrics.Uploads.WithLabelValues(outcomeUploaded).Add(float64(len(records)))
	r.metrics.UploadedBytes.Add(float64(bytes))
	r.logger.Info("upload batch complete",
		"project_id", r.projectID,
		"assets", len(records),
		"bytes", bytes,
	)
	return UploadResult{Uploaded: len(records), Bytes: bytes}, nil
}

// Reconcile lists the remote, adds remote-only assets to the missing
// set, uploads pending records, and fetches everything missing. A
// listing failure is logged and does not prevent the other two steps.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	if r.remote == nil {
		return ReconcileResult{}, ErrNoRemote
	}

	var result ReconcileResult
	discovered, err := r.discoverRemote(ctx)
	if err != nil {
		if !errors.Is(err, asset.ErrTransport) {
			return result, err
		}
		r.logger.Warn("remote listing failed",
			"project_id", r.projectID,
			"error", err,
		)
	}
	result.Discovered = discovered

	result.Upload, err = r.UploadPending(ctx)
	if err != nil {
		return result, err
	}
	result.Fetch, err = r.FetchMissing(ctx)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (r *Reconciler) discoverRemote(ctx context.Context) (int, error) {
	entries, err := r.remote.List(ctx, r.projectID)
	if err != nil {
		return 0, err
	}
	local, err := r.store.ListByProject(ctx, r.projectID)
	if err != nil {
		return 0, fmt.Errorf("assetsync: listing local assets: %w", err)
	}
	present := make(map[asset.ID]struct{}, len(local))
	for _, record := range local {
		present[record.ID] = struct{}{}
	}

	discovered := 0
	for _, entry := range entries {
		if !asset.ValidID(string(entry.ID)) {
			r.logger.Warn("remote listed a malformed asset id",
				"project_id", r.projectID,
				"asset_id", entry.ID,
			)
			continue
		}
		if _, ok := present[entry.ID]; ok {
			continue
		}
		if r.missing.Add(entry.ID) {
			discovered++
		}
	}
	return discovered, nil
}

// Run reconciles every interval until ctx is cancelled. Pass errors
// are logged, never fatal.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if r.remote == nil {
		return ErrNoRemote
	}
	if interval <= 0 {
		return fmt.Errorf("assetsync: run: interval must be positive, got %s", interval)
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("sync loop started",
		"project_id", r.projectID,
		"interval", interval,
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sync loop stopped", "project_id", r.projectID)
			return nil
		case <-ticker.C:
			result, err := r.Reconcile(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Error("reconcile pass failed",
					"project_id", r.projectID,
					"error", err,
				)
				continue
			}
			r.logger.Debug("reconcile pass complete",
				"project_id", r.projectID,
				"discovered", result.Discovered,
				"uploaded", result.Upload.Uploaded,
				"upload_failed", result.Upload.Failed,
				"downloaded", result.Fetch.Downloaded,
				"fetch_failed", result.Fetch.Failed,
			)
		}
	}
}

// Close stops new background fetches and waits for running ones.
func (r *Reconciler) Close() {
	r.closeMu.Lock()
	r.closed = true
	r.closeMu.Unlock()
	r.background.Wait()
}
