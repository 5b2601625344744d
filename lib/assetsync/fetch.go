// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetsync

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

var errIntegrity = errors.New("downloaded bytes do not match the requested id")

type fetchOutcome struct {
	handle string
	label  string
}

// FetchMissing downloads every id in the missing set that is not
// already in flight, at most FetchConcurrency at a time. Per-id
// failures are counted, never returned, and never stop the batch.
func (r *Reconciler) FetchMissing(ctx context.Context) (FetchResult, error) {
	if r.remote == nil {
		return FetchResult{}, ErrNoRemote
	}

	var (
		result FetchResult
		mu     sync.Mutex
		group  errgroup.Group
	)
	group.SetLimit(r.concurrency)

	for _, id := range r.missing.Snapshot() {
		if _, ok := r.acquire(id); !ok {
			result.Skipped++
			continue
		}
		group.Go(func() error {
			defer r.release(id)
			outcome, err := r.fetchShared(ctx, id)
			if err != nil {
				r.logger.Warn("asset fetch failed",
					"project_id", r.projectID,
					"asset_id", id,
					"error", err,
				)
			}
			mu.Lock()
			defer mu.Unlock()
			switch outcome.label {
			case outcomeDownloaded:
				result.Downloaded++
			case outcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			return nil
		})
	}
	group.Wait()

	r.metrics.Missing.Set(float64(r.missing.Len()))
	return result, nil
}

// Request starts a background fetch of id unless one is already in
// flight, and reports whether it started one. The fetch runs on a
// context detached from any caller, bounded by FetchTimeout.
func (r *Reconciler) Request(id asset.ID) bool {
	if r.remote == nil {
		return false
	}

	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return false
	}
	if _, ok := r.acquire(id); !ok {
		r.closeMu.Unlock()
		return false
	}
	r.background.Add(1)
	r.closeMu.Unlock()

	go func() {
		defer r.background.Done()
		defer r.release(id)
		if _, err := r.fetchShared(context.Background(), id); err != nil {
			r.logger.Warn("background fetch failed",
				"project_id", r.projectID,
				"asset_id", id,
				"error", err,
			)
		}
	}()
	return true
}

// Fetch downloads id and returns its handle. If a fetch of id is
// already in flight, Fetch waits for it instead of starting another
// and reports not found when it did not produce the asset.
func (r *Reconciler) Fetch(ctx context.Context, id asset.ID) (string, error) {
	if r.remote == nil {
		return "", ErrNoRemote
	}

	done, ok := r.acquire(id)
	if ok {
		defer r.release(id)
		outcome, err := r.fetchShared(ctx, id)
		if err != nil {
			return "", err
		}
		return outcome.handle, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return "", fmt.Errorf("assetsync: fetch %s: %w", id, ctx.Err())
	}
	handle, err := r.handles.Resolve(ctx, id)
	if err != nil {
		return "", fmt.Errorf("assetsync: fetch %s: concurrent fetch did not store it: %w", id, err)
	}
	return handle, nil
}

// InFlight reports whether a fetch of id is running.
func (r *Reconciler) InFlight(id asset.ID) bool {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	_, ok := r.flights[id]
	return ok
}

// Wait blocks until every background fetch started by Request has
// finished.
func (r *Reconciler) Wait() {
	r.background.Wait()
}

// acquire marks id in flight. It is the only check-and-insert on the
// flight table and happens before any I/O for id. When id is already
// in flight it returns false and the channel that closes when that
// fetch finishes.
func (r *Reconciler) acquire(id asset.ID) (<-chan struct{}, bool) {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	if done, ok := r.flights[id]; ok {
		return done, false
	}
	r.flights[id] = make(chan struct{})
	r.metrics.InFlight.Inc()
	return nil, true
}

func (r *Reconciler) release(id asset.ID) {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	if done, ok := r.flights[id]; ok {
		delete(r.flights, id)
		close(done)
		r.metrics.InFlight.Dec()
	}
}

// fetchShared runs fetchOne for id, sharing one execution between all
// concurrent callers. The outcome is counted once per execution.
func (r *Reconciler) fetchShared(ctx context.Context, id asset.ID) (fetchOutcome, error) {
	value, err, _ := r.group.Do(string(id), func() (any, error) {
		outcome, err := r.fetchOne(ctx, id)
		r.metrics.Fetches.WithLabelValues(outcome.label).Inc()
		return outcome, err
	})
	outcome, _ := value.(fetchOutcome)
	if outcome.label == "" {
		outcome.label = outcomeFailed
	}
	return outcome, err
}

func (r *Reconciler) fetchOne(ctx context.Context, id asset.ID) (fetchOutcome, error) {
	failed := fetchOutcome{label: outcomeFailed}

	// The asset may have been imported or fetched since it was
	// reported missing.
	exists, err := r.store.Exists(ctx, r.projectID, id)
	if err != nil {
		return failed, err
	}
	if exists {
		r.missing.Remove(id)
		handle, err := r.handles.Resolve(ctx, id)
		if err != nil {
			return failed, err
		}
		r.notify(id, handle)
		return fetchOutcome{handle: handle, label: outcomeSkipped}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	download, err := r.remote.Fetch(fetchCtx, r.projectID, id)
	if err != nil {
		return failed, err
	}

	if asset.Identify(download.Payload) != id {
		return failed, fmt.Errorf("assetsync: fetch %s: %w", id, errIntegrity)
	}
	hash := asset.HashPayload(download.Payload)
	if download.Hash != "" && download.Hash != hash {
		return failed, fmt.Errorf("assetsync: fetch %s: declared hash %s: %w", id, download.Hash, errIntegrity)
	}

	record := &asset.Record{
		ID:        id,
		ProjectID: r.projectID,
		Payload:   download.Payload,
		Mime:      downloadMime(download.Mime, download.Filename, download.Payload),
		Size:      int64(len(download.Payload)),
		Hash:      hash,
		Filename:  download.Filename,
		CreatedAt: r.clock.Now().UTC(),
		Uploaded:  true,
	}
	if err := r.store.Put(ctx, record); err != nil {
		return failed, err
	}

	handle := r.handles.Put(record)
	r.missing.Remove(id)
	r.logger.Info("asset fetched",
		"project_id", r.projectID,
		"asset_id", id,
		"size", record.Size,
		"mime", record.Mime,
	)
	r.notify(id, handle)
	return fetchOutcome{handle: handle, label: outcomeDownloaded}, nil
}

func (r *Reconciler) notify(id asset.ID, handle string) {
	if r.onResolved != nil {
		r.onResolved(id, handle)
	}
}

// downloadMime normalizes the server's mime type, falling back to
// inference when it is absent or generic.
func downloadMime(declared, filename string, payload []byte) string {
	if declared != "" {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err == nil && mediaType != asset.DefaultMime {
			return mediaType
		}
	}
	return asset.InferMime(filename, payload)
}
