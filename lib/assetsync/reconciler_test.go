// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetsync_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/assetdb"
	"github.com/bureau-foundation/assetstore/lib/assetsync"
	"github.com/bureau-foundation/assetstore/lib/clock"
	"github.com/bureau-foundation/assetstore/lib/handle"
	"github.com/bureau-foundation/assetstore/lib/remote"
	"github.com/bureau-foundation/assetstore/lib/remote/mirror"
	"github.com/bureau-foundation/assetstore/lib/testutil"
)

const projectID = "p1"

var testEpoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	store      *assetdb.Store
	handles    *handle.Cache
	reconciler *assetsync.Reconciler
}

func openStore(t *testing.T, name string) *assetdb.Store {
	t.Helper()
	store := assetdb.New(assetdb.Config{
		Path:  filepath.Join(t.TempDir(), name),
		Clock: clock.Fake(testEpoch),
	})
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newHarness(t *testing.T, remoteAPI assetsync.Remote, configure func(*assetsync.Config)) *harness {
	t.Helper()
	store := openStore(t, "local.db")
	handles := handle.New(handle.Config{Store: store, ProjectID: projectID})
	config := assetsync.Config{
		ProjectID: projectID,
		Store:     store,
		Handles:   handles,
		Remote:    remoteAPI,
		Clock:     clock.Fake(testEpoch),
	}
	if configure != nil {
		configure(&config)
	}
	reconciler, err := assetsync.New(config)
	if err != nil {
		t.Fatalf("assetsync.New: %v", err)
	}
	t.Cleanup(reconciler.Close)
	return &harness{store: store, handles: handles, reconciler: reconciler}
}

// startMirror serves a fresh store over HTTP and returns a client.
func startMirror(t *testing.T) (*remote.Client, *assetdb.Store) {
	t.Helper()
	store := openStore(t, "mirror.db")
	server := httptest.NewServer(mirror.New(mirror.Config{Store: store}))
	t.Cleanup(server.Close)
	client, err := remote.NewClient(remote.Config{BaseURL: server.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, store
}

func newRecord(t *testing.T, payload []byte, filename string) *asset.Record {
	t.Helper()
	record, err := asset.NewRecord(projectID, payload, filename, "", testEpoch)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return record
}

// failingRemote fails every call with a transport error.
type failingRemote struct {
	uploads atomic.Int32
}

func (f *failingRemote) Upload(ctx context.Context, projectID string, records []*asset.Record) (int, error) {
	f.uploads.Add(1)
	return 0, asset.TransportError("remote: upload", errors.New("connection refused"))
}

func (f *failingRemote) List(ctx context.Context, projectID string) ([]remote.Entry, error) {
	return nil, asset.TransportError("remote: list", errors.New("connection refused"))
}

func (f *failingRemote) Fetch(ctx context.Context, projectID string, id asset.ID) (*remote.Download, error) {
	return nil, asset.TransportError("remote: fetch", errors.New("connection refused"))
}

// blockingRemote serves fetches from a map once release is closed.
type blockingRemote struct {
	payloads map[asset.ID][]byte
	release  chan struct{}
	fetches  atomic.Int32
}

func newBlockingRemote(payloads ...[]byte) *blockingRemote {
	b := &blockingRemote{
		payloads: make(map[asset.ID][]byte),
		release:  make(chan struct{}),
	}
	for _, payload := range payloads {
		b.payloads[asset.Identify(payload)] = payload
	}
	return b
}

func (b *blockingRemote) Upload(ctx context.Context, projectID string, records []*asset.Record) (int, error) {
	return len(records), nil
}

func (b *blockingRemote) List(ctx context.Context, projectID string) ([]remote.Entry, error) {
	return nil, nil
}

func (b *blockingRemote) Fetch(ctx context.Context, projectID string, id asset.ID) (*remote.Download, error) {
	b.fetches.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	payload, ok := b.payloads[id]
	if !ok {
		return nil, asset.TransportError("remote: fetch", fmt.Errorf("%s: %w", id, asset.ErrNotFound))
	}
	return &remote.Download{ID: id, Payload: payload, Size: int64(len(payload)), Filename: "fetched.bin"}, nil
}

// tamperingRemote returns bytes that do not hash to the requested id.
type tamperingRemote struct{ blockingRemote }

func (*tamperingRemote) Fetch(ctx context.Context, projectID string, id asset.ID) (*remote.Download, error) {
	return &remote.Download{ID: id, Payload: []byte("not what you asked for"), Size: 22}, nil
}

func TestUploadPendingTransportFailure(t *testing.T) {
	failing := &failingRemote{}
	registry := prometheus.NewRegistry()
	metrics := assetsync.NewMetrics(registry)
	h := newHarness(t, failing, func(c *assetsync.Config) { c.Metrics = metrics })
	ctx := context.Background()

	for i := range 3 {
		if err := h.store.Put(ctx, newRecord(t, testutil.Payload(uint64(i), 100), "")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	result, err := h.reconciler.UploadPending(ctx)
	if err != nil {
		t.Fatalf("UploadPending returned error for transport failure: %v", err)
	}
	if result.Uploaded != 0 || result.Failed != 3 {
		t.Errorf("result = %+v, want 0 uploaded and 3 failed", result)
	}

	pending, err := h.store.ListPending(ctx, projectID)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("pending after failed upload = %d, want 3", len(pending))
	}
	if got := promtestutil.ToFloat64(metrics.Uploads.WithLabelValues("failed")); got != 3 {
		t.Errorf("failed uploads metric = %v, want 3", got)
	}
}

func TestUploadPendingMarksUploaded(t *testing.T) {
	client, mirrorStore := startMirror(t)
	h := newHarness(t, client, nil)
	ctx := context.Background()

	records := []*asset.Record{
		newRecord(t, []byte("alpha"), "a.txt"),
		newRecord(t, testutil.Payload(1, 50000), "noise.bin"),
		newRecord(t, []byte("gamma"), "c.txt"),
	}
	var total int64
	for _, record := range records {
		total += record.Size
		if err := h.store.Put(ctx, record); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	result, err := h.reconciler.UploadPending(ctx)
	if err != nil {
		t.Fatalf("UploadPending: %v", err)
	}
	if result.Uploaded != 3 || result.Failed != 0 || result.Bytes != total {
		t.Errorf("result = %+v, want 3 uploaded and %d bytes", result, total)
	}

	for _, record := range records {
		local, err := h.store.Get(ctx, projectID, record.ID)
		if err != nil {
			t.Fatalf("local Get: %v", err)
		}
		if !local.Uploaded {
			t.Errorf("%s not marked uploaded", record.ID)
		}
		remoteCopy, err := mirrorStore.Get(ctx, projectID, record.ID)
		if err != nil {
			t.Fatalf("mirror Get %s: %v", record.ID, err)
		}
		if !bytes.Equal(remoteCopy.Payload, record.Payload) {
			t.Errorf("mirror payload for %s differs", record.ID)
		}
	}

	again, err := h.reconciler.UploadPending(ctx)
	if err != nil {
		t.Fatalf("second UploadPending: %v", err)
	}
	if again.Uploaded != 0 {
		t.Errorf("second pass uploaded %d, want 0", again.Uploaded)
	}
}

func TestRequestStartsOneFetch(t *testing.T) {
	payload := []byte("shared diagram")
	id := asset.Identify(payload)
	blocking := newBlockingRemote(payload)

	var resolvedCount atomic.Int32
	h := newHarness(t, blocking, func(c *assetsync.Config) {
		c.OnResolved = func(asset.ID, string) { resolvedCount.Add(1) }
	})
	h.reconciler.Missing().Add(id)

	start := make(chan struct{})
	var started atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if h.reconciler.Request(id) {
				started.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := started.Load(); got != 1 {
		t.Fatalf("Request started %d fetches, want 1", got)
	}
	if !h.reconciler.InFlight(id) {
		t.Error("InFlight = false while the fetch is blocked")
	}

	close(blocking.release)
	h.reconciler.Wait()

	if got := blocking.fetches.Load(); got != 1 {
		t.Errorf("remote saw %d fetches, want 1", got)
	}
	if h.reconciler.InFlight(id) {
		t.Error("InFlight = true after the fetch finished")
	}
	if h.reconciler.Missing().Contains(id) {
		t.Error("id still in the missing set")
	}
	if got := resolvedCount.Load(); got != 1 {
		t.Errorf("OnResolved called %d times, want 1", got)
	}
	if _, ok := h.handles.ResolveSync(id); !ok {
		t.Error("no handle installed for the fetched asset")
	}

	stored, err := h.store.Get(context.Background(), projectID, id)
	if err != nil {
		t.Fatalf("Get fetched record: %v", err)
	}
	if !stored.Uploaded {
		t.Error("fetched record not marked uploaded")
	}
	if stored.Filename != "fetched.bin" {
		t.Errorf("Filename = %q, want fetched.bin", stored.Filename)
	}
}

func TestFetchJoinsBackgroundFetch(t *testing.T) {
	payload := []byte("joined payload")
	id := asset.Identify(payload)
	blocking := newBlockingRemote(payload)
	metrics := assetsync.NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, blocking, func(c *assetsync.Config) { c.Metrics = metrics })

	if !h.reconciler.Request(id) {
		t.Fatal("Request did not start a fetch")
	}

	handles := make(chan string, 2)
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			handleURL, err := h.reconciler.Fetch(context.Background(), id)
			if err != nil {
				errs <- err
				return
			}
			handles <- handleURL
		}()
	}

	close(blocking.release)
	var got []string
	for range 2 {
		select {
		case handleURL := <-handles:
			got = append(got, handleURL)
		case err := <-errs:
			t.Fatalf("Fetch: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for Fetch")
		}
	}
	h.reconciler.Wait()

	if got[0] != got[1] {
		t.Errorf("joined fetches returned different handles: %q and %q", got[0], got[1])
	}
	if fetches := blocking.fetches.Load(); fetches != 1 {
		t.Errorf("remote saw %d fetches, want 1", fetches)
	}
	if got := promtestutil.ToFloat64(metrics.Fetches.WithLabelValues("downloaded")); got != 1 {
		t.Errorf("downloaded fetches counted %v times, want 1", got)
	}
}

func TestFetchWaitsForInFlightFetch(t *testing.T) {
	id := asset.Identify([]byte("the remote never had this"))
	blocking := newBlockingRemote()
	metrics := assetsync.NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, blocking, func(c *assetsync.Config) { c.Metrics = metrics })

	if !h.reconciler.Request(id) {
		t.Fatal("Request did not start a fetch")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := h.reconciler.Fetch(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch during an in-flight fetch: err = %v, want DeadlineExceeded", err)
	}

	close(blocking.release)
	h.reconciler.Wait()

	if fetches := blocking.fetches.Load(); fetches != 1 {
		t.Errorf("remote saw %d fetches, want 1", fetches)
	}
	if got := promtestutil.ToFloat64(metrics.Fetches.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed fetches counted %v times, want 1", got)
	}
	if h.reconciler.InFlight(id) {
		t.Error("InFlight = true after the failed fetch finished")
	}
}

func TestFetchRejectsMismatchedPayload(t *testing.T) {
	h := newHarness(t, &tamperingRemote{}, nil)
	id := asset.Identify([]byte("expected bytes"))
	h.reconciler.Missing().Add(id)

	if _, err := h.reconciler.Fetch(context.Background(), id); err == nil {
		t.Fatal("Fetch accepted bytes that do not match the id")
	}
	exists, err := h.store.Exists(context.Background(), projectID, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("mismatched payload was stored")
	}
	if !h.reconciler.Missing().Contains(id) {
		t.Error("id removed from the missing set after a rejected fetch")
	}
	if h.reconciler.InFlight(id) {
		t.Error("id still in flight after a rejected fetch")
	}
}

func TestFetchMissingDownloads(t *testing.T) {
	client, mirrorStore := startMirror(t)
	h := newHarness(t, client, nil)
	ctx := context.Background()

	var ids []asset.ID
	for i := range 5 {
		record := newRecord(t, testutil.Payload(uint64(10+i), 2000), fmt.Sprintf("f%d.bin", i))
		if err := mirrorStore.Put(ctx, record); err != nil {
			t.Fatalf("mirror Put: %v", err)
		}
		ids = append(ids, record.ID)
		h.reconciler.Missing().Add(record.ID)
	}
	absent := asset.Identify([]byte("nobody has this"))
	h.reconciler.Missing().Add(absent)

	result, err := h.reconciler.FetchMissing(ctx)
	if err != nil {
		t.Fatalf("FetchMissing: %v", err)
	}
	if result.Downloaded != 5 || result.Failed != 1 {
		t.Errorf("result = %+v, want 5 downloaded and 1 failed", result)
	}
	for _, id := range ids {
		if _, err := h.store.Get(ctx, projectID, id); err != nil {
			t.Errorf("local Get %s: %v", id, err)
		}
	}
	if snapshot := h.reconciler.Missing().Snapshot(); len(snapshot) != 1 || snapshot[0] != absent {
		t.Errorf("missing set = %v, want only %s", snapshot, absent)
	}
}

func TestFetchSkipsLocalAsset(t *testing.T) {
	failing := &failingRemote{}
	h := newHarness(t, failing, nil)
	ctx := context.Background()

	record := newRecord(t, []byte("imported meanwhile"), "late.txt")
	if err := h.store.Put(ctx, record); err != nil {
		t.Fatalf("Put: %v", err)
	}
	h.reconciler.Missing().Add(record.ID)

	result, err := h.reconciler.FetchMissing(ctx)
	if err != nil {
		t.Fatalf("FetchMissing: %v", err)
	}
	if result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
	if h.reconciler.Missing().Contains(record.ID) {
		t.Error("locally present id left in the missing set")
	}
}

func TestReconcileDiscoversRemoteAssets(t *testing.T) {
	client, mirrorStore := startMirror(t)
	h := newHarness(t, client, nil)
	ctx := context.Background()

	for i := range 2 {
		if err := mirrorStore.Put(ctx, newRecord(t, testutil.Payload(uint64(20+i), 300), "")); err != nil {
			t.Fatalf("mirror Put: %v", err)
		}
	}
	local := newRecord(t, []byte("only here"), "local.txt")
	if err := h.store.Put(ctx, local); err != nil {
		t.Fatalf("Put: %v", err)
	}

	result, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Discovered != 2 {
		t.Errorf("Discovered = %d, want 2", result.Discovered)
	}
	if result.Upload.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", result.Upload.Uploaded)
	}
	if result.Fetch.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", result.Fetch.Downloaded)
	}

	localRecords, err := h.store.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(localRecords) != 3 {
		t.Errorf("local store holds %d records, want 3", len(localRecords))
	}
	if _, err := mirrorStore.Get(ctx, projectID, local.ID); err != nil {
		t.Errorf("mirror Get uploaded record: %v", err)
	}
}

func TestReconcileSurvivesListFailure(t *testing.T) {
	h := newHarness(t, &failingRemote{}, nil)
	if err := h.store.Put(context.Background(), newRecord(t, []byte("queued"), "")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	result, err := h.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Upload.Failed != 1 {
		t.Errorf("Upload.Failed = %d, want 1", result.Upload.Failed)
	}
}

func TestRunReconcilesOnTick(t *testing.T) {
	client, mirrorStore := startMirror(t)
	fake := clock.Fake(testEpoch)
	resolved := make(chan asset.ID, 1)
	h := newHarness(t, client, func(c *assetsync.Config) {
		c.Clock = fake
		c.OnResolved = func(id asset.ID, _ string) { resolved <- id }
	})

	record := newRecord(t, []byte("arrives on the next tick"), "tick.txt")
	if err := mirrorStore.Put(context.Background(), record); err != nil {
		t.Fatalf("mirror Put: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.reconciler.Run(ctx, time.Minute) }()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	if got := testutil.RequireReceive(t, resolved, 5*time.Second, "waiting for reconcile pass"); got != record.ID {
		t.Errorf("resolved %s, want %s", got, record.ID)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run to return"); err != nil {
		t.Errorf("Run returned %v after cancellation", err)
	}
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t, newBlockingRemote(), nil)
	for _, interval := range []time.Duration{0, -time.Second} {
		if err := h.reconciler.Run(context.Background(), interval); err == nil {
			t.Errorf("Run(%s) returned nil, want an error", interval)
		}
	}
}

func TestOfflineReconciler(t *testing.T) {
	h := newHarness(t, nil, nil)
	id := asset.Identify([]byte("offline"))

	if h.reconciler.Request(id) {
		t.Error("Request started a fetch without a remote")
	}
	if h.reconciler.InFlight(id) {
		t.Error("InFlight = true without a remote")
	}
	if _, err := h.reconciler.UploadPending(context.Background()); !errors.Is(err, assetsync.ErrNoRemote) {
		t.Errorf("UploadPending error = %v, want ErrNoRemote", err)
	}
	if _, err := h.reconciler.FetchMissing(context.Background()); !errors.Is(err, assetsync.ErrNoRemote) {
		t.Errorf("FetchMissing error = %v, want ErrNoRemote", err)
	}
}

func TestRequestAfterClose(t *testing.T) {
	payload := []byte("too late")
	blocking := newBlockingRemote(payload)
	close(blocking.release)
	h := newHarness(t, blocking, nil)

	h.reconciler.Close()
	if h.reconciler.Request(asset.Identify(payload)) {
		t.Error("Request started a fetch after Close")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	store := openStore(t, "v.db")
	handles := handle.New(handle.Config{Store: store, ProjectID: projectID})
	cases := map[string]assetsync.Config{
		"missing project": {Store: store, Handles: handles},
		"missing store":   {ProjectID: projectID, Handles: handles},
		"missing handles": {ProjectID: projectID, Store: store},
	}
	for name, config := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := assetsync.New(config); err == nil {
				t.Error("New accepted an incomplete config")
			}
		})
	}
}
