// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/assetdb"
	"github.com/bureau-foundation/assetstore/lib/cli"
	"github.com/bureau-foundation/assetstore/lib/config"
	"github.com/bureau-foundation/assetstore/lib/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeConfig writes a development config rooted in a fresh temp
// directory. An empty baseURL leaves the store offline.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	root := t.TempDir()
	content := fmt.Sprintf(`environment: development
paths:
  root: %[1]s
  database: %[1]s/assets.db
  state: %[1]s/state
remote:
  base_url: %[2]q
sync:
  fetch_timeout: 10s
`, root, baseURL)
	path := filepath.Join(root, "assetstore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// execute runs the command line with stdin and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	a := newApp(strings.NewReader(stdin), &stdout, slog.New(slog.DiscardHandler))
	root := a.root()
	root.Output = io.Discard
	err := root.Execute(context.Background(), args)
	return stdout.String(), err
}

func mustExecute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	output, err := execute(t, stdin, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return output
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func putJSON(t *testing.T, configPath, project string, files ...string) []putResult {
	t.Helper()
	args := append([]string{"put", "--config", configPath, "-p", project, "--json"}, files...)
	var results []putResult
	if err := json.Unmarshal([]byte(mustExecute(t, "", args...)), &results); err != nil {
		t.Fatalf("decoding put output: %v", err)
	}
	return results
}

func TestPutListGet(t *testing.T) {
	configPath := writeConfig(t, "")
	dir := t.TempDir()
	photo := writeFile(t, dir, "photo.jpg", []byte("\xff\xd8\xff\xe0 not really a jpeg"))
	notes := writeFile(t, dir, "notes.txt", []byte("plain notes"))

	results := putJSON(t, configPath, "lesson", photo, notes)
	if len(results) != 2 {
		t.Fatalf("put returned %d results, want 2", len(results))
	}
	if want := asset.Identify([]byte("plain notes")); results[1].ID != want {
		t.Errorf("notes id = %s, want %s", results[1].ID, want)
	}
	if want := "asset://" + string(results[0].ID) + "/photo.jpg"; results[0].Reference != want {
		t.Errorf("reference = %q, want %q", results[0].Reference, want)
	}

	var entries []listEntry
	listed := mustExecute(t, "", "list", "--config", configPath, "-p", "lesson", "--json")
	if err := json.Unmarshal([]byte(listed), &entries); err != nil {
		t.Fatalf("decoding list output: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("list returned %d entries, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.Uploaded {
			t.Errorf("%s is marked uploaded in an offline store", entry.ID)
		}
	}

	pending := mustExecute(t, "", "list", "--config", configPath, "-p", "lesson", "--pending")
	if !strings.Contains(pending, "notes.txt") || !strings.Contains(pending, "NAME") {
		t.Errorf("list --pending output missing the table:\n%s", pending)
	}

	// A reference token is accepted wherever an id is.
	output := mustExecute(t, "", "get", "--config", configPath, "-p", "lesson", results[1].Reference)
	if output != "plain notes" {
		t.Errorf("get = %q, want %q", output, "plain notes")
	}

	target := filepath.Join(dir, "copy.jpg")
	mustExecute(t, "", "get", "--config", configPath, "-p", "lesson", "-o", target, string(results[0].ID))
	copied, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(copied) != "\xff\xd8\xff\xe0 not really a jpeg" {
		t.Error("get -o wrote different bytes")
	}

	empty := mustExecute(t, "", "list", "--config", configPath, "-p", "other")
	if strings.TrimSpace(empty) != "no assets" {
		t.Errorf("other project list = %q, want %q", empty, "no assets")
	}
}

func TestPutDeduplicatesContent(t *testing.T) {
	configPath := writeConfig(t, "")
	dir := t.TempDir()
	first := writeFile(t, dir, "a.bin", []byte("same bytes"))
	second := writeFile(t, dir, "b.bin", []byte("same bytes"))

	results := putJSON(t, configPath, "p", first, second)
	if results[0].ID != results[1].ID {
		t.Errorf("identical content got ids %s and %s", results[0].ID, results[1].ID)
	}
	// The first filename stays with the record.
	if !strings.HasSuffix(results[1].Reference, "/a.bin") {
		t.Errorf("second reference = %q, want the existing a.bin name", results[1].Reference)
	}
}

func TestPutNameRequiresSingleFile(t *testing.T) {
	configPath := writeConfig(t, "")
	dir := t.TempDir()
	first := writeFile(t, dir, "a.txt", []byte("a"))
	second := writeFile(t, dir, "b.txt", []byte("b"))

	if _, err := execute(t, "", "put", "--config", configPath, "--name", "x.txt", first, second); err == nil {
		t.Error("put --name with two files succeeded")
	}
}

func TestRenameAndRemove(t *testing.T) {
	configPath := writeConfig(t, "")
	file := writeFile(t, t.TempDir(), "draft.png", []byte("\x89PNG\r\n\x1a\n draft"))
	id := putJSON(t, configPath, "p", file)[0].ID

	mustExecute(t, "", "rename", "--config", configPath, "-p", "p", string(id), "final.png")
	listed := mustExecute(t, "", "list", "--config", configPath, "-p", "p")
	if !strings.Contains(listed, "final.png") {
		t.Errorf("list after rename:\n%s", listed)
	}

	mustExecute(t, "", "rm", "--config", configPath, "-p", "p", string(id))
	// Removing an absent id succeeds.
	mustExecute(t, "", "rm", "--config", configPath, "-p", "p", string(id))

	_, err := execute(t, "", "get", "--config", configPath, "-p", "p", string(id))
	if !errors.Is(err, asset.ErrNotFound) {
		t.Errorf("get after rm: err = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	configPath := writeConfig(t, "")
	file := writeFile(t, t.TempDir(), "photo.jpg", []byte("\xff\xd8\xff\xe0 photo"))
	stored := putJSON(t, configPath, "p", file)[0]
	absent := asset.Identify([]byte("never stored"))

	document := fmt.Sprintf(`<img src="%s"><img src="asset://%s/gone.png">`, stored.Reference, absent)

	ids := mustExecute(t, document, "resolve", "--config", configPath, "-p", "p", "--references")
	if want := string(stored.ID) + "\n" + string(absent) + "\n"; ids != want {
		t.Errorf("resolve --references = %q, want %q", ids, want)
	}

	resolved := mustExecute(t, document, "resolve", "--config", configPath, "-p", "p")
	if strings.Contains(resolved, "asset://") {
		t.Errorf("resolved text still has tokens: %s", resolved)
	}
	if !strings.Contains(resolved, `src="blob:assetstore/`) {
		t.Errorf("stored asset was not resolved to a handle: %s", resolved)
	}
	if !strings.Contains(resolved, asset.PlaceholderPrefix) {
		t.Errorf("missing asset was not replaced by a placeholder: %s", resolved)
	}

	// Handles die with the process; the placeholder still maps back.
	restored := mustExecute(t, resolved, "resolve", "--config", configPath, "-p", "p", "--unresolve")
	if !strings.Contains(restored, "asset://"+string(absent)) {
		t.Errorf("unresolve did not restore the placeholder token: %s", restored)
	}

	// Sync resolution never loads from the store, so nothing is cached
	// in a fresh process.
	synced := mustExecute(t, document, "resolve", "--config", configPath, "-p", "p", "--sync")
	if strings.Contains(synced, "blob:") {
		t.Errorf("resolve --sync produced a handle in a fresh process: %s", synced)
	}

	if _, err := execute(t, "", "resolve", "--config", configPath, "--unresolve", "--wait"); err == nil {
		t.Error("resolve --unresolve --wait succeeded")
	}
}

func TestImportManifest(t *testing.T) {
	configPath := writeConfig(t, "")
	dir := t.TempDir()
	writeFile(t, dir, "media/img/cover.png", []byte("\x89PNG\r\n\x1a\n cover"))
	writeFile(t, dir, "media/captions.vtt", []byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhello\n"))
	writeFile(t, dir, "media/copy.png", []byte("\x89PNG\r\n\x1a\n cover"))
	manifestPath := writeFile(t, dir, "package.jsonc", []byte(`{
  // Paths are relative to root.
  "root": "media",
  "files": [
    {"path": "img/cover.png"},
    {"path": "captions.vtt", "mime": "text/vtt"},
    {"path": "copy.png"}, // same bytes as the cover
  ],
}`))

	output := mustExecute(t, "", "import", "--config", configPath, "-p", "course", manifestPath)
	var ids map[string]asset.ID
	if err := json.Unmarshal([]byte(output), &ids); err != nil {
		t.Fatalf("decoding import output %q: %v", output, err)
	}
	if len(ids) != 3 {
		t.Fatalf("import mapped %d paths, want 3: %v", len(ids), ids)
	}
	if ids["img/cover.png"] != ids["copy.png"] {
		t.Error("identical files imported under different ids")
	}

	var entries []listEntry
	listed := mustExecute(t, "", "list", "--config", configPath, "-p", "course", "--json")
	if err := json.Unmarshal([]byte(listed), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("stored %d records, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.ID == ids["captions.vtt"] && entry.Mime != "text/vtt" {
			t.Errorf("captions mime = %q, want text/vtt", entry.Mime)
		}
		if entry.ID == ids["img/cover.png"] && entry.OriginalPath != "img/cover.png" {
			t.Errorf("cover original path = %q", entry.OriginalPath)
		}
	}
}

func TestImportRejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "secret.txt", []byte("outside"))
	manifestPath := writeFile(t, dir, "pkg/manifest.jsonc", []byte(`{"files": [{"path": "../secret.txt"}]}`))

	if _, err := readManifest(manifestPath); err == nil {
		t.Error("manifest with ../ path was accepted")
	}
}

// startMirror serves a store through the mirror handler.
func startMirror(t *testing.T) (*httptest.Server, *assetdb.Store) {
	t.Helper()
	store := assetdb.New(assetdb.Config{Path: filepath.Join(t.TempDir(), "mirror.db")})
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	server := httptest.NewServer(mirrorHandler(store, nil))
	t.Cleanup(server.Close)
	return server, store
}

func TestSyncThroughMirror(t *testing.T) {
	server, mirrorStore := startMirror(t)
	author := writeConfig(t, server.URL)
	reader := writeConfig(t, server.URL)

	payload := testutil.Payload(7, 50000)
	file := writeFile(t, t.TempDir(), "noise.bin", payload)
	id := putJSON(t, author, "shared", file)[0].ID

	var result struct {
		Upload struct {
			Uploaded int `json:"uploaded"`
		} `json:"upload"`
		Fetch struct {
			Downloaded int `json:"downloaded"`
		} `json:"fetch"`
		Discovered int `json:"discovered"`
	}
	output := mustExecute(t, "", "sync", "--config", author, "-p", "shared", "--json")
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decoding sync output %q: %v", output, err)
	}
	if result.Upload.Uploaded != 1 {
		t.Errorf("uploaded = %d, want 1", result.Upload.Uploaded)
	}
	if exists, _ := mirrorStore.Exists(context.Background(), "shared", id); !exists {
		t.Fatal("mirror does not hold the uploaded asset")
	}

	output = mustExecute(t, "", "sync", "--config", reader, "-p", "shared", "--json")
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decoding sync output %q: %v", output, err)
	}
	if result.Discovered != 1 || result.Fetch.Downloaded != 1 {
		t.Errorf("reader sync discovered %d downloaded %d, want 1 and 1", result.Discovered, result.Fetch.Downloaded)
	}

	fetched := mustExecute(t, "", "get", "--config", reader, "-p", "shared", string(id))
	if !bytes.Equal([]byte(fetched), payload) {
		t.Error("reader holds different bytes after sync")
	}

	pending := mustExecute(t, "", "list", "--config", author, "-p", "shared", "--pending", "--json")
	if strings.TrimSpace(pending) != "[]" {
		t.Errorf("author still has pending assets after sync: %s", pending)
	}
}

func TestSyncWithoutRemote(t *testing.T) {
	configPath := writeConfig(t, "")
	_, err := execute(t, "", "sync", "--config", configPath)
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("sync without remote: err = %v, want base_url error", err)
	}
}

func TestSyncReportsUploadFailure(t *testing.T) {
	server, _ := startMirror(t)
	configPath := writeConfig(t, server.URL)
	file := writeFile(t, t.TempDir(), "a.txt", []byte("stays pending"))
	putJSON(t, configPath, "p", file)
	server.Close()

	output, err := execute(t, "", "sync", "--config", configPath, "-p", "p")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("sync against a dead remote: err = %v, want exit code 2", err)
	}
	if !strings.Contains(output, "uploaded 0 (1 failed)") {
		t.Errorf("sync output = %q", output)
	}
}

func TestStatsAcrossProjects(t *testing.T) {
	configPath := writeConfig(t, "")
	dir := t.TempDir()
	putJSON(t, configPath, "alpha", writeFile(t, dir, "a.txt", []byte("alpha asset")))
	putJSON(t, configPath, "beta", writeFile(t, dir, "b.txt", []byte("beta asset")), writeFile(t, dir, "c.txt", []byte("another")))

	var all []projectStats
	output := mustExecute(t, "", "stats", "--config", configPath, "--all", "--json")
	if err := json.Unmarshal([]byte(output), &all); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	counts := make(map[string]int64)
	for _, stats := range all {
		counts[stats.ProjectID] = stats.Count
	}
	if counts["alpha"] != 1 || counts["beta"] != 2 {
		t.Errorf("per-project counts = %v, want alpha:1 beta:2", counts)
	}

	single := mustExecute(t, "", "stats", "--config", configPath, "-p", "beta")
	if !strings.HasPrefix(single, "beta: 2 assets") {
		t.Errorf("stats = %q", single)
	}
}

func TestMirrorHandlerServesMetrics(t *testing.T) {
	server, _ := startMirror(t)

	response, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	if response.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("/metrics: status %d, body lacks runtime metrics", response.StatusCode)
	}
}

func TestConfigRequired(t *testing.T) {
	t.Setenv(config.ConfigEnvVar, "")
	if _, err := execute(t, "", "list"); err == nil || !strings.Contains(err.Error(), config.ConfigEnvVar) {
		t.Errorf("list without config: err = %v, want a %s hint", err, config.ConfigEnvVar)
	}
}

func TestParseIDArg(t *testing.T) {
	id := asset.Identify([]byte("payload"))
	for _, input := range []string{string(id), "asset://" + string(id), "asset://" + string(id) + "/name.png"} {
		parsed, err := parseIDArg(input)
		if err != nil || parsed != id {
			t.Errorf("parseIDArg(%q) = %q, %v; want %q", input, parsed, err, id)
		}
	}
	if _, err := parseIDArg("not-an-id"); err == nil {
		t.Error("parseIDArg accepted garbage")
	}
}

func TestVersionJSON(t *testing.T) {
	var report struct {
		Version  string `json:"version"`
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal([]byte(mustExecute(t, "", "version", "--json")), &report); err != nil {
		t.Fatalf("decoding version output: %v", err)
	}
	if report.Version == "" || report.Platform == "" {
		t.Errorf("version report = %+v", report)
	}
}
