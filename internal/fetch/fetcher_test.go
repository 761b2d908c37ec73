package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newAssetServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"test-etag"`)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_DownloadsToDest(t *testing.T) {
	body := []byte(`{"question": "is this a test", "answer": true}` + "\n")
	srv := newAssetServer(t, body)

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "boolq"), 0o755); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-train", URL: srv.URL + "/train.jsonl", Dest: "boolq/train.jsonl"}

	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Skipped {
		t.Errorf("Fetch() skipped fresh download")
	}
	if res.SizeBytes != int64(len(body)) {
		t.Errorf("SizeBytes = %d, want %d", res.SizeBytes, len(body))
	}

	wantSum := sha256.Sum256(body)
	if res.SHA256 != hex.EncodeToString(wantSum[:]) {
		t.Errorf("SHA256 = %q, want %q", res.SHA256, hex.EncodeToString(wantSum[:]))
	}

	data, err := os.ReadFile(filepath.Join(dir, "boolq", "train.jsonl"))
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Errorf("dest content mismatch")
	}
	// No leftover temp file.
	if _, err := os.Stat(filepath.Join(dir, "boolq", "train.jsonl.part")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}
}

func TestFetch_SkipsExistingDest(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "boolq", "train.jsonl")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-train", URL: srv.URL, Dest: "boolq/train.jsonl"}
	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.Skipped {
		t.Fatalf("Fetch() did not skip existing dest")
	}
	if requests != 0 {
		t.Errorf("server was contacted %d times for an existing dest", requests)
	}

	after, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("existing dest mtime changed: %v -> %v", before.ModTime(), after.ModTime())
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "existing" {
		t.Errorf("existing dest content changed: %q", string(data))
	}
}

func TestFetch_ServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-dev", URL: srv.URL, Dest: "dev.jsonl"}

	if _, err := f.Fetch(context.Background(), "id1", a); err == nil {
		t.Fatalf("Fetch() expected error for 404")
	}
	if _, err := os.Stat(filepath.Join(dir, "dev.jsonl")); !os.IsNotExist(err) {
		t.Errorf("dest must not exist after failed fetch")
	}
}

func TestFetch_TruncatedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("short"))
		// Hijack and drop the connection so only 5 of 100 bytes arrive.
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			if conn != nil {
				_ = conn.Close()
			}
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-dev", URL: srv.URL, Dest: "dev.jsonl"}

	_, err := f.Fetch(context.Background(), "id1", a)
	if err == nil {
		t.Fatalf("Fetch() expected error for truncated body")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dev.jsonl")); !os.IsNotExist(statErr) {
		t.Errorf("dest must not exist after truncated fetch")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dev.jsonl.part")); !os.IsNotExist(statErr) {
		t.Errorf("temp file left behind after truncated fetch")
	}
}

func TestFetch_ChecksumMismatch(t *testing.T) {
	srv := newAssetServer(t, []byte("actual content"))

	dir := t.TempDir()
	f := NewFetcher(dir, 0, true)
	a := Asset{
		Name:   "boolq-dev",
		URL:    srv.URL,
		Dest:   "dev.jsonl",
		SHA256: "0000000000000000000000000000000000000000000000000000000000000000",
	}

	_, err := f.Fetch(context.Background(), "id1", a)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Fetch() error = %v, want ErrChecksumMismatch", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dev.jsonl")); !os.IsNotExist(statErr) {
		t.Errorf("dest must not exist after checksum failure")
	}
}

func TestFetch_ChecksumIgnoredWhenVerifyDisabled(t *testing.T) {
	srv := newAssetServer(t, []byte("actual content"))

	dir := t.TempDir()
	f := NewFetcher(dir, 0, false)
	a := Asset{
		Name:   "boolq-dev",
		URL:    srv.URL,
		Dest:   "dev.jsonl",
		SHA256: "0000000000000000000000000000000000000000000000000000000000000000",
	}

	if _, err := f.Fetch(context.Background(), "id1", a); err != nil {
		t.Fatalf("Fetch() error = %v, want nil with verification disabled", err)
	}
}

func TestFetch_ZipDestExtractsIntoParent(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("glove.840B.300d.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("the 0.1 0.2\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	srv := newAssetServer(t, buf.Bytes())

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "glove"), 0o755); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "glove-840b-300d", URL: srv.URL, Dest: "glove/glove.840B.300d.zip"}

	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Members != 1 {
		t.Errorf("Members = %d, want 1", res.Members)
	}

	// Archive kept, members alongside it.
	if _, err := os.Stat(filepath.Join(dir, "glove", "glove.840B.300d.zip")); err != nil {
		t.Errorf("archive missing after fetch: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "glove", "glove.840B.300d.txt"))
	if err != nil {
		t.Fatalf("extracted member missing: %v", err)
	}
	if string(data) != "the 0.1 0.2\n" {
		t.Errorf("extracted content = %q", string(data))
	}
}

func TestFetch_NonZipDestIsNotExtracted(t *testing.T) {
	srv := newAssetServer(t, []byte("plain text"))

	dir := t.TempDir()
	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-train", URL: srv.URL, Dest: "train.jsonl"}

	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Members != 0 {
		t.Errorf("Members = %d for non-archive dest, want 0", res.Members)
	}
}

func TestFetch_SkippedZipIsNotReextracted(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "glove", "glove.840B.300d.zip")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	// Deliberately not a valid zip; extraction would fail if attempted.
	if err := os.WriteFile(dest, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "glove-840b-300d", URL: "http://127.0.0.1:0/unused", Dest: "glove/glove.840B.300d.zip"}

	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.Skipped {
		t.Fatalf("Fetch() did not skip existing archive")
	}
	if res.Members != 0 {
		t.Errorf("skipped archive must not be re-extracted")
	}
}

func TestFetch_ProbeRecordsRemoteInfo(t *testing.T) {
	srv := newAssetServer(t, []byte("body"))

	dir := t.TempDir()
	f := NewFetcher(dir, 0, true)
	a := Asset{Name: "boolq-train", URL: srv.URL, Dest: "train.jsonl"}

	res, err := f.Fetch(context.Background(), "id1", a)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.ETag != `"test-etag"` {
		t.Errorf("ETag = %q, want probe result", res.ETag)
	}
}
