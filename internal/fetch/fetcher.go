package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datafetch/internal/extract"
	"datafetch/internal/logging"
)

// Result describes the outcome of a single asset fetch.
type Result struct {
	Skipped    bool   // destination already existed; nothing was downloaded
	Path       string // absolute destination path
	SizeBytes  int64  // bytes on disk (existing size when skipped)
	SHA256     string // digest of the downloaded body; empty when skipped
	RemoteSize int64  // Content-Length reported by the HEAD probe, -1 if unknown
	ETag       string // ETag reported by the HEAD probe, if any
	Members    int    // archive members extracted, 0 for non-archives
}

// Fetcher downloads manifest assets over HTTP with existence-skip semantics.
// A destination that already exists on disk is never re-downloaded.
type Fetcher struct {
	dataDir string
	client  *http.Client
	verify  bool
}

// NewFetcher creates a Fetcher writing under dataDir. A zero timeout
// disables the per-request deadline; verify enforces manifest digests.
func NewFetcher(dataDir string, timeout time.Duration, verify bool) *Fetcher {
	return &Fetcher{
		dataDir: dataDir,
		client:  &http.Client{Timeout: timeout},
		verify:  verify,
	}
}

// DestPath resolves an asset's destination to an absolute path under the data dir.
func (f *Fetcher) DestPath(a Asset) string {
	return filepath.Join(f.dataDir, filepath.FromSlash(a.Dest))
}

// Fetch downloads a single asset unless its destination already exists.
// The body is written to a temporary file, verified against the server's
// Content-Length and the asset's expected digest, then renamed into place.
// Zip destinations are extracted into the parent directory after a fresh
// download; a skipped asset is not re-extracted.
func (f *Fetcher) Fetch(ctx context.Context, id string, a Asset) (Result, error) {
	dest := f.DestPath(a)

	if fi, err := os.Stat(dest); err == nil && fi.Mode().IsRegular() {
		logging.LogFetchSkipped(id, a.Name, a.Dest, fi.Size())
		return Result{Skipped: true, Path: dest, SizeBytes: fi.Size(), RemoteSize: -1}, nil
	}

	logging.LogFetchStart(id, a.Name, a.URL)

	res := Result{Path: dest, RemoteSize: -1}
	res.RemoteSize, res.ETag = f.probe(ctx, a.URL)
	if res.RemoteSize > 0 || res.ETag != "" {
		logging.LogRemoteInfo(id, a.Name, res.RemoteSize, res.ETag)
	}

	size, digest, err := f.download(ctx, a, dest)
	if err != nil {
		return res, err
	}
	res.SizeBytes = size
	res.SHA256 = digest

	// Existence of the destination is re-confirmed after the attempt.
	if fi, err := os.Stat(dest); err != nil || !fi.Mode().IsRegular() {
		return res, fmt.Errorf("%s: %w", a.Dest, ErrDestMissing)
	}

	logging.LogFetchComplete(id, a.Name, a.Dest, size, digest)

	if a.Archive() {
		destDir := filepath.Dir(dest)
		members, err := extract.Unzip(dest, destDir)
		logging.LogExtract(a.Name, a.Dest, destDir, members, err)
		if err != nil {
			return res, fmt.Errorf("extract %s: %w", a.Dest, err)
		}
		res.Members = members
	}

	return res, nil
}

// probe issues a best-effort HEAD request for the remote size and ETag.
// Failures are swallowed; the GET is authoritative.
func (f *Fetcher) probe(ctx context.Context, url string) (int64, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, ""
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return -1, ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, ""
	}
	return resp.ContentLength, resp.Header.Get("ETag")
}

func (f *Fetcher) download(ctx context.Context, a Asset, dest string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("get %s: %w", logging.RedactURL(a.URL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, "", fmt.Errorf("get %s: unexpected status %s", logging.RedactURL(a.URL), resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", tmp, err)
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, "", fmt.Errorf("write %s: %w", a.Dest, err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmp)
		return 0, "", fmt.Errorf("%s: got %d of %d bytes: %w", a.Dest, written, resp.ContentLength, ErrTruncated)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if f.verify && a.SHA256 != "" && !strings.EqualFold(digest, a.SHA256) {
		_ = os.Remove(tmp)
		return 0, "", fmt.Errorf("%s: got %s, want %s: %w", a.Dest, digest, a.SHA256, ErrChecksumMismatch)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, "", fmt.Errorf("finalize %s: %w", a.Dest, err)
	}

	return written, digest, nil
}
