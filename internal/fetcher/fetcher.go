// Package fetcher handles document intake: downloading statement files over
// HTTP and FTP and parsing CSV, XLSX, and JSON row batches into raw rows.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote statement files.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// must close the returned ReadCloser.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ContentHash computes the sha256 hex digest of a file's bytes. It is the
// document identity: re-uploading the same file maps to the same document.
func ContentHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", eris.Wrap(err, "fetcher: hash content")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
