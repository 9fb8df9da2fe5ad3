// Package storage keeps uploaded media.  The AssetStore interface hides
// where bytes live; Disk writes them under a media root that the HTTP
// server also exposes as static files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for asset names that would escape the media
// root.
var ErrInvalidName = errors.New("invalid asset name")

// AssetStore saves, removes and addresses named assets.  Names are
// slash-separated and relative, e.g. "uploads/plays/hamlet-<uuid>.jpg".
type AssetStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	URL(name string) string
}

// Disk stores assets as files below Root and serves them at BaseURL.
type Disk struct {
	Root    string
	BaseURL string
}

// NewDisk returns a Disk store.  baseURL gets a trailing slash.
func NewDisk(root, baseURL string) *Disk {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Disk{Root: root, BaseURL: baseURL}
}

func (d *Disk) path(name string) (string, error) {
	clean := path.Clean("/" + name)
	if name == "" || clean == "/" || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Save writes r to name.  The file is written to a temporary sibling
// first and renamed so readers never observe a partial file.
func (d *Disk) Save(ctx context.Context, name string, r io.Reader) error {
	dst, err := d.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp asset: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move asset: %w", err)
	}
	return nil
}

// Delete removes name.  A missing file is not an error.
func (d *Disk) Delete(_ context.Context, name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether name is stored.
func (d *Disk) Exists(_ context.Context, name string) (bool, error) {
	p, err := d.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// URL returns the public URL path of name, or "" for the empty name.
func (d *Disk) URL(name string) string {
	if name == "" {
		return ""
	}
	return d.BaseURL + strings.TrimPrefix(name, "/")
}
