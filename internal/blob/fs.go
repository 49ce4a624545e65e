package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FSStore is a filesystem-backed Store. Objects live under a base directory;
// signed URLs carry an HMAC over path and expiry so a serving layer can
// verify them without shared session state.
type FSStore struct {
	baseDir   string
	baseURL   string
	secretKey []byte
}

// NewFSStore creates a filesystem store rooted at baseDir. baseURL is the
// public prefix signed URLs are built on; secret signs the URLs.
func NewFSStore(baseDir, baseURL, secret string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create base dir %s", baseDir)
	}
	return &FSStore{
		baseDir:   baseDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: []byte(secret),
	}, nil
}

func (s *FSStore) Upload(_ context.Context, path string, content []byte, _ string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return eris.Wrapf(err, "blob: create dir for %s", path)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return eris.Wrapf(err, "blob: write %s", path)
	}
	return nil
}

func (s *FSStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(path); err != nil {
		return "", err
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(path, expires)
	return fmt.Sprintf("%s/%s?expires=%d&sig=%s", s.baseURL, path, expires, sig), nil
}

// VerifyURL checks a signed URL's signature and expiry. Used by the serving
// layer before handing out the underlying file.
func (s *FSStore) VerifyURL(rawURL string, now time.Time) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrap(err, "blob: parse signed url")
	}
	path := u.Path
	if base, err := url.Parse(s.baseURL); err == nil {
		path = strings.TrimPrefix(path, base.Path)
	}
	path = strings.TrimPrefix(path, "/")
	var expires int64
	if _, err := fmt.Sscanf(u.Query().Get("expires"), "%d", &expires); err != nil {
		return eris.New("blob: missing expiry")
	}
	if now.Unix() > expires {
		return eris.New("blob: url expired")
	}
	if !hmac.Equal([]byte(u.Query().Get("sig")), []byte(s.sign(path, expires))) {
		return eris.New("blob: signature mismatch")
	}
	return nil
}

func (s *FSStore) sign(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secretKey)
	fmt.Fprintf(mac, "%s:%d", path, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// resolve maps an object path to a filesystem path, rejecting traversal out
// of the base directory.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return "", eris.Errorf("blob: invalid path %q", path)
	}
	return filepath.Join(s.baseDir, clean), nil
}
