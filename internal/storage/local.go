package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const linkIssuer = "ezyshare"

// LocalStore keeps objects on the local filesystem and signs retrieval
// links served back by the application under /blob/.
type LocalStore struct {
	root       string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

type linkClaims struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewLocalStore creates a local store rooted at root. An empty signing key is
// replaced by a random one, which invalidates outstanding links on restart.
func NewLocalStore(root, baseURL string, signingKey []byte) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local storage path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		slog.Warn("no storage signing key configured, using an ephemeral one")
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &LocalStore{
		root:       abs,
		baseURL:    baseURL,
		signingKey: signingKey,
		now:        time.Now,
	}, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+key || strings.HasPrefix(clean, "/tmp/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put streams r to a temp file and moves it into place.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && written != size {
		cleanup()
		return fmt.Errorf("short write: got %d bytes, expected %d", written, size)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

// Delete removes the object at key.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// SignedURL issues a link to /blob/<token> valid for ttl.
func (s *LocalStore) SignedURL(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}

	now := s.now()
	claims := linkClaims{
		Key:  key,
		Name: downloadName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign retrieval link: %w", err)
	}
	return s.baseURL + "blob/" + url.PathEscape(token), nil
}

// Blob is an opened object behind a retrieval link.
type Blob struct {
	*os.File
	Name        string
	Disposition string
}

// Open validates a retrieval token and opens the object it grants.
func (s *LocalStore) Open(token string) (*Blob, error) {
	var claims linkClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	p, err := s.resolve(claims.Key)
	if err != nil {
		return nil, ErrInvalidLink
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}

	name := claims.Name
	if name == "" {
		name = path.Base(claims.Key)
	}
	return &Blob{File: f, Name: name, Disposition: attachmentDisposition(name)}, nil
}
