// Package filestore persists session tokens in a single JSON file, the client-side equivalent of
// browser local storage. When a key is supplied the file is sealed with XChaCha20-Poly1305.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/sessions"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

var _ sessions.Store = (*Store)(nil)

// Store is a file-backed sessions.Store
type Store struct {
	path string
	aead aeadCipher
	mu   sync.Mutex
}

type aeadCipher interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

type Option func(*Store) error

// WithKey enables at-rest encryption. key must be chacha20poly1305.KeySize bytes.
func WithKey(key []byte) Option {
	return func(s *Store) error {
		if key == nil {
			return nil
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return errors.Wrapf(err, "[filestore] invalid key")
		}
		s.aead = aead
		return nil
	}
}

// New returns a Store writing to path. The file is created lazily on the first Set.
func New(path string, options ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("[filestore] path is required")
	}
	s := &Store{path: path}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Delete removes keys. A file that cannot be read back (wrong key, corrupt, truncated)
// holds no usable tokens and is removed entirely.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		if len(keys) == 0 {
			return nil
		}
		log.Warn().Err(err).Str("path", s.path).Msg("discarding unreadable session file")
		return s.remove()
	}
	changed := false
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if len(values) == 0 {
		return s.remove()
	}
	return s.save(values)
}

func (s *Store) remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "[filestore] remove %s", s.path)
	}
	return nil
}

func (s *Store) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[filestore] read %s", s.path)
	}

	if s.aead != nil {
		if raw, err = s.open(raw); err != nil {
			return nil, err
		}
	}

	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrapf(err, "[filestore] decode %s", s.path)
	}
	return values, nil
}

// save writes to a temp file in the same directory and renames it into place
func (s *Store) save(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return errors.Wrapf(err, "[filestore] encode")
	}
	if s.aead != nil {
		if raw, err = s.seal(raw); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrapf(err, "[filestore] mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrapf(err, "[filestore] create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[filestore] write temp")
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[filestore] chmod temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "[filestore] close temp")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "[filestore] rename to %s", s.path)
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrapf(err, "[filestore] nonce")
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(s.path)), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, fmt.Errorf("[filestore] %s is too short to be sealed", s.path)
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(s.path))
	if err != nil {
		return nil, errors.Wrapf(err, "[filestore] open %s", s.path)
	}
	return plain, nil
}
