// Package filestore persists the session keys to a single JSON file,
// optionally sealed with a symmetric key so tokens are not readable at rest.
package filestore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-console-session/sessions"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var _ sessions.Storage = (*FileStorage)(nil)

// ErrSealed is returned when the file cannot be opened with the configured key
var ErrSealed = errors.New("session file cannot be opened with the configured key")

type FileStorage struct {
	path string
	key  *[32]byte
	mu   sync.Mutex
}

type Option func(*FileStorage) error

// WithHexKey seals the file with a hex encoded 32 byte key
func WithHexKey(hexKey string) Option {
	return func(f *FileStorage) error {
		if hexKey == "" {
			return nil
		}
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return fmt.Errorf("decode session key: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("session key must be 32 bytes, got %d", len(raw))
		}
		f.key = new([32]byte)
		copy(f.key[:], raw)
		return nil
	}
}

// New returns a FileStorage writing to path, creating the parent folder.
func New(path string, options ...Option) (*FileStorage, error) {
	f := &FileStorage{path: path}
	for _, opt := range options {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session folder: %w", err)
	}
	return f, nil
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	if f.key != nil {
		if len(data) < nonceSize {
			return nil, ErrSealed
		}
		var nonce [nonceSize]byte
		copy(nonce[:], data[:nonceSize])
		opened, ok := secretbox.Open(nil, data[nonceSize:], &nonce, f.key)
		if !ok {
			return nil, ErrSealed
		}
		data = opened
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return values, nil
}

// save writes to a temp file and renames it so a crash never leaves a torn file
func (f *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	if f.key != nil {
		var nonce [nonceSize]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("generate nonce: %w", err)
		}
		data = secretbox.Seal(nonce[:], data, &nonce, f.key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
