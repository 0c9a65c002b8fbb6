package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"garagelink.app/client/internal/core/ports"
)

// FileStore implements ports.KeyValueStore as one encrypted file. Every batch
// rewrites the whole file through a temp file and rename, so a crash leaves
// either the old or the new slot set on disk, never a mix.
type FileStore struct {
	path       string
	encryptKey []byte
	mu         sync.RWMutex
}

// NewFileStore opens (or prepares) the store at path. An empty secret falls
// back to a machine-derived key.
func NewFileStore(path, secret string) (*FileStore, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{
		path:       path,
		encryptKey: deriveKey(secret),
	}, nil
}

// Path returns the resolved file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

// SetMany writes all values in one file replacement.
func (s *FileStore) SetMany(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		slots[k] = v
	}
	return s.save(slots)
}

// DeleteMany removes all keys in one file replacement.
func (s *FileStore) DeleteMany(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(slots, k)
	}
	if len(slots) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove storage file: %w", err)
		}
		return nil
	}
	return s.save(slots)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	decrypted, err := s.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt storage: %w", err)
	}

	slots := map[string]string{}
	if err := json.Unmarshal(decrypted, &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal storage: %w", err)
	}
	return slots, nil
}

func (s *FileStore) save(slots map[string]string) error {
	plain, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	encrypted, err := s.encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".slots-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

func (s *FileStore) encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *FileStore) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(s.encryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// deriveKey hashes secret into an AES-256 key. Without a secret the key is
// bound to host and user, the same fallback the CLI has always used.
func deriveKey(secret string) []byte {
	if secret == "" {
		hostname, _ := os.Hostname()
		user := os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME") // Windows
		}
		secret = fmt.Sprintf("garagelink:%s:%s", hostname, user)
	}
	hash := sha256.Sum256([]byte(secret))
	return hash[:]
}

var _ ports.KeyValueStore = (*FileStore)(nil)
