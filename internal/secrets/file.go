package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const nonceSizeGCM = 12

// Hooks for tests.
var (
	defaultKeySource           = DefaultKeySource
	fileWriteFile              = os.WriteFile
	fileMarshal                = json.Marshal
	fileRandReader   io.Reader = rand.Reader
	fileCipherNewGCM           = cipher.NewGCM
)

// errUndecryptable marks a file written under a different key.
var errUndecryptable = errors.New("secrets: file cannot be decrypted with this key")

// FileManager stores secrets as one AES-GCM encrypted JSON object.
type FileManager struct {
	path string
	key  []byte
	mu   sync.Mutex
}

var _ Manager = (*FileManager)(nil)

// NewFileManager uses DefaultKeySource for the key.
func NewFileManager(path string) (*FileManager, error) {
	key, err := defaultKeySource()
	if err != nil {
		return nil, err
	}
	return NewFileManagerWithKey(path, key)
}

// NewFileManagerWithKey requires a 32-byte key.
func NewFileManagerWithKey(path string, key []byte) (*FileManager, error) {
	if len(key) != 32 {
		return nil, errors.New("secrets: key must be 32 bytes")
	}
	return &FileManager{path: path, key: key}, nil
}

// DefaultManager opens the secrets file under the user config directory.
func DefaultManager() (*FileManager, error) {
	path, err := DefaultSecretsPath()
	if err != nil {
		return nil, err
	}
	return NewFileManager(path)
}

func (f *FileManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, err
	}
	return fileCipherNewGCM(block)
}

// load returns the stored map; a missing file is an empty map.
func (f *FileManager) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("secrets read: %w", err)
	}
	if len(data) < nonceSizeGCM {
		return nil, fmt.Errorf("%w: truncated", errUndecryptable)
	}
	gcm, err := f.gcm()
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, data[:nonceSizeGCM], data[nonceSizeGCM:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUndecryptable, err)
	}
	m := map[string]string{}
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, fmt.Errorf("secrets parse: %w", err)
	}
	return m, nil
}

func (f *FileManager) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("secrets mkdir: %w", err)
	}
	plain, err := fileMarshal(m)
	if err != nil {
		return err
	}
	gcm, err := f.gcm()
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(fileRandReader, nonce); err != nil {
		return err
	}
	return fileWriteFile(f.path, gcm.Seal(nonce, nonce, plain, nil), 0600)
}

func (f *FileManager) Get(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return "", err
	}
	v := m[name]
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Set starts a fresh map when the file was written under another key.
func (f *FileManager) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if errors.Is(err, errUndecryptable) {
		m = map[string]string{}
	} else if err != nil {
		return err
	}
	m[name] = value
	return f.save(m)
}

func (f *FileManager) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(f.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	m, err := f.load()
	if errors.Is(err, errUndecryptable) {
		return f.save(map[string]string{})
	} else if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return nil
	}
	delete(m, name)
	return f.save(m)
}

func (f *FileManager) Names() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names, nil
}
