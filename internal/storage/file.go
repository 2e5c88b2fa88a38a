package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	fileFormatVersion = 1
	pbkdf2Iterations  = 100000
	keyLength         = 32
	saltLength        = 16
)

// fileDocument is the on-disk layout. Values are sealed when Salt is set.
type fileDocument struct {
	Version int               `json:"version"`
	Salt    string            `json:"salt,omitempty"`
	Entries map[string]string `json:"entries"`
}

// File persists all keys in a single JSON document. The file is re-read on
// every operation so that other processes sharing it see each other's
// writes. With a passphrase, values are sealed with AES-GCM under a key
// derived from the passphrase and a random per-file salt.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase []byte

	// cached derivation for the current salt
	salt string
	key  []byte
}

// NewFile returns a file-backed store at path. An empty passphrase stores
// values in plain text.
func NewFile(path, passphrase string) *File {
	f := &File{path: path}
	if passphrase != "" {
		f.passphrase = []byte(passphrase)
	}
	return f
}

// Path returns the location of the backing file.
func (f *File) Path() string { return f.path }

// Encrypted reports whether values are sealed.
func (f *File) Encrypted() bool { return f.passphrase != nil }

// Get implements Storage.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := doc.Entries[key]
	if !ok {
		return "", false, nil
	}
	if doc.Salt == "" {
		return raw, true, nil
	}
	v, err := f.open(doc.Salt, raw)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements Storage.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if len(doc.Entries) == 0 {
		// An empty document takes the current passphrase setting.
		doc.Salt = ""
	}
	if f.passphrase != nil && doc.Salt == "" {
		if len(doc.Entries) > 0 {
			return fmt.Errorf("write %q: file holds unencrypted entries: %w", key, ErrUnavailable)
		}
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		doc.Salt = base64.StdEncoding.EncodeToString(salt)
	}

	stored := value
	if doc.Salt != "" {
		if stored, err = f.seal(doc.Salt, value); err != nil {
			return fmt.Errorf("encrypt %q: %w", key, err)
		}
	}
	doc.Entries[key] = stored
	return f.save(doc)
}

// Remove implements Storage.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	if len(doc.Entries) == 0 {
		doc.Salt = ""
	}
	return f.save(doc)
}

func (f *File) load() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion, Entries: map[string]string{}}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc, nil
}

// save writes through a temp file and rename so readers never see a
// partially written document.
func (f *File) save(doc *fileDocument) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, errors.Join(ErrUnavailable, err))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("write %s: %w", f.path, errors.Join(ErrUnavailable, err))
	}
	return nil
}

func (f *File) deriveKey(salt string) ([]byte, error) {
	if f.passphrase == nil {
		return nil, errors.New("file is encrypted but no passphrase is configured")
	}
	if salt == f.salt && f.key != nil {
		return f.key, nil
	}
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	f.key = pbkdf2.Key(f.passphrase, raw, pbkdf2Iterations, keyLength, sha256.New)
	f.salt = salt
	return f.key, nil
}

func (f *File) gcm(salt string) (cipher.AEAD, error) {
	key, err := f.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (f *File) seal(salt, plaintext string) (string, error) {
	gcm, err := f.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (f *File) open(salt, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := f.gcm(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
