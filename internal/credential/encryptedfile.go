package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

// Encrypted-file layout, bit-exact, little-endian (spec.md §4.2):
//
//	magic "WRDT"  : 4 bytes
//	version       : u8 = 1
//	backend_kind  : u8
//	flags         : u16
//	nonce         : 12 bytes (AES-GCM)
//	ciphertext    : N bytes
//	tag           : 16 bytes (appended by AES-GCM's Seal, not separate)
const (
	fileMagic      = "WRDT"
	fileVersion    = 1
	nonceSize      = 12
	tagSize        = 16
	headerFixedLen = 4 + 1 + 1 + 2 + nonceSize
)

// EncryptedFileBackend is always available: the AES-256-GCM key is
// derived via HKDF-SHA-256 from /etc/machine-id (or hostname fallback),
// per spec.md §4.2. Tokens are never written unencrypted.
type EncryptedFileBackend struct {
	dir         string
	machineID   string
	rotateForce bool
}

// NewEncryptedFileBackend creates a backend rooted at dir (created with
// 0700 if absent). machineIDOverride is used by tests; production
// callers pass "" to read /etc/machine-id.
func NewEncryptedFileBackend(dir string, machineIDOverride string) (*EncryptedFileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("chmod token directory: %w", err)
	}

	mid := machineIDOverride
	if mid == "" {
		mid = readMachineID()
	}

	return &EncryptedFileBackend{dir: dir, machineID: mid}, nil
}

func readMachineID() string {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil && len(b) > 0 {
		return string(b)
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "wrd-server-fallback-machine-id"
}

func (b *EncryptedFileBackend) path(sessionID string) string {
	return filepath.Join(b.dir, sessionID+".bin")
}

// deriveKey implements key = HKDF(salt=machine_id, ikm="wrd-token-v1", info=session_id).
func (b *EncryptedFileBackend) deriveKey(sessionID string) ([]byte, error) {
	kdf := hkdf.New(sha256.New, []byte("wrd-token-v1"), []byte(b.machineID), []byte(sessionID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func (b *EncryptedFileBackend) Store(sessionID string, token []byte, meta Metadata) error {
	key, err := b.deriveKey(sessionID)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, token, nil) // ciphertext || tag

	buf := make([]byte, 0, headerFixedLen+len(sealed))
	buf = append(buf, fileMagic...)
	buf = append(buf, byte(fileVersion))
	buf = append(buf, byte(meta.BackendKind))
	flags := make([]byte, 2)
	if b.rotateForce {
		binary.LittleEndian.PutUint16(flags, 1)
	}
	buf = append(buf, flags...)
	buf = append(buf, nonce...)
	buf = append(buf, sealed...)

	if err := os.WriteFile(b.path(sessionID), buf, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	b.rotateForce = false
	return nil
}

func (b *EncryptedFileBackend) Load(sessionID string) (*Token, error) {
	data, err := os.ReadFile(b.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	if len(data) < headerFixedLen+tagSize {
		return nil, &ErrDecryptionFailed{Cause: fmt.Errorf("token file too short: %d bytes", len(data))}
	}
	if string(data[0:4]) != fileMagic {
		return nil, &ErrDecryptionFailed{Cause: fmt.Errorf("bad magic %q", data[0:4])}
	}
	version := data[4]
	backendKind := BackendKind(data[5])
	if version != fileVersion {
		return nil, &ErrDecryptionFailed{Cause: fmt.Errorf("unsupported token file version %d", version)}
	}
	nonce := data[8 : 8+nonceSize]
	ciphertext := data[8+nonceSize:]

	key, err := b.deriveKey(sessionID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &ErrDecryptionFailed{Cause: err}
	}

	return &Token{
		Opaque: plaintext,
		Metadata: Metadata{
			SessionID:   sessionID,
			BackendKind: backendKind,
			MachineID:   b.machineID,
		},
	}, nil
}

func (b *EncryptedFileBackend) Delete(sessionID string) error {
	err := os.Remove(b.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete token file: %w", err)
	}
	return nil
}

func (b *EncryptedFileBackend) Rotate() error {
	b.rotateForce = true
	return nil
}
