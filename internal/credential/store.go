package credential

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrd-project/wrd-server/internal/capability"
)

// Store is the public facade session controllers use to persist and
// retrieve restore tokens. It selects a concrete Backend once at
// construction based on the DeploymentContext (sandboxed processes
// prefer the Flatpak portal over the raw Secret Service bus, per
// spec.md §6's backend preference order), and always keeps the
// encrypted-file backend available as the last resort since it has no
// external dependency beyond the filesystem.
//
// Grounded on the compositor-conditional branch in the teacher's
// Server.Run: probe the environment once, pick a concrete strategy,
// and never re-probe per call.
type Store struct {
	mu       sync.RWMutex
	primary  Backend
	tokenDir string
	logger   *slog.Logger
}

// Open selects a backend for the given deployment context and token
// directory. If every higher-preference backend is unavailable it falls
// back to the encrypted-file backend; it returns an error only when
// that fallback cannot be created (e.g. the token directory cannot be
// made).
func Open(deploy capability.DeploymentContext, tokenDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var candidates []func() (Backend, error)

	if deploy.Sandbox == capability.SandboxFlatpak {
		candidates = append(candidates, func() (Backend, error) {
			return NewFlatpakPortalBackend(tokenDir, "")
		})
	} else {
		candidates = append(candidates, func() (Backend, error) {
			return NewSecretServiceBackend(tokenDir, "")
		})
	}
	candidates = append(candidates, func() (Backend, error) {
		return NewTPMBackend(tokenDir, "")
	})

	for _, try := range candidates {
		backend, err := try()
		if err == nil {
			return &Store{primary: backend, tokenDir: tokenDir, logger: logger}, nil
		}
		logger.Debug("credential backend unavailable, trying next", "error", err)
	}

	fb, err := NewEncryptedFileBackend(tokenDir, "")
	if err != nil {
		return nil, fmt.Errorf("open fallback encrypted-file backend: %w", err)
	}
	return &Store{primary: fb, tokenDir: tokenDir, logger: logger}, nil
}

// OpenWithBackend is used by tests and by callers who already know
// which concrete backend to use.
func OpenWithBackend(b Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{primary: b, logger: logger}
}

// Save persists opaque under sessionID, stamping CreatedAt/LastUsed if
// unset.
func (s *Store) Save(sessionID string, opaque []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	return s.primary.Store(sessionID, opaque, Metadata{
		SessionID: sessionID,
		CreatedAt: now,
		LastUsed:  now,
	})
}

// Load returns (nil, nil) when no token is stored for sessionID — an
// absent token is not an error, per spec.md's Open Question decision
// that "no restore token" means "proceed without reconnection", not a
// failure.
func (s *Store) Load(sessionID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.Load(sessionID)
}

// Delete removes any token for sessionID. Deleting an absent token is
// not an error (idempotent per spec.md §8).
func (s *Store) Delete(sessionID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.Delete(sessionID)
}

// Rotate forces the backend to regenerate any cached key material on
// the next Save call.
func (s *Store) Rotate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.Rotate()
}
