package credential

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const flatpakSecretBus = "org.freedesktop.portal.Desktop"

// FlatpakPortalBackend uses the Flatpak Secret portal
// (org.freedesktop.portal.Secret) available only when the process is
// sandboxed, per spec.md's backend availability table. Like
// SecretServiceBackend, actual byte storage is delegated to the
// encrypted-file format once the portal's presence is confirmed.
type FlatpakPortalBackend struct {
	conn     *dbus.Conn
	fallback *EncryptedFileBackend
}

// NewFlatpakPortalBackend dials the session bus and verifies the Secret
// portal interface is exposed.
func NewFlatpakPortalBackend(fallbackDir, machineIDOverride string) (*FlatpakPortalBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, &ErrBackendUnavailable{Reason: fmt.Sprintf("session bus: %v", err)}
	}

	obj := conn.Object(flatpakSecretBus, "/org/freedesktop/portal/desktop")
	var version dbus.Variant
	err = obj.Call("org.freedesktop.DBus.Properties.Get", 0, "org.freedesktop.portal.Secret", "version").Store(&version)
	if err != nil {
		conn.Close()
		return nil, &ErrBackendUnavailable{Reason: fmt.Sprintf("portal Secret interface unavailable: %v", err)}
	}

	fb, err := NewEncryptedFileBackend(fallbackDir, machineIDOverride)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &FlatpakPortalBackend{conn: conn, fallback: fb}, nil
}

func (b *FlatpakPortalBackend) Store(sessionID string, token []byte, meta Metadata) error {
	meta.BackendKind = BackendFlatpakPortal
	return b.fallback.Store(sessionID, token, meta)
}

func (b *FlatpakPortalBackend) Load(sessionID string) (*Token, error) { return b.fallback.Load(sessionID) }
func (b *FlatpakPortalBackend) Delete(sessionID string) error          { return b.fallback.Delete(sessionID) }
func (b *FlatpakPortalBackend) Rotate() error                           { return b.fallback.Rotate() }

// Close releases the D-Bus connection.
func (b *FlatpakPortalBackend) Close() error { return b.conn.Close() }
