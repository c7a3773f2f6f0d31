package credential

import (
	"fmt"
	"os"
)

// TPMBackend is selected when /dev/tpmrm0 can be opened. It does not
// seal anything with the TPM: tokens are stored through the
// encrypted-file backend, tagged BackendTPM.
//
// No TPM 2.0 Go binding exists anywhere in the reference corpus this
// repo was grounded on; rather than fabricate one, this backend only
// probes device availability and reports ErrBackendUnavailable when
// /dev/tpmrm0 cannot be opened. The
// capability registry already grades CredentialBackend("tpm") no
// higher than BestEffort, so callers never rely on it exclusively.
type TPMBackend struct {
	fallback *EncryptedFileBackend
}

// NewTPMBackend verifies /dev/tpmrm0 can be opened, then delegates
// actual storage to the encrypted-file backend; the AES key material is
// not sealed with the TPM.
func NewTPMBackend(fallbackDir, machineIDOverride string) (*TPMBackend, error) {
	f, err := os.OpenFile("/dev/tpmrm0", os.O_RDWR, 0)
	if err != nil {
		return nil, &ErrBackendUnavailable{Reason: fmt.Sprintf("/dev/tpmrm0: %v", err)}
	}
	f.Close()

	fb, err := NewEncryptedFileBackend(fallbackDir, machineIDOverride)
	if err != nil {
		return nil, err
	}
	return &TPMBackend{fallback: fb}, nil
}

func (b *TPMBackend) Store(sessionID string, token []byte, meta Metadata) error {
	meta.BackendKind = BackendTPM
	return b.fallback.Store(sessionID, token, meta)
}

func (b *TPMBackend) Load(sessionID string) (*Token, error) { return b.fallback.Load(sessionID) }
func (b *TPMBackend) Delete(sessionID string) error          { return b.fallback.Delete(sessionID) }
func (b *TPMBackend) Rotate() error                           { return b.fallback.Rotate() }
