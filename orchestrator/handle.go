package orchestrator

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrRevoked is returned when reading a handle that has been released.
var ErrRevoked = errors.New("orchestrator: handle revoked")

// Handle is a revocable reference to a downloaded archive held in memory.
// The bytes stay valid until Revoke is called; Revoke is idempotent.
// Reads hold a shared lock, so a revocation waits for in-progress writes.
type Handle struct {
	token    uint64
	filename string
	size     int

	mu       sync.RWMutex
	data     []byte
	revoked  bool
	onRevoke func()
}

func newHandle(token uint64, filename string, data []byte, onRevoke func()) *Handle {
	return &Handle{
		token:    token,
		filename: filename,
		size:     len(data),
		data:     data,
		onRevoke: onRevoke,
	}
}

// Token returns the call token of the submission that produced the handle.
func (h *Handle) Token() uint64 { return h.token }

// Filename returns the suggested filename, verbatim from the service.
func (h *Handle) Filename() string { return h.filename }

// Size returns the archive size in bytes. It is kept after revocation.
func (h *Handle) Size() int { return h.size }

// Live reports whether the handle has not been revoked yet.
func (h *Handle) Live() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.revoked
}

// Bytes returns the archive contents. The slice must not be modified.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.revoked {
		return nil, ErrRevoked
	}
	return h.data, nil
}

// WriteTo writes the archive to w, keeping the bytes alive for the duration.
func (h *Handle) WriteTo(w io.Writer) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.revoked {
		return 0, ErrRevoked
	}
	return io.Copy(w, bytes.NewReader(h.data))
}

// Revoke releases the bytes. It returns false if the handle was already revoked.
func (h *Handle) Revoke() bool {
	h.mu.Lock()
	if h.revoked {
		h.mu.Unlock()
		return false
	}
	h.revoked = true
	h.data = nil
	h.mu.Unlock()

	if h.onRevoke != nil {
		h.onRevoke()
	}
	return true
}
