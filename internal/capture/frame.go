package capture

import (
	"sync/atomic"
)

// DamageRegion is an axis-aligned, non-negative rectangle inside a
// frame, in pixels.
type DamageRegion struct {
	X, Y, W, H int
}

// StorageKind distinguishes how a frame's pixels are backed.
type StorageKind int

const (
	StorageMmap StorageKind = iota
	StorageDmaBuf
	StorageShm
)

// DmaBufPlane is one plane of a multi-planar DMA-BUF frame.
type DmaBufPlane struct {
	Fd           int
	Offset       uint32
	Stride       uint32
	Modifier     uint64
}

// pool is the frame's owning buffer pool; Release returns the
// underlying storage to it. Implemented by Source.
type pool interface {
	release(buf []byte)
}

// VideoFrame is an owned reference to pixels from one capture stream.
// Storage is reference-counted: a frame must be released (Release)
// before the next frame on its stream arrives, or explicitly copied
// with Clone, per spec.md's VideoFrame invariant.
type VideoFrame struct {
	StreamID string

	Storage StorageKind
	// Mmap/Shm data. nil for DmaBuf frames (use Planes instead).
	data []byte
	Planes []DmaBufPlane

	Width, Height, Stride int
	Format                PixelFormat

	PTSNanos int64
	HasDamage bool
	Damage    []DamageRegion

	refs  atomic.Int32 // starts at 1, owned by newFrame's caller
	owner pool
}

// NewFrame builds a standalone VideoFrame from already-owned pixel
// data, with no pool attached (Release simply drops the reference).
// Used for synthetic frames, such as those in tests, that do not
// originate from a Source.
func NewFrame(streamID string, data []byte, width, height, stride int, format PixelFormat, ptsNanos int64) *VideoFrame {
	f := &VideoFrame{
		StreamID: streamID,
		Storage:  StorageMmap,
		data:     data,
		Width:    width,
		Height:   height,
		Stride:   stride,
		Format:   format,
		PTSNanos: ptsNanos,
	}
	f.refs.Store(1)
	return f
}

// Bytes returns the frame's Mmap/Shm pixel data. Panics if called on a
// DmaBuf frame (check Storage first).
func (f *VideoFrame) Bytes() []byte {
	if f.Storage == StorageDmaBuf {
		panic("capture: Bytes() called on a DmaBuf frame")
	}
	return f.data
}

// Clone makes an independent copy of the frame's pixel data so the
// caller may hold it past the next capture on this stream. DmaBuf
// frames cannot be cloned cheaply; callers needing to retain DMA-BUF
// content must read it into a CPU buffer themselves.
func (f *VideoFrame) Clone() *VideoFrame {
	cp := *f
	cp.refs = atomic.Int32{}
	cp.refs.Store(1)
	cp.owner = nil
	if f.data != nil {
		cp.data = make([]byte, len(f.data))
		copy(cp.data, f.data)
	}
	return &cp
}

// Retain increments the frame's reference count; callers sharing a
// frame across goroutines (e.g. the frame bus handing off to the
// encoder while a damage-stats logger also inspects it) must Retain
// before handing off a second reference and Release once done with it.
func (f *VideoFrame) Retain() {
	f.refs.Add(1)
}

// Release drops one reference; when the last reference is dropped the
// storage is returned to its owning pool. Safe to call at most once
// per Retain (including the implicit initial reference).
func (f *VideoFrame) Release() {
	if f.refs.Add(-1) > 0 {
		return
	}
	if f.owner != nil && f.data != nil {
		f.owner.release(f.data)
	}
}
