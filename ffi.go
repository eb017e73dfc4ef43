package ffiruntime

// Memory is the flat 32-bit address space foreign data lives in.
// All multi-byte accessors are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the address space in bytes.
type MemorySizer interface {
	Size() uint32
}

// Grower is implemented by memories that can be extended by whole pages.
// Grow returns the previous size in pages.
type Grower interface {
	Grow(deltaPages uint32) (uint32, bool)
}

// Allocator hands out blocks of the address space.
// Free must be called with the same size and align that were passed to Alloc.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// PtrSize is the size of a pointer in the foreign address space.
const PtrSize = 4

// PageSize is the growth granularity of page-based memories.
const PageSize = 65536
