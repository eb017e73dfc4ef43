// Package heap provides the flat address spaces foreign data lives in and an
// allocator over them.
//
//	Arena         - Go slice, grows in 64 KiB pages
//	WazeroMemory  - wazero linear memory (own module, or a guest's exported memory)
//	Allocator     - first-fit free list with coalescing, address 0 never returned
//	Tracker       - wraps an allocator and records requests, for leak checks
//
// All memories are little-endian with a 32-bit address space.
package heap
