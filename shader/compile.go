package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/gogpu/naga"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var (
	// ErrNotFound is returned when no file system holds the named source.
	ErrNotFound = errors.New("shader: source not found")

	// ErrCompile wraps WGSL compilation failures.
	ErrCompile = errors.New("shader: compile failed")
)

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", ErrCompile, len(spirvBytes))
	}

	// SPIR-V is a stream of little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	if len(words) == 0 || words[0] != SPIRVMagic {
		return nil, fmt.Errorf("%w: missing SPIR-V header", ErrCompile)
	}
	return words, nil
}

// SourceHash returns the cache key of a WGSL source.
func SourceHash(wgsl string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(wgsl))
	return h.Sum64()
}
