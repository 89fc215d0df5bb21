//
// hashprg.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package hashprg implements the hash-derived capabilities the VOLE
// engine is built on: a counter PRG, a keyed derivation function, a
// plain block hash, and a two-key PRP-like GGM tree node expander.
// All four are built from a single BLAKE3 hash primitive, matching
// the teacher's ot.MITCCRH/vole.prgExpandLabel shape (tweak, hash,
// fold) but over BLAKE3 rather than AES, per the original VOLE
// construction's hash_blake3.h/twokeyprp_blake3.h.
package hashprg

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// BlockSize is the size in bytes of a GGM tree node / OTPre pad.
const BlockSize = 16

// Block is a 128-bit hash-primitive output, the node type of the GGM
// tree and the unit exchanged by OTPre.
type Block [BlockSize]byte

// Xor xors b with o in place.
func (b *Block) Xor(o Block) {
	for i := range b {
		b[i] ^= o[i]
	}
}

// PRGOutputSize is the number of bytes produced by one PRG call -- 64
// bytes holds 16 uint32 lanes, matching the LPN column-index draw.
const PRGOutputSize = 64

// PRG derives PRGOutputSize pseudorandom bytes from a 128-bit seed and
// a counter via H(counter_le ‖ seed), using BLAKE3's XOF to stretch
// the single 32-byte compression output to 64 bytes.
func PRG(seed Block, counter uint64) [PRGOutputSize]byte {
	var in [8 + BlockSize]byte
	binary.LittleEndian.PutUint64(in[0:8], counter)
	copy(in[8:], seed[:])

	h := blake3.New()
	h.Write(in[:])

	var out [PRGOutputSize]byte
	xof := h.XOF()
	xof.Read(out[:])
	return out
}

// KDF derives a 128-bit block from arbitrary data and a domain id via
// H(data ‖ id_le).
func KDF(data []byte, id uint64) Block {
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], id)

	h := blake3.New()
	h.Write(data)
	h.Write(idBuf[:])

	var out Block
	copy(out[:], h.Sum(nil))
	return out
}

// HashForBlock derives a 128-bit block via H(data).
func HashForBlock(data []byte) Block {
	h := blake3.New()
	h.Write(data)

	var out Block
	copy(out[:], h.Sum(nil))
	return out
}

// TwoKeyPRP expands one GGM parent node into two children. The
// XOR-parent step is load bearing: it is what makes the expansion a
// correlation-robust one-way function under the random-oracle
// heuristic while a one-byte prefix gives domain separation between
// the two children.
type TwoKeyPRP struct{}

// Expand returns the left (b=0) and right (b=1) children of parent.
func (TwoKeyPRP) Expand(parent Block) (child0, child1 Block) {
	child0 = expandChild(0, parent)
	child1 = expandChild(1, parent)
	return
}

func expandChild(b byte, parent Block) Block {
	var in [1 + BlockSize]byte
	in[0] = b
	copy(in[1:], parent[:])

	h := blake3.New()
	h.Write(in[:])
	var digest Block
	copy(digest[:], h.Sum(nil))

	digest.Xor(parent)
	return digest
}
