//
// consistency.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package consistency implements the malicious-security consistency
// check that binds a sender's and receiver's VOLE views together: a
// random linear combination of the whole output vector, blinded by one
// extra VOLE correlation reserved for exactly this purpose, catches a
// cheating party with overwhelming probability without revealing
// anything about the n real correlations beyond pass/fail.
package consistency

import (
	"errors"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/ot"
)

// ErrMismatch is returned when the two sides' views disagree --
// evidence of a malicious or faulty peer. Callers must treat the
// entire ladder instance as poisoned once this is seen.
var ErrMismatch = errors.New("consistency: check failed")

// Coeffs derives n universal-hash coefficients chi[0..n) as successive
// powers of a single hash-derived base element, the standard
// polynomial-hash construction for batch-verifying n linear relations
// with one comparison.
func Coeffs(seed hashprg.Block, n int) []uint64 {
	digest := hashprg.HashForBlock(seed[:])
	var base uint64
	for i := 0; i < 8; i++ {
		base |= uint64(digest[i]) << (8 * i)
	}
	base = field.Reduce(base)
	if base == 0 {
		base = 1
	}

	chi := make([]uint64, n)
	if n == 0 {
		return chi
	}
	chi[0] = base
	for i := 1; i < n; i++ {
		chi[i] = field.Mul(chi[i-1], base)
	}
	return chi
}

// FromShare derives the coefficient seed from a scalar both parties
// already hold, such as the cleartext share an SPFSS instance
// exchanges, avoiding an extra round trip just to agree on a nonce.
// The ladder does not use it; it keys each round's check with
// hashprg.KDF(checkSeed, round).
func FromShare(share uint64) hashprg.Block {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(share >> (8 * i))
	}
	return hashprg.HashForBlock(buf[:])
}

// FromNonce derives the coefficient seed from an explicit nonce,
// for callers with no pre-shared scalar to hash instead.
func FromNonce(nonce hashprg.Block) hashprg.Block {
	return hashprg.HashForBlock(nonce[:])
}

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func decodeU64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, errors.New("consistency: short frame")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(data[i]) << (8 * i)
	}
	return v, nil
}

// SenderCheck computes the sender's half of the check: y (the VOLE
// y-vector), delta (the global correlation) and y0 (the sender's share
// of one extra reserved blinding pair) combine with the receiver's
// blinded x_star into the final comparison value V.
func SenderCheck(conn ot.IO, seed hashprg.Block, y []uint64, delta, y0 uint64) error {
	chi := Coeffs(seed, len(y))
	ySum := uint64(0)
	for i, v := range y {
		ySum = field.Add(ySum, field.Mul(chi[i], v))
	}

	data, err := conn.ReceiveData()
	if err != nil {
		return err
	}
	xStar, err := decodeU64(data)
	if err != nil {
		return err
	}

	v := field.Add(field.Mul(delta, xStar), ySum)
	v = field.Sub(v, y0)

	if err := conn.SendData(encodeU64(v)); err != nil {
		return err
	}
	return conn.Flush()
}

// ReceiverCheck computes the receiver's half of the check: x,z (the
// VOLE correlation vectors) and (x0,z0) (its share of the extra
// blinding pair) combine to a locally expected value, compared against
// the sender's V. Returns ErrMismatch on disagreement.
func ReceiverCheck(conn ot.IO, seed hashprg.Block, x, z []uint64, x0, z0 uint64) error {
	chi := Coeffs(seed, len(x))
	xSum := uint64(0)
	zSum := uint64(0)
	for i := range x {
		xSum = field.Add(xSum, field.Mul(chi[i], x[i]))
		zSum = field.Add(zSum, field.Mul(chi[i], z[i]))
	}

	xStar := field.Sub(xSum, x0)
	if err := conn.SendData(encodeU64(xStar)); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}

	data, err := conn.ReceiveData()
	if err != nil {
		return err
	}
	v, err := decodeU64(data)
	if err != nil {
		return err
	}

	want := field.Sub(zSum, z0)
	if v != want {
		return ErrMismatch
	}
	return nil
}
