//
// lpn.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package lpn implements the dual-LPN sparse expansion: each of the n
// output rows is the sum of D=10 pseudorandomly chosen entries from a
// much smaller compact vector, folded into the existing output value.
// Assuming the sparse code is hard to distinguish from random (the LPN
// assumption), this turns k compact correlated VOLE instances into n
// pseudorandom ones with no further interaction.
package lpn

import (
	"errors"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
)

// D is the number of compact-vector columns summed into each output
// row.
const D = 10

// Code is a deterministic sparse F_p code: n rows, each a sum of D
// entries drawn from a compact vector of k columns.
type Code struct {
	n, k   int
	kMask  uint32
	seed   hashprg.Block
	workers int
}

// New builds a code expanding a compact vector of k elements into n
// output rows, deriving column indices from seed. workers bounds how
// many goroutines Compute splits the row range across; workers <= 1
// runs single-threaded.
func New(n, k int, seed hashprg.Block, workers int) (*Code, error) {
	if k <= 0 || n <= k {
		return nil, errors.New("lpn: n must be greater than k > 0")
	}
	if workers < 1 {
		workers = 1
	}
	kMask := uint32(1)
	for int(kMask) < k {
		kMask <<= 1
		kMask |= 1
	}
	return &Code{n: n, k: k, kMask: kMask, seed: seed, workers: workers}, nil
}

// indices derives this row's D compact-vector column indices via one
// PRG call, folding any draw that lands >= k back into range rather
// than rejecting it -- a small, deterministic bias both parties
// reproduce identically, traded for a single PRG call per row.
func (c *Code) indices(row int) [D]int {
	out := hashprg.PRG(c.seed, uint64(row))
	var idx [D]int
	for j := 0; j < D; j++ {
		v := uint32(out[4*j]) | uint32(out[4*j+1])<<8 | uint32(out[4*j+2])<<16 | uint32(out[4*j+3])<<24
		v &= c.kMask
		if int(v) >= c.k {
			v -= uint32(c.k)
		}
		idx[j] = int(v)
	}
	return idx
}

// addRow folds the D compact entries for row into out[row], using the
// 5+5 split so the running accumulator never risks overflowing 64
// bits between reductions (each term is < P < 2^61, and 6 terms before
// a Reduce pass stay under 2^64).
func (c *Code) addRow(out []uint64, compact []uint64, row int) {
	idx := c.indices(row)
	var terms [5]uint64
	for j := 0; j < 5; j++ {
		terms[j] = compact[idx[j]]
	}
	acc := field.AddMany5(out[row], terms)
	for j := 0; j < 5; j++ {
		terms[j] = compact[idx[5+j]]
	}
	out[row] = field.AddMany5(acc, terms)
}

func (c *Code) task(out []uint64, compact []uint64, start, end int) {
	for row := start; row < end; row++ {
		c.addRow(out, compact, row)
	}
}

// Compute expands compact (length k) into out (length n) in place,
// adding each row's D-sparse sum onto whatever out already holds --
// the caller seeds out with the regular-noise vector from MPFSS before
// calling Compute, so the result is noise + LPN(compact).
func (c *Code) Compute(out []uint64, compact []uint64) error {
	if len(out) != c.n {
		return errors.New("lpn: out length mismatch")
	}
	if len(compact) != c.k {
		return errors.New("lpn: compact length mismatch")
	}
	if c.workers <= 1 || c.n < c.workers {
		c.task(out, compact, 0, c.n)
		return nil
	}

	width := c.n / c.workers
	done := make(chan struct{}, c.workers)
	for i := 0; i < c.workers; i++ {
		start := i * width
		end := start + width
		if i == c.workers-1 {
			end = c.n
		}
		go func(start, end int) {
			c.task(out, compact, start, end)
			done <- struct{}{}
		}(start, end)
	}
	for i := 0; i < c.workers; i++ {
		<-done
	}
	return nil
}

// ComputeSend is Compute under the sender's naming -- out holds the
// VOLE y-vector, compact the sender's compact VOLE y-values.
func (c *Code) ComputeSend(y []uint64, compactY []uint64) error {
	return c.Compute(y, compactY)
}

// ComputeRecv is Compute under the receiver's naming -- out holds the
// VOLE z-vector, compact the receiver's compact VOLE z-values.
func (c *Code) ComputeRecv(z []uint64, compactZ []uint64) error {
	return c.Compute(z, compactZ)
}
