//
// basecorr.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package basecorr supplies the base correlations the ladder bootstraps
// from: Delta-correlated OT pads for the lowest otpre.Buffer, and a
// small compact VOLE correlation over F_p for the ladder's very first
// rung, before any MPFSS/LPN expansion exists to produce one. Two
// implementations are provided: Mock, a synchronized-PRG stand-in with
// no network round trips at all, for benchmarking and for seeding the
// ladder's bootstrap stages; and COT, wired to the real IKNP OT
// extension for an actually secure base layer.
package basecorr

import (
	crand "crypto/rand"
	"errors"
	"io"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/ot"
)

// BaseCOT supplies the raw Delta-correlated OT pads an otpre.Buffer is
// built from.
type BaseCOT interface {
	// Gen draws n correlated pads. The sender gets the n raw pads; the
	// receiver gets the n masked pads plus the choice bit baked into
	// each.
	Gen(n int) (pads []hashprg.Block, bits []bool, err error)

	// Delta returns the OT-extension correlation (distinct from the
	// ladder's own VOLE delta) the sender side fixed for every pad
	// this instance ever generates. An otpre.Buffer's sender half
	// needs this value explicitly; the receiver side never calls it.
	Delta() hashprg.Block
}

var (
	_ BaseCOT = &MockCOT{}
	_ BaseCOT = &COT{}

	_ BaseSVOLE = &MockSVOLE{}
)

// BaseSVOLE supplies the bootstrap compact VOLE correlation over F_p:
// z = x*Delta + y.
type BaseSVOLE interface {
	// GenSender returns the sender's y values for n instances.
	GenSender(n int) (y []uint64, err error)

	// GenReceiver returns the receiver's (x, z) values for n instances.
	GenReceiver(n int) (x, z []uint64, err error)
}

// mockCOTSeed and mockSVOLESeed are fixed seeds both parties derive
// identically from via hashprg.PRG -- a synchronized-PRG stand-in for
// a real base-OT/base-VOLE round that crosses no bytes on the wire at
// all. NOT SECURE: strictly for bootstrapping the ladder in tests and
// benchmarks.
var (
	mockDeltaSeed = hashprg.Block{
		0xde, 0x17, 0xaf, 0x00, 0xde, 0x17, 0xaf, 0x00,
		0x00, 0xf0, 0x17, 0xa0, 0x00, 0xf0, 0x17, 0xa0,
	}
	mockCOTSeed = hashprg.Block{
		0x12, 0x34, 0x56, 0x78, 0x90, 0xab, 0xcd, 0xef,
		0xfe, 0xdc, 0xba, 0x09, 0x87, 0x65, 0x43, 0x21,
	}
	mockSVOLESeed = hashprg.Block{
		0x12, 0x34, 0x56, 0x78, 0xab, 0xcd, 0xef, 0x00,
		0xfe, 0xdc, 0xba, 0x98, 0x76, 0x54, 0x32, 0x10,
	}
)

func blockToU64(b [hashprg.PRGOutputSize]byte, ofs int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[ofs+i]) << (8 * i)
	}
	return v
}

// MockDelta derives the global VOLE correlation scalar both mock
// parties hardcode from the same fixed seed.
func MockDelta() uint64 {
	out := hashprg.PRG(mockDeltaSeed, 0)
	return field.Reduce(blockToU64(out, 0))
}

// MockCOT is a BaseCOT driven by a synchronized counter PRG instead of
// a real base-OT protocol: both parties derive the same random stream
// from the same fixed seed, so nothing crosses the wire.
type MockCOT struct {
	delta    hashprg.Block
	counter  uint64
	isSender bool
}

// NewMockCOTSender creates the sender side of a mock Delta-correlated
// OT source.
func NewMockCOTSender(delta hashprg.Block) *MockCOT {
	return &MockCOT{delta: delta, isSender: true}
}

// NewMockCOTReceiver creates the receiver side of a mock
// Delta-correlated OT source.
func NewMockCOTReceiver(delta hashprg.Block) *MockCOT {
	return &MockCOT{delta: delta}
}

// Delta implements BaseCOT.
func (m *MockCOT) Delta() hashprg.Block { return m.delta }

// Gen implements BaseCOT.
func (m *MockCOT) Gen(n int) ([]hashprg.Block, []bool, error) {
	pads := make([]hashprg.Block, n)
	bits := make([]bool, n)
	for i := 0; i < n; i++ {
		out := hashprg.PRG(mockCOTSeed, m.counter)
		m.counter++

		var pad hashprg.Block
		copy(pad[:], out[0:hashprg.BlockSize])
		bit := out[hashprg.BlockSize]&1 == 1

		if m.isSender {
			pads[i] = pad
			continue
		}
		bits[i] = bit
		if bit {
			pad.Xor(m.delta)
		}
		pads[i] = pad
	}
	return pads, bits, nil
}

// MockSVOLE is a BaseSVOLE driven by the same synchronized-PRG
// construction as MockCOT: both parties derive x, y (and hence z)
// independently from one fixed seed, no communication required. Its
// bootstrap pair always satisfies z = x*MockDelta()+y, so a ladder
// built on MockSVOLE must be constructed with delta = MockDelta() --
// any other delta makes the very first round's consistency check fail
// even between two honest parties.
type MockSVOLE struct {
	delta    uint64
	counter  uint64
	isSender bool
}

// NewMockSVOLESender creates the sender side of a mock compact VOLE
// source.
func NewMockSVOLESender() *MockSVOLE {
	return &MockSVOLE{delta: MockDelta(), isSender: true}
}

// NewMockSVOLEReceiver creates the receiver side of a mock compact
// VOLE source.
func NewMockSVOLEReceiver() *MockSVOLE {
	return &MockSVOLE{delta: MockDelta()}
}

func (m *MockSVOLE) draw() (x, y uint64) {
	out := hashprg.PRG(mockSVOLESeed, m.counter)
	m.counter++
	return field.Reduce(blockToU64(out, 0)), field.Reduce(blockToU64(out, 8))
}

// GenSender implements BaseSVOLE.
func (m *MockSVOLE) GenSender(n int) ([]uint64, error) {
	if !m.isSender {
		return nil, errors.New("basecorr: GenSender called on a receiver instance")
	}
	y := make([]uint64, n)
	for i := 0; i < n; i++ {
		_, yi := m.draw()
		y[i] = yi
	}
	return y, nil
}

// GenReceiver implements BaseSVOLE.
func (m *MockSVOLE) GenReceiver(n int) (x, z []uint64, err error) {
	if m.isSender {
		return nil, nil, errors.New("basecorr: GenReceiver called on a sender instance")
	}
	x = make([]uint64, n)
	z = make([]uint64, n)
	for i := 0; i < n; i++ {
		xi, yi := m.draw()
		x[i] = xi
		z[i] = field.Add(field.Mul(xi, m.delta), yi)
	}
	return x, z, nil
}

// COT is a BaseCOT backed by the real IKNP OT extension over a Chou-
// Orlandi base OT -- a genuinely secure, if slower, source of
// Delta-correlated pads, for production deployments that cannot accept
// Mock's benchmarking shortcut.
type COT struct {
	sender   *ot.IKNPSender
	receiver *ot.IKNPReceiver
}

// NewCOTSender runs the Chou-Orlandi base OT and IKNP setup for the
// sender side, fixing delta as the global OT-extension correlation.
// delta may be nil to draw a fresh random correlation.
func NewCOTSender(conn ot.IO, r io.Reader, delta *ot.Label) (*COT, error) {
	base := ot.NewCO()
	if err := base.InitSender(conn); err != nil {
		return nil, err
	}
	s, err := ot.NewIKNPSender(base, conn, r, delta)
	if err != nil {
		return nil, err
	}
	return &COT{sender: s}, nil
}

// NewCOTReceiver runs the Chou-Orlandi base OT and IKNP setup for the
// receiver side.
func NewCOTReceiver(conn ot.IO, r io.Reader) (*COT, error) {
	base := ot.NewCO()
	if err := base.InitReceiver(conn); err != nil {
		return nil, err
	}
	recv, err := ot.NewIKNPReceiver(base, conn, r)
	if err != nil {
		return nil, err
	}
	return &COT{receiver: recv}, nil
}

// Delta implements BaseCOT. The receiver side never learns the
// sender's OT-extension correlation and returns the zero block, which
// callers must not use.
func (c *COT) Delta() hashprg.Block {
	if c.sender == nil {
		return hashprg.Block{}
	}
	var ld ot.LabelData
	var out hashprg.Block
	copy(out[:], c.sender.Delta.Bytes(&ld))
	return out
}

// Gen implements BaseCOT. The sender side returns nil bits (only the
// receiver knows the choice bits baked into its pads); the receiver
// side draws n fresh random choice bits and returns them alongside the
// resulting masked pads.
func (c *COT) Gen(n int) ([]hashprg.Block, []bool, error) {
	var ld ot.LabelData

	if c.sender != nil {
		labels, err := c.sender.Send(n)
		if err != nil {
			return nil, nil, err
		}
		out := make([]hashprg.Block, n)
		for i, l := range labels {
			copy(out[i][:], l.Bytes(&ld))
		}
		return out, nil, nil
	}

	bits := make([]bool, n)
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return nil, nil, err
	}
	for i, v := range buf {
		bits[i] = v&1 == 1
	}

	labels, err := c.receiver.Receive(bits)
	if err != nil {
		return nil, nil, err
	}
	out := make([]hashprg.Block, n)
	for i, l := range labels {
		copy(out[i][:], l.Bytes(&ld))
	}
	return out, bits, nil
}
