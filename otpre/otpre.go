//
// otpre.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package otpre implements pre-correlated OT buffers: a batch of
// random-OT pads generated once and consumed incrementally by SPFSS
// and MPFSS, re-randomized per call via choices_sender/choices_recver
// so a single buffer can serve many chosen-input OTs without a fresh
// base-OT round per call.
package otpre

import (
	"errors"

	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/ot"
)

// ErrExhausted is returned when a Buffer has no remaining capacity for
// the requested block count.
var ErrExhausted = errors.New("otpre: buffer exhausted")

// Buffer holds n = length*times pre-correlated OT pads, consumed
// length blocks at a time by successive Send/Recv calls.
type Buffer struct {
	n      int
	length int
	count  int

	// On the sender side preData holds 2*n pads: preData[0:n] is
	// H(data) and preData[n:2n] is H(data XOR Delta). On the receiver
	// side it holds n pads H(data), with bits recording each index's
	// choice bit.
	preData []hashprg.Block
	bits    []bool

	delta    hashprg.Block
	isSender bool
}

// hashIndexed hashes each of in[0:num] into out[0:num], with the
// absolute index start+i mixed in for domain separation so that
// repeated pad values never hash to the same output.
func hashIndexed(out, in []hashprg.Block, start int) {
	for i, b := range in {
		out[i] = hashprg.KDF(b[:], uint64(start+i))
	}
}

func xorBlocks(dst, a []hashprg.Block, delta hashprg.Block) {
	for i, v := range a {
		dst[i] = v
		dst[i].Xor(delta)
	}
}

// NewSender builds a sender-side Buffer from n = length*times raw
// correlated blocks (data[i] and data[i] XOR delta are the two halves
// of a Delta-correlated OT pair) and the global correlation Delta.
func NewSender(data []hashprg.Block, delta hashprg.Block, length, times int) *Buffer {
	n := length * times
	buf := &Buffer{
		n:        n,
		length:   length,
		preData:  make([]hashprg.Block, 2*n),
		delta:    delta,
		isSender: true,
	}
	hashIndexed(buf.preData[0:n], data[:n], 0)

	xored := make([]hashprg.Block, n)
	xorBlocks(xored, data[:n], delta)
	hashIndexed(buf.preData[n:2*n], xored, 0)

	return buf
}

// NewReceiver builds a receiver-side Buffer from n = length*times raw
// blocks and the matching choice bits for each.
func NewReceiver(data []hashprg.Block, bits []bool, length, times int) *Buffer {
	n := length * times
	buf := &Buffer{
		n:       n,
		length:  length,
		preData: make([]hashprg.Block, n),
		bits:    make([]bool, n),
	}
	copy(buf.bits, bits[:n])
	hashIndexed(buf.preData, data[:n], 0)
	return buf
}

// Reset rewinds the consumed-block cursor to zero so the buffer can be
// reused from the start. The ladder does not call it: every round
// builds a fresh Buffer.
func (b *Buffer) Reset() { b.count = 0 }

// Remaining returns the number of length-sized rounds left in the
// buffer.
func (b *Buffer) Remaining() int {
	return (b.n - b.count) / b.length
}

// ChoicesSender receives the receiver's re-randomized choice bits for
// the next length-sized round and stores them over the buffer's own
// bits, so that Send can be called with the caller's intended choice
// bits already baked in.
func (b *Buffer) ChoicesSender(conn ot.IO) error {
	if b.count+b.length > b.n {
		return ErrExhausted
	}
	data, err := conn.ReceiveData()
	if err != nil {
		return err
	}
	if len(data) != b.length {
		return errors.New("otpre: short choice-bit frame")
	}
	if b.bits == nil {
		b.bits = make([]bool, b.n)
	}
	for i := 0; i < b.length; i++ {
		b.bits[b.count+i] = data[i] != 0
	}
	b.count += b.length
	return nil
}

// ChoicesRecver re-randomizes the next length-sized round of choice
// bits to the caller's desired bits, sending the XOR mask to the
// sender so both sides agree on the adjusted buffer state.
func (b *Buffer) ChoicesRecver(conn ot.IO, want []bool) error {
	if b.count+b.length > b.n {
		return ErrExhausted
	}
	if len(want) != b.length {
		return errors.New("otpre: choice-bit length mismatch")
	}
	out := make([]byte, b.length)
	for i := 0; i < b.length; i++ {
		mixed := want[i] != b.bits[b.count+i]
		b.bits[b.count+i] = mixed
		if mixed {
			out[i] = 1
		}
	}
	if err := conn.SendData(out); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	b.count += b.length
	return nil
}

// Send consumes one length-sized round starting at round index s,
// masking (m0[i], m1[i]) pairs with the buffer's pads according to
// each slot's stored choice bit and sending the masked pair over conn.
func (b *Buffer) Send(conn ot.IO, m0, m1 []hashprg.Block, s int) error {
	if !b.isSender {
		return errors.New("otpre: Send called on a receiver buffer")
	}
	k := s * b.length
	if k+b.length > b.n {
		return ErrExhausted
	}
	for i := 0; i < b.length; i++ {
		var pad0, pad1 hashprg.Block
		if !b.bits[k+i] {
			pad0, pad1 = m0[i], m1[i]
			pad0.Xor(b.preData[k+i])
			pad1.Xor(b.preData[k+i+b.n])
		} else {
			pad0, pad1 = m0[i], m1[i]
			pad0.Xor(b.preData[k+i+b.n])
			pad1.Xor(b.preData[k+i])
		}
		if err := sendBlock(conn, pad0); err != nil {
			return err
		}
		if err := sendBlock(conn, pad1); err != nil {
			return err
		}
	}
	return conn.Flush()
}

// Recv consumes one length-sized round starting at round index s,
// unmasking the pair received over conn according to the caller's
// choice bits b, and writing the recovered blocks into out.
func (buf *Buffer) Recv(conn ot.IO, out []hashprg.Block, b []bool, s int) error {
	if buf.isSender {
		return errors.New("otpre: Recv called on a sender buffer")
	}
	k := s * buf.length
	if k+buf.length > buf.n {
		return ErrExhausted
	}
	for i := 0; i < buf.length; i++ {
		pad0, err := receiveBlock(conn)
		if err != nil {
			return err
		}
		pad1, err := receiveBlock(conn)
		if err != nil {
			return err
		}
		chosen := pad0
		if b[i] {
			chosen = pad1
		}
		chosen.Xor(buf.preData[k+i])
		out[i] = chosen
	}
	return nil
}

func sendBlock(conn ot.IO, blk hashprg.Block) error {
	return conn.SendData(blk[:])
}

func receiveBlock(conn ot.IO) (hashprg.Block, error) {
	var blk hashprg.Block
	data, err := conn.ReceiveData()
	if err != nil {
		return blk, err
	}
	if len(data) != hashprg.BlockSize {
		return blk, errors.New("otpre: short block frame")
	}
	copy(blk[:], data)
	return blk, nil
}
