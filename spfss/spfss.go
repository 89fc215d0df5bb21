//
// spfss.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package spfss implements single-point function secret sharing over a
// GGM tree: a sender holds a full binary tree of pseudorandom labels
// and a target value beta; a receiver learns every leaf except one
// punctured position alpha, plus a cleartext share from which it
// derives leaf[alpha]+beta at that position, so its vector differs
// from the sender's by beta at alpha and nowhere else. This is the building block MPFSS composes t-wise into a
// regular-noise vector for the LPN expansion.
package spfss

import (
	"crypto/rand"
	"errors"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/ot"
	"github.com/markkurossi/mpvole/otpre"
)

// ErrConsistency is returned when a consistency check's two sides
// disagree, indicating a malicious or corrupted peer.
var ErrConsistency = errors.New("spfss: consistency check failed")

// extractFp reduces a GGM leaf label to a single field element by
// taking its low 8 bytes as a little endian uint64 and folding into
// [0, P).
func extractFp(b hashprg.Block) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return field.Reduce(v)
}

// Sender holds the full GGM tree for one SPFSS instance.
type Sender struct {
	depth  int
	leaveN int
	layers [][]hashprg.Block
	prp    hashprg.TwoKeyPRP
}

// NewSender builds a fresh GGM tree of the given depth (2^(depth-1)
// leaves) from a random root, or from root if non-nil (mpfss passes
// the roots the ladder carries forward from its previous rung).
func NewSender(depth int, root *hashprg.Block) (*Sender, error) {
	if depth < 2 {
		return nil, errors.New("spfss: depth must be >= 2")
	}
	s := &Sender{
		depth: depth,
		leaveN: 1 << (depth - 1),
	}

	var r hashprg.Block
	if root != nil {
		r = *root
	} else if _, err := rand.Read(r[:]); err != nil {
		return nil, err
	}

	s.layers = make([][]hashprg.Block, depth)
	s.layers[0] = []hashprg.Block{r}
	for d := 1; d < depth; d++ {
		prev := s.layers[d-1]
		cur := make([]hashprg.Block, len(prev)*2)
		for i, parent := range prev {
			c0, c1 := s.prp.Expand(parent)
			cur[2*i] = c0
			cur[2*i+1] = c1
		}
		s.layers[d] = cur
	}
	return s, nil
}

// Leaves returns the sender's full leaf layer.
func (s *Sender) Leaves() []hashprg.Block {
	return s.layers[s.depth-1]
}

// Values returns the sender's leaves reduced to field elements, in
// leaf order.
func (s *Sender) Values() []uint64 {
	leaves := s.Leaves()
	out := make([]uint64, len(leaves))
	for i, leaf := range leaves {
		out[i] = extractFp(leaf)
	}
	return out
}

// Send transmits, for every layer 1..depth-1, the XOR of that layer's
// left children and the XOR of its right children through the shared
// otpre buffer at round s, and finally the sum of the whole leaf
// vector plus target in the clear -- a value the sender can compute
// without knowing which leaf the receiver is missing, and the one
// piece of information the receiver needs to solve for target+leaf
// at that position without ever learning the leaf alone. In the
// ladder, target is the global VOLE Delta: the receiver recovers
// leaf[alpha]+Delta directly, never leaf[alpha] by itself.
func (s *Sender) Send(conn ot.IO, buf *otpre.Buffer, round int, target uint64) error {
	m0 := make([]hashprg.Block, s.depth-1)
	m1 := make([]hashprg.Block, s.depth-1)
	for d := 1; d < s.depth; d++ {
		var left, right hashprg.Block
		for i, n := range s.layers[d] {
			if i%2 == 0 {
				left.Xor(n)
			} else {
				right.Xor(n)
			}
		}
		m0[d-1] = left
		m1[d-1] = right
	}
	if err := buf.Send(conn, m0, m1, round); err != nil {
		return err
	}

	sum := uint64(0)
	for _, leaf := range s.Leaves() {
		sum = field.Add(sum, extractFp(leaf))
	}
	return sendUint64(conn, field.Add(sum, target))
}

func sendUint64(conn ot.IO, v uint64) error {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	if err := conn.SendData(buf[:]); err != nil {
		return err
	}
	return conn.Flush()
}

func receiveUint64(conn ot.IO) (uint64, error) {
	data, err := conn.ReceiveData()
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.New("spfss: short share frame")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(data[i]) << (8 * i)
	}
	return v, nil
}

// Receiver reconstructs every GGM leaf except the punctured position,
// then derives leaf[alpha]+target at the punctured position from the
// sender's cleartext share alone; it never learns target itself.
type Receiver struct {
	depth     int
	leaveN    int
	b         []bool
	m         []hashprg.Block
	share     uint64
	ggmTree   []hashprg.Block
	choicePos int
	prp       hashprg.TwoKeyPRP
}

// NewReceiver creates a receiver for an instance of the given depth,
// drawing depth-1 random choice bits that determine the punctured leaf
// position.
func NewReceiver(depth int) (*Receiver, error) {
	if depth < 2 {
		return nil, errors.New("spfss: depth must be >= 2")
	}
	r := &Receiver{
		depth:  depth,
		leaveN: 1 << (depth - 1),
		b:      make([]bool, depth-1),
		m:      make([]hashprg.Block, depth-1),
	}
	buf := make([]byte, depth-1)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	for i, v := range buf {
		r.b[i] = v&1 == 1
	}
	return r, nil
}

// Bits returns the receiver's depth-1 raw choice bits, the value an
// otpre.Buffer's ChoicesRecver needs to re-randomize its baked bits
// into this instance's actual puncture path.
func (r *Receiver) Bits() []bool { return r.b }

// Index returns the punctured leaf position alpha implied by the
// receiver's choice bits.
func (r *Receiver) Index() int {
	pos := 0
	for _, bit := range r.b {
		pos <<= 1
		if !bit {
			pos++
		}
	}
	r.choicePos = pos
	return pos
}

// Recv receives the depth-1 layer sums via the shared otpre buffer at
// round s, plus the sender's cleartext share correction.
func (r *Receiver) Recv(conn ot.IO, buf *otpre.Buffer, round int) error {
	if err := buf.Recv(conn, r.m, r.b, round); err != nil {
		return err
	}
	share, err := receiveUint64(conn)
	if err != nil {
		return err
	}
	r.share = share
	return nil
}

// reconstruct fills every node of the GGM tree except the path leading
// to the punctured leaf, using the per-layer sibling-parity sums m and
// the known-branch expansion via the two-key PRP.
func (r *Receiver) reconstruct() {
	r.ggmTree = make([]hashprg.Block, 2*r.leaveN)
	toFill := 0
	for i := 1; i < r.depth; i++ {
		toFill *= 2
		r.ggmTree[toFill] = hashprg.Block{}
		r.ggmTree[toFill+1] = hashprg.Block{}

		itemN := 1 << i
		if !r.b[i-1] {
			r.layerRecover(0, toFill, r.m[i-1], itemN)
			toFill++
		} else {
			r.layerRecover(1, toFill+1, r.m[i-1], itemN)
		}

		if i == r.depth-1 {
			continue
		}
		for j := itemN - 1; j >= 0; j-- {
			c0, c1 := r.prp.Expand(r.ggmTree[j])
			r.ggmTree[j*2] = c0
			r.ggmTree[j*2+1] = c1
		}
	}
}

// layerRecover fills ggmTree[toFill] with the XOR of the already-known
// same-parity nodes at this layer combined with the sender's sum for
// that parity, recovering the one node still missing.
func (r *Receiver) layerRecover(lr, toFill int, sum hashprg.Block, itemN int) {
	start := 0
	if lr == 1 {
		start = 1
	}
	var nodesSum hashprg.Block
	for i := start; i < itemN; i += 2 {
		nodesSum.Xor(r.ggmTree[i])
	}
	nodesSum.Xor(sum)
	r.ggmTree[toFill] = nodesSum
}

// Compute reconstructs the tree and returns the receiver's field
// elements for every leaf. For every leaf but the punctured position
// the result matches the sender's real leaf value exactly; at the
// punctured position the result is leaf[alpha] + target, recovered
// directly from the sender's cleartext share without the receiver
// ever learning leaf[alpha] or target individually -- letting a
// single SPFSS instance produce one coordinate of regular noise: zero
// everywhere except a target-shifted value at exactly one position.
func (r *Receiver) Compute() []uint64 {
	r.reconstruct()
	pos := r.Index()

	leaves := r.ggmTree[:r.leaveN]
	saved := leaves[pos]
	leaves[pos] = hashprg.Block{}

	otherSum := uint64(0)
	for _, leaf := range leaves {
		otherSum = field.Add(otherSum, extractFp(leaf))
	}
	recovered := field.Sub(r.share, otherSum)

	out := make([]uint64, r.leaveN)
	for i, leaf := range leaves {
		if i == pos {
			out[i] = recovered
		} else {
			out[i] = extractFp(leaf)
		}
	}
	leaves[pos] = saved
	return out
}
