//
// mpfss.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package mpfss implements multi-point function secret sharing: t
// independent SPFSS instances, one per bin of 2^logBinSz leaves,
// composed into a single regular-noise vector of length
// n = t * 2^logBinSz. Each bin carries exactly one nonzero noise
// coordinate, at a position the sender never learns -- the shape the
// dual-LPN expansion needs for its error vector. Only the sender
// supplies the global VOLE delta (Send); the receiver's reconstructed
// vector comes out delta-shifted at each bin's punctured position
// without the receiver ever learning delta or the plain leaf value
// there.
package mpfss

import (
	"errors"

	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/ot"
	"github.com/markkurossi/mpvole/otpre"
	"github.com/markkurossi/mpvole/spfss"
)

// Sender drives t SPFSS sender instances, one per bin.
type Sender struct {
	t, logBinSz, binSz, n int
	instances              []*spfss.Sender
}

// NewSender builds a fresh sender for t bins of 2^logBinSz leaves
// each. roots, if non-nil, must hold exactly t GGM tree roots -- one
// per bin, carried forward from the ladder's previous rung so that
// rung's output deterministically seeds this one instead of drawing
// fresh local randomness. A nil roots draws every tree from
// crypto/rand instead, which is fine for a one-off instance with no
// rung to descend from (tests, benchmarks).
func NewSender(t, logBinSz int, roots []hashprg.Block) (*Sender, error) {
	if t <= 0 || logBinSz < 1 {
		return nil, errors.New("mpfss: invalid parameters")
	}
	if roots != nil && len(roots) != t {
		return nil, errors.New("mpfss: roots length must equal t")
	}
	depth := logBinSz + 1
	s := &Sender{
		t:         t,
		logBinSz:  logBinSz,
		binSz:     1 << logBinSz,
		n:         t << logBinSz,
		instances: make([]*spfss.Sender, t),
	}
	for i := 0; i < t; i++ {
		var root *hashprg.Block
		if roots != nil {
			root = &roots[i]
		}
		inst, err := spfss.NewSender(depth, root)
		if err != nil {
			return nil, err
		}
		s.instances[i] = inst
	}
	return s, nil
}

// TreeHeight returns the GGM tree depth shared by every bin;
// TreeHeight()-1 (= logBinSz) is the length an otpre.Buffer must be
// configured with.
func (s *Sender) TreeHeight() int { return s.logBinSz + 1 }

// TreeN returns t, the times an otpre.Buffer must be configured with.
func (s *Sender) TreeN() int { return s.t }

// N returns the full output vector length t * 2^logBinSz.
func (s *Sender) N() int { return s.n }

// Send drives all t SPFSS instances over the shared otpre buffer,
// folding delta (the global VOLE correlation, known only to the
// sender) into each bin's punctured position so the receiver's
// reconstructed vector comes out Delta-shifted there without ever
// seeing delta or the sender's true leaf value individually. Writes
// the resulting regular-noise vector into y, which must have length
// N().
func (s *Sender) Send(conn ot.IO, buf *otpre.Buffer, delta uint64, y []uint64) error {
	if len(y) != s.n {
		return errors.New("mpfss: output length mismatch")
	}
	for i, inst := range s.instances {
		if err := buf.ChoicesSender(conn); err != nil {
			return err
		}
		if err := inst.Send(conn, buf, i, delta); err != nil {
			return err
		}
		copy(y[i*s.binSz:(i+1)*s.binSz], inst.Values())
	}
	return nil
}

// Receiver drives t SPFSS receiver instances, one per bin.
type Receiver struct {
	t, logBinSz, binSz, n int
	instances              []*spfss.Receiver
}

// NewReceiver builds a fresh receiver for t bins of 2^logBinSz leaves
// each.
func NewReceiver(t, logBinSz int) (*Receiver, error) {
	if t <= 0 || logBinSz < 1 {
		return nil, errors.New("mpfss: invalid parameters")
	}
	depth := logBinSz + 1
	r := &Receiver{
		t:         t,
		logBinSz:  logBinSz,
		binSz:     1 << logBinSz,
		n:         t << logBinSz,
		instances: make([]*spfss.Receiver, t),
	}
	for i := 0; i < t; i++ {
		inst, err := spfss.NewReceiver(depth)
		if err != nil {
			return nil, err
		}
		r.instances[i] = inst
	}
	return r, nil
}

// TreeHeight returns the GGM tree depth shared by every bin.
func (r *Receiver) TreeHeight() int { return r.logBinSz + 1 }

// TreeN returns t.
func (r *Receiver) TreeN() int { return r.t }

// N returns the full output vector length t * 2^logBinSz.
func (r *Receiver) N() int { return r.n }

// Recv drives all t SPFSS instances over the shared otpre buffer and
// writes the resulting vector into z, which must have length N(). The
// receiver never supplies or learns delta: each bin's punctured
// position already comes out Delta-shifted from the sender's
// cleartext share.
func (r *Receiver) Recv(conn ot.IO, buf *otpre.Buffer, z []uint64) error {
	if len(z) != r.n {
		return errors.New("mpfss: output length mismatch")
	}
	for i, inst := range r.instances {
		if err := buf.ChoicesRecver(conn, inst.Bits()); err != nil {
			return err
		}
		if err := inst.Recv(conn, buf, i); err != nil {
			return err
		}
		copy(z[i*r.binSz:(i+1)*r.binSz], inst.Compute())
	}
	return nil
}

// Indices returns the punctured leaf position within each bin, in bin
// order -- the regular-noise vector's nonzero coordinates are
// i*binSz + Indices()[i].
func (r *Receiver) Indices() []int {
	out := make([]int, len(r.instances))
	for i, inst := range r.instances {
		out[i] = inst.Index()
	}
	return out
}
