//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package vole

import (
	"errors"

	"github.com/markkurossi/mpvole/basecorr"
	"github.com/markkurossi/mpvole/consistency"
	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/lpn"
	"github.com/markkurossi/mpvole/mpfss"
	"github.com/markkurossi/mpvole/ot"
	"github.com/markkurossi/mpvole/otpre"
)

// ErrPoisoned is returned by every call on an instance once its
// consistency check has failed once. A party caught deviating from
// the protocol cannot be trusted to have behaved honestly on any
// prior round either, so the whole instance is abandoned rather than
// only the batch that failed.
var ErrPoisoned = errors.New("vole: instance poisoned by a failed consistency check")

// ParameterError reports an invalid or internally inconsistent Params
// value.
type ParameterError struct {
	Reason string
}

func (e *ParameterError) Error() string { return "vole: " + e.Reason }

// Params sizes one rung of the ladder: N output values per round, T
// MPFSS bins of 2^LogBinSz leaves each (N must equal T*2^LogBinSz),
// and a K-element compact LPN seed. Each round also reserves T
// further values (one GGM tree root per bin, carried forward so the
// next rung's trees grow from this rung's output instead of fresh
// local randomness) and one value blinding that round's consistency
// check; M() accounts for all three.
type Params struct {
	N, T, K, LogBinSz int
}

// BinSize returns 2^LogBinSz, the leaf count of one MPFSS bin.
func (p Params) BinSize() int { return 1 << uint(p.LogBinSz) }

// M returns K+T+1: the K compact values Extend's LPN pass consumes,
// the T GGM tree roots the next rung's MPFSS bins grow from, and one
// reserved value blinding this round's consistency check. M values
// are recycled from the tail of the round just computed (or, for the
// ladder's bootstrap stage, drawn directly from the base sVOLE
// correlation), so no rung past the bootstrap ever needs a fresh
// base-VOLE draw sized to its own K.
func (p Params) M() int { return p.K + p.T + 1 }

// OTLimit returns N-M() = N-T-K-1, the number of values each round
// actually hands out to callers; the remaining M values are consumed
// internally (tree-root and LPN seed for the next round, blinding
// pair for this round's check).
func (p Params) OTLimit() int { return p.N - p.M() }

func (p Params) validate() error {
	if p.T <= 0 || p.LogBinSz <= 0 || p.K <= 0 {
		return &ParameterError{Reason: "t, k and log_bin_sz must be positive"}
	}
	if p.N != p.T*p.BinSize() {
		return &ParameterError{Reason: "n must equal t * 2^log_bin_sz"}
	}
	if p.N <= p.M() {
		return &ParameterError{Reason: "n must exceed t+k+1"}
	}
	return nil
}

// MicroParams is the final, steady-state rung of a small three-stage
// ladder for tests and local experimentation: no production security
// margin, just the right shape (N = T * 2^LogBinSz, N > T+K+1) and
// small enough that MicroLadderParams' bootstrap stages run in a
// fraction of a second.
var MicroParams = Params{N: 64, T: 4, K: 16, LogBinSz: 4}

// CanonicalParams mirrors the production dual-LPN default, the final
// rung of CanonicalLadderParams: 4965 MPFSS bins of 2048 leaves each
// (N = 10168320), a 158000-element compact LPN seed.
var CanonicalParams = Params{N: 10168320, T: 4965, K: 158000, LogBinSz: 11}

// LadderParams is the three-stage bootstrap chain spec.md's "three
// param sets" describe: Stage0 is primed directly from a handful of
// base sVOLE correlations (Stage0.M() of them); its output seeds
// Stage1; Stage1's output seeds Final, the steady-state rung every
// subsequent Extend round re-derives from its own tail. Each stage's
// output must be large enough to hold the next stage's seed:
// Stage0.N >= Stage1.M() and Stage1.N >= Final.M().
type LadderParams struct {
	Stage0, Stage1, Final Params
}

func (lp LadderParams) validate() error {
	if err := lp.Stage0.validate(); err != nil {
		return err
	}
	if err := lp.Stage1.validate(); err != nil {
		return err
	}
	if err := lp.Final.validate(); err != nil {
		return err
	}
	if lp.Stage0.N < lp.Stage1.M() {
		return &ParameterError{Reason: "stage0.n must be at least stage1.m()"}
	}
	if lp.Stage1.N < lp.Final.M() {
		return &ParameterError{Reason: "stage1.n must be at least final.m()"}
	}
	return nil
}

// MicroLadderParams is a small three-stage ladder, shaped like
// CanonicalLadderParams but scaled down for tests: Stage0 bootstraps
// 8 base sVOLEs directly, Stage1 primes the steady state, and Final
// is MicroParams.
var MicroLadderParams = LadderParams{
	Stage0: Params{N: 16, T: 2, K: 5, LogBinSz: 3},
	Stage1: Params{N: 32, T: 4, K: 10, LogBinSz: 3},
	Final:  MicroParams,
}

// CanonicalLadderParams is the production ladder: spec.md §4.6's
// three stages, (9600,600,1220,4) -> (166400,2600,5060,6) ->
// (10168320,4965,158000,11). Stage0's direct base-sVOLE bootstrap
// draws only Stage0.M() = 1821 correlations, not a draw sized to
// Final's 158000-element K -- the sublinear-communication property
// the whole ladder exists to deliver.
var CanonicalLadderParams = LadderParams{
	Stage0: Params{N: 9600, T: 600, K: 1220, LogBinSz: 4},
	Stage1: Params{N: 166400, T: 2600, K: 5060, LogBinSz: 6},
	Final:  CanonicalParams,
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
		return 0, errors.New("vole: short frame")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(data[i]) << (8 * i)
	}
	return v, nil
}

// treeRoot expands a single field element carried forward from the
// previous rung into a 128-bit GGM tree root via hashprg.HashForBlock
// -- repurposing a (secret, uniformly random to the other party)
// field element as seed entropy for the next rung's trees.
func treeRoot(v uint64) hashprg.Block {
	return hashprg.HashForBlock(encodeU64(v))
}

// Sender is the VOLE party holding the global correlation Delta. Its
// Extend calls return the y-halves of the relation z = x*Delta + y.
type Sender struct {
	ladder  LadderParams
	params  Params // Final, once Setup has run
	conn    ot.IO
	delta   uint64
	baseCOT basecorr.BaseCOT
	baseSVOLE basecorr.BaseSVOLE
	lpnSeed   hashprg.Block
	workers   int
	lpnCode   *lpn.Code

	checkSeed    hashprg.Block
	roundCounter uint64

	compactY []uint64
	pending  []uint64
	cursor   int

	otConsumed int64
	poisoned   bool
	setupDone  bool
}

// NewSender constructs the sender side of a ladder instance. The
// returned Sender is not ready to Extend until Setup has run -- the
// constructor does no bootstrap work or network I/O, matching the
// ladder's own construct-then-setup split. lpnSeed and checkSeed must
// match the receiver's values exactly -- both are public protocol
// parameters, not secrets.
func NewSender(ladder LadderParams, conn ot.IO, delta uint64, baseCOT basecorr.BaseCOT,
	baseSVOLE basecorr.BaseSVOLE, lpnSeed, checkSeed hashprg.Block, workers int) (*Sender, error) {
	if err := ladder.validate(); err != nil {
		return nil, err
	}
	return &Sender{
		ladder:    ladder,
		params:    ladder.Final,
		conn:      conn,
		delta:     delta,
		baseCOT:   baseCOT,
		baseSVOLE: baseSVOLE,
		lpnSeed:   lpnSeed,
		workers:   workers,
		checkSeed: checkSeed,
	}, nil
}

// Delta returns the sender's global VOLE correlation scalar.
func (s *Sender) Delta() uint64 { return s.delta }

// OTConsumed returns the total number of base-OT-correlated pads this
// instance has drawn from its BaseCOT across every round so far.
func (s *Sender) OTConsumed() int64 { return s.otConsumed }

// BufSz returns n-t-k-1 at the ladder's final, steady-state rung: the
// number of usable output values each subsequent Extend round
// produces.
func (s *Sender) BufSz() int { return s.params.OTLimit() }

// Setup runs the three-stage bootstrap: Stage0 is primed directly
// from BaseSVOLE, its output seeds Stage1, and Stage1's output seeds
// the Final rung's first round. Must be called exactly once, before
// the first Extend.
func (s *Sender) Setup() error {
	if s.setupDone {
		return errors.New("vole: Setup already ran")
	}
	seed0, err := s.baseSVOLE.GenSender(s.ladder.Stage0.M())
	if err != nil {
		return err
	}

	code0, err := lpn.New(s.ladder.Stage0.N, s.ladder.Stage0.K, hashprg.KDF(s.lpnSeed[:], 0), s.workers)
	if err != nil {
		return err
	}
	out0, err := s.runRound(s.ladder.Stage0, seed0, hashprg.KDF(s.checkSeed[:], 0), code0)
	if err != nil {
		return err
	}

	code1, err := lpn.New(s.ladder.Stage1.N, s.ladder.Stage1.K, hashprg.KDF(s.lpnSeed[:], 1), s.workers)
	if err != nil {
		return err
	}
	seed1 := out0[:s.ladder.Stage1.M()]
	out1, err := s.runRound(s.ladder.Stage1, seed1, hashprg.KDF(s.checkSeed[:], 1), code1)
	if err != nil {
		return err
	}

	s.lpnCode, err = lpn.New(s.params.N, s.params.K, hashprg.KDF(s.lpnSeed[:], 2), s.workers)
	if err != nil {
		return err
	}
	s.compactY = append([]uint64(nil), out1[:s.params.M()]...)
	s.roundCounter = 2
	s.setupDone = true
	return nil
}

// runRound executes one MPFSS+LPN+consistency-check pass for the
// given rung's parameters. seed must hold exactly params.M() field
// elements: seed[0] blinds this round's consistency check, the next
// T seed the GGM tree roots MPFSS grows its bins from, and the
// remaining K feed the LPN compact seed. Returns the round's full
// N-sized output.
func (s *Sender) runRound(params Params, seed []uint64, nonce hashprg.Block, code *lpn.Code) ([]uint64, error) {
	t := params.T
	roots := make([]hashprg.Block, t)
	for i := 0; i < t; i++ {
		roots[i] = treeRoot(seed[1+i])
	}

	mp, err := mpfss.NewSender(t, params.LogBinSz, roots)
	if err != nil {
		return nil, err
	}
	length, times := params.LogBinSz, t
	pads, _, err := s.baseCOT.Gen(length * times)
	if err != nil {
		return nil, err
	}
	s.otConsumed += int64(length * times)
	buf := otpre.NewSender(pads, s.baseCOT.Delta(), length, times)

	y := make([]uint64, params.N)
	if err := mp.Send(s.conn, buf, s.delta, y); err != nil {
		return nil, err
	}
	compactY := seed[1+t:]
	if err := code.ComputeSend(y, compactY); err != nil {
		return nil, err
	}

	otLimit := params.OTLimit()
	y0 := seed[0]
	if err := consistency.SenderCheck(s.conn, nonce, y[:otLimit], s.delta, y0); err != nil {
		s.poisoned = true
		return nil, err
	}
	return y, nil
}

// round runs one steady-state MPFSS+LPN extension at the Final rung,
// checks consistency over the usable portion, and refills the ring
// buffer from the tail.
func (s *Sender) round() error {
	if s.poisoned {
		return ErrPoisoned
	}
	nonce := hashprg.KDF(s.checkSeed[:], s.roundCounter)
	s.roundCounter++
	y, err := s.runRound(s.params, s.compactY, nonce, s.lpnCode)
	if err != nil {
		return err
	}
	otLimit := s.params.OTLimit()
	s.compactY = append([]uint64(nil), y[otLimit:]...)
	s.pending = y[:otLimit]
	s.cursor = 0
	return nil
}

// Extend returns the next n pseudorandom y-values, running as many
// fresh rounds as needed to satisfy the request; a request spanning
// more than one round's OTLimit just drains the ring buffer across
// several rounds transparently.
func (s *Sender) Extend(n int) ([]field.YElem, error) {
	if n <= 0 {
		return nil, errors.New("vole: n must be positive")
	}
	if !s.setupDone {
		return nil, errors.New("vole: Setup must run before Extend")
	}
	if s.poisoned {
		return nil, ErrPoisoned
	}
	out := make([]field.YElem, 0, n)
	for len(out) < n {
		if s.cursor >= len(s.pending) {
			if err := s.round(); err != nil {
				return nil, err
			}
		}
		avail := len(s.pending) - s.cursor
		take := n - len(out)
		if take > avail {
			take = avail
		}
		for i := 0; i < take; i++ {
			out = append(out, field.YElem(s.pending[s.cursor+i]))
		}
		s.cursor += take
	}
	return out, nil
}

// SelfCheck is an explicit, non-silent sanity audit: the sender
// reveals Delta and a hash of y in the clear so the receiver can
// recompute and compare locally. This deliberately breaks the
// relation's usual secrecy and is meant for tests and one-off
// debugging runs, never as part of the protocol's own security.
func (s *Sender) SelfCheck(y []field.YElem) error {
	buf := make([]byte, 0, 8*len(y))
	for _, v := range y {
		buf = append(buf, encodeU64(v.YOf())...)
	}
	digest := hashprg.HashForBlock(buf)
	if err := s.conn.SendData(encodeU64(s.delta)); err != nil {
		return err
	}
	if err := s.conn.SendData(digest[:]); err != nil {
		return err
	}
	return s.conn.Flush()
}

// Receiver is the VOLE party holding the implicit x and the resulting
// z. Its Extend calls return (x, z) slots with z = x*Delta + y.
type Receiver struct {
	ladder  LadderParams
	params  Params // Final, once Setup has run
	conn    ot.IO
	baseCOT basecorr.BaseCOT
	baseSVOLE basecorr.BaseSVOLE
	lpnSeed   hashprg.Block
	workers   int
	lpnCode   *lpn.Code

	checkSeed    hashprg.Block
	roundCounter uint64

	compactX, compactZ []uint64
	pendingX, pendingZ []uint64
	cursor             int

	otConsumed int64
	poisoned   bool
	setupDone  bool
}

// NewReceiver constructs the receiver side of a ladder instance,
// mirroring NewSender. Not ready to Extend until Setup has run.
func NewReceiver(ladder LadderParams, conn ot.IO, baseCOT basecorr.BaseCOT,
	baseSVOLE basecorr.BaseSVOLE, lpnSeed, checkSeed hashprg.Block, workers int) (*Receiver, error) {
	if err := ladder.validate(); err != nil {
		return nil, err
	}
	return &Receiver{
		ladder:    ladder,
		params:    ladder.Final,
		conn:      conn,
		baseCOT:   baseCOT,
		baseSVOLE: baseSVOLE,
		lpnSeed:   lpnSeed,
		workers:   workers,
		checkSeed: checkSeed,
	}, nil
}

// OTConsumed returns the total number of base-OT-correlated pads this
// instance has drawn from its BaseCOT across every round so far.
func (r *Receiver) OTConsumed() int64 { return r.otConsumed }

// BufSz returns n-t-k-1 at the ladder's final, steady-state rung.
func (r *Receiver) BufSz() int { return r.params.OTLimit() }

// Setup mirrors Sender.Setup on the receiver side.
func (r *Receiver) Setup() error {
	if r.setupDone {
		return errors.New("vole: Setup already ran")
	}
	seedX0, seedZ0, err := r.baseSVOLE.GenReceiver(r.ladder.Stage0.M())
	if err != nil {
		return err
	}

	code0, err := lpn.New(r.ladder.Stage0.N, r.ladder.Stage0.K, hashprg.KDF(r.lpnSeed[:], 0), r.workers)
	if err != nil {
		return err
	}
	x0, z0, err := r.runRound(r.ladder.Stage0, seedX0, seedZ0, hashprg.KDF(r.checkSeed[:], 0), code0)
	if err != nil {
		return err
	}

	code1, err := lpn.New(r.ladder.Stage1.N, r.ladder.Stage1.K, hashprg.KDF(r.lpnSeed[:], 1), r.workers)
	if err != nil {
		return err
	}
	m1 := r.ladder.Stage1.M()
	x1, z1, err := r.runRound(r.ladder.Stage1, x0[:m1], z0[:m1], hashprg.KDF(r.checkSeed[:], 1), code1)
	if err != nil {
		return err
	}

	r.lpnCode, err = lpn.New(r.params.N, r.params.K, hashprg.KDF(r.lpnSeed[:], 2), r.workers)
	if err != nil {
		return err
	}
	mf := r.params.M()
	r.compactX = append([]uint64(nil), x1[:mf]...)
	r.compactZ = append([]uint64(nil), z1[:mf]...)
	r.roundCounter = 2
	r.setupDone = true
	return nil
}

// runRound is the receiver's half of runRound. seedX/seedZ must each
// hold exactly params.M() field elements laid out like the sender's
// seed; the receiver never needs the T tree-root slice (GGM trees are
// a sender-only structure) so it only ever reads index 0 (the
// blinding pad) and the trailing K dense values.
func (r *Receiver) runRound(params Params, seedX, seedZ []uint64, nonce hashprg.Block, code *lpn.Code) (x, z []uint64, err error) {
	t := params.T
	mp, err := mpfss.NewReceiver(t, params.LogBinSz)
	if err != nil {
		return nil, nil, err
	}
	length, times := params.LogBinSz, t
	pads, bits, err := r.baseCOT.Gen(length * times)
	if err != nil {
		return nil, nil, err
	}
	r.otConsumed += int64(length * times)
	buf := otpre.NewReceiver(pads, bits, length, times)

	z = make([]uint64, params.N)
	if err := mp.Recv(r.conn, buf, z); err != nil {
		return nil, nil, err
	}
	compactZ := seedZ[1+t:]
	if err := code.ComputeRecv(z, compactZ); err != nil {
		return nil, nil, err
	}

	x = make([]uint64, params.N)
	binSz := params.BinSize()
	for i, pos := range mp.Indices() {
		x[i*binSz+pos] = 1
	}
	compactX := seedX[1+t:]
	if err := code.Compute(x, compactX); err != nil {
		return nil, nil, err
	}

	otLimit := params.OTLimit()
	x0 := seedX[0]
	z0 := seedZ[0]
	if err := consistency.ReceiverCheck(r.conn, nonce, x[:otLimit], z[:otLimit], x0, z0); err != nil {
		r.poisoned = true
		return nil, nil, err
	}
	return x, z, nil
}

func (r *Receiver) round() error {
	if r.poisoned {
		return ErrPoisoned
	}
	nonce := hashprg.KDF(r.checkSeed[:], r.roundCounter)
	r.roundCounter++
	x, z, err := r.runRound(r.params, r.compactX, r.compactZ, nonce, r.lpnCode)
	if err != nil {
		return err
	}
	otLimit := r.params.OTLimit()
	r.compactX = append([]uint64(nil), x[otLimit:]...)
	r.compactZ = append([]uint64(nil), z[otLimit:]...)
	r.pendingX = x[:otLimit]
	r.pendingZ = z[:otLimit]
	r.cursor = 0
	return nil
}

// Extend returns the next n (x, z) slots, running as many fresh
// rounds as needed.
func (r *Receiver) Extend(n int) ([]field.Slot, error) {
	if n <= 0 {
		return nil, errors.New("vole: n must be positive")
	}
	if !r.setupDone {
		return nil, errors.New("vole: Setup must run before Extend")
	}
	if r.poisoned {
		return nil, ErrPoisoned
	}
	out := make([]field.Slot, 0, n)
	for len(out) < n {
		if r.cursor >= len(r.pendingX) {
			if err := r.round(); err != nil {
				return nil, err
			}
		}
		avail := len(r.pendingX) - r.cursor
		take := n - len(out)
		if take > avail {
			take = avail
		}
		for i := 0; i < take; i++ {
			idx := r.cursor + i
			out = append(out, field.Slot{X: r.pendingX[idx], Z: r.pendingZ[idx]})
		}
		r.cursor += take
	}
	return out, nil
}

// SelfCheck is the receiver's half of the explicit sanity audit: it
// receives Delta and the sender's y-hash in the clear, recomputes
// y = z - x*Delta for every slot, and compares hashes.
func (r *Receiver) SelfCheck(slots []field.Slot) error {
	deltaData, err := r.conn.ReceiveData()
	if err != nil {
		return err
	}
	delta, err := decodeU64(deltaData)
	if err != nil {
		return err
	}
	digestData, err := r.conn.ReceiveData()
	if err != nil {
		return err
	}
	if len(digestData) != hashprg.BlockSize {
		return errors.New("vole: short digest frame")
	}
	var want hashprg.Block
	copy(want[:], digestData)

	buf := make([]byte, 0, 8*len(slots))
	for _, slot := range slots {
		y := field.Sub(slot.Z, field.Mul(slot.X, delta))
		buf = append(buf, encodeU64(y)...)
	}
	got := hashprg.HashForBlock(buf)
	if got != want {
		return ErrPoisoned
	}
	return nil
}
