//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package vole implements a silent vector oblivious linear evaluation
// (VOLE) engine over the Mersenne field F_p, p = 2^61-1.
//
// Two parties, a Sender holding a global scalar Delta and a Receiver
// holding nothing from the relation up front, run a short interactive
// Setup and then call Extend repeatedly with no further network round
// trips beyond what a fresh GGM-tree round needs: each Extend call
// returns a batch of correlated field elements
//
//	z[i] = x[i]*Delta + y[i] mod p
//
// the Sender's half as []field.YElem (y only, Delta stays implicit),
// the Receiver's half as []field.Slot (x, z). Values on both sides are
// individually pseudorandom; the only thing either side learns about
// the other's secret is what the relation above implies.
//
// Internally each Extend call advances a ring cursor over one "rung"
// of the ladder: a multi-point FSS pass (mpfss) produces
// t*2^logBinSz values of regular noise, a dual-LPN pass (lpn)
// compresses k compact correlated values on top of that noise into
// the full rung, and the last M = K+T+1 values of the rung are held
// back as the next round's seed: one value blinds that round's
// malicious-security consistency check (consistency), T become its
// GGM tree roots and K its LPN input. The very first
// rung's compact seed comes from a base VOLE correlation (basecorr)
// too small to need any FSS/LPN machinery of its own -- the ladder's
// bootstrap floor.
//
// A failed consistency check poisons the instance: ErrPoisoned is
// returned from every subsequent call, since a party caught cheating
// once cannot be trusted to have behaved honestly before either.
package vole
