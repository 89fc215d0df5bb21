//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package consistency

import (
	"math/rand"
	"testing"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/p2p"
)

// buildCorrelation builds n honest VOLE pairs plus one extra blinding
// pair: receiver holds x[i],x0 and z[i]=x[i]*delta+y[i], z0=x0*delta+y0;
// sender holds delta and y[i],y0.
func buildCorrelation(r *rand.Rand, n int) (x []uint64, z []uint64, y []uint64, x0, z0, y0, delta uint64) {
	delta = field.Reduce(r.Uint64())
	x0 = field.Reduce(r.Uint64())
	y0 = field.Reduce(r.Uint64())
	z0 = field.Add(field.Mul(x0, delta), y0)

	x = make([]uint64, n)
	y = make([]uint64, n)
	z = make([]uint64, n)
	for i := 0; i < n; i++ {
		x[i] = field.Reduce(r.Uint64())
		y[i] = field.Reduce(r.Uint64())
		z[i] = field.Add(field.Mul(x[i], delta), y[i])
	}
	return
}

func TestCheckHonestPasses(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const n = 8
	x, z, y, x0, z0, y0, delta := buildCorrelation(r, n)

	seed := hashprg.Block{1, 2, 3}

	connS, connR := p2p.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- SenderCheck(connS, seed, y, delta, y0)
	}()

	if err := ReceiverCheck(connR, seed, x, z, x0, z0); err != nil {
		t.Fatalf("ReceiverCheck: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SenderCheck: %v", err)
	}
}

func TestCheckDetectsTamperedZ(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	const n = 8
	x, z, y, x0, z0, y0, delta := buildCorrelation(r, n)

	// Corrupt one coordinate of the receiver's z vector, as a cheating
	// receiver or a transmission fault would.
	z[3] = field.Add(z[3], 1)

	seed := hashprg.Block{9, 9, 9}

	connS, connR := p2p.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- SenderCheck(connS, seed, y, delta, y0)
	}()

	err := ReceiverCheck(connR, seed, x, z, x0, z0)
	if err != ErrMismatch {
		t.Fatalf("ReceiverCheck with tampered z = %v, want ErrMismatch", err)
	}
	<-done
}

func TestFromShareDeterministic(t *testing.T) {
	a := FromShare(123)
	b := FromShare(123)
	if a != b {
		t.Fatal("FromShare is not deterministic")
	}
	c := FromShare(124)
	if a == c {
		t.Fatal("FromShare did not vary with its input")
	}
}

func TestCoeffsLength(t *testing.T) {
	seed := hashprg.Block{5}
	chi := Coeffs(seed, 10)
	if len(chi) != 10 {
		t.Fatalf("len(Coeffs) = %d, want 10", len(chi))
	}
	for _, c := range chi {
		if c == 0 {
			t.Fatal("Coeffs produced a zero coefficient")
		}
	}
}
