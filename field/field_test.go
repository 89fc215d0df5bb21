//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"math/big"
	"math/rand"
	"testing"
)

var bigP = new(big.Int).SetUint64(P)

func refMulMod(a, b uint64) uint64 {
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	r.Mod(r, bigP)
	return r.Uint64()
}

func TestReduceInRange(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := r.Uint64()
		got := Reduce(v)
		if got >= P {
			t.Fatalf("Reduce(%d) = %d, not < P", v, got)
		}
	}
}

func TestAddSub(t *testing.T) {
	a := Reduce(1<<62 + 123)
	b := Reduce(1<<62 + 456)

	sum := Add(a, b)
	if Sub(sum, b) != a {
		t.Fatalf("Sub(Add(a,b),b) != a")
	}
	if Sub(sum, a) != b {
		t.Fatalf("Sub(Add(a,b),a) != b")
	}
}

func TestMulMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		a := Reduce(r.Uint64())
		b := Reduce(r.Uint64())

		got := Mul(a, b)
		want := refMulMod(a, b)
		if got != want {
			t.Fatalf("Mul(%d,%d) = %d, want %d", a, b, got, want)
		}
	}
}

func TestMulEdgeValues(t *testing.T) {
	cases := []uint64{0, 1, 2, P - 1, P / 2}
	for _, a := range cases {
		for _, b := range cases {
			got := Mul(a, b)
			want := refMulMod(a, b)
			if got != want {
				t.Fatalf("Mul(%d,%d) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestPow(t *testing.T) {
	// Fermat: a^(P-1) == 1 mod P for a != 0.
	a := uint64(12345)
	if got := Pow(a, P-1); got != 1 {
		t.Fatalf("Pow(a, P-1) = %d, want 1", got)
	}
	if got := Pow(a, 0); got != 1 {
		t.Fatalf("Pow(a, 0) = %d, want 1", got)
	}
}

func TestNeg(t *testing.T) {
	a := uint64(999)
	if Add(a, Neg(a)) != 0 {
		t.Fatal("a + (-a) != 0")
	}
	if Neg(0) != 0 {
		t.Fatal("-0 != 0")
	}
}

func TestCheckRelation(t *testing.T) {
	delta := uint64(777)
	x := uint64(3)
	y := YElem(5)
	z := Add(Mul(x, delta), uint64(y))

	slot := Slot{X: x, Z: z}
	if !Check(slot, y, delta) {
		t.Fatal("Check() rejected a valid relation")
	}
	slot.Z = Add(slot.Z, 1)
	if Check(slot, y, delta) {
		t.Fatal("Check() accepted a corrupted relation")
	}
}

func TestAddMany5(t *testing.T) {
	terms := [5]uint64{P - 1, P - 1, P - 1, P - 1, P - 1}
	got := AddMany5(P-1, terms)
	want := refAddMany(append([]uint64{P - 1}, terms[:]...))
	if got != want {
		t.Fatalf("AddMany5 = %d, want %d", got, want)
	}
}

func refAddMany(vs []uint64) uint64 {
	sum := new(big.Int)
	for _, v := range vs {
		sum.Add(sum, new(big.Int).SetUint64(v))
	}
	sum.Mod(sum, bigP)
	return sum.Uint64()
}
