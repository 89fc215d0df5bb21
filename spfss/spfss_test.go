//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package spfss

import (
	"math/rand"
	"testing"

	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/otpre"
	"github.com/markkurossi/mpvole/p2p"
)

// buildOTCorrelation builds the base-OT-like pre-correlated data that
// otpre.NewSender/NewReceiver need: n random pad values, a Delta, and
// receiver-known values/bits for an arbitrary baked choice.
func buildOTCorrelation(r *rand.Rand, n int) (data []hashprg.Block, delta hashprg.Block, bits []bool, recvData []hashprg.Block) {
	data = make([]hashprg.Block, n)
	recvData = make([]hashprg.Block, n)
	bits = make([]bool, n)
	for i := range data {
		for j := range data[i] {
			data[i][j] = byte(r.Intn(256))
		}
	}
	for j := range delta {
		delta[j] = byte(r.Intn(256))
	}
	for i := range bits {
		bits[i] = r.Intn(2) == 1
		recvData[i] = data[i]
		if bits[i] {
			recvData[i].Xor(delta)
		}
	}
	return
}

func TestSingleInstanceEndToEnd(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const depth = 5 // 16 leaves

	sender, err := NewSender(depth, nil)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewReceiver(depth)
	if err != nil {
		t.Fatal(err)
	}

	length := depth - 1
	data, delta, bakedBits, recvData := buildOTCorrelation(r, length)
	senderBuf := otpre.NewSender(data, delta, length, 1)
	receiverBuf := otpre.NewReceiver(recvData, bakedBits, length, 1)

	connS, connR := p2p.Pipe()

	const target = uint64(777)

	done := make(chan error, 1)
	var recvLeaves []uint64
	go func() {
		if err := receiverBuf.ChoicesRecver(connR, receiver.b); err != nil {
			done <- err
			return
		}
		if err := receiver.Recv(connR, receiverBuf, 0); err != nil {
			done <- err
			return
		}
		recvLeaves = receiver.Compute()
		done <- nil
	}()

	if err := senderBuf.ChoicesSender(connS); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send(connS, senderBuf, 0, target); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	senderLeaves := sender.Leaves()
	alpha := receiver.Index()

	if len(recvLeaves) != len(senderLeaves) {
		t.Fatalf("leaf count mismatch: %d vs %d", len(recvLeaves), len(senderLeaves))
	}
	for i := range senderLeaves {
		want := extractFp(senderLeaves[i])
		if i == alpha {
			want = field.Add(want, target)
		}
		if recvLeaves[i] != want {
			t.Fatalf("leaf %d mismatch: got %d, want %d", i, recvLeaves[i], want)
		}
	}
}

func TestIndexDeterministic(t *testing.T) {
	receiver, err := NewReceiver(4)
	if err != nil {
		t.Fatal(err)
	}
	a := receiver.Index()
	b := receiver.Index()
	if a != b {
		t.Fatal("Index() is not stable across calls")
	}
	if a < 0 || a >= receiver.leaveN {
		t.Fatalf("Index() = %d out of range [0,%d)", a, receiver.leaveN)
	}
}
