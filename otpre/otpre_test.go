//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package otpre

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/p2p"
)

// buildCorrelated returns the sender's n raw pad values, the global
// Delta, the baked receiver choice bits, and the matching receiver-side
// values x_r = data[i] xor (r_i ? Delta : 0) -- a stand-in for what a
// real base-OT round would have produced.
func buildCorrelated(r *rand.Rand, n int) (data []hashprg.Block, delta hashprg.Block, bits []bool, recvData []hashprg.Block) {
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

func TestSendRecvRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const length = 4
	const times = 3
	n := length * times

	data, delta, bits, recvData := buildCorrelated(r, n)

	sender := NewSender(data, delta, length, times)
	receiver := NewReceiver(recvData, bits, length, times)

	connS, connR := p2p.Pipe()

	want := make([]bool, length)
	for i := range want {
		want[i] = r.Intn(2) == 1
	}

	m0 := make([]hashprg.Block, length)
	m1 := make([]hashprg.Block, length)
	for i := range m0 {
		for j := range m0[i] {
			m0[i][j] = byte(r.Intn(256))
			m1[i][j] = byte(r.Intn(256))
		}
	}

	done := make(chan error, 1)
	go func() {
		if err := receiver.ChoicesRecver(connR, want); err != nil {
			done <- err
			return
		}
		out := make([]hashprg.Block, length)
		if err := receiver.Recv(connR, out, want, 0); err != nil {
			done <- err
			return
		}
		for i := range out {
			expect := m0[i]
			if want[i] {
				expect = m1[i]
			}
			if out[i] != expect {
				done <- fmt.Errorf("recovered block mismatch at index %d", i)
				return
			}
		}
		done <- nil
	}()

	if err := sender.ChoicesSender(connS); err != nil {
		t.Fatalf("ChoicesSender: %v", err)
	}
	if err := sender.Send(connS, m0, m1, 0); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestBufferExhaustion(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	const length = 2
	const times = 1
	n := length * times

	data, delta, bits, recvData := buildCorrelated(r, n)
	sender := NewSender(data, delta, length, times)
	receiver := NewReceiver(recvData, bits, length, times)

	connS, connR := p2p.Pipe()

	if got := sender.Remaining(); got != times {
		t.Fatalf("Remaining() = %d, want %d", got, times)
	}

	done := make(chan error, 1)
	go func() {
		want := bits
		done <- receiver.ChoicesRecver(connR, want)
	}()
	if err := sender.ChoicesSender(connS); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if sender.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0 after consuming the only round", sender.Remaining())
	}

	if err := sender.ChoicesSender(connS); err != ErrExhausted {
		t.Fatalf("ChoicesSender on exhausted buffer = %v, want ErrExhausted", err)
	}
}
