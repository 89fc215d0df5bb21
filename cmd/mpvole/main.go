//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Command mpvole runs a two-party silent-VOLE extension and reports
// per-stage timing and throughput.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/markkurossi/mpvole/basecorr"
	"github.com/markkurossi/mpvole/field"
	"github.com/markkurossi/mpvole/hashprg"
	"github.com/markkurossi/mpvole/p2p"
	"github.com/markkurossi/mpvole/vole"
	"github.com/markkurossi/tabulate"
)

var sizes = map[string]vole.LadderParams{
	"micro":     vole.MicroLadderParams,
	"canonical": vole.CanonicalLadderParams,
}

var (
	lpnSeed   = hashprg.Block{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	checkSeed = hashprg.Block{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
)

func main() {
	role := flag.String("role", "", "sender or receiver (network mode only)")
	addr := flag.String("addr", ":9143", "network address: sender dials it, receiver listens on it")
	size := flag.String("size", "micro", "parameter set: micro or canonical")
	n := flag.Int("n", 0, "number of correlated values to extend (0 selects one round's OTLimit)")
	workers := flag.Int("workers", 4, "goroutine count for the LPN expansion")
	realOT := flag.Bool("real-ot", false, "use the real Chou-Orlandi/IKNP base OT instead of the mock stand-in")
	selfCheck := flag.Bool("self-check", false, "run the cleartext SelfCheck audit after extending")
	flag.Parse()

	log.SetFlags(0)

	ladder, ok := sizes[*size]
	if !ok {
		log.Fatalf("unknown -size %q, want micro or canonical", *size)
	}

	if *role == "" {
		runLocal(ladder, *n, *workers, *selfCheck)
		return
	}

	switch *role {
	case "sender":
		if err := runNetworkSender(*addr, ladder, *n, *workers, *realOT, *selfCheck); err != nil {
			log.Fatal(err)
		}
	case "receiver":
		if err := runNetworkReceiver(*addr, ladder, *n, *workers, *realOT, *selfCheck); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown -role %q, want sender or receiver", *role)
	}
}

// runLocal drives both sides of the ladder in-process over a p2p.Pipe,
// entirely on the mock base correlations -- the quickest way to see a
// throughput number with no second process or network address needed.
func runLocal(ladder vole.LadderParams, n, workers int, selfCheck bool) {
	connS, connR := p2p.Pipe()
	delta := basecorr.MockDelta()
	cotS := basecorr.NewMockCOTSender(mockOTDelta)
	cotR := basecorr.NewMockCOTReceiver(mockOTDelta)
	svoleS := basecorr.NewMockSVOLESender()
	svoleR := basecorr.NewMockSVOLEReceiver()

	if n <= 0 {
		n = ladder.Final.OTLimit()
	}

	report := newReport()

	sender, err := vole.NewSender(ladder, connS, delta, cotS, svoleS, lpnSeed, checkSeed, workers)
	if err != nil {
		log.Fatal(err)
	}

	type recvResult struct {
		slots      []field.Slot
		otConsumed int64
		err        error
	}
	done := make(chan recvResult, 1)
	go func() {
		receiver, err := vole.NewReceiver(ladder, connR, cotR, svoleR, lpnSeed, checkSeed, workers)
		if err != nil {
			done <- recvResult{err: err}
			return
		}
		if err := receiver.Setup(); err != nil {
			done <- recvResult{err: err}
			return
		}
		slots, err := receiver.Extend(n)
		if err != nil {
			done <- recvResult{err: err}
			return
		}
		if selfCheck {
			err = receiver.SelfCheck(slots)
		}
		done <- recvResult{slots: slots, otConsumed: receiver.OTConsumed(), err: err}
	}()

	setupStart := time.Now()
	if err := sender.Setup(); err != nil {
		log.Fatal(err)
	}
	report.setup = time.Since(setupStart)

	extendStart := time.Now()
	ys, err := sender.Extend(n)
	if err != nil {
		log.Fatal(err)
	}
	report.extend = time.Since(extendStart)

	if selfCheck {
		if err := sender.SelfCheck(ys); err != nil {
			log.Fatal(err)
		}
	}

	res := <-done
	if res.err != nil {
		log.Fatal(res.err)
	}

	report.n = n
	report.otConsumed = sender.OTConsumed() + res.otConsumed
	report.print(os.Stdout)
}

var mockOTDelta = hashprg.Block{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// runNetworkSender dials addr, runs the real or mock base OT handshake,
// and extends n values, reporting throughput.
func runNetworkSender(addr string, ladder vole.LadderParams, n, workers int, realOT, selfCheck bool) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	conn := p2p.NewConn(nc)
	defer conn.Close()

	delta := basecorr.MockDelta()
	var cot basecorr.BaseCOT
	if realOT {
		cot, err = basecorr.NewCOTSender(conn, rand.Reader, nil)
		if err != nil {
			return err
		}
	} else {
		cot = basecorr.NewMockCOTSender(mockOTDelta)
	}
	svole := basecorr.NewMockSVOLESender()

	if n <= 0 {
		n = ladder.Final.OTLimit()
	}

	sender, err := vole.NewSender(ladder, conn, delta, cot, svole, lpnSeed, checkSeed, workers)
	if err != nil {
		return err
	}

	setupStart := time.Now()
	if err := sender.Setup(); err != nil {
		return err
	}
	setupElapsed := time.Since(setupStart)

	start := time.Now()
	ys, err := sender.Extend(n)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	report := newReport()
	report.setup = setupElapsed
	report.extend = elapsed
	report.n = n
	report.otConsumed = sender.OTConsumed()
	report.print(os.Stdout)

	if selfCheck {
		return sender.SelfCheck(ys)
	}
	return nil
}

// runNetworkReceiver listens on addr, accepts one connection, and mirrors
// runNetworkSender's extension on the other side of the relation.
func runNetworkReceiver(addr string, ladder vole.LadderParams, n, workers int, realOT, selfCheck bool) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	fmt.Fprintf(os.Stdout, "listening on %s\n", addr)

	nc, err := ln.Accept()
	if err != nil {
		return err
	}
	conn := p2p.NewConn(nc)
	defer conn.Close()

	var cot basecorr.BaseCOT
	if realOT {
		cot, err = basecorr.NewCOTReceiver(conn, rand.Reader)
		if err != nil {
			return err
		}
	} else {
		cot = basecorr.NewMockCOTReceiver(mockOTDelta)
	}
	svole := basecorr.NewMockSVOLEReceiver()

	if n <= 0 {
		n = ladder.Final.OTLimit()
	}

	receiver, err := vole.NewReceiver(ladder, conn, cot, svole, lpnSeed, checkSeed, workers)
	if err != nil {
		return err
	}

	setupStart := time.Now()
	if err := receiver.Setup(); err != nil {
		return err
	}
	setupElapsed := time.Since(setupStart)

	start := time.Now()
	slots, err := receiver.Extend(n)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	report := newReport()
	report.setup = setupElapsed
	report.extend = elapsed
	report.n = n
	report.otConsumed = receiver.OTConsumed()
	report.print(os.Stdout)

	if selfCheck {
		return receiver.SelfCheck(slots)
	}
	return nil
}

// report tabulates one run's stage timings and derived throughput, in
// the teacher's tabulate.Github style.
type report struct {
	setup      time.Duration
	extend     time.Duration
	n          int
	otConsumed int64
}

func newReport() *report {
	return &report{}
}

func (r *report) print(w io.Writer) {
	tab := tabulate.New(tabulate.Github)
	tab.Header("Stage")
	tab.Header("Duration").SetAlign(tabulate.MR)
	tab.Header("Values").SetAlign(tabulate.MR)
	tab.Header("Values/s").SetAlign(tabulate.MR)

	if r.setup > 0 {
		row := tab.Row()
		row.Column("setup")
		row.Column(r.setup.String())
		row.Column("-")
		row.Column("-")
	}

	row := tab.Row()
	row.Column("extend")
	row.Column(r.extend.String())
	row.Column(fmt.Sprintf("%d", r.n))
	if r.extend > 0 {
		rate := float64(r.n) / r.extend.Seconds()
		row.Column(fmt.Sprintf("%.0f", rate))
	} else {
		row.Column("-")
	}

	row = tab.Row()
	row.Column("ot pads consumed")
	row.Column("-")
	row.Column(fmt.Sprintf("%d", r.otConsumed))
	row.Column("-")

	tab.Print(w)
}
