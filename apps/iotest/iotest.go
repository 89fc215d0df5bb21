//
// main.go
//
// Copyright (c) 2023 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"fmt"
	"io"
	"net"

	"github.com/markkurossi/mpvole/ot"
	"github.com/markkurossi/mpvole/p2p"
)

// fileSize formats a byte count the way the teacher's circuit package
// used to (kept here since this file's only use for that dependency
// was this one formatting helper).
type fileSize uint64

func (s fileSize) String() string {
	const unit = 1024
	if s < unit {
		return fmt.Sprintf("%d B", uint64(s))
	}
	div, exp := uint64(unit), 0
	for n := uint64(s) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(s)/float64(div), "KMGTPE"[exp])
}

func evaluatorTestIO(size int64, once bool) error {
	ln, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}
	fmt.Printf("Listening for connections at %s\n", port)

	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		fmt.Printf("New connection from %s\n", nc.RemoteAddr())

		conn := p2p.NewConn(nc)
		for {
			var label ot.Label
			var labelData ot.LabelData
			err = conn.ReceiveLabel(&label, &labelData)
			if err != nil {
				if err == io.EOF {
					break
				}
				return err
			}
		}
		fmt.Printf("Received: %v\n",
			fileSize(conn.Stats.Sum()).String())

		if once {
			return nil
		}
	}
}

func garblerTestIO(size int64) error {
	nc, err := net.Dial("tcp", port)
	if err != nil {
		return err
	}
	conn := p2p.NewConn(nc)

	var sent int64
	var label ot.Label
	var labelData ot.LabelData

	for sent < size {
		err = conn.SendLabel(label, &labelData)
		if err != nil {
			return err
		}
		sent += int64(len(labelData))
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	if err := conn.Close(); err != nil {
		return err
	}

	fmt.Printf("Sent: %v\n", fileSize(conn.Stats.Sum()).String())
	return nil
}
