// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedev emulates a NEUNET board on the loopback interface:
// a TCP listener replaying a scripted telemetry byte stream and a UDP
// endpoint implementing the register protocol over an in-memory
// register file.
package fakedev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	opRead  = 0xc0
	opWrite = 0x80

	regBase = 0x180
	regSize = 0x40
)

// RegOp is one journaled register access.
type RegOp struct {
	Op   uint8
	Addr uint32
	Data []byte
}

// Server is a scripted NEUNET board.
type Server struct {
	data net.Listener
	ctl  net.PacketConn

	stream []byte // bytes replayed on every data connection

	mu      sync.Mutex
	mem     [regSize]byte
	journal []RegOp

	busErrAddr  uint32
	corruptTxid bool
}

// New creates a server replaying stream on the data channel. Both
// listeners bind to ephemeral loopback ports.
func New(stream []byte) (*Server, error) {
	data, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("fakedev: could not listen on data channel: %w", err)
	}
	ctl, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("fakedev: could not listen on control channel: %w", err)
	}
	return &Server{
		data:   data,
		ctl:    ctl,
		stream: stream,
	}, nil
}

// Host returns the loopback host of the server.
func (srv *Server) Host() string { return "127.0.0.1" }

// DataPort returns the TCP port of the telemetry stream.
func (srv *Server) DataPort() int {
	return srv.data.Addr().(*net.TCPAddr).Port
}

// CtlPort returns the UDP port of the register channel.
func (srv *Server) CtlPort() int {
	return srv.ctl.LocalAddr().(*net.UDPAddr).Port
}

// CtlAddr returns the host:port of the register channel.
func (srv *Server) CtlAddr() string { return srv.ctl.LocalAddr().String() }

// Serve runs both channels until Close.
func (srv *Server) Serve() error {
	var grp errgroup.Group
	grp.Go(srv.serveData)
	grp.Go(srv.serveCtl)
	err := grp.Wait()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Close shuts both channels down and unblocks Serve.
func (srv *Server) Close() error {
	err1 := srv.data.Close()
	err2 := srv.ctl.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// FailAddr makes every request touching addr answer with the
// bus-error flag set. Zero restores normal operation.
func (srv *Server) FailAddr(addr uint32) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.busErrAddr = addr
}

// CorruptTxid makes every response carry a wrong transaction id.
func (srv *Server) CorruptTxid(v bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.corruptTxid = v
}

// Journal returns a copy of the register accesses seen so far, in
// arrival order.
func (srv *Server) Journal() []RegOp {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	ops := make([]RegOp, len(srv.journal))
	copy(ops, srv.journal)
	return ops
}

// Register returns the current content of n register bytes at addr.
func (srv *Server) Register(addr uint32, n int) []byte {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	p := make([]byte, n)
	copy(p, srv.mem[addr-regBase:])
	return p
}

func (srv *Server) serveData() error {
	for {
		conn, err := srv.data.Accept()
		if err != nil {
			return err
		}
		go srv.feed(conn)
	}
}

func (srv *Server) feed(conn net.Conn) {
	defer conn.Close()
	_, err := conn.Write(srv.stream)
	if err != nil {
		return
	}
	// hold the connection open until the peer is done reading.
	_, _ = io.Copy(io.Discard, conn)
}

func (srv *Server) serveCtl() error {
	buf := make([]byte, 1024)
	for {
		n, peer, err := srv.ctl.ReadFrom(buf)
		if err != nil {
			return err
		}
		if n < 8 {
			continue
		}
		resp := srv.handle(buf[:n])
		_, err = srv.ctl.WriteTo(resp, peer)
		if err != nil {
			return err
		}
	}
}

func (srv *Server) handle(req []byte) []byte {
	var (
		op   = req[1]
		id   = req[2]
		n    = int(req[3])
		addr = binary.BigEndian.Uint32(req[4:8])
	)

	srv.mu.Lock()
	defer srv.mu.Unlock()

	resp := make([]byte, 8)
	resp[0] = 0xff
	resp[2] = id
	if srv.corruptTxid {
		resp[2] = id + 1
	}
	resp[3] = req[3]
	binary.BigEndian.PutUint32(resp[4:8], addr)

	ok := addr >= regBase && addr+uint32(n) <= regBase+regSize
	if !ok || (srv.busErrAddr != 0 && addr == srv.busErrAddr) {
		resp[1] |= 0x1 // bus error
		return resp
	}

	switch op {
	case opWrite:
		data := req[8:]
		srv.journal = append(srv.journal, RegOp{Op: op, Addr: addr, Data: append([]byte(nil), data...)})
		copy(srv.mem[addr-regBase:], data)
	case opRead:
		srv.journal = append(srv.journal, RegOp{Op: op, Addr: addr})
		resp = append(resp, srv.mem[addr-regBase:addr-regBase+uint32(n)]...)
	default:
		resp[1] |= 0x1
	}
	return resp
}
