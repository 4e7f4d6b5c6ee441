// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	opRead  = 0xc0
	opWrite = 0x80
)

// BusError reports a control-channel response with the bus-error flag
// set: the device rejected the format of the request. It carries the
// raw request and response bytes for diagnosis.
type BusError struct {
	Req  []byte
	Resp []byte
}

func (e *BusError) Error() string {
	return fmt.Sprintf("neunet: bus error (req=% x, resp=% x)", e.Req, e.Resp)
}

// RegClient speaks the NEUNET register protocol over a control
// channel. Each request is sent once and answered by exactly one
// response; there is no retry.
type RegClient struct {
	conn    net.Conn
	timeout time.Duration
	next    uint8 // transaction id of the next request
	buf     []byte
}

// DialRegister connects a register client to the control channel of
// the board at addr (host:port). The timeout bounds each request's
// send and receive; zero means block forever.
func DialRegister(addr string, timeout time.Duration) (*RegClient, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("neunet: could not dial register channel %q: %w", addr, err)
	}
	return NewRegClient(conn, timeout), nil
}

// NewRegClient wraps an already-connected control channel.
func NewRegClient(conn net.Conn, timeout time.Duration) *RegClient {
	return &RegClient{
		conn:    conn,
		timeout: timeout,
		next:    uint8(time.Now().UnixNano()),
		buf:     make([]byte, 1024),
	}
}

// Close releases the control channel.
func (cli *RegClient) Close() error { return cli.conn.Close() }

// request sends one register request and performs one blocking
// receive. A response with the bus-error flag set fails with a
// *BusError. The response must echo the request's transaction id:
// the id is on the wire for exactly this purpose, a stray or stale
// datagram must not be taken for the answer.
func (cli *RegClient) request(op uint8, addr uint32, n uint8, data []byte) ([]byte, error) {
	id := cli.next
	cli.next++

	req := make([]byte, 8, 8+len(data))
	req[0] = 0xff
	req[1] = op
	req[2] = id
	req[3] = n
	binary.BigEndian.PutUint32(req[4:8], addr)
	if op == opWrite {
		req = append(req, data...)
		req[3] = uint8(len(data))
	}

	if cli.timeout > 0 {
		err := cli.conn.SetDeadline(time.Now().Add(cli.timeout))
		if err != nil {
			return nil, fmt.Errorf("neunet: could not set register deadline: %w", err)
		}
	}

	_, err := cli.conn.Write(req)
	if err != nil {
		return nil, fmt.Errorf("neunet: could not send register request (addr=0x%x): %w", addr, err)
	}

	nr, err := cli.conn.Read(cli.buf)
	if err != nil {
		return nil, fmt.Errorf("neunet: could not receive register response (addr=0x%x): %w", addr, err)
	}
	resp := make([]byte, nr)
	copy(resp, cli.buf[:nr])

	if nr < 8 {
		return nil, fmt.Errorf("neunet: short register response (addr=0x%x, got=%d bytes): %w",
			addr, nr, io.ErrUnexpectedEOF,
		)
	}
	if resp[1]&0x1 != 0 {
		return nil, &BusError{Req: req, Resp: resp}
	}
	if resp[2] != id {
		return nil, fmt.Errorf("neunet: transaction id mismatch (addr=0x%x, got=0x%02x, want=0x%02x)",
			addr, resp[2], id,
		)
	}
	return resp, nil
}

// Read reads n bytes from the register at addr.
func (cli *RegClient) Read(addr uint32, n uint8) ([]byte, error) {
	resp, err := cli.request(opRead, addr, n, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 8+int(n) {
		return nil, fmt.Errorf("neunet: short register payload (addr=0x%x, got=%d bytes, want=%d): %w",
			addr, len(resp)-8, n, io.ErrUnexpectedEOF,
		)
	}
	return resp[8 : 8+int(n)], nil
}

// Write writes data to the register at addr. The length field is
// forced to the payload length.
func (cli *RegClient) Write(addr uint32, data []byte) error {
	_, err := cli.request(opWrite, addr, uint8(len(data)), data)
	return err
}

// DeviceTime reads the device clock.
func (cli *RegClient) DeviceTime() (time.Time, error) {
	p, err := cli.Read(regDeviceTime, 5)
	if err != nil {
		return time.Time{}, fmt.Errorf("neunet: could not read device time: %w", err)
	}
	if len(p) < 5 {
		return time.Time{}, fmt.Errorf("neunet: short device-time payload (got=%d bytes): %w",
			len(p), io.ErrUnexpectedEOF,
		)
	}
	sec := float64(binary.BigEndian.Uint32(p[:4])) + float64(p[4])/256
	return TimeOf(sec), nil
}

// SetDeviceTime writes t to the device clock register.
func (cli *RegClient) SetDeviceTime(t time.Time) error {
	p := EncodeTime(SecondsOf(t))
	err := cli.Write(regDeviceTime, append(p[:], 0x00, 0x00))
	if err != nil {
		return fmt.Errorf("neunet: could not set device time: %w", err)
	}
	return nil
}

// sweep is the documented configuration/status address range of the
// NEUNET register file (0x180-0x1b5).
var sweep = []struct {
	addr uint32
	len  uint8
}{
	{0x180, 8},
	{0x188, 3},
	{0x18b, 5},
	{0x190, 7},
	{0x198, 8},
	{0x1b0, 6},
}

// SweepBlock is one contiguous chunk of a register sweep.
type SweepBlock struct {
	Addr uint32
	Data []byte
}

// Sweep reads the entire documented register range with six fixed
// read requests, in address order. It is a diagnostic aid, not part
// of normal acquisition.
func (cli *RegClient) Sweep() ([]SweepBlock, error) {
	blocks := make([]SweepBlock, 0, len(sweep))
	for _, s := range sweep {
		data, err := cli.Read(s.addr, s.len)
		if err != nil {
			return nil, fmt.Errorf("neunet: could not sweep register 0x%x: %w", s.addr, err)
		}
		blocks = append(blocks, SweepBlock{Addr: s.addr, Data: data})
	}
	return blocks, nil
}

// DumpRegisters writes a formatted register sweep to w.
func (cli *RegClient) DumpRegisters(w io.Writer) error {
	blocks, err := cli.Sweep()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "        +0 +1 +2 +3 +4 +5 +6 +7\n")
	for _, blk := range blocks {
		fmt.Fprintf(w, "0x%03x = % x\n", blk.Addr, blk.Data)
	}
	return nil
}
