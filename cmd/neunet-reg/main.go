// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command neunet-reg provides an interactive shell to inspect and
// modify the register file of a NEUNET board.
package main // import "github.com/MIT-NRL/ndaq/cmd/neunet-reg"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/MIT-NRL/ndaq/neunet"
)

func main() {
	var (
		addr    = flag.String("addr", "192.168.0.17", "NEUNET board address")
		port    = flag.Int("port", neunet.CtlPort, "register channel port")
		timeout = flag.Duration("timeout", 5*time.Second, "register round-trip timeout")
	)

	log.SetPrefix("neunet-reg: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*addr, *port, *timeout)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string, port int, timeout time.Duration) error {
	cli, err := neunet.DialRegister(fmt.Sprintf("%s:%d", addr, port), timeout)
	if err != nil {
		return fmt.Errorf("could not dial register channel: %w", err)
	}
	defer cli.Close()

	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(func(line string) (c []string) {
		for _, name := range []string{"read", "write", "sweep", "dump", "time", "settime", "help", "quit"} {
			if strings.HasPrefix(name, strings.ToLower(line)) {
				c = append(c, name)
			}
		}
		return
	})

	fmt.Printf("connected to %s:%d. type \"help\" for commands, Ctrl-D to quit.\n", addr, port)
	for {
		input, err := shell.Prompt("neunet> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read command: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		quit, err := dispatch(cli, strings.Fields(input))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %+v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

func dispatch(cli *neunet.RegClient, args []string) (quit bool, err error) {
	switch cmd := args[0]; cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		usage()
		return false, nil

	case "read":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: read <addr> <len>")
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return false, err
		}
		n, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil || n == 0 {
			return false, fmt.Errorf("invalid length %q", args[2])
		}
		data, err := cli.Read(addr, uint8(n))
		if err != nil {
			return false, err
		}
		fmt.Printf("0x%03x = % x\n", addr, data)
		return false, nil

	case "write":
		if len(args) < 3 {
			return false, fmt.Errorf("usage: write <addr> <byte> [byte...]")
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return false, err
		}
		data := make([]byte, 0, len(args)-2)
		for _, tok := range args[2:] {
			v, err := strconv.ParseUint(tok, 0, 8)
			if err != nil {
				return false, fmt.Errorf("invalid byte %q: %w", tok, err)
			}
			data = append(data, byte(v))
		}
		err = cli.Write(addr, data)
		if err != nil {
			return false, err
		}
		fmt.Printf("0x%03x <- % x\n", addr, data)
		return false, nil

	case "sweep", "dump":
		return false, cli.DumpRegisters(os.Stdout)

	case "time":
		t, err := cli.DeviceTime()
		if err != nil {
			return false, err
		}
		fmt.Printf("device time: %s\n", t.Format("2006-01-02 15:04:05.000 MST"))
		return false, nil

	case "settime":
		now := time.Now()
		err := cli.SetDeviceTime(now)
		if err != nil {
			return false, err
		}
		fmt.Printf("device time <- %s\n", now.Format("2006-01-02 15:04:05.000 MST"))
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	return uint32(v), nil
}

func usage() {
	fmt.Print(`commands:
  read <addr> <len>         read a register block (addr in hex, eg. 0x190)
  write <addr> <byte...>    write bytes to a register block
  sweep | dump              display the documented register blocks
  time                      display the device time
  settime                   set the device time from the host clock
  quit                      leave the shell
`)
}
