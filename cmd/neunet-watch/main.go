// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command neunet-watch periodically probes a NEUNET board over its
// register channel and raises alerts when the board stops answering
// or when its clock drifts away from the host clock.
package main // import "github.com/MIT-NRL/ndaq/cmd/neunet-watch"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/MIT-NRL/ndaq/neunet"
)

func main() {
	var (
		addr    = flag.String("addr", "192.168.0.17", "NEUNET board address")
		port    = flag.Int("port", neunet.CtlPort, "register channel port")
		freq    = flag.Duration("freq", 30*time.Second, "probe frequency")
		drift   = flag.Duration("drift", 2*time.Second, "tolerated clock drift")
		timeout = flag.Duration("timeout", 5*time.Second, "register round-trip timeout")
	)

	log.SetPrefix("neunet-watch: ")
	log.SetFlags(log.LstdFlags)

	flag.Parse()

	w := &watcher{
		addr:    fmt.Sprintf("%s:%d", *addr, *port),
		freq:    *freq,
		drift:   *drift,
		timeout: *timeout,
		alerts:  make(map[string]int),
	}
	w.run()
}

type watcher struct {
	addr    string
	freq    time.Duration
	drift   time.Duration
	timeout time.Duration

	alerts map[string]int // number of alerts sent per failure kind
}

func (w *watcher) run() {
	log.Printf("watching %s (freq=%v, drift=%v)", w.addr, w.freq, w.drift)

	tick := time.NewTicker(w.freq)
	defer tick.Stop()

	for {
		w.probe()
		<-tick.C
	}
}

func (w *watcher) probe() {
	cli, err := neunet.DialRegister(w.addr, w.timeout)
	if err != nil {
		w.alert("dial", fmt.Sprintf("could not dial %s: %+v", w.addr, err))
		return
	}
	defer cli.Close()

	dt, err := cli.DeviceTime()
	if err != nil {
		w.alert("probe", fmt.Sprintf("could not read device time of %s: %+v", w.addr, err))
		return
	}

	drift := time.Since(dt)
	if drift < 0 {
		drift = -drift
	}
	if drift > w.drift {
		w.alert("drift", fmt.Sprintf("device clock of %s drifts by %v (device=%v)", w.addr, drift, dt))
		return
	}

	log.Printf("%s ok (device=%v, drift=%v)", w.addr, dt.Format("15:04:05.000"), drift)
	w.alerts = make(map[string]int)
}

func (w *watcher) alert(kind, msg string) {
	log.Printf("%s", msg)
	w.alerts[kind]++

	const maxAlerts = 5
	if w.alerts[kind] < maxAlerts {
		w.alertMail(kind, msg)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (w *watcher) alertMail(kind, body string) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[neunet-watch] %s alert: %s", kind, w.addr))
	msg.SetBody("text/plain", fmt.Sprintf("%s\nfreq: %v", body, w.freq))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("could not parse integer %q: %+v", s, err)
		return 0
	}
	return v
}
