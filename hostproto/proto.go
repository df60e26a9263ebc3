// Package hostproto implements an auxiliary line-oriented command
// protocol: SET:SS:MM:HH:DOW:DD:MM:YYYY writes the RTC and replies OK;
// GET replies with the current time; unknown lines are ignored.
// Grounded directly on the original firmware's DS3231 configure-loop
// UART bridge (ds3231_configure.c) — same wire format, reworked from a
// byte-at-a-time ISR-fed ring buffer into a bufio.Scanner-driven
// io.Reader/io.Writer pair, which is how command-line tooling typically
// shapes line-protocol I/O over a stream.
package hostproto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hydrocore/hal"
)

// Server reads SET/GET lines from r and writes replies to w, driving one
// hal.RTC collaborator.
type Server struct {
	rtc hal.RTC
}

// NewServer constructs a Server bound to an RTC collaborator.
func NewServer(rtc hal.RTC) *Server { return &Server{rtc: rtc} }

// Serve reads newline-terminated commands from r until EOF or a read
// error, replying on w. It returns nil on a clean EOF.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.handleLine(strings.TrimRight(scanner.Text(), "\r"), w)
	}
	return scanner.Err()
}

func (s *Server) handleLine(line string, w io.Writer) {
	switch {
	case strings.HasPrefix(line, "SET:"):
		s.handleSet(line, w)
	case strings.HasPrefix(line, "GET"):
		s.handleGet(w)
	default:
		// unknown lines are ignored
	}
}

func (s *Server) handleSet(line string, w io.Writer) {
	fields := strings.Split(strings.TrimPrefix(line, "SET:"), ":")
	if len(fields) != 7 {
		return
	}
	vals := make([]int, 7)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return
		}
		vals[i] = v
	}
	t := hal.RTCTime{
		Second:    vals[0],
		Minute:    vals[1],
		Hour:      vals[2],
		DayOfWeek: vals[3],
		Day:       vals[4],
		Month:     vals[5],
		Year:      vals[6],
	}
	if err := s.rtc.SetTime(t); err != nil {
		return
	}
	fmt.Fprint(w, "OK\r\n")
}

func (s *Server) handleGet(w io.Writer) {
	t, err := s.rtc.GetTime()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "TIME:%02d:%02d:%02d:%d:%02d:%02d:%04d\r\n",
		t.Second, t.Minute, t.Hour, t.DayOfWeek, t.Day, t.Month, t.Year)
}
