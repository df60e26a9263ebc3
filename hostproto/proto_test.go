package hostproto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hydrocore/hal"
)

type fakeRTC struct {
	t   hal.RTCTime
	set hal.RTCTime
}

func (f *fakeRTC) GetTime() (hal.RTCTime, error)                    { return f.t, nil }
func (f *fakeRTC) SetTime(t hal.RTCTime) error                      { f.set = t; f.t = t; return nil }
func (f *fakeRTC) SetAlarm1(hal.RTCTime, hal.AlarmMode) error       { return nil }
func (f *fakeRTC) SetAlarm2(hal.RTCTime, hal.AlarmMode) error       { return nil }
func (f *fakeRTC) EnableInterrupts(a1, a2 bool) error               { return nil }
func (f *fakeRTC) GetFlags() (bool, bool, error)                    { return false, false, nil }
func (f *fakeRTC) ClearFlags() error                                { return nil }

func TestServer_SetWritesTimeAndRepliesOK(t *testing.T) {
	rtc := &fakeRTC{}
	s := NewServer(rtc)
	var out bytes.Buffer
	require.NoError(t, s.Serve(strings.NewReader("SET:00:30:14:2:15:09:2025\n"), &out))
	require.Equal(t, "OK\r\n", out.String())
	require.Equal(t, hal.RTCTime{Second: 0, Minute: 30, Hour: 14, DayOfWeek: 2, Day: 15, Month: 9, Year: 2025}, rtc.set)
}

func TestServer_GetRepliesWithTime(t *testing.T) {
	rtc := &fakeRTC{t: hal.RTCTime{Second: 5, Minute: 6, Hour: 7, DayOfWeek: 1, Day: 1, Month: 1, Year: 2026}}
	s := NewServer(rtc)
	var out bytes.Buffer
	require.NoError(t, s.Serve(strings.NewReader("GET\n"), &out))
	require.Equal(t, "TIME:05:06:07:1:01:01:2026\r\n", out.String())
}

func TestServer_UnknownLineIgnored(t *testing.T) {
	rtc := &fakeRTC{}
	s := NewServer(rtc)
	var out bytes.Buffer
	require.NoError(t, s.Serve(strings.NewReader("NOISE\n"), &out))
	require.Empty(t, out.String())
}

func TestServer_MalformedSetIgnored(t *testing.T) {
	rtc := &fakeRTC{}
	s := NewServer(rtc)
	var out bytes.Buffer
	require.NoError(t, s.Serve(strings.NewReader("SET:bad\n"), &out))
	require.Empty(t, out.String())
}
