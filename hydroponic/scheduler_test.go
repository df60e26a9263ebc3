package hydroponic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hydrocore/durable"
	"hydrocore/hal"
)

type fakeRTC struct {
	now hal.RTCTime
}

func (f *fakeRTC) GetTime() (hal.RTCTime, error) { return f.now, nil }
func (f *fakeRTC) SetTime(hal.RTCTime) error { return nil }
func (f *fakeRTC) SetAlarm1(hal.RTCTime, hal.AlarmMode) error { return nil }
func (f *fakeRTC) SetAlarm2(hal.RTCTime, hal.AlarmMode) error { return nil }
func (f *fakeRTC) EnableInterrupts(a1, a2 bool) error { return nil }
func (f *fakeRTC) GetFlags() (bool, bool, error) { return false, false, nil }
func (f *fakeRTC) ClearFlags() error { return nil }

type fakeLight struct{ on bool }

func (f *fakeLight) TurnOn() error { f.on = true; return nil }
func (f *fakeLight) TurnOff() error { f.on = false; return nil }

type fakeDHT struct{}

func (fakeDHT) Read() (int32, int32, error) { return 22000, 55000, nil }

type fakeEEPROM struct {
	mem []byte
}

func newFakeEEPROM(size int) *fakeEEPROM { return &fakeEEPROM{mem: make([]byte, size)} }

func (f *fakeEEPROM) TotalSize() int { return len(f.mem) }
func (f *fakeEEPROM) PageSize() int { return 32 }
func (f *fakeEEPROM) BlockSize() int { return len(f.mem) }
func (f *fakeEEPROM) ReadAt(addr int, buf []byte) error { copy(buf, f.mem[addr:addr+len(buf)]); return nil }
func (f *fakeEEPROM) WriteAt(addr int, data []byte) error { copy(f.mem[addr:addr+len(data)], data); return nil }
func (f *fakeEEPROM) WriteBusy() bool { return false }

func dateTime(day, hour, minute int) hal.RTCTime {
	return hal.RTCTime{Year: 2025, Month: 9, Day: day, Hour: hour, Minute: minute, Second: 0, DayOfWeek: 1}
}

func dayTime(hour, minute int) hal.RTCTime { return dateTime(1, hour, minute) }

func TestScheduler_BootAccumulatesDeficitAfterOutage(t *testing.T) {
	dev := newFakeEEPROM(64)
	store := durable.NewStore(dev, 10)
	rs := NewRecordStore(store, 0)

	lastAlive := dayTime(8, 0)
	priorMin := brokenDownToMinuteIndex(lastAlive)
	require.NoError(t, rs.Save(Record{
		Magic: RecordMagic, Version: RecordVersion,
		BootCount: 3, LastAliveMin: uint32(priorMin), DeficitMinutes: 0, OutageCount: 0, LightOn: true,
	}))

	rtc := &fakeRTC{now: dayTime(10, 30)}
	light := &fakeLight{}
	sched := New(DefaultConfig(), rtc, light, fakeDHT{}, nil, rs)
	require.NoError(t, sched.Boot())

	require.EqualValues(t, 1, sched.OutageCount())
	require.EqualValues(t, 150, sched.DeficitMinutes())
	require.False(t, sched.CompensationActive()) // 10:30 is inside [7,23)
}

func TestScheduler_CompensationRunsOutThenLightOff(t *testing.T) {
	dev := newFakeEEPROM(64)
	store := durable.NewStore(dev, 10)
	rs := NewRecordStore(store, 0)

	lastAlive := dayTime(8, 0)
	priorMin := brokenDownToMinuteIndex(lastAlive)
	require.NoError(t, rs.Save(Record{
		Magic: RecordMagic, Version: RecordVersion,
		BootCount: 3, LastAliveMin: uint32(priorMin), DeficitMinutes: 0, OutageCount: 0, LightOn: true,
	}))

	rtc := &fakeRTC{now: dayTime(10, 30)}
	light := &fakeLight{}
	sched := New(DefaultConfig(), rtc, light, fakeDHT{}, nil, rs)
	require.NoError(t, sched.Boot())
	require.EqualValues(t, 150, sched.DeficitMinutes())

	// Tick forward to 23:00: still in window at 22:59, outside at 23:00.
	rtc.now = dayTime(23, 0)
	require.NoError(t, sched.ProcessMinuteTick(context.Background(), rtc.now))
	require.True(t, light.on) // deficit > 0, outside window -> ON
	require.True(t, sched.CompensationActive())

	// Advance minute-by-minute through the night until deficit exhausts.
	day, hour, minute := 1, 23, 1
	for i := 0; i < 150; i++ {
		rtc.now = dateTime(day, hour, minute)
		require.NoError(t, sched.ProcessMinuteTick(context.Background(), rtc.now))
		minute++
		if minute == 60 {
			minute = 0
			hour++
			if hour == 24 {
				hour = 0
				day++
			}
		}
	}

	require.EqualValues(t, 0, sched.DeficitMinutes())
	require.False(t, light.on)
	require.False(t, sched.CompensationActive())
}
