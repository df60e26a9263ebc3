package durable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEEPROM is a small in-memory stand-in used to exercise the
// split-boundary arithmetic without a real device.
type fakeEEPROM struct {
	mem []byte
	pageSize int
	blockSize int
	writes []struct{ addr, length int }
	busyTicks int
	forceBusy bool
}

func newFakeEEPROM(size, pageSize, blockSize int) *fakeEEPROM {
	return &fakeEEPROM{mem: make([]byte, size), pageSize: pageSize, blockSize: blockSize}
}

func (f *fakeEEPROM) TotalSize() int { return len(f.mem) }
func (f *fakeEEPROM) PageSize() int  { return f.pageSize }
func (f *fakeEEPROM) BlockSize() int { return f.blockSize }

func (f *fakeEEPROM) ReadAt(addr int, buf []byte) error {
	copy(buf, f.mem[addr:addr+len(buf)])
	return nil
}

func (f *fakeEEPROM) WriteAt(addr int, data []byte) error {
	f.writes = append(f.writes, struct{ addr, length int }{addr, len(data)})
	copy(f.mem[addr:addr+len(data)], data)
	f.busyTicks = 2
	return nil
}

func (f *fakeEEPROM) WriteBusy() bool {
	if f.forceBusy {
		return true
	}
	if f.busyTicks > 0 {
		f.busyTicks--
		return true
	}
	return false
}

func TestStore_WriteSplitsAcrossPageBoundary(t *testing.T) {
	dev := newFakeEEPROM(256, 8, 256)
	s := NewStore(dev, 100)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, s.WriteAt(4, data)) // starts mid-page, crosses several 8-byte pages
	require.True(t, len(dev.writes) > 1)
	got := make([]byte, 20)
	copy(got, dev.mem[4:24])
	require.Equal(t, data, got)
}

func TestStore_ReadSplitsAcrossBlockBoundary(t *testing.T) {
	dev := newFakeEEPROM(64, 64, 16)
	for i := range dev.mem {
		dev.mem[i] = byte(i)
	}
	s := NewStore(dev, 100)
	buf := make([]byte, 20)
	require.NoError(t, s.ReadAt(10, buf))
	require.Equal(t, dev.mem[10:30], buf)
}

func TestStore_OutOfRangeRejected(t *testing.T) {
	dev := newFakeEEPROM(16, 16, 16)
	s := NewStore(dev, 10)
	require.ErrorIs(t, s.WriteAt(10, make([]byte, 10)), ErrOutOfRange)
}

func TestStore_WriteTimeout(t *testing.T) {
	dev := newFakeEEPROM(16, 16, 16)
	dev.forceBusy = true
	s := NewStore(dev, 3)
	err := s.WriteAt(0, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrWriteTimeout)
}

func TestCRC16CCITT_DetectsSingleByteCorruption(t *testing.T) {
	data := []byte("hydroponic-record-payload")
	crc := CRC16CCITT(data)
	corrupted := append([]byte(nil), data...)
	corrupted[3] ^= 0x01
	require.NotEqual(t, crc, CRC16CCITT(corrupted))
}
