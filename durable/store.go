// Package durable wraps a page-writable EEPROM-like device (hal.EEPROM)
// with the split-I/O and readiness-polling contract the device requires:
// reads split across internal block boundaries, writes split across both
// the page boundary and the block boundary, and a readiness poll after
// every write before the next operation may proceed. Grounded on a
// checkpoint writer pattern that also serializes writes against a backing
// store in bounded chunks — adapted here to a synchronous, caller-driven
// model with no background goroutine, since the rest of this module runs
// one cooperative loop.
package durable

import (
	"errors"
	"fmt"

	"hydrocore/hal"
)

// ErrOutOfRange is returned when an access would read or write past the
// device's total size.
var ErrOutOfRange = errors.New("durable: address range exceeds device size")

// ErrWriteTimeout is returned when the device never clears WriteBusy
// within maxBusyPolls iterations.
var ErrWriteTimeout = errors.New("durable: write busy timeout")

// Store is a split-I/O wrapper over one hal.EEPROM device. It holds no
// internal goroutine; callers invoke ReadAt/WriteAt synchronously and the
// write path polls WriteBusy in a loop bounded by maxBusyPolls.
type Store struct {
	dev hal.EEPROM
	maxBusyPolls int
}

// NewStore constructs a Store. maxBusyPolls bounds the readiness-poll
// loop after each write chunk; zero or negative selects a generous
// default (this device has no interrupt-driven "write complete" signal).
func NewStore(dev hal.EEPROM, maxBusyPolls int) *Store {
	if maxBusyPolls <= 0 {
		maxBusyPolls = 10000
	}
	return &Store{dev: dev, maxBusyPolls: maxBusyPolls}
}

func splitBoundary(addr int, length int, boundary int) int {
	if boundary <= 0 {
		return length
	}
	offsetInBoundary := addr % boundary
	remaining := boundary - offsetInBoundary
	if length <= remaining {
		return length
	}
	return remaining
}

// ReadAt reads len(buf) bytes starting at addr, splitting the access
// across the device's internal block boundary as many times as needed.
func (s *Store) ReadAt(addr int, buf []byte) error {
	if addr+len(buf) > s.dev.TotalSize() {
		return ErrOutOfRange
	}
	blockSize := s.dev.BlockSize()
	pos := 0
	for pos < len(buf) {
		chunkLen := splitBoundary(addr+pos, len(buf)-pos, blockSize)
		if chunkLen == 0 {
			chunkLen = len(buf) - pos
		}
		if err := s.dev.ReadAt(addr+pos, buf[pos:pos+chunkLen]); err != nil {
			return fmt.Errorf("durable: read at %d: %w", addr+pos, err)
		}
		pos += chunkLen
	}
	return nil
}

// WriteAt writes data starting at addr, splitting the access across both
// the page boundary and the block boundary (whichever constrains the
// chunk more), polling WriteBusy to completion after every chunk.
func (s *Store) WriteAt(addr int, data []byte) error {
	if addr+len(data) > s.dev.TotalSize() {
		return ErrOutOfRange
	}
	pageSize := s.dev.PageSize()
	blockSize := s.dev.BlockSize()
	pos := 0
	for pos < len(data) {
		chunkLen := splitBoundary(addr+pos, len(data)-pos, pageSize)
		if blockChunk := splitBoundary(addr+pos, len(data)-pos, blockSize); blockChunk < chunkLen {
			chunkLen = blockChunk
		}
		if chunkLen == 0 {
			chunkLen = len(data) - pos
		}
		if err := s.dev.WriteAt(addr+pos, data[pos:pos+chunkLen]); err != nil {
			return fmt.Errorf("durable: write at %d: %w", addr+pos, err)
		}
		if err := s.waitReady(); err != nil {
			return err
		}
		pos += chunkLen
	}
	return nil
}

func (s *Store) waitReady() error {
	for i := 0; i < s.maxBusyPolls; i++ {
		if !s.dev.WriteBusy() {
			return nil
		}
	}
	return ErrWriteTimeout
}
