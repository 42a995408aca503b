package snapmap

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpStats
	DumpRecords
	DumpEmptySlots

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("-", 60)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump returns a human-readable description of the store file. Records are
// listed oldest first; the payload is shown as hex.
func (s *Store[V]) Dump(f DumpFlags) string {
	var buf strings.Builder
	if s.closed.Load() {
		fmt.Fprintf(&buf, "%s: closed\n", s.name)
		return buf.String()
	}
	mem := s.m.data
	h := s.m.header

	if f.Contains(DumpHeader) {
		fmt.Fprintf(&buf, "%s (%s)\n", s.name, s.path)
		fmt.Fprintf(&buf, "header: capacity = %d, stride = %d, payload = %d, version = %d, created = %s\n", h.Capacity, h.RecordStride, h.PayloadSize, h.Version, time.UnixMilli(h.CreatedMs).UTC().Format(time.RFC3339))
		fmt.Fprintf(&buf, "cursor: slot = %d, committed = %d, claimed = %d\n", loadUint32(mem, offCursor), loadUint64(mem, offCommitted), loadUint64(mem, offClaimed))
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(&buf, "stats: sets = %d, gets = %d, not_ready = %d, overruns = %d\n", s.SetCount.Load(), s.GetCount.Load(), s.NotReadyCount.Load(), s.OverrunCount.Load())
	}

	if f.Contains(DumpRecords) {
		if f.Contains(DumpHeader) || f.Contains(DumpStats) {
			fmt.Fprintln(&buf, dumpSep)
		}
		_ = s.Scan(0, func(rec Record) error {
			fmt.Fprintf(&buf, "#%d slot %d @ %s: %s\n", rec.Seq, rec.Slot, rec.Time().UTC().Format("2006-01-02T15:04:05.000Z"), hex.EncodeToString(rec.Payload))
			return nil
		})
	}
	if f.Contains(DumpEmptySlots) {
		for i := range s.capacity {
			if flag := loadFlag(mem, SlotOffset(HeaderSize, s.stride, i)); flag != flagWritten {
				fmt.Fprintf(&buf, "slot %d: %s\n", i, flagName(flag))
			}
		}
	}
	return buf.String()
}

func flagName(flag byte) string {
	switch flag {
	case flagEmpty:
		return "empty"
	case flagWritten:
		return "written"
	case flagBusy:
		return "busy"
	default:
		return fmt.Sprintf("invalid(%02x)", flag)
	}
}
