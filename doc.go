/*
Package snapmap shares the latest state of a value between processes through a
memory-mapped file.

A producer opens a Store over a file path and calls Set whenever it has a
fresh value (say, a robot pose). Any number of consumer processes open a Store
over the same path and call Get to read the newest value, or GetN to read one
of the previous ones. There is no message passing, no locking between
processes and no syscall on the hot path.

Values implement the Value interface: a fixed encoded size plus symmetric
Encode/Decode methods. Package values has a few examples.

# File Layout

All integers are in the host's native byte order.

**Header** (HeaderSize = 128 bytes):
 1. capacity (uint32), the number of record slots.
 2. record stride (uint32) = 1 + 8 + payload size.
 3. write cursor (uint32), the slot of the newest record.
 4. magic (uint32), written last by the process that created the file.
 5. committed (uint64), number of finished Set calls.
 6. claimed (uint64), number of started Set calls.
 7. payload size (uint32), version (uint16), creation time (int64 ms).
 8. xxhash64 checksum of the immutable fields at offset 120.

**Records** follow the header, capacity of them, each at
SlotOffset(HeaderSize, stride, i): a flag byte, a timestamp (int64 ms since
the Unix epoch) and the encoded payload. The ring wraps around, overwriting
the oldest record.

# Creation

Every process tries to create the file exclusively. The winner sizes it,
writes the header and publishes the magic. The others wait (bounded by
Options.InitTimeout) until the magic shows up, then check that the record
stride matches their value type.

If initialization fails, the initializer removes the file so that the next
process can start over. Options.Context cancels the wait.

Within a process, stores opened on the same file share one mapping per access
mode: all writable stores share one, all read-only stores share another. A
process that opens a file both ways maps it twice, since a read-only store
must not be able to write through its mapping.

# Publication Protocol

Exactly one writer per file. Set claims the slot in the header, marks the
slot busy, writes timestamp and payload, and only then marks the slot as
written; after that it advances the cursor and the committed counter.

Readers copy the slot, then verify that it is still marked written and that no
Set has claimed it in the meantime. A failed check returns ErrOverrun; a slot
that was never written returns ErrNotReady. Either way nothing is decoded.
*/
package snapmap
