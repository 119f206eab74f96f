package storage

import "encoding/binary"

// Record is a view over one record's bytes inside a leaf page's body:
// an opaque RecordOverhead-byte header (version/TID, spec.md §3)
// followed by the record's payload. The header is mutated only by the
// (out-of-scope) commit machinery; this package only exposes the
// version word so the read set can capture it for validation.
type Record []byte

// Version returns the record's version/TID word, the value the read
// set captures at get_record time and the commit validator compares
// against at commit time.
func (r Record) Version() uint64 {
	return binary.LittleEndian.Uint64(r[:8])
}

// Payload returns the payload bytes following the header.
func (r Record) Payload() []byte {
	return r[RecordOverhead:]
}
