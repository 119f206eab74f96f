package txlog

import (
	"encoding/binary"

	"github.com/foedus-go/foedus/assorted"
	"github.com/foedus-go/foedus/storage"
)

// overwriteHeaderSize is the fixed portion of an OverwriteLogType
// record before its payload bytes: log length, storage id, array
// offset, payload offset, and payload count.
const overwriteHeaderSize = 2 + 4 + 8 + 2 + 2

const (
	overwriteLenOffset           = 0
	overwriteStorageIDOffset     = 2
	overwriteArrayOffsetOffset   = 6
	overwritePayloadOffsetOffset = 14
	overwritePayloadCountOffset  = 16
)

// CalculateOverwriteLogLength returns the number of bytes a populated
// OverwriteLogType record of the given payload size occupies,
// 8-byte-aligned so consecutive log records stay aligned the way
// spec.md §3's align8 convention does for record payloads.
func CalculateOverwriteLogLength(payloadCount uint16) uint16 {
	return uint16(assorted.Align8(uint64(overwriteHeaderSize) + uint64(payloadCount)))
}

// PopulateOverwriteLog writes an OverwriteLogType record into dest
// (which must be at least CalculateOverwriteLogLength(len(payload))
// bytes, as returned by Buffer.ReserveNewLog), per spec.md §4.10
// ("populates it with {storage_id, offset, payload_offset,
// payload_count, bytes}").
func PopulateOverwriteLog(dest []byte, storageID storage.StorageID, arrayOffset uint64, payload []byte, payloadOffset, payloadCount uint16) {
	length := CalculateOverwriteLogLength(payloadCount)
	binary.LittleEndian.PutUint16(dest[overwriteLenOffset:], length)
	binary.LittleEndian.PutUint32(dest[overwriteStorageIDOffset:], uint32(storageID))
	binary.LittleEndian.PutUint64(dest[overwriteArrayOffsetOffset:], arrayOffset)
	binary.LittleEndian.PutUint16(dest[overwritePayloadOffsetOffset:], payloadOffset)
	binary.LittleEndian.PutUint16(dest[overwritePayloadCountOffset:], payloadCount)
	copy(dest[overwriteHeaderSize:overwriteHeaderSize+int(payloadCount)], payload[:payloadCount])
}

// OverwriteLogLength reads back the length field of a populated record,
// the value the partitioner and sorter use to step from one log entry
// to the next in a LogBuffer.
func OverwriteLogLength(record []byte) uint16 {
	return binary.LittleEndian.Uint16(record[overwriteLenOffset:])
}

// OverwriteLogStorageID reads back the storage id field.
func OverwriteLogStorageID(record []byte) storage.StorageID {
	return storage.StorageID(binary.LittleEndian.Uint32(record[overwriteStorageIDOffset:]))
}

// OverwriteLogArrayOffset reads back the array offset field.
func OverwriteLogArrayOffset(record []byte) uint64 {
	return binary.LittleEndian.Uint64(record[overwriteArrayOffsetOffset:])
}

// OverwriteLogPayload reads back the payload bytes.
func OverwriteLogPayload(record []byte) []byte {
	count := binary.LittleEndian.Uint16(record[overwritePayloadCountOffset:])
	return record[overwriteHeaderSize : overwriteHeaderSize+int(count)]
}
