package wiremsg

import (
	"encoding/binary"
	"hash/crc32"
)

// castagnoliTable is the CRC32C (Castagnoli, polynomial 0x1EDC6F41) table
// used for modern-envelope message checksums.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// checksumOf computes the CRC32C checksum over a full message (header bytes
// plus body-minus-checksum), matching what the sender computed before
// appending the 4-byte checksum trailer.
func checksumOf(headerAndBody []byte) uint32 {
	return crc32.Checksum(headerAndBody, castagnoliTable)
}

func putUint32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}
