package wiremsg

import (
	"encoding/binary"
)

// BuildModernReply serializes a single-document kind-0 reply to a modern
// request, stamping responseTo from the request's requestId. No checksum is
// emitted on replies even if the request carried one — this gateway only
// verifies checksums it receives, it does not sign what it sends.
func BuildModernReply(requestID, responseTo, newRequestID int32, doc []byte) (Header, []byte) {
	body := make([]byte, 0, 4+1+len(doc))
	var flagBits [4]byte
	putUint32LE(flagBits[:], 0)
	body = append(body, flagBits[:]...)
	body = append(body, SectionKindBody)
	body = append(body, doc...)

	hdr := Header{
		MessageLength: HeaderLen + int32(len(body)),
		RequestID:     newRequestID,
		ResponseTo:    responseTo,
		OpCode:        OpMsg,
	}
	return hdr, body
}

// BuildLegacyReply serializes an OP_REPLY carrying exactly one document, the
// only shape this gateway ever emits (in answer to a legacy OP_QUERY).
func BuildLegacyReply(responseTo, newRequestID int32, doc []byte) (Header, []byte) {
	body := make([]byte, 20, 20+len(doc))
	binary.LittleEndian.PutUint32(body[0:4], 0)     // responseFlags
	binary.LittleEndian.PutUint64(body[4:12], 0)    // cursorID
	binary.LittleEndian.PutUint32(body[12:16], 0)   // startingFrom
	binary.LittleEndian.PutUint32(body[16:20], 1)   // numberReturned, always 1
	body = append(body, doc...)

	hdr := Header{
		MessageLength: HeaderLen + int32(len(body)),
		RequestID:     newRequestID,
		ResponseTo:    responseTo,
		OpCode:        OpReply,
	}
	return hdr, body
}
