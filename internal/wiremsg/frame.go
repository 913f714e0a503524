package wiremsg

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Header is the fixed 16-byte message header shared by every opcode.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// Frame is one raw wire message: the parsed header plus the exact body
// bytes that followed it (length == Header.MessageLength - HeaderLen).
type Frame struct {
	Header Header
	Body   []byte
}

// ReadFrame reads exactly one message frame from r: it reads the 4-byte
// little-endian message length, validates it against [HeaderLen,
// MaxMessageSize], then reads the remaining messageLength-4 bytes in a
// blocking loop (short reads are retried until fulfilled, EOF, or error).
// No partial frame is ever returned — on any validation or read failure the
// caller must close the connection; ReadFrame does not attempt to
// resynchronize the stream.
func ReadFrame(r io.Reader) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	msgLen := int32(binary.LittleEndian.Uint32(lenBuf[:]))

	if msgLen < HeaderLen || int64(msgLen) > MaxMessageSize {
		return nil, fmt.Errorf("wiremsg: invalid message length %d (must be in [%d, %d])", msgLen, HeaderLen, MaxMessageSize)
	}

	rest := make([]byte, msgLen-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("wiremsg: reading message body: %w", err)
	}

	requestID := int32(binary.LittleEndian.Uint32(rest[0:4]))
	responseTo := int32(binary.LittleEndian.Uint32(rest[4:8]))
	opCode := OpCode(int32(binary.LittleEndian.Uint32(rest[8:12])))

	return &Frame{
		Header: Header{
			MessageLength: msgLen,
			RequestID:     requestID,
			ResponseTo:    responseTo,
			OpCode:        opCode,
		},
		Body: rest[12:],
	}, nil
}

// WriteFrame writes header+body as one framed message, computing the
// length prefix from the actual body size so length-exactness always holds.
func WriteFrame(w io.Writer, hdr Header, body []byte) error {
	total := HeaderLen + len(body)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(hdr.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(hdr.ResponseTo))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(hdr.OpCode))
	copy(buf[16:], body)
	_, err := w.Write(buf)
	return err
}
