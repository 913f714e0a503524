package wiremsg

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Message is the parsed form of one wire-protocol message body. There are
// three in-scope variants: ModernMessage (opCode 2013), LegacyQueryMessage
// (opCode 2004, handshake only), and LegacyReplyMessage (opCode 1, emitted
// only in response to a legacy query). An OP_COMPRESSED envelope is
// transient — ParseFrame always recurses through it and returns the
// decompressed variant instead.
type Message interface {
	Header() Header
}

// Section is one tagged subpart of a ModernMessage body.
type Section struct {
	Kind byte
	// Document is set for Kind == SectionKindBody.
	Document []byte
	// Identifier and Documents are set for Kind == SectionKindDocSequence.
	Identifier string
	Documents  [][]byte
}

// ModernMessage is the request/response envelope introduced with opCode 2013.
type ModernMessage struct {
	Hdr         Header
	FlagBits    uint32
	Sections    []Section
	HasChecksum bool
	Checksum    uint32
}

func (m *ModernMessage) Header() Header { return m.Hdr }

// FirstDocument returns the document carried by the first kind-0 section,
// which is where commands and command replies live.
func (m *ModernMessage) FirstDocument() ([]byte, bool) {
	for _, s := range m.Sections {
		if s.Kind == SectionKindBody {
			return s.Document, true
		}
	}
	return nil, false
}

// LegacyQueryMessage is the decoded OP_QUERY body (opCode 2004), used only
// for the hello/isMaster handshake in this gateway.
type LegacyQueryMessage struct {
	Hdr                  Header
	Flags                int32
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                []byte
	ReturnFieldsSelector []byte
}

func (m *LegacyQueryMessage) Header() Header { return m.Hdr }

// LegacyReplyMessage is the OP_REPLY body (opCode 1): this gateway only
// ever emits it (in response to a legacy query), with NumberReturned fixed
// at 1 — all result batches are returned inline, never as real cursors.
type LegacyReplyMessage struct {
	Hdr            Header
	ResponseFlags  int32
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	Documents      [][]byte
}

func (m *LegacyReplyMessage) Header() Header { return m.Hdr }

// ParseFrame decodes a raw Frame into a typed Message, recursing through
// OP_COMPRESSED transparently.
func ParseFrame(f *Frame) (Message, error) {
	switch f.Header.OpCode {
	case OpMsg:
		return parseModern(f.Header, f.Body)
	case OpQuery:
		return parseLegacyQuery(f.Header, f.Body)
	case OpReply:
		return parseLegacyReply(f.Header, f.Body)
	case OpCompressed:
		return parseCompressed(f.Header, f.Body)
	default:
		return nil, fmt.Errorf("wiremsg: unsupported opcode %s (%d)", f.Header.OpCode, f.Header.OpCode)
	}
}

func parseModern(hdr Header, body []byte) (*ModernMessage, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("wiremsg: OP_MSG body shorter than flagBits")
	}
	flags := binary.LittleEndian.Uint32(body[0:4])
	pos := 4

	hasChecksum := flags&FlagChecksumPresent != 0
	sectionsEnd := len(body)
	var wantChecksum uint32
	if hasChecksum {
		if len(body) < 8 {
			return nil, fmt.Errorf("wiremsg: OP_MSG missing checksum trailer")
		}
		sectionsEnd = len(body) - 4
		wantChecksum = binary.LittleEndian.Uint32(body[sectionsEnd:])
	}

	var sections []Section
	for pos < sectionsEnd {
		kind := body[pos]
		pos++
		switch kind {
		case SectionKindBody:
			docLen, err := peekDocLength(body, pos, sectionsEnd)
			if err != nil {
				return nil, err
			}
			sections = append(sections, Section{Kind: SectionKindBody, Document: body[pos : pos+docLen]})
			pos += docLen

		case SectionKindDocSequence:
			if pos+4 > sectionsEnd {
				return nil, fmt.Errorf("wiremsg: truncated section-1 size prefix")
			}
			size := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
			if size < 4 || pos+size > sectionsEnd {
				return nil, fmt.Errorf("wiremsg: invalid section-1 size %d", size)
			}
			sectionEnd := pos + size
			p := pos + 4

			idStart := p
			for p < sectionEnd && body[p] != 0 {
				p++
			}
			if p >= sectionEnd {
				return nil, fmt.Errorf("wiremsg: unterminated section-1 identifier")
			}
			identifier := string(body[idStart:p])
			p++ // skip identifier NUL

			var docs [][]byte
			for p < sectionEnd {
				docLen, err := peekDocLength(body, p, sectionEnd)
				if err != nil {
					return nil, err
				}
				docs = append(docs, body[p:p+docLen])
				p += docLen
			}
			sections = append(sections, Section{Kind: SectionKindDocSequence, Identifier: identifier, Documents: docs})
			pos = sectionEnd

		default:
			return nil, fmt.Errorf("wiremsg: unknown section kind %d", kind)
		}
	}

	if hasChecksum {
		got := checksumOf(messageForChecksum(hdr, body[:sectionsEnd]))
		if got != wantChecksum {
			return nil, fmt.Errorf("wiremsg: checksum mismatch: got %08x want %08x", got, wantChecksum)
		}
	}

	return &ModernMessage{Hdr: hdr, FlagBits: flags, Sections: sections, HasChecksum: hasChecksum, Checksum: wantChecksum}, nil
}

// messageForChecksum reconstructs the header+body-minus-checksum bytes the
// CRC32C was originally computed over.
func messageForChecksum(hdr Header, bodyMinusChecksum []byte) []byte {
	buf := make([]byte, HeaderLen+len(bodyMinusChecksum))
	total := HeaderLen + len(bodyMinusChecksum) + 4 // original message included the checksum
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(hdr.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(hdr.ResponseTo))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(hdr.OpCode))
	copy(buf[16:], bodyMinusChecksum)
	return buf
}

func peekDocLength(buf []byte, pos, limit int) (int, error) {
	if pos+4 > limit {
		return 0, fmt.Errorf("wiremsg: truncated document length prefix")
	}
	docLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	if docLen < 5 || docLen > MaxDocumentSize || pos+docLen > limit {
		return 0, fmt.Errorf("wiremsg: invalid embedded document length %d", docLen)
	}
	return docLen, nil
}

func parseLegacyQuery(hdr Header, body []byte) (*LegacyQueryMessage, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("wiremsg: OP_QUERY body too short")
	}
	flags := int32(binary.LittleEndian.Uint32(body[0:4]))
	pos := 4

	nameStart := pos
	for pos < len(body) && body[pos] != 0 {
		pos++
	}
	if pos >= len(body) {
		return nil, fmt.Errorf("wiremsg: OP_QUERY missing terminated collection name")
	}
	fullName := string(body[nameStart:pos])
	pos++

	if pos+8 > len(body) {
		return nil, fmt.Errorf("wiremsg: OP_QUERY missing skip/return counts")
	}
	numberToSkip := int32(binary.LittleEndian.Uint32(body[pos : pos+4]))
	numberToReturn := int32(binary.LittleEndian.Uint32(body[pos+4 : pos+8]))
	pos += 8

	docLen, err := peekDocLength(body, pos, len(body))
	if err != nil {
		return nil, err
	}
	query := body[pos : pos+docLen]
	pos += docLen

	var selector []byte
	if pos < len(body) {
		selLen, err := peekDocLength(body, pos, len(body))
		if err != nil {
			return nil, err
		}
		selector = body[pos : pos+selLen]
	}

	return &LegacyQueryMessage{
		Hdr:                  hdr,
		Flags:                flags,
		FullCollectionName:   fullName,
		NumberToSkip:         numberToSkip,
		NumberToReturn:       numberToReturn,
		Query:                query,
		ReturnFieldsSelector: selector,
	}, nil
}

func parseLegacyReply(hdr Header, body []byte) (*LegacyReplyMessage, error) {
	if len(body) < 20 {
		return nil, fmt.Errorf("wiremsg: OP_REPLY body too short")
	}
	responseFlags := int32(binary.LittleEndian.Uint32(body[0:4]))
	cursorID := int64(binary.LittleEndian.Uint64(body[4:12]))
	startingFrom := int32(binary.LittleEndian.Uint32(body[12:16]))
	numberReturned := int32(binary.LittleEndian.Uint32(body[16:20]))

	pos := 20
	docs := make([][]byte, 0, numberReturned)
	for pos < len(body) {
		docLen, err := peekDocLength(body, pos, len(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, body[pos:pos+docLen])
		pos += docLen
	}

	return &LegacyReplyMessage{
		Hdr:            hdr,
		ResponseFlags:  responseFlags,
		CursorID:       cursorID,
		StartingFrom:   startingFrom,
		NumberReturned: numberReturned,
		Documents:      docs,
	}, nil
}

func parseCompressed(hdr Header, body []byte) (Message, error) {
	if len(body) < 9 {
		return nil, fmt.Errorf("wiremsg: OP_COMPRESSED body too short")
	}
	originalOpCode := OpCode(int32(binary.LittleEndian.Uint32(body[0:4])))
	uncompressedSize := int32(binary.LittleEndian.Uint32(body[4:8]))
	compressor := CompressorID(body[8])
	payload := body[9:]

	plain, err := decompress(compressor, payload, int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("wiremsg: decompressing OP_COMPRESSED payload: %w", err)
	}

	innerHdr := Header{
		MessageLength: HeaderLen + int32(len(plain)),
		RequestID:     hdr.RequestID,
		ResponseTo:    hdr.ResponseTo,
		OpCode:        originalOpCode,
	}
	return ParseFrame(&Frame{Header: innerHdr, Body: plain})
}

func decompress(id CompressorID, payload []byte, uncompressedSize int) ([]byte, error) {
	switch id {
	case CompressorNoop:
		return payload, nil
	case CompressorSnappy:
		return snappy.Decode(nil, payload)
	case CompressorZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out := make([]byte, 0, uncompressedSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, zr); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorZstd:
		zr, err := zstd.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return zr.DecodeAll(nil, make([]byte, 0, uncompressedSize))
	default:
		return nil, fmt.Errorf("wiremsg: unsupported compressor id %d", id)
	}
}
