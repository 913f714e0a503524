package backend

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Postgres type OIDs this gateway knows how to turn into native Go values.
// Anything else is left as a string — good enough for the command shapes
// spec §4.6 names.
const (
	oidBool      = 16
	oidInt8      = 20
	oidInt2      = 21
	oidInt4      = 23
	oidText      = 25
	oidFloat4    = 700
	oidFloat8    = 701
	oidVarchar   = 1043
	oidJSON      = 114
	oidJSONB     = 3802
)

// Column describes one RowDescription field.
type Column struct {
	Name string
	OID  uint32
}

// Result is the decoded outcome of one simple-query-protocol round trip.
type Result struct {
	Columns      []Column
	Rows         [][]any
	CommandTag   string
	RowsAffected int64
}

// Execute runs sql (already fully parameterized by the translator — no
// further substitution happens here) over pc's connection using the
// PostgreSQL simple query protocol, and returns the decoded result.
func (pc *PooledConn) Execute(sql string) (*Result, error) {
	return runSimpleQuery(pc.conn, sql)
}

func runSimpleQuery(conn net.Conn, sql string) (*Result, error) {
	if err := sendQuery(conn, sql); err != nil {
		return nil, fmt.Errorf("sending query: %w", err)
	}

	res := &Result{}
	for {
		msgType, payload, err := readPGMessage(conn)
		if err != nil {
			return nil, fmt.Errorf("reading query response: %w", err)
		}

		switch msgType {
		case 'T':
			cols, err := parseRowDescription(payload)
			if err != nil {
				return nil, err
			}
			res.Columns = cols

		case 'D':
			row, err := parseDataRow(payload, res.Columns)
			if err != nil {
				return nil, err
			}
			res.Rows = append(res.Rows, row)

		case 'C':
			tag := string(trimNul(payload))
			res.CommandTag = tag
			res.RowsAffected = parseRowsAffected(tag)

		case 'E':
			return nil, fmt.Errorf("backend error: %s", parseErrorMessage(payload))

		case 'Z':
			return res, nil

		case 'N', 'S', 'K', 'A':
			continue

		default:
			continue
		}
	}
}

func sendQuery(conn net.Conn, sql string) error {
	payload := append([]byte(sql), 0)
	buf := make([]byte, 1+4+len(payload))
	buf[0] = 'Q'
	binary.BigEndian.PutUint32(buf[1:5], uint32(4+len(payload)))
	copy(buf[5:], payload)
	_, err := conn.Write(buf)
	return err
}

func readPGMessage(conn net.Conn) (byte, []byte, error) {
	typeBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, typeBuf); err != nil {
		return 0, nil, err
	}
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return 0, nil, err
	}
	payloadLen := int(binary.BigEndian.Uint32(lenBuf)) - 4
	if payloadLen < 0 || payloadLen > 1<<24 {
		return 0, nil, fmt.Errorf("invalid message length %d", payloadLen)
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return 0, nil, err
		}
	}
	return typeBuf[0], payload, nil
}

func parseRowDescription(payload []byte) ([]Column, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("truncated RowDescription")
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	pos := 2
	cols := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		nameStart := pos
		for pos < len(payload) && payload[pos] != 0 {
			pos++
		}
		if pos >= len(payload) {
			return nil, fmt.Errorf("unterminated column name in RowDescription")
		}
		name := string(payload[nameStart:pos])
		pos++ // NUL

		if pos+18 > len(payload) {
			return nil, fmt.Errorf("truncated RowDescription field")
		}
		pos += 4 + 2 // tableOID, columnAttrNum
		typeOID := binary.BigEndian.Uint32(payload[pos : pos+4])
		pos += 4 + 2 + 4 + 2 // typeOID(already read len), typeLen, typeModifier, formatCode
		cols = append(cols, Column{Name: name, OID: typeOID})
	}
	return cols, nil
}

func parseDataRow(payload []byte, cols []Column) ([]any, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("truncated DataRow")
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	pos := 2
	row := make([]any, n)
	for i := 0; i < n; i++ {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("truncated DataRow field length")
		}
		fieldLen := int32(binary.BigEndian.Uint32(payload[pos : pos+4]))
		pos += 4
		if fieldLen < 0 {
			row[i] = nil
			continue
		}
		if pos+int(fieldLen) > len(payload) {
			return nil, fmt.Errorf("DataRow field overruns message")
		}
		raw := payload[pos : pos+int(fieldLen)]
		pos += int(fieldLen)

		var oid uint32
		if i < len(cols) {
			oid = cols[i].OID
		}
		row[i] = decodeTextValue(oid, raw)
	}
	return row, nil
}

// decodeTextValue converts a text-format PostgreSQL column value into a
// native Go value based on its declared type OID.
func decodeTextValue(oid uint32, raw []byte) any {
	s := string(raw)
	switch oid {
	case oidInt2, oidInt4, oidInt8:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return s
	case oidFloat4, oidFloat8:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case oidBool:
		return s == "t"
	case oidText, oidVarchar, oidJSON, oidJSONB:
		return s
	default:
		return s
	}
}

func trimNul(b []byte) []byte {
	if i := indexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseRowsAffected extracts the trailing integer count from a
// CommandComplete tag like "INSERT 0 3", "UPDATE 2", "DELETE 1", "SELECT 5".
// Tags with no numeric suffix (CREATE TABLE, DROP TABLE, ...) yield 0.
func parseRowsAffected(tag string) int64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	last := fields[len(fields)-1]
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
