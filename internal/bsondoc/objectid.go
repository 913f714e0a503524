package bsondoc

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// processUnique is 5 random bytes generated once per process, per the
// ObjectID shape: 4-byte seconds-since-epoch + 5-byte process-unique value +
// 3-byte incrementing counter. It is not a cryptographic guarantee, only a
// practical collision-avoidance scheme, matching spec.md §6's requirement
// that generated ids merely be unique within a collection for the
// session's lifetime.
var processUnique = func() [5]byte {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return b
}()

var objectIDCounter uint32

func init() {
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	atomic.StoreUint32(&objectIDCounter, binary.BigEndian.Uint32(seed[:])&0x00ffffff)
}

// NewObjectID generates a fresh synthetic document id.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], processUnique[:])
	c := atomic.AddUint32(&objectIDCounter, 1) & 0x00ffffff
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Hex returns the 24-hex-digit textual form of an ObjectID.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ObjectIDFromHex parses a 24-hex-digit string back into an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, bool) {
	var id ObjectID
	if len(s) != 24 {
		return id, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}
	copy(id[:], b)
	return id, true
}
