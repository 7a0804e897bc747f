package p2p

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

func init() {
	gob.Register(CommitWire{})
	gob.Register(SyncResponseWire{})
}

type CommitWire struct {
	Block []byte // gob-encoded consensus.Block
	Cert  []byte // gob-encoded consensus.Certificate
}

// SyncResponseWire answers a sync request; Found=false past the peer's head
type SyncResponseWire struct {
	Found  bool
	Commit CommitWire
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// sync requests are a bare 8-byte big-endian height
func encodeSyncRequest(height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return b[:]
}

func decodeSyncRequest(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("sync request must be 8 bytes")
	}
	return binary.BigEndian.Uint64(b), nil
}
