// file: pkg/consensus/types.go
package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

type NodeID string
type Height uint64

type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

type Block struct {
	Height   Height
	Parent   Hash
	AppHash  Hash // Hash of application state after executing this block
	Payload  []byte
	Proposer NodeID
	Time     time.Time
}

// Certificate is the producer's signed commitment to a block and the
// application state it produced
type Certificate struct {
	Height  Height
	H       Hash // Consensus hash (transactions)
	AppHash Hash // Application state hash (state after execution)
	Sig     []byte
}

// HashOfBlock computes the consensus hash of a block.
// The hash commits to consensus data only: height, parent, payload,
// proposer and time. AppHash is excluded because blocks are hashed before
// execution; the certificate carries the state commitment separately.
func HashOfBlock(b Block) Hash {
	h := sha256.New()

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], uint64(b.Height))
	h.Write(heightBuf[:])

	h.Write(b.Parent[:])
	h.Write(b.Payload)
	h.Write([]byte(b.Proposer))

	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], uint64(b.Time.UnixNano()))
	h.Write(timeBuf[:])

	return sha256.Sum256(h.Sum(nil))
}

// SigningBytes is the message the producer signs for a certificate
func (c Certificate) SigningBytes() []byte {
	out := make([]byte, 0, 8+32+32)
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], uint64(c.Height))
	out = append(out, heightBuf[:]...)
	out = append(out, c.H[:]...)
	out = append(out, c.AppHash[:]...)
	return out
}

// ---- Storage/WAL interfaces (impl in pkg/storage) ----

type BlockStore interface {
	SaveBlock(b Block)
	GetBlock(h Hash) (Block, bool)
	SaveCert(c Certificate)
	GetCert(height Height) (Certificate, bool)
	SetCommitted(h Hash)
	GetCommitted() (Hash, bool)
}

// WALEntry journals one applied block
type WALEntry struct {
	Kind    string // "commit" on the producer, "replay" on followers
	Height  Height
	Block   Hash
	AppHash Hash
}

type WAL interface {
	Append(e WALEntry) error
}

// AppHook is the application side of block production
type AppHook interface {
	PreparePayload(parent Block, next Height) []byte
	OnCommit(committed Block) Hash // Returns AppHash after executing block
}
