package nft

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/hypermarket/pkg/abci"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// computeAppHash chains the previous app hash with everything execution
// depends on or produced:
//
//	keccak256(prev || height || time || for each tx: keccak256(tx) || code || log || events)
//
// State is a pure function of genesis and the ordered tx results, so two
// nodes agree on the hash exactly when they executed the same history
// with the same outcomes.
func computeAppHash(prev [32]byte, env market.Env, txs [][]byte, results []abci.TxResult) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(prev[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], env.Height)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], env.Time)
	h.Write(buf[:])

	for i, tx := range txs {
		th := sha3.NewLegacyKeccak256()
		th.Write(tx)
		h.Write(th.Sum(nil))

		res := results[i]
		binary.BigEndian.PutUint32(buf[:4], res.Code)
		h.Write(buf[:4])
		writeString(h, res.Log)
		for _, ev := range res.Events {
			writeString(h, ev.Type)
			for _, attr := range ev.Attributes {
				writeString(h, attr.Key)
				writeString(h, attr.Value)
			}
		}
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// writeString length-prefixes s so adjacent fields cannot run together
func writeString(h io.Writer, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
