package mempool

import (
	"encoding/json"
	"sync"
)

// TxClass orders transactions within a block
type TxClass int

const (
	TxAdmin  TxClass = iota // set_paused
	TxCancel                // cancel_order, cancel_bid
	TxMarket                // everything else
)

// ClassifyRaw classifies a raw signed transaction by the operation in its
// msg envelope:
//
//	{"msg": {"set_paused": {...}}, ...}  -> TxAdmin
//	{"msg": {"cancel_bid": {...}}, ...}  -> TxCancel
//	{"msg": {"create_bid": {...}}, ...}  -> TxMarket
//
// Anything that does not parse lands in TxMarket; the app rejects it at
// execution with a decode error.
func ClassifyRaw(b []byte) TxClass {
	if len(b) == 0 || b[0] != '{' {
		return TxMarket
	}

	var envelope struct {
		Msg map[string]json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxMarket
	}
	if len(envelope.Msg) != 1 {
		return TxMarket
	}

	for action := range envelope.Msg {
		switch action {
		case "set_paused":
			return TxAdmin
		case "cancel_order", "cancel_bid":
			return TxCancel
		}
	}
	return TxMarket
}

// Mempool keeps three FIFO queues: admin, cancels, then market operations.
// Cancels run ahead of new bids and settlements in the same block so a
// seller withdrawing a listing is not raced by a buyer.
type Mempool struct {
	mu     sync.Mutex
	admin  [][]byte
	cancel [][]byte
	market [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxAdmin:
		m.admin = append(m.admin, cp)
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.market = append(m.market, cp)
	}
}

// SelectForProposal returns up to maxBytes worth of txs in bucket order,
// removing selected txs from the mempool. maxBytes <= 0 means no limit.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	full := false

	pull := func(q *[][]byte) {
		for len(*q) > 0 && !full {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				full = true
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.admin)
	pull(&m.cancel)
	pull(&m.market)

	return out
}

// Len returns total pending txs
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.admin) + len(m.cancel) + len(m.market)
}
