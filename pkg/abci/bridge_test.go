package abci

import (
	"testing"

	"github.com/uhyunpark/hypermarket/pkg/consensus"
)

func TestPayloadRoundTrip(t *testing.T) {
	app := NewMockApp()
	txs := []string{
		`{"msg":{"create_bid":{}}}`,
		`{"msg":{"cancel_bid":{}}}`,
		`{"msg":{"set_paused":{"paused":true}}}`,
	}
	for _, tx := range txs {
		app.PushTx([]byte(tx))
	}
	bridge := &Bridge{App: app}

	payload := bridge.PreparePayload(consensus.GenesisBlock(), 1)
	got := splitPayload(payload)

	// set_paused first, then cancels, then everything else
	want := []string{txs[2], txs[1], txs[0]}
	if len(got) != len(want) {
		t.Fatalf("split %d txs, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("tx[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSplitPayloadSkipsEmpty(t *testing.T) {
	got := splitPayload([]byte("a\x00\x00b\x00"))
	if len(got) != 2 || string(got[0]) != "a" || string(got[1]) != "b" {
		t.Errorf("splitPayload = %q", got)
	}
	if len(splitPayload(nil)) != 0 {
		t.Error("empty payload should carry no txs")
	}
}

func TestOnCommitFinalizes(t *testing.T) {
	app := NewMockApp()
	bridge := &Bridge{App: app}
	blk := consensus.Block{Height: 3, Payload: []byte("x\x00y\x00")}

	h1 := bridge.OnCommit(blk)
	h2 := bridge.OnCommit(blk)
	if h1 != h2 {
		t.Error("same block must produce the same app hash")
	}
	if app.CommitCount() != 2 {
		t.Errorf("CommitCount = %d, want 2", app.CommitCount())
	}
}
