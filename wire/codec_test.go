package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"chainkernel/num"
)

func mustAddr(t *testing.T, s string) Address {
	t.Helper()
	a, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	coins, err := NewCoins(Coin{Denom: "uatom", Amount: num.NewUint128FromUint64(100)})
	if err != nil {
		t.Fatalf("NewCoins: %v", err)
	}
	to := mustAddr(t, "0x0101010101010101010101010101010101010101")
	msg := Message{
		Kind: KindTransfer,
		Transfer: &TransferMsg{
			To:    to,
			Coins: coins,
		},
	}
	raw, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	got, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got.Kind != KindTransfer || got.Transfer == nil {
		t.Fatalf("round trip lost variant: %+v", got)
	}
	if got.Transfer.To != to {
		t.Fatalf("To mismatch: got %v want %v", got.Transfer.To, to)
	}
	if len(got.Transfer.Coins) != 1 || got.Transfer.Coins[0].Denom != "uatom" {
		t.Fatalf("Coins mismatch: %+v", got.Transfer.Coins)
	}
}

func TestEncodeMessageRejectsInvalid(t *testing.T) {
	msg := Message{Kind: KindTransfer}
	if _, err := EncodeMessage(msg); err == nil {
		t.Fatal("expected error for message with no populated variant")
	}
}

func TestEncodeDecodeTxRoundTrip(t *testing.T) {
	sender := mustAddr(t, "0x0202020202020202020202020202020202020202")
	execMsg := Message{
		Kind: KindExecute,
		Execute: &ExecuteMsg{
			Contract: sender,
			Msg:      json.RawMessage(`{"noop":{}}`),
		},
	}
	tx := Tx{
		Sender:     sender,
		GasLimit:   500_000,
		Msgs:       []Message{execMsg},
		Data:       []byte("memo"),
		Credential: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	raw, err := EncodeTx(tx)
	if err != nil {
		t.Fatalf("EncodeTx: %v", err)
	}
	got, err := DecodeTx(raw)
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	if got.Sender != tx.Sender || got.GasLimit != tx.GasLimit {
		t.Fatalf("header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Data, tx.Data) || !bytes.Equal(got.Credential, tx.Credential) {
		t.Fatalf("trailer mismatch: %+v", got)
	}
	if len(got.Msgs) != 1 || got.Msgs[0].Kind != KindExecute {
		t.Fatalf("msgs mismatch: %+v", got.Msgs)
	}
}

func TestDecodeTxTruncated(t *testing.T) {
	if _, err := DecodeTx([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error decoding truncated tx")
	}
}

func TestDecodeMessageUnknownTag(t *testing.T) {
	if _, err := DecodeMessage([]byte{0xff}); err == nil {
		t.Fatal("expected error for unknown message tag")
	}
}
