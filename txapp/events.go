package txapp

import (
	"strconv"

	"chainkernel/wire"
)

func baseEvent(kind string, contract, sender wire.Address) wire.Event {
	return wire.Event{Type: kind, Attributes: []wire.EventAttribute{
		{Key: "contract_address", Value: contract.String()},
		{Key: "sender", Value: sender.String()},
	}}
}

func transferEvent(from, to wire.Address, coins wire.Coins) wire.Event {
	attrs := []wire.EventAttribute{
		{Key: "from", Value: from.String()},
		{Key: "to", Value: to.String()},
	}
	for _, c := range coins {
		attrs = append(attrs, wire.EventAttribute{Key: "amount", Value: c.Amount.String() + c.Denom.String()})
	}
	return wire.Event{Type: "transfer", Attributes: attrs}
}

func instantiateEvent(addr wire.Address, codeHash wire.Hash, sender wire.Address) wire.Event {
	return wire.Event{Type: "instantiate", Attributes: []wire.EventAttribute{
		{Key: "contract_address", Value: addr.String()},
		{Key: "code_hash", Value: wire.HashString(codeHash)},
		{Key: "sender", Value: sender.String()},
	}}
}

func migrateEvent(contract wire.Address, newCodeHash wire.Hash) wire.Event {
	return wire.Event{Type: "migrate", Attributes: []wire.EventAttribute{
		{Key: "contract_address", Value: contract.String()},
		{Key: "new_code_hash", Value: wire.HashString(newCodeHash)},
	}}
}

func replyEvent(contract wire.Address, id uint64) wire.Event {
	return wire.Event{Type: "reply", Attributes: []wire.EventAttribute{
		{Key: "contract_address", Value: contract.String()},
		{Key: "id", Value: strconv.FormatUint(id, 10)},
	}}
}
