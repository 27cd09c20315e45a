package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// jsonMarshal and jsonUnmarshal wrap encoding/json so that every variant
// body in the binary codec goes through a single, greppable choke point.
func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// encoder accumulates the length-prefixed binary encoding of a Tx. Every
// variable-length field is written as a u32 length followed by its bytes,
// generalizing the teacher's reflection-free encoding/json-first style to
// a binary form: no schema registry, no varint tables, just explicit
// field-by-field writes a reviewer can read top to bottom.
type encoder struct {
	buf []byte
}

func (e *encoder) writeU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf = append(e.buf, lenBuf[:]...)
	e.buf = append(e.buf, b...)
}

func (e *encoder) writeFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readU64() (uint64, error) {
	if len(d.buf)-d.pos < 8 {
		return 0, fmt.Errorf("wire: truncated u64")
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) readBytes() ([]byte, error) {
	if len(d.buf)-d.pos < 4 {
		return nil, fmt.Errorf("wire: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(d.buf[d.pos:]))
	d.pos += 4
	if len(d.buf)-d.pos < n {
		return nil, fmt.Errorf("wire: truncated field of length %d", n)
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

func (d *decoder) readFixed(n int) ([]byte, error) {
	if len(d.buf)-d.pos < n {
		return nil, fmt.Errorf("wire: truncated fixed field of length %d", n)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// EncodeTx renders tx in the kernel's canonical binary wire format.
func EncodeTx(tx Tx) ([]byte, error) {
	e := &encoder{}
	e.writeFixed(tx.Sender[:])
	e.writeU64(tx.GasLimit)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(tx.Msgs)))
	e.buf = append(e.buf, lenBuf[:]...)
	for _, m := range tx.Msgs {
		raw, err := EncodeMessage(m)
		if err != nil {
			return nil, err
		}
		e.writeBytes(raw)
	}
	e.writeBytes(tx.Data)
	e.writeBytes(tx.Credential)
	return e.buf, nil
}

// DecodeTx parses the binary form produced by EncodeTx.
func DecodeTx(raw []byte) (Tx, error) {
	d := &decoder{buf: raw}
	var tx Tx
	senderRaw, err := d.readFixed(20)
	if err != nil {
		return tx, err
	}
	copy(tx.Sender[:], senderRaw)
	if tx.GasLimit, err = d.readU64(); err != nil {
		return tx, err
	}
	if len(d.buf)-d.pos < 4 {
		return tx, fmt.Errorf("wire: truncated message count")
	}
	n := int(binary.BigEndian.Uint32(d.buf[d.pos:]))
	d.pos += 4
	tx.Msgs = make([]Message, 0, n)
	for i := 0; i < n; i++ {
		raw, err := d.readBytes()
		if err != nil {
			return tx, err
		}
		msg, err := DecodeMessage(raw)
		if err != nil {
			return tx, err
		}
		tx.Msgs = append(tx.Msgs, msg)
	}
	if tx.Data, err = d.readBytes(); err != nil {
		return tx, err
	}
	if tx.Credential, err = d.readBytes(); err != nil {
		return tx, err
	}
	return tx, nil
}

// messageTag is the single-byte discriminator for Message's binary form.
type messageTag byte

const (
	tagConfigure messageTag = iota
	tagTransfer
	tagUpload
	tagInstantiate
	tagExecute
	tagMigrate
	tagCreateClient
	tagUpdateClient
	tagFreezeClient
)

var tagToKind = map[messageTag]MessageKind{
	tagConfigure:    KindConfigure,
	tagTransfer:     KindTransfer,
	tagUpload:       KindUpload,
	tagInstantiate:  KindInstantiate,
	tagExecute:      KindExecute,
	tagMigrate:      KindMigrate,
	tagCreateClient: KindCreateClient,
	tagUpdateClient: KindUpdateClient,
	tagFreezeClient: KindFreezeClient,
}

// EncodeMessage renders a single Message in binary form: a one-byte
// variant tag followed by that variant's own JSON payload. Contract-facing
// fields (msg, code, data) are already opaque byte blobs, so there is
// nothing to gain from a bespoke binary layout for the variant body beyond
// the top-level framing; JSON keeps the codec reviewable without a second
// schema to maintain in lockstep with message.go.
func EncodeMessage(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	tag, body, err := messageBody(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(tag))
	out = append(out, body...)
	return out, nil
}

func messageBody(m Message) (messageTag, []byte, error) {
	var (
		tag messageTag
		v   any
	)
	switch m.Kind {
	case KindConfigure:
		tag, v = tagConfigure, m.Configure
	case KindTransfer:
		tag, v = tagTransfer, m.Transfer
	case KindUpload:
		tag, v = tagUpload, m.Upload
	case KindInstantiate:
		tag, v = tagInstantiate, m.Instantiate
	case KindExecute:
		tag, v = tagExecute, m.Execute
	case KindMigrate:
		tag, v = tagMigrate, m.Migrate
	case KindCreateClient:
		tag, v = tagCreateClient, m.CreateClient
	case KindUpdateClient:
		tag, v = tagUpdateClient, m.UpdateClient
	case KindFreezeClient:
		tag, v = tagFreezeClient, m.FreezeClient
	default:
		return 0, nil, fmt.Errorf("wire: unknown message kind %q", m.Kind)
	}
	body, err := jsonMarshal(v)
	return tag, body, err
}

// DecodeMessage parses the binary form produced by EncodeMessage.
func DecodeMessage(raw []byte) (Message, error) {
	if len(raw) == 0 {
		return Message{}, fmt.Errorf("wire: empty message")
	}
	tag := messageTag(raw[0])
	body := raw[1:]
	kind, ok := tagToKind[tag]
	if !ok {
		return Message{}, fmt.Errorf("wire: unknown message tag %d", tag)
	}
	m := Message{Kind: kind}
	var err error
	switch kind {
	case KindConfigure:
		m.Configure = new(ConfigureMsg)
		err = jsonUnmarshal(body, m.Configure)
	case KindTransfer:
		m.Transfer = new(TransferMsg)
		err = jsonUnmarshal(body, m.Transfer)
	case KindUpload:
		m.Upload = new(UploadMsg)
		err = jsonUnmarshal(body, m.Upload)
	case KindInstantiate:
		m.Instantiate = new(InstantiateMsg)
		err = jsonUnmarshal(body, m.Instantiate)
	case KindExecute:
		m.Execute = new(ExecuteMsg)
		err = jsonUnmarshal(body, m.Execute)
	case KindMigrate:
		m.Migrate = new(MigrateMsg)
		err = jsonUnmarshal(body, m.Migrate)
	case KindCreateClient:
		m.CreateClient = new(CreateClientMsg)
		err = jsonUnmarshal(body, m.CreateClient)
	case KindUpdateClient:
		m.UpdateClient = new(UpdateClientMsg)
		err = jsonUnmarshal(body, m.UpdateClient)
	case KindFreezeClient:
		m.FreezeClient = new(FreezeClientMsg)
		err = jsonUnmarshal(body, m.FreezeClient)
	}
	if err != nil {
		return Message{}, err
	}
	return m, nil
}
