package wire

import (
	"encoding/json"
	"fmt"
)

// MessageKind tags which variant of Message is populated.
type MessageKind string

const (
	KindConfigure    MessageKind = "configure"
	KindTransfer     MessageKind = "transfer"
	KindUpload       MessageKind = "upload"
	KindInstantiate  MessageKind = "instantiate"
	KindExecute      MessageKind = "execute"
	KindMigrate      MessageKind = "migrate"
	KindCreateClient MessageKind = "create_client"
	KindUpdateClient MessageKind = "update_client"
	KindFreezeClient MessageKind = "freeze_client"
)

// ConfigureMsg updates the chain's mutable configuration.
type ConfigureMsg struct {
	NewConfig ChainConfig `json:"new_config"`
}

// TransferMsg moves coins from the sender to to.
type TransferMsg struct {
	To    Address `json:"to"`
	Coins Coins   `json:"coins"`
}

// UploadMsg stores a byte-code module, keyed by its content hash.
type UploadMsg struct {
	Code []byte `json:"code"`
}

// InstantiateMsg deploys a new contract instance.
type InstantiateMsg struct {
	CodeHash Hash            `json:"code_hash"`
	Msg      json.RawMessage `json:"msg"`
	Salt     []byte          `json:"salt"`
	Funds    Coins           `json:"funds"`
	Admin    *Address        `json:"admin,omitempty"`
	Label    string          `json:"label"`
}

// ExecuteMsg invokes an existing contract's execute entry point.
type ExecuteMsg struct {
	Contract Address         `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    Coins           `json:"funds"`
}

// MigrateMsg moves a contract to a new code hash and invokes its migrate
// entry point.
type MigrateMsg struct {
	Contract    Address         `json:"contract"`
	NewCodeHash Hash            `json:"new_code_hash"`
	Msg         json.RawMessage `json:"msg"`
}

// CreateClientMsg registers a new light-client metadata record. Per
// spec.md §1's non-goal, the kernel never verifies light-client headers;
// it only keeps bookkeeping records a relayer contract can act on.
type CreateClientMsg struct {
	ClientType string          `json:"client_type"`
	Msg        json.RawMessage `json:"msg"`
}

// UpdateClientMsg submits a new header/proof for an existing client
// record, without cryptographic verification (see CreateClientMsg).
type UpdateClientMsg struct {
	ClientID string          `json:"client_id"`
	Msg      json.RawMessage `json:"msg"`
}

// FreezeClientMsg marks a client record as frozen, refusing further
// updates.
type FreezeClientMsg struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// Message is the external-effect payload of a transaction: exactly one of
// the variant fields below is populated, selected by Kind.
type Message struct {
	Kind MessageKind `json:"kind"`

	Configure    *ConfigureMsg    `json:"configure,omitempty"`
	Transfer     *TransferMsg     `json:"transfer,omitempty"`
	Upload       *UploadMsg       `json:"upload,omitempty"`
	Instantiate  *InstantiateMsg  `json:"instantiate,omitempty"`
	Execute      *ExecuteMsg      `json:"execute,omitempty"`
	Migrate      *MigrateMsg      `json:"migrate,omitempty"`
	CreateClient *CreateClientMsg `json:"create_client,omitempty"`
	UpdateClient *UpdateClientMsg `json:"update_client,omitempty"`
	FreezeClient *FreezeClientMsg `json:"freeze_client,omitempty"`
}

// Validate checks that exactly one variant is populated and matches Kind.
func (m Message) Validate() error {
	count := 0
	kindOK := false
	check := func(kind MessageKind, present bool) {
		if present {
			count++
			if kind == m.Kind {
				kindOK = true
			}
		}
	}
	check(KindConfigure, m.Configure != nil)
	check(KindTransfer, m.Transfer != nil)
	check(KindUpload, m.Upload != nil)
	check(KindInstantiate, m.Instantiate != nil)
	check(KindExecute, m.Execute != nil)
	check(KindMigrate, m.Migrate != nil)
	check(KindCreateClient, m.CreateClient != nil)
	check(KindUpdateClient, m.UpdateClient != nil)
	check(KindFreezeClient, m.FreezeClient != nil)
	if count != 1 {
		return fmt.Errorf("wire: message must populate exactly one variant, got %d", count)
	}
	if !kindOK {
		return fmt.Errorf("wire: message kind %q does not match its populated variant", m.Kind)
	}
	return nil
}
