package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"chainkernel/store"
	"chainkernel/wire"
)

// ClientRecord is the bookkeeping the kernel keeps for a light-client
// registration. Per spec.md §1's explicit non-goal, the kernel never
// verifies headers or detects misbehavior for these clients — it only
// stores what a relayer contract hands it, the same way the teacher's
// access_control.go stores role grants without interpreting them.
type ClientRecord struct {
	ClientType string          `json:"client_type"`
	Data       json.RawMessage `json:"data"`
	Frozen     bool            `json:"frozen"`
}

// CreateClient registers a new light-client record and returns the ID it
// was assigned. The ID is derived deterministically from a persisted
// monotonic counter — H(creator ‖ clientType ‖ count) — rather than a
// random UUID, so that two honest nodes replaying the same block mint the
// same client ID and therefore the same state root, per spec.md §2.
func (r *Registry) CreateClient(s store.Provider, creator wire.Address, clientType string, data json.RawMessage) (string, error) {
	seq, _, err := r.clientSeq.May(s)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, 20+len(clientType)+8)
	buf = append(buf, creator[:]...)
	buf = append(buf, clientType...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	buf = append(buf, seqBytes[:]...)
	clientID := wire.HashString(wire.HashBytes(buf))

	if r.clients.Has(s, clientID) {
		return "", fmt.Errorf("registry: client %q already exists", clientID)
	}
	if err := r.clients.Save(s, clientID, ClientRecord{ClientType: clientType, Data: data}); err != nil {
		return "", err
	}
	if err := r.clientSeq.Save(s, seq+1); err != nil {
		return "", err
	}
	return clientID, nil
}

// UpdateClient replaces an existing, non-frozen client's data.
func (r *Registry) UpdateClient(s store.Provider, clientID string, data json.RawMessage) error {
	rec, ok, err := r.clients.May(s, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: client %q not found", clientID)
	}
	if rec.Frozen {
		return fmt.Errorf("registry: client %q is frozen", clientID)
	}
	rec.Data = data
	return r.clients.Save(s, clientID, rec)
}

// FreezeClient marks a client record frozen, refusing further updates.
func (r *Registry) FreezeClient(s store.Provider, clientID string) error {
	rec, ok, err := r.clients.May(s, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: client %q not found", clientID)
	}
	rec.Frozen = true
	return r.clients.Save(s, clientID, rec)
}

// ClientOf loads a client record by ID.
func (r *Registry) ClientOf(s store.Provider, clientID string) (ClientRecord, bool, error) {
	return r.clients.May(s, clientID)
}
