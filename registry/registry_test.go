package registry

import (
	"testing"

	"chainkernel/store"
	"chainkernel/wire"
)

func newProvider() store.Provider {
	return store.NewProvider(store.NewShared(store.NewMemStore()), []byte("registry/"), true)
}

func addrN(n byte) wire.Address {
	var a wire.Address
	a[19] = n
	return a
}

func TestUploadIsIdempotent(t *testing.T) {
	r := New()
	s := newProvider()
	code := []byte("contract bytecode")
	h1, err := r.Upload(s, code)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	h2, err := r.Upload(s, code)
	if err != nil {
		t.Fatalf("Upload again: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("Upload not idempotent: %v != %v", h1, h2)
	}
	got, ok, err := r.Code(s, h1)
	if err != nil || !ok {
		t.Fatalf("Code: %v %v %v", got, ok, err)
	}
	if string(got) != string(code) {
		t.Fatalf("Code mismatch: %q", got)
	}
}

func TestUploadRejectsEmptyCode(t *testing.T) {
	r := New()
	s := newProvider()
	if _, err := r.Upload(s, nil); err == nil {
		t.Fatal("expected error uploading empty code")
	}
}

func TestInstantiateBindsNewAddress(t *testing.T) {
	r := New()
	s := newProvider()
	code := []byte("bank contract")
	hash, err := r.Upload(s, code)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	deployer := addrN(1)
	addr, err := r.Instantiate(s, deployer, hash, []byte("salt-1"), nil, "bank")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	info, ok, err := r.ContractInfoOf(s, addr)
	if err != nil || !ok {
		t.Fatalf("ContractInfoOf: %v %v %v", info, ok, err)
	}
	if info.CodeHash != hash || info.Label != "bank" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := r.Instantiate(s, deployer, hash, []byte("salt-1"), nil, "bank"); err == nil {
		t.Fatal("expected error rebinding the same derived address")
	}
}

func TestInstantiateRequiresUploadedCode(t *testing.T) {
	r := New()
	s := newProvider()
	var missing wire.Hash
	missing[0] = 0xAB
	if _, err := r.Instantiate(s, addrN(1), missing, []byte("salt"), nil, "x"); err == nil {
		t.Fatal("expected error instantiating unknown code hash")
	}
}

func TestMigrateRequiresAdmin(t *testing.T) {
	r := New()
	s := newProvider()
	hash, err := r.Upload(s, []byte("code v1"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	admin := addrN(2)
	addr, err := r.Instantiate(s, addrN(1), hash, []byte("salt"), &admin, "x")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	hashV2, err := r.Upload(s, []byte("code v2"))
	if err != nil {
		t.Fatalf("Upload v2: %v", err)
	}

	if err := r.Migrate(s, addrN(99), addr, hashV2); err == nil {
		t.Fatal("expected error migrating as non-admin")
	}
	if err := r.Migrate(s, admin, addr, hashV2); err != nil {
		t.Fatalf("Migrate as admin: %v", err)
	}
	info, _, _ := r.ContractInfoOf(s, addr)
	if info.CodeHash != hashV2 {
		t.Fatalf("code hash not updated: %+v", info)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	r := New()
	s := newProvider()
	cfg := wire.ChainConfig{
		Owner:       addrN(1),
		Bank:        addrN(2),
		Taxman:      addrN(3),
		Cronjobs:    map[wire.Address]uint64{},
		Upload:      wire.Permissions{Kind: wire.PermEverybody},
		Instantiate: wire.Permissions{Kind: wire.PermEverybody},
	}
	if err := r.SetConfig(s, cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	got, err := r.Config(s)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if got.Owner != cfg.Owner || got.Bank != cfg.Bank {
		t.Fatalf("config mismatch: %+v", got)
	}
}

func TestAppConfigRoundTrip(t *testing.T) {
	r := New()
	s := newProvider()
	if err := r.AppConfigSet(s, "max_msgs_per_tx", []byte("16")); err != nil {
		t.Fatalf("AppConfigSet: %v", err)
	}
	got, ok, err := r.AppConfigGet(s, "max_msgs_per_tx")
	if err != nil || !ok || string(got) != "16" {
		t.Fatalf("AppConfigGet = %q, %v, %v", got, ok, err)
	}
	entries, err := r.AppConfigRange(s, nil, nil, store.Ascending)
	if err != nil || len(entries) != 1 {
		t.Fatalf("AppConfigRange = %v, %v", entries, err)
	}
}

func TestLightClientLifecycle(t *testing.T) {
	r := New()
	s := newProvider()
	clientID, err := r.CreateClient(s, addrN(1), "tendermint", nil)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if err := r.UpdateClient(s, clientID, []byte(`{"height":2}`)); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	if err := r.FreezeClient(s, clientID); err != nil {
		t.Fatalf("FreezeClient: %v", err)
	}
	if err := r.UpdateClient(s, clientID, []byte(`{"height":3}`)); err == nil {
		t.Fatal("expected error updating frozen client")
	}
	rec, ok, err := r.ClientOf(s, clientID)
	if err != nil || !ok || !rec.Frozen {
		t.Fatalf("ClientOf: %+v %v %v", rec, ok, err)
	}
}

func TestCreateClientIDIsDeterministic(t *testing.T) {
	s1 := newProvider()
	id1, err := New().CreateClient(s1, addrN(7), "tendermint", nil)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	s2 := newProvider()
	id2, err := New().CreateClient(s2, addrN(7), "tendermint", nil)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected replaying the same creator/client-type/sequence to mint the same client ID, got %q vs %q", id1, id2)
	}
}
