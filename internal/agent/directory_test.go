package agent

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

func compressedKeyFixture(t *testing.T) []byte {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generating fixture key: %v", err)
	}
	return priv.PubKey().SerializeCompressed()
}

func TestGetOrCreateIsIdempotentForTheSameWalletKey(t *testing.T) {
	d := NewDirectory()
	key := compressedKeyFixture(t)

	first, err := d.GetOrCreate(key, "alice")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := d.GetOrCreate(key, "alice-reconnect")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected the same agent ID for repeat sightings of one wallet key, got %s and %s", first.ID, second.ID)
	}
}

func TestGetOrCreateAssignsDistinctIDsPerWalletKey(t *testing.T) {
	d := NewDirectory()

	a, err := d.GetOrCreate(compressedKeyFixture(t), "alice")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b, err := d.GetOrCreate(compressedKeyFixture(t), "bob")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if a.ID == b.ID {
		t.Error("expected distinct agent IDs for distinct wallet keys")
	}
	if _, ok := d.Get(a.ID); !ok {
		t.Error("expected Get to find the registered agent")
	}
}
