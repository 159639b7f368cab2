package storage

import (
	"path/filepath"
	"testing"
)

func openTestKV(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// An in-memory store must behave like a file-backed one; with more
// than one pooled connection each would see its own empty database.
func TestKVInMemory(t *testing.T) {
	kv, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	defer kv.Close()

	for i := 0; i < 10; i++ {
		if err := kv.Set("k", []byte("v")); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
		got, ok, err := kv.Get("k")
		if err != nil || !ok || string(got) != "v" {
			t.Fatalf("Get #%d = %q, %v, %v; want v, true, nil", i, got, ok, err)
		}
	}
}

func TestKVSetGet(t *testing.T) {
	kv := openTestKV(t)

	if err := kv.Set("k1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := kv.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: key missing after Set")
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get = %q, want %q", got, `{"a":1}`)
	}
}

func TestKVOverwrite(t *testing.T) {
	kv := openTestKV(t)

	if err := kv.Set("k", []byte("old")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("k", []byte("new")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, _, err := kv.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Get = %q, want %q", got, "new")
	}
}

func TestKVMissingKey(t *testing.T) {
	kv := openTestKV(t)

	_, ok, err := kv.Get("absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get(absent) reported found")
	}
}

func TestKVDelete(t *testing.T) {
	kv := openTestKV(t)

	if err := kv.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("key still present after Delete")
	}

	// Deleting again is a no-op.
	if err := kv.Delete("k"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}
