package index

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestEmptyIndex(t *testing.T) {
	ix := New()

	if ix.Len() != 0 {
		t.Fatalf("expected size 0, got %d", ix.Len())
	}
	if _, ok := ix.Get([]byte("missing")); ok {
		t.Fatal("expected not found in empty index")
	}
}

func TestPutAndGetSingle(t *testing.T) {
	ix := New()
	ix.Put([]byte("k"), Entry{Offset: 10, Size: 5})

	got, ok := ix.Get([]byte("k"))
	if !ok || got != (Entry{Offset: 10, Size: 5}) {
		t.Fatalf("expected (10,5,true), got (%v,%v)", got, ok)
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	ix := New()
	ix.Put([]byte("k"), Entry{Offset: 1, Size: 1})
	ix.Put([]byte("k"), Entry{Offset: 2, Size: 2})

	got, ok := ix.Get([]byte("k"))
	if !ok || got != (Entry{Offset: 2, Size: 2}) {
		t.Fatalf("overwrite failed, got (%v,%v)", got, ok)
	}
	if ix.Len() != 1 {
		t.Fatalf("expected size 1, got %d", ix.Len())
	}
}

func TestDeletePresentKey(t *testing.T) {
	ix := New()
	ix.Put([]byte("k"), Entry{Offset: 1, Size: 1})
	ix.Delete([]byte("k"))

	if ix.Contains([]byte("k")) {
		t.Fatal("expected key removed")
	}
	if ix.Len() != 0 {
		t.Fatalf("expected size 0, got %d", ix.Len())
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	ix := New()
	ix.Put([]byte("a"), Entry{Offset: 1, Size: 1})
	ix.Delete([]byte("missing"))

	if ix.Len() != 1 {
		t.Fatalf("expected size 1, got %d", ix.Len())
	}
}

func TestSequentialInsertAndGet(t *testing.T) {
	ix := New()
	for i := range 1000 {
		ix.Put([]byte(fmt.Sprintf("key-%04d", i)), Entry{Offset: int64(i), Size: int32(i)})
	}
	for i := range 1000 {
		got, ok := ix.Get([]byte(fmt.Sprintf("key-%04d", i)))
		if !ok || got.Offset != int64(i) {
			t.Fatalf("bad entry for key-%04d: %v", i, got)
		}
	}
	if ix.Len() != 1000 {
		t.Fatalf("expected size 1000, got %d", ix.Len())
	}
}

func TestRandomInsertGetDelete(t *testing.T) {
	ix := New()
	model := map[string]Entry{}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("k-%d", rng.Intn(500))
		switch rng.Intn(3) {
		case 0, 1:
			entry := Entry{Offset: int64(i), Size: int32(i)}
			ix.Put([]byte(key), entry)
			model[key] = entry
		case 2:
			ix.Delete([]byte(key))
			delete(model, key)
		}
	}

	if ix.Len() != len(model) {
		t.Fatalf("size mismatch: index=%d model=%d", ix.Len(), len(model))
	}

	for key, want := range model {
		got, ok := ix.Get([]byte(key))
		if !ok || got != want {
			t.Fatalf("mismatch for %q: got (%v,%v) want %v", key, got, ok, want)
		}
	}
}

func TestKeysMatchesLiveSet(t *testing.T) {
	ix := New()
	want := map[string]bool{}
	for i := range 50 {
		key := fmt.Sprintf("key-%d", i)
		ix.Put([]byte(key), Entry{Offset: int64(i)})
		want[key] = true
	}
	ix.Delete([]byte("key-3"))
	delete(want, "key-3")

	got := map[string]bool{}
	for k := range ix.Keys() {
		got[string(k)] = true
	}

	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("missing key %q from iteration", k)
		}
	}
}

func TestBinaryKeys(t *testing.T) {
	ix := New()
	key := []byte{0, 1, 255, 0, 2}
	ix.Put(key, Entry{Offset: 7})

	got, ok := ix.Get(key)
	if !ok || got.Offset != 7 {
		t.Fatalf("binary key lookup failed: %v %v", got, ok)
	}
}
