package record

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"
)

func crc32ChecksumFor(key, value []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write(key)
	crc.Write(value)
	return crc.Sum32()
}

func putUint32BE(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"small", &Record{Key: []byte("a"), Value: []byte("b")}},
		{"empty value", &Record{Key: []byte("k"), Value: []byte{}}},
		{"binary", &Record{Key: []byte{0, 1, 2, 3}, Value: []byte{9, 8, 7}}},
		{"large", &Record{Key: bytes.Repeat([]byte("k"), 1024), Value: bytes.Repeat([]byte("v"), 2048)}},
		{"tombstone", &Record{Key: []byte("deleted-key"), Value: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, tt.rec); err != nil {
				t.Fatal(err)
			}
			if buf.Len() != Size(tt.rec) {
				t.Fatalf("Size() = %d, encoded %d bytes", Size(tt.rec), buf.Len())
			}

			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if !bytes.Equal(got.Key, tt.rec.Key) {
				t.Fatalf("key mismatch: got %q want %q", got.Key, tt.rec.Key)
			}
			if got.IsDeleted() != tt.rec.IsDeleted() {
				t.Fatalf("tombstone mismatch: got %v want %v", got.IsDeleted(), tt.rec.IsDeleted())
			}
			if !tt.rec.IsDeleted() && !bytes.Equal(got.Value, tt.rec.Value) {
				t.Fatalf("value mismatch: got %q want %q", got.Value, tt.rec.Value)
			}
		})
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	r := &Record{Key: []byte("key"), Value: []byte("value")}
	if err := Encode(&buf, r); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	if _, err := Decode(bytes.NewReader(raw)); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeDetectsTruncation(t *testing.T) {
	r := &Record{Key: []byte("key"), Value: []byte("value")}
	total := Size(r)

	for i := 1; i < total; i++ {
		var buf bytes.Buffer
		if err := Encode(&buf, r); err != nil {
			t.Fatal(err)
		}
		raw := buf.Bytes()[:i]

		if _, err := Decode(bytes.NewReader(raw)); err != io.EOF {
			t.Fatalf("truncated at %d: expected io.EOF, got %v", i, err)
		}
	}
}

func TestDecodeMultipleRecords(t *testing.T) {
	var buf bytes.Buffer
	records := []*Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("a"), Value: nil},
	}
	for _, r := range records {
		if err := Encode(&buf, r); err != nil {
			t.Fatal(err)
		}
	}

	for i, want := range records {
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !bytes.Equal(got.Key, want.Key) || got.IsDeleted() != want.IsDeleted() {
			t.Fatalf("record %d mismatch", i)
		}
	}

	if _, err := Decode(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestEncodeRejectsEmptyKey(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Record{Key: nil, Value: []byte("v")}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestVerifyHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf); err != nil {
		t.Fatal(err)
	}
	if err := VerifyHeader(buf.Bytes()); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}

	bad := append([]byte{}, buf.Bytes()...)
	bad[0] = 'Z'
	if err := VerifyHeader(bad); err == nil {
		t.Fatal("expected error for bad magic")
	}

	bad2 := append([]byte{}, buf.Bytes()...)
	bad2[4] = 9
	if err := VerifyHeader(bad2); err == nil {
		t.Fatal("expected error for bad major version")
	}
}

func TestVerifyChecksum(t *testing.T) {
	key := []byte("key")
	value := []byte("value")

	var buf bytes.Buffer
	buf.Write(value)
	crc := crc32ChecksumFor(key, value)
	var sum [4]byte
	putUint32BE(sum[:], crc)
	buf.Write(sum[:])

	got, err := VerifyChecksum(key, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("got %q want %q", got, value)
	}

	corrupted := append([]byte{}, buf.Bytes()...)
	corrupted[0] ^= 0xFF
	if _, err := VerifyChecksum(key, corrupted); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
