package dtype

import (
	"encoding/json"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	for _, d := range []DType{Bool, Uint8, Int32, Int64, FP16, FP32, FP64, String, Bytes} {
		got, err := Parse(d.String())
		if err != nil {
			t.Fatalf("Parse(%s): %v", d.String(), err)
		}
		if got != d {
			t.Fatalf("Parse(%s) = %v, want %v", d.String(), got, d)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("NOT_A_TYPE"); err == nil {
		t.Fatal("expected error for unknown type name")
	}
	if _, err := Parse("INVALID"); err == nil {
		t.Fatal("expected error parsing the Invalid sentinel name")
	}
}

func TestByteSize(t *testing.T) {
	cases := map[DType]int{
		Bool: 1, Uint8: 1, Int32: 4, Int64: 8, FP16: 2, FP32: 4, FP64: 8,
	}
	for d, want := range cases {
		got, ok := d.ByteSize()
		if !ok || got != want {
			t.Fatalf("%s.ByteSize() = (%d, %v), want (%d, true)", d, got, ok, want)
		}
	}
	if _, ok := String.ByteSize(); ok {
		t.Fatal("String.ByteSize() should not be ok")
	}
	if _, ok := Bytes.ByteSize(); ok {
		t.Fatal("Bytes.ByteSize() should not be ok")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(FP32)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"FP32"` {
		t.Fatalf("Marshal(FP32) = %s, want \"FP32\"", b)
	}
	var got DType
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != FP32 {
		t.Fatalf("Unmarshal = %v, want FP32", got)
	}
	if err := json.Unmarshal([]byte(`"BOGUS"`), &got); err == nil {
		t.Fatal("expected error unmarshaling unknown dtype name")
	}
}

func TestIsString(t *testing.T) {
	if !String.IsString() || !Bytes.IsString() {
		t.Fatal("String and Bytes must report IsString() == true")
	}
	if FP32.IsString() {
		t.Fatal("FP32 must not report IsString()")
	}
}
