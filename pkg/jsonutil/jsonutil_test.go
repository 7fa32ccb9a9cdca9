package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestDecodeKeepsNumbers(t *testing.T) {
	obj, err := Decode([]byte(`{"version": 1, "scale": 1.50}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n, ok := obj["scale"].(json.Number); !ok || n.String() != "1.50" {
		t.Errorf("expected json.Number 1.50, got %#v", obj["scale"])
	}
	if Int(obj, "version", 0) != 1 {
		t.Errorf("expected version 1, got %d", Int(obj, "version", 0))
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	if _, err := Decode([]byte(`[1,2]`)); err != ErrNotObject {
		t.Errorf("expected ErrNotObject, got %v", err)
	}
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestEncodeCanonicalRoundTrip(t *testing.T) {
	in := "{\n  \"assets\": {},\n  \"maps\": {\n    \"a<b\": 2.50\n  },\n  \"version\": 1\n}\n"
	obj, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	out, err := Encode(obj)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(out) != in {
		t.Errorf("expected byte-identical output\nwant %q\ngot  %q", in, string(out))
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{"yes", true, true},
		{"1", true, true},
		{"no", false, true},
		{json.Number("0"), false, true},
		{3, true, true},
		{"maybe", false, false},
		{nil, false, false},
	}
	for _, tt := range tests {
		got, ok := ToBool(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ToBool(%#v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestToIntSaturates(t *testing.T) {
	if v, _ := ToInt(json.Number("99999999999")); v != 2147483647 {
		t.Errorf("expected saturation to MaxInt32, got %d", v)
	}
	if v, _ := ToInt(-1e20); v != -2147483648 {
		t.Errorf("expected saturation to MinInt32, got %d", v)
	}
	if v, _ := ToInt(json.Number("2.9")); v != 2 {
		t.Errorf("expected truncation to 2, got %d", v)
	}
}

func TestCloneIsDeep(t *testing.T) {
	src := Object{"a": Object{"b": []any{1, 2}}}
	cp := CloneObject(src)
	inner, _ := GetObject(cp, "a")
	arr, _ := GetArray(inner, "b")
	arr[0] = 99

	orig, _ := GetObject(src, "a")
	origArr, _ := GetArray(orig, "b")
	if origArr[0] != 1 {
		t.Errorf("expected original untouched, got %v", origArr[0])
	}
}

func TestEnsureObject(t *testing.T) {
	m := Object{"x": "not an object"}
	o, changed := EnsureObject(m, "x")
	if !changed || o == nil {
		t.Fatal("expected replacement object")
	}
	_, changed = EnsureObject(m, "x")
	if changed {
		t.Error("expected no change on second call")
	}
}
