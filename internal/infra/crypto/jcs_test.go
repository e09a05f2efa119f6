package crypto

import (
	"testing"
)

func TestCanonicalize_SortsKeys(t *testing.T) {
	got, err := Canonicalize([]byte(`{"b":1,"a":{"z":true,"y":null}}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":{"y":null,"z":true},"b":1}`
	if string(got) != want {
		t.Fatalf("canonical form = %s, want %s", got, want)
	}
}

func TestCanonicalize_RejectsTrailingData(t *testing.T) {
	if _, err := Canonicalize([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestCanonicalize_Numbers(t *testing.T) {
	cases := map[string]string{
		`{"n":1.0}`:    `{"n":1}`,
		`{"n":0.5}`:    `{"n":0.5}`,
		`{"n":-0}`:     `{"n":0}`,
		`{"n":1e2}`:    `{"n":100}`,
		`{"n":1.5e-3}`: `{"n":0.0015}`,
		`{"n":1e21}`:   `{"n":1e21}`,
	}
	for input, want := range cases {
		got, err := Canonicalize([]byte(input))
		if err != nil {
			t.Fatalf("canonicalize %s: %v", input, err)
		}
		if string(got) != want {
			t.Errorf("canonicalize(%s) = %s, want %s", input, got, want)
		}
	}
}

func TestCanonicalizeValue_StableAcrossEquivalentInputs(t *testing.T) {
	a, err := CanonicalizeValue(map[string]any{"x": 1, "y": "two"})
	if err != nil {
		t.Fatalf("canonicalize map: %v", err)
	}
	b, err := CanonicalizeValue([]byte(`{"y":"two","x":1}`))
	if err != nil {
		t.Fatalf("canonicalize raw: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonical forms diverge: %s vs %s", a, b)
	}
}

func TestDigestValue_SingleByteSensitivity(t *testing.T) {
	_, d1, err := DigestValue(map[string]any{"text": "the light was red"})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	_, d2, err := DigestValue(map[string]any{"text": "the light was reD"})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d1 == d2 {
		t.Fatal("digests must differ on any byte change")
	}
}

func TestCanonicalize_EscapesControlCharacters(t *testing.T) {
	got, err := CanonicalizeValue(map[string]any{"s": "a\tb\nc\u0001"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"s":"a\tb\nc\u0001"}`
	if string(got) != want {
		t.Fatalf("canonical form = %s, want %s", got, want)
	}
}
