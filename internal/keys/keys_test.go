package keys

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"testing/iotest"

	"golang.org/x/crypto/curve25519"
)

func TestGenerate_ValidKeys(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("curve25519.X25519: %v", err)
	}
	if !bytes.Equal(kp.PublicKey[:], want) {
		t.Fatal("public key does not match Curve25519(privateKey, Basepoint)")
	}
}

func TestGenerate_Base64Encoding(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for name, s := range map[string]string{
		"public":  kp.PublicKeyString(),
		"private": kp.PrivateKeyString(),
	} {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			t.Fatalf("%s: base64 decode: %v", name, err)
		}
		if len(decoded) != 32 {
			t.Fatalf("%s: decoded length = %d, want 32", name, len(decoded))
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const n = 16
	pubs := make(map[string]bool, n)
	privs := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		kp, err := Generate()
		if err != nil {
			t.Fatalf("Generate (%d): %v", i, err)
		}
		if pubs[kp.PublicKeyString()] {
			t.Fatalf("duplicate public key on call %d", i)
		}
		if privs[kp.PrivateKeyString()] {
			t.Fatalf("duplicate private key on call %d", i)
		}
		pubs[kp.PublicKeyString()] = true
		privs[kp.PrivateKeyString()] = true
	}
}

func TestGenerate_Clamping(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if kp.PrivateKey[0]&0x07 != 0 {
		t.Fatalf("byte[0]&7 = %d, want 0", kp.PrivateKey[0]&0x07)
	}
	if kp.PrivateKey[31]&0x80 != 0 {
		t.Fatalf("byte[31]&128 = %d, want 0", kp.PrivateKey[31]&0x80)
	}
	if kp.PrivateKey[31]&0x40 != 0x40 {
		t.Fatalf("byte[31]&64 = %d, want 64", kp.PrivateKey[31]&0x40)
	}
}

func TestGenerate_NoRandomSource(t *testing.T) {
	g := &Generator{}
	if _, err := g.Generate(); !errors.Is(err, ErrUnavailableCrypto) {
		t.Fatalf("Generate error = %v, want ErrUnavailableCrypto", err)
	}

	var nilGen *Generator
	if _, err := nilGen.Generate(); !errors.Is(err, ErrUnavailableCrypto) {
		t.Fatalf("nil Generator error = %v, want ErrUnavailableCrypto", err)
	}
}

func TestGenerate_FailingRandomSource(t *testing.T) {
	g := &Generator{Rand: iotest.ErrReader(errors.New("entropy exhausted"))}
	if _, err := g.Generate(); !errors.Is(err, ErrUnavailableCrypto) {
		t.Fatalf("Generate error = %v, want ErrUnavailableCrypto", err)
	}
}

func TestStdFromURLEncoding(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"ab", "ab=="},
		{"abc", "abc="},
		{"abcd", "abcd"},
		{"a-b_", "a+b/"},
		{"-_-_-", "+/+/+==="},
	}
	for _, tt := range tests {
		if got := StdFromURLEncoding(tt.in); got != tt.want {
			t.Errorf("StdFromURLEncoding(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStdFromURLEncoding_MatchesStdEncoding(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe, 0x3e, 0x3f, 0x00, 0x01}
	url := base64.RawURLEncoding.EncodeToString(raw)
	if got, want := StdFromURLEncoding(url), base64.StdEncoding.EncodeToString(raw); got != want {
		t.Fatalf("StdFromURLEncoding(%q) = %q, want %q", url, got, want)
	}
}

func TestParseJWK_RoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, _ := json.Marshal(JWK{
		Kty: "OKP",
		Crv: "X25519",
		X:   base64.RawURLEncoding.EncodeToString(kp.PublicKey[:]),
		D:   base64.RawURLEncoding.EncodeToString(kp.PrivateKey[:]),
	})

	got, err := ParseJWK(data)
	if err != nil {
		t.Fatalf("ParseJWK: %v", err)
	}
	if got.PrivateKeyString() != kp.PrivateKeyString() {
		t.Errorf("private key = %s, want %s", got.PrivateKeyString(), kp.PrivateKeyString())
	}
	if got.PublicKeyString() != kp.PublicKeyString() {
		t.Errorf("public key = %s, want %s", got.PublicKeyString(), kp.PublicKeyString())
	}
}

func TestParseJWK_Rejects(t *testing.T) {
	a, _ := Generate()
	b, _ := Generate()
	mismatched, _ := json.Marshal(JWK{
		Kty: "OKP",
		Crv: "X25519",
		X:   base64.RawURLEncoding.EncodeToString(b.PublicKey[:]),
		D:   base64.RawURLEncoding.EncodeToString(a.PrivateKey[:]),
	})

	tests := map[string][]byte{
		"not json":     []byte("{"),
		"wrong curve":  []byte(`{"kty":"OKP","crv":"Ed25519","d":"AAAA"}`),
		"missing d":    []byte(`{"kty":"OKP","crv":"X25519"}`),
		"short d":      []byte(`{"kty":"OKP","crv":"X25519","d":"AAAA"}`),
		"mismatched x": mismatched,
	}
	for name, data := range tests {
		if _, err := ParseJWK(data); err == nil {
			t.Errorf("%s: ParseJWK = nil error", name)
		}
	}
}

func TestParsePublicKey(t *testing.T) {
	kp, _ := Generate()
	k, err := ParsePublicKey(kp.PublicKeyString())
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if k != kp.PublicKey {
		t.Error("parsed key differs")
	}
	if _, err := ParsePublicKey("not-a-key"); err == nil {
		t.Error("ParsePublicKey(garbage) = nil error")
	}
}
