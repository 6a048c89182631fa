// Package keys generates and encodes WireGuard X25519 keypairs for device
// provisioning.
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrUnavailableCrypto indicates that no cryptographic random source is
// available. It is fatal for the calling flow and must not be retried.
var ErrUnavailableCrypto = errors.New("keys: cryptographic random source unavailable")

// Keypair holds a Curve25519 keypair for one WireGuard device.
type Keypair struct {
	PrivateKey wgtypes.Key // never logged or sent to the backend
	PublicKey  wgtypes.Key
}

// PublicKeyString returns the standard base64 encoding of the public key.
func (k *Keypair) PublicKeyString() string {
	return k.PublicKey.String()
}

// PrivateKeyString returns the standard base64 encoding of the private key.
func (k *Keypair) PrivateKeyString() string {
	return k.PrivateKey.String()
}

// Generator produces keypairs from Rand.
type Generator struct {
	// Rand is the entropy source. A nil Rand makes Generate fail with
	// ErrUnavailableCrypto.
	Rand io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{Rand: rand.Reader}
}

// Generate returns a fresh keypair. Every call draws new randomness; nothing
// is cached.
func (g *Generator) Generate() (*Keypair, error) {
	if g == nil || g.Rand == nil {
		return nil, ErrUnavailableCrypto
	}

	var priv wgtypes.Key
	if _, err := io.ReadFull(g.Rand, priv[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailableCrypto, err)
	}

	priv[0] &^= 0x07
	priv[31] &^= 0x80
	priv[31] |= 0x40

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("keys: derive public key: %w", err)
	}

	kp := &Keypair{PrivateKey: priv}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// Generate is shorthand for NewGenerator().Generate().
func Generate() (*Keypair, error) {
	return NewGenerator().Generate()
}

// ParsePublicKey decodes a standard base64 WireGuard public key.
func ParsePublicKey(s string) (wgtypes.Key, error) {
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("keys: parse public key: %w", err)
	}
	return k, nil
}

// StdFromURLEncoding converts base64url text to standard base64: '-' becomes
// '+', '_' becomes '/', and '=' padding is restored to a multiple of 4.
func StdFromURLEncoding(s string) string {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}

// JWK is the structured export of an X25519 key as produced by WebCrypto
// ("jwk" format). X and D are base64url without padding.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	D   string `json:"d"`
}

// ParseJWK imports a private X25519 JWK and checks that its public half
// matches the private scalar.
func ParseJWK(data []byte) (*Keypair, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("keys: parse jwk: %w", err)
	}
	if jwk.Kty != "OKP" || jwk.Crv != "X25519" {
		return nil, fmt.Errorf("keys: parse jwk: unsupported key type %s/%s", jwk.Kty, jwk.Crv)
	}
	if jwk.D == "" {
		return nil, errors.New("keys: parse jwk: missing private scalar")
	}

	priv, err := wgtypes.ParseKey(StdFromURLEncoding(jwk.D))
	if err != nil {
		return nil, fmt.Errorf("keys: parse jwk private scalar: %w", err)
	}
	pub := priv.PublicKey()

	if jwk.X != "" {
		x, err := base64.StdEncoding.DecodeString(StdFromURLEncoding(jwk.X))
		if err != nil {
			return nil, fmt.Errorf("keys: parse jwk public key: %w", err)
		}
		if string(x) != string(pub[:]) {
			return nil, errors.New("keys: parse jwk: public key does not match private scalar")
		}
	}

	return &Keypair{PrivateKey: priv, PublicKey: pub}, nil
}
