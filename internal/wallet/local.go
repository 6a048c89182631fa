package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wirepass/wirepass/internal/fsutil"
)

// keyFilePerm is the permission of the wallet key file.
const keyFilePerm = 0o600

// Local is a software wallet holding an ed25519 key in a file. It can sign
// challenges for headless use but cannot build, sign or submit chain
// transactions.
type Local struct {
	key ed25519.PrivateKey
}

var _ Wallet = (*Local)(nil)

// CreateLocal generates a new key and writes its hex-encoded seed to path.
// An existing file is never overwritten.
func CreateLocal(path string, rnd io.Reader) (*Local, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet: create: %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("wallet: create: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rnd)
	if err != nil {
		return nil, fmt.Errorf("wallet: create: generate key: %w", err)
	}
	data := []byte(hex.EncodeToString(priv.Seed()) + "\n")
	if err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data, keyFilePerm); err != nil {
		return nil, fmt.Errorf("wallet: create: write key: %w", err)
	}
	return &Local{key: priv}, nil
}

// LoadLocal reads a wallet key file written by CreateLocal.
func LoadLocal(path string) (*Local, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: load: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("wallet: load: decode key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet: load: key is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &Local{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the hex-encoded public key.
func (l *Local) PublicKey() string {
	return hex.EncodeToString(l.key.Public().(ed25519.PublicKey))
}

// Address returns the hex-encoded public key; a local wallet has no chain
// address of its own.
func (l *Local) Address(context.Context) (string, error) {
	return l.PublicKey(), nil
}

// ChangeAddress returns Address; a local wallet has a single address.
func (l *Local) ChangeAddress(ctx context.Context) (string, error) {
	return l.Address(ctx)
}

// Balance returns ErrUnsupported; a local wallet cannot query the chain.
func (l *Local) Balance(context.Context) (uint64, error) {
	return 0, ErrUnsupported
}

// SignTransaction returns ErrUnsupported.
func (l *Local) SignTransaction(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

// SignMessage signs payload. address must be the wallet's own address.
func (l *Local) SignMessage(_ context.Context, address string, payload []byte) (Signature, error) {
	if address != l.PublicKey() {
		return Signature{}, fmt.Errorf("wallet: sign message: unknown address %q", address)
	}
	return Signature{
		Key:       l.PublicKey(),
		Signature: hex.EncodeToString(ed25519.Sign(l.key, payload)),
	}, nil
}

// SubmitTransaction returns ErrUnsupported.
func (l *Local) SubmitTransaction(context.Context, string) (string, error) {
	return "", ErrUnsupported
}
