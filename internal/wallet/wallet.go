// Package wallet defines the wallet capability used to pay for and
// authenticate VPN access, plus adapters for concrete wallets.
package wallet

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by wallets that cannot perform an operation,
// such as a signing-only wallet asked to submit a transaction.
var ErrUnsupported = errors.New("wallet: operation not supported")

// Signature is the result of signing a message: the signer's public key and
// the signature, both as opaque strings understood by the backend.
type Signature struct {
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

// Wallet is the capability the client needs from a user's wallet. Calls may
// block for as long as the user takes to approve them; callers bound them
// with ctx.
type Wallet interface {
	// Address returns the wallet's primary (owner) address.
	Address(ctx context.Context) (string, error)
	// ChangeAddress returns the address that receives transaction change.
	ChangeAddress(ctx context.Context) (string, error)
	// Balance returns the spendable balance in the chain's smallest unit.
	Balance(ctx context.Context) (uint64, error)
	// SignTransaction signs an unsigned transaction built by the backend and
	// returns the signed transaction.
	SignTransaction(ctx context.Context, tx string) (string, error)
	// SignMessage signs payload with the key of address.
	SignMessage(ctx context.Context, address string, payload []byte) (Signature, error)
	// SubmitTransaction submits a signed transaction and returns its hash.
	SubmitTransaction(ctx context.Context, signedTx string) (string, error)
}
