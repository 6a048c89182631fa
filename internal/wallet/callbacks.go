package wallet

import (
	"context"
	"fmt"
)

// Callbacks adapts a callback-style wallet library to Wallet. Each field
// starts the operation and reports its result exactly once through done.
// A nil field makes the operation return ErrUnsupported.
type Callbacks struct {
	AddressFunc           func(done func(string, error))
	ChangeAddressFunc     func(done func(string, error))
	BalanceFunc           func(done func(uint64, error))
	SignTransactionFunc   func(tx string, done func(string, error))
	SignMessageFunc       func(address string, payload []byte, done func(Signature, error))
	SubmitTransactionFunc func(signedTx string, done func(string, error))
}

var _ Wallet = (*Callbacks)(nil)

// await starts an operation and waits for its callback or for ctx to end.
// A callback arriving after ctx ended is dropped.
func await[T any](ctx context.Context, op string, start func(done func(T, error))) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	start(func(v T, err error) {
		select {
		case ch <- result{v, err}:
		default:
		}
	})

	select {
	case r := <-ch:
		if r.err != nil {
			var zero T
			return zero, fmt.Errorf("wallet: %s: %w", op, r.err)
		}
		return r.v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("wallet: %s: %w", op, ctx.Err())
	}
}

func (c *Callbacks) Address(ctx context.Context) (string, error) {
	if c.AddressFunc == nil {
		return "", ErrUnsupported
	}
	return await(ctx, "address", c.AddressFunc)
}

func (c *Callbacks) ChangeAddress(ctx context.Context) (string, error) {
	if c.ChangeAddressFunc == nil {
		return "", ErrUnsupported
	}
	return await(ctx, "change address", c.ChangeAddressFunc)
}

func (c *Callbacks) Balance(ctx context.Context) (uint64, error) {
	if c.BalanceFunc == nil {
		return 0, ErrUnsupported
	}
	return await(ctx, "balance", c.BalanceFunc)
}

func (c *Callbacks) SignTransaction(ctx context.Context, tx string) (string, error) {
	if c.SignTransactionFunc == nil {
		return "", ErrUnsupported
	}
	return await(ctx, "sign transaction", func(done func(string, error)) {
		c.SignTransactionFunc(tx, done)
	})
}

func (c *Callbacks) SignMessage(ctx context.Context, address string, payload []byte) (Signature, error) {
	if c.SignMessageFunc == nil {
		return Signature{}, ErrUnsupported
	}
	return await(ctx, "sign message", func(done func(Signature, error)) {
		c.SignMessageFunc(address, payload, done)
	})
}

func (c *Callbacks) SubmitTransaction(ctx context.Context, signedTx string) (string, error) {
	if c.SubmitTransactionFunc == nil {
		return "", ErrUnsupported
	}
	return await(ctx, "submit transaction", func(done func(string, error)) {
		c.SubmitTransactionFunc(signedTx, done)
	})
}
