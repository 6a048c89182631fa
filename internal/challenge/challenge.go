// Package challenge implements the signed-challenge flow that authorizes
// profile and WireGuard config downloads for a wallet-owned client.
package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/keys"
	"github.com/wirepass/wirepass/internal/wallet"
)

// Placeholder is the token in WireGuard config templates that stands in for
// the client's private key. The backend never sees the private key.
const Placeholder = "<REPLACE_WITH_YOUR_PRIVATE_KEY>"

// Build returns the challenge string for id at now: the id immediately
// followed by the Unix time in seconds.
func Build(id string, now time.Time) string {
	return id + strconv.FormatInt(now.Unix(), 10)
}

// PatchConfig substitutes the first Placeholder in template with privateKey.
func PatchConfig(template, privateKey string) string {
	return strings.Replace(template, Placeholder, privateKey, 1)
}

// Signer is the part of a wallet needed to sign challenges.
type Signer interface {
	Address(ctx context.Context) (string, error)
	SignMessage(ctx context.Context, address string, payload []byte) (wallet.Signature, error)
}

// Backend is the subset of *api.Client used by Client.
type Backend interface {
	FetchProfile(ctx context.Context, req api.SignedChallenge) (string, error)
	FetchWGProfile(ctx context.Context, req api.WGProfileRequest) (string, error)
}

// KeyGenerator creates WireGuard keypairs.
type KeyGenerator interface {
	Generate() (*keys.Keypair, error)
}

// WireGuardConfig is a ready-to-use WireGuard config and the keypair it was
// issued for.
type WireGuardConfig struct {
	Config  string
	Keypair *keys.Keypair
}

// Client signs challenges and fetches protected resources with them.
// It never retries; a failed download is retried by the user.
type Client struct {
	backend Backend
	signer  Signer
	keygen  KeyGenerator
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient returns a Client. A nil keygen uses keys.NewGenerator().
func NewClient(backend Backend, signer Signer, keygen KeyGenerator, logger *slog.Logger) *Client {
	if keygen == nil {
		keygen = keys.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		signer:  signer,
		keygen:  keygen,
		logger:  logger.With("component", "challenge"),
		now:     time.Now,
	}
}

// Sign builds and signs the challenge for id. It also returns the time the
// challenge was built for.
func (c *Client) Sign(ctx context.Context, id string) (api.SignedChallenge, time.Time, error) {
	now := c.now()
	addr, err := c.signer.Address(ctx)
	if err != nil {
		return api.SignedChallenge{}, now, fmt.Errorf("challenge: wallet address: %w", err)
	}
	sig, err := c.signer.SignMessage(ctx, addr, []byte(Build(id, now)))
	if err != nil {
		return api.SignedChallenge{}, now, fmt.Errorf("challenge: sign: %w", err)
	}
	return api.SignedChallenge{ID: id, Key: sig.Key, Signature: sig.Signature}, now, nil
}

// FetchProfile returns the OpenVPN profile URL (or body) for client id.
func (c *Client) FetchProfile(ctx context.Context, id string) (string, error) {
	req, _, err := c.Sign(ctx, id)
	if err != nil {
		return "", err
	}
	profile, err := c.backend.FetchProfile(ctx, req)
	if err != nil {
		return "", fmt.Errorf("challenge: fetch profile: %w", err)
	}
	c.logger.Debug("profile fetched", "client_id", id)
	return profile, nil
}

// FetchWireGuardConfig generates a fresh keypair and downloads a config for
// it. The returned config already contains the private key.
func (c *Client) FetchWireGuardConfig(ctx context.Context, id string) (*WireGuardConfig, error) {
	kp, err := c.keygen.Generate()
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	return c.FetchWireGuardConfigForKey(ctx, id, kp)
}

// FetchWireGuardConfigForKey downloads a config for an existing keypair.
func (c *Client) FetchWireGuardConfigForKey(ctx context.Context, id string, kp *keys.Keypair) (*WireGuardConfig, error) {
	signed, now, err := c.Sign(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := c.backend.FetchWGProfile(ctx, api.WGProfileRequest{
		SignedChallenge: signed,
		Timestamp:       now.Unix(),
		WGPubkey:        kp.PublicKeyString(),
	})
	if err != nil {
		return nil, fmt.Errorf("challenge: fetch wireguard config: %w", err)
	}
	if !strings.Contains(tmpl, Placeholder) {
		c.logger.Warn("wireguard config has no private key placeholder", "client_id", id)
	}
	return &WireGuardConfig{
		Config:  PatchConfig(tmpl, kp.PrivateKeyString()),
		Keypair: kp,
	}, nil
}
