package api

import (
	"time"
)

// ---------------------------------------------------------------------------
// Reference data  GET /refdata
// ---------------------------------------------------------------------------

// RefData lists the regions and price options offered by the backend. It is
// decoded strictly: unknown fields are rejected.
type RefData struct {
	Regions []string      `json:"regions"`
	Prices  []PriceOption `json:"prices"`
}

// PriceOption is one purchasable duration. Duration uses the backend's
// ambiguous unit; convert it with DurationFromBackend.
type PriceOption struct {
	Duration int64  `json:"duration"`
	Price    uint64 `json:"price"`
}

// ---------------------------------------------------------------------------
// Transactions  POST /tx/signup, POST /tx/renew
// ---------------------------------------------------------------------------

type SignupRequest struct {
	OwnerAddress  string `json:"owner_address"`
	ChangeAddress string `json:"change_address"`
	Region        string `json:"region"`
	Duration      int64  `json:"duration"`
	Price         uint64 `json:"price"`
}

type RenewRequest struct {
	ClientID      string `json:"client_id"`
	OwnerAddress  string `json:"owner_address"`
	ChangeAddress string `json:"change_address"`
	Duration      int64  `json:"duration"`
	Price         uint64 `json:"price"`
}

// UnsignedTx is a transaction built by the backend for the wallet to sign.
type UnsignedTx struct {
	ClientID string `json:"client_id"`
	Tx       string `json:"tx"`
}

// ---------------------------------------------------------------------------
// Clients  POST /client/list, POST /client/available
// ---------------------------------------------------------------------------

type ListClientsRequest struct {
	OwnerAddress string `json:"owner_address"`
}

type AvailableRequest struct {
	ID string `json:"id"`
}

// ClientInfo is one VPN subscription.
type ClientInfo struct {
	ID         string    `json:"id"`
	Region     string    `json:"region"`
	Expiration time.Time `json:"expiration"`
}

// Remaining returns the time left before expiration, or zero once expired.
func (c ClientInfo) Remaining(now time.Time) time.Duration {
	if d := c.Expiration.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether the subscription has lapsed at now.
func (c ClientInfo) Expired(now time.Time) bool {
	return !now.Before(c.Expiration)
}

// ---------------------------------------------------------------------------
// Signed challenges  POST /client/profile, /client/wg-*
// ---------------------------------------------------------------------------

// SignedChallenge proves control of the wallet that owns client ID.
type SignedChallenge struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

type WGProfileRequest struct {
	SignedChallenge
	Timestamp int64  `json:"timestamp"`
	WGPubkey  string `json:"wg_pubkey"`
}

type WGRegisterRequest struct {
	SignedChallenge
	WGPubkey string `json:"wg_pubkey"`
}

type WGPeerRequest struct {
	SignedChallenge
	WGPubkey string `json:"wg_pubkey"`
}

// WGDevice is a WireGuard peer registered for a client.
type WGDevice struct {
	Pubkey    string    `json:"pubkey"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
