// Package subscription caches the list of VPN subscriptions owned by the
// wallet so that views and the availability poller share one copy.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wirepass/wirepass/internal/api"
)

// Lister fetches the subscriptions of an owner address.
type Lister interface {
	ListClients(ctx context.Context, ownerAddress string) ([]api.ClientInfo, error)
}

// Cache holds the last fetched client list for one owner address.
type Cache struct {
	lister Lister
	owner  string
	logger *slog.Logger

	mu        sync.Mutex
	clients   []api.ClientInfo
	valid     bool
	fetchedAt time.Time
	now       func() time.Time
}

// NewCache returns an empty cache for owner.
func NewCache(lister Lister, owner string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		lister: lister,
		owner:  owner,
		logger: logger.With("component", "subscription"),
		now:    time.Now,
	}
}

// Get returns the cached list, fetching it first if the cache is empty or
// was invalidated.
func (c *Cache) Get(ctx context.Context) ([]api.ClientInfo, error) {
	c.mu.Lock()
	if c.valid {
		out := append([]api.ClientInfo(nil), c.clients...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()
	return c.Refetch(ctx)
}

// Invalidate drops the cached list.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Refetch loads the list from the backend and replaces the cached copy.
// On error the cache is left invalid.
func (c *Cache) Refetch(ctx context.Context) ([]api.ClientInfo, error) {
	clients, err := c.lister.ListClients(ctx, c.owner)
	if err != nil {
		return nil, fmt.Errorf("subscription: list clients: %w", err)
	}

	c.mu.Lock()
	c.clients = clients
	c.valid = true
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.logger.Debug("client list refreshed", "count", len(clients))
	return append([]api.ClientInfo(nil), clients...), nil
}

// FetchedAt returns when the cached list was loaded, or the zero time.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// Active returns the subscriptions that have not expired at now.
func Active(clients []api.ClientInfo, now time.Time) []api.ClientInfo {
	var out []api.ClientInfo
	for _, c := range clients {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}
