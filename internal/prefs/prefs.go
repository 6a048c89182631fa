// Package prefs stores small user preferences.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wirepass/wirepass/internal/storage"
)

// BannerDismissedKey records that the user dismissed the service notice.
const BannerDismissedKey = "wirepass.banner-dismissed"

// Prefs stores user interface preferences in a storage backend.
type Prefs struct {
	backend storage.Backend
	logger  *slog.Logger
}

// New creates a Prefs backed by backend.
func New(backend storage.Backend, logger *slog.Logger) *Prefs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefs{backend: backend, logger: logger.With("component", "prefs")}
}

// BannerDismissed reports whether the notice was dismissed. Unreadable or
// unparsable values read as false.
func (p *Prefs) BannerDismissed(ctx context.Context) bool {
	v, err := p.backend.Get(ctx, BannerDismissedKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("read preference failed", "key", BannerDismissedKey, "error", err)
		}
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.logger.Warn("stored preference is malformed", "key", BannerDismissedKey, "value", v)
		return false
	}
	return b
}

// SetBannerDismissed stores the dismissed flag.
func (p *Prefs) SetBannerDismissed(ctx context.Context, dismissed bool) error {
	if err := p.backend.Set(ctx, BannerDismissedKey, strconv.FormatBool(dismissed)); err != nil {
		return fmt.Errorf("prefs: set %s: %w", BannerDismissedKey, err)
	}
	return nil
}
