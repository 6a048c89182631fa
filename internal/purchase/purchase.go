// Package purchase runs the buy and renew flows: the backend builds a
// transaction, the wallet signs and submits it, and new purchases are
// tracked until the backend confirms them.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/pending"
	"github.com/wirepass/wirepass/internal/wallet"
)

// ErrUnknownOffer is returned when the requested region or duration is not
// offered in the reference data.
var ErrUnknownOffer = errors.New("purchase: offer not available")

// TxBuilder builds unsigned transactions on the backend.
type TxBuilder interface {
	RefData(ctx context.Context) (*api.RefData, error)
	BuildSignupTx(ctx context.Context, req api.SignupRequest) (*api.UnsignedTx, error)
	BuildRenewTx(ctx context.Context, req api.RenewRequest) (*api.UnsignedTx, error)
}

// Ledger records submitted purchases.
type Ledger interface {
	Add(ctx context.Context, tx pending.Transaction) error
}

// Tracker watches a submitted purchase until it is confirmed.
type Tracker interface {
	Start(ctx context.Context, clientID string, initialAttempts int)
}

// Result describes a submitted transaction.
type Result struct {
	ClientID string
	TxHash   string
	// UnsignedTx is set when the wallet cannot sign transactions; the caller
	// must sign and submit it out of band.
	UnsignedTx string
}

// Service runs purchases for one wallet.
type Service struct {
	builder TxBuilder
	wallet  wallet.Wallet
	ledger  Ledger
	tracker Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. tracker may be nil, in which case purchases
// are recorded but not watched.
func NewService(builder TxBuilder, w wallet.Wallet, ledger Ledger, tracker Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		builder: builder,
		wallet:  w,
		ledger:  ledger,
		tracker: tracker,
		logger:  logger.With("component", "purchase"),
		now:     time.Now,
	}
}

// FindOffer looks up the price for region and duration (a backend duration
// value) in the reference data.
func FindOffer(rd *api.RefData, region string, duration int64) (api.PriceOption, error) {
	if !slices.Contains(rd.Regions, region) {
		return api.PriceOption{}, fmt.Errorf("%w: region %q", ErrUnknownOffer, region)
	}
	for _, p := range rd.Prices {
		if p.Duration == duration {
			return p, nil
		}
	}
	return api.PriceOption{}, fmt.Errorf("%w: duration %d", ErrUnknownOffer, duration)
}

// Purchase buys a new subscription in region for the offered duration and
// starts tracking it. ctx also bounds the tracking session.
func (s *Service) Purchase(ctx context.Context, region string, duration int64) (*Result, error) {
	rd, err := s.builder.RefData(ctx)
	if err != nil {
		return nil, fmt.Errorf("purchase: refdata: %w", err)
	}
	offer, err := FindOffer(rd, region, duration)
	if err != nil {
		return nil, err
	}

	owner, change, err := s.addresses(ctx)
	if err != nil {
		return nil, err
	}

	unsigned, err := s.builder.BuildSignupTx(ctx, api.SignupRequest{
		OwnerAddress:  owner,
		ChangeAddress: change,
		Region:        region,
		Duration:      offer.Duration,
		Price:         offer.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("purchase: build transaction: %w", err)
	}

	res, err := s.signAndSubmit(ctx, unsigned)
	if err != nil || res.TxHash == "" {
		return res, err
	}

	tx := pending.NewTransaction(unsigned.ClientID, region, pending.Duration(strconv.FormatInt(offer.Duration, 10)), s.now())
	if err := s.ledger.Add(ctx, tx); err != nil {
		return res, fmt.Errorf("purchase: record transaction: %w", err)
	}
	s.logger.Info("purchase submitted",
		"client_id", unsigned.ClientID,
		"tx_hash", res.TxHash,
		"region", region,
		"duration", api.DurationFromBackend(offer.Duration),
	)
	if s.tracker != nil {
		s.tracker.Start(ctx, unsigned.ClientID, 0)
	}
	return res, nil
}

// Renew extends clientID by the offered duration. Renewals are not tracked;
// the client already exists on the backend.
func (s *Service) Renew(ctx context.Context, clientID string, duration int64) (*Result, error) {
	rd, err := s.builder.RefData(ctx)
	if err != nil {
		return nil, fmt.Errorf("purchase: refdata: %w", err)
	}
	var offer *api.PriceOption
	for i := range rd.Prices {
		if rd.Prices[i].Duration == duration {
			offer = &rd.Prices[i]
			break
		}
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: duration %d", ErrUnknownOffer, duration)
	}

	owner, change, err := s.addresses(ctx)
	if err != nil {
		return nil, err
	}

	unsigned, err := s.builder.BuildRenewTx(ctx, api.RenewRequest{
		ClientID:      clientID,
		OwnerAddress:  owner,
		ChangeAddress: change,
		Duration:      offer.Duration,
		Price:         offer.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("purchase: build renewal: %w", err)
	}
	if unsigned.ClientID == "" {
		unsigned.ClientID = clientID
	}

	res, err := s.signAndSubmit(ctx, unsigned)
	if err == nil && res.TxHash != "" {
		s.logger.Info("renewal submitted", "client_id", clientID, "tx_hash", res.TxHash)
	}
	return res, err
}

func (s *Service) addresses(ctx context.Context) (owner, change string, err error) {
	owner, err = s.wallet.Address(ctx)
	if err != nil {
		return "", "", fmt.Errorf("purchase: wallet address: %w", err)
	}
	change, err = s.wallet.ChangeAddress(ctx)
	if err != nil {
		return "", "", fmt.Errorf("purchase: change address: %w", err)
	}
	return owner, change, nil
}

// signAndSubmit signs and submits tx. A wallet that cannot sign yields a
// Result carrying the unsigned transaction and no error.
func (s *Service) signAndSubmit(ctx context.Context, tx *api.UnsignedTx) (*Result, error) {
	signed, err := s.wallet.SignTransaction(ctx, tx.Tx)
	if errors.Is(err, wallet.ErrUnsupported) {
		s.logger.Warn("wallet cannot sign transactions, returning unsigned transaction", "client_id", tx.ClientID)
		return &Result{ClientID: tx.ClientID, UnsignedTx: tx.Tx}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("purchase: sign: %w", err)
	}
	hash, err := s.wallet.SubmitTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("purchase: submit: %w", err)
	}
	return &Result{ClientID: tx.ClientID, TxHash: hash}, nil
}
