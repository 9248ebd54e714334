package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/cache"
	ierr "github.com/stackbill/stackbill/internal/errors"
)

// CurrencyService converts amounts between the base currency and display
// currencies using cached exchange rates. Conversion is display-only:
// settlement always happens in the currency the order was priced in.
type CurrencyService interface {
	// Convert converts an amount from the base currency to the target,
	// returning the converted amount and the rate used.
	Convert(ctx context.Context, amount decimal.Decimal, toCurrency string) (decimal.Decimal, decimal.Decimal, error)

	// GetRate returns the base->currency rate.
	GetRate(ctx context.Context, currency string) (decimal.Decimal, error)

	// RefreshRates reloads rates from the provider. With force, the cache
	// is refreshed even when it has not expired yet.
	RefreshRates(ctx context.Context, force bool) (int, error)
}

type currencyService struct {
	ServiceParams
}

func NewCurrencyService(params ServiceParams) CurrencyService {
	return &currencyService{ServiceParams: params}
}

func (s *currencyService) Convert(ctx context.Context, amount decimal.Decimal, toCurrency string) (decimal.Decimal, decimal.Decimal, error) {
	toCurrency = strings.ToUpper(toCurrency)
	if toCurrency == s.Config.Currency.BaseCurrency {
		return amount, decimal.NewFromInt(1), nil
	}

	rate, err := s.GetRate(ctx, toCurrency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), rate, nil
}

func (s *currencyService) GetRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == s.Config.Currency.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}

	if cached, ok := s.Cache.Get(ctx, cache.PrefixExchangeRate+currency); ok {
		if rate, ok := cached.(decimal.Decimal); ok {
			return rate, nil
		}
	}

	// Cache miss: pull fresh rates, then retry the lookup.
	if _, err := s.RefreshRates(ctx, false); err != nil {
		return decimal.Zero, err
	}

	if cached, ok := s.Cache.Get(ctx, cache.PrefixExchangeRate+currency); ok {
		if rate, ok := cached.(decimal.Decimal); ok {
			return rate, nil
		}
	}

	return decimal.Zero, ierr.NewError("no exchange rate available").
		WithHintf("Unsupported display currency %s", currency).
		Mark(ierr.ErrNotFound)
}

func (s *currencyService) RefreshRates(ctx context.Context, force bool) (int, error) {
	if s.Rates == nil {
		return 0, ierr.NewError("no rate provider configured").
			WithHint("Exchange rate provider is not configured").
			Mark(ierr.ErrConfiguration)
	}

	if !force {
		if _, ok := s.Cache.Get(ctx, cache.PrefixExchangeRate+"fresh"); ok {
			return 0, nil
		}
	}

	rates, err := s.Rates.FetchRates(ctx, s.Config.Currency.BaseCurrency)
	if err != nil {
		return 0, err
	}

	ttl := time.Duration(s.Config.Currency.RefreshIntervalMins) * time.Minute
	for currency, rate := range rates {
		s.Cache.Set(ctx, cache.PrefixExchangeRate+strings.ToUpper(currency), rate, ttl)
	}
	s.Cache.Set(ctx, cache.PrefixExchangeRate+"fresh", true, ttl)

	s.Logger.Infow("exchange rates refreshed", "count", len(rates), "forced", force)
	return len(rates), nil
}
