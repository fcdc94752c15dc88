package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// ErrSymbolNotListed reports that a venue does not carry a symbol.
// The gateway treats it as a per-symbol gap, not a failure.
var ErrSymbolNotListed = errors.New("exchange: symbol not listed")

// Client is one venue's data access surface. Implementations
// normalise the venue's raw responses into the common sample shapes;
// no loosely-typed payloads cross this boundary.
type Client interface {
	Name() string
	// FetchAllTickers returns samples for the requested common-format
	// symbols, keyed by symbol. Symbols the venue does not list are
	// simply absent.
	FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error)
	FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error)
	// FetchFundingRate is only meaningful for perpetual symbols.
	FetchFundingRate(ctx context.Context, symbol string) (domain.FundingSample, error)
}

func getJSON(ctx context.Context, client *http.Client, url, userAgent string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "arbradar/1.0")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// nativeIndex maps venue-native symbols back to the requested
// common-format symbols.
func nativeIndex(symbols []string, toNative func(string) string) map[string]string {
	idx := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		idx[toNative(symbol)] = symbol
	}
	return idx
}
