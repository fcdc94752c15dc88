package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

const uniswapPoolABIJSON = `[{"inputs":[],"name":"slot0","outputs":[{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},{"internalType":"int24","name":"tick","type":"int24"},{"internalType":"uint16","name":"observationIndex","type":"uint16"},{"internalType":"uint16","name":"observationCardinality","type":"uint16"},{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},{"internalType":"uint8","name":"feeProtocol","type":"uint8"},{"internalType":"bool","name":"unlocked","type":"bool"}],"stateMutability":"view","type":"function"}]`

var uniswapPoolABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(uniswapPoolABIJSON))
	if err != nil {
		panic("failed to parse uniswap pool ABI: " + err.Error())
	}
	uniswapPoolABI = parsed
}

// UniswapPool describes one v3 pool the client may quote.
type UniswapPool struct {
	Address       string
	BaseDecimals  int
	QuoteDecimals int
}

// UniswapOptions parameterise the on-chain venue.
type UniswapOptions struct {
	RPCURL  string
	Timeout time.Duration
	// Pools maps common-format symbols to v3 pools.
	Pools map[string]UniswapPool
	// DepthUSD is the volume proxy reported for every pool; an AMM
	// has no 24h turnover field, so executable depth is configured.
	DepthUSD decimal.Decimal
}

// Uniswap reads spot prices from Uniswap v3 pools over Ethereum RPC.
// It contributes a DEX venue to the spread set; it never reports
// funding rates.
type Uniswap struct {
	opts      UniswapOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewUniswap builds the on-chain price client.
func NewUniswap(opts UniswapOptions, logger zerolog.Logger) *Uniswap {
	return &Uniswap{opts: opts, logger: logger.With().Str("component", "uniswap_client").Logger()}
}

// Name identifies the venue.
func (u *Uniswap) Name() string { return "uniswap" }

// FetchAllTickers quotes every requested symbol that has a configured
// pool. Per-pool failures are logged and skipped so one bad pool does
// not sink the venue's whole contribution.
func (u *Uniswap) FetchAllTickers(ctx context.Context, symbols []string) (map[string]domain.TickerSample, error) {
	out := make(map[string]domain.TickerSample, len(symbols))
	for _, symbol := range symbols {
		if _, ok := u.opts.Pools[symbol]; !ok {
			continue
		}
		sample, err := u.FetchTicker(ctx, symbol)
		if err != nil {
			u.logger.Warn().Str("symbol", symbol).Err(err).Msg("pool quote failed")
			continue
		}
		out[symbol] = sample
	}
	return out, nil
}

// FetchTicker reads slot0 for the symbol's pool and converts
// sqrtPriceX96 to a quote-per-base price.
func (u *Uniswap) FetchTicker(ctx context.Context, symbol string) (domain.TickerSample, error) {
	pool, ok := u.opts.Pools[symbol]
	if !ok {
		return domain.TickerSample{}, fmt.Errorf("uniswap ticker %s: %w", symbol, ErrSymbolNotListed)
	}
	if u.opts.RPCURL == "" {
		return domain.TickerSample{}, errors.New("ethereum rpc url not configured")
	}

	timeout := u.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := u.getClient(ctx)
	if err != nil {
		return domain.TickerSample{}, err
	}

	addr := common.HexToAddress(pool.Address)
	payload, err := uniswapPoolABI.Pack("slot0")
	if err != nil {
		return domain.TickerSample{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return domain.TickerSample{}, fmt.Errorf("call slot0: %w", err)
	}

	outputs, err := uniswapPoolABI.Unpack("slot0", res)
	if err != nil {
		return domain.TickerSample{}, err
	}
	if len(outputs) == 0 {
		return domain.TickerSample{}, errors.New("unexpected slot0 response")
	}

	sqrtPriceX96, ok := outputs[0].(*big.Int)
	if !ok {
		return domain.TickerSample{}, errors.New("failed to decode sqrtPriceX96")
	}

	price := sqrtPriceToQuote(sqrtPriceX96, pool.BaseDecimals, pool.QuoteDecimals)
	if !price.IsPositive() {
		return domain.TickerSample{}, fmt.Errorf("pool %s returned non-positive price", pool.Address)
	}

	return domain.TickerSample{
		Symbol:     symbol,
		Exchange:   u.Name(),
		Price:      price,
		Volume:     u.opts.DepthUSD,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// FetchFundingRate always fails: an AMM pool has no funding leg.
func (u *Uniswap) FetchFundingRate(_ context.Context, symbol string) (domain.FundingSample, error) {
	return domain.FundingSample{}, fmt.Errorf("uniswap funding %s: %w", symbol, ErrSymbolNotListed)
}

func (u *Uniswap) getClient(ctx context.Context) (*ethclient.Client, error) {
	u.clientMux.Lock()
	defer u.clientMux.Unlock()

	if u.client != nil {
		return u.client, nil
	}

	client, err := ethclient.DialContext(ctx, u.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	u.client = client
	return client, nil
}

var two96 = new(big.Int).Exp(big.NewInt(2), big.NewInt(96), nil)

// sqrtPriceToQuote converts a v3 sqrtPriceX96 into token1-per-token0,
// adjusted for the token decimal difference.
func sqrtPriceToQuote(sqrtPriceX96 *big.Int, baseDecimals, quoteDecimals int) decimal.Decimal {
	ratio := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(decimal.NewFromBigInt(two96, 0))
	return ratio.Mul(ratio).Shift(int32(baseDecimals - quoteDecimals))
}

var _ Client = (*Uniswap)(nil)
