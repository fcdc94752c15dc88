package filter

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

func sample(exchange string, price, volume float64) domain.TickerSample {
	return domain.TickerSample{
		Symbol:   "BTC/USDT",
		Exchange: exchange,
		Price:    decimal.NewFromFloat(price),
		Volume:   decimal.NewFromFloat(volume),
	}
}

func TestEvaluateAcceptsHealthySamples(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 80_000),
		sample("okx", 101, 90_000),
		sample("bybit", 99, 85_000),
	}

	v := Evaluate(samples, DefaultThresholds())
	if !v.Accepted {
		t.Fatalf("healthy samples should pass, rejected with %q", v.Reason)
	}
	if v.Flagged {
		t.Fatal("2% dispersion should not be flagged")
	}

	// (101-99)/99*100 ≈ 2.0202
	want := decimal.NewFromInt(101).Sub(decimal.NewFromInt(99)).Div(decimal.NewFromInt(99)).Mul(decimal.NewFromInt(100))
	if !v.SpreadPct.Equal(want) {
		t.Fatalf("spread pct = %s, want %s", v.SpreadPct, want)
	}
}

func TestEvaluateRejectsSingleExchange(t *testing.T) {
	v := Evaluate([]domain.TickerSample{sample("binance", 100, 80_000)}, DefaultThresholds())
	if v.Accepted {
		t.Fatal("a single-venue symbol must be rejected")
	}
}

func TestEvaluateRejectsZeroVolume(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 0),
		sample("okx", 101, 90_000),
	}
	if v := Evaluate(samples, DefaultThresholds()); v.Accepted {
		t.Fatal("zero-volume sample must reject the symbol")
	}
}

func TestEvaluateRejectsLowPerExchangeVolume(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 9_000),
		sample("okx", 101, 90_000),
	}
	if v := Evaluate(samples, DefaultThresholds()); v.Accepted {
		t.Fatal("volume below the per-exchange minimum must reject")
	}
}

func TestEvaluateRejectsLowTotalVolume(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 20_000),
		sample("okx", 101, 20_000),
	}
	if v := Evaluate(samples, DefaultThresholds()); v.Accepted {
		t.Fatal("total volume below the minimum must reject")
	}
}

func TestEvaluateRejectsVolumeRatio(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 10_000),
		sample("okx", 101, 600_000),
	}
	if v := Evaluate(samples, DefaultThresholds()); v.Accepted {
		t.Fatal("a 60x volume imbalance must reject")
	}
}

// A 60% dispersion on two liquid venues looks profitable but is a
// data error, never a real opportunity.
func TestEvaluateRejectsUnrealisticSpread(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 80_000),
		sample("okx", 160, 90_000),
	}
	v := Evaluate(samples, DefaultThresholds())
	if v.Accepted {
		t.Fatal("60% dispersion must be rejected as a data error")
	}
	if v.Reason != "unrealistic price spread" {
		t.Fatalf("unexpected reason %q", v.Reason)
	}
}

func TestEvaluateFlagsWithoutRejecting(t *testing.T) {
	// Reject limit above the validation threshold so the flag band
	// is reachable.
	th := DefaultThresholds()
	th.MaxRealisticSpread = decimal.NewFromInt(200)

	samples := []domain.TickerSample{
		sample("binance", 100, 80_000),
		sample("okx", 250, 90_000),
	}
	v := Evaluate(samples, th)
	if !v.Accepted {
		t.Fatalf("dispersion within the reject limit should pass, got %q", v.Reason)
	}
	if !v.Flagged {
		t.Fatal("dispersion above the validation threshold should be flagged")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	samples := []domain.TickerSample{
		sample("binance", 100, 80_000),
		sample("okx", 101, 90_000),
	}
	th := DefaultThresholds()

	first := Evaluate(samples, th)
	for i := 0; i < 5; i++ {
		again := Evaluate(samples, th)
		if again.Accepted != first.Accepted || again.Reason != first.Reason || !again.SpreadPct.Equal(first.SpreadPct) {
			t.Fatal("Evaluate must be deterministic for identical inputs")
		}
	}
}
