package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// ExportOptions hold parameters for exporting the current cycle.
type ExportOptions struct {
	CSVPath   string
	PNGPath   string
	MaxRoutes int
}

// Export runs a single aggregation cycle and renders its retained
// routes as CSV and/or a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxRoutes <= 0 {
		opts.MaxRoutes = a.Config.Export.MaxRoutes
	}

	svc, coordinator := a.newService()
	defer coordinator.Close()

	result, err := svc.ForceUpdate(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New("aggregation failed: " + result.Error)
	}

	flat := flattenRoutes(result.RouteSets, opts.MaxRoutes)
	if len(flat) == 0 {
		a.Logger.Info().Msg("no routes to export this cycle")
		return nil
	}

	a.Logger.Info().Int("routes", len(flat)).Msg("exporting routes")

	if opts.CSVPath != "" {
		if err := writeRoutesCSV(opts.CSVPath, flat, result.Timestamp); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeRoutesPNG(opts.PNGPath, flat); err != nil {
			return err
		}
	}
	return nil
}

// flattenRoutes walks the ranked sets in order, so the flat list stays
// sorted best-first across symbols.
func flattenRoutes(sets []domain.SymbolRouteSet, max int) []domain.Route {
	flat := make([]domain.Route, 0, max)
	for _, set := range sets {
		for _, route := range set.Routes {
			flat = append(flat, route)
			if len(flat) >= max {
				return flat
			}
		}
	}
	return flat
}

func writeRoutesCSV(path string, routes []domain.Route, ts time.Time) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "symbol", "buy_exchange", "sell_exchange", "buy_price", "sell_price", "gross_profit", "estimated_fees", "net_profit", "net_profit_pct", "max_volume", "liquidity_score", "execution_risk"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range routes {
		record := []string{
			ts.UTC().Format(time.RFC3339),
			r.Symbol,
			r.BuyExchange,
			r.SellExchange,
			r.BuyPrice.String(),
			r.SellPrice.String(),
			r.GrossProfit.String(),
			r.EstimatedFees.String(),
			r.NetProfit.String(),
			r.NetProfitPct.String(),
			r.MaxVolume.String(),
			r.Liquidity.String(),
			string(r.Risk),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRoutesPNG(path string, routes []domain.Route) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// A bar chart wider than ~20 routes becomes unreadable.
	if len(routes) > 20 {
		routes = routes[:20]
	}

	bars := make([]chart.Value, 0, len(routes))
	for _, r := range routes {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s %s>%s", r.Symbol, r.BuyExchange, r.SellExchange),
			Value: r.NetProfitPct.InexactFloat64(),
		})
	}

	graph := chart.BarChart{
		Title:    "Net profit by route (%)",
		Width:    1280,
		Height:   720,
		BarWidth: 40,
		Bars:     bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
