package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/createMonster/arbradar-sub000/internal/domain"
)

// ScanOptions configure the one-shot scan command.
type ScanOptions struct {
	Limit int
}

// Scan runs a single aggregation cycle and prints the ranked route
// table to stdout.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	svc, coordinator := a.newService()
	defer coordinator.Close()

	result, err := svc.ForceUpdate(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New("aggregation failed: " + result.Error)
	}

	sets := result.RouteSets
	if opts.Limit > 0 && len(sets) > opts.Limit {
		sets = sets[:opts.Limit]
	}
	if len(sets) == 0 {
		fmt.Println("no profitable routes this cycle")
		return nil
	}

	printRouteTable(sets)
	return nil
}

func printRouteTable(sets []domain.SymbolRouteSet) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tTYPE\tBUY@\tSELL@\tBUY PRICE\tSELL PRICE\tNET %\tMAX VOL\tRISK\tROUTES")
	for _, set := range sets {
		best := set.BestRoute
		if best == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			set.Symbol,
			set.MarketType,
			best.BuyExchange,
			best.SellExchange,
			best.BuyPrice.StringFixed(6),
			best.SellPrice.StringFixed(6),
			best.NetProfitPct.StringFixed(4),
			best.MaxVolume.StringFixed(0),
			best.Risk,
			set.RouteCount,
			set.TotalAvailable,
		)
	}
	w.Flush()
}
