package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folium/internal/app"
	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/models"
	"github.com/bobmcallan/folium/internal/services/valuation"
)

var viewCommands = []subcommands.Command{
	&snapshotCmd{},
	&historyCmd{},
	&allocationCmd{},
}

// --- snapshot ---

type snapshotCmd struct {
	currency string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "value the portfolio now" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-currency <code>]

  Prints each holding converted to the reference currency and the portfolio
  total. Holdings without an exchange rate are listed as excluded.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "Reference currency (default from config)")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		ref, err := reference(ctx, a, c.currency)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		holdings, err := a.Holdings.ListHoldings(ctx, common.ResolveUserID(ctx))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading holdings: %v\n", err)
			return subcommands.ExitFailure
		}

		snap, err := a.Valuation.ComputeSnapshot(ctx, holdings, ref)
		if err != nil {
			fmt.Fprintf(stderr, "Could not refresh market data: %v\n", err)
			return subcommands.ExitFailure
		}

		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "NAME\tCATEGORY\tVALUE\tIN %s\tCHANGE\n", snap.Reference)
		for _, hp := range snap.Holdings {
			converted := "n/a"
			if hp.Converted {
				converted = formatMoney(hp.ReferenceValue, snap.Reference)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				hp.Name, hp.Category.Label(),
				formatMoney(hp.Performance.Current, hp.Currency),
				converted,
				formatPerformance(hp.Performance))
		}
		tw.Flush()

		fmt.Fprintf(stdout, "\nTotal: %s  %s\n", formatMoney(snap.TotalValue, snap.Reference), formatPerformance(snap.Performance))
		if len(snap.Excluded) > 0 {
			fmt.Fprintf(stdout, "Excluded (no %s rate): %d holding(s)\n", snap.Reference, len(snap.Excluded))
		}
		return subcommands.ExitSuccess
	})
}

// --- history ---

type historyCmd struct {
	window   string
	currency string
	png      string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "reconstruct daily portfolio value" }
func (*historyCmd) Usage() string {
	return `history [-window 1M|6M|1Y|YTD|MAX] [-currency <code>] [-png <file>]

  Prints the portfolio value for every calendar day of the window and the
  performance over it. With -png the series is also rendered as a chart.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.window, "window", "", "History window (default from config)")
	f.StringVar(&c.currency, "currency", "", "Reference currency (default from config)")
	f.StringVar(&c.png, "png", "", "Write a line chart to this file")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		w := c.window
		if w == "" {
			w = a.Config.Valuation.DefaultWindow
		}
		window, err := models.ParseWindow(w)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		ref, err := reference(ctx, a, c.currency)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		holdings, err := a.Holdings.ListHoldings(ctx, common.ResolveUserID(ctx))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading holdings: %v\n", err)
			return subcommands.ExitFailure
		}

		series, err := a.Valuation.ComputeHistoricalSeries(ctx, holdings, window, ref)
		if err != nil {
			fmt.Fprintf(stderr, "Could not refresh market data: %v\n", err)
			return subcommands.ExitFailure
		}
		if len(series.Points) == 0 {
			fmt.Fprintln(stdout, "No history.")
			return subcommands.ExitSuccess
		}

		for _, p := range series.Points {
			fmt.Fprintf(stdout, "%s  %s\n", p.Date.Format("2006-01-02"), formatMoney(p.Value, series.Reference))
		}
		fmt.Fprintf(stdout, "\n%s: %s -> %s  %s\n", series.Window,
			formatMoney(series.InitialValue, series.Reference),
			formatMoney(series.FinalValue, series.Reference),
			formatPerformance(series.Performance))
		if series.Flat {
			fmt.Fprintln(stdout, "No market history available; series uses current values.")
		}

		if c.png != "" {
			data, err := valuation.RenderSeriesChart(series)
			if err != nil {
				fmt.Fprintf(stderr, "Error rendering chart: %v\n", err)
				return subcommands.ExitFailure
			}
			if err := writePNG(c.png, data); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	})
}

// --- allocation ---

type allocationCmd struct {
	groupBy  string
	currency string
	png      string
}

func (*allocationCmd) Name() string     { return "allocation" }
func (*allocationCmd) Synopsis() string { return "break the portfolio down by category or holding" }
func (*allocationCmd) Usage() string {
	return `allocation [-group-by category|holding] [-currency <code>] [-png <file>]

  Prints each group's value in the reference currency and its weight.
  With -png the breakdown is also rendered as a pie chart.
`
}

func (c *allocationCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.groupBy, "group-by", string(models.GroupByCategory), "category or holding")
	f.StringVar(&c.currency, "currency", "", "Reference currency (default from config)")
	f.StringVar(&c.png, "png", "", "Write a pie chart to this file")
}

func (c *allocationCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	groupBy, err := models.ParseGroupBy(c.groupBy)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		ref, err := reference(ctx, a, c.currency)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		holdings, err := a.Holdings.ListHoldings(ctx, common.ResolveUserID(ctx))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading holdings: %v\n", err)
			return subcommands.ExitFailure
		}

		slices, err := a.Valuation.ComputeAllocation(ctx, holdings, ref, groupBy)
		if err != nil {
			fmt.Fprintf(stderr, "Could not refresh market data: %v\n", err)
			return subcommands.ExitFailure
		}
		if len(slices) == 0 {
			fmt.Fprintln(stdout, "Nothing to allocate.")
			return subcommands.ExitSuccess
		}

		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "GROUP\tVALUE\tWEIGHT")
		for _, s := range slices {
			fmt.Fprintf(tw, "%s\t%s\t%.2f%%\n", s.Label, formatMoney(s.Value, ref), s.Weight)
		}
		tw.Flush()

		if c.png != "" {
			data, err := valuation.RenderAllocationChart(slices)
			if err != nil {
				fmt.Fprintf(stderr, "Error rendering chart: %v\n", err)
				return subcommands.ExitFailure
			}
			if err := writePNG(c.png, data); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	})
}
