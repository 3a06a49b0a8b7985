package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folium/internal/app"
	"github.com/bobmcallan/folium/internal/models"
)

type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search stocks and ETFs by name or ticker" }
func (*searchCmd) Usage() string {
	return `search <search term>

  Looks up stocks and ETFs and prints ready-to-use add-security commands
  for the results.
`
}
func (*searchCmd) SetFlags(*flag.FlagSet) {}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: a search term is required.")
		return subcommands.ExitUsageError
	}
	term := strings.Join(f.Args(), " ")

	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		results := a.Gateway.SearchSecurities(ctx, term)
		if len(results) == 0 {
			fmt.Fprintf(stdout, "No results found for '%s'.\n", term)
			return subcommands.ExitSuccess
		}

		fmt.Fprintf(stdout, "Found %d results for '%s':\n\n", len(results), term)
		for _, r := range results {
			category := models.CategoryStock
			if r.Type == models.SecurityTypeETF {
				category = models.CategoryETF
			}
			fmt.Fprintf(stdout, "  %s  %s (%s, %s)\n", r.Ticker, r.Name, r.Type, r.Exchange)
			fmt.Fprintf(stdout, "    $ folium add-security -ticker '%s' -category %s -quantity <n> -price <unit price>\n\n", r.Ticker, category)
		}
		return subcommands.ExitSuccess
	})
}

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print live quotes" }
func (*quoteCmd) Usage() string {
	return `quote <ticker>...

  Prints the live price and daily change of each ticker.
`
}
func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: at least one ticker is required.")
		return subcommands.ExitUsageError
	}

	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		status := subcommands.ExitSuccess
		for _, arg := range f.Args() {
			ticker := strings.ToUpper(strings.TrimSpace(arg))
			q := a.Gateway.GetQuote(ctx, ticker)
			if q == nil {
				fmt.Fprintf(stderr, "%s: no quote available\n", ticker)
				status = subcommands.ExitFailure
				continue
			}
			change := ""
			if q.DailyChange != nil && q.DailyChangePct != nil {
				change = fmt.Sprintf("  %+.2f (%+.2f%%)", *q.DailyChange, *q.DailyChangePct*100)
			}
			fmt.Fprintf(stdout, "%s  %s  %s%s\n", q.Ticker, q.Name, formatMoney(q.Price, q.Currency), change)
		}
		return status
	})
}
