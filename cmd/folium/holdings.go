package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folium/internal/app"
	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/models"
)

var holdingCommands = []subcommands.Command{
	&listCmd{},
	&addSecurityCmd{},
	&addCashCmd{},
	&setBalanceCmd{},
	&editCmd{},
	&deleteCmd{},
	&refreshCmd{},
}

// --- list ---

type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list holdings, most recent purchase first" }
func (*listCmd) Usage() string {
	return `list

  Prints every holding with its initial and current value in its own currency.
`
}
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		holdings, err := a.Holdings.ListHoldings(ctx, common.ResolveUserID(ctx))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading holdings: %v\n", err)
			return subcommands.ExitFailure
		}
		if len(holdings) == 0 {
			fmt.Fprintln(stdout, "No holdings.")
			return subcommands.ExitSuccess
		}
		printHoldings(holdings)
		return subcommands.ExitSuccess
	})
}

func printHoldings(holdings []models.Holding) {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tTICKER\tPURCHASED\tINITIAL\tCURRENT\tCHANGE")
	for _, h := range holdings {
		perf := models.NewPerformance(h.InitialValue, h.CurrentValue)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			h.ID, h.Name, h.Category.Label(), h.Ticker,
			h.PurchaseDate.Format("2006-01-02"),
			formatMoney(h.InitialValue, h.Currency),
			formatMoney(h.CurrentValue, h.Currency),
			formatPerformance(perf))
	}
	tw.Flush()
}

// --- add-security ---

type addSecurityCmd struct {
	ticker   string
	category string
	name     string
	currency string
	quantity float64
	price    float64
	date     string
}

func (*addSecurityCmd) Name() string     { return "add-security" }
func (*addSecurityCmd) Synopsis() string { return "add a stock or ETF purchase" }
func (*addSecurityCmd) Usage() string {
	return `add-security -ticker <ticker> -quantity <n> -price <unit price> [-category stock|etf] [-date YYYY-MM-DD] [-name <name>] [-currency <code>]

  Adds a security holding. Name and currency default to the live quote's,
  then to EUR. The purchase date defaults to today.
`
}

func (c *addSecurityCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Ticker symbol, e.g. ENI.MI (required)")
	f.StringVar(&c.category, "category", "stock", "stock or etf")
	f.StringVar(&c.name, "name", "", "Display name")
	f.StringVar(&c.currency, "currency", "", "3-letter currency code")
	f.Float64Var(&c.quantity, "quantity", 0, "Number of units (required)")
	f.Float64Var(&c.price, "price", 0, "Purchase price per unit (required)")
	f.StringVar(&c.date, "date", "", "Purchase date, YYYY-MM-DD")
}

func (c *addSecurityCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	category, err := models.ParseCategory(c.category)
	if err != nil || !category.IsSecurity() {
		fmt.Fprintf(stderr, "Error: -category must be stock or etf, got %q\n", c.category)
		return subcommands.ExitUsageError
	}
	if strings.TrimSpace(c.ticker) == "" {
		fmt.Fprintln(stderr, "Error: -ticker is required.")
		return subcommands.ExitUsageError
	}

	h := models.Holding{
		Name:          c.name,
		Category:      category,
		Ticker:        c.ticker,
		Currency:      c.currency,
		Quantity:      c.quantity,
		PurchasePrice: c.price,
	}
	if c.date != "" {
		d, err := parseDay(c.date)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		h.PurchaseDate = d
	}

	return createHolding(ctx, h)
}

// --- add-cash ---

type addCashCmd struct {
	name     string
	currency string
	balance  float64
}

func (*addCashCmd) Name() string     { return "add-cash" }
func (*addCashCmd) Synopsis() string { return "add a cash account" }
func (*addCashCmd) Usage() string {
	return `add-cash -name <name> -balance <amount> [-currency <code>]

  Adds a cash account holding. The currency defaults to EUR.
`
}

func (c *addCashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Account name (required)")
	f.StringVar(&c.currency, "currency", "", "3-letter currency code")
	f.Float64Var(&c.balance, "balance", 0, "Current balance")
}

func (c *addCashCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return createHolding(ctx, models.Holding{
		Name:         c.name,
		Category:     models.CategoryCashAccount,
		Currency:     c.currency,
		InitialValue: c.balance,
	})
}

func createHolding(ctx context.Context, h models.Holding) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		created, err := a.Holdings.CreateHolding(ctx, common.ResolveUserID(ctx), h)
		if err != nil {
			fmt.Fprintf(stderr, "Error adding holding: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "Added %s %q (%s): %s\n",
			created.Category.Label(), created.Name, created.ID,
			formatMoney(created.CurrentValue, created.Currency))
		return subcommands.ExitSuccess
	})
}

// --- set-balance ---

type setBalanceCmd struct {
	id      string
	balance float64
}

func (*setBalanceCmd) Name() string     { return "set-balance" }
func (*setBalanceCmd) Synopsis() string { return "set the balance of a cash account" }
func (*setBalanceCmd) Usage() string {
	return `set-balance -id <holding id> -balance <amount>

  Moves both the initial and current value of a cash account to the new
  balance and resets its date to today.
`
}

func (c *setBalanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Holding ID (required)")
	f.Float64Var(&c.balance, "balance", 0, "New balance")
}

func (c *setBalanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	balance := c.balance
	return updateHolding(ctx, c.id, models.HoldingUpdate{Balance: &balance})
}

// --- edit ---

type editCmd struct {
	id       string
	name     string
	quantity float64
	price    float64
	date     string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "edit the name or position of a holding" }
func (*editCmd) Usage() string {
	return `edit -id <holding id> [-name <name>] [-quantity <n>] [-price <unit price>] [-date YYYY-MM-DD]

  Only the flags given are changed. Position edits recompute the initial
  value and re-price the holding.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Holding ID (required)")
	f.StringVar(&c.name, "name", "", "New display name")
	f.Float64Var(&c.quantity, "quantity", 0, "New number of units")
	f.Float64Var(&c.price, "price", 0, "New purchase price per unit")
	f.StringVar(&c.date, "date", "", "New purchase date, YYYY-MM-DD")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}

	var update models.HoldingUpdate
	var dateErr error
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "name":
			update.Name = &c.name
		case "quantity":
			update.Quantity = &c.quantity
		case "price":
			update.PurchasePrice = &c.price
		case "date":
			d, err := parseDay(c.date)
			if err != nil {
				dateErr = err
				return
			}
			update.PurchaseDate = &d
		}
	})
	if dateErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", dateErr)
		return subcommands.ExitUsageError
	}
	if update.Name == nil && !update.TouchesPosition() {
		fmt.Fprintln(stderr, "Error: nothing to change.")
		return subcommands.ExitUsageError
	}

	return updateHolding(ctx, c.id, update)
}

func updateHolding(ctx context.Context, id string, update models.HoldingUpdate) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		h, err := a.Holdings.UpdateHolding(ctx, common.ResolveUserID(ctx), id, update)
		if err != nil {
			fmt.Fprintf(stderr, "Error updating holding %s: %v\n", id, err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "Updated %q: initial %s, current %s\n",
			h.Name, formatMoney(h.InitialValue, h.Currency), formatMoney(h.CurrentValue, h.Currency))
		return subcommands.ExitSuccess
	})
}

// --- delete ---

type deleteCmd struct{}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete holdings" }
func (*deleteCmd) Usage() string {
	return `delete <holding id>...

  Removes the given holdings.
`
}
func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: at least one holding ID is required.")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		status := subcommands.ExitSuccess
		for _, id := range f.Args() {
			if err := a.Holdings.DeleteHolding(ctx, common.ResolveUserID(ctx), id); err != nil {
				fmt.Fprintf(stderr, "Error deleting %s: %v\n", id, err)
				status = subcommands.ExitFailure
				continue
			}
			fmt.Fprintf(stdout, "Deleted %s\n", id)
		}
		return status
	})
}

// --- refresh ---

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "re-price securities from live quotes" }
func (*refreshCmd) Usage() string {
	return `refresh

  Fetches a live quote for every security and stores the new market value
  and daily change. Holdings without a usable quote keep their values.
`
}
func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) subcommands.ExitStatus {
		holdings, err := a.Holdings.RefreshHoldings(ctx, common.ResolveUserID(ctx))
		if err != nil && holdings == nil {
			fmt.Fprintf(stderr, "Could not refresh market data: %v\n", err)
			return subcommands.ExitFailure
		}
		printHoldings(holdings)
		if err != nil {
			fmt.Fprintf(stderr, "Some holdings were not saved: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
