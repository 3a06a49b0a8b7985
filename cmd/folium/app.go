package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folium/internal/app"
	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/models"
)

// A CLI invocation is short lived, so global flags are fine here.
var (
	configPath = flag.String("config", "", "Path to folium.toml (default: $FOLIUM_CONFIG, next to the binary, then config/folium.toml)")
	userFlag   = flag.String("user", "", "User whose holdings to act on (default \"default\")")
	verbose    = flag.Bool("v", false, "Log at the configured level instead of warnings only")
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// openApp builds the application core. Replaced in tests.
var openApp = func() (*app.App, error) {
	config, err := common.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !*verbose {
		config.Logging.Level = "warn"
	}
	return app.NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging))
}

// withApp opens the app, scopes ctx to the -user flag, runs fn and closes the app.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) subcommands.ExitStatus) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if u := strings.TrimSpace(*userFlag); u != "" {
		ctx = common.WithUserContext(ctx, &common.UserContext{UserID: u})
	}
	return fn(ctx, a)
}

// reference resolves the -currency flag of a view command against config.
func reference(ctx context.Context, a *app.App, flagValue string) (string, error) {
	if flagValue == "" {
		return a.ResolveReference(ctx), nil
	}
	rc := models.NormalizeCurrency(flagValue)
	if !models.IsCurrencyCode(rc) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidCurrency, flagValue)
	}
	return rc, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

func formatMoney(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

func formatPerformance(p models.Performance) string {
	marker := "="
	switch p.Trend {
	case models.TrendUp:
		marker = "▲"
	case models.TrendDown:
		marker = "▼"
	}
	return fmt.Sprintf("%s %+.2f (%+.2f%%)", marker, p.AbsoluteChange, p.Percent)
}

func writePNG(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
