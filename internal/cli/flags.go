package cli

import "context"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config   string `long:"config" short:"c" description:"Path to YAML config file (defaults to $REPORT_HARVESTER_CONFIG)"`
	LogLevel string `long:"log-level" description:"Override log level (debug, info, warn, error)"`
}

// RunCommand harvests reports for the configured or given tickers.
type RunCommand struct {
	Tickers         []string `long:"ticker" short:"t" description:"Ticker as CODE or CODE:NAME (repeatable, replaces the configured universe)"`
	Universe        string   `long:"universe" description:"CSV file with 股票代码 and 股票简称 columns"`
	Workers         int      `long:"workers" description:"Tickers harvested concurrently"`
	Once            bool     `long:"once" description:"Run a single pass even when a cron expression is configured"`
	RefreshListings bool     `long:"refresh-listings" description:"Refetch listing pages even when cached"`
	RefreshDetails  bool     `long:"refresh-details" description:"Refetch detail pages even when cached"`
	RefreshReports  []string `long:"refresh-report" description:"Refetch the detail of one report id (repeatable)"`

	globals *GlobalFlags
	ctx     context.Context
}

// StatusCommand prints manifest totals.
type StatusCommand struct {
	globals *GlobalFlags
	ctx     context.Context
}
