package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/modules/momentum"
	"github.com/aristath/beam/internal/modules/portfolio"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/aristath/beam/internal/utils"
)

// importCmd loads a spreadsheet and stores it as today's snapshot
type importCmd struct {
	out io.Writer
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import holdings from a CSV or XLSX file" }
func (*importCmd) Usage() string {
	return `beam import <file.csv|file.xlsx>

  Replaces the current holdings and saves them as today's snapshot.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	file := f.Arg(0)

	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	r, err := os.Open(file)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer r.Close()

	res, err := a.container.Importer.Import(r, filepath.Base(file))
	if err != nil {
		return fail(os.Stderr, err)
	}

	now := time.Now()
	a.container.Store.Replace(res.Holdings, res.BatchID, now)
	if len(res.Holdings) > 0 {
		if _, err := a.container.Snapshots.Save(domain.PortfolioSnapshot{
			Date:           domain.Day(now),
			TargetCurrency: a.container.Store.TargetCurrency(),
			Holdings:       res.Holdings,
		}); err != nil {
			return fail(os.Stderr, err)
		}
	}
	a.container.EventManager.EmitTyped("cli", &events.PortfolioImportedData{
		BatchID:  res.BatchID,
		Source:   file,
		Holdings: len(res.Holdings),
		Rejected: len(res.Errors),
	})

	fmt.Fprintf(c.out, "Imported %d holdings (%d skipped rows)\n", len(res.Holdings), res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(c.out, "  %s\n", e.Error())
	}
	return subcommands.ExitSuccess
}

// summaryCmd prints the live valuation of the current holdings
type summaryCmd struct {
	out      io.Writer
	currency string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "value the current holdings from live quotes" }
func (*summaryCmd) Usage() string {
	return `beam summary [-currency EUR]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "currency", "", "Reporting currency (defaults to the portfolio currency)")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	if c.currency != "" {
		a.container.Store.SetCurrency(c.currency)
	}
	sum, err := a.container.PortfolioService.GetSummary(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	printSummary(c.out, sum)
	return subcommands.ExitSuccess
}

func printSummary(w io.Writer, sum portfolio.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Ticker\tCatégorie\tQuantité\tAcquisition\tValeur\tGain\t")
	for _, row := range sum.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Ticker,
			row.Category,
			utils.FormatFR(row.Quantity, 0),
			utils.FormatFR(row.AcquisitionValue, 0),
			utils.FormatFR(row.CurrentValue, 0),
			utils.FormatFRPercent(row.GainPct, 2),
		)
	}
	tw.Flush()

	t := sum.Totals
	fmt.Fprintf(w, "\nTotal %s: %s (acquisition %s, gain %s)\n",
		domain.DateKey(sum.Date),
		utils.FormatFRCurrency(t.Current, 0, sum.Currency),
		utils.FormatFRCurrency(t.Acquisition, 0, sum.Currency),
		utils.FormatFRPercent(t.GainPct(), 2),
	)
	printWarnings(w, sum.Warnings)
}

// historyCmd reconstructs daily portfolio totals over a period
type historyCmd struct {
	out      io.Writer
	period   string
	mode     string
	currency string
	last     int
	chart    string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "reconstruct the daily value of the portfolio" }
func (*historyCmd) Usage() string {
	return `beam history [-period 1Y] [-mode current|journal] [-currency EUR] [-n 10] [-chart out.png]
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", valuation.DefaultPeriod, "Period preset: "+strings.Join(valuation.Periods, ", "))
	f.StringVar(&c.mode, "mode", string(valuation.ModeCurrent), "current projects today's holdings, journal replays snapshots")
	f.StringVar(&c.currency, "currency", "", "Reporting currency (defaults to the portfolio currency)")
	f.IntVar(&c.last, "n", 10, "Number of most recent days to print (0 prints all)")
	f.StringVar(&c.chart, "chart", "", "Also write a PNG value chart to this path")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	mode, err := valuation.ParseMode(c.mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	now := time.Now()
	start, end := valuation.ParsePeriod(c.period, now)
	res, err := a.container.History.Run(ctx, valuation.Request{
		Start:    start,
		End:      end,
		Currency: c.currency,
		Mode:     mode,
	})
	if err != nil {
		return fail(os.Stderr, err)
	}
	printTotals(c.out, res.Totals, c.last)
	printWarnings(c.out, res.Warnings)

	if c.chart != "" {
		png, err := a.container.Charts.ValueChart(ctx, c.period, c.currency, now)
		if err != nil {
			return fail(os.Stderr, err)
		}
		if err := os.WriteFile(c.chart, png, 0644); err != nil {
			return fail(os.Stderr, err)
		}
		fmt.Fprintf(c.out, "Chart written to %s\n", c.chart)
	}
	return subcommands.ExitSuccess
}

// printTotals writes the last n totals, all of them when n <= 0
func printTotals(w io.Writer, totals []domain.DailyTotal, n int) {
	if len(totals) == 0 {
		fmt.Fprintln(w, "No data for this period")
		return
	}
	if n > 0 && len(totals) > n {
		totals = totals[len(totals)-n:]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Date\tValeur\tAcquisition\tGain\t")
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			domain.DateKey(t.Date),
			utils.FormatFRCurrency(t.Current, 0, t.Currency),
			utils.FormatFRCurrency(t.Acquisition, 0, t.Currency),
			utils.FormatFRPercent(t.GainPct(), 2),
		)
	}
	tw.Flush()
}

// momentumCmd classifies tickers by weekly momentum
type momentumCmd struct {
	out      io.Writer
	strategy string
}

func (*momentumCmd) Name() string     { return "momentum" }
func (*momentumCmd) Synopsis() string { return "classify tickers by weekly momentum" }
func (*momentumCmd) Usage() string {
	return `beam momentum [-strategy fine|coarse] [TICKER...]

  Without tickers, the portfolio holdings are classified.
`
}

func (c *momentumCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.strategy, "strategy", momentum.DefaultStrategy, "Classification: "+strings.Join(momentum.StrategyNames(), ", "))
}

func (c *momentumCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	strategy, err := momentum.StrategyByName(c.strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	tickers := utils.ParseSymbols(strings.Join(f.Args(), ","))
	if len(tickers) == 0 {
		tickers = a.container.Store.Tickers()
	}
	if len(tickers) == 0 {
		fmt.Fprintln(c.out, "No tickers to classify")
		return subcommands.ExitSuccess
	}

	results, err := a.container.Momentum.Analyze(ctx, tickers, strategy)
	if err != nil {
		return fail(os.Stderr, err)
	}
	printMomentum(c.out, results)
	return subcommands.ExitSuccess
}

func printMomentum(w io.Writer, results []momentum.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Ticker\tCours\tMomentum\tZ\tSignal\tAction")
	for _, r := range results {
		if r.Status != momentum.StatusOK {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\t-\n", r.Ticker, r.Status)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Ticker,
			utils.FormatFR(r.LastPrice, 2),
			utils.FormatFRPercent(r.MomentumPct, 2),
			utils.FormatFR(r.Z, 2),
			r.Signal,
			r.Action,
		)
	}
	tw.Flush()
}

// snapshotsCmd lists stored snapshots
type snapshotsCmd struct {
	out io.Writer
}

func (*snapshotsCmd) Name() string     { return "snapshots" }
func (*snapshotsCmd) Synopsis() string { return "list stored portfolio snapshots" }
func (*snapshotsCmd) Usage() string {
	return `beam snapshots
`
}

func (*snapshotsCmd) SetFlags(*flag.FlagSet) {}

func (c *snapshotsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	all, err := a.container.Snapshots.List()
	if err != nil {
		return fail(os.Stderr, err)
	}
	printSnapshots(c.out, all)
	return subcommands.ExitSuccess
}

func printSnapshots(w io.Writer, all []domain.PortfolioSnapshot) {
	if len(all) == 0 {
		fmt.Fprintln(w, "No snapshots stored")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tDevise\tLignes\tID")
	for _, s := range all {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", domain.DateKey(s.Date), s.TargetCurrency, len(s.Holdings), s.ID)
	}
	tw.Flush()
}

// backupCmd uploads a database backup immediately
type backupCmd struct {
	out io.Writer
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "back up the portfolio database to S3 now" }
func (*backupCmd) Usage() string {
	return `beam backup

  Requires BEAM_S3_BUCKET, BEAM_S3_ACCESS_KEY and BEAM_S3_SECRET_KEY.
`
}

func (*backupCmd) SetFlags(*flag.FlagSet) {}

func (c *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	defer a.Close()

	if a.jobs.Backup == nil {
		return fail(os.Stderr, fmt.Errorf("backups are not configured"))
	}
	if err := a.container.Scheduler.RunNow(a.jobs.Backup); err != nil {
		return fail(os.Stderr, err)
	}
	fmt.Fprintln(c.out, "Backup completed")
	return subcommands.ExitSuccess
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
