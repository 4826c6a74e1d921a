// insightctl provisions InsightHub accounts, catalog reports and report
// grants. The web service only reads this data (apart from password
// changes), so operators manage it from here.
//
//	insightctl --database-url postgres://... user-add --email a@b.com --name "A B" --password ...
//	insightctl report-add --pbi-id 6f1c... --title "General Ledger" --type Accounting
//	insightctl grant --email a@b.com --report 6f1c...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	reportstore "github.com/dalemusser/insighthub/internal/app/store/reports"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

// databaseURLEnv is read when --database-url is not given.
const databaseURLEnv = "INSIGHTHUB_DATABASE_URL"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var databaseURL string

	flagSet := pflag.NewFlagSet("insightctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&databaseURL, "database-url", os.Getenv(databaseURLEnv), "Postgres connection URL (default $"+databaseURLEnv+")")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printUsage(stderr, flagSet)
		return nil
	}

	cmd := lookup(flagSet.Arg(0))
	if cmd == nil {
		printUsage(stderr, flagSet)
		return fmt.Errorf("unknown command %q", flagSet.Arg(0))
	}
	if databaseURL == "" {
		return fmt.Errorf("--database-url or %s is required", databaseURLEnv)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	e := &env{
		users:   userstore.New(pool),
		reports: reportstore.New(pool),
		out:     stdout,
	}
	return cmd.Run(ctx, e, flagSet.Args()[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: insightctl [--database-url URL] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", c.Name, c.Summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "global flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}
