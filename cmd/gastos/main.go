// Command gastos records expenses, invoices and incomes against the backend
// and keeps track of the exchange rate of the day.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"gastos/internal/app"
	"gastos/internal/cli"
	applog "gastos/internal/log"
)

// errUsage marks bad invocations; its message has already been printed.
var errUsage = errors.New("usage")

type opener func(ctx context.Context) (*app.App, error)

type env struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	open   opener
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":    {"log in and check today's exchange rate", runLogin},
	"logout":   {"forget the session and the cached rate", runLogout},
	"whoami":   {"show the logged-in user", runWhoami},
	"rate":     {"show today's rate, or `rate set <value>`", runRate},
	"expense":  {"create | list | pay | resume", runExpense},
	"invoice":  {"create | list", runInvoice},
	"income":   {"create", runIncome},
	"overview": {"recent expenses and pending invoices", runOverview},
	"export":   {"append all expenses to the configured spreadsheet", runExport},
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupCLILogger(applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	open := func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, cfg, app.Options{Logger: logger})
	}
	code := run(ctx, os.Args[1:], &env{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, open: open})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, e *env) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(e.errOut)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(e.errOut, "unknown command %q\n\n", args[0])
		usage(e.errOut)
		return 2
	}
	if err := cmd.run(ctx, e, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(e.errOut, "error: %s\n", userMessage(err))
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: gastos <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
}

// newFlagSet returns a flag set that reports parse errors on e.errOut.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("gastos "+name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// subcommand splits "create -x 1" into "create" and its flags.
func subcommand(e *env, group string, args []string, names ...string) (string, []string, error) {
	if len(args) == 0 || !slices.Contains(names, args[0]) {
		fmt.Fprintf(e.errOut, "usage: gastos %s %s\n", group, strings.Join(names, "|"))
		return "", nil, errUsage
	}
	return args[0], args[1:], nil
}
