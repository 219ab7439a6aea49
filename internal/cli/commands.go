package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/subcommands"

	"splitledger/internal/core"
	"splitledger/internal/report"
	"splitledger/internal/services"
	"splitledger/internal/settle"
	"splitledger/internal/split"
)

// Env is what every subcommand needs: a way to open the ledger, the
// current user and where to print.
type Env struct {
	Open   func(ctx context.Context) (*services.Ledger, error)
	User   func() string
	Stdout io.Writer
	Stderr io.Writer
	Today  func() string
}

// Register the subcommands.
func Register(c *subcommands.Commander, env *Env) {
	if env.Today == nil {
		env.Today = func() string { return time.Now().Format("2006-01-02") }
	}

	c.Register(&addCmd{env: env}, "transactions")
	c.Register(&splitCmd{env: env}, "transactions")
	c.Register(&listCmd{env: env}, "transactions")
	c.Register(&categoriesCmd{env: env}, "transactions")
	c.Register(&usersCmd{env: env}, "transactions")

	c.Register(&reportCmd{env: env}, "reports")
	c.Register(&fraudCmd{env: env}, "reports")
	c.Register(&summaryCmd{env: env}, "reports")
	c.Register(&exportCmd{env: env}, "reports")

	c.Register(&balancesCmd{env: env}, "settle up")
	c.Register(&settleCmd{env: env}, "settle up")
	c.Register(&settlementsCmd{env: env}, "settle up")
	c.Register(&suggestCmd{env: env}, "settle up")
}

// run opens the ledger, runs fn and always closes the ledger, which flushes
// it. A failure is printed to Stderr.
func (e *Env) run(ctx context.Context, fn func(l *services.Ledger) error) subcommands.ExitStatus {
	l, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintln(e.Stderr, err)
		return subcommands.ExitFailure
	}
	err = fn(l)
	if cerr := l.Close(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		fmt.Fprintln(e.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// owner returns the current user or an error naming how to set it.
func (e *Env) owner() (string, error) {
	u := ""
	if e.User != nil {
		u = strings.TrimSpace(e.User())
	}
	if u == "" {
		return "", errors.New("no user: pass -user or set LEDGER_USER")
	}
	return u, nil
}

func (e *Env) withOwner(ctx context.Context, fn func(l *services.Ledger, owner string) error) subcommands.ExitStatus {
	owner, err := e.owner()
	if err != nil {
		fmt.Fprintln(e.Stderr, err)
		return subcommands.ExitUsageError
	}
	return e.run(ctx, func(l *services.Ledger) error { return fn(l, owner) })
}

type addCmd struct {
	env         *Env
	date        string
	category    string
	description string
	amount      string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction for the current user" }
func (*addCmd) Usage() string {
	return `ledger add -c <category> -a <amount> [-d <YYYY-MM-DD>] [-m <description>]

  Records one transaction. The amount accepts a dot or a comma as decimal
  separator and may be negative.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "transaction date (YYYY-MM-DD), defaults to today")
	f.StringVar(&c.category, "c", "", "category")
	f.StringVar(&c.description, "m", "", "description")
	f.StringVar(&c.amount, "a", "", "amount")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintf(c.env.Stderr, "invalid amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date := c.date
	if date == "" {
		date = c.env.Today()
	}
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		t, err := l.Record(ctx, owner, date, c.category, c.description, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "recorded %s %s %s %s\n", t.ID, t.Date, t.Category, core.FormatAmount(t.Amount))
		return nil
	})
}

type splitCmd struct {
	env          *Env
	date         string
	category     string
	description  string
	total        string
	participants string
	amounts      string
	payer        string
}

func (*splitCmd) Name() string     { return "split" }
func (*splitCmd) Synopsis() string { return "split a shared expense across participants" }
func (*splitCmd) Usage() string {
	return `ledger split -p <a,b,c> -c <category> (-t <total> | -amounts <x,y,z>) [-payer <name>] [-d <date>] [-m <description>]

  Without -amounts the total is divided equally, each share rounded to two
  decimals. With -amounts every participant gets the amount at the same
  position; the total is then only informative. With -payer the shares
  count towards balances.
`
}

func (c *splitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "expense date (YYYY-MM-DD), defaults to today")
	f.StringVar(&c.category, "c", "", "category")
	f.StringVar(&c.description, "m", "", "description")
	f.StringVar(&c.total, "t", "0", "total to split equally")
	f.StringVar(&c.participants, "p", "", "comma separated participants")
	f.StringVar(&c.amounts, "amounts", "", "comma separated custom shares, one per participant")
	f.StringVar(&c.payer, "payer", "", "who paid the expense")
}

func (c *splitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	total, err := core.ParseAmount(c.total)
	if err != nil {
		fmt.Fprintf(c.env.Stderr, "invalid total %q: %v\n", c.total, err)
		return subcommands.ExitUsageError
	}
	mode := split.Equal()
	if strings.TrimSpace(c.amounts) != "" {
		amounts, err := parseAmounts(c.amounts)
		if err != nil {
			fmt.Fprintln(c.env.Stderr, err)
			return subcommands.ExitUsageError
		}
		mode = split.Custom(amounts)
	}
	date := c.date
	if date == "" {
		date = c.env.Today()
	}

	req := split.Request{
		Total:        total.InexactFloat64(),
		Participants: split.ParseParticipants(c.participants),
		Mode:         mode,
		Date:         date,
		Category:     c.category,
		Description:  c.description,
		Payer:        c.payer,
	}
	return c.env.run(ctx, func(l *services.Ledger) error {
		txs, err := l.Split(ctx, req)
		if err != nil {
			return err
		}
		for _, t := range txs {
			fmt.Fprintf(c.env.Stdout, "recorded %s %s %s\n", t.ID, t.Owner, core.FormatAmount(t.Amount))
		}
		return nil
	})
}

func parseAmounts(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		d, err := core.ParseAmount(p)
		if err != nil {
			return nil, fmt.Errorf("invalid share %q: %w", p, err)
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

type listCmd struct {
	env  *Env
	sort string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list the current user's transactions" }
func (*listCmd) Usage() string {
	return `ledger list [-sort id|date|category|description|amount]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", "", "sort key, insertion order when empty")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var key report.SortKey
	if c.sort != "" {
		k, err := report.ParseSortKey(c.sort)
		if err != nil {
			fmt.Fprintln(c.env.Stderr, err)
			return subcommands.ExitUsageError
		}
		key = k
	}
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		var (
			txs []core.Transaction
			err error
		)
		if key == "" {
			txs, err = l.Transactions(owner)
		} else {
			txs, err = l.Sorted(owner, key)
		}
		if errors.Is(err, core.ErrNotFound) {
			fmt.Fprintln(c.env.Stdout, err)
			return nil
		}
		if err != nil {
			return err
		}
		for _, t := range txs {
			fmt.Fprintf(c.env.Stdout, "%-34s %-10s %-15s %-25s %10s\n",
				t.ID, t.Date, t.Category, t.Description, core.FormatAmount(t.Amount))
		}
		return nil
	})
}

type categoriesCmd struct{ env *Env }

func (*categoriesCmd) Name() string             { return "categories" }
func (*categoriesCmd) Synopsis() string         { return "list known categories in first-use order" }
func (*categoriesCmd) Usage() string            { return "ledger categories\n" }
func (*categoriesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(l *services.Ledger) error {
		for _, name := range l.Categories() {
			fmt.Fprintln(c.env.Stdout, name)
		}
		return nil
	})
}

type reportCmd struct{ env *Env }

func (*reportCmd) Name() string             { return "report" }
func (*reportCmd) Synopsis() string         { return "print the current user's CSV report" }
func (*reportCmd) Usage() string            { return "ledger report\n" }
func (*reportCmd) SetFlags(_ *flag.FlagSet) {}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		_, err := io.WriteString(c.env.Stdout, l.CSVReport(owner))
		return err
	})
}

type fraudCmd struct{ env *Env }

func (*fraudCmd) Name() string             { return "fraud" }
func (*fraudCmd) Synopsis() string         { return "print unusually high transactions of the current user" }
func (*fraudCmd) Usage() string            { return "ledger fraud\n" }
func (*fraudCmd) SetFlags(_ *flag.FlagSet) {}

func (c *fraudCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		for _, line := range l.Anomalies(owner) {
			fmt.Fprintln(c.env.Stdout, line)
		}
		return nil
	})
}

type summaryCmd struct{ env *Env }

func (*summaryCmd) Name() string             { return "summary" }
func (*summaryCmd) Synopsis() string         { return "print category, top expense and monthly totals" }
func (*summaryCmd) Usage() string            { return "ledger summary\n" }
func (*summaryCmd) SetFlags(_ *flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		s, err := l.Summary(owner)
		if errors.Is(err, core.ErrNotFound) {
			fmt.Fprintln(c.env.Stdout, err)
			return nil
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(c.env.Stdout, s)
		return err
	})
}

type exportCmd struct{ env *Env }

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the CSV and anomaly reports" }
func (*exportCmd) Usage() string {
	return `ledger export

  Writes report_<user>.csv and fraud_<user>.txt to the configured export
  target (EXPORT_TARGET).
`
}
func (*exportCmd) SetFlags(_ *flag.FlagSet) {}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		if err := l.Export(ctx, owner); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "exported reports for %s\n", owner)
		return nil
	})
}

type usersCmd struct{ env *Env }

func (*usersCmd) Name() string             { return "users" }
func (*usersCmd) Synopsis() string         { return "list known users in registration order" }
func (*usersCmd) Usage() string            { return "ledger users\n" }
func (*usersCmd) SetFlags(_ *flag.FlagSet) {}

func (c *usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(l *services.Ledger) error {
		for _, u := range l.Users() {
			fmt.Fprintln(c.env.Stdout, u.Name)
		}
		return nil
	})
}

type balancesCmd struct{ env *Env }

func (*balancesCmd) Name() string             { return "balances" }
func (*balancesCmd) Synopsis() string         { return "print what every member is owed or owes" }
func (*balancesCmd) Usage() string            { return "ledger balances\n" }
func (*balancesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(l *services.Ledger) error {
		_, err := io.WriteString(c.env.Stdout, settle.FormatBalances(l.Balances()))
		return err
	})
}

type settleCmd struct {
	env    *Env
	date   string
	to     string
	amount string
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "record a payment from the current user to another member" }
func (*settleCmd) Usage() string {
	return `ledger settle -to <member> -a <amount> [-d <YYYY-MM-DD>]
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "payment date (YYYY-MM-DD), defaults to today")
	f.StringVar(&c.to, "to", "", "member receiving the payment")
	f.StringVar(&c.amount, "a", "", "amount paid")
}

func (c *settleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintf(c.env.Stderr, "invalid amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	date := c.date
	if date == "" {
		date = c.env.Today()
	}
	return c.env.withOwner(ctx, func(l *services.Ledger, owner string) error {
		s, err := l.Settle(ctx, date, owner, c.to, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Stdout, "settled %s %s paid %s %s\n", s.Date, s.From, s.To, core.FormatAmount(s.Amount))
		return nil
	})
}

type settlementsCmd struct{ env *Env }

func (*settlementsCmd) Name() string             { return "settlements" }
func (*settlementsCmd) Synopsis() string         { return "print the settlement history" }
func (*settlementsCmd) Usage() string            { return "ledger settlements\n" }
func (*settlementsCmd) SetFlags(_ *flag.FlagSet) {}

func (c *settlementsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(l *services.Ledger) error {
		_, err := io.WriteString(c.env.Stdout, settle.FormatHistory(l.Settlements()))
		return err
	})
}

type suggestCmd struct{ env *Env }

func (*suggestCmd) Name() string             { return "suggest" }
func (*suggestCmd) Synopsis() string         { return "suggest payments that clear all balances" }
func (*suggestCmd) Usage() string            { return "ledger suggest\n" }
func (*suggestCmd) SetFlags(_ *flag.FlagSet) {}

func (c *suggestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(l *services.Ledger) error {
		_, err := io.WriteString(c.env.Stdout, settle.FormatSuggestions(l.Suggestions()))
		return err
	})
}
