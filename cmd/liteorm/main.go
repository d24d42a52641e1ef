// Command liteorm inspects SQLite databases and writes snapshots of them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"

	"github.com/jordanwade90/liteorm"
)

// CLI defines the command-line interface.
type CLI struct {
	JSON    bool `help:"Print results as JSON"`
	Verbose bool `short:"v" help:"Log every statement to stderr"`

	Tables   TablesCmd   `cmd:"" help:"List the user tables of a database"`
	Columns  ColumnsCmd  `cmd:"" help:"List the columns of a table"`
	Indexes  IndexesCmd  `cmd:"" help:"List the indexes of a table and their columns"`
	Snapshot SnapshotCmd `cmd:"" help:"Copy tables into a new database file"`
}

type app struct {
	ctx    context.Context
	out    io.Writer
	json   bool
	logger *slog.Logger
	trace  bool
}

func (a *app) open(path string) (*liteorm.Session, error) {
	cfg, err := liteorm.LoadConfig()
	if err != nil {
		return nil, err
	}
	if a.trace {
		cfg.Trace = true
	}
	return liteorm.Open(a.ctx, path, liteorm.WithConfig(cfg), liteorm.WithLogger(a.logger))
}

// print writes v as JSON with --json, and through text otherwise.
func (a *app) print(v any, text func(w *tabwriter.Writer)) error {
	if a.json {
		return json.NewEncoder(a.out).Encode(v)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

// TablesCmd lists tables.
type TablesCmd struct {
	DB string `arg:"" help:"Database file" type:"existingfile"`
}

func (c *TablesCmd) Run(a *app) error {
	s, err := a.open(c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.TableNames(a.ctx)
	if err != nil {
		return err
	}
	return a.print(names, func(w *tabwriter.Writer) {
		for _, n := range names {
			fmt.Fprintln(w, n)
		}
	})
}

// ColumnsCmd lists the columns of one table.
type ColumnsCmd struct {
	DB    string `arg:"" help:"Database file" type:"existingfile"`
	Table string `arg:"" help:"Table name"`
}

func (c *ColumnsCmd) Run(a *app) error {
	s, err := a.open(c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	cols, err := s.TableInfo(a.ctx, c.Table)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("no table %q", c.Table)
	}
	return a.print(cols, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tTYPE\tNOT NULL\tDEFAULT\tPK")
		for _, col := range cols {
			def := ""
			if col.Default != nil {
				def = *col.Default
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\n", col.Name, col.Type, col.NotNull, def, col.PK)
		}
	})
}

// IndexesCmd lists the indexes of one table.
type IndexesCmd struct {
	DB    string `arg:"" help:"Database file" type:"existingfile"`
	Table string `arg:"" help:"Table name"`
}

type indexRow struct {
	Name    string   `json:"name"`
	Unique  bool     `json:"unique"`
	Origin  string   `json:"origin"`
	Columns []string `json:"columns"`
}

func (c *IndexesCmd) Run(a *app) error {
	s, err := a.open(c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.IndexList(a.ctx, c.Table)
	if err != nil {
		return err
	}
	rows := make([]indexRow, 0, len(list))
	for _, idx := range list {
		info, err := s.IndexInfo(a.ctx, idx.Name)
		if err != nil {
			return err
		}
		row := indexRow{Name: idx.Name, Unique: idx.Unique, Origin: idx.Origin}
		for _, col := range info {
			if col.Name != nil {
				row.Columns = append(row.Columns, *col.Name)
			} else {
				row.Columns = append(row.Columns, "<expr>")
			}
		}
		rows = append(rows, row)
	}
	return a.print(rows, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tUNIQUE\tORIGIN\tCOLUMNS")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%t\t%s\t%v\n", r.Name, r.Unique, r.Origin, r.Columns)
		}
	})
}

// SnapshotCmd copies tables into a new file.
type SnapshotCmd struct {
	DB     string   `arg:"" help:"Database file" type:"existingfile"`
	Out    string   `arg:"" help:"File to create"`
	Tables []string `arg:"" optional:"" help:"Tables to copy (default: all)"`
	Force  bool     `short:"f" help:"Overwrite the output file if it exists"`
}

func (c *SnapshotCmd) Run(a *app) error {
	s, err := a.open(c.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	flags := os.O_RDWR | os.O_CREATE | os.O_EXCL
	if c.Force {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(c.Out, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := s.Snapshot(a.ctx, f, c.Tables...); err != nil {
		f.Close()
		os.Remove(c.Out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("snapshot written", "db", c.DB, "out", c.Out)
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("liteorm"),
		kong.Description("Inspect SQLite databases and snapshot their tables"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return kctx.Run(&app{
		ctx:    ctx,
		out:    stdout,
		json:   cli.JSON,
		logger: logger,
		trace:  cli.Verbose,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "liteorm:", err)
		os.Exit(1)
	}
}
