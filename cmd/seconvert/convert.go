package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/seconvert/internal/config"
	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/core/observers"
	"github.com/JonMunkholm/seconvert/internal/logging"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// conversionFlags are shared by every command that runs a converter.
func conversionFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Usage: "source schema id", Required: true},
		&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Usage: "destination schema id", Required: true},
		&cli.StringFlag{Name: "observer", Usage: "registered observer key", Value: observers.IdentityKey},
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input file, - for stdin", Value: "-"},
		&cli.StringFlag{Name: "duplicates", Usage: "duplicate primary key policy: drop, keep or error", Value: cfg.Convert.RejectDuplicatePKs},
		&cli.StringFlag{Name: "invalid", Usage: "invalid primary key policy: drop, keep or error", Value: cfg.Convert.RejectInvalidPKs},
		&cli.StringFlag{Name: "input-delimiter", Usage: `input field delimiter, \t for tab`, Value: cfg.Convert.InputDelimiter},
		&cli.StringFlag{Name: "output-delimiter", Usage: `output field delimiter, \t for tab`, Value: cfg.Convert.OutputDelimiter},
		&cli.BoolFlag{Name: "lazy-quotes", Usage: "tolerate stray quotes in input fields", Value: cfg.Convert.LazyQuotes},
	}
}

func convertCommand(cfg *config.Config) *cli.Command {
	flags := append(conversionFlags(cfg),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file, - for stdout", Value: "-"},
		&cli.StringFlag{Name: "format", Usage: "input format: csv or json", Value: "csv"},
		&cli.StringFlag{Name: "path", Usage: "dotted path to the row array in a JSON document"},
		&cli.StringFlag{Name: "table", Usage: "copy the output into this Postgres table instead of a file"},
		&cli.StringFlag{Name: "kinds", Usage: "column types for --table, as field:kind pairs"},
		&cli.IntFlag{Name: "batch", Usage: "rows per COPY for --table", Value: cfg.Database.CopyBatchSize},
	)

	return &cli.Command{
		Name:  "convert",
		Usage: "convert a CSV or JSON file from one schema to another",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx, conv, err := newConverter(c, cfg)
			if err != nil {
				return err
			}
			if table := c.String("table"); table != "" {
				return loadTable(ctx, c, cfg, conv, table)
			}

			return convertStreams(c, conv)
		},
	}
}

// convertStreams converts --input into --output. A file output is written
// to a temporary file and renamed into place once the conversion succeeds.
func convertStreams(c *cli.Context, conv *core.Converter) error {
	var run func(in io.Reader, out io.Writer) error
	switch format := strings.ToLower(c.String("format")); format {
	case "csv":
		run = conv.EachRow
	case "json":
		var path []string
		if p := c.String("path"); p != "" {
			path = strings.Split(p, ".")
		}
		run = func(in io.Reader, out io.Writer) error {
			return conv.JSONConvert(in, path, out)
		}
	default:
		return fmt.Errorf("unknown input format %q: expected csv or json", format)
	}

	in, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer in.Close()

	outPath := c.String("output")
	if outPath == "-" {
		return run(in, stdout{c.App.Writer})
	}
	return core.WriteFileAtomic(outPath, func(out io.Writer) error {
		return run(in, out)
	})
}

func previewCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "print the first converted rows as JSON without writing anything",
		Flags: append(conversionFlags(cfg),
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "number of output rows", Value: core.DefaultPreviewRows},
		),
		Action: func(c *cli.Context) error {
			_, conv, err := newConverter(c, cfg)
			if err != nil {
				return err
			}
			in, err := openInput(c.String("input"))
			if err != nil {
				return err
			}
			defer in.Close()

			p, err := conv.Preview(in, c.Int("limit"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

// newConverter builds a converter from the command's flags. Flags override
// the configured conversion defaults. The returned context carries a new
// conversion id.
func newConverter(c *cli.Context, cfg *config.Config) (context.Context, *core.Converter, error) {
	overrides := map[string]*string{
		"duplicates":       &cfg.Convert.RejectDuplicatePKs,
		"invalid":          &cfg.Convert.RejectInvalidPKs,
		"input-delimiter":  &cfg.Convert.InputDelimiter,
		"output-delimiter": &cfg.Convert.OutputDelimiter,
	}
	for name, dst := range overrides {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet("lazy-quotes") {
		cfg.Convert.LazyQuotes = c.Bool("lazy-quotes")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	from, err := lookupSchema(catalog, c.String("from"))
	if err != nil {
		return nil, nil, err
	}
	to, err := lookupSchema(catalog, c.String("to"))
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.Convert.ConverterOptions()
	if err != nil {
		return nil, nil, err
	}
	key := c.String("observer")
	if opts.Observer, err = core.NewObserver(key, from, to); err != nil {
		return nil, nil, err
	}

	ctx := core.ContextWithConversionID(c.Context, uuid.NewString())
	opts.From, opts.To = from, to
	opts.Logger = logging.WithFields(ctx, "observer", key)

	conv, err := core.NewConverter(opts)
	if err != nil {
		return nil, nil, err
	}
	return ctx, conv, nil
}

// loadCatalog reads the schema directory and registers the mapping
// observers of the mapping directory.
func loadCatalog(cfg *config.Config) (*schema.Catalog, error) {
	catalog, err := schema.NewCatalog(cfg.Schema.Dir)
	if err != nil {
		return nil, err
	}
	slog.Debug("schemas loaded", "dir", cfg.Schema.Dir, "count", catalog.Len())

	if cfg.Schema.MappingDir != "" {
		names, err := observers.RegisterMappingDir(cfg.Schema.MappingDir)
		if err != nil {
			return nil, err
		}
		slog.Debug("mapping observers registered", "dir", cfg.Schema.MappingDir, "names", names)
	}
	return catalog, nil
}

func lookupSchema(catalog *schema.Catalog, id string) (*schema.Schema, error) {
	sc, ok := catalog.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q in %s", id, catalog.Dir())
	}
	return sc, nil
}

// stdout hides the Close of the app's writer, so converters that close
// their output leave it open.
type stdout struct{ io.Writer }

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

// loadTable runs the conversion into a Postgres table.
func loadTable(ctx context.Context, c *cli.Context, cfg *config.Config, conv *core.Converter, table string) error {
	if !cfg.Database.Enabled() {
		return fmt.Errorf("--table needs DATABASE_URL to be set")
	}
	kinds, err := core.ParseColumnKinds(c.String("kinds"))
	if err != nil {
		return err
	}
	in, err := openInput(c.String("input"))
	if err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		in.Close()
		return err
	}
	defer pool.Close()

	copied, err := conv.ConvertToTable(ctx, pool, in, core.TableLoad{
		Table:     table,
		Columns:   kinds,
		BatchSize: c.Int("batch"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "copied %d rows into %s\n", copied, table)
	return nil
}

// openPool connects to the configured database and verifies the connection.
func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
