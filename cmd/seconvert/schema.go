package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/seconvert/internal/config"
	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/scaffold"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

func supersetCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "superset",
		Usage:     "check that one schema is a structural superset of another",
		ArgsUsage: "<schema> <other>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("superset takes two schema ids, got %d", c.NArg())
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			a, err := lookupSchema(catalog, c.Args().Get(0))
			if err != nil {
				return err
			}
			b, err := lookupSchema(catalog, c.Args().Get(1))
			if err != nil {
				return err
			}
			if err := a.AssertSupersetOf(b); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s is a superset of %s\n", a.ID(), b.ID())
			return nil
		},
	}
}

func schemaCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "inspect and convert schema definition files",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list the schemas in the schema directory",
				Action: func(c *cli.Context) error {
					catalog, err := loadCatalog(cfg)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tVERSION\tFIELDS\tPRIMARY KEY")
					for _, sc := range catalog.All() {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n", sc.ID(), sc.Name(), sc.Version(), sc.Len(), sc.PrimaryKey())
					}
					return tw.Flush()
				},
			},
			{
				Name:      "convert",
				Usage:     "rewrite a schema definition in another format",
				ArgsUsage: "<in> <out>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from-kind", Usage: "input format, csv or yaml; inferred from the extension when empty"},
					&cli.StringFlag{Name: "to-kind", Usage: "output format, csv or yaml; inferred from the extension when empty"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("schema convert takes an input and an output path, got %d arguments", c.NArg())
					}
					sc, err := schema.LoadFile(c.Args().Get(0), schema.FileKind(c.String("from-kind")))
					if err != nil {
						return err
					}
					return sc.SaveFile(c.Args().Get(1), schema.FileKind(c.String("to-kind")))
				},
			},
		},
	}
}

func observersCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "observers",
		Usage: "list the registered observers",
		Action: func(c *cli.Context) error {
			// Mapping observers register while the catalog loads
			if _, err := loadCatalog(cfg); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tDESCRIPTION")
			for _, def := range core.All() {
				fmt.Fprintf(tw, "%s\t%s\n", def.Key, def.Description)
			}
			return tw.Flush()
		},
	}
}

func scaffoldCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "scaffold",
		Usage: "generate a Go observer skeleton for two schemas",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Usage: "source schema id", Required: true},
			&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Usage: "destination schema id", Required: true},
			&cli.StringFlag{Name: "package", Usage: "package clause of the generated file", Value: "observers"},
			&cli.StringFlag{Name: "type", Usage: "observer type name"},
			&cli.StringFlag{Name: "key", Usage: "register the observer under this key"},
			&cli.StringFlag{Name: "module", Usage: "import path prefix of the generated imports", Value: scaffold.DefaultModulePath},
			&cli.StringFlag{Name: "dir", Usage: "output directory, - for stdout", Value: "."},
		},
		Action: func(c *cli.Context) error {
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			from, err := lookupSchema(catalog, c.String("from"))
			if err != nil {
				return err
			}
			to, err := lookupSchema(catalog, c.String("to"))
			if err != nil {
				return err
			}

			file, err := scaffold.Generate(from, to, scaffold.Config{
				Package:    c.String("package"),
				TypeName:   c.String("type"),
				Key:        c.String("key"),
				ModulePath: c.String("module"),
			})
			if err != nil {
				return err
			}

			if c.String("dir") == "-" {
				_, err := c.App.Writer.Write(file.Content)
				return err
			}
			path := filepath.Join(c.String("dir"), file.Filename)
			if err := os.WriteFile(path, file.Content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintln(c.App.Writer, path)
			return nil
		},
	}
}
