package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zariny/ecommerce/config"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
	"github.com/zariny/ecommerce/internal/productclass"
	classRepoPkg "github.com/zariny/ecommerce/internal/productclass/repository"
	classUCPkg "github.com/zariny/ecommerce/internal/productclass/usecase"
)

var (
	outputJSON  bool
	includeSelf bool
	timeout     time.Duration
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Administer the product catalog database",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")

	graph := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the product class inheritance graph",
	}
	graph.PersistentFlags().BoolVar(&includeSelf, "include-self", false, "include the class itself in lineage output")
	graph.AddCommand(
		&cobra.Command{
			Use:   "verify",
			Short: "Check the stored class relations for cycles",
			Args:  cobra.NoArgs,
			RunE:  runVerify,
		},
		&cobra.Command{
			Use:   "ancestors <class-id>",
			Short: "List the ancestors of a product class",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLineage(cmd, args[0], productclass.UseCase.GetAncestors)
			},
		},
		&cobra.Command{
			Use:   "descendants <class-id>",
			Short: "List the descendants of a product class",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLineage(cmd, args[0], productclass.UseCase.GetDescendants)
			},
		},
	)

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
		graph,
	)
	return root
}

func connect() (*sqlx.DB, error) {
	cfg := config.LoadEnv()
	return postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
}

func classUseCase(db *sqlx.DB) productclass.UseCase {
	return classUCPkg.NewProductClassUseCase(classRepoPkg.NewPGRepository(db), nil, 0, logger.NewNop())
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"applied": nonNilStrings(applied)})
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	cycle, err := classUseCase(db).VerifyGraph(ctx)
	if err != nil {
		return err
	}
	return reportCycle(cmd.OutOrStdout(), cycle)
}

func reportCycle(w io.Writer, cycle []string) error {
	if outputJSON {
		if err := writeJSON(w, map[string]any{"acyclic": len(cycle) == 0, "cycle": nonNilStrings(cycle)}); err != nil {
			return err
		}
	} else if len(cycle) == 0 {
		fmt.Fprintln(w, "class graph is acyclic")
	} else {
		fmt.Fprintln(w, "cycle found:")
		for _, id := range cycle {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	if len(cycle) > 0 {
		return fmt.Errorf("class graph contains a cycle of %d classes", len(cycle))
	}
	return nil
}

type lineageFunc func(uc productclass.UseCase, ctx context.Context, id string, includeSelf bool) ([]model.ProductClass, error)

func runLineage(cmd *cobra.Command, id string, resolve lineageFunc) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	classes, err := resolve(classUseCase(db), ctx, id, includeSelf)
	if err != nil {
		return err
	}
	return printClasses(cmd.OutOrStdout(), classes)
}

func printClasses(w io.Writer, classes []model.ProductClass) error {
	if outputJSON {
		if classes == nil {
			classes = []model.ProductClass{}
		}
		return writeJSON(w, classes)
	}
	for _, c := range classes {
		marker := ""
		if c.Abstract {
			marker = " (abstract)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s%s\n", c.ID, c.Slug, c.Title, marker)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
