package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-strata/internal/store"
	"github.com/edp1096/toy-strata/pkg/util"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List runs saved with "strata run --db".

Examples:
  strata runs --db runs.db
  strata runs show <id> --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored.")
				return nil
			}
			for _, r := range runs {
				status := "converged"
				if !r.Converged {
					status = "not converged"
				}
				fmt.Fprintf(out, "%s  %s  %-14s PGA %s -> %s g  %s (%d)  %s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.CalculatorKind,
					util.FormatMagnitude(r.InputPGA), util.FormatMagnitude(r.SurfacePGA),
					status, r.Iterations, r.Name)
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("db", "", "SQLite database path (defaults to the configured path)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(out, run)
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dbPath = cfg.Output.DBPath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no database: pass --db or set output.db_path")
	}
	return store.NewSQLiteStore(dbPath)
}
