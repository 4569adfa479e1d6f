package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/transfer"
)

func (a *app) newExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup or a CSV report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if out == "" {
				out = fmt.Sprintf("worklog-export-%s.%s", time.Now().Format("2006-01-02"), format)
			}
			switch format {
			case "json":
				doc, err := transfer.Export(a.store)
				if err != nil {
					return err
				}
				if err := transfer.WriteJSON(doc, out); err != nil {
					return err
				}
			case "csv":
				entries, err := a.store.ListTimeEntries(store.EntryFilter{})
				if err != nil {
					return err
				}
				activities, err := a.store.ListActivities()
				if err != nil {
					return err
				}
				if err := transfer.ToCSV(entries, transfer.ActivityIndex(activities), out); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}
			abs, _ := filepath.Abs(out)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", abs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or csv")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := transfer.ParseMode(mode)
			if err != nil {
				return err
			}
			doc, err := transfer.ReadJSON(args[0])
			if err != nil {
				return err
			}
			res, err := transfer.Import(a.store, doc, m)
			var verr *transfer.ValidationError
			if errors.As(err, &verr) {
				for _, p := range verr.Problems {
					fmt.Fprintln(cmd.ErrOrStderr(), "  "+p)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Imported:", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(transfer.ModeMerge), "clear or merge")
	return cmd
}

func (a *app) newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all categories, activities, entries and goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete everything without --yes")
			}
			if err := a.store.ClearAllData(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data cleared. Settings were kept.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
