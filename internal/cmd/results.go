package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/store"
	"github.com/spf13/cobra"
)

func newResultsCommand(cc *commandContext) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List recorded organization results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ResultFilter{Limit: limit}
			if status != "" {
				s, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			return withStore(cmd, cc, func(svc *services) error {
				results, err := svc.store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No results recorded.")
					return nil
				}
				fmt.Fprintln(out, renderResults(results))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show results with this status (success, failure, skipped)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results to show (0 for all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <result-id>",
			Short: "Show one result in detail",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cc, func(svc *services) error {
					r, err := svc.store.GetByID(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if r == nil {
						return fmt.Errorf("result %s not found", args[0])
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderResult(r))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <result-id>",
			Short: "Forget one result",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cc, func(svc *services) error {
					removed, err := svc.store.Delete(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("result %s not found", args[0])
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted result %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cc, func(svc *services) error {
					n, err := svc.store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d results\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func withStore(cmd *cobra.Command, cc *commandContext, fn func(*services) error) error {
	svc, err := cc.openServices(cmd.Context(), cmd, nil, serviceNeeds{})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svc)
	return fn(svc)
}

func parseStatus(s string) (organize.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "sorted":
		return organize.StatusSuccess, nil
	case "failure", "failed":
		return organize.StatusFailure, nil
	case "skipped", "skippedexisting":
		return organize.StatusSkippedExisting, nil
	default:
		return "", fmt.Errorf("unknown status %q, expected success, failure or skipped", s)
	}
}

func renderResults(results []*organize.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		detail := r.StatusMessage
		if r.Status == organize.StatusSuccess {
			detail = r.TargetPath
		}
		rows = append(rows, []string{
			r.ID,
			r.Date.Local().Format("2006-01-02 15:04"),
			filepath.Base(r.OriginalPath),
			displayStatus(r.Status),
			detail,
		})
	}
	return renderTable([]string{"ID", "Date", "File", "Status", "Detail"}, rows, nil)
}
