package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/oplog"
	"github.com/spf13/cobra"
)

func newJournalCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the recorded filesystem operations of past runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournal(cc)
			if err != nil {
				return err
			}
			sessions, err := journal.Sessions(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No journal sessions recorded.")
				return nil
			}
			fmt.Fprintln(out, renderSessions(sessions))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "List the operations of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournal(cc)
			if err != nil {
				return err
			}
			sessions, err := journal.Sessions(0)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				if strings.HasPrefix(s.Metadata.SessionID, args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), renderOperations(s.Operations))
					return nil
				}
			}
			return fmt.Errorf("session %s not found", args[0])
		},
	})
	return cmd
}

func openJournal(cc *commandContext) (*oplog.Journal, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	dir, err := oplog.DefaultDir()
	if err != nil {
		return nil, err
	}
	return oplog.New(dir, cfg.Logging.EnableJournal), nil
}

func renderSessions(sessions []*oplog.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		m := s.Metadata
		rows = append(rows, []string{
			m.SessionID,
			m.Timestamp.Local().Format("2006-01-02 15:04:05"),
			strings.Join(m.CommandArgs, " "),
			strconv.Itoa(m.TotalOps),
			strconv.Itoa(m.SuccessfulOps),
			strconv.Itoa(m.FailedOps),
		})
	}
	return renderTable(
		[]string{"Session", "Started", "Command", "Operations", "Succeeded", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func renderOperations(ops []oplog.Operation) string {
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		status := "ok"
		if !op.Success {
			status = op.Error
		}
		rows = append(rows, []string{
			op.Timestamp.Local().Format("15:04:05"),
			string(op.Type),
			op.SourcePath,
			op.DestPath,
			status,
		})
	}
	return renderTable([]string{"Time", "Operation", "Source", "Destination", "Result"}, rows, nil)
}
