package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/spf13/cobra"
)

func newLibraryCommand(cc *commandContext) *cobra.Command {
	var (
		name    string
		libPath string
	)
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the series found in the library folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cc.openServices(cmd.Context(), cmd, args, serviceNeeds{catalog: true})
			if err != nil {
				return err
			}
			defer closeServices(cmd, svc)

			series := svc.catalog.ListSeries(catalog.Filter{Name: name, LibraryPath: libPath})
			out := cmd.OutOrStdout()
			if len(series) == 0 {
				fmt.Fprintln(out, "No series found.")
				return nil
			}
			fmt.Fprintln(out, renderSeries(svc.catalog, series, svc.cfg.SmartMatchTable()))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Only show series with this name")
	cmd.Flags().StringVar(&libPath, "library-path", "", "Only show series under this library folder")
	return cmd
}

func renderSeries(cat *catalog.Catalog, series []catalog.Series, matches []config.SmartMatchInfo) string {
	aliases := make(map[string][]string, len(matches))
	for _, m := range matches {
		aliases[m.ItemName] = append(aliases[m.ItemName], m.MatchStrings...)
	}

	rows := make([][]string, 0, len(series))
	for _, s := range series {
		year := ""
		if s.Year > 0 {
			year = strconv.Itoa(s.Year)
		}
		rows = append(rows, []string{
			s.ID,
			s.Name,
			year,
			strconv.Itoa(len(cat.SeasonsOf(s.ID))),
			strconv.Itoa(len(cat.EpisodesOf(s.ID))),
			formatProviderIDs(s.ProviderIDs),
			strings.Join(aliases[s.Name], ", "),
			s.Path,
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Year", "Seasons", "Episodes", "Provider IDs", "Aliases", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func formatProviderIDs(ids map[string]string) string {
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+ids[k])
	}
	return strings.Join(parts, " ")
}
