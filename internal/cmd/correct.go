package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/spf13/cobra"
)

type correctOptions struct {
	seriesID      string
	newSeries     string
	year          int
	providerIDs   []string
	targetFolder  string
	season        int
	episode       int
	endingEpisode int
	remember      bool
}

func newCorrectCommand(cc *commandContext) *cobra.Command {
	opts := &correctOptions{}
	cmd := &cobra.Command{
		Use:   "correct <result-id>",
		Short: "Sort a recorded file into an explicitly chosen series",
		Long: `Sort the source file of a recorded result again, either into an existing
library series (--series-id, see "tidy-sort library") or into a new series
folder created from provider ids (--new-series with --provider-id).
Existing episodes at the destination are replaced.`,
		Example: `  tidy-sort correct 3f2a... --series-id 9c1e...
  tidy-sort correct 3f2a... --new-series "The Office" --year 2005 --provider-id tmdb=2316 --remember`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd, args[0])
			if err != nil {
				return err
			}
			return runCorrect(cmd, cc, req, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.seriesID, "series-id", "", "Id of an existing library series")
	flags.StringVar(&opts.newSeries, "new-series", "", "Name of a series folder to create")
	flags.IntVar(&opts.year, "year", 0, "Premiere year of the new series")
	flags.StringArrayVar(&opts.providerIDs, "provider-id", nil, "Provider id of the new series as provider=id (repeatable)")
	flags.StringVar(&opts.targetFolder, "target-folder", "", "Library folder for the new series (default from config)")
	flags.IntVar(&opts.season, "season", 0, "Override the extracted season number")
	flags.IntVar(&opts.episode, "episode", 0, "Override the extracted episode number")
	flags.IntVar(&opts.endingEpisode, "ending-episode", 0, "Override the extracted ending episode number")
	flags.BoolVar(&opts.remember, "remember", false, "Remember the extracted name as an alias of the chosen series")
	cmd.MarkFlagsMutuallyExclusive("series-id", "new-series")
	return cmd
}

func (o *correctOptions) request(cmd *cobra.Command, resultID string) (organize.CorrectionRequest, error) {
	ids, err := parseProviderIDs(o.providerIDs)
	if err != nil {
		return organize.CorrectionRequest{}, err
	}
	req := organize.CorrectionRequest{
		ResultID:             strings.TrimSpace(resultID),
		SeriesID:             strings.TrimSpace(o.seriesID),
		NewSeriesName:        strings.TrimSpace(o.newSeries),
		NewSeriesYear:        o.year,
		NewSeriesProviderIDs: ids,
		TargetFolder:         o.targetFolder,
		RememberCorrection:   o.remember,
	}

	flags := cmd.Flags()
	if flags.Changed("season") {
		req.Season = &o.season
	}
	if flags.Changed("episode") {
		req.Episode = &o.episode
	}
	if flags.Changed("ending-episode") {
		req.EndingEpisode = &o.endingEpisode
	}
	return req, nil
}

// parseProviderIDs turns provider=id pairs into a map keyed by lower case
// provider name.
func parseProviderIDs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ids := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid provider id %q, expected provider=id", pair)
		}
		ids[key] = value
	}
	return ids, nil
}

func runCorrect(cmd *cobra.Command, cc *commandContext, req organize.CorrectionRequest, args []string) error {
	ctx := cmd.Context()
	svc, err := cc.openServices(ctx, cmd, args, serviceNeeds{engine: true})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svc)

	result, err := svc.engine.OrganizeWithCorrection(ctx, req)
	if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderResult(result))
	}
	return err
}

// renderResult shows every field of one result as a two column table.
func renderResult(r *organize.Result) string {
	rows := [][]string{
		{"ID", r.ID},
		{"Date", r.Date.Local().Format("2006-01-02 15:04:05")},
		{"Source", r.OriginalPath},
		{"Size", formatSize(r.FileSize)},
		{"Series", r.ExtractedName},
		{"Season", formatOptional(r.ExtractedSeason)},
		{"Episode", formatEpisode(r.ExtractedEpisode, r.ExtractedEndingEpisode)},
		{"Target", r.TargetPath},
		{"Status", displayStatus(r.Status)},
	}
	if r.StatusMessage != "" {
		rows = append(rows, []string{"Message", r.StatusMessage})
	}
	dups := append([]string(nil), r.DuplicatePaths...)
	sort.Strings(dups)
	for i, d := range dups {
		label := ""
		if i == 0 {
			label = "Duplicates"
		}
		rows = append(rows, []string{label, d})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func formatOptional(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func formatEpisode(start, end *int) string {
	if start == nil {
		return "-"
	}
	if end == nil || *end == *start {
		return fmt.Sprintf("%d", *start)
	}
	return fmt.Sprintf("%d-%d", *start, *end)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
