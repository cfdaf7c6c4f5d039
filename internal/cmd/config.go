package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/fsutil"
	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/setup"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const maskedSecret = "********"

func newConfigCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(cc),
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := cc.ensureConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := cc.ensureConfig()
				if err != nil {
					return err
				}
				data, err := maskedJSON(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "tokens",
			Short: "List the naming template tokens and preview the configured patterns",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := cc.ensureConfig()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Token", "Meaning"}, templateTokens, nil))
				fmt.Fprintln(out, renderTable([]string{"Pattern", "Template", "Example"}, previewPatterns(cfg.TV), nil))
				return nil
			},
		},
		&cobra.Command{
			Use:   "providers",
			Short: "List the metadata providers and whether they are enabled",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := cc.ensureConfig()
				if err != nil {
					return err
				}
				registry, err := setup.LoadProviders(setup.Options{Settings: cfg.Providers, Logger: zerolog.Nop()})
				if err != nil {
					return err
				}
				var rows [][]string
				for _, name := range registry.List() {
					p, _ := registry.Get(name)
					enabled := "no"
					if registry.IsEnabled(name) {
						enabled = "yes"
					}
					rows = append(rows, []string{name, enabled, strconv.Itoa(p.Capabilities().Priority), schemaFields(p.ConfigSchema()), p.Description()})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Enabled", "Priority", "Settings", "Description"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight}))
				return nil
			},
		},
		newConfigAddLibraryCommand(cc),
	)
	return cmd
}

func newConfigInitCommand(cc *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cc.opts.configPath
			if path == "" {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file %s already exists, use --force to replace it", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.DefaultConfig()
			cfg.SetPath(path)
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")
	return cmd
}

func newConfigAddLibraryCommand(cc *commandContext) *cobra.Command {
	var makeDefault bool
	cmd := &cobra.Command{
		Use:   "add-library <path>",
		Short: "Add a TV library folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				return fmt.Errorf("%s is not a directory", path)
			}

			if !slices.Contains(cfg.TV.LibraryPaths, path) {
				cfg.TV.LibraryPaths = append(cfg.TV.LibraryPaths, path)
			}
			if makeDefault || cfg.TV.DefaultSeriesLibraryPath == "" {
				cfg.TV.DefaultSeriesLibraryPath = path
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Library folders: %v\nNew series go to: %s\n",
				cfg.TV.LibraryPaths, cfg.TV.DefaultSeriesLibraryPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Create new series in this folder")
	return cmd
}

// maskedJSON renders cfg as indented JSON with API keys hidden.
// schemaFields lists a provider's settings, marking required ones with '*'.
func schemaFields(schema provider.ConfigSchema) string {
	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		name := f.Name
		if f.Required {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func maskedJSON(cfg *config.Config) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if providers, ok := doc["providers"].(map[string]any); ok {
		for _, key := range []string{"tmdb_api_key", "tvdb_api_key", "omdb_api_key"} {
			if v, _ := providers[key].(string); v != "" {
				providers[key] = maskedSecret
			}
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

var templateTokens = [][]string{
	{"%sn", "Series name"},
	{"%s.n", "Series name with dots for spaces"},
	{"%s_n", "Series name with underscores for spaces"},
	{"%sy", "Series premiere year (folders only)"},
	{"%fn", "Series folder: name and year. Episode file: original file name"},
	{"%s / %0s / %00s", "Season number, plain or zero padded to 2 or 3 digits"},
	{"%e / %0e / %00e", "Episode number, plain or zero padded"},
	{"%ed / %0ed / %00ed", "Ending episode number of a multi-episode file"},
	{"%en", "Episode title"},
	{"%e.n", "Episode title with dots for spaces"},
	{"%e_n", "Episode title with underscores for spaces"},
	{"%ext", "Original file extension"},
}

func previewPatterns(tv config.TVOptions) [][]string {
	fs := fsutil.NewOS(nil)
	r := organize.Renderer{Sanitize: fs.SanitizeFilename}
	values := organize.EpisodeFileValues{
		SourcePath: "/downloads/The.Office.S02E03.720p.mkv",
		SeriesName: "The Office",
		Season:     2,
		Episode:    3,
		Title:      "Office Olympics",
	}
	single, err := r.EpisodeFile(tv.EpisodeNamePattern, tv.MultiEpisodeNamePattern, values)
	if err != nil {
		single = err.Error()
	}
	end := 4
	values.EndingEpisode = &end
	multi, err := r.EpisodeFile(tv.EpisodeNamePattern, tv.MultiEpisodeNamePattern, values)
	if err != nil {
		multi = err.Error()
	}

	return [][]string{
		{"Series folder", tv.SeriesFolderPattern, r.SeriesFolder(tv.SeriesFolderPattern, organize.SeriesFolderValues{Name: "The Office", Year: 2005})},
		{"Season folder", tv.SeasonFolderPattern, r.SeasonFolder(tv.SeasonFolderPattern, 2)},
		{"Specials folder", tv.SeasonZeroFolderName, fs.SanitizeFilename(tv.SeasonZeroFolderName)},
		{"Episode", tv.EpisodeNamePattern, single},
		{"Multi-episode", tv.MultiEpisodeNamePattern, multi},
	}
}
