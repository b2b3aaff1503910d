package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/derekprior/podsched/internal/bracket"
	"github.com/derekprior/podsched/internal/config"
	"github.com/derekprior/podsched/internal/excel"
	"github.com/derekprior/podsched/internal/metrics"
	"github.com/derekprior/podsched/internal/pod"
	"github.com/derekprior/podsched/internal/schedule"
	"github.com/derekprior/podsched/internal/validator"
)

const defaultConfigFile = "config.yaml"

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "podsched",
		Short: "Pod match scheduler and playoff bracket generator",
	}

	var configFile string
	var verbose bool
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: config.yaml in current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log search progress to stderr")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter config.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate and validate group-stage schedules",
	}

	var gen generateOptions
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate a schedule from a config file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			gen.logger = newLogger(verbose)
			return runGenerate(configPath, gen)
		},
	}
	generateCmd.Flags().StringVarP(&gen.output, "output", "o", "schedule.xlsx", "Output Excel file path")
	generateCmd.Flags().StringVar(&gen.strategy, "strategy", "ladder", "Search strategy: ladder or beam")
	generateCmd.Flags().StringVar(&gen.metricsFile, "metrics-file", "", "Write strategy metrics in Prometheus text format to this file")

	validateCmd := &cobra.Command{
		Use:          "validate <schedule.xlsx>",
		Short:        "Validate a schedule against config rules",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runValidate(configPath, args[0])
		},
	}

	bracketCmd := &cobra.Command{
		Use:   "bracket",
		Short: "Build the playoff bracket from group standings",
	}

	var bracketOutput, bracketInto, bracketMetrics string
	bracketGenerateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate a single-elimination bracket from the standings in the config",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runBracket(configPath, bracketOutput, bracketInto, bracketMetrics)
		},
	}
	bracketGenerateCmd.Flags().StringVarP(&bracketOutput, "output", "o", "bracket.xlsx", "Output Excel file path")
	bracketGenerateCmd.Flags().StringVar(&bracketInto, "into", "", "Add the bracket sheet to an existing schedule workbook instead")
	bracketGenerateCmd.Flags().StringVar(&bracketMetrics, "metrics-file", "", "Write bracket metrics in Prometheus text format to this file")

	scheduleCmd.AddCommand(generateCmd, validateCmd)
	bracketCmd.AddCommand(bracketGenerateCmd)
	rootCmd.AddCommand(initCmd, scheduleCmd, bracketCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const configTemplate = `# Tournament Configuration
# ========================
# This file defines the group stage and playoff parameters.

name: Summer Cup

# Every match takes this many minutes. A team needs at least one full match
# duration of rest between its matches on the same day.
match_duration: 60

# Courts available for every time slot. Names appear as columns in the
# schedule workbook.
courts: [North, South]

# Playing days and the hours matches may occupy on each. Times use 24-hour
# format (e.g., "17:45" = 5:45 PM).
days:
  - date: "2026-06-06"
    start: "09:00"
    end: "18:00"
  - date: "2026-06-07"
    start: "09:00"
    end: "14:00"

# Optional availability windows. When present, a slot is only used if it lies
# completely inside one of them.
# availability:
#   - date: "2026-06-07"
#     start: "10:00"
#     end: "14:00"

# Times a team cannot play. For the winners and losers games of a 4-team
# group, every first-round team's restrictions apply.
restrictions:
  - team: Hawks
    date: "2026-06-06"
    start: "09:00"
    end: "11:00"
    reason: "Travel"

# Groups of 3 or 4 teams. A 3-team group plays a round robin. A 4-team group
# plays 1st vs 4th and 2nd vs 3rd, then a winners game and a losers game.
# Team names must be unique across all groups. Group order (first = A) is
# used to seed the playoffs.
groups:
  - name: A
    teams: [Hawks, Owls, Crows]
  - name: B
    teams: [Bears, Wolves, Foxes]
  - name: C
    teams: [Sharks, Rays, Eels, Squid]

# Final group standings, best first. The top three of each group qualify
# for the playoff bracket. Fill these in after the group stage.
# standings:
#   - group: A
#     teams: [Owls, Hawks, Crows]

# Search tuning. All values are optional.
scheduler:
  seed: 42
  random_retries: 5
  # strict:
  #   beam_width: 3
  #   max_depth: 200
  # relaxed:
  #   beam_width: 6
  #   max_depth: 2000
  # beam:
  #   beam_width: 10
  #   max_candidates: 8
  #   max_enumeration: 20000
`

type generateOptions struct {
	output      string
	strategy    string
	metricsFile string
	logger      *slog.Logger
}

func runGenerate(configPath string, gen generateOptions) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	matches, err := pod.GenerateMatches(cfg.PodGroups())
	if err != nil {
		return err
	}
	req := cfg.Request()
	slots := schedule.GenerateSlots(req.Days, req.Duration, len(req.Courts), req.Availability)

	rec := metrics.New()
	opts := cfg.Options()
	opts.Logger = gen.logger
	opts.Recorder = rec

	fmt.Printf("Scheduling %d matches into %d available slots...\n", len(matches), len(slots))

	var result *schedule.Result
	switch gen.strategy {
	case "ladder":
		result, err = schedule.Schedule(matches, req, opts)
	case "beam":
		result, err = schedule.ScheduleBeam(matches, req, opts)
	default:
		return fmt.Errorf("unknown strategy %q (want ladder or beam)", gen.strategy)
	}
	if gen.metricsFile != "" {
		defer func() {
			if werr := rec.WriteFile(gen.metricsFile); werr != nil {
				fmt.Fprintf(os.Stderr, "⚠ %s\n", werr)
			}
		}()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", err)
		return fmt.Errorf("schedule failed")
	}
	rec.Scheduled(len(result.Assignments))

	fmt.Printf("✓ All %d matches scheduled (%s)\n", len(result.Assignments), result.Strategy)
	if result.Relaxations > 0 {
		fmt.Printf("⚠ %d group order rule(s) relaxed; check winners/losers games\n", result.Relaxations)
	}

	fmt.Println("\nPer Team Matches:")
	fmt.Printf("  %-15s %7s %6s\n", "Team", "Matches", "First")
	counts := make(map[string]int)
	first := make(map[string]schedule.Assignment)
	for _, a := range result.Assignments {
		for _, team := range a.Match.Teams() {
			counts[team]++
			if f, ok := first[team]; !ok || a.Slot.Date.Before(f.Slot.Date) ||
				(a.Slot.Date.Equal(f.Slot.Date) && a.Slot.Start < f.Slot.Start) {
				first[team] = a
			}
		}
	}
	for _, team := range cfg.AllTeams() {
		start := "-"
		if a, ok := first[team]; ok {
			start = a.Slot.Date.Format("01/02") + " " + a.Slot.Start.String()
		}
		fmt.Printf("  %-15s %7d %6s\n", team, counts[team], start)
	}

	f, err := excel.Generate(cfg, result, slots)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}

	if err := f.SaveAs(gen.output); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}

	fmt.Printf("\n✓ Schedule saved to %s\n", gen.output)
	return nil
}

func runValidate(configPath, schedulePath string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	violations, err := validator.Validate(cfg, schedulePath)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	errors := 0
	warnings := 0
	for _, v := range violations {
		switch v.Type {
		case "error":
			errors++
			fmt.Printf("✗ Rule violation: %s\n", v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ Warning: %s\n", v.Message)
		}
	}

	fmt.Printf("\nValidation complete: %d rule violations, %d warnings\n", errors, warnings)

	// Regenerate team sheets from the schedule sheet
	if err := excel.UpdateTeamSheets(schedulePath, cfg); err != nil {
		return fmt.Errorf("updating team sheets: %w", err)
	}
	fmt.Printf("✓ Team sheets updated in %s\n", schedulePath)

	if errors > 0 {
		return fmt.Errorf("%d constraint violations found", errors)
	}
	return nil
}

func runBracket(configPath, outputPath, intoPath, metricsFile string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Standings) == 0 {
		return fmt.Errorf("no standings in %s; fill them in after the group stage", configPath)
	}

	ranked, err := bracket.BuildGlobalRanking(cfg.Qualified(), cfg.GroupOrder())
	if err != nil {
		return err
	}
	ids := make([]string, len(ranked))
	for i, t := range ranked {
		ids[i] = t.TeamID
	}
	matches, err := bracket.Generate(ids)
	if err != nil {
		return err
	}
	if metricsFile != "" {
		rec := metrics.New()
		rec.Bracket(len(matches))
		if err := rec.WriteFile(metricsFile); err != nil {
			return err
		}
	}

	fr := bracket.CalculateFirstRound(len(ids))
	fmt.Printf("Seeding %d qualified teams:\n", len(ranked))
	for i, t := range ranked {
		marker := ""
		if i < fr.TeamsWithBye && !fr.Direct {
			marker = " (bye)"
		}
		fmt.Printf("  %2d. %-15s group %s, place %d%s\n", i+1, t.TeamID, t.GroupID, t.Position, marker)
	}

	fmt.Println()
	for _, m := range matches {
		fmt.Printf("  %-14s %d: %s vs %s\n", m.Round, m.Position, m.Home, m.Away)
	}

	if intoPath != "" {
		f, err := excelize.OpenFile(intoPath)
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()
		if err := excel.WriteBracket(f, matches); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return fmt.Errorf("saving file: %w", err)
		}
		fmt.Printf("\n✓ Bracket added to %s\n", intoPath)
		return nil
	}

	f, err := excel.GenerateBracket(matches)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	fmt.Printf("\n✓ Bracket saved to %s\n", outputPath)
	return nil
}
