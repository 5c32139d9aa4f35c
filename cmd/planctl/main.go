// Command planctl runs plan and achievement maintenance against the
// configured store: regenerating monthly plans, cutting daily slices and
// re-checking achievements.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"fithero/planner/internal/app"
	"fithero/planner/internal/config"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/service"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

// opener builds the application for a command run. Tests swap it for an
// in-memory one.
type opener func(ctx context.Context, configDir string) (*app.App, error)

func openFromConfig(ctx context.Context, configDir string) (*app.App, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return app.New(ctx, cfg, log, app.Options{})
}

func main() {
	if err := newRootCmd(openFromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:          "planctl",
		Short:        "Maintain FitHero monthly plans, daily slices and achievements",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.yaml")

	// withApp opens the application, runs fn and closes it again.
	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := open(ctx, configDir)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := fn(ctx, a)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	root.AddCommand(
		newRegenerateCmd(withApp),
		newRenewCmd(withApp),
		newPopulateCmd(withApp),
		newAchievementsCmd(withApp),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error

func newRegenerateCmd(withApp runner) *cobra.Command {
	var (
		player, planType string
		month, year      int
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Retire a player's monthly plan and generate it again",
		Long: `Retire the current monthly plan for a player and period, then run the
full generation pipeline again. Depending on plans.regeneration_mode the old
rows are kept as SUPERSEDED or deleted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			playerID, err := parsePlayer(player)
			if err != nil {
				return err
			}
			t, err := domain.ParsePlanType(planType)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Plans.Regenerate(ctx, service.GenerateRequest{
					PlayerID: playerID,
					Month:    month,
					Year:     year,
					Type:     t,
				})
			})
		},
	}
	now := time.Now().UTC()
	cmd.Flags().StringVar(&player, "player", "", "player ObjectID (hex)")
	cmd.Flags().StringVar(&planType, "type", "", "plan type: workout or meal")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month (1-12)")
	cmd.Flags().IntVar(&year, "year", now.Year(), "year")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newRenewCmd(withApp runner) *cobra.Command {
	var (
		player      string
		month, year int
	)
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Generate a month's missing plans for recently active players",
		Long: `Generate the workout and meal plans a month is missing, for every player
active within plans.renewal_active_window, or for one player with --player.
Players who already hold both plans are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if player == "" {
				return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
					return a.Renewal.RenewAll(ctx, month, year)
				})
			}
			playerID, err := parsePlayer(player)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				renewed, err := a.Renewal.RenewPlayer(ctx, playerID, month, year)
				return map[string]any{"playerId": playerID.Hex(), "renewed": renewed}, err
			})
		},
	}
	coverage := &cobra.Command{
		Use:   "coverage",
		Short: "Count the month's plans against the player base",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Renewal.Coverage(ctx, month, year)
			})
		},
	}
	cmd.AddCommand(coverage)

	// Renewal targets next month unless told otherwise.
	now := time.Now().UTC()
	next := now.AddDate(0, 1, 1-now.Day())
	cmd.PersistentFlags().IntVar(&month, "month", int(next.Month()), "month (1-12)")
	cmd.PersistentFlags().IntVar(&year, "year", next.Year(), "year")
	cmd.Flags().StringVar(&player, "player", "", "renew a single player ObjectID (hex)")
	return cmd
}

func newPopulateCmd(withApp runner) *cobra.Command {
	var (
		player, planType, date, start, end string
		all                                bool
	)
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Cut daily slices out of the active monthly plans",
		Long: `With --date, populate the slice for one day (both plan types unless
--type is given). With --start and --end, delete the slices in that range
and cut them again from the current plans. With --all, populate the day for
every player holding an ACTIVE plan for its month.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := domain.NormalizeDate(time.Now())
			if date != "" {
				d, err := parseDate("date", date)
				if err != nil {
					return err
				}
				day = d
			}

			if all {
				return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
					return a.Daily.PopulateAll(ctx, day)
				})
			}
			if player == "" {
				return errors.New("--player is required unless --all is set")
			}
			playerID, err := parsePlayer(player)
			if err != nil {
				return err
			}

			if start != "" || end != "" {
				from, err := parseDate("start", start)
				if err != nil {
					return err
				}
				to, err := parseDate("end", end)
				if err != nil {
					return err
				}
				return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
					return a.Daily.RegenerateRange(ctx, playerID, from, to)
				})
			}

			if planType == "" {
				return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
					return a.Daily.PopulateDay(ctx, playerID, day)
				})
			}
			t, err := domain.ParsePlanType(planType)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Daily.Populate(ctx, playerID, day, t)
			})
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player ObjectID (hex)")
	cmd.Flags().StringVar(&planType, "type", "", "plan type: workout or meal (default both)")
	cmd.Flags().StringVar(&date, "date", "", "day to populate, YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&start, "start", "", "first day of the range to re-cut, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day of the range to re-cut, YYYY-MM-DD")
	cmd.Flags().BoolVar(&all, "all", false, "populate the day for every player with an active plan")
	cmd.MarkFlagsRequiredTogether("start", "end")
	cmd.MarkFlagsMutuallyExclusive("date", "start")
	cmd.MarkFlagsMutuallyExclusive("all", "player")
	cmd.MarkFlagsMutuallyExclusive("all", "start")
	cmd.MarkFlagsMutuallyExclusive("all", "type")
	return cmd
}

func newAchievementsCmd(withApp runner) *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Inspect and recompute player achievements",
	}
	cmd.PersistentFlags().StringVar(&player, "player", "", "player ObjectID (hex)")
	_ = cmd.MarkPersistentFlagRequired("player")

	check := &cobra.Command{
		Use:   "check",
		Short: "Recompute progress and report newly unlocked achievements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			playerID, err := parsePlayer(player)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Achievements.CheckAndUpdate(ctx, playerID), nil
			})
		},
	}
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Show the achievement catalogue with the player's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			playerID, err := parsePlayer(player)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Achievements.Summary(ctx, playerID)
			})
		},
	}
	cmd.AddCommand(check, summary)
	return cmd
}

func parsePlayer(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("--player: %w", err)
	}
	return id, nil
}

func parseDate(flag, raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be formatted as YYYY-MM-DD: %w", flag, err)
	}
	return d, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
