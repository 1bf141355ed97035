package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	cl "arena/internal/cli"
	"arena/internal/config"
	"arena/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	profile := cl.ResolveProfile(config.LoadCLIFromEnv())
	apiBase := profile.APIBaseURL

	root := &cobra.Command{
		Use:          "arenactl",
		Short:        "Arena match engine client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "arena API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newTodayCmd(&apiBase),
		newMatchCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newStatsCmd(&apiBase),
		newRematchCmd(&apiBase),
		newSyncCmd(&apiBase),
		newTickCmd(&apiBase, profile.OperatorToken),
		newResolveCmd(&apiBase, profile.OperatorToken),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func operatorToken(token string) (string, error) {
	if t := strings.TrimSpace(token); t != "" {
		return t, nil
	}
	return "", cl.ErrNoSession
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an operator token for tick and resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptRequired("Operator token")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).Health(ctx); err != nil {
				printWarn(fmt.Sprintf("API at %s is not reachable right now: %v", *apiBase, err))
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: *apiBase, OperatorToken: token}); err != nil {
				return err
			}
			printSuccess("Operator session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved operator session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newTodayCmd(apiBase *string) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "List the matches scheduled for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Matches(ctx, strings.TrimSpace(day))
			if err != nil {
				return err
			}
			renderMatches(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day key (YYYY-MM-DD), defaults to today in UTC")
	return cmd
}

func newMatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "match <id>",
		Short: "Show a match with its narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Match(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			renderMatchDetail(out)
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var (
		season string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the season leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx, strings.TrimSpace(season), limit)
			if err != nil {
				return err
			}
			renderLeaderboard(rows, season)
			return nil
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "season code like S2024W10, defaults to current")
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <actor>",
		Short: "Show an actor's recent matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).History(ctx, strings.TrimSpace(args[0]), limit)
			if err != nil {
				return err
			}
			renderHistory(args[0], rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func newStatsCmd(apiBase *string) *cobra.Command {
	var season string
	cmd := &cobra.Command{
		Use:   "stats <actor>",
		Short: "Show an actor's season totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Stats(ctx, strings.TrimSpace(args[0]), strings.TrimSpace(season))
			if err != nil {
				return err
			}
			renderStats(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "season code, defaults to current")
	return cmd
}

func newRematchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rematch <requester> <target>",
		Short: "Ask for a revenge match against target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester := strings.TrimSpace(args[0])
			target := strings.TrimSpace(args[1])
			idem := uuid.NewString()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).RequestRematch(ctx, requester, target, idem)
			if err != nil {
				if !cl.Unreachable(err) {
					return err
				}
				if qerr := syncq.Push(syncq.Command{
					Method:         http.MethodPost,
					Path:           "/v1/rematches",
					Body:           cl.RematchBody(requester, target),
					IdempotencyKey: idem,
					QueuedAt:       time.Now().UTC(),
				}); qerr != nil {
					return errors.Join(err, qerr)
				}
				printWarn("API unreachable. Rematch request queued, run `arenactl sync` later.")
				return nil
			}
			if out.Created {
				printSuccess(fmt.Sprintf("Rematch requested: %s wants %s (expires %s)",
					out.Request.RequesterID, out.Request.TargetID, out.Request.ExpiresAt.Local().Format("2006-01-02 15:04")))
				return nil
			}
			printInfo(fmt.Sprintf("A rematch request from %s to %s is already pending.", out.Request.RequesterID, out.Request.TargetID))
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay requests queued while the API was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			res, err := syncq.Drain(ctx, func(ctx context.Context, q syncq.Command) error {
				_, err := client.Do(ctx, q.Method, q.Path, "", q.Body, q.IdempotencyKey)
				return err
			}, cl.Permanent)
			for _, r := range res.Rejected {
				printError(fmt.Sprintf("Dropped %s %s: %v", r.Command.Method, r.Command.Path, r.Err))
			}
			if err != nil {
				printWarn(fmt.Sprintf("Sync stopped: %v", err))
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", res.Sent, len(res.Rejected), res.Pending))
			return nil
		},
	}
}

func newTickCmd(apiBase *string, profileToken string) *cobra.Command {
	var (
		day     string
		n       int
		resolve bool
	)
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduling tick (operator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := operatorToken(profileToken)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			out, err := newClient(apiBase).Tick(ctx, token, strings.TrimSpace(day), n, resolve)
			if err != nil {
				return err
			}
			renderTick(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day key (YYYY-MM-DD), defaults to today in UTC")
	cmd.Flags().IntVar(&n, "matches", 0, "matches per day, 0 uses the server default")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve the new matches immediately")
	return cmd
}

func newResolveCmd(apiBase *string, profileToken string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Force-resolve a live match (operator)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := operatorToken(profileToken)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Resolve(ctx, token, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			switch {
			case out.AlreadyResolved:
				printInfo(fmt.Sprintf("Match %s was already resolved (winner %s).", out.MatchID, out.WinnerID))
			case out.Backfilled:
				printWarn(fmt.Sprintf("Match %s had partial rows; resolution was backfilled (winner %s).", out.MatchID, out.WinnerID))
			default:
				printSuccess(fmt.Sprintf("Match %s resolved. Winner: %s", out.MatchID, out.WinnerID))
			}
			return nil
		},
	}
}
