package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"arena/internal/arena"
	cl "arena/internal/cli"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderMatches(list cl.MatchList) {
	accent.Printf("\n== MATCHES %s ==\n", list.Day)
	if len(list.Matches) == 0 {
		printInfo("No matches scheduled yet.")
		return
	}
	fmt.Printf("%-4s %-36s %-13s %-9s %-24s %-12s\n", "SLOT", "ID", "MODE", "STATUS", "CAST", "WINNER")
	for _, m := range list.Matches {
		cast := "?"
		if snaps, err := m.Cast(); err == nil {
			cast = snaps[0].ActorID + " vs " + snaps[1].ActorID
		}
		winner := "-"
		if m.Meta.Resolution != nil {
			winner = m.Meta.Resolution.WinnerID
		}
		fmt.Printf("%-4d %-36s %-13s %-9s %-24s %-12s\n",
			m.Slot,
			m.ID,
			m.Mode,
			colorizeStatus(m.Status),
			truncate(cast, 24),
			truncate(winner, 12),
		)
	}
	fmt.Println()
}

func renderMatchDetail(d arena.MatchDetail) {
	m := d.Match
	accent.Printf("\n== MATCH %s ==\n", m.ID)
	fmt.Printf("Season:  %s\n", m.SeasonCode)
	fmt.Printf("Day:     %s (slot %d)\n", m.Day, m.Slot)
	fmt.Printf("Mode:    %s\n", m.Mode)
	fmt.Printf("Status:  %s\n", colorizeStatus(m.Status))
	fmt.Printf("Ends at: %s\n", m.EndsAt.Local().Format("2006-01-02 15:04"))
	if c := m.Meta.Creation; c != nil {
		fmt.Printf("Wager:   %s coins (fee %d%%)\n", comma(c.Stake.Wager), c.Stake.FeePct)
		if c.Revenge {
			warn.Println("Revenge match")
		}
	}

	if len(d.Participants) > 0 {
		fmt.Println()
		accent.Println("Participants")
		fmt.Printf("%-14s %-8s %8s %10s %10s %14s\n", "ACTOR", "OUTCOME", "SCORE", "RATING", "DELTA", "NET COINS")
		for _, p := range d.Participants {
			fmt.Printf("%-14s %-8s %8.2f %10d %10s %14s\n",
				truncate(p.ActorID, 14),
				p.Outcome,
				p.Score,
				p.RatingAfter,
				colorizeInt(int64(p.RatingDelta)),
				colorizeInt(p.NetCoins),
			)
		}
	}

	res := m.Meta.Resolution
	if res == nil {
		fmt.Println()
		return
	}
	fmt.Println()
	accent.Println("Result")
	fmt.Printf("Winner:  %s\n", success.Sprint(res.WinnerID))
	if res.TieBreak != "" {
		fmt.Printf("Tie:     broken by %s\n", res.TieBreak)
	}
	st := res.Settlement
	if st.Forfeit {
		fmt.Println("Stake:   forfeit, no coins moved")
	} else {
		fmt.Printf("Stake:   %s  fee %s  prize %s  bonus %s\n", comma(st.Stake), comma(st.Fee), comma(st.Prize), comma(st.Bonus))
	}
	if res.RematchApplied {
		fmt.Println("Rematch multiplier applied")
	}
	for _, se := range res.SideEffects {
		if !se.OK {
			printWarn(fmt.Sprintf("side effect %s failed: %s", se.Name, se.Err))
		}
	}

	if n := res.Narrative; n != nil {
		fmt.Println()
		accent.Printf("Narrative (%s)\n", n.Gap)
		if len(n.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(n.Tags, ", "))
		}
		fmt.Printf("%-6s %8s %8s %8s %8s %8s  %s\n", "ROUND", "A", "B", "CUM A", "CUM B", "P(A)", "")
		for _, r := range n.Rounds {
			fmt.Printf("%-6d %8.2f %8.2f %8.2f %8.2f %7.0f%%  %s\n",
				r.Index, r.PartA, r.PartB, r.CumA, r.CumB, r.WinProbA*100, r.Label)
		}
		for _, h := range n.Highlights {
			fmt.Printf("  * %s\n", h)
		}
	}
	fmt.Println()
}

func renderLeaderboard(rows []arena.LeaderboardRow, season string) {
	title := "LEADERBOARD"
	if strings.TrimSpace(season) != "" {
		title += " " + strings.ToUpper(season)
	}
	accent.Printf("\n== %s ==\n", title)
	if len(rows) == 0 {
		printInfo("No rated actors this season yet.")
		return
	}
	fmt.Printf("%-6s %-18s %8s %6s %6s %8s\n", "RANK", "ACTOR", "RATING", "WINS", "LOSS", "STREAK")
	for _, row := range rows {
		fmt.Printf("%-6d %-18s %8d %6d %6d %8s\n",
			row.Rank,
			truncate(row.ActorID, 18),
			row.Rating,
			row.Wins,
			row.Losses,
			colorizeInt(int64(row.Streak)),
		)
	}
	fmt.Println()
}

func renderHistory(actorID string, rows []arena.HistoryRow) {
	accent.Printf("\n== HISTORY %s ==\n", actorID)
	if len(rows) == 0 {
		printInfo("No resolved matches yet.")
		return
	}
	fmt.Printf("%-10s %-4s %-13s %-14s %-8s %8s %12s\n", "DAY", "SLOT", "MODE", "OPPONENT", "OUTCOME", "RATING", "COINS")
	for _, h := range rows {
		fmt.Printf("%-10s %-4d %-13s %-14s %-8s %8s %12s\n",
			h.Day,
			h.Slot,
			h.Mode,
			truncate(h.OpponentID, 14),
			colorizeOutcome(h.Outcome),
			colorizeInt(int64(h.RatingDelta)),
			colorizeInt(h.NetCoins),
		)
	}
	fmt.Println()
}

func renderStats(s arena.ActorStats) {
	accent.Printf("\n== %s (%s) ==\n", s.ActorID, s.Season)
	fmt.Printf("Rating:     %d\n", s.Entry.Rating)
	fmt.Printf("Record:     %d-%d\n", s.Entry.Wins, s.Entry.Losses)
	fmt.Printf("Streak:     %s\n", colorizeInt(int64(s.Entry.Streak)))
	fmt.Printf("Matches:    %d (%d forfeits)\n", s.Matches, s.Forfeits)
	fmt.Printf("Net coins:  %s\n", colorizeInt(s.NetCoins))
	fmt.Printf("Fees paid:  %s\n", comma(s.FeeBurned))
	fmt.Println()
}

func renderTick(t arena.TickResult) {
	accent.Printf("\n== TICK %s (%s) ==\n", t.Day, t.Season)
	fmt.Printf("Created:        %d\n", t.Created)
	fmt.Printf("Skipped:        %d\n", t.Skipped)
	fmt.Printf("Resolved (due): %d\n", t.ResolvedLive)
	fmt.Printf("Resolved (now): %d\n", t.ResolvedNow)
	if t.Failed > 0 {
		printError(fmt.Sprintf("Failed:         %d", t.Failed))
	}
	fmt.Println()
}

func colorizeStatus(s arena.Status) string {
	if s == arena.StatusResolved {
		return success.Sprint(string(s))
	}
	return warn.Sprint(string(s))
}

func colorizeOutcome(o arena.Outcome) string {
	switch o {
	case arena.OutcomeWin:
		return success.Sprint(string(o))
	case arena.OutcomeLose:
		return danger.Sprint(string(o))
	default:
		return neutral.Sprint(string(o))
	}
}

func colorizeInt(v int64) string {
	text := strconv.FormatInt(v, 10)
	switch {
	case v > 0:
		return success.Sprint("+" + comma(v))
	case v < 0:
		return danger.Sprint("-" + comma(-v))
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
