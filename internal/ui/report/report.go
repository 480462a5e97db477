// Package report renders engine snapshots for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/streak"
	"github.com/harshilgor/testtaker-sub001/internal/ui/theme"
)

// BarWidth is the width of quest progress bars in cells.
const BarWidth = 12

// Snapshot writes the full report for a user: header, streak, mastery and
// quests.
func Snapshot(w io.Writer, s reconcile.Snapshot, now time.Time) {
	title := theme.Title.Render("testtaker") + "  " + theme.Subtitle.Render(s.UserID)
	lipgloss.Fprintln(w, title)
	lipgloss.Fprintln(w, statusLine(s))
	lipgloss.Fprintln(w)
	Streak(w, s.Streak)
	lipgloss.Fprintln(w)
	Mastery(w, s.Mastery)
	lipgloss.Fprintln(w)
	Quests(w, s.Quests, now)
}

func statusLine(s reconcile.Snapshot) string {
	parts := []string{theme.Body.Render(fmt.Sprintf("%d points", s.Points))}
	if s.FetchedAt != nil {
		parts = append(parts, theme.Hint.Render("synced "+s.FetchedAt.Local().Format("2006-01-02 15:04")))
	}
	if s.FromCache {
		parts = append(parts, theme.Notice.Render("cached"))
	}
	if s.Stale {
		parts = append(parts, theme.Notice.Render("stale"))
	}
	if s.Degraded {
		parts = append(parts, theme.Bad.Render("offline: writes queued"))
	}
	if s.Pending > 0 {
		parts = append(parts, theme.Hint.Render(fmt.Sprintf("%d pending", s.Pending)))
	}
	return strings.Join(parts, theme.Hint.Render(" · "))
}

// Streak writes the current and longest streak.
func Streak(w io.Writer, s streak.State) {
	cur := theme.Body.Render(fmt.Sprintf("%d day", s.Current) + plural(s.Current))
	if s.Current > 0 {
		cur = theme.Good.Render(fmt.Sprintf("%d day", s.Current) + plural(s.Current))
	}
	lipgloss.Fprintf(w, "%s %s  %s\n",
		theme.Header.UnsetPadding().Render("Streak"),
		cur,
		theme.Hint.Render(fmt.Sprintf("(longest %d)", s.Longest)))
}

// Mastery writes one row per skill.
func Mastery(w io.Writer, states []mastery.SkillMasteryState) {
	if len(states) == 0 {
		lipgloss.Fprintln(w, theme.Hint.Render("No practice recorded yet."))
		return
	}
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		last := "-"
		if s.LastActivityAt != nil {
			last = s.LastActivityAt.Local().Format("2006-01-02")
		}
		rows = append(rows, []string{
			s.Skill,
			string(s.Subject),
			strconv.Itoa(s.DisplayXP),
			string(s.Tier),
			accuracy(s.Correct, s.Attempts),
			strconv.Itoa(s.Attempts),
			last,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		Headers("Skill", "Subject", "XP", "Tier", "Accuracy", "Attempts", "Last active").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header
			}
			if col == 3 {
				return theme.Cell.Foreground(theme.TierColor(states[row].Tier)).Bold(true)
			}
			return theme.Cell
		})
	lipgloss.Fprintln(w, t.String())
}

// Quests writes one row per quest with a progress bar.
func Quests(w io.Writer, qs []quest.Quest, now time.Time) {
	if len(qs) == 0 {
		lipgloss.Fprintln(w, theme.Hint.Render("No quests."))
		return
	}
	statuses := make([]quest.Status, len(qs))
	rows := make([][]string, 0, len(qs))
	for i, q := range qs {
		statuses[i] = q.Status(now)
		rows = append(rows, []string{
			string(statuses[i]),
			q.Title,
			fmt.Sprintf("%s %d/%d", ProgressBar(q.ProgressPct(), BarWidth), q.Progress, q.TargetCount),
			strconv.Itoa(q.RewardPoints),
			Until(q.ExpiresAt, now),
			shortID(q.ID),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		Headers("Status", "Quest", "Progress", "Reward", "Expires", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header
			}
			if col == 0 {
				return theme.StatusStyle(statuses[row]).Padding(0, 1)
			}
			return theme.Cell
		})
	lipgloss.Fprintln(w, t.String())
}

// ProgressBar renders pct (0..1) as a bar of width cells.
func ProgressBar(pct float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(float64(width) * pct)
	filled = max(0, min(filled, width))
	return theme.ProgressFilled.Render(strings.Repeat("█", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat("░", width-filled))
}

// Until formats the time left before t.
func Until(t, now time.Time) string {
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "expired"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func accuracy(correct, attempts int) string {
	if attempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", correct*100/attempts)
}

// shortID trims quest ids for display. Claims accept any unique prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
