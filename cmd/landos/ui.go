package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/chat"
	"github.com/john-mcenroe/landos/internal/circle"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/results"
	"github.com/john-mcenroe/landos/internal/viewport"
)

// termUI renders panels, chat turns and result cards to a terminal. It
// implements the detail panel, the stats panel, the chat surface and the
// result card view.
type termUI struct {
	mu  sync.Mutex
	out io.Writer

	heading  *color.Color
	accent   *color.Color
	good     *color.Color
	bad      *color.Color
	muted    *color.Color
	userTint *color.Color

	statsOnce sync.Once
	statsDone chan struct{}

	// set after construction; ShowExplore feeds ranked results into it
	results *results.Controller
}

func newTermUI(out io.Writer) *termUI {
	return &termUI{
		out:      out,
		heading:  color.New(color.FgCyan, color.Bold),
		accent:   color.New(color.FgYellow),
		good:     color.New(color.FgGreen),
		bad:      color.New(color.FgRed),
		muted:    color.New(color.Faint),
		userTint: color.New(color.FgBlue, color.Bold),
		statsDone: make(chan struct{}),
	}
}

// BindResults attaches the result controller after wiring.
func (u *termUI) BindResults(rc *results.Controller) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results = rc
}

func (u *termUI) printf(format string, args ...any) {
	fmt.Fprintf(u.out, format, args...)
}

func (u *termUI) PrintMuted(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted.Fprintln(u.out, text)
}

func (u *termUI) PrintLayer(l viewport.Layer) {
	u.mu.Lock()
	defer u.mu.Unlock()
	state := u.muted.Sprint("off")
	if l.Active {
		state = u.good.Sprint("on ")
	}
	u.printf("  %s  %-28s %s (min zoom %.0f)\n", state, l.Name, l.DisplayName, l.MinZoom)
}

func (u *termUI) PrintSearchResult(r api.SearchResult) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printf("  %s  %s\n", u.accent.Sprintf("%9.5f,%9.5f", r.Lng, r.Lat), r.DisplayName)
}

// ShowDetail renders one labeled panel.
func (u *termUI) ShowDetail(title string, rows []detail.Row) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.heading.Fprintf(u.out, "\n%s\n", title)
	u.printf("%s\n", strings.Repeat("─", len(title)))
	for _, row := range rows {
		u.printRow(row)
	}
}

func (u *termUI) printRow(row detail.Row) {
	value := row.Value
	switch row.Tone {
	case detail.ToneAccent:
		value = u.accent.Sprint(value)
	case detail.ToneGood:
		value = u.good.Sprint(value)
	case detail.ToneBad:
		value = u.bad.Sprint(value)
	case detail.ToneMuted:
		value = u.muted.Sprint(value)
	}
	if row.Large {
		u.printf("  %-22s %s\n", row.Label, color.New(color.Bold).Sprint(value))
		return
	}
	u.printf("  %-22s %s\n", row.Label, value)
}

func (u *termUI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printf("\n")
}

// ShowStats renders the disc statistics panel.
func (u *termUI) ShowStats(view circle.StatsView) {
	u.mu.Lock()
	u.heading.Fprintf(u.out, "\nArea Statistics (%.0fm radius)\n", view.RadiusM)
	if view.Empty {
		u.muted.Fprintln(u.out, "  No sold properties in this area.")
	} else {
		for _, row := range view.Rows {
			u.printRow(row)
		}
		if len(view.Breakdown) > 0 {
			u.printf("\n  Property types\n")
			for _, b := range view.Breakdown {
				u.printBar(b)
			}
		}
		if len(view.DemographicRows) > 0 {
			u.printf("\n  Demographics\n")
			for _, row := range view.DemographicRows {
				u.printRow(row)
			}
		}
		if len(view.AgeBands) > 0 {
			u.printf("\n  Age profile\n")
			for _, b := range view.AgeBands {
				u.printBar(b)
			}
		}
	}
	u.mu.Unlock()

	u.statsOnce.Do(func() { close(u.statsDone) })
}

func (u *termUI) printBar(b circle.Breakdown) {
	width := b.Pct / 4
	bar := strings.Repeat("█", width)
	u.printf("  %-18s %3d (%2d%%) %s\n", b.Label, b.Count, b.Pct, u.accent.Sprint(bar))
}

// WaitForStats blocks until the first stats render or the context ends.
func (u *termUI) WaitForStats(ctx context.Context) {
	select {
	case <-u.statsDone:
	case <-ctx.Done():
	}
}

// chat.UI

func (u *termUI) ResetToStarter() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printf("\n")
	u.muted.Fprintln(u.out, "Ask about land, planning or sold prices, e.g. \"derelict sites near Dalkey\".")
}

func (u *termUI) ShowUserMessage(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.userTint.Fprint(u.out, "you> ")
	u.printf("%s\n", text)
}

func (u *termUI) ShowProgress(label string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted.Fprintf(u.out, "  %s\n", label)
}

func (u *termUI) ShowExplore(resp *api.ChatResponse) {
	u.mu.Lock()
	if resp.Title != "" {
		u.heading.Fprintf(u.out, "\n%s\n", resp.Title)
	}
	if resp.Summary != "" {
		u.printf("%s\n", resp.Summary)
	}
	if len(resp.QueryStats) > 0 {
		for k, v := range resp.QueryStats {
			u.muted.Fprintf(u.out, "  %s: %v\n", k, v)
		}
	}
	rc := u.results
	u.mu.Unlock()

	if rc != nil {
		rc.ShowResults(resp.Results)
	}
	u.showSuggestions(resp.FollowUps)
}

func (u *termUI) ShowClarify(resp *api.ChatResponse) {
	u.mu.Lock()
	u.printf("\n%s\n", resp.Message)
	u.mu.Unlock()
	u.showSuggestions(resp.Suggestions)
}

func (u *termUI) showSuggestions(suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted.Fprintln(u.out, "\n  Try:")
	for _, s := range suggestions {
		u.muted.Fprintf(u.out, "    · %s\n", s)
	}
}

func (u *termUI) ShowRaw(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printf("\n%s\n", text)
}

func (u *termUI) ShowError(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bad.Fprintf(u.out, "\n%s\n", text)
}

func (u *termUI) RestoreResults(rs []api.RankedResult) {
	u.mu.Lock()
	rc := u.results
	u.mu.Unlock()
	if rc != nil {
		rc.ShowResults(rs)
	}
}

// results.View

func (u *termUI) ShowCards(cards []results.Card) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, c := range cards {
		badge := u.scoreColor(c.Band).Sprintf("%3.0f", c.Score)
		u.printf("\n  %d. [%s] %s\n", c.Rank, badge, color.New(color.Bold).Sprint(c.Title))
		if c.Subtitle != "" {
			u.printf("     %s\n", c.Subtitle)
		}
		if c.Why != "" {
			u.muted.Fprintf(u.out, "     %s\n", c.Why)
		}
	}
}

func (u *termUI) scoreColor(band results.Band) *color.Color {
	switch band {
	case results.BandHigh:
		return u.good
	case results.BandMedium:
		return u.accent
	}
	return u.bad
}

func (u *termUI) SetActiveRank(rank int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted.Fprintf(u.out, "  → result %d\n", rank)
}

func (u *termUI) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printf("\n")
}

// PrintSessions renders the session picker list.
func (u *termUI) PrintSessions(sessions []chat.SessionSummary) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range sessions {
		marker := "  "
		if s.Active {
			marker = u.good.Sprint("* ")
		}
		u.printf("%s%s  %-48s %d msgs  %s\n",
			marker, s.ID[:8], s.Title, s.MessageCount, u.muted.Sprint(s.UpdatedAt.Format("02/01 15:04")))
	}
}
