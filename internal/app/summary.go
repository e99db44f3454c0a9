package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/decision"
	"go.trai.ch/reuse/internal/engine/scheduler"
	"go.trai.ch/reuse/internal/ui/output"
	"go.trai.ch/reuse/internal/ui/style"
)

// slowestShown is the number of unit timings listed after the summary.
const slowestShown = 3

func (a *App) printSummary(report *scheduler.Report) {
	out := output.New(a.out)
	lipgloss.SetColorProfile(out.Profile)

	width := 0
	for _, id := range report.Planned {
		width = max(width, len(id.String()))
	}

	var built, fetched, failed int
	for _, id := range report.Planned {
		res, ok := report.Results[id]
		if !ok {
			continue
		}
		switch {
		case res.Outcome == domain.OutcomeBuiltLocally:
			built++
		case res.Outcome.Fetched():
			fetched++
		default:
			failed++
		}
		_, _ = fmt.Fprintln(out, summaryLine(res, width))
	}

	_, _ = fmt.Fprintln(out, style.Muted.Render(fmt.Sprintf(
		"%d units: %d built, %d fetched, %d failed",
		len(report.Results), built, fetched, failed,
	)))

	timings := a.summary.Timings()
	if len(timings) > slowestShown {
		timings = timings[:slowestShown]
	}
	for _, t := range timings {
		_, _ = fmt.Fprintln(out, style.Muted.Render(fmt.Sprintf(
			"  %s %-*s %s", style.Tilde, width, t.Unit, round(t.Duration),
		)))
	}
}

func summaryLine(res *decision.UnitResult, width int) string {
	name := fmt.Sprintf("%-*s", width, res.Unit.String())
	elapsed := style.Muted.Render(round(res.Elapsed).String())

	switch {
	case res.Outcome == domain.OutcomeBuiltLocally:
		return strings.Join([]string{style.Built.Render(style.Check), name, style.Built.Render("built"), elapsed}, " ")
	case res.Outcome.Fetched():
		label := "fetched (" + strings.ReplaceAll(string(res.Tier), "_", "-") + ")"
		return strings.Join([]string{style.Fetched.Render(style.Check), name, style.Fetched.Render(label), elapsed}, " ")
	default:
		label := "failed"
		if res.Tier != domain.TierBuild {
			label = "skipped"
		}
		return strings.Join([]string{style.Failed.Render(style.Cross), name, style.Failed.Render(label)}, " ")
	}
}

func round(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d.Round(time.Microsecond)
	}
	return d.Round(time.Millisecond)
}
