package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// viewProbing renders the live probing screen.
func (m DoctorModel) viewProbing() string {
	var b strings.Builder

	b.WriteString("\n")
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		MiniLogo(),
		"  ",
		InfoStyle.Render(SignalOn),
		" ",
		InfoStyle.Render("CHECKING COLLECTORS"),
	)
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top, header))
	b.WriteString("\n\n")

	total := m.perProbe * len(m.targets)
	done := 0

	var lines []string
	for _, target := range m.targets {
		st := m.states[target]
		done += st.Sent

		mark := DimStyle.Render(SignalOff)
		detail := DimStyle.Render("waiting")
		switch {
		case st.Sent == 0:
		case st.Failed == st.Sent:
			mark = ErrorStyle.Render(CrossMark)
			detail = ErrorStyle.Render(st.LastErr)
		case st.Failed > 0:
			mark = WarningStyle.Render(WarningSign)
			detail = ValueStyle.Render(st.LastHit.Round(time.Millisecond).String())
		default:
			mark = SuccessStyle.Render(CheckMark)
			detail = ValueStyle.Render(st.LastHit.Round(time.Millisecond).String())
		}

		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center,
			mark,
			" ",
			LabelStyle.Render(fmt.Sprintf("%-12s", string(target))),
			DimStyle.Render(fmt.Sprintf("%2d/%2d  ", st.Sent, m.perProbe)),
			detail,
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		SubtitleStyle.Render("Endpoints"),
		"",
		lipgloss.JoinVertical(lipgloss.Left, lines...),
		"",
		Divider(44),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			LabelStyle.Render("Progress  "),
			ValueStyle.Render(fmt.Sprintf("%d/%d", done, total)),
			DimStyle.Render("  requests"),
		),
		lipgloss.JoinHorizontal(lipgloss.Center,
			LabelStyle.Render("Elapsed   "),
			ValueStyle.Render(time.Since(m.startTime).Round(time.Second).String()),
		),
	)

	box := ActiveBorderStyle.Width(56).Render(content)
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top, box))

	b.WriteString("\n\n")
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top,
		m.spin.View()+" "+DimStyle.Render("Probing collector endpoints...")))

	b.WriteString("\n\n")
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top,
		HelpStyle.Render("Q: abort")))

	return b.String()
}

// viewReport renders the final report screen.
func (m DoctorModel) viewReport() string {
	var b strings.Builder

	b.WriteString("\n")

	headline := SuccessStyle.Render(CheckMark) + " " + SuccessStyle.Render("CHECK COMPLETE")
	if m.err != nil {
		headline = ErrorStyle.Render(CrossMark) + " " + ErrorStyle.Render("CHECK ABORTED")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, MiniLogo(), "  ", headline)
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top, header))
	b.WriteString("\n\n")

	var sections []string
	for _, res := range m.results {
		mark := SuccessStyle.Render(CheckMark)
		verdict := SuccessStyle.Render("reachable")
		if !res.Reachable() {
			mark = ErrorStyle.Render(CrossMark)
			verdict = ErrorStyle.Render("unreachable")
		}

		section := lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Center,
				mark, " ",
				SubtitleStyle.Render(string(res.Target)),
				"  ",
				verdict,
			),
			DimStyle.Render("  "+res.URL),
			LabelStyle.Render("  responses  ")+ValueStyle.Render(formatStatuses(res.Statuses, res.Failed)),
		)
		if res.Reachable() {
			section = lipgloss.JoinVertical(lipgloss.Left,
				section,
				lipgloss.JoinHorizontal(lipgloss.Center,
					LabelStyle.Render("  p50 "),
					ValueStyle.Render(res.P50.Round(time.Millisecond).String()),
					LabelStyle.Render("   p95 "),
					ValueStyle.Render(res.P95.Round(time.Millisecond).String()),
					LabelStyle.Render("   p99 "),
					ValueStyle.Render(res.P99.Round(time.Millisecond).String()),
				),
			)
		} else if res.LastErr != "" {
			section = lipgloss.JoinVertical(lipgloss.Left,
				section,
				ErrorStyle.Render("  "+res.LastErr),
			)
		}
		sections = append(sections, section, "")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(m.err.Error()))
	}

	box := BorderStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top, box))

	b.WriteString("\n\n")
	b.WriteString(lipgloss.Place(m.width, 0, lipgloss.Center, lipgloss.Top,
		HelpStyle.Render("Press ENTER or Q to exit")))

	return b.String()
}

// formatStatuses renders a status-count map as "200 x5, 503 x1".
func formatStatuses(statuses map[int]int, failed int) string {
	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes)+1)
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%d x%d", code, statuses[code]))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("failed x%d", failed))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
