package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9534F"))
	answerWidth   = 90
)

func (m AnalysisModel) View() string {
	mode := "autonomous"
	if m.interactive() {
		mode = "interactive"
	}
	title := titleStyle.Render(fmt.Sprintf("netlens - %s - %s mode - model %s", m.interfaceName, mode, m.modelName))

	qos := fmt.Sprintf("Bandwidth: %s\nPacket Rate: %.2f PPS", formatBps(m.bps), m.pps)
	qosBox := infoStyle.Render(qos)

	var protoStrs []string
	limit := 5
	if len(m.protocols) < limit {
		limit = len(m.protocols)
	}
	for i := 0; i < limit; i++ {
		p := m.protocols[i]
		protoStrs = append(protoStrs, fmt.Sprintf("%s: %d", p.Protocol, p.Count))
	}
	if len(protoStrs) == 0 {
		protoStrs = append(protoStrs, "Waiting for data...")
	}
	protoBox := infoStyle.Render("Protocols:\n" + strings.Join(protoStrs, "\n"))

	ttBox := infoStyle.Render("Top Talkers\n" + m.table.View())

	alertLines := []string{"Alerts:"}
	for _, a := range m.alerts {
		alertLines = append(alertLines, fmt.Sprintf("%s %s", a.Timestamp.Format("15:04:05"), a.Message))
	}
	if len(m.alerts) == 0 {
		alertLines = append(alertLines, "None")
	}
	alertBox := infoStyle.Render(strings.Join(alertLines, "\n"))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, qosBox, protoBox)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, ttBox, alertBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, row2, m.analysisView())

	if m.interactive() {
		return body + "\nEnter to ask, type exit or press Esc to quit."
	}
	return body + "\nPress q to quit."
}

func (m AnalysisModel) analysisView() string {
	wrap := lipgloss.NewStyle().Width(answerWidth)

	if !m.interactive() {
		lines := []string{"Latest analyses:"}
		for _, a := range m.analyses {
			text := a.Response
			if a.Failed() {
				text = errorStyle.Render("error: " + a.Err)
			}
			lines = append(lines, fmt.Sprintf("[%s] %s release, %d events", a.At.Format("15:04:05"), a.Reason, a.EventCount), wrap.Render(text))
		}
		if len(m.analyses) == 0 {
			lines = append(lines, "Waiting for the first batch...")
		}
		return infoStyle.Render(strings.Join(lines, "\n"))
	}

	var lines []string
	for _, ex := range m.exchanges {
		lines = append(lines, questionStyle.Render("> "+ex.question))
		if ex.failed {
			lines = append(lines, errorStyle.Render("error: "+ex.answer))
		} else {
			lines = append(lines, wrap.Render(ex.answer))
		}
	}
	if m.asking {
		lines = append(lines, m.spinner.View()+" analysing...")
	}
	lines = append(lines, m.input.View())
	return infoStyle.Render(strings.Join(lines, "\n"))
}

func formatBps(bps float64) string {
	if bps >= 1e6 {
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	}
	if bps >= 1e3 {
		return fmt.Sprintf("%.2f Kbps", bps/1e3)
	}
	return fmt.Sprintf("%.2f bps", bps)
}
