package reporting

import (
	"fmt"
	"strings"
	"time"

	"netlens/internal/analysis"

	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9534F")).Bold(true)
)

// Session describes what to summarise at exit.
type Session struct {
	Interface string
	Mode      string
	Model     string
	Started   time.Time
	Ended     time.Time
	Stats     *analysis.TrafficStats
	Journal   *Journal
}

// SessionSummary renders a plain terminal summary of the session.
func SessionSummary(s Session) string {
	var sections []string

	header := fmt.Sprintf("netlens session on %s (%s mode, model %s)\nDuration: %s",
		s.Interface, s.Mode, s.Model, s.Ended.Sub(s.Started).Round(time.Second))
	sections = append(sections, headingStyle.Render("Session Summary"), header)

	if s.Stats != nil {
		bytes, packets := s.Stats.Totals()
		traffic := []string{fmt.Sprintf("Packets: %d   Data: %s", packets, formatBytes(bytes))}

		top := s.Stats.GetTopTalkers(5)
		if len(top) == 0 {
			traffic = append(traffic, "No traffic captured.")
		}
		for _, t := range top {
			traffic = append(traffic, fmt.Sprintf("  %-40s %s", t.IP, formatBytes(int64(t.Bytes))))
		}

		var protos []string
		for _, p := range s.Stats.GetProtocolStats() {
			protos = append(protos, fmt.Sprintf("%s=%d", p.Protocol, p.Count))
		}
		if len(protos) > 0 {
			traffic = append(traffic, "Protocols: "+strings.Join(protos, " "))
		}
		sections = append(sections, boxStyle.Render(strings.Join(traffic, "\n")))

		alerts := s.Stats.GetAlerts(10)
		if len(alerts) > 0 {
			lines := make([]string, 0, len(alerts))
			for _, a := range alerts {
				lines = append(lines, fmt.Sprintf("%s %s %s",
					a.Timestamp.Format("15:04:05"), alertStyle.Render(string(a.Type)), a.Message))
			}
			sections = append(sections, boxStyle.Render("Local alerts\n"+strings.Join(lines, "\n")))
		}
	}

	if s.Journal != nil {
		total, failures := s.Journal.Counts()
		lines := []string{fmt.Sprintf("Analyses: %d (%d failed)", total, failures)}
		for _, a := range s.Journal.Recent(3) {
			label := a.Question
			if label == "" {
				label = string(a.Reason) + " release"
			}
			text := a.Response
			if a.Failed() {
				text = "error: " + a.Err
			}
			lines = append(lines, fmt.Sprintf("[%s] %s (%d events): %s", a.BatchID, label, a.EventCount, firstLine(text)))
		}
		sections = append(sections, boxStyle.Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
