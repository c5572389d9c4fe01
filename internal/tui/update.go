package tui

import (
	"fmt"
	"strings"
	"time"

	"netlens/internal/dispatch"
	"netlens/internal/prompt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg triggers a stats refresh.
type TickMsg time.Time

type answerMsg struct {
	question string
	answer   dispatch.Answer
	err      error
}

func (m AnalysisModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "q":
			if !m.interactive() {
				return m, tea.Quit
			}
		case "enter":
			if m.interactive() {
				return m.submit()
			}
		}

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case answerMsg:
		m.asking = false
		ex := exchange{question: msg.question, answer: msg.answer.Text}
		if msg.err != nil {
			ex.answer = msg.err.Error()
			ex.failed = true
		}
		m.exchanges = append(m.exchanges, ex)
		if len(m.exchanges) > maxExchanges {
			m.exchanges = m.exchanges[len(m.exchanges)-maxExchanges:]
		}
		return m, nil

	case spinner.TickMsg:
		if !m.asking {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.interactive() {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m AnalysisModel) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	if prompt.IsQuit(line) {
		return m, tea.Quit
	}
	question := strings.TrimSpace(line)
	if question == "" || m.asking {
		return m, nil
	}

	m.input.Reset()
	m.asking = true

	asker, ctx := m.asker, m.ctx
	ask := func() tea.Msg {
		ans, err := asker.Ask(ctx, question)
		return answerMsg{question: question, answer: ans, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, ask)
}

func (m *AnalysisModel) refresh() {
	if m.stats != nil {
		m.bps, m.pps = m.stats.GetRates()
		m.topTalkers = m.stats.GetTopTalkers(10)
		m.protocols = m.stats.GetProtocolStats()
		m.alerts = m.stats.GetAlerts(5)
	}
	if m.history != nil && !m.interactive() {
		m.analyses = m.history.Recent(3)
	}

	rows := make([]table.Row, len(m.topTalkers))
	for i, stat := range m.topTalkers {
		rows[i] = table.Row{stat.IP, fmt.Sprintf("%d", stat.Bytes)}
	}
	m.table.SetRows(rows)
}
