package tui

import (
	"context"
	"time"

	"netlens/internal/analysis"
	"netlens/internal/dispatch"
	"netlens/internal/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxExchanges = 5

// Asker answers an operator question. Implemented by dispatch.Responder.
type Asker interface {
	Ask(ctx context.Context, question string) (dispatch.Answer, error)
}

// History lists recent analyses. Implemented by reporting.Journal.
type History interface {
	Recent(limit int) []models.Analysis
}

// Options configures the dashboard. A nil Asker means autonomous mode: the
// question prompt is hidden and released analyses are shown instead.
type Options struct {
	Context   context.Context
	Stats     *analysis.TrafficStats
	Asker     Asker
	History   History
	Interface string
	Model     string
}

type exchange struct {
	question string
	answer   string
	failed   bool
}

type AnalysisModel struct {
	ctx           context.Context
	stats         *analysis.TrafficStats
	asker         Asker
	history       History
	interfaceName string
	modelName     string

	bps        float64
	pps        float64
	topTalkers []analysis.IPStat
	protocols  []analysis.ProtocolStat
	alerts     []analysis.Alert
	analyses   []models.Analysis
	table      table.Model

	input     textinput.Model
	spinner   spinner.Model
	asking    bool
	exchanges []exchange
}

func NewAnalysisModel(opts Options) AnalysisModel {
	columns := []table.Column{
		{Title: "Source IP", Width: 20},
		{Title: "Bytes", Width: 15},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	ti := textinput.New()
	ti.Placeholder = "Ask about the recent traffic (exit to quit)"
	ti.CharLimit = 512
	ti.Width = 60
	if opts.Asker != nil {
		ti.Focus()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return AnalysisModel{
		ctx:           ctx,
		stats:         opts.Stats,
		asker:         opts.Asker,
		history:       opts.History,
		interfaceName: opts.Interface,
		modelName:     opts.Model,
		table:         t,
		input:         ti,
		spinner:       sp,
	}
}

func (m AnalysisModel) Init() tea.Cmd {
	if m.asker != nil {
		return tea.Batch(tickCmd(), textinput.Blink)
	}
	return tickCmd()
}

func (m AnalysisModel) interactive() bool {
	return m.asker != nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
