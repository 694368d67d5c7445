package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/probe"
)

// Doctor screens
type doctorScreen int

const (
	screenProbing doctorScreen = iota
	screenReport
)

// targetState tracks one endpoint's progress while probing runs.
type targetState struct {
	Sent    int
	Failed  int
	LastHit time.Duration
	LastErr string
}

// DoctorModel is the TUI model for the live doctor view.
type DoctorModel struct {
	screen    doctorScreen
	width     int
	height    int
	spin      spinner.Model
	startTime time.Time

	targets  []endpoints.Target
	perProbe int
	states   map[endpoints.Target]*targetState

	results []probe.Result
	err     error
}

// ProbeAttemptMsg reports one completed probe request.
type ProbeAttemptMsg probe.Attempt

// ProbeCompleteMsg carries the final results.
type ProbeCompleteMsg struct {
	Results []probe.Result
}

// ProbeErrorMsg aborts the run.
type ProbeErrorMsg struct {
	Err error
}

// NewDoctorModel creates the doctor TUI model.
func NewDoctorModel(targets []endpoints.Target, perProbe int) DoctorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = InfoStyle

	states := make(map[endpoints.Target]*targetState, len(targets))
	for _, t := range targets {
		states[t] = &targetState{}
	}

	return DoctorModel{
		screen:    screenProbing,
		spin:      sp,
		startTime: time.Now(),
		targets:   targets,
		perProbe:  perProbe,
		states:    states,
	}
}

// Init starts the spinner.
func (m DoctorModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles messages for the doctor model.
func (m DoctorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "enter":
			if m.screen == screenReport {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case ProbeAttemptMsg:
		if st, ok := m.states[msg.Target]; ok {
			st.Sent++
			st.LastHit = msg.Duration
			if msg.Err != nil {
				st.Failed++
				st.LastErr = msg.Err.Error()
			}
		}
		return m, nil

	case ProbeCompleteMsg:
		m.results = msg.Results
		m.screen = screenReport
		return m, nil

	case ProbeErrorMsg:
		m.err = msg.Err
		m.screen = screenReport
		return m, nil
	}

	return m, nil
}

// Results returns the final probe results, once complete.
func (m DoctorModel) Results() []probe.Result {
	return m.results
}

// Err returns the abort error, if the run was cut short.
func (m DoctorModel) Err() error {
	return m.err
}

// View renders the doctor TUI.
func (m DoctorModel) View() string {
	switch m.screen {
	case screenProbing:
		return m.viewProbing()
	case screenReport:
		return m.viewReport()
	default:
		return ""
	}
}
