package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apex-sim/apexcpu/isa"
	"github.com/apex-sim/apexcpu/pipeline"
	"github.com/apex-sim/apexcpu/trace"
)

// stepModel is the single_step control-surface verb (spec §6): a
// Bubble Tea program that renders a trace line per stage per cycle and
// waits for a keypress before advancing, 'q'/'Q' aborting. Adapted from
// hejops-gone's cpu debugger model — a single fetch/decode/execute loop
// there, a five-stage pipeline tick here.
type stepModel struct {
	eng    *pipeline.Engine
	sink   *trace.SliceSink
	err    error
	quit   bool
	cycles []string // rendered lines for the most recently completed cycle
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	haltStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	faultStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

func (m stepModel) Init() tea.Cmd {
	return nil
}

func (m stepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := msg.String()
		switch s {
		case "q", "Q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		default:
			if m.eng.Halted {
				return m, nil
			}
			m.sink.Events = nil
			if err := m.eng.Step(); err != nil {
				m.err = err
			}
			m.cycles = renderCycle(m.sink.Events)
			if m.eng.Halted {
				return m, nil
			}
		}
	}
	return m, nil
}

func renderCycle(events []trace.StageEvent) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, trace.Line(e))
	}
	return lines
}

func (m stepModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("Clock Cycle #: %d", m.eng.Clock)))
	b.WriteString(strings.Join(m.cycles, "\n"))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		fmt.Fprintf(&b, "%s\n", faultStyle.Render(m.err.Error()))
	case m.eng.Halted:
		fmt.Fprintf(&b, "%s\n", haltStyle.Render(fmt.Sprintf(
			"APEX_CPU: Simulation Complete, cycles = %d instructions = %d", m.eng.Clock, m.eng.Retired)))
	default:
		b.WriteString("Press any key to advance CPU Clock or <q> to quit:\n")
	}
	return b.String()
}

// runSingleStep drives the interactive single-step mode end to end and
// prints the final register/memory report on exit, matching the
// "simulate"/"display" reporting surface.
func runSingleStep(code []isa.Instruction) error {
	sink := &trace.SliceSink{}
	eng := pipeline.New(code, sink)

	m, err := tea.NewProgram(stepModel{eng: eng, sink: sink}).Run()
	if err != nil {
		return fmt.Errorf("single_step: %w", err)
	}

	final := m.(stepModel)
	printReport(eng)
	return final.err
}
