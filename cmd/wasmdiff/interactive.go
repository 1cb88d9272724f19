package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wasmdiff/wasmdiff/interp"
	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

type stepperModel struct {
	err      error
	mod      *wasm.Module
	machine  *interp.Machine
	filename string
	exports  []exportInfo
	selected int
	state    stepperState
}

type exportInfo struct {
	name    string
	sig     *wasm.FuncType
	funcIdx uint32
}

type stepperState int

const (
	stateSelect stepperState = iota
	stateStepping
	stateDone
)

func newStepperModel(filename string) *stepperModel {
	return &stepperModel{filename: filename, state: stateSelect}
}

type stepperLoadedMsg struct {
	err     error
	mod     *wasm.Module
	machine *interp.Machine
	exports []exportInfo
}

func (m *stepperModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *stepperModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return stepperLoadedMsg{err: err}
	}

	mod, err := wasm.ParseModuleValidate(data)
	if err != nil {
		return stepperLoadedMsg{err: err}
	}

	machine, err := interp.New(mod)
	if err != nil {
		return stepperLoadedMsg{err: err}
	}

	var exports []exportInfo
	for _, exp := range mod.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		exports = append(exports, exportInfo{
			name:    exp.Name,
			sig:     mod.GetFuncType(exp.Idx),
			funcIdx: exp.Idx,
		})
	}
	if len(exports) == 0 {
		return stepperLoadedMsg{err: fmt.Errorf("module exports no functions")}
	}

	return stepperLoadedMsg{mod: mod, machine: machine, exports: exports}
}

func (m *stepperModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.machine != nil && m.state == stateStepping {
				m.machine.Abort()
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelect:
				exp := m.exports[m.selected]
				m.machine.InitFrame(exp.funcIdx, values.DefaultArgs(exp.sig))
				m.state = stateStepping
			case stateDone:
				m.state = stateSelect
			}

		case " ", "n":
			if m.state == stateStepping {
				m.advance(1)
			}

		case "r":
			if m.state == stateStepping {
				m.advance(interp.StepBudget)
			}

		case "esc":
			switch m.state {
			case stateStepping:
				m.machine.Abort()
				m.state = stateSelect
			case stateDone:
				m.state = stateSelect
			}
		}

	case stepperLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mod = msg.mod
		m.machine = msg.machine
		m.exports = msg.exports
	}

	return m, nil
}

func (m *stepperModel) advance(steps int) {
	state, err := m.machine.Run(steps)
	if err != nil {
		m.err = err
		m.state = stateDone
		return
	}
	switch state {
	case interp.StateFinished, interp.StateTrapped:
		m.state = stateDone
	}
}

func (m *stepperModel) View() string {
	if m.err != nil && m.state != stateDone {
		return mismatchStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.machine == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmdiff stepper"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelect:
		b.WriteString("Select a function to step through:\n\n")
		for i, exp := range m.exports {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
			}
			b.WriteString(cursor + funcStyle.Render(exp.name) + typeStyle.Render(formatSig(exp.sig)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter start • q quit"))

	case stateStepping:
		exp := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Stepping %s\n\n", funcStyle.Render(exp.name)))
		b.WriteString(m.statusLines())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("space step • r run • esc abort • q quit"))

	case stateDone:
		exp := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(exp.name)))
		b.WriteString(m.resultLines(exp))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *stepperModel) statusLines() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  steps:  %d\n", m.machine.Steps())
	fmt.Fprintf(&b, "  frames: %d  stack: %d  memory: %d bytes\n",
		m.machine.FrameDepth(), m.machine.StackHeight(), m.machine.MemorySize())
	if funcIdx, pc, op, ok := m.machine.Current(); ok {
		fmt.Fprintf(&b, "  next:   func %d pc %d opcode 0x%02X\n", funcIdx, pc, op)
	}
	return b.String()
}

func (m *stepperModel) resultLines(exp exportInfo) string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(mismatchStyle.Render(fmt.Sprintf("failed: %v", m.err)))
		b.WriteString("\n")
		m.err = nil
		return b.String()
	}

	switch m.machine.State() {
	case interp.StateFinished:
		if exp.sig != nil && len(exp.sig.Results) > 0 {
			result, _ := values.NarrowI32(m.machine.ReturnValue())
			b.WriteString(matchStyle.Render(fmt.Sprintf("finished: %s (narrowed: %d)", m.machine.ReturnValue(), result)))
		} else {
			b.WriteString(matchStyle.Render("finished (no results)"))
		}
	case interp.StateTrapped:
		b.WriteString(mismatchStyle.Render(fmt.Sprintf("trapped: %v", m.machine.TrapError())))
	default:
		b.WriteString(noteStyle.Render(m.machine.State().String()))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  steps: %d", m.machine.Steps())
	if m.machine.PossibleNondeterminism() {
		b.WriteString("  " + noteStyle.Render("(possible nondeterminism)"))
	}
	b.WriteString("\n")
	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newStepperModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
