package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"groupgate/internal/api"
	"groupgate/internal/flow"
)

// groupField is the focused field within the group step.
type groupField int

const (
	fieldName groupField = iota
	fieldNumbers
	fieldImage
)

type backendDoneMsg struct {
	url string
	err error
}

type phoneDoneMsg struct{ err error }

type codeDoneMsg struct {
	err              error
	requiresPassword bool
}

type groupDoneMsg struct {
	res api.CreateGroupResult
	err error
}

// Model is the root wizard model. It renders whichever step the flow
// controller is on and feeds submissions back to it.
type Model struct {
	ctrl  *flow.Controller
	probe func(ctx context.Context, url string) error
	save  func(url string) error

	backendInput textinput.Model
	phoneInput   textinput.Model
	codeInput    textinput.Model
	nameInput    textinput.Model
	numbersInput textarea.Model
	imageInput   textinput.Model
	spin         spinner.Model

	field  groupField
	busy   bool
	errMsg string
	okMsg  string
	width  int
	height int
}

// NewModel builds the wizard. probe validates a backend URL before it is
// accepted; save persists it for the next run.
func NewModel(ctrl *flow.Controller, probe func(ctx context.Context, url string) error, save func(url string) error) Model {
	backend := textinput.New()
	backend.Placeholder = "http://localhost:8080"

	phone := textinput.New()
	phone.Placeholder = "+1 555 000 1111"

	code := textinput.New()
	code.Placeholder = "12345"

	name := textinput.New()
	name.Placeholder = "Weekend Trip"

	numbers := textarea.New()
	numbers.Placeholder = "+1 555 000 1111, +1 555 000 2222\n+1 555 000 3333"
	numbers.SetHeight(5)

	image := textinput.New()
	image.Placeholder = "path/to/photo.jpg (optional)"

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(highlightColor)

	m := Model{
		ctrl:         ctrl,
		probe:        probe,
		save:         save,
		backendInput: backend,
		phoneInput:   phone,
		codeInput:    code,
		nameInput:    name,
		numbersInput: numbers,
		imageInput:   image,
		spin:         spin,
	}
	m.focusStep()
	return m
}

// focusStep moves input focus to the current step's first field.
func (m *Model) focusStep() {
	m.backendInput.Blur()
	m.phoneInput.Blur()
	m.codeInput.Blur()
	m.nameInput.Blur()
	m.numbersInput.Blur()
	m.imageInput.Blur()

	switch m.ctrl.Step() {
	case flow.StepSetup:
		m.backendInput.Focus()
	case flow.StepPhone:
		m.phoneInput.Focus()
	case flow.StepOTP:
		m.codeInput.Focus()
	case flow.StepGroup:
		m.field = fieldName
		m.nameInput.Focus()
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case backendDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("backend not reachable: %v", msg.err)
			return m, nil
		}
		m.errMsg = ""
		if err := m.ctrl.SubmitBackend(msg.url); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		if m.save != nil {
			if err := m.save(msg.url); err != nil {
				m.okMsg = "backend set (could not save: " + err.Error() + ")"
			} else {
				m.okMsg = "backend saved"
			}
		}
		m.focusStep()
		return m, nil

	case phoneDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.okMsg = "code sent to " + m.ctrl.Phone()
		m.focusStep()
		return m, nil

	case codeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			if msg.requiresPassword {
				m.errMsg += " (two-step verification is not supported)"
			}
			return m, nil
		}
		m.errMsg = ""
		m.okMsg = "signed in as " + m.ctrl.Phone()
		m.focusStep()
		return m, nil

	case groupDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			var apiErr *api.Error
			if errors.As(msg.err, &apiErr) && len(apiErr.FailedNumbers) > 0 {
				m.errMsg += "\nfailed: " + strings.Join(apiErr.FailedNumbers, ", ")
			}
			return m, nil
		}
		m.errMsg = ""
		m.okMsg = fmt.Sprintf("%s (%d of %d members)", msg.res.Message, msg.res.MembersAdded, msg.res.TotalRequested)
		if len(msg.res.FailedNumbers) > 0 {
			m.okMsg += "\nnot on telegram: " + strings.Join(msg.res.FailedNumbers, ", ")
		}
		// Clear the form but keep the session for the next group.
		m.nameInput.SetValue("")
		m.numbersInput.SetValue("")
		m.imageInput.SetValue("")
		m.focusStep()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.busy {
				return m, nil
			}
			if m.ctrl.Step() == flow.StepOTP {
				m.ctrl.Back()
				m.errMsg = ""
				m.okMsg = ""
				m.focusStep()
				return m, nil
			}
			return m, tea.Quit
		case "tab", "shift+tab":
			if m.ctrl.Step() == flow.StepGroup && !m.busy {
				if msg.String() == "tab" {
					m.field = (m.field + 1) % 3
				} else {
					m.field = (m.field + 2) % 3
				}
				m.nameInput.Blur()
				m.numbersInput.Blur()
				m.imageInput.Blur()
				switch m.field {
				case fieldName:
					m.nameInput.Focus()
				case fieldNumbers:
					m.numbersInput.Focus()
				case fieldImage:
					m.imageInput.Focus()
				}
				return m, nil
			}
		case "enter":
			// The textarea uses enter for newlines; submit from the
			// other fields or with ctrl+s.
			if m.busy || (m.ctrl.Step() == flow.StepGroup && m.field == fieldNumbers) {
				break
			}
			return m.submit()
		case "ctrl+s":
			if !m.busy {
				return m.submit()
			}
		}
		if m.busy {
			return m, nil
		}
		return m.updateInputs(msg)
	}

	return m, nil
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.ctrl.Step() {
	case flow.StepSetup:
		m.backendInput, cmd = m.backendInput.Update(msg)
	case flow.StepPhone:
		m.phoneInput, cmd = m.phoneInput.Update(msg)
	case flow.StepOTP:
		m.codeInput, cmd = m.codeInput.Update(msg)
	case flow.StepGroup:
		switch m.field {
		case fieldName:
			m.nameInput, cmd = m.nameInput.Update(msg)
		case fieldNumbers:
			m.numbersInput, cmd = m.numbersInput.Update(msg)
		case fieldImage:
			m.imageInput, cmd = m.imageInput.Update(msg)
		}
	}
	return m, cmd
}

// submit runs the current step's action as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	m.okMsg = ""

	switch ctrl.Step() {
	case flow.StepSetup:
		url := strings.TrimSpace(m.backendInput.Value())
		if url == "" {
			m.errMsg = flow.ErrEmptyBackend.Error()
			return m, nil
		}
		probe := m.probe
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			if probe != nil {
				if err := probe(context.Background(), url); err != nil {
					return backendDoneMsg{url: url, err: err}
				}
			}
			return backendDoneMsg{url: url}
		})

	case flow.StepPhone:
		phone := m.phoneInput.Value()
		if strings.TrimSpace(phone) == "" {
			m.errMsg = flow.ErrEmptyPhone.Error()
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			return phoneDoneMsg{err: ctrl.SubmitPhone(context.Background(), phone)}
		})

	case flow.StepOTP:
		code := m.codeInput.Value()
		if strings.TrimSpace(code) == "" {
			m.errMsg = flow.ErrEmptyCode.Error()
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			err := ctrl.SubmitCode(context.Background(), code)
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.RequiresPassword {
				return codeDoneMsg{err: err, requiresPassword: true}
			}
			return codeDoneMsg{err: err}
		})

	case flow.StepGroup:
		name := m.nameInput.Value()
		blob := m.numbersInput.Value()
		imagePath := strings.TrimSpace(m.imageInput.Value())
		if strings.TrimSpace(name) == "" {
			m.errMsg = flow.ErrEmptyGroupName.Error()
			return m, nil
		}
		if len(flow.SplitNumbers(blob)) == 0 {
			m.errMsg = flow.ErrNoNumbers.Error()
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			var image []byte
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return groupDoneMsg{err: fmt.Errorf("read image: %w", err)}
				}
				image = data
			}
			res, err := ctrl.SubmitGroup(context.Background(), name, blob, image)
			return groupDoneMsg{res: res, err: err}
		})
	}

	return m, nil
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}

	var b strings.Builder
	switch m.ctrl.Step() {
	case flow.StepSetup:
		b.WriteString(titleStyle.Render("Backend"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Gateway URL"))
		b.WriteString("\n")
		b.WriteString(m.backendInput.View())
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render("enter: save · esc: quit"))

	case flow.StepPhone:
		b.WriteString(titleStyle.Render("Sign in · step 1 of 2"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Phone number"))
		b.WriteString("\n")
		b.WriteString(m.phoneInput.View())
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render("enter: send code · esc: quit"))

	case flow.StepOTP:
		b.WriteString(titleStyle.Render("Sign in · step 2 of 2"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Code sent to " + m.ctrl.Phone()))
		b.WriteString("\n")
		b.WriteString(m.codeInput.View())
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render("enter: verify · esc: back"))

	case flow.StepGroup:
		b.WriteString(titleStyle.Render("New group"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Name"))
		b.WriteString("\n")
		b.WriteString(m.nameInput.View())
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Members (one per line, commas work too)"))
		b.WriteString("\n")
		b.WriteString(m.numbersInput.View())
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Photo"))
		b.WriteString("\n")
		b.WriteString(m.imageInput.View())
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render("tab: next field · ctrl+s: create · esc: quit"))
	}

	if m.busy {
		b.WriteString("\n\n")
		b.WriteString(m.spin.View() + " working...")
	}
	if m.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(errStyle.Render(m.errMsg))
	}
	if m.okMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(okStyle.Render(m.okMsg))
	}

	box := boxStyle.Render(b.String())
	v.SetContent(lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box))
	return v
}

// App wraps the Bubble Tea program for external use.
type App struct {
	program *tea.Program
}

// NewApp creates a new App ready to Run.
func NewApp(ctrl *flow.Controller, probe func(ctx context.Context, url string) error, save func(url string) error) *App {
	model := NewModel(ctrl, probe, save)
	return &App{program: tea.NewProgram(model)}
}

// Run starts the Bubble Tea event loop (blocks until quit).
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}
