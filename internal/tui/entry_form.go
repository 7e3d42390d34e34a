// ABOUTME: Interactive TUI form for writing a journal entry.
// ABOUTME: 5-step bubbletea model collecting title, date, tags, priority, and content.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/logbook/internal/models"
)

// Step represents the current form step.
type Step int

const (
	StepTitle Step = iota
	StepDate
	StepTags
	StepPriority
	StepContent
	StepSaving
	StepDone
	StepFailed
)

const inputSteps = 4

// saveResultMsg carries the result of an async save attempt.
type saveResultMsg struct {
	entry models.Entry
	err   error
}

// SaveFn persists the finished draft.
type SaveFn func(ctx context.Context, draft models.EntryDraft) (models.Entry, error)

// cancelHolder shares a cancel function across bubbletea model copies.
// It must stay a pointer field so value-receiver methods can store the cancel func
// and have it visible to all copies of the model.
type cancelHolder struct {
	cancel context.CancelFunc
}

// EntryFormModel is the bubbletea model for the entry form.
type EntryFormModel struct {
	step      Step
	heading   string
	inputs    [inputSteps]textinput.Model
	content   textarea.Model
	spinner   spinner.Model
	saveFn    SaveFn
	cancelCtx *cancelHolder
	inputErr  error
	saveErr   error
	saved     models.Entry
	quitting  bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var stepNames = [...]string{"Title", "Date", "Tags", "Priority", "Content"}

// NewEntryFormModel creates a form pre-filled from initial. saveFn may be nil, in which
// case the caller reads Result after the program exits.
func NewEntryFormModel(heading string, initial models.EntryDraft, saveFn SaveFn) EntryFormModel {
	titleInput := textinput.New()
	titleInput.Placeholder = "What happened?"
	titleInput.Focus()
	titleInput.Width = 50
	titleInput.SetValue(initial.Title)

	dateInput := textinput.New()
	dateInput.Placeholder = "YYYY-MM-DD HH:MM (empty for now)"
	dateInput.Width = 50
	if !initial.Date.IsZero() {
		dateInput.SetValue(initial.Date.Local().Format("2006-01-02 15:04"))
	}

	tagsInput := textinput.New()
	tagsInput.Placeholder = "work, ideas"
	tagsInput.Width = 50
	tagsInput.SetValue(strings.Join(initial.Tags, ", "))

	prioInput := textinput.New()
	prioInput.Placeholder = "none"
	prioInput.Width = 10
	if initial.Priority != nil {
		prioInput.SetValue(fmt.Sprintf("%d", *initial.Priority))
	}

	content := textarea.New()
	content.Placeholder = "Write your entry..."
	content.ShowLineNumbers = false
	content.CharLimit = 0
	content.SetWidth(60)
	content.SetHeight(8)
	content.SetValue(initial.Content)

	s := spinner.New()
	s.Spinner = spinner.Dot

	return EntryFormModel{
		step:      StepTitle,
		heading:   heading,
		inputs:    [inputSteps]textinput.Model{titleInput, dateInput, tagsInput, prioInput},
		content:   content,
		spinner:   s,
		saveFn:    saveFn,
		cancelCtx: &cancelHolder{},
	}
}

// Init implements tea.Model.
func (m EntryFormModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m EntryFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			if m.cancelCtx.cancel != nil {
				m.cancelCtx.cancel()
			}
			return m, tea.Quit
		}

		switch m.step {
		case StepTitle, StepDate, StepTags, StepPriority:
			return m.updateInput(msg)
		case StepContent:
			return m.updateContent(msg)
		case StepFailed:
			return m.updateFailed(msg)
		}

	case saveResultMsg:
		m.cancelCtx.cancel = nil
		if msg.err == nil {
			m.saved = msg.entry
			m.step = StepDone
			return m, tea.Quit
		}
		m.saveErr = msg.err
		m.step = StepFailed
		return m, nil

	case spinner.TickMsg:
		if m.step == StepSaving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m EntryFormModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		idx := int(m.step)
		m.inputErr = nil

		switch m.step {
		case StepTitle:
			// Don't advance on an empty title
			if strings.TrimSpace(m.inputs[idx].Value()) == "" {
				return m, nil
			}
		case StepDate:
			if _, err := models.ParseDate(m.inputs[idx].Value()); err != nil {
				m.inputErr = err
				return m, nil
			}
		case StepPriority:
			if _, err := models.ParsePriority(m.inputs[idx].Value()); err != nil {
				m.inputErr = err
				return m, nil
			}
		}

		m.inputs[idx].Blur()
		if m.step == StepPriority {
			m.step = StepContent
			return m, m.content.Focus()
		}
		m.step++
		m.inputs[int(m.step)].Focus()
		return m, textinput.Blink
	}

	// Forward to the active input
	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m EntryFormModel) updateContent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlD {
		m.content.Blur()
		if m.saveFn == nil {
			m.step = StepDone
			return m, tea.Quit
		}
		m.step = StepSaving
		return m, tea.Batch(m.startSave(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.content, cmd = m.content.Update(msg)
	return m, cmd
}

func (m EntryFormModel) updateFailed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyRunes && len(msg.Runes) > 0 {
		switch msg.Runes[0] {
		case 'r':
			m.step = StepSaving
			m.saveErr = nil
			return m, tea.Batch(m.startSave(), m.spinner.Tick)
		case 'q':
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m EntryFormModel) startSave() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCtx.cancel = cancel
	fn := m.saveFn
	draft, err := m.Result()
	return func() tea.Msg {
		if err != nil {
			return saveResultMsg{err: err}
		}
		entry, err := fn(ctx, draft)
		return saveResultMsg{entry: entry, err: err}
	}
}

// View implements tea.Model.
func (m EntryFormModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   LOGBOOK"))
	b.WriteString(titleStyle.Render(" - " + m.heading))
	b.WriteString("\n\n")

	if m.step <= StepContent {
		for i := 0; i < int(m.step) && i < inputSteps; i++ {
			b.WriteString(fmt.Sprintf("  %s: %s\n", stepNames[i], m.inputs[i].Value()))
		}
		if m.step > StepTitle {
			b.WriteString("\n")
		}
		b.WriteString(stepStyle.Render(fmt.Sprintf("Step %d of %d: %s", int(m.step)+1, len(stepNames), stepNames[m.step])))
		b.WriteString("\n")
	}

	switch m.step {
	case StepTitle, StepDate, StepTags, StepPriority:
		if m.step == StepDate || m.step == StepTags || m.step == StepPriority {
			b.WriteString(promptStyle.Render("(press Enter to keep empty)"))
			b.WriteString("\n")
		}
		b.WriteString(m.inputs[m.step].View())
		b.WriteString("\n")
		if m.inputErr != nil {
			b.WriteString(errorStyle.Render("✗ " + m.inputErr.Error()))
			b.WriteString("\n")
		}

	case StepContent:
		b.WriteString(m.content.View())
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(Ctrl+D to finish, Esc to cancel)"))
		b.WriteString("\n")

	case StepSaving:
		b.WriteString(fmt.Sprintf("  Title: %s\n\n", m.inputs[StepTitle].Value()))
		b.WriteString(m.spinner.View())
		b.WriteString(" Saving entry...")
		b.WriteString("\n")

	case StepDone:
		b.WriteString(successStyle.Render("✓ Saved!"))
		b.WriteString("\n")

	case StepFailed:
		errMsg := "unknown error"
		if m.saveErr != nil {
			errMsg = m.saveErr.Error()
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Save failed: %s", errMsg)))
		b.WriteString("\n\n")
		b.WriteString(promptStyle.Render("[r]etry  [q]uit"))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the entered values as a draft.
func (m EntryFormModel) Result() (models.EntryDraft, error) {
	date, err := models.ParseDate(m.inputs[StepDate].Value())
	if err != nil {
		return models.EntryDraft{}, err
	}
	priority, err := models.ParsePriority(m.inputs[StepPriority].Value())
	if err != nil {
		return models.EntryDraft{}, err
	}
	return models.NewEntryDraft(
		date,
		strings.TrimSpace(m.inputs[StepTitle].Value()),
		m.content.Value(),
		models.ParseTags(m.inputs[StepTags].Value()),
		priority,
	), nil
}

// Saved returns the entry stored by the save function, if the form saved one.
func (m EntryFormModel) Saved() (models.Entry, bool) {
	return m.saved, m.step == StepDone && m.saveFn != nil
}

// ShouldSave returns true if the form completed and the user did not cancel with
// Ctrl+C, Escape, or 'q'.
func (m EntryFormModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
