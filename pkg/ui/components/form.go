package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CreateForm collects the name and price of a new product.
type CreateForm struct {
	inputs []textinput.Model
	focus  int
	open   bool
}

// NewCreateForm creates a closed form.
func NewCreateForm() *CreateForm {
	name := textinput.New()
	name.Placeholder = "Product name"
	name.CharLimit = 64
	name.Width = 32
	name.Prompt = "Name:  "

	price := textinput.New()
	price.Placeholder = "1.0"
	price.CharLimit = 32
	price.Width = 16
	price.Prompt = "Price: "

	return &CreateForm{inputs: []textinput.Model{name, price}}
}

// IsOpen reports whether the form is shown.
func (f *CreateForm) IsOpen() bool {
	return f.open
}

// Open shows the form with the name field focused.
func (f *CreateForm) Open() tea.Cmd {
	f.open = true
	return f.setFocus(0)
}

// Close hides and clears the form.
func (f *CreateForm) Close() {
	f.open = false
	for i := range f.inputs {
		f.inputs[i].Reset()
		f.inputs[i].Blur()
	}
	f.focus = 0
}

// Update handles a key while the form is open. submitted is true when the
// user confirmed the form; the form is then closed and cleared.
func (f *CreateForm) Update(msg tea.KeyMsg) (submitted bool, name, price string, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		f.Close()
		return false, "", "", nil
	case "tab", "down":
		return false, "", "", f.setFocus((f.focus + 1) % len(f.inputs))
	case "shift+tab", "up":
		return false, "", "", f.setFocus((f.focus + len(f.inputs) - 1) % len(f.inputs))
	case "enter":
		if f.focus < len(f.inputs)-1 {
			return false, "", "", f.setFocus(f.focus + 1)
		}
		name = strings.TrimSpace(f.inputs[0].Value())
		price = strings.TrimSpace(f.inputs[1].Value())
		f.Close()
		return true, name, price, nil
	}

	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return false, "", "", cmd
}

func (f *CreateForm) setFocus(i int) tea.Cmd {
	f.focus = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// View renders the form.
func (f *CreateForm) View() string {
	if !f.open {
		return ""
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(header.Render("ADD PRODUCT"))
	b.WriteString("\n\n")
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(muted.Render("enter: next/submit • tab: switch • esc: cancel"))
	return b.String()
}
