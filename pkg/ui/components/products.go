package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProductRow represents a row in the product table.
type ProductRow struct {
	ID        uint64
	Name      string
	Price     string
	Owner     string
	Purchased bool
}

// ProductsComponent renders the product table with a selectable cursor.
type ProductsComponent struct {
	table table.Model
	rows  []ProductRow
}

// NewProductsComponent creates a new products component.
func NewProductsComponent(height int) *ProductsComponent {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Name", Width: 24},
			{Title: "Price (ETH)", Width: 14},
			{Title: "Owner", Width: 14},
			{Title: "Status", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#374151")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C3AED")).
		Bold(false)
	t.SetStyles(styles)

	return &ProductsComponent{table: t}
}

// Update replaces the listed products, keeping the cursor in range.
func (p *ProductsComponent) Update(rows []ProductRow) {
	p.rows = rows

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		status := "for sale"
		if r.Purchased {
			status = "sold"
		}
		tableRows[i] = table.Row{
			fmt.Sprintf("%d", r.ID),
			r.Name,
			r.Price,
			ShortAddress(r.Owner),
			status,
		}
	}
	p.table.SetRows(tableRows)

	if cursor := p.table.Cursor(); cursor >= len(rows) {
		p.table.SetCursor(max(len(rows)-1, 0))
	}
}

// Selected returns the product under the cursor.
func (p *ProductsComponent) Selected() (ProductRow, bool) {
	cursor := p.table.Cursor()
	if cursor < 0 || cursor >= len(p.rows) {
		return ProductRow{}, false
	}
	return p.rows[cursor], true
}

// HandleKey forwards navigation keys to the table.
func (p *ProductsComponent) HandleKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd
}

// Len returns the number of listed products.
func (p *ProductsComponent) Len() int {
	return len(p.rows)
}

// View renders the products component.
func (p *ProductsComponent) View() string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	if len(p.rows) == 0 {
		return header.Render("PRODUCTS") + "\n\n" + muted.Render("  No products listed yet...")
	}
	return header.Render(fmt.Sprintf("PRODUCTS (%d)", len(p.rows))) + "\n" + p.table.View()
}
