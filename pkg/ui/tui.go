package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-marketplace/business/marketplace/app"
	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletapp "github.com/fd1az/dapp-marketplace/business/wallet/app"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/pkg/ui/components"
)

// Dispatcher executes user intents against the marketplace session.
type Dispatcher interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Reload(ctx context.Context) error
	CreateProduct(ctx context.Context, name, price string) (*app.Outcome, error)
	BuyProduct(ctx context.Context, id uint64, price string) (*app.Outcome, error)
	NextEndpoint(ctx context.Context) (string, error)
	ClearError()
}

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "wallet", "marketplace"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	status   *components.StatusComponent
	products *components.ProductsComponent
	form     *components.CreateForm
	errors   *components.ErrorsComponent
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time
	startupTime  time.Time
	startupSteps map[string]*StartupStep

	// State
	quitting   bool
	width      int
	height     int
	dispatcher Dispatcher
	state      domain.State
	lastErr    string
	lastEvent  common.Hash
	approval   *ApprovalRequestMsg
	activity   []string
	lastUpdate time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		status:       components.NewStatusComponent(),
		products:     components.NewProductsComponent(10),
		form:         components.NewCreateForm(),
		errors:       components.NewErrorsComponent(3),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:         help.New(),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupTime:  now,
		startupSteps: map[string]*StartupStep{
			"config":      {Name: "Loading configuration", Status: "pending"},
			"wallet":      {Name: "Dialing Ethereum endpoint", Status: "pending"},
			"marketplace": {Name: "Loading deployments", Status: "pending"},
		},
		state:    domain.InitialState(),
		activity: make([]string, 0, 6),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

// tickCmd returns a command that sends a tick every 100ms.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.startModules()
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ReadyMsg:
		m.dispatcher = msg.Dispatcher
		m.phase = PhaseDashboard
		m.addActivity("Ready. Press c to connect your wallet.")

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.errors.Add(msg.Message, time.Now())
		}

	case StateMsg:
		m.applyState(msg.State)

	case ApprovalRequestMsg:
		if m.approval != nil {
			m.approval.Reply <- false
		}
		m.approval = &msg

	case ResultMsg:
		m.applyResult(msg)

	case ErrorMsg:
		m.errors.Add(msg.Error.Error(), time.Now())
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	// An open wallet prompt captures y/n.
	if m.approval != nil {
		switch {
		case key.Matches(msg, m.keys.Approve):
			m.answerApproval(true)
		case key.Matches(msg, m.keys.Decline):
			m.answerApproval(false)
		case msg.String() == "q":
			return m.quit()
		}
		return m, nil
	}

	if m.form.IsOpen() {
		submitted, name, price, cmd := m.form.Update(msg)
		if submitted {
			m.addActivity(fmt.Sprintf("Creating %q for %s ETH", name, price))
			return m, m.dispatch("create", func(ctx context.Context, d Dispatcher) (*app.Outcome, error) {
				return d.CreateProduct(ctx, name, price)
			})
		}
		return m, cmd
	}

	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.phase == PhaseWelcome {
		m.startModules()
		return m, nil
	}
	if m.dispatcher == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m, m.dispatch("connect", func(ctx context.Context, d Dispatcher) (*app.Outcome, error) {
			return nil, d.Connect(ctx)
		})
	case key.Matches(msg, m.keys.Disconnect):
		return m, m.dispatch("disconnect", func(ctx context.Context, d Dispatcher) (*app.Outcome, error) {
			return nil, d.Disconnect(ctx)
		})
	case key.Matches(msg, m.keys.Reload):
		return m, m.dispatch("reload", func(ctx context.Context, d Dispatcher) (*app.Outcome, error) {
			return nil, d.Reload(ctx)
		})
	case key.Matches(msg, m.keys.Endpoint):
		d := m.dispatcher
		return m, func() tea.Msg {
			name, err := d.NextEndpoint(context.Background())
			return ResultMsg{Action: "endpoint", Detail: name, Err: err}
		}
	case key.Matches(msg, m.keys.Add):
		if !m.state.Connected() {
			m.errors.Add("Connect your wallet before adding products", time.Now())
			return m, nil
		}
		return m, m.form.Open()
	case key.Matches(msg, m.keys.Buy):
		return m.buySelected()
	case key.Matches(msg, m.keys.Clear):
		m.errors.Clear()
		m.lastErr = ""
		d := m.dispatcher
		return m, func() tea.Msg { d.ClearError(); return nil }
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	return m, m.products.HandleKey(msg)
}

func (m Model) buySelected() (tea.Model, tea.Cmd) {
	p, ok := m.products.Selected()
	if !ok {
		return m, nil
	}
	if p.Purchased {
		m.errors.Add(fmt.Sprintf("%s has already been purchased", p.Name), time.Now())
		return m, nil
	}

	m.addActivity(fmt.Sprintf("Buying #%d %q for %s ETH", p.ID, p.Name, p.Price))
	id, price := p.ID, p.Price
	return m, m.dispatch("buy", func(ctx context.Context, d Dispatcher) (*app.Outcome, error) {
		return d.BuyProduct(ctx, id, price)
	})
}

// dispatch runs an intent off the event loop and reports a ResultMsg.
func (m Model) dispatch(action string, fn func(ctx context.Context, d Dispatcher) (*app.Outcome, error)) tea.Cmd {
	d := m.dispatcher
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		out, err := fn(context.Background(), d)
		return ResultMsg{Action: action, Outcome: out, Err: err}
	}
}

func (m *Model) answerApproval(ok bool) {
	m.approval.Reply <- ok
	if ok {
		m.addActivity("Approved wallet " + string(m.approval.Request.Kind) + " request")
	} else {
		m.addActivity("Declined wallet " + string(m.approval.Request.Kind) + " request")
	}
	m.approval = nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.approval != nil {
		m.approval.Reply <- false
		m.approval = nil
	}
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) startModules() {
	if m.phase != PhaseWelcome {
		return
	}
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) applyState(st domain.State) {
	m.state = st
	m.lastUpdate = time.Now()

	status := components.Status{
		Connection: string(st.Connection.Status),
		Endpoint:   st.Endpoint,
		Loading:    st.Loading,
	}
	if st.Connected() {
		status.Account = st.Connection.Account.Hex()
	}
	if st.NetworkID != nil {
		status.Network = st.NetworkID.Name()
	}
	if st.Binding != nil {
		name := st.ContractName
		if name == "" {
			name = st.Binding.Name
		}
		status.Contract = name + " " + components.ShortAddress(st.Binding.Address.Hex())
	}
	if st.Pending != nil {
		status.Pending = "pending " + string(st.Pending.Kind)
		if st.Pending.Hash != (common.Hash{}) {
			status.Pending += " " + components.ShortAddress(st.Pending.Hash.Hex())
		}
	}
	m.status.Update(status)

	rows := make([]components.ProductRow, len(st.Products))
	for i, p := range st.Products {
		rows[i] = components.ProductRow{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Owner:     p.Owner.Hex(),
			Purchased: p.Purchased,
		}
	}
	m.products.Update(rows)

	if st.LastError != nil {
		if text := ErrorText(st.LastError); text != m.lastErr {
			m.errors.Add(text, time.Now())
			m.lastErr = text
		}
	} else {
		m.lastErr = ""
	}

	if ev := st.LastEvent; ev != nil && ev.TxHash != m.lastEvent {
		m.lastEvent = ev.TxHash
		verb := "Created"
		if ev.Name == domain.EventProductPurchased {
			verb = "Purchased"
		}
		m.addActivity(fmt.Sprintf("%s #%d %q (%s ETH) in block %d", verb, ev.Product.ID, ev.Product.Name, ev.Product.Price, ev.Block))
	}
}

func (m *Model) applyResult(msg ResultMsg) {
	if msg.Err != nil {
		// Session errors already arrive through state.
		return
	}
	switch msg.Action {
	case "connect":
		m.addActivity("Wallet connected")
	case "disconnect":
		m.addActivity("Wallet disconnected")
	case "endpoint":
		m.addActivity("Switched to endpoint " + msg.Detail)
	case "reload":
		m.addActivity(fmt.Sprintf("Reloaded %d products", m.products.Len()))
	case "create", "buy":
		if msg.Outcome != nil {
			m.addActivity(fmt.Sprintf("Transaction %s confirmed", components.ShortAddress(msg.Outcome.TxHash.Hex())))
		}
	}
}

func (m *Model) addActivity(message string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
	m.activity = append(m.activity, line)
	if len(m.activity) > 6 {
		m.activity = m.activity[len(m.activity)-6:]
	}
}

// ErrorText renders err for the error panel.
func ErrorText(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage()
	}
	return err.Error()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Dapp Marketplace "))
	b.WriteString("\n\n")
	b.WriteString(m.status.View(m.spinner.View()))
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 76
	}

	switch {
	case m.approval != nil:
		b.WriteString(ModalStyle.Render(m.renderApproval()))
	case m.form.IsOpen():
		b.WriteString(BoxStyle.Width(width).Render(m.form.View()))
	default:
		b.WriteString(BoxStyle.Width(width).Render(m.products.View()))
	}
	b.WriteString("\n")
	b.WriteString(BoxStyle.Width(width).Render(m.renderActivityFeed()))
	b.WriteString("\n\n")

	if panel := m.errors.View(time.Now()); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderApproval() string {
	req := m.approval.Request
	header := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)

	var b strings.Builder
	switch req.Kind {
	case walletapp.ApprovalConnect:
		b.WriteString(header.Render("CONNECT WALLET"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "Account:  %s\n", req.Account.Hex())
		fmt.Fprintf(&b, "Network:  %s\n", req.NetworkID.Name())
	default:
		b.WriteString(header.Render("CONFIRM TRANSACTION"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "From:     %s\n", req.Account.Hex())
		fmt.Fprintf(&b, "To:       %s\n", req.To.Hex())
		fmt.Fprintf(&b, "Method:   %s\n", req.Method)
		fmt.Fprintf(&b, "Value:    %s ETH\n", domain.FormatEther(req.Value))
		fmt.Fprintf(&b, "Gas:      %d\n", req.GasLimit)
		if req.GasPrice != nil {
			gp := walletdomain.NewGasPrice(req.GasPrice)
			fmt.Fprintf(&b, "Gas price: %.2f gwei (max fee %s ETH)\n", gp.Gwei, domain.FormatEther(gp.MaxCost(req.GasLimit)))
		}
		fmt.Fprintf(&b, "Network:  %s\n", req.NetworkID.Name())
	}
	b.WriteString("\n")
	b.WriteString(MutedValue.Render("y: approve • n: decline"))
	return b.String()
}

func (m Model) renderActivityFeed() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("ACTIVITY"))
	sb.WriteString("\n")

	if len(m.activity) == 0 {
		sb.WriteString(MutedValue.Render("  Nothing yet..."))
		return sb.String()
	}
	for _, line := range m.activity {
		sb.WriteString(MutedValue.Render("  " + line))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ██████╗  █████╗ ██████╗ ██████╗
   ██╔══██╗██╔══██╗██╔══██╗██╔══██╗
   ██║  ██║███████║██████╔╝██████╔╝
   ██║  ██║██╔══██║██╔═══╝ ██╔═══╝
   ██████╔╝██║  ██║██║     ██║
   ╚═════╝ ╚═╝  ╚═╝╚═╝     ╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("        M A R K E T P L A C E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("     Buy and sell on-chain"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("         Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("   Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Dapp Marketplace"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			icon, statusText, style = m.spinner.View(), "Working...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")

	if panel := m.errors.View(time.Now()); panel != "" {
		sb.WriteString(panel)
		sb.WriteString("\n")
		sb.WriteString(MutedValue.Render("  q: quit"))
		sb.WriteString("\n")
	}

	return sb.String()
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules
// should start. It is set by main.go.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
