// Package infra contains presentation adapters for the marketplace context.
package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
	now func() time.Time

	mu        sync.Mutex
	lastLine  string
	lastTable string
	lastError string
	lastEvent common.Hash
}

// NewConsoleReporter creates a ConsoleReporter writing to out, or stdout
// when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, now: time.Now}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Dapp Marketplace")
	fmt.Fprintln(r.out, "================")
	return nil
}

// Report prints the parts of state that changed since the last report.
func (r *ConsoleReporter) Report(st domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().Format("15:04:05")

	if line := statusLine(st); line != r.lastLine {
		fmt.Fprintf(r.out, "[%s] %s\n", ts, line)
		r.lastLine = line
	}

	errText := ""
	if st.LastError != nil {
		errText = userMessage(st.LastError)
		if errText != r.lastError {
			fmt.Fprintf(r.out, "[%s] error: %s\n", ts, errText)
		}
	}
	r.lastError = errText

	if ev := st.LastEvent; ev != nil && ev.TxHash != r.lastEvent {
		fmt.Fprintf(r.out, "[%s] %s #%d %q %s ETH (tx %s, block %d)\n",
			ts, ev.Name, ev.Product.ID, ev.Product.Name, ev.Product.Price, ev.TxHash.Hex(), ev.Block)
		r.lastEvent = ev.TxHash
	}

	if st.Loading {
		return
	}
	if table := productTable(st.Products); table != r.lastTable {
		fmt.Fprint(r.out, table)
		r.lastTable = table
	}
}

// Stop prints the farewell line.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Dapp Marketplace stopped")
	return nil
}

func statusLine(st domain.State) string {
	var parts []string

	switch st.Connection.Status {
	case walletdomain.StateConnected:
		parts = append(parts, "connected "+st.Connection.Account.Hex())
	default:
		parts = append(parts, string(st.Connection.Status))
	}
	if st.NetworkID != nil {
		parts = append(parts, "network "+st.NetworkID.Name())
	}
	if st.Endpoint != "" {
		parts = append(parts, "endpoint "+st.Endpoint)
	}
	if st.Binding != nil {
		name := st.ContractName
		if name == "" {
			name = st.Binding.Name
		}
		parts = append(parts, fmt.Sprintf("contract %s at %s", name, st.Binding.Address.Hex()))
	}
	if st.Pending != nil {
		pending := "pending " + string(st.Pending.Kind)
		if st.Pending.Hash != (common.Hash{}) {
			pending += " " + st.Pending.Hash.Hex()
		}
		parts = append(parts, pending)
	}
	if st.Loading {
		parts = append(parts, "loading...")
	}

	return strings.Join(parts, " | ")
}

func productTable(products []domain.Product) string {
	if len(products) == 0 {
		return "No products listed\n"
	}

	var b strings.Builder
	b.WriteString("--------------------------------------------------------------------------------\n")
	fmt.Fprintf(&b, "%-4s %-24s %-14s %-44s\n", "ID", "NAME", "PRICE (ETH)", "OWNER")
	b.WriteString("--------------------------------------------------------------------------------\n")
	for _, p := range products {
		owner := p.Owner.Hex()
		if p.Purchased {
			owner += " (sold)"
		}
		fmt.Fprintf(&b, "%-4d %-24s %-14s %s\n", p.ID, truncate(p.Name, 24), p.Price, owner)
	}
	b.WriteString("--------------------------------------------------------------------------------\n")
	return b.String()
}

func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
