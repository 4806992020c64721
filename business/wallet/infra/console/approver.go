// Package console answers wallet prompts on a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dapp-marketplace/business/wallet/app"
)

// Approver asks the wallet owner on out and reads a y/n answer from in.
type Approver struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewApprover creates an Approver.
func NewApprover(in io.Reader, out io.Writer) *Approver {
	return &Approver{in: bufio.NewReader(in), out: out}
}

// Approve prints the request and waits for an answer. Anything other than
// y or yes declines.
func (a *Approver) Approve(ctx context.Context, req app.ApprovalRequest) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprint(a.out, Describe(req))
	fmt.Fprint(a.out, "Approve? [y/N]: ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(a.out)
		return false, ctx.Err()
	case ans := <-ch:
		if ans.err != nil && ans.line == "" {
			if ans.err == io.EOF {
				return false, nil
			}
			return false, ans.err
		}
		switch strings.ToLower(strings.TrimSpace(ans.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// Describe renders a request the way a wallet prompt would.
func Describe(req app.ApprovalRequest) string {
	var b strings.Builder
	switch req.Kind {
	case app.ApprovalConnect:
		fmt.Fprintf(&b, "\nConnect wallet %s on %s\n", req.Account.Hex(), req.NetworkID.Name())
	default:
		fmt.Fprintf(&b, "\nSign transaction on %s\n", req.NetworkID.Name())
		fmt.Fprintf(&b, "  from:   %s\n", req.Account.Hex())
		fmt.Fprintf(&b, "  to:     %s\n", req.To.Hex())
		fmt.Fprintf(&b, "  method: %s\n", req.Method)
		fmt.Fprintf(&b, "  value:  %s ETH\n", ether(req.Value))
		fmt.Fprintf(&b, "  gas:    %d\n", req.GasLimit)
		if req.GasPrice != nil {
			fee := new(big.Int).Mul(req.GasPrice, new(big.Int).SetUint64(req.GasLimit))
			fmt.Fprintf(&b, "  max fee: %s ETH\n", ether(fee))
		}
	}
	return b.String()
}

func ether(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}
