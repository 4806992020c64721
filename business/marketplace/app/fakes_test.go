package app

import (
	"context"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra/contract"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

var (
	rinkebyMarket = common.HexToAddress("0x3Fb0a2B1b2c7D9C1e2A7f0f8bE1bF4dA0E3C0a11")
	alice         = common.HexToAddress("0x00000000000000000000000000000000000A11ce")
	bob           = common.HexToAddress("0x0000000000000000000000000000000000000B0b")
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// fakeChain is the on-chain product list shared by the fake gateway and
// the fake repository.
type fakeChain struct {
	mu       sync.Mutex
	products []domain.Product
}

func (c *fakeChain) add(name string, price *big.Int, owner common.Address) domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := domain.NewProduct(uint64(len(c.products)+1), name, price, owner, false)
	c.products = append(c.products, p)
	return p
}

func (c *fakeChain) purchase(id uint64, buyer common.Address) (domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == 0 || id > uint64(len(c.products)) || c.products[id-1].Purchased {
		return domain.Product{}, false
	}
	c.products[id-1].Owner = buyer
	c.products[id-1].Purchased = true
	return c.products[id-1].Clone(), true
}

func (c *fakeChain) list() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Product, len(c.products))
	for i, p := range c.products {
		out[i] = p.Clone()
	}
	return out
}

type fakeRepository struct {
	chain *fakeChain
	calls atomic.Int32

	mu      sync.Mutex
	err     error
	gate    chan struct{} // when set, ListAll blocks until closed
	entered chan struct{}
}

func (r *fakeRepository) ListAll(ctx context.Context, binding *domain.ContractBinding) ([]domain.Product, error) {
	r.calls.Add(1)

	r.mu.Lock()
	gate, entered, err := r.gate, r.entered, r.err
	r.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, apperror.New(apperror.CodeRepositoryReadError, apperror.WithCause(err))
	}
	return r.chain.list(), nil
}

func (r *fakeRepository) ContractName(context.Context, *domain.ContractBinding) (string, error) {
	return "Dapp Marketplace", nil
}

func (r *fakeRepository) block() (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gate := make(chan struct{})
	r.gate = gate
	r.entered = make(chan struct{}, 1)
	return func() {
		r.mu.Lock()
		r.gate = nil
		r.mu.Unlock()
		close(gate)
	}
}

func (r *fakeRepository) waitEntered(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	entered := r.entered
	r.mu.Unlock()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("ListAll was not called")
	}
}

type fakeGateway struct {
	t     *testing.T
	chain *fakeChain

	network    atomic.Uint64
	account    common.Address
	connectErr error
	sendErr    error
	// await overrides AwaitConfirmation when set.
	await func(ctx context.Context, tx walletdomain.TxHandle) (*types.Receipt, error)

	changes chan walletdomain.NetworkChange

	mu          sync.Mutex
	connected   bool
	sent        []walletdomain.TxRequest
	disconnects int
}

func newFakeGateway(t *testing.T, chain *fakeChain, network walletdomain.NetworkID) *fakeGateway {
	g := &fakeGateway{
		t:       t,
		chain:   chain,
		account: alice,
		changes: make(chan walletdomain.NetworkChange, 8),
	}
	g.network.Store(uint64(network))
	return g
}

func (g *fakeGateway) Account() (common.Address, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account, g.connected
}

func (g *fakeGateway) NetworkID(context.Context) (walletdomain.NetworkID, error) {
	return walletdomain.NetworkID(g.network.Load()), nil
}

func (g *fakeGateway) SubscribeNetwork(context.Context) (<-chan walletdomain.NetworkChange, error) {
	return g.changes, nil
}

// switchTo moves the fake wallet to network and emits the transition.
func (g *fakeGateway) switchTo(network walletdomain.NetworkID) {
	prev := walletdomain.NetworkID(g.network.Swap(uint64(network)))
	g.changes <- walletdomain.NetworkChange{Current: network, Previous: &prev}
}

func (g *fakeGateway) Connect(context.Context) (common.Address, error) {
	if g.connectErr != nil {
		return common.Address{}, g.connectErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	return g.account, nil
}

func (g *fakeGateway) Disconnect(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	g.disconnects++
	return nil
}

func (g *fakeGateway) Call(context.Context, common.Address, []byte) ([]byte, error) {
	g.t.Fatal("unexpected Call")
	return nil, nil
}

func (g *fakeGateway) SendTransaction(_ context.Context, req walletdomain.TxRequest) (walletdomain.TxHandle, error) {
	g.mu.Lock()
	g.sent = append(g.sent, req)
	n := len(g.sent)
	g.mu.Unlock()

	if g.sendErr != nil {
		return walletdomain.TxHandle{}, g.sendErr
	}
	_, err := req.CallData()
	require.NoError(g.t, err)

	return walletdomain.TxHandle{
		Hash:     common.BigToHash(big.NewInt(int64(n))),
		From:     g.account,
		To:       req.To,
		Nonce:    uint64(n - 1),
		Value:    req.ValueOrZero(),
		Gas:      req.GasLimit,
		GasPrice: big.NewInt(1e9),
	}, nil
}

// AwaitConfirmation mines the last sent request against the fake chain
// and returns a receipt carrying the matching event.
func (g *fakeGateway) AwaitConfirmation(ctx context.Context, tx walletdomain.TxHandle, _ uint64) (*types.Receipt, error) {
	if g.await != nil {
		return g.await(ctx, tx)
	}

	g.mu.Lock()
	req := g.sent[len(g.sent)-1]
	g.mu.Unlock()

	var (
		product domain.Product
		event   string
	)
	switch req.Method {
	case domain.MethodCreateProduct:
		product = g.chain.add(req.Args[0].(string), req.Args[1].(*big.Int), g.account)
		event = domain.EventProductCreated
	case domain.MethodPurchaseProduct:
		var ok bool
		product, ok = g.chain.purchase(req.Args[0].(*big.Int).Uint64(), g.account)
		if !ok {
			return &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(10)},
				apperror.New(apperror.CodeTransactionReverted, apperror.WithContext("execution reverted"))
		}
		event = domain.EventProductPurchased
	}

	ev := req.ABI.Events[event]
	data, err := ev.Inputs.Pack(new(big.Int).SetUint64(product.ID), product.Name, product.PriceWei, product.Owner, product.Purchased)
	require.NoError(g.t, err)

	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash,
		BlockNumber: big.NewInt(10),
		Logs: []*types.Log{{
			Address:     req.To,
			Topics:      []common.Hash{ev.ID},
			Data:        data,
			TxHash:      tx.Hash,
			BlockNumber: 10,
		}},
	}, nil
}

func (g *fakeGateway) lastSent() walletdomain.TxRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(g.t, g.sent)
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type fixture struct {
	chain   *fakeChain
	gateway *fakeGateway
	repo    *fakeRepository
	store   *Store
	session *Session
	orch    *Orchestrator
}

// newFixture wires a session on network with the marketplace deployed on
// Rinkeby only.
func newFixture(t *testing.T, network walletdomain.NetworkID) *fixture {
	t.Helper()

	parsed, err := contract.ParseMarketplaceABI()
	require.NoError(t, err)

	locator := NewLocator("Marketplace")
	locator.Load(domain.Deployments{
		"4": {"Marketplace": {rinkebyMarket.Hex()}},
	}, parsed)

	chain := &fakeChain{}
	f := &fixture{
		chain:   chain,
		gateway: newFakeGateway(t, chain, network),
		repo:    &fakeRepository{chain: chain},
		store:   NewStore(),
	}

	f.session, err = NewSession(f.gateway, locator, f.repo, f.store, testLogger())
	require.NoError(t, err)

	f.orch, err = NewOrchestrator(OrchestratorConfig{PurchaseGasLimit: 50000, Confirmations: 1}, f.session, testLogger())
	require.NoError(t, err)

	return f
}

// run starts the session loop and stops it at test cleanup.
func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) eventually(t *testing.T, cond func(domain.State) bool, msg string) domain.State {
	t.Helper()
	var last domain.State
	require.Eventually(t, func() bool {
		last = f.session.State()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, msg)
	return last
}
