package contract

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	seller       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyer        = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type chainProduct struct {
	name      string
	price     *big.Int
	owner     common.Address
	purchased bool
}

// fakeMarketplace answers eth_call for the marketplace views. delay(id)
// lets tests complete reads out of order.
type fakeMarketplace struct {
	t        *testing.T
	binding  *domain.ContractBinding
	products []chainProduct
	name     string
	delay    func(id uint64) time.Duration
	failOn   uint64
	wrongID  uint64
	count    *big.Int // overrides len(products) when set

	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (f *fakeMarketplace) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	require.Equal(f.t, contractAddr, to)

	method, err := f.binding.ABI.MethodById(data[:4])
	require.NoError(f.t, err)

	switch method.Name {
	case domain.MethodProductCount:
		if f.count != nil {
			return method.Outputs.Pack(f.count)
		}
		return method.Outputs.Pack(big.NewInt(int64(len(f.products))))
	case domain.MethodName:
		return method.Outputs.Pack(f.name)
	case domain.MethodProducts:
		args, err := method.Inputs.Unpack(data[4:])
		require.NoError(f.t, err)
		id := args[0].(*big.Int).Uint64()

		f.mu.Lock()
		f.inFlight++
		if f.inFlight > f.maxSeen {
			f.maxSeen = f.inFlight
		}
		f.mu.Unlock()
		defer func() {
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
		}()

		if f.delay != nil {
			select {
			case <-time.After(f.delay(id)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if id == f.failOn {
			return nil, errors.New("header not found")
		}

		p := f.products[id-1]
		returnedID := id
		if id == f.wrongID {
			returnedID = id + 100
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(returnedID), p.name, p.price, p.owner, p.purchased)
	}

	f.t.Fatalf("unexpected method %s", method.Name)
	return nil, nil
}

func newFixture(t *testing.T, products ...chainProduct) (*fakeMarketplace, *domain.ContractBinding) {
	t.Helper()
	parsed, err := ParseMarketplaceABI()
	require.NoError(t, err)

	binding := &domain.ContractBinding{Name: "Marketplace", Address: contractAddr, ABI: parsed, NetworkID: 4}
	return &fakeMarketplace{t: t, binding: binding, products: products, name: "Dapp Marketplace"}, binding
}

func newTestRepository(t *testing.T, caller Caller, concurrency int) *Repository {
	t.Helper()
	return newBoundedRepository(t, caller, concurrency, 0)
}

func newBoundedRepository(t *testing.T, caller Caller, concurrency, maxProducts int) *Repository {
	t.Helper()
	repo, err := NewRepository(RepositoryConfig{Concurrency: concurrency, MaxProducts: maxProducts}, caller,
		logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)
	return repo
}

func TestRepository_ListAll_PenAndBook(t *testing.T) {
	fake, binding := newFixture(t,
		chainProduct{name: "Pen", price: eth(1), owner: seller},
		chainProduct{name: "Book", price: eth(2), owner: buyer, purchased: true},
	)
	repo := newTestRepository(t, fake, 4)

	products, err := repo.ListAll(context.Background(), binding)
	require.NoError(t, err)
	require.Len(t, products, 2)

	require.Equal(t, domain.Product{ID: 1, Name: "Pen", PriceWei: eth(1), Price: "1.0", Owner: seller}, products[0])
	require.Equal(t, uint64(2), products[1].ID)
	require.Equal(t, "2.0", products[1].Price)
	require.True(t, products[1].Purchased)
}

func TestRepository_ListAll_OrderedUnderOutOfOrderCompletion(t *testing.T) {
	var chain []chainProduct
	for i := 0; i < 8; i++ {
		chain = append(chain, chainProduct{name: string(rune('A' + i)), price: big.NewInt(int64(i + 1)), owner: seller})
	}
	fake, binding := newFixture(t, chain...)
	// Earlier ids finish last.
	fake.delay = func(id uint64) time.Duration { return time.Duration(9-id) * 3 * time.Millisecond }

	repo := newTestRepository(t, fake, 3)
	products, err := repo.ListAll(context.Background(), binding)
	require.NoError(t, err)
	require.Len(t, products, 8)
	for i, p := range products {
		require.Equal(t, uint64(i+1), p.ID)
		require.Equal(t, chain[i].name, p.Name)
	}
	require.LessOrEqual(t, fake.maxSeen, 3)
}

func TestRepository_ListAll_Empty(t *testing.T) {
	fake, binding := newFixture(t)
	products, err := newTestRepository(t, fake, 2).ListAll(context.Background(), binding)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestRepository_ListAll_AnyFailureFailsWholeListing(t *testing.T) {
	tests := []struct {
		name    string
		failOn  uint64
		wrongID uint64
	}{
		{name: "rpc_error", failOn: 2},
		{name: "id_mismatch", wrongID: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, binding := newFixture(t,
				chainProduct{name: "a", price: big.NewInt(1), owner: seller},
				chainProduct{name: "b", price: big.NewInt(1), owner: seller},
				chainProduct{name: "c", price: big.NewInt(1), owner: seller},
			)
			fake.failOn = tt.failOn
			fake.wrongID = tt.wrongID

			products, err := newTestRepository(t, fake, 2).ListAll(context.Background(), binding)
			require.Nil(t, products)
			require.True(t, apperror.HasCode(err, apperror.CodeRepositoryReadError), "got %v", err)
		})
	}
}

func TestRepository_ListAll_Idempotent(t *testing.T) {
	fake, binding := newFixture(t,
		chainProduct{name: "Pen", price: eth(1), owner: seller},
	)
	repo := newTestRepository(t, fake, 2)

	a, err := repo.ListAll(context.Background(), binding)
	require.NoError(t, err)
	b, err := repo.ListAll(context.Background(), binding)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestRepository_ContractName(t *testing.T) {
	fake, binding := newFixture(t)
	name, err := newTestRepository(t, fake, 1).ContractName(context.Background(), binding)
	require.NoError(t, err)
	require.Equal(t, "Dapp Marketplace", name)
}

func TestParseABI_RequiresMarketplaceMethods(t *testing.T) {
	_, err := ParseABI(`[{"inputs":[],"name":"productCount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`)
	require.Error(t, err)

	_, err = ParseABI(`not json`)
	require.Error(t, err)
}

func TestRepository_ListAll_RejectsOversizedCount(t *testing.T) {
	tests := []struct {
		name        string
		count       *big.Int
		maxProducts int
	}{
		{name: "garbage_count", count: new(big.Int).Lsh(big.NewInt(1), 62)},
		{name: "above_configured_limit", count: big.NewInt(6), maxProducts: 5},
		{name: "above_default_limit", count: big.NewInt(DefaultMaxProducts + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, binding := newFixture(t)
			fake.count = tt.count
			repo := newBoundedRepository(t, fake, 4, tt.maxProducts)

			products, err := repo.ListAll(context.Background(), binding)
			require.Nil(t, products)
			require.True(t, apperror.HasCode(err, apperror.CodeRepositoryReadError), "got %v", err)
			require.Contains(t, err.Error(), "exceeds limit")
			require.Zero(t, fake.maxSeen, "no product reads are issued")
		})
	}
}

func TestRepository_ListAll_CountAtLimit(t *testing.T) {
	fake, binding := newFixture(t,
		chainProduct{name: "Pen", price: eth(1), owner: seller},
		chainProduct{name: "Book", price: eth(2), owner: seller},
	)
	repo := newBoundedRepository(t, fake, 2, 2)

	products, err := repo.ListAll(context.Background(), binding)
	require.NoError(t, err)
	require.Len(t, products, 2)
}
