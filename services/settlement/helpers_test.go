package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

var validatorKeys = []string{
	"c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3",
	"ae6ae8e5ccbfb04590405997ee2d52d2b330726137b875053c36d94e974d162f",
	"0dbbe8e4ae425a6d2687f1a7e3ba17bc98c673636790f1b8ad91193c05875ef1",
	"c88b703fb08cbea894b6aeff5a544fb92e78a18e19814cd85da83b71f772aa6c",
	"388c684f0ba1ef5017716adb5d21a053ea8e90277d0868337519f97bede61418",
	"659cbb0e2411a44db63778987b1e22153c086a95eb6b18bdf89de078917abc63",
	"82d052c865f5763aad42add438569276c00d3d88a2d062d36b2bae914d58b8c8",
	"aa3680d5d48a8283413f7a108367c7299ca73f553735860a87b08f39395618b7",
	"0f62d96d6675f32685bbdb8ac13cda7c23436f63efbb9d07700d8669ff12b7c4",
	"8d5366123cb560bb606379f90a0bfd4769eecc0557f1b362dcae9012b548b1e5",
}

const ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fixture struct {
	engine     *Engine
	custody    *MemoryCustody
	owner      wallet.Wallet
	validators []wallet.Wallet
	events     *eventRecorder
	metrics    *metricsRecorder
}

// newFixture 11 人名单：10 个持有私钥的验证者 + 所有者本人
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	owner := wallet.MustFromPrivateKey(ownerKey)
	validators := make([]wallet.Wallet, len(validatorKeys))
	roster := make([]common.Address, 0, len(validatorKeys)+1)
	for i, key := range validatorKeys {
		validators[i] = wallet.MustFromPrivateKey(key)
		roster = append(roster, validators[i].Address())
	}
	roster = append(roster, owner.Address())

	cfg := testConfig(owner.Address(), roster)

	f := &fixture{
		custody:    NewMemoryCustody(),
		owner:      owner,
		validators: validators,
		events:     &eventRecorder{},
		metrics:    newMetricsRecorder(),
	}
	all := append([]Option{
		WithCustody(f.custody),
		WithEventSink(f.events),
		WithMetrics(f.metrics),
	}, opts...)

	engine, err := NewService(cfg, all...)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func testConfig(owner common.Address, roster []common.Address) *services.Config {
	return &services.Config{
		Domain: quorum.Domain{
			Name:              "Dexilon",
			Version:           "tests",
			ChainID:           1337,
			VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		},
		Owner:      owner,
		Validators: roster,
		Tokens:     []common.Address{tokenA},
		Quorum:     quorum.DefaultPolicy(),
	}
}

// fund 给账户发放外部余额并存入抵押
func (f *fixture) fund(t *testing.T, token, account common.Address, amount uint64) {
	t.Helper()
	f.custody.Mint(token, account, uint256.NewInt(amount))
	require.NoError(t, f.engine.Deposit(context.Background(), account, token, uint256.NewInt(amount)))
}

// sign 前 n 个验证者签名
func (f *fixture) sign(t *testing.T, b *types.Batch, n int) [][]byte {
	t.Helper()
	sigs, err := quorum.SignBatchAll(f.validators[:n], f.engine.DomainSeparator(), b)
	require.NoError(t, err)
	return sigs
}

func (f *fixture) submitter() common.Address {
	return f.validators[0].Address()
}

func newBatch(id uint64, token common.Address, pairs ...interface{}) *types.Batch {
	b := &types.Batch{Token: token, ID: uint256.NewInt(id)}
	for i := 0; i+1 < len(pairs); i += 2 {
		b.Recipients = append(b.Recipients, pairs[i].(common.Address))
		b.Amounts = append(b.Amounts, uint256.NewInt(uint64(pairs[i+1].(int))))
	}
	return b
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	be, ok := types.IsBridgeError(err)
	require.True(t, ok, "expected BridgeError, got %v", err)
	require.Equal(t, code, be.Code, "unexpected error: %v", err)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *eventRecorder) Publish(ev *types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

func (r *eventRecorder) last() *types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type metricsRecorder struct {
	mu          sync.Mutex
	settlements map[string]int
	deposits    map[string]int
	withdrawals map[string]int
	roster      int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{
		settlements: make(map[string]int),
		deposits:    make(map[string]int),
		withdrawals: make(map[string]int),
	}
}

func (m *metricsRecorder) ObserveSettlement(result string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[result]++
}

func (m *metricsRecorder) ObserveDeposit(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deposits[result]++
}

func (m *metricsRecorder) ObserveWithdrawal(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[result]++
}

func (m *metricsRecorder) SetRosterSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = n
}

// memoryStore 内存状态库，failNext 时下一次 Commit 失败
type memoryStore struct {
	mu       sync.Mutex
	snap     *Snapshot
	commits  int
	failNext bool
}

var errInjected = errors.New("injected commit failure")

func (s *memoryStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, nil
	}
	restored := newState()
	restored.apply(s.snap.ChangeSet())
	return restored.snapshot(), nil
}

func (s *memoryStore) Commit(cs *ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errInjected
	}
	current := newState()
	if s.snap != nil {
		current.apply(s.snap.ChangeSet())
	}
	current.apply(cs)
	s.snap = current.snapshot()
	s.commits++
	return nil
}

func (s *memoryStore) Close() error { return nil }

// failingCustody 转账总是失败
type failingCustody struct{}

func (failingCustody) TransferIn(context.Context, common.Address, common.Address, *uint256.Int) error {
	return errors.New("token reverted")
}

func (failingCustody) TransferOut(context.Context, common.Address, common.Address, *uint256.Int) error {
	return errors.New("token reverted")
}
