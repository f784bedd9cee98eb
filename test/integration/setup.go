// Package integration 进程内节点的端到端测试夹具
//
// 每个测试启动一个真实监听的节点（LevelDB 状态库 + HTTP/WebSocket/gRPC 接入层），
// 通过 client 包访问，覆盖从签名、传输到持久化的完整链路。
package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/client"
	"github.com/weisyn/bridge-go/metrics"
	"github.com/weisyn/bridge-go/server"
	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/store"
	"github.com/weisyn/bridge-go/wallet"
)

const (
	// DefaultTimeout 默认超时时间
	DefaultTimeout = 10 * time.Second
	// StartupTimeout 节点启动超时时间
	StartupTimeout = 5 * time.Second
)

// hardhat 默认账户：0 所有者，1-3 验证者，4-5 用户
const (
	OwnerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	UserKey  = "47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a"
	User2Key = "8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba"
)

// ValidatorKeys 初始验证者私钥
var ValidatorKeys = []string{
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
}

// TestToken 测试代币地址
var TestToken = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// TestNode 进程内节点
type TestNode struct {
	Owner      wallet.Wallet
	User       wallet.Wallet
	User2      wallet.Wallet
	Validators []wallet.Wallet
	Custody    *settlement.MemoryCustody

	dataDir string
	db      *store.LevelDB
	engine  *settlement.Engine
	hub     *server.Hub
	server  *server.Server
	cancel  context.CancelFunc
	done    chan error
}

// SetupTestNode 启动节点，测试结束时自动关闭
func SetupTestNode(t *testing.T) *TestNode {
	t.Helper()

	n := &TestNode{
		Owner:   wallet.MustFromPrivateKey(OwnerKey),
		User:    wallet.MustFromPrivateKey(UserKey),
		User2:   wallet.MustFromPrivateKey(User2Key),
		Custody: settlement.NewMemoryCustody(),
		dataDir: t.TempDir(),
	}
	for _, key := range ValidatorKeys {
		n.Validators = append(n.Validators, wallet.MustFromPrivateKey(key))
	}

	n.start(t)
	t.Cleanup(func() { n.stop(t) })
	return n
}

// Restart 关闭节点后用同一数据目录重新启动
func (n *TestNode) Restart(t *testing.T) {
	t.Helper()
	n.stop(t)
	n.start(t)
}

func (n *TestNode) start(t *testing.T) {
	t.Helper()

	// 1. 状态库
	db, err := store.Open(n.dataDir, true)
	require.NoError(t, err, "打开状态库失败")
	n.db = db

	// 2. 引擎
	registry := prometheus.NewRegistry()
	recorder, err := metrics.New(registry)
	require.NoError(t, err)

	roster := make([]common.Address, len(n.Validators))
	for i, v := range n.Validators {
		roster[i] = v.Address()
	}
	hub := server.NewHub(nil)
	n.hub = hub
	n.engine, err = settlement.NewService(&services.Config{
		Domain:     quorum.Domain{Name: "Bridge", Version: "1", ChainID: 1337, VerifyingContract: TestToken},
		Owner:      n.Owner.Address(),
		Validators: roster,
		Tokens:     []common.Address{TestToken},
		Quorum:     quorum.DefaultPolicy(),
	},
		settlement.WithStore(db),
		settlement.WithCustody(n.Custody),
		settlement.WithEventSink(hub),
		settlement.WithMetrics(recorder),
	)
	require.NoError(t, err, "创建引擎失败")

	// 3. 接入层
	n.server, err = server.New(server.Config{
		HTTPAddr:        "127.0.0.1:0",
		GRPCAddr:        "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, n.engine, hub, server.Options{
		Nonces:   db,
		Registry: registry,
		Recorder: recorder,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan error, 1)
	go func() { n.done <- n.server.Run(ctx) }()

	select {
	case <-n.server.Ready():
	case err := <-n.done:
		t.Fatalf("节点启动失败: %v", err)
	case <-time.After(StartupTimeout):
		t.Fatal("节点启动超时")
	}
}

func (n *TestNode) stop(t *testing.T) {
	t.Helper()
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.cancel = nil
	select {
	case err := <-n.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("节点关闭时出现警告: %v", err)
		}
	case <-time.After(DefaultTimeout):
		t.Error("节点关闭超时")
	}
	require.NoError(t, n.db.Close())
}

// Engine 当前引擎
func (n *TestNode) Engine() *settlement.Engine { return n.engine }

// Subscribers 当前事件订阅数
func (n *TestNode) Subscribers() int { return n.hub.Len() }

// Endpoint 指定协议的端点地址
func (n *TestNode) Endpoint(protocol client.Protocol) string {
	switch protocol {
	case client.ProtocolWebSocket:
		return fmt.Sprintf("ws://%s%s", n.server.HTTPAddr(), server.PathWS)
	case client.ProtocolGRPC:
		return n.server.GRPCAddr().String()
	default:
		return fmt.Sprintf("http://%s%s", n.server.HTTPAddr(), server.PathRPC)
	}
}

// MetricsURL 指标端点
func (n *TestNode) MetricsURL() string {
	return fmt.Sprintf("http://%s%s", n.server.HTTPAddr(), server.PathMetrics)
}

// SetupTestClient 为钱包创建指定协议的客户端（w 为 nil 时只读），测试结束时关闭
func (n *TestNode) SetupTestClient(t *testing.T, protocol client.Protocol, w wallet.Wallet) *client.BridgeClient {
	t.Helper()
	c, err := client.Dial(&client.Config{
		Endpoint: n.Endpoint(protocol),
		Protocol: protocol,
		Timeout:  int(DefaultTimeout.Seconds()),
	}, w)
	require.NoError(t, err, "创建客户端失败")
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("关闭客户端时出现警告: %v", err)
		}
	})
	return c
}

// FundTestAccount 在托管中为账户发放外部余额
func (n *TestNode) FundTestAccount(account common.Address, amount uint64) {
	n.Custody.Mint(TestToken, account, uint256.NewInt(amount))
}
