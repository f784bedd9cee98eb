package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/metrics"
	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
	"github.com/weisyn/bridge-go/wallet"
)

// hardhat 默认账户 0-4
const (
	ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	userKey  = "47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a"
)

var validatorKeys = []string{
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
}

var testToken = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

var testDomain = quorum.Domain{Name: "Bridge", Version: "1", ChainID: 1337, VerifyingContract: testToken}

type node struct {
	engine     *settlement.Engine
	custody    *settlement.MemoryCustody
	hub        *Hub
	server     *Server
	http       *httptest.Server
	recorder   *metrics.Recorder
	owner      wallet.Wallet
	user       wallet.Wallet
	validators []wallet.Wallet
	nonces     map[common.Address]uint64
}

func newNode(t *testing.T) *node {
	t.Helper()

	n := &node{
		custody: settlement.NewMemoryCustody(),
		owner:   wallet.MustFromPrivateKey(ownerKey),
		user:    wallet.MustFromPrivateKey(userKey),
		nonces:  make(map[common.Address]uint64),
	}
	roster := make([]common.Address, len(validatorKeys))
	for i, key := range validatorKeys {
		w := wallet.MustFromPrivateKey(key)
		n.validators = append(n.validators, w)
		roster[i] = w.Address()
	}

	registry := prometheus.NewRegistry()
	recorder, err := metrics.New(registry)
	require.NoError(t, err)
	n.recorder = recorder
	n.hub = NewHub(nil)

	cfg := &services.Config{
		Domain:     testDomain,
		Owner:      n.owner.Address(),
		Validators: roster,
		Tokens:     []common.Address{testToken},
		Quorum:     quorum.DefaultPolicy(),
	}
	n.engine, err = settlement.NewService(cfg,
		settlement.WithCustody(n.custody),
		settlement.WithEventSink(n.hub),
		settlement.WithMetrics(recorder),
	)
	require.NoError(t, err)

	n.server, err = New(Config{HTTPAddr: "127.0.0.1:0"}, n.engine, n.hub, Options{
		Registry: registry,
		Recorder: recorder,
	})
	require.NoError(t, err)

	n.http = httptest.NewServer(n.server.Handler())
	t.Cleanup(func() {
		n.hub.Close()
		n.http.Close()
	})
	return n
}

// auth 为 w 生成下一个 nonce 的调用签名
func (n *node) auth(t *testing.T, w wallet.Wallet, method string, payload interface{}) types.CallAuth {
	t.Helper()
	n.nonces[w.Address()]++
	return signAuth(t, w, n.engine.DomainSeparator(), method, payload, n.nonces[w.Address()])
}

func signAuth(t *testing.T, w wallet.Wallet, domainSeparator common.Hash, method string, payload interface{}, nonce uint64) types.CallAuth {
	t.Helper()
	digest, err := types.CallDigest(domainSeparator, method, payload, nonce)
	require.NoError(t, err)
	sig, err := w.SignMessage(digest[:])
	require.NoError(t, err)
	return types.CallAuth{From: w.Address().Hex(), Nonce: nonce, Signature: utils.EncodeHex(sig)}
}

// batchPayload 三个验证者全部签名的批次
func (n *node) batchPayload(t *testing.T, id uint64, recipient common.Address, amount uint64) types.BatchPayload {
	t.Helper()
	batch := &types.Batch{
		Token:      testToken,
		Recipients: []common.Address{recipient},
		Amounts:    []*uint256.Int{uint256.NewInt(amount)},
		ID:         uint256.NewInt(id),
	}
	sigs, err := quorum.SignBatchAll(n.validators, n.engine.DomainSeparator(), batch)
	require.NoError(t, err)

	p := types.BatchPayload{
		Token:      testToken.Hex(),
		Recipients: utils.FormatAddresses(batch.Recipients),
		Amounts:    utils.FormatAmounts(batch.Amounts),
		BatchID:    utils.FormatAmount(batch.ID),
	}
	for _, s := range sigs {
		p.Signatures = append(p.Signatures, utils.EncodeHex(s))
	}
	return p
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int                   `json:"code"`
		Message string                `json:"message"`
		Data    *types.ProblemDetails `json:"data"`
	} `json:"error"`
}

// rpc 发送 JSON-RPC 请求，result 非 nil 时解码结果
func (n *node) rpc(t *testing.T, method string, params, result interface{}) *rpcResponse {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	resp, err := http.Post(n.http.URL+PathRPC, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	if out.Error == nil && result != nil {
		require.NoError(t, json.Unmarshal(out.Result, result))
	}
	return &out
}

func (n *node) fund(t *testing.T, w wallet.Wallet, amount uint64) {
	t.Helper()
	n.custody.Mint(testToken, w.Address(), uint256.NewInt(amount))
}
