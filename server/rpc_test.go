package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/types"
)

func TestRPC_Status(t *testing.T) {
	n := newNode(t)

	var status types.StatusReply
	resp := n.rpc(t, types.MethodGetStatus, types.EmptyArgs{}, &status)
	require.Nil(t, resp.Error)

	assert.Equal(t, n.owner.Address().Hex(), status.Owner)
	assert.False(t, status.Paused)
	assert.Equal(t, 3, status.Validators)
	assert.Equal(t, n.engine.DomainSeparator().Hex(), status.DomainSeparator)
	assert.Equal(t, types.QuorumInfo{Numerator: 2, Denominator: 3, MinRoster: 3}, status.Quorum)

	var tokens types.TokensReply
	require.Nil(t, n.rpc(t, types.MethodGetSupportedTokens, types.EmptyArgs{}, &tokens).Error)
	assert.Equal(t, []string{testToken.Hex()}, tokens.Tokens)
}

func TestRPC_SettlementFlow(t *testing.T) {
	n := newNode(t)
	n.fund(t, n.user, 1000)

	// 1. 存入
	deposit := types.DepositPayload{Token: testToken.Hex(), Amount: "1000"}
	resp := n.rpc(t, types.MethodDeposit, types.DepositArgs{
		Auth:    n.auth(t, n.user, types.MethodDeposit, deposit),
		Payload: deposit,
	}, nil)
	require.Nil(t, resp.Error)

	var locked types.AmountReply
	require.Nil(t, n.rpc(t, types.MethodGetLockedBalance, types.TokenArgs{Token: testToken.Hex()}, &locked).Error)
	assert.Equal(t, "1000", locked.Amount)

	// 2. 验证者提交批次
	batch := n.batchPayload(t, 7, n.user.Address(), 400)
	var settled types.BatchReply
	resp = n.rpc(t, types.MethodBatchUpdateAvailableBalances, types.BatchArgs{
		Auth:    n.auth(t, n.validators[0], types.MethodBatchUpdateAvailableBalances, batch),
		Payload: batch,
	}, &settled)
	require.Nil(t, resp.Error)
	assert.Equal(t, types.BatchReply{BatchID: "7", Total: "400", Signers: 3}, settled)

	var recorded types.BatchRecordedReply
	require.Nil(t, n.rpc(t, types.MethodIsBatchRecorded, types.BatchIDArgs{BatchID: "7"}, &recorded).Error)
	assert.True(t, recorded.Recorded)

	var headroom types.AmountReply
	require.Nil(t, n.rpc(t, types.MethodGetCollateralHeadroom, types.TokenArgs{Token: testToken.Hex()}, &headroom).Error)
	assert.Equal(t, "600", headroom.Amount)

	// 3. 重放同一批次
	resp = n.rpc(t, types.MethodBatchUpdateAvailableBalances, types.BatchArgs{
		Auth:    n.auth(t, n.validators[1], types.MethodBatchUpdateAvailableBalances, batch),
		Payload: batch,
	}, nil)
	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Error.Data)
	assert.Equal(t, types.CodeBatchAlreadyRecorded, resp.Error.Data.Code)

	// 4. 提取
	withdraw := types.WithdrawPayload{Token: testToken.Hex()}
	var withdrawn types.WithdrawReply
	resp = n.rpc(t, types.MethodWithdraw, types.WithdrawArgs{
		Auth:    n.auth(t, n.user, types.MethodWithdraw, withdraw),
		Payload: withdraw,
	}, &withdrawn)
	require.Nil(t, resp.Error)
	assert.Equal(t, "400", withdrawn.Amount)
	assert.Equal(t, "400", n.custody.BalanceOf(testToken, n.user.Address()).Dec())

	var available types.AmountReply
	require.Nil(t, n.rpc(t, types.MethodGetAvailableBalance, types.BalanceArgs{
		Token: testToken.Hex(), Account: n.user.Address().Hex(),
	}, &available).Error)
	assert.Equal(t, "0", available.Amount)
}

func TestRPC_ErrorMapping(t *testing.T) {
	n := newNode(t)

	// 非验证者提交批次
	batch := n.batchPayload(t, 1, n.user.Address(), 1)
	resp := n.rpc(t, types.MethodBatchUpdateAvailableBalances, types.BatchArgs{
		Auth:    n.auth(t, n.user, types.MethodBatchUpdateAvailableBalances, batch),
		Payload: batch,
	}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(json2.E_SERVER), resp.Error.Code)
	assert.Equal(t, "Only validator!", resp.Error.Message)
	require.NotNil(t, resp.Error.Data)
	assert.Equal(t, types.CodeOnlyValidator, resp.Error.Data.Code)
	assert.Equal(t, types.LayerSettlement, resp.Error.Data.Layer)
	assert.NotEmpty(t, resp.Error.Data.TraceID)

	// 参数错误
	resp = n.rpc(t, types.MethodGetLockedBalance, types.TokenArgs{Token: "not-an-address"}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(json2.E_BAD_PARAMS), resp.Error.Code)
	assert.Equal(t, types.CodeInvalidParams, resp.Error.Data.Code)

	// 认证失败
	pause := types.EmptyPayload{}
	auth := n.auth(t, n.owner, types.MethodPause, pause)
	auth.From = n.user.Address().Hex()
	resp = n.rpc(t, types.MethodPause, types.AdminArgs{Auth: auth, Payload: pause}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.CodeUnauthorized, resp.Error.Data.Code)
	assert.False(t, n.engine.Paused())
}

func TestRPC_AdminFlow(t *testing.T) {
	n := newNode(t)

	pause := types.EmptyPayload{}
	require.Nil(t, n.rpc(t, types.MethodPause, types.AdminArgs{
		Auth: n.auth(t, n.owner, types.MethodPause, pause), Payload: pause,
	}, nil).Error)
	assert.True(t, n.engine.Paused())

	// 暂停期间存入被拒绝
	n.fund(t, n.user, 10)
	deposit := types.DepositPayload{Token: testToken.Hex(), Amount: "10"}
	resp := n.rpc(t, types.MethodDeposit, types.DepositArgs{
		Auth: n.auth(t, n.user, types.MethodDeposit, deposit), Payload: deposit,
	}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.CodeSystemPaused, resp.Error.Data.Code)

	require.Nil(t, n.rpc(t, types.MethodUnpause, types.AdminArgs{
		Auth: n.auth(t, n.owner, types.MethodUnpause, pause), Payload: pause,
	}, nil).Error)

	add := types.ValidatorsPayload{Validators: []string{n.user.Address().Hex()}}
	require.Nil(t, n.rpc(t, types.MethodAddValidators, types.ValidatorsArgs{
		Auth: n.auth(t, n.owner, types.MethodAddValidators, add), Payload: add,
	}, nil).Error)

	var validators types.ValidatorsReply
	require.Nil(t, n.rpc(t, types.MethodGetActiveValidators, types.EmptyArgs{}, &validators).Error)
	assert.Len(t, validators.Validators, 4)
	assert.Contains(t, validators.Validators, n.user.Address().Hex())

	require.Nil(t, n.rpc(t, types.MethodRemoveValidators, types.ValidatorsArgs{
		Auth: n.auth(t, n.owner, types.MethodRemoveValidators, add), Payload: add,
	}, nil).Error)

	token := types.SupportedTokenPayload{Token: testToken.Hex(), Enabled: false}
	require.Nil(t, n.rpc(t, types.MethodSetSupportedToken, types.SupportedTokenArgs{
		Auth: n.auth(t, n.owner, types.MethodSetSupportedToken, token), Payload: token,
	}, nil).Error)
	assert.Empty(t, n.engine.GetSupportedTokens())

	transfer := types.OwnershipPayload{NewOwner: n.user.Address().Hex()}
	require.Nil(t, n.rpc(t, types.MethodTransferOwnership, types.OwnershipArgs{
		Auth: n.auth(t, n.owner, types.MethodTransferOwnership, transfer), Payload: transfer,
	}, nil).Error)
	assert.Equal(t, n.user.Address(), n.engine.Owner())
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	n := newNode(t)
	n.rpc(t, types.MethodGetStatus, types.EmptyArgs{}, nil)

	resp, err := http.Get(n.http.URL + PathHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	var health healthReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, healthReply{Status: "ok", Validators: 3}, health)

	mresp, err := http.Get(n.http.URL + PathMetrics)
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "bridge_validators 3"), text)
	assert.True(t, strings.Contains(text, `bridge_rpc_request_duration_seconds_count{method="bridge.GetStatus"} 1`), text)
}
