package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
	"github.com/weisyn/bridge-go/wallet"
)

// BridgeClient 类型化的结算节点客户端
//
// 写方法使用绑定的钱包对请求签名。nonce 以当前纳秒时间为起点单调递增，
// 客户端重启后无需知道节点记录的上一次 nonce。签名域分隔符在第一次写请求时
// 从节点读取并缓存。
type BridgeClient struct {
	client Client
	wallet wallet.Wallet

	mu     sync.Mutex
	nonce  uint64
	domain *common.Hash
}

// NewBridgeClient 创建客户端；w 为 nil 时只能调用查询方法
func NewBridgeClient(c Client, w wallet.Wallet) *BridgeClient {
	return &BridgeClient{
		client: c,
		wallet: w,
		nonce:  uint64(time.Now().UnixNano()),
	}
}

// Dial 按配置连接节点
func Dial(config *Config, w wallet.Wallet) (*BridgeClient, error) {
	c, err := NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return NewBridgeClient(c, w), nil
}

// Transport 底层传输
func (b *BridgeClient) Transport() Client { return b.client }

// Close 关闭连接
func (b *BridgeClient) Close() error { return b.client.Close() }

// nextNonce 下一个 nonce
func (b *BridgeClient) nextNonce() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonce++
	return b.nonce
}

// signingDomain 节点签名域分隔符（只查询一次）
func (b *BridgeClient) signingDomain(ctx context.Context) (common.Hash, error) {
	b.mu.Lock()
	cached := b.domain
	b.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	sep, err := b.DomainSeparator(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch domain separator: %w", err)
	}
	b.mu.Lock()
	b.domain = &sep
	b.mu.Unlock()
	return sep, nil
}

// sign 对写请求签名
func (b *BridgeClient) sign(ctx context.Context, method string, payload interface{}) (types.CallAuth, error) {
	if b.wallet == nil {
		return types.CallAuth{}, fmt.Errorf("no wallet configured for %s", method)
	}
	domain, err := b.signingDomain(ctx)
	if err != nil {
		return types.CallAuth{}, err
	}
	nonce := b.nextNonce()
	digest, err := types.CallDigest(domain, method, payload, nonce)
	if err != nil {
		return types.CallAuth{}, err
	}
	sig, err := b.wallet.SignMessage(digest[:])
	if err != nil {
		return types.CallAuth{}, fmt.Errorf("sign %s: %w", method, err)
	}
	return types.CallAuth{
		From:      b.wallet.Address().Hex(),
		Nonce:     nonce,
		Signature: utils.EncodeHex(sig),
	}, nil
}

// ========== 查询 ==========

// Status 节点状态
func (b *BridgeClient) Status(ctx context.Context) (*types.StatusReply, error) {
	var reply types.StatusReply
	if err := b.client.Call(ctx, types.MethodGetStatus, types.EmptyArgs{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// DomainSeparator 节点签名域分隔符
func (b *BridgeClient) DomainSeparator(ctx context.Context) (common.Hash, error) {
	status, err := b.Status(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(status.DomainSeparator), nil
}

// ActiveValidators 验证者名单
func (b *BridgeClient) ActiveValidators(ctx context.Context) ([]common.Address, error) {
	var reply types.ValidatorsReply
	if err := b.client.Call(ctx, types.MethodGetActiveValidators, types.EmptyArgs{}, &reply); err != nil {
		return nil, err
	}
	return decodeAddresses(reply.Validators)
}

// SupportedTokens 支持的代币
func (b *BridgeClient) SupportedTokens(ctx context.Context) ([]common.Address, error) {
	var reply types.TokensReply
	if err := b.client.Call(ctx, types.MethodGetSupportedTokens, types.EmptyArgs{}, &reply); err != nil {
		return nil, err
	}
	return decodeAddresses(reply.Tokens)
}

// LockedBalance 代币锁定总额
func (b *BridgeClient) LockedBalance(ctx context.Context, token common.Address) (*uint256.Int, error) {
	return b.amount(ctx, types.MethodGetLockedBalance, types.TokenArgs{Token: token.Hex()})
}

// CreditedBalance 代币已记账总额
func (b *BridgeClient) CreditedBalance(ctx context.Context, token common.Address) (*uint256.Int, error) {
	return b.amount(ctx, types.MethodGetCreditedBalance, types.TokenArgs{Token: token.Hex()})
}

// AvailableBalance 账户可用余额
func (b *BridgeClient) AvailableBalance(ctx context.Context, token, account common.Address) (*uint256.Int, error) {
	return b.amount(ctx, types.MethodGetAvailableBalance, types.BalanceArgs{Token: token.Hex(), Account: account.Hex()})
}

// CollateralHeadroom 剩余可记账额度
func (b *BridgeClient) CollateralHeadroom(ctx context.Context, token common.Address) (*uint256.Int, error) {
	return b.amount(ctx, types.MethodGetCollateralHeadroom, types.TokenArgs{Token: token.Hex()})
}

// IsBatchRecorded 批次是否已结算
func (b *BridgeClient) IsBatchRecorded(ctx context.Context, id *uint256.Int) (bool, error) {
	var reply types.BatchRecordedReply
	if err := b.client.Call(ctx, types.MethodIsBatchRecorded, types.BatchIDArgs{BatchID: utils.FormatAmount(id)}, &reply); err != nil {
		return false, err
	}
	return reply.Recorded, nil
}

// BatchGetAvailableBalances 批量查询多个账户的可用余额，结果与 accounts 一一对应
func (b *BridgeClient) BatchGetAvailableBalances(ctx context.Context, token common.Address, accounts []common.Address, config *utils.BatchConfig) (*utils.BatchQueryResult[*uint256.Int], error) {
	return utils.BatchQuery(ctx, accounts, func(ctx context.Context, account common.Address, _ int) (*uint256.Int, error) {
		return b.AvailableBalance(ctx, token, account)
	}, config)
}

func (b *BridgeClient) amount(ctx context.Context, method string, args interface{}) (*uint256.Int, error) {
	var reply types.AmountReply
	if err := b.client.Call(ctx, method, args, &reply); err != nil {
		return nil, err
	}
	v, err := utils.ParseAmount(reply.Amount)
	if err != nil {
		return nil, NewInvalidResponseError("invalid amount", err)
	}
	return v, nil
}

// ========== 写操作 ==========

// Deposit 存入抵押
func (b *BridgeClient) Deposit(ctx context.Context, token common.Address, amount *uint256.Int) error {
	payload := types.DepositPayload{Token: token.Hex(), Amount: utils.FormatAmount(amount)}
	auth, err := b.sign(ctx, types.MethodDeposit, payload)
	if err != nil {
		return err
	}
	return b.write(ctx, types.MethodDeposit, &types.DepositArgs{Auth: auth, Payload: payload}, nil)
}

// SubmitBatch 提交经验证者签名的批次（调用方须为验证者）
func (b *BridgeClient) SubmitBatch(ctx context.Context, batch *types.Batch, signatures [][]byte) (*types.BatchReply, error) {
	payload := types.BatchPayload{
		Token:      batch.Token.Hex(),
		Recipients: utils.FormatAddresses(batch.Recipients),
		Amounts:    utils.FormatAmounts(batch.Amounts),
		BatchID:    utils.FormatAmount(batch.ID),
		Signatures: make([]string, len(signatures)),
	}
	for i, sig := range signatures {
		payload.Signatures[i] = utils.EncodeHex(sig)
	}
	auth, err := b.sign(ctx, types.MethodBatchUpdateAvailableBalances, payload)
	if err != nil {
		return nil, err
	}
	var reply types.BatchReply
	if err := b.write(ctx, types.MethodBatchUpdateAvailableBalances, &types.BatchArgs{Auth: auth, Payload: payload}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Withdraw 提取全部可用余额，返回提取金额
func (b *BridgeClient) Withdraw(ctx context.Context, token common.Address) (*uint256.Int, error) {
	payload := types.WithdrawPayload{Token: token.Hex()}
	auth, err := b.sign(ctx, types.MethodWithdraw, payload)
	if err != nil {
		return nil, err
	}
	var reply types.WithdrawReply
	if err := b.write(ctx, types.MethodWithdraw, &types.WithdrawArgs{Auth: auth, Payload: payload}, &reply); err != nil {
		return nil, err
	}
	v, err := utils.ParseAmount(reply.Amount)
	if err != nil {
		return nil, NewInvalidResponseError("invalid amount", err)
	}
	return v, nil
}

// AddValidators 增加验证者
func (b *BridgeClient) AddValidators(ctx context.Context, ids []common.Address) error {
	return b.validators(ctx, types.MethodAddValidators, ids)
}

// RemoveValidators 移除验证者
func (b *BridgeClient) RemoveValidators(ctx context.Context, ids []common.Address) error {
	return b.validators(ctx, types.MethodRemoveValidators, ids)
}

func (b *BridgeClient) validators(ctx context.Context, method string, ids []common.Address) error {
	payload := types.ValidatorsPayload{Validators: utils.FormatAddresses(ids)}
	auth, err := b.sign(ctx, method, payload)
	if err != nil {
		return err
	}
	return b.write(ctx, method, &types.ValidatorsArgs{Auth: auth, Payload: payload}, nil)
}

// SetSupportedToken 修改代币白名单
func (b *BridgeClient) SetSupportedToken(ctx context.Context, token common.Address, enabled bool) error {
	payload := types.SupportedTokenPayload{Token: token.Hex(), Enabled: enabled}
	auth, err := b.sign(ctx, types.MethodSetSupportedToken, payload)
	if err != nil {
		return err
	}
	return b.write(ctx, types.MethodSetSupportedToken, &types.SupportedTokenArgs{Auth: auth, Payload: payload}, nil)
}

// Pause 暂停
func (b *BridgeClient) Pause(ctx context.Context) error {
	return b.admin(ctx, types.MethodPause)
}

// Unpause 恢复
func (b *BridgeClient) Unpause(ctx context.Context) error {
	return b.admin(ctx, types.MethodUnpause)
}

func (b *BridgeClient) admin(ctx context.Context, method string) error {
	payload := types.EmptyPayload{}
	auth, err := b.sign(ctx, method, payload)
	if err != nil {
		return err
	}
	return b.write(ctx, method, &types.AdminArgs{Auth: auth, Payload: payload}, nil)
}

// TransferOwnership 转移所有权
func (b *BridgeClient) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	payload := types.OwnershipPayload{NewOwner: newOwner.Hex()}
	auth, err := b.sign(ctx, types.MethodTransferOwnership, payload)
	if err != nil {
		return err
	}
	return b.write(ctx, types.MethodTransferOwnership, &types.OwnershipArgs{Auth: auth, Payload: payload}, nil)
}

// write 发送签名写请求
//
// 请求一旦可能已送达节点就不再重试：节点可能已经执行，重发同一 nonce 只会得到
// UNAUTHORIZED。此时返回的网络错误表示结果未知，可用查询方法确认。
func (b *BridgeClient) write(ctx context.Context, method string, args types.SignedArgs, result interface{}) error {
	return b.client.Call(withSignedWrite(ctx), method, args, result)
}

// Subscribe 订阅事件
func (b *BridgeClient) Subscribe(ctx context.Context, topics ...string) (<-chan *types.Event, error) {
	return b.client.Subscribe(ctx, &types.EventFilter{Topics: topics})
}

func decodeAddresses(items []string) ([]common.Address, error) {
	addrs, err := utils.ParseAddresses(items)
	if err != nil {
		return nil, NewInvalidResponseError("invalid address", err)
	}
	return addrs, nil
}
