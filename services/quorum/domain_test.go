package quorum

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/types"
)

func TestDomain_SeparatorMatchesTypedData(t *testing.T) {
	d := Domain{
		Name:              "Dexilon",
		Version:           "tests",
		ChainID:           1337,
		VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	}

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
		},
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           math.NewHexOrDecimal256(int64(d.ChainID)),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
	}
	want, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(want), d.Separator())
}

func TestDomain_SeparatorDistinguishesChains(t *testing.T) {
	a := Domain{Name: "Dexilon", Version: "tests", ChainID: 1337}
	b := a
	b.ChainID = 1
	c := a
	c.VerifyingContract = common.HexToAddress("0x01")

	assert.NotEqual(t, a.Separator(), b.Separator())
	assert.NotEqual(t, a.Separator(), c.Separator())
}

func TestBatchHash_Layout(t *testing.T) {
	ds, b := testBatch()

	// bytes32 || address(20) || address[] 每项补齐 32 字节 || uint256[] || uint256
	var buf []byte
	buf = append(buf, ds[:]...)
	buf = append(buf, b.Token[:]...)
	buf = append(buf, common.LeftPadBytes(b.Recipients[0][:], 32)...)
	amount := b.Amounts[0].Bytes32()
	buf = append(buf, amount[:]...)
	id := b.ID.Bytes32()
	buf = append(buf, id[:]...)

	assert.Equal(t, crypto.Keccak256Hash(buf), BatchHash(ds, b))
	assert.NotEqual(t, BatchHash(ds, b), SignedBatchHash(ds, b))
}

func TestBatchHash_SensitiveToEveryField(t *testing.T) {
	ds, b := testBatch()
	base := BatchHash(ds, b)

	mutations := map[string]func(*types.Batch){
		"token":     func(m *types.Batch) { m.Token = common.HexToAddress("0xbb") },
		"recipient": func(m *types.Batch) { m.Recipients = []common.Address{common.HexToAddress("0xb0b")} },
		"amount":    func(m *types.Batch) { m.Amounts = []*uint256.Int{uint256.NewInt(101)} },
		"id":        func(m *types.Batch) { m.ID = uint256.NewInt(2) },
	}
	for name, mutate := range mutations {
		_, m := testBatch()
		mutate(m)
		assert.NotEqual(t, base, BatchHash(ds, m), name)
	}
}
