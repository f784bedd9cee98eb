package quorum

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

const sigWithoutVersion = "0x5d99b6f7f6d1f73d1a26497f2b1c89b24c0993913f86e9a2d02cd69887d9c94f3c880358579d811b21dd1b7fd9bb01c1d81d10e69f0384e675c32b39643be892"

var testMessage = crypto.Keccak256Hash([]byte("OpenZeppelin"))

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	be, ok := types.IsBridgeError(err)
	require.True(t, ok, "expected BridgeError, got %v", err)
	require.Equal(t, code, be.Code, "unexpected error: %v", err)
}

func TestRecover_KnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		hash    common.Hash
		sig     string
		want    string
		errCode string
	}{
		{
			name: "version 1b",
			hash: testMessage,
			sig:  sigWithoutVersion + "1b",
			want: "0x2cc1166f6212628A0deEf2B33BEFB2187D35b86c",
		},
		{
			name:    "version 00",
			hash:    testMessage,
			sig:     sigWithoutVersion + "00",
			errCode: types.CodeInvalidSignature,
		},
		{
			name:    "version 02",
			hash:    testMessage,
			sig:     sigWithoutVersion + "02",
			errCode: types.CodeInvalidSignature,
		},
		{
			name:    "unrecoverable point",
			hash:    testMessage,
			sig:     "0x332ce75a821c982f9127538858900d87d3ec1f9f737338ad67cad133fa48feff48e6fa0c18abc62e42820f05943e47af3e9fbe306ce74d64094bdf1691ee53e01c",
			errCode: types.CodeInvalidSignature,
		},
		{
			name:    "high s",
			hash:    common.HexToHash("0xb94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"),
			sig:     "0xe742ff452d41413616a5bf43fe15dd88294e983d3d36206c2712f39083d638bde0a0fc89be718fbc1033e1d30d78be1c68081562ed2e97af876f286f3453231d1b",
			errCode: types.CodeInvalidSignatureS,
		},
		{
			name:    "short",
			hash:    testMessage,
			sig:     "0x1234",
			errCode: types.CodeInvalidSignatureLength,
		},
		{
			name:    "long",
			hash:    testMessage,
			sig:     "0x" + strings.Repeat("0123456789", 10),
			errCode: types.CodeInvalidSignatureLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Recover(tt.hash, hexutil.MustDecode(tt.sig))
			if tt.errCode != "" {
				requireCode(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tt.want), got)
		})
	}
}

func TestRecover_PersonalMessage(t *testing.T) {
	w := wallet.MustFromPrivateKey("c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3")

	sig, err := w.SignMessage(testMessage[:])
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	got, err := RecoverPersonal(testMessage[:], sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), got)

	wrong := crypto.Keccak256Hash([]byte("Nope"))
	other, err := RecoverPersonal(wrong[:], sig)
	require.NoError(t, err)
	assert.NotEqual(t, w.Address(), other)
}

func TestRecover_DoesNotMutateInput(t *testing.T) {
	sig := hexutil.MustDecode(sigWithoutVersion + "1b")
	_, err := Recover(testMessage, sig)
	require.NoError(t, err)
	assert.Equal(t, byte(0x1b), sig[64])
}
