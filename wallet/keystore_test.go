package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeystore_SaveLoad(t *testing.T) {
	km, err := NewLightKeystoreManager(t.TempDir())
	require.NoError(t, err)

	w := MustFromPrivateKey(hardhatKey)
	path, err := km.Save(w, "secret")
	require.NoError(t, err)
	assert.Equal(t, km.Path(w.Address()), path)

	loaded, err := km.Load(w.Address(), "secret")
	require.NoError(t, err)
	assert.Equal(t, w.Address(), loaded.Address())

	// 同一私钥签名结果一致
	msg := []byte("batch")
	want, err := w.SignMessage(msg)
	require.NoError(t, err)
	got, err := loaded.SignMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	addrs, err := km.List()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{w.Address()}, addrs)
}

func TestKeystore_WrongPassword(t *testing.T) {
	km, err := NewLightKeystoreManager(t.TempDir())
	require.NoError(t, err)

	w := MustFromPrivateKey(hardhatKey)
	_, err = km.Save(w, "secret")
	require.NoError(t, err)

	_, err = km.Load(w.Address(), "wrong")
	assert.ErrorIs(t, err, keystore.ErrDecrypt)
}

func TestKeystore_Missing(t *testing.T) {
	km, err := NewLightKeystoreManager(t.TempDir())
	require.NoError(t, err)
	_, err = km.Load(MustFromPrivateKey(hardhatKey).Address(), "secret")
	assert.Error(t, err)
}
