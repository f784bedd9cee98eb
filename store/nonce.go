package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// nonce/<caller>  uint64 大端 8 字节，调用方已使用的最大认证 nonce
var prefixNonce = []byte("nonce/")

func nonceKey(caller common.Address) []byte {
	return append(append([]byte{}, prefixNonce...), caller.Bytes()...)
}

// LoadNonce 读取调用方最近一次使用的 nonce，从未调用过时 ok 为 false
func (s *LevelDB) LoadNonce(caller common.Address) (nonce uint64, ok bool, err error) {
	v, err := s.db.Get(nonceKey(caller), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read nonce: %w", err)
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("corrupt nonce for %s", caller.Hex())
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// StoreNonce 记录调用方最近一次使用的 nonce
func (s *LevelDB) StoreNonce(caller common.Address, nonce uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], nonce)
	if err := s.db.Put(nonceKey(caller), v[:], &opt.WriteOptions{Sync: s.sync}); err != nil {
		return fmt.Errorf("write nonce: %w", err)
	}
	return nil
}
