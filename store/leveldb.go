// Package store 结算状态的 LevelDB 持久化
package store

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/types"
)

// 键布局
//
//	meta/owner                       20 字节地址
//	meta/paused                      1 字节
//	meta/validators                  20 字节地址顺序拼接
//	meta/tokens                      20 字节地址顺序拼接
//	locked/<token>                   uint256 大端 32 字节
//	credited/<token>                 uint256 大端 32 字节
//	avail/<token><account>           uint256 大端 32 字节
//	batch/<id>                       存在即已结算
var (
	keyOwner      = []byte("meta/owner")
	keyPaused     = []byte("meta/paused")
	keyValidators = []byte("meta/validators")
	keyTokens     = []byte("meta/tokens")

	prefixLocked    = []byte("locked/")
	prefixCredited  = []byte("credited/")
	prefixAvailable = []byte("avail/")
	prefixBatch     = []byte("batch/")
)

// LevelDB 基于 goleveldb 的 settlement.Store 实现
//
// 每个 ChangeSet 编码为一个 leveldb.Batch 同步写入，保证原子性。
type LevelDB struct {
	db   *leveldb.DB
	sync bool
}

var _ settlement.Store = (*LevelDB)(nil)

// Open 打开（或创建）目录下的数据库
func Open(path string, sync bool) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db, sync: sync}, nil
}

// OpenMemory 打开内存数据库（测试与演示用）
func OpenMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// Load 读取完整状态；库为空时返回 (nil, nil)
func (s *LevelDB) Load() (*settlement.Snapshot, error) {
	owner, err := s.db.Get(keyOwner, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read owner: %w", err)
	}

	snap := &settlement.Snapshot{Owner: common.BytesToAddress(owner)}

	// 1. 元数据
	if v, err := s.get(keyPaused); err != nil {
		return nil, err
	} else if len(v) == 1 {
		snap.Paused = v[0] == 1
	}
	if snap.Validators, err = s.getAddresses(keyValidators); err != nil {
		return nil, err
	}
	if snap.Tokens, err = s.getAddresses(keyTokens); err != nil {
		return nil, err
	}

	// 2. 账本
	scans := []struct {
		prefix []byte
		kind   settlement.EntryKind
	}{
		{prefixLocked, settlement.EntryLocked},
		{prefixCredited, settlement.EntryCredited},
		{prefixAvailable, settlement.EntryAvailable},
	}
	for _, scan := range scans {
		err := s.iterate(scan.prefix, func(key, value []byte) error {
			entry, err := decodeEntry(scan.kind, key, value)
			if err != nil {
				return err
			}
			snap.Ledger = append(snap.Ledger, entry)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// 3. 已结算批次
	err = s.iterate(prefixBatch, func(key, _ []byte) error {
		if len(key) != 32 {
			return fmt.Errorf("corrupt batch key length %d", len(key))
		}
		var k types.BatchKey
		copy(k[:], key)
		snap.Batches = append(snap.Batches, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit 原子写入一组变更
func (s *LevelDB) Commit(cs *settlement.ChangeSet) error {
	batch := new(leveldb.Batch)

	if cs.Owner != nil {
		batch.Put(keyOwner, cs.Owner.Bytes())
	}
	if cs.Paused != nil {
		flag := byte(0)
		if *cs.Paused {
			flag = 1
		}
		batch.Put(keyPaused, []byte{flag})
	}
	if cs.ValidatorsChanged {
		batch.Put(keyValidators, encodeAddresses(cs.Validators))
	}
	if cs.TokensChanged {
		batch.Put(keyTokens, encodeAddresses(cs.Tokens))
	}
	for _, e := range cs.Ledger {
		key, err := entryKey(e)
		if err != nil {
			return err
		}
		if e.Value == nil || e.Value.IsZero() {
			batch.Delete(key)
			continue
		}
		word := e.Value.Bytes32()
		batch.Put(key, word[:])
	}
	for _, k := range cs.Batches {
		batch.Put(append(append([]byte{}, prefixBatch...), k[:]...), []byte{1})
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *LevelDB) Close() error {
	return s.db.Close()
}

func (s *LevelDB) get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (s *LevelDB) getAddresses(key []byte) ([]common.Address, error) {
	v, err := s.get(key)
	if err != nil {
		return nil, err
	}
	return decodeAddresses(v)
}

// iterate 遍历前缀下的键值，回调收到的 key 已去掉前缀
func (s *LevelDB) iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte{}, iter.Key()[len(prefix):]...)
		value := append([]byte{}, iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func entryKey(e settlement.LedgerEntry) ([]byte, error) {
	switch e.Kind {
	case settlement.EntryLocked:
		return append(append([]byte{}, prefixLocked...), e.Token.Bytes()...), nil
	case settlement.EntryCredited:
		return append(append([]byte{}, prefixCredited...), e.Token.Bytes()...), nil
	case settlement.EntryAvailable:
		key := append(append([]byte{}, prefixAvailable...), e.Token.Bytes()...)
		return append(key, e.Account.Bytes()...), nil
	default:
		return nil, fmt.Errorf("unknown ledger entry kind %d", e.Kind)
	}
}

func decodeEntry(kind settlement.EntryKind, key, value []byte) (settlement.LedgerEntry, error) {
	if len(value) != 32 {
		return settlement.LedgerEntry{}, fmt.Errorf("corrupt %s value length %d", kind, len(value))
	}
	entry := settlement.LedgerEntry{
		Kind:  kind,
		Value: new(uint256.Int).SetBytes32(value),
	}
	switch kind {
	case settlement.EntryAvailable:
		if len(key) != 2*common.AddressLength {
			return settlement.LedgerEntry{}, fmt.Errorf("corrupt %s key length %d", kind, len(key))
		}
		entry.Token = common.BytesToAddress(key[:common.AddressLength])
		entry.Account = common.BytesToAddress(key[common.AddressLength:])
	default:
		if len(key) != common.AddressLength {
			return settlement.LedgerEntry{}, fmt.Errorf("corrupt %s key length %d", kind, len(key))
		}
		entry.Token = common.BytesToAddress(key)
	}
	return entry, nil
}

func encodeAddresses(addrs []common.Address) []byte {
	out := make([]byte, 0, len(addrs)*common.AddressLength)
	for _, a := range addrs {
		out = append(out, a.Bytes()...)
	}
	return out
}

func decodeAddresses(b []byte) ([]common.Address, error) {
	if len(b)%common.AddressLength != 0 {
		return nil, fmt.Errorf("corrupt address list length %d", len(b))
	}
	out := make([]common.Address, 0, len(b)/common.AddressLength)
	for i := 0; i < len(b); i += common.AddressLength {
		out = append(out, common.BytesToAddress(b[i:i+common.AddressLength]))
	}
	return out, nil
}
