// Package pooldb persists the pool ledger's state in LevelDB. Values are
// JSON so operators can inspect a store with standard tooling; keys are
// namespaced per record family and scoped by pool id and bech32 account.
package pooldb

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"

	"stakehub/crypto"
	"stakehub/native/pool"
)

const (
	poolCountKey    = "pools:len"
	poolKeyPrefix   = "pool:"
	memberKeyPrefix = "member:"
	wlKeyPrefix     = "whitelist:"
	posKeyPrefix    = "positions:"
	stakedKeyPrefix = "staked:"
	borrowKeyPrefix = "borrowed:"
	memberFlagValue = "1"
)

// Store is a LevelDB-backed implementation of pool.EngineState.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("pooldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func poolKey(pid uint64) []byte {
	return []byte(poolKeyPrefix + strconv.FormatUint(pid, 10))
}

func scopedKey(prefix string, pid uint64, addr crypto.Address) []byte {
	return []byte(prefix + strconv.FormatUint(pid, 10) + ":" + addr.String())
}

// PoolCount implements pool.EngineState.
func (s *Store) PoolCount() (uint64, error) {
	raw, err := s.db.Get([]byte(poolCountKey), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pooldb: read pool count: %w", err)
	}
	count, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pooldb: corrupt pool count %q: %w", raw, err)
	}
	return count, nil
}

// GetPool implements pool.EngineState. A missing pool returns (nil, nil).
func (s *Store) GetPool(pid uint64) (*pool.Pool, error) {
	raw, err := s.db.Get(poolKey(pid), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pooldb: read pool %d: %w", pid, err)
	}
	p := new(pool.Pool)
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("pooldb: decode pool %d: %w", pid, err)
	}
	p.EnsureDefaults()
	return p, nil
}

// PutPool implements pool.EngineState.
func (s *Store) PutPool(pid uint64, p *pool.Pool) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pooldb: encode pool %d: %w", pid, err)
	}
	if err := s.db.Put(poolKey(pid), raw, nil); err != nil {
		return fmt.Errorf("pooldb: write pool %d: %w", pid, err)
	}
	return nil
}

// AppendPool implements pool.EngineState. The pool record and the bumped
// counter land in one batch so a crash cannot leave a gap in the sequence.
func (s *Store) AppendPool(p *pool.Pool) (uint64, error) {
	pid, err := s.PoolCount()
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("pooldb: encode pool %d: %w", pid, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(poolKey(pid), raw)
	batch.Put([]byte(poolCountKey), []byte(strconv.FormatUint(pid+1, 10)))
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("pooldb: append pool %d: %w", pid, err)
	}
	return pid, nil
}

func (s *Store) getFlag(prefix string, pid uint64, addr crypto.Address) (bool, error) {
	_, err := s.db.Get(scopedKey(prefix, pid, addr), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pooldb: read flag: %w", err)
	}
	return true, nil
}

func (s *Store) setFlag(prefix string, pid uint64, addr crypto.Address, on bool) error {
	key := scopedKey(prefix, pid, addr)
	if on {
		if err := s.db.Put(key, []byte(memberFlagValue), nil); err != nil {
			return fmt.Errorf("pooldb: write flag: %w", err)
		}
		return nil
	}
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("pooldb: clear flag: %w", err)
	}
	return nil
}

// IsPoolUser implements pool.EngineState.
func (s *Store) IsPoolUser(pid uint64, addr crypto.Address) (bool, error) {
	return s.getFlag(memberKeyPrefix, pid, addr)
}

// SetPoolUser implements pool.EngineState.
func (s *Store) SetPoolUser(pid uint64, addr crypto.Address, member bool) error {
	return s.setFlag(memberKeyPrefix, pid, addr, member)
}

// IsWhitelisted implements pool.EngineState.
func (s *Store) IsWhitelisted(pid uint64, addr crypto.Address) (bool, error) {
	return s.getFlag(wlKeyPrefix, pid, addr)
}

// SetWhitelisted implements pool.EngineState.
func (s *Store) SetWhitelisted(pid uint64, addr crypto.Address, status bool) error {
	return s.setFlag(wlKeyPrefix, pid, addr, status)
}

// GetPositions implements pool.EngineState.
func (s *Store) GetPositions(pid uint64, addr crypto.Address) ([]pool.Position, error) {
	raw, err := s.db.Get(scopedKey(posKeyPrefix, pid, addr), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pooldb: read positions: %w", err)
	}
	var list []pool.Position
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("pooldb: decode positions: %w", err)
	}
	return list, nil
}

// PutPositions implements pool.EngineState. An empty list deletes the record
// instead of storing an empty array.
func (s *Store) PutPositions(pid uint64, addr crypto.Address, list []pool.Position) error {
	key := scopedKey(posKeyPrefix, pid, addr)
	if len(list) == 0 {
		if err := s.db.Delete(key, nil); err != nil {
			return fmt.Errorf("pooldb: clear positions: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("pooldb: encode positions: %w", err)
	}
	if err := s.db.Put(key, raw, nil); err != nil {
		return fmt.Errorf("pooldb: write positions: %w", err)
	}
	return nil
}

func (s *Store) getTotal(prefix string, pid uint64, addr crypto.Address) (*big.Int, error) {
	raw, err := s.db.Get(scopedKey(prefix, pid, addr), nil)
	if err == leveldb.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("pooldb: read total: %w", err)
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("pooldb: corrupt total %q", raw)
	}
	return v, nil
}

func (s *Store) putTotal(prefix string, pid uint64, addr crypto.Address, v *big.Int) error {
	key := scopedKey(prefix, pid, addr)
	if v == nil || v.Sign() == 0 {
		if err := s.db.Delete(key, nil); err != nil {
			return fmt.Errorf("pooldb: clear total: %w", err)
		}
		return nil
	}
	if err := s.db.Put(key, []byte(v.String()), nil); err != nil {
		return fmt.Errorf("pooldb: write total: %w", err)
	}
	return nil
}

// GetStakedTotal implements pool.EngineState.
func (s *Store) GetStakedTotal(pid uint64, addr crypto.Address) (*big.Int, error) {
	return s.getTotal(stakedKeyPrefix, pid, addr)
}

// PutStakedTotal implements pool.EngineState.
func (s *Store) PutStakedTotal(pid uint64, addr crypto.Address, v *big.Int) error {
	return s.putTotal(stakedKeyPrefix, pid, addr, v)
}

// GetBorrowedTotal implements pool.EngineState.
func (s *Store) GetBorrowedTotal(pid uint64, addr crypto.Address) (*big.Int, error) {
	return s.getTotal(borrowKeyPrefix, pid, addr)
}

// PutBorrowedTotal implements pool.EngineState.
func (s *Store) PutBorrowedTotal(pid uint64, addr crypto.Address, v *big.Int) error {
	return s.putTotal(borrowKeyPrefix, pid, addr, v)
}
