package pooldb

import (
	"fmt"
	"math/big"
	"sync"

	"stakehub/crypto"
	"stakehub/native/pool"
)

// MemoryState is an in-process pool.EngineState for tests and ephemeral
// deployments. Safe for concurrent use.
type MemoryState struct {
	mu        sync.RWMutex
	pools     []*pool.Pool
	members   map[string]bool
	whitelist map[string]bool
	positions map[string][]pool.Position
	staked    map[string]*big.Int
	borrowed  map[string]*big.Int
}

// NewMemoryState returns an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		members:   make(map[string]bool),
		whitelist: make(map[string]bool),
		positions: make(map[string][]pool.Position),
		staked:    make(map[string]*big.Int),
		borrowed:  make(map[string]*big.Int),
	}
}

func memKey(pid uint64, addr crypto.Address) string {
	return fmt.Sprintf("%d:%s", pid, addr.String())
}

// PoolCount implements pool.EngineState.
func (m *MemoryState) PoolCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.pools)), nil
}

// GetPool implements pool.EngineState.
func (m *MemoryState) GetPool(pid uint64) (*pool.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pid >= uint64(len(m.pools)) {
		return nil, nil
	}
	return m.pools[pid].Clone(), nil
}

// PutPool implements pool.EngineState.
func (m *MemoryState) PutPool(pid uint64, p *pool.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pid >= uint64(len(m.pools)) {
		return fmt.Errorf("pooldb: unknown pool %d", pid)
	}
	m.pools[pid] = p.Clone()
	return nil
}

// AppendPool implements pool.EngineState.
func (m *MemoryState) AppendPool(p *pool.Pool) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = append(m.pools, p.Clone())
	return uint64(len(m.pools) - 1), nil
}

// IsPoolUser implements pool.EngineState.
func (m *MemoryState) IsPoolUser(pid uint64, addr crypto.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[memKey(pid, addr)], nil
}

// SetPoolUser implements pool.EngineState.
func (m *MemoryState) SetPoolUser(pid uint64, addr crypto.Address, member bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if member {
		m.members[memKey(pid, addr)] = true
	} else {
		delete(m.members, memKey(pid, addr))
	}
	return nil
}

// IsWhitelisted implements pool.EngineState.
func (m *MemoryState) IsWhitelisted(pid uint64, addr crypto.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.whitelist[memKey(pid, addr)], nil
}

// SetWhitelisted implements pool.EngineState.
func (m *MemoryState) SetWhitelisted(pid uint64, addr crypto.Address, status bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status {
		m.whitelist[memKey(pid, addr)] = true
	} else {
		delete(m.whitelist, memKey(pid, addr))
	}
	return nil
}

// GetPositions implements pool.EngineState.
func (m *MemoryState) GetPositions(pid uint64, addr crypto.Address) ([]pool.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.positions[memKey(pid, addr)]
	out := make([]pool.Position, 0, len(stored))
	for _, pos := range stored {
		out = append(out, pos.Clone())
	}
	return out, nil
}

// PutPositions implements pool.EngineState.
func (m *MemoryState) PutPositions(pid uint64, addr crypto.Address, list []pool.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(list) == 0 {
		delete(m.positions, memKey(pid, addr))
		return nil
	}
	stored := make([]pool.Position, 0, len(list))
	for _, pos := range list {
		stored = append(stored, pos.Clone())
	}
	m.positions[memKey(pid, addr)] = stored
	return nil
}

func (m *MemoryState) getTotal(table map[string]*big.Int, pid uint64, addr crypto.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := table[memKey(pid, addr)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *MemoryState) putTotal(table map[string]*big.Int, pid uint64, addr crypto.Address, v *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == nil || v.Sign() == 0 {
		delete(table, memKey(pid, addr))
		return nil
	}
	table[memKey(pid, addr)] = new(big.Int).Set(v)
	return nil
}

// GetStakedTotal implements pool.EngineState.
func (m *MemoryState) GetStakedTotal(pid uint64, addr crypto.Address) (*big.Int, error) {
	return m.getTotal(m.staked, pid, addr)
}

// PutStakedTotal implements pool.EngineState.
func (m *MemoryState) PutStakedTotal(pid uint64, addr crypto.Address, v *big.Int) error {
	return m.putTotal(m.staked, pid, addr, v)
}

// GetBorrowedTotal implements pool.EngineState.
func (m *MemoryState) GetBorrowedTotal(pid uint64, addr crypto.Address) (*big.Int, error) {
	return m.getTotal(m.borrowed, pid, addr)
}

// PutBorrowedTotal implements pool.EngineState.
func (m *MemoryState) PutBorrowedTotal(pid uint64, addr crypto.Address, v *big.Int) error {
	return m.putTotal(m.borrowed, pid, addr, v)
}
