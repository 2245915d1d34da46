package vote

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nanospec/nanocore/primitives"
)

// maxVotesPerHash bounds the per-hash vote set before the oldest voter's
// contribution is evicted (spec §4.6 "LRU eviction per hash and
// globally").
const maxVotesPerHash = 32

// perHashVotes is a bounded, voter-deduplicated set of votes observed for
// one block hash before any election for it existed.
type perHashVotes struct {
	mu    sync.Mutex
	byVoter map[primitives.Account]*Vote
	order   []primitives.Account // insertion order for LRU-within-hash eviction
}

func newPerHashVotes() *perHashVotes {
	return &perHashVotes{byVoter: make(map[primitives.Account]*Vote)}
}

func (p *perHashVotes) add(voter primitives.Account, v *Vote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byVoter[voter]; !exists {
		if len(p.order) >= maxVotesPerHash {
			oldest := p.order[0]
			p.order = p.order[1:]
			delete(p.byVoter, oldest)
		}
		p.order = append(p.order, voter)
	}
	p.byVoter[voter] = v
}

func (p *perHashVotes) snapshot() []*Vote {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Vote, 0, len(p.byVoter))
	for _, voter := range p.order {
		out = append(out, p.byVoter[voter])
	}
	return out
}

// Cache maps block hash -> bounded per-voter vote set, globally bounded by
// an LRU over hashes (spec §4.6 "Vote cache"). Grounded on the rest of the
// example pack's use of hashicorp/golang-lru for bounded caches; the
// teacher has no vote-cache equivalent since its PoA never needs one.
type Cache struct {
	byHash *lru.Cache[primitives.BlockHash, *perHashVotes]
}

// NewCache creates a Cache bounded to maxHashes distinct block hashes.
func NewCache(maxHashes int) (*Cache, error) {
	c, err := lru.New[primitives.BlockHash, *perHashVotes](maxHashes)
	if err != nil {
		return nil, err
	}
	return &Cache{byHash: c}, nil
}

// Add records v's contribution to every hash it covers.
func (c *Cache) Add(v *Vote) {
	for _, h := range v.Hashes {
		pv, ok := c.byHash.Get(h)
		if !ok {
			pv = newPerHashVotes()
			c.byHash.Add(h, pv)
		}
		pv.add(v.Account, v)
	}
}

// Take returns and removes every cached vote for hash, used when an
// election opens for it (spec §4.6 "cached votes are replayed into it").
func (c *Cache) Take(hash primitives.BlockHash) []*Vote {
	pv, ok := c.byHash.Get(hash)
	if !ok {
		return nil
	}
	c.byHash.Remove(hash)
	return pv.snapshot()
}

// Peek returns cached votes for hash without removing them, used by the
// hinted-election weight threshold check (spec §4.7 "hinted election").
func (c *Cache) Peek(hash primitives.BlockHash) []*Vote {
	pv, ok := c.byHash.Peek(hash)
	if !ok {
		return nil
	}
	return pv.snapshot()
}
