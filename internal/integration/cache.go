package integration

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// FetchFunc 拉取交易所全部交易对
type FetchFunc func(ctx context.Context) ([]string, error)

// SymbolCache 带 TTL 的交易对集合。过期后的读取在写锁内二次检查再拉取，
// 并发调用方共享同一次拉取。
type SymbolCache struct {
	mu        sync.RWMutex
	fetch     FetchFunc
	ttl       time.Duration
	now       func() time.Time
	symbols   map[string]struct{}
	fetchedAt time.Time
}

// NewSymbolCache 创建缓存
func NewSymbolCache(fetch FetchFunc, ttl time.Duration) *SymbolCache {
	return &SymbolCache{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *SymbolCache) freshLocked() bool {
	return c.symbols != nil && c.now().Sub(c.fetchedAt) < c.ttl
}

// load 返回当前有效集合（必要时拉取）。返回的 map 只读。
func (c *SymbolCache) load(ctx context.Context) (map[string]struct{}, error) {
	c.mu.RLock()
	if c.freshLocked() {
		set := c.symbols
		c.mu.RUnlock()
		return set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freshLocked() {
		return c.symbols, nil
	}
	list, err := c.fetch(ctx)
	if err != nil {
		// 保留旧集合，下次读取再试
		return nil, err
	}
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[strings.ToUpper(s)] = struct{}{}
	}
	c.symbols = set
	c.fetchedAt = c.now()
	return set, nil
}

// Symbols 返回排序后的交易对列表
func (c *SymbolCache) Symbols(ctx context.Context) ([]string, error) {
	set, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Missing 返回不在集合中的交易对（保持输入顺序，已大写）
func (c *SymbolCache) Missing(ctx context.Context, symbols []string) ([]string, error) {
	set, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, s := range symbols {
		up := strings.ToUpper(s)
		if _, ok := set[up]; !ok {
			missing = append(missing, up)
		}
	}
	return missing, nil
}

// Invalidate 使缓存立即过期
func (c *SymbolCache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
