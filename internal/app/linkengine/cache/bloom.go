package cache

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter 包一层读写锁的布隆过滤器，用于在回源前挡掉确定不存在的短码。
//
// 过滤器只有在 Warm 完成后才生效（Ready 返回 true）：
// 冷启动时它还不认识库里已有的短码，此时的“不存在”是假阴性，不能信。
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
	ready  atomic.Bool
}

// NewBloomFilter 创建布隆过滤器
// expectedItems: 预期存储的元素数量
// falsePositiveRate: 误判率（建议 0.01 即 1%）
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

// Warm 批量载入已有短码并标记过滤器可用。
func (b *BloomFilter) Warm(codes []string) {
	b.mu.Lock()
	for _, code := range codes {
		b.filter.AddString(code)
	}
	b.mu.Unlock()
	b.ready.Store(true)
}

// Ready 报告过滤器是否已完成预热。
func (b *BloomFilter) Ready() bool {
	return b.ready.Load()
}

// 添加元素到布隆过滤器
func (b *BloomFilter) Add(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(code)
}

// MightExist 检查元素是否可能存在
// 返回 false 表示一定不存在
// 返回 true 表示可能存在（有误判率）
func (b *BloomFilter) MightExist(code string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(code)
}

// Count 返回已添加的元素数量（估算）
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}
