package stats

import (
	"time"

	"lurl.local/internal/platform/metrics"
)

// 解析使用事件：每次短码成功解析产生一条，异步落库做审计明细。
// 计数本身（usage_count）在解析路径上同步更新，这里只记明细。
type UsageEvent struct {
	Code       string
	OwnerID    string
	OccurredAt time.Time
}

// Collector 收集器接口（方便后续换 Kafka）
type Collector interface {
	Collect(event UsageEvent)
	Close()
}

// ChannelCollector 基于 channel 的收集器
type ChannelCollector struct {
	ch     chan UsageEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch:     make(chan UsageEvent, bufferSize),
		closed: false,
	}
}

func (c *ChannelCollector) Collect(event UsageEvent) {
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		// 通道满了，丢弃（明细可容忍丢失，计数不受影响）
		metrics.UsageEventsDropped.Inc()
	}
}

func (c *ChannelCollector) Events() <-chan UsageEvent {
	return c.ch
}

func (c *ChannelCollector) Close() {
	c.closed = true
	close(c.ch)
}
