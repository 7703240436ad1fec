package linkengine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LinkStatus 链接状态机：ACTIVE（初始）-> INACTIVE（过期/停用）-> DELETED（终态）。
// 存储为字符串，便于直接落库和进缓存排查。
type LinkStatus string

const (
	StatusActive   LinkStatus = "ACTIVE"
	StatusInactive LinkStatus = "INACTIVE"
	StatusDeleted  LinkStatus = "DELETED"
)

// Link 是短链领域对象。
//
// 字段约定：
// - ID / OwnerID / CreatedAt：创建时赋值，之后不变
// - ShortCode：查找键，可改名（rename），但在非 DELETED 记录中全局唯一
// - ExpiresAt：每次成功解析和显式 refresh 都会向后顺延
// - UsageCount：成功解析 +1，并发下只保证近似单调（last-write-wins）
//
// JSON tag 即缓存序列化格式：缓存值就是这份结构的 canonical JSON，
// 数据库才是唯一事实来源，缓存允许缺失/过期。
type Link struct {
	ID         uuid.UUID  `json:"id"`
	LongURL    string     `json:"long_url"`
	ShortCode  string     `json:"short_code"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsageCount int64      `json:"usage_count"`
	Status     LinkStatus `json:"status"`
}

// LinkInfo 是对外展示用的只读视图（列表/详情）。
type LinkInfo struct {
	ID         uuid.UUID  `json:"id"`
	ShortCode  string     `json:"short_code"`
	LongURL    string     `json:"long_url"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsageCount int64      `json:"usage_count"`
	Status     LinkStatus `json:"status"`
}

// LinkStats 使用量统计条目（按 UsageCount 倒序返回）。
type LinkStats struct {
	ID         uuid.UUID `json:"id"`
	ShortCode  string    `json:"short_code"`
	UsageCount int64     `json:"usage_count"`
}

func infoOf(l Link) LinkInfo {
	return LinkInfo{
		ID:         l.ID,
		ShortCode:  l.ShortCode,
		LongURL:    l.LongURL,
		CreatedAt:  l.CreatedAt,
		ExpiresAt:  l.ExpiresAt,
		UsageCount: l.UsageCount,
		Status:     l.Status,
	}
}

// encodeLink / decodeLink：缓存值的编解码。
// 序列化失败不该发生（纯数据结构）；反序列化失败由调用方当缓存未命中处理。
func encodeLink(l Link) ([]byte, error) {
	return json.Marshal(l)
}

func decodeLink(raw []byte) (Link, error) {
	var l Link
	if err := json.Unmarshal(raw, &l); err != nil {
		return Link{}, err
	}
	return l, nil
}
