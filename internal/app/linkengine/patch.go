package linkengine

import "time"

// LinkPatch 动态局部更新的字段掩码：nil 表示“不更新该字段”，
// 非 nil 的零值（例如空字符串）是合法的更新值。
// 不要用哨兵值（空串）兼任“未设置”，两种含义会撞在一起。
type LinkPatch struct {
	LongURL    *string
	ShortCode  *string
	ExpiresAt  *time.Time
	UsageCount *int64
	Status     *LinkStatus
}

// IsEmpty 全部字段缺省时局部更新是个 no-op。
func (p LinkPatch) IsEmpty() bool {
	return p.LongURL == nil && p.ShortCode == nil && p.ExpiresAt == nil &&
		p.UsageCount == nil && p.Status == nil
}
