package linkengine

import "errors"

// 统一错误类型：上层（HTTP 等）按 errors.Is 稳定映射状态码，
// 预期内的业务结果一律走错误返回值，不用 panic。
var (
	// ErrNotFound 短码不存在（已删除的记录对查找来说也视为不存在）。
	ErrNotFound = errors.New("no link found by short code")
	// ErrInactive 记录存在但已过期或被停用，与 ErrNotFound 区分开，
	// 方便客户端展示“链接已过期”而不是“链接不存在”。
	ErrInactive = errors.New("link is inactive")
	// ErrDeletedLink 对已逻辑删除的记录做除审计读以外的操作。
	ErrDeletedLink = errors.New("link is deleted")
	// ErrAlreadyDeleted 重复删除。删除幂等性采用“第二次删除报错”策略。
	ErrAlreadyDeleted = errors.New("link already deleted")
	// ErrStatusConflict 当前状态不允许该操作（例如改名非 ACTIVE 的链接）。
	ErrStatusConflict = errors.New("operation not allowed in current link status")
	// ErrForbidden 调用者不是持链人。
	ErrForbidden = errors.New("operation forbidden")
	// ErrNullProperty 必填入参缺失。
	ErrNullProperty = errors.New("required link property is missing")
	// ErrCodeExhausted 生成器在重试预算内没找到空闲短码，按服务端故障上抛。
	ErrCodeExhausted = errors.New("short code generation attempts exhausted")
	// ErrInternal 存储/序列化层的意外错误，对外只暴露稳定的错误类别。
	ErrInternal = errors.New("internal link store error")
)
