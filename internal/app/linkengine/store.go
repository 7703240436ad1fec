package linkengine

import (
	"context"

	"github.com/google/uuid"
)

// Store 是引擎消费的持久层接口，数据库是唯一事实来源。
//
// 约定：
// - FindByCode / FindByOwner / ExistsByCode 按合同排除 DELETED 记录
// - FindByCodeAny 是审计读，包含 DELETED（refresh/delete 需要区分
//   “已删除”和“不存在”两种失败）
// - Save 是整行 upsert；底层唯一约束冲突（撞码竞态）包装成 ErrInternal
// - UpdatePartial 只应用 patch 里非 nil 的字段
// - MarkDeleted 逻辑删除；重复删除返回 ErrAlreadyDeleted
type Store interface {
	FindByCode(ctx context.Context, code string) (Link, error)
	FindByCodeAny(ctx context.Context, code string) (Link, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error)
	Save(ctx context.Context, link Link) (Link, error)
	UpdatePartial(ctx context.Context, patch LinkPatch, code string) error
	ExistsByCode(ctx context.Context, code string) (bool, error)
	MarkDeleted(ctx context.Context, code string) error
	CodesForWarmup(ctx context.Context) ([]string, error)
	UsageStatsByOwner(ctx context.Context, ownerID uuid.UUID) ([]LinkStats, error)
}

// PrincipalResolver 把认证凭证映射成持链人 ID。
// 鉴权（owner == 当前调用者）由外层在调用修改类操作前完成，
// 引擎内部只在显式带 ownerID 的操作里复核归属。
type PrincipalResolver interface {
	ResolveOwner(ctx context.Context, credential string) (uuid.UUID, error)
}
