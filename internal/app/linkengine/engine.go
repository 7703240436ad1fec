package linkengine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lurl.local/internal/app/linkengine/cache"
	"lurl.local/internal/app/linkengine/stats"
	"lurl.local/internal/platform/metrics"
)

// Engine 是解析与生命周期引擎：cache-aside 读、惰性过期、使用量统计。
//
// 调用间无共享可变状态（连接池除外），每个请求独立处理；
// 所有持久状态在 Store，所有临时状态在缓存。
// cache / bloom / usage 都允许为 nil：缓存整体缺席时引擎退化为纯数据库路径，
// 结果不变，只是变慢。
type Engine struct {
	store Store
	cache *cache.LinkCache
	bloom *cache.BloomFilter
	gen   *Generator
	usage stats.Collector

	lifetime time.Duration // 新建/refresh 后的有效期
	renewal  time.Duration // 每次成功解析顺延的窗口
	now      func() time.Time
}

type Options struct {
	Lifetime time.Duration
	Renewal  time.Duration
	Now      func() time.Time // 便于测试注入假时钟
}

func New(store Store, c *cache.LinkCache, bloom *cache.BloomFilter, gen *Generator, usage stats.Collector, opts Options) *Engine {
	if opts.Lifetime <= 0 {
		opts.Lifetime = 30 * 24 * time.Hour
	}
	if opts.Renewal <= 0 {
		opts.Renewal = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if gen == nil {
		gen = NewGenerator(store, 0, 0)
	}
	return &Engine{
		store:    store,
		cache:    c,
		bloom:    bloom,
		gen:      gen,
		usage:    usage,
		lifetime: opts.Lifetime,
		renewal:  opts.Renewal,
		now:      opts.Now,
	}
}

// Resolve 返回短码对应的目标 URL。
//
// 读路径：
// 1. 查缓存；命中负缓存直接 NotFound，反序列化失败当未命中
// 2. 未命中回源数据库（布隆过滤器说一定不存在时省掉这一跳）
// 3. INACTIVE 拒绝；发现已过期则就地flip成 INACTIVE（惰性过期，一次性）
// 4. 有效则 UsageCount+1、ExpiresAt 顺延，同步落库，回写缓存，返回长链接
//
// 每次成功（或发现过期）的解析正好产生一次数据库写和一次缓存写。
func (e *Engine) Resolve(ctx context.Context, shortCode string) (string, error) {
	outcome := "internal_error"
	defer func(start time.Time) {
		metrics.ResolveTotal.WithLabelValues(outcome).Inc()
		metrics.ResolveDurationSeconds.Observe(time.Since(start).Seconds())
	}(time.Now())

	if strings.TrimSpace(shortCode) == "" {
		outcome = "not_found"
		return "", ErrNotFound
	}

	var link Link
	var fromCache bool
	if e.cache != nil {
		raw, negative, found := e.cache.Get(ctx, shortCode)
		if negative {
			// 负缓存：短码确认不存在，不再回源
			outcome = "not_found"
			return "", ErrNotFound
		}
		if found {
			if l, err := decodeLink(raw); err != nil {
				slog.Warn("cache entry corrupted, falling through", "code", shortCode, "err", err)
			} else if l.Status != StatusDeleted {
				link = l
				fromCache = true
			}
		}
	}
	if !fromCache {
		// 布隆过滤器只在预热完成后生效：返回 false 表示一定不存在
		if e.bloom != nil && e.bloom.Ready() && !e.bloom.MightExist(shortCode) {
			e.cacheNotFound(ctx, shortCode)
			outcome = "not_found"
			return "", ErrNotFound
		}
		var err error
		link, err = e.store.FindByCode(ctx, shortCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				e.cacheNotFound(ctx, shortCode)
				outcome = "not_found"
			}
			return "", err
		}
	}

	if link.Status == StatusInactive {
		outcome = "inactive"
		return "", ErrInactive
	}

	now := e.now()
	if !link.ExpiresAt.After(now) {
		// 惰性过期：没有后台清扫任务，访问时发现、访问时落库。
		st := StatusInactive
		if err := e.store.UpdatePartial(ctx, LinkPatch{Status: &st}, link.ShortCode); err != nil {
			return "", err
		}
		link.Status = StatusInactive
		metrics.StatusTransitions.WithLabelValues(string(StatusActive), string(StatusInactive)).Inc()
		e.writeBack(ctx, link)
		outcome = "inactive"
		return "", ErrInactive
	}

	link.UsageCount++
	link.ExpiresAt = now.Add(e.renewal)
	if _, err := e.store.Save(ctx, link); err != nil {
		return "", err
	}
	e.writeBack(ctx, link)

	if e.usage != nil {
		e.usage.Collect(stats.UsageEvent{
			Code:       link.ShortCode,
			OwnerID:    link.OwnerID.String(),
			OccurredAt: now,
		})
	}

	outcome = "ok"
	return link.LongURL, nil
}

// Create 新建链接。requestedCode 为空时调用生成器。
// 生成与保存之间的撞码竞态由唯一约束兜底，这里不重试。
func (e *Engine) Create(ctx context.Context, longURL string, ownerID uuid.UUID, requestedCode string) (string, error) {
	if err := ValidateURL(longURL); err != nil {
		return "", err
	}
	if ownerID == uuid.Nil {
		return "", ErrNullProperty
	}

	code := strings.TrimSpace(requestedCode)
	if code != "" {
		if err := ValidateCode(code); err != nil {
			return "", err
		}
	} else {
		var err error
		code, err = e.gen.Generate(ctx)
		if err != nil {
			return "", err
		}
	}

	now := e.now()
	link := Link{
		ID:        uuid.New(),
		LongURL:   longURL,
		ShortCode: code,
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(e.lifetime),
		Status:    StatusActive,
	}
	if _, err := e.store.Save(ctx, link); err != nil {
		return "", err
	}

	// 创建成功后立刻回写，覆盖此前可能命中的负缓存
	e.writeBack(ctx, link)
	if e.bloom != nil {
		e.bloom.Add(code)
	}
	return code, nil
}

// Rename 修改短码。只允许 ACTIVE 状态；新短码的唯一性由存储层约束保证。
// 缓存按键搬移之后再回写一份新记录，保证缓存值里的 ShortCode 与键一致。
func (e *Engine) Rename(ctx context.Context, oldCode, newCode string, ownerID uuid.UUID) error {
	if err := ValidateCode(newCode); err != nil {
		return err
	}
	link, err := e.store.FindByCode(ctx, oldCode)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return ErrForbidden
	}
	if link.Status != StatusActive {
		return ErrStatusConflict
	}

	code := newCode
	if err := e.store.UpdatePartial(ctx, LinkPatch{ShortCode: &code}, oldCode); err != nil {
		return err
	}
	link.ShortCode = newCode

	if e.cache != nil {
		e.cache.Rename(ctx, oldCode, newCode)
	}
	e.writeBack(ctx, link)
	if e.bloom != nil {
		e.bloom.Add(newCode)
	}
	return nil
}

// Refresh 是 INACTIVE -> ACTIVE 的唯一通道：重设有效期并复活。
// 解析永远不会隐式复活一条 INACTIVE 记录。
func (e *Engine) Refresh(ctx context.Context, shortCode string, ownerID uuid.UUID) error {
	link, err := e.store.FindByCodeAny(ctx, shortCode)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return ErrForbidden
	}
	if link.Status == StatusDeleted {
		return ErrDeletedLink
	}

	now := e.now()
	exp := now.Add(e.lifetime)
	st := StatusActive
	if err := e.store.UpdatePartial(ctx, LinkPatch{ExpiresAt: &exp, Status: &st}, shortCode); err != nil {
		return err
	}
	if link.Status == StatusInactive {
		metrics.StatusTransitions.WithLabelValues(string(StatusInactive), string(StatusActive)).Inc()
	}
	link.ExpiresAt = exp
	link.Status = StatusActive
	e.writeBack(ctx, link)
	return nil
}

// SoftDelete 逻辑删除，不可逆。重复删除确定性地返回 ErrAlreadyDeleted。
func (e *Engine) SoftDelete(ctx context.Context, shortCode string, ownerID uuid.UUID) error {
	link, err := e.store.FindByCodeAny(ctx, shortCode)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return ErrForbidden
	}
	if link.Status == StatusDeleted {
		return ErrAlreadyDeleted
	}

	if err := e.store.MarkDeleted(ctx, shortCode); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(link.Status), string(StatusDeleted)).Inc()
	if e.cache != nil {
		e.cache.Remove(ctx, shortCode)
	}
	return nil
}

// ListForOwner 返回持链人的全部非 DELETED 链接（按使用量倒序）。
// 列表经过是一次对账：ACTIVE 但已过期的记录会被就地flip成 INACTIVE 再返回。
func (e *Engine) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]LinkInfo, error) {
	links, err := e.reconciledByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	infos := make([]LinkInfo, 0, len(links))
	for _, l := range links {
		infos = append(infos, infoOf(l))
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UsageCount > infos[j].UsageCount
	})
	return infos, nil
}

// ListActiveForOwner 对账之后只返回仍然 ACTIVE 的链接。
func (e *Engine) ListActiveForOwner(ctx context.Context, ownerID uuid.UUID) ([]LinkInfo, error) {
	links, err := e.reconciledByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	infos := make([]LinkInfo, 0, len(links))
	for _, l := range links {
		if l.Status == StatusActive {
			infos = append(infos, infoOf(l))
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UsageCount > infos[j].UsageCount
	})
	return infos, nil
}

// Info 单条详情，审计读：已删除的记录也允许查看。
func (e *Engine) Info(ctx context.Context, shortCode string, ownerID uuid.UUID) (LinkInfo, error) {
	link, err := e.store.FindByCodeAny(ctx, shortCode)
	if err != nil {
		return LinkInfo{}, err
	}
	if link.OwnerID != ownerID {
		return LinkInfo{}, ErrForbidden
	}
	return infoOf(link), nil
}

// UsageStats 持链人全部链接的使用量排行（倒序）。
func (e *Engine) UsageStats(ctx context.Context, ownerID uuid.UUID) ([]LinkStats, error) {
	if ownerID == uuid.Nil {
		return nil, ErrNullProperty
	}
	return e.store.UsageStatsByOwner(ctx, ownerID)
}

// WarmBloom 启动时从数据库装载全部在用短码。
// 没预热完成前布隆过滤器不参与判断，避免把存量短码误判成不存在。
func (e *Engine) WarmBloom(ctx context.Context) error {
	if e.bloom == nil {
		return nil
	}
	codes, err := e.store.CodesForWarmup(ctx)
	if err != nil {
		return err
	}
	e.bloom.Warm(codes)
	slog.Info("bloom filter warmed", "codes", len(codes))
	return nil
}

func (e *Engine) reconciledByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error) {
	if ownerID == uuid.Nil {
		return nil, ErrNullProperty
	}
	links, err := e.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for i := range links {
		l := &links[i]
		if l.Status != StatusActive || l.ExpiresAt.After(now) {
			continue
		}
		st := StatusInactive
		if err := e.store.UpdatePartial(ctx, LinkPatch{Status: &st}, l.ShortCode); err != nil {
			return nil, err
		}
		l.Status = StatusInactive
		metrics.StatusTransitions.WithLabelValues(string(StatusActive), string(StatusInactive)).Inc()
		e.writeBack(ctx, *l)
	}
	return links, nil
}

func (e *Engine) cacheNotFound(ctx context.Context, shortCode string) {
	if e.cache != nil {
		e.cache.SetNotFound(ctx, shortCode)
	}
}

func (e *Engine) writeBack(ctx context.Context, link Link) {
	if e.cache == nil {
		return
	}
	raw, err := encodeLink(link)
	if err != nil {
		slog.Warn("encode link for cache failed", "code", link.ShortCode, "err", err)
		return
	}
	e.cache.Set(ctx, link.ShortCode, raw)
}
