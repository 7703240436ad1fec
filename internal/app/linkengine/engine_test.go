package linkengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	enginecache "lurl.local/internal/app/linkengine/cache"
	"lurl.local/internal/app/linkengine/stats"
)

// memStore 内存版 Store，按 ID 存整行，短码唯一性只约束非 DELETED 记录。
type memStore struct {
	mu          sync.Mutex
	links       map[uuid.UUID]Link
	findCalls   int
	existsCalls int
	updateCalls int
}

func newMemStore() *memStore {
	return &memStore{links: make(map[uuid.UUID]Link)}
}

func (m *memStore) seed(l Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[l.ID] = l
}

func (m *memStore) FindByCode(_ context.Context, code string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	for _, l := range m.links {
		if l.ShortCode == code && l.Status != StatusDeleted {
			return l, nil
		}
	}
	return Link{}, ErrNotFound
}

func (m *memStore) FindByCodeAny(_ context.Context, code string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted *Link
	for _, l := range m.links {
		if l.ShortCode != code {
			continue
		}
		if l.Status != StatusDeleted {
			return l, nil
		}
		cp := l
		deleted = &cp
	}
	if deleted != nil {
		return *deleted, nil
	}
	return Link{}, ErrNotFound
}

func (m *memStore) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Link
	for _, l := range m.links {
		if l.OwnerID == ownerID && l.Status != StatusDeleted {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, link Link) (Link, error) {
	if link.LongURL == "" || link.ShortCode == "" {
		return Link{}, ErrNullProperty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.links {
		if id != link.ID && l.ShortCode == link.ShortCode && l.Status != StatusDeleted {
			return Link{}, ErrInternal
		}
	}
	m.links[link.ID] = link
	return link, nil
}

func (m *memStore) UpdatePartial(_ context.Context, patch LinkPatch, code string) error {
	if patch.IsEmpty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	for id, l := range m.links {
		if l.ShortCode != code || l.Status == StatusDeleted {
			continue
		}
		if patch.LongURL != nil {
			l.LongURL = *patch.LongURL
		}
		if patch.ShortCode != nil {
			l.ShortCode = *patch.ShortCode
		}
		if patch.ExpiresAt != nil {
			l.ExpiresAt = *patch.ExpiresAt
		}
		if patch.UsageCount != nil {
			l.UsageCount = *patch.UsageCount
		}
		if patch.Status != nil {
			l.Status = *patch.Status
		}
		m.links[id] = l
		return nil
	}
	return ErrNotFound
}

func (m *memStore) ExistsByCode(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	for _, l := range m.links {
		if l.ShortCode == code && l.Status != StatusDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) MarkDeleted(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *Link
	for id, l := range m.links {
		if l.ShortCode != code {
			continue
		}
		if l.Status != StatusDeleted {
			l.Status = StatusDeleted
			m.links[id] = l
			return nil
		}
		cp := l
		found = &cp
	}
	if found != nil {
		return ErrAlreadyDeleted
	}
	return ErrNotFound
}

func (m *memStore) CodesForWarmup(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []string
	for _, l := range m.links {
		if l.Status != StatusDeleted {
			codes = append(codes, l.ShortCode)
		}
	}
	return codes, nil
}

func (m *memStore) UsageStatsByOwner(_ context.Context, ownerID uuid.UUID) ([]LinkStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LinkStats
	for _, l := range m.links {
		if l.OwnerID == ownerID && l.Status != StatusDeleted {
			out = append(out, LinkStats{ID: l.ID, ShortCode: l.ShortCode, UsageCount: l.UsageCount})
		}
	}
	return out, nil
}

func (m *memStore) get(t *testing.T, code string) Link {
	t.Helper()
	l, err := m.FindByCodeAny(context.Background(), code)
	if err != nil {
		t.Fatalf("record %q missing: %v", code, err)
	}
	return l
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memCollector struct {
	mu     sync.Mutex
	events []stats.UsageEvent
}

func (c *memCollector) Collect(e stats.UsageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *memCollector) Close() {}

func (c *memCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestEngine(store Store, clk *fakeClock) *Engine {
	return New(store, nil, nil, nil, nil, Options{
		Lifetime: 30 * 24 * time.Hour,
		Renewal:  30 * 24 * time.Hour,
		Now:      clk.Now,
	})
}

func seedLink(store *memStore, clk *fakeClock, code string, owner uuid.UUID) Link {
	l := Link{
		ID:        uuid.New(),
		LongURL:   "https://example.com/" + code,
		ShortCode: code,
		OwnerID:   owner,
		CreatedAt: clk.Now(),
		ExpiresAt: clk.Now().Add(30 * 24 * time.Hour),
		Status:    StatusActive,
	}
	store.seed(l)
	return l
}

func testClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestResolve_IncrementsUsageAndRenews(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	e := newTestEngine(store, clk)
	clk.Advance(24 * time.Hour)

	url, err := e.Resolve(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://example.com/abc12345" {
		t.Fatalf("url: got %q", url)
	}

	got := store.get(t, "abc12345")
	if got.UsageCount != 1 {
		t.Fatalf("UsageCount: got %d, want 1", got.UsageCount)
	}
	wantExp := clk.Now().Add(30 * 24 * time.Hour)
	if !got.ExpiresAt.Equal(wantExp) {
		t.Fatalf("ExpiresAt: got %v, want %v", got.ExpiresAt, wantExp)
	}
}

func TestResolve_UsageCountMonotonic(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	e := newTestEngine(store, clk)
	const n = 20
	for i := 0; i < n; i++ {
		if _, err := e.Resolve(context.Background(), "abc12345"); err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
	}
	if got := store.get(t, "abc12345").UsageCount; got != n {
		t.Fatalf("UsageCount: got %d, want %d", got, n)
	}
}

func TestResolve_UnknownCode(t *testing.T) {
	e := newTestEngine(newMemStore(), testClock())
	if _, err := e.Resolve(context.Background(), "missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err: got %v, want ErrNotFound", err)
	}
	if _, err := e.Resolve(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank code err: got %v, want ErrNotFound", err)
	}
}

func TestResolve_InactiveRejected(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	l := seedLink(store, clk, "abc12345", uuid.New())
	l.Status = StatusInactive
	store.seed(l)

	e := newTestEngine(store, clk)
	if _, err := e.Resolve(context.Background(), "abc12345"); !errors.Is(err, ErrInactive) {
		t.Fatalf("err: got %v, want ErrInactive", err)
	}
}

func TestResolve_LazyExpiryFlipsOnce(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	seedLink(store, clk, "abc12345", uuid.New())

	e := newTestEngine(store, clk)
	clk.Advance(31 * 24 * time.Hour) // 已过期

	if _, err := e.Resolve(context.Background(), "abc12345"); !errors.Is(err, ErrInactive) {
		t.Fatalf("first resolve err: got %v, want ErrInactive", err)
	}
	if got := store.get(t, "abc12345").Status; got != StatusInactive {
		t.Fatalf("Status: got %s, want INACTIVE", got)
	}
	flips := store.updateCalls

	// 第二次解析直接按 INACTIVE 拒绝，不再产生状态写
	if _, err := e.Resolve(context.Background(), "abc12345"); !errors.Is(err, ErrInactive) {
		t.Fatalf("second resolve err: got %v, want ErrInactive", err)
	}
	if store.updateCalls != flips {
		t.Fatalf("updateCalls: got %d, want %d (flip must be one-shot)", store.updateCalls, flips)
	}
	if got := store.get(t, "abc12345").UsageCount; got != 0 {
		t.Fatalf("UsageCount after expiry: got %d, want 0", got)
	}
}

func TestResolve_NeverRevives(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	e := newTestEngine(store, clk)
	clk.Advance(31 * 24 * time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := e.Resolve(context.Background(), "abc12345"); !errors.Is(err, ErrInactive) {
			t.Fatalf("resolve #%d: got %v, want ErrInactive", i, err)
		}
	}

	// 显式 refresh 是唯一的复活通道
	if err := e.Refresh(context.Background(), "abc12345", owner); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := e.Resolve(context.Background(), "abc12345"); err != nil {
		t.Fatalf("resolve after refresh: %v", err)
	}
}

func TestResolve_EmitsUsageEvent(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	collector := &memCollector{}
	e := New(store, nil, nil, nil, collector, Options{Now: clk.Now})

	if _, err := e.Resolve(context.Background(), "abc12345"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if collector.count() != 1 {
		t.Fatalf("events: got %d, want 1", collector.count())
	}
	if got := collector.events[0].OwnerID; got != owner.String() {
		t.Fatalf("event owner: got %q, want %q", got, owner.String())
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newTestEngine(newMemStore(), testClock())
	ctx := context.Background()
	owner := uuid.New()

	if _, err := e.Create(ctx, "", owner, ""); !errors.Is(err, ErrNullProperty) {
		t.Fatalf("empty url: got %v, want ErrNullProperty", err)
	}
	if _, err := e.Create(ctx, "ftp://example.com/x", owner, ""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("bad scheme: got %v, want ErrInvalidURL", err)
	}
	if _, err := e.Create(ctx, "https://example.com/x", uuid.Nil, ""); !errors.Is(err, ErrNullProperty) {
		t.Fatalf("nil owner: got %v, want ErrNullProperty", err)
	}
	if _, err := e.Create(ctx, "https://example.com/x", owner, "a!"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("bad code: got %v, want ErrInvalidCode", err)
	}
}

func TestCreate_GeneratedCode(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	e := newTestEngine(store, clk)

	code, err := e.Create(context.Background(), "https://example.com/x", uuid.New(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("code length: got %d, want 8", len(code))
	}
	got := store.get(t, code)
	if got.Status != StatusActive {
		t.Fatalf("Status: got %s, want ACTIVE", got.Status)
	}
	wantExp := clk.Now().Add(30 * 24 * time.Hour)
	if !got.ExpiresAt.Equal(wantExp) {
		t.Fatalf("ExpiresAt: got %v, want %v", got.ExpiresAt, wantExp)
	}
}

func TestCreate_RequestedCode(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, testClock())

	code, err := e.Create(context.Background(), "https://example.com/x", uuid.New(), "myCode01")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if code != "myCode01" {
		t.Fatalf("code: got %q, want myCode01", code)
	}
}

func TestRename_RoundTrip(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "oldcode1", owner)

	e := newTestEngine(store, clk)
	ctx := context.Background()

	if err := e.Rename(ctx, "oldcode1", "newcode1", owner); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := e.Resolve(ctx, "oldcode1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old code: got %v, want ErrNotFound", err)
	}
	url, err := e.Resolve(ctx, "newcode1")
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	if url != "https://example.com/oldcode1" {
		t.Fatalf("url after rename: got %q", url)
	}
}

func TestRename_Guards(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "oldcode1", owner)

	e := newTestEngine(store, clk)
	ctx := context.Background()

	if err := e.Rename(ctx, "oldcode1", "bad code", owner); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("invalid new code: got %v, want ErrInvalidCode", err)
	}
	if err := e.Rename(ctx, "oldcode1", "newcode1", uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: got %v, want ErrForbidden", err)
	}
	if err := e.Rename(ctx, "missing1", "newcode1", owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v, want ErrNotFound", err)
	}

	l := store.get(t, "oldcode1")
	l.Status = StatusInactive
	store.seed(l)
	if err := e.Rename(ctx, "oldcode1", "newcode1", owner); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("inactive: got %v, want ErrStatusConflict", err)
	}
}

func TestSoftDelete(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	e := newTestEngine(store, clk)
	ctx := context.Background()

	if err := e.SoftDelete(ctx, "abc12345", uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: got %v, want ErrForbidden", err)
	}
	if err := e.SoftDelete(ctx, "abc12345", owner); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := e.Resolve(ctx, "abc12345"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve deleted: got %v, want ErrNotFound", err)
	}
	// 第二次删除是确定性的失败，不是幂等成功
	if err := e.SoftDelete(ctx, "abc12345", owner); !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("second delete: got %v, want ErrAlreadyDeleted", err)
	}
	if err := e.Refresh(ctx, "abc12345", owner); !errors.Is(err, ErrDeletedLink) {
		t.Fatalf("refresh deleted: got %v, want ErrDeletedLink", err)
	}
}

func TestRefresh_RevivesInactive(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	l := seedLink(store, clk, "abc12345", owner)
	l.Status = StatusInactive
	store.seed(l)

	e := newTestEngine(store, clk)
	if err := e.Refresh(context.Background(), "abc12345", owner); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got := store.get(t, "abc12345")
	if got.Status != StatusActive {
		t.Fatalf("Status: got %s, want ACTIVE", got.Status)
	}
	wantExp := clk.Now().Add(30 * 24 * time.Hour)
	if !got.ExpiresAt.Equal(wantExp) {
		t.Fatalf("ExpiresAt: got %v, want %v", got.ExpiresAt, wantExp)
	}
}

func TestListForOwner_ReconcilesAndSorts(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()

	hot := seedLink(store, clk, "hotlink1", owner)
	hot.UsageCount = 50
	store.seed(hot)
	cold := seedLink(store, clk, "coldlink", owner)
	cold.UsageCount = 3
	store.seed(cold)
	stale := seedLink(store, clk, "oldlink1", owner)
	stale.UsageCount = 10
	stale.ExpiresAt = clk.Now().Add(-time.Hour)
	store.seed(stale)
	seedLink(store, clk, "other123", uuid.New())

	e := newTestEngine(store, clk)
	infos, err := e.ListForOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len: got %d, want 3", len(infos))
	}
	if infos[0].ShortCode != "hotlink1" || infos[1].ShortCode != "oldlink1" || infos[2].ShortCode != "coldlink" {
		t.Fatalf("order: got %s,%s,%s", infos[0].ShortCode, infos[1].ShortCode, infos[2].ShortCode)
	}
	// 过期记录在列表经过时已被对账成 INACTIVE
	if infos[1].Status != StatusInactive {
		t.Fatalf("stale status: got %s, want INACTIVE", infos[1].Status)
	}
	if got := store.get(t, "oldlink1").Status; got != StatusInactive {
		t.Fatalf("stored stale status: got %s, want INACTIVE", got)
	}

	active, err := e.ListActiveForOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListActiveForOwner: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active len: got %d, want 2", len(active))
	}
	for _, info := range active {
		if info.Status != StatusActive {
			t.Fatalf("active listing contains %s record %s", info.Status, info.ShortCode)
		}
	}

	if _, err := e.ListForOwner(context.Background(), uuid.Nil); !errors.Is(err, ErrNullProperty) {
		t.Fatalf("nil owner: got %v, want ErrNullProperty", err)
	}
}

func TestInfo(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	e := newTestEngine(store, clk)
	ctx := context.Background()

	info, err := e.Info(ctx, "abc12345", owner)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.ShortCode != "abc12345" || info.Status != StatusActive {
		t.Fatalf("info: got %+v", info)
	}
	if _, err := e.Info(ctx, "abc12345", uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: got %v, want ErrForbidden", err)
	}

	// 审计读：删除后详情仍可见
	if err := e.SoftDelete(ctx, "abc12345", owner); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	info, err = e.Info(ctx, "abc12345", owner)
	if err != nil {
		t.Fatalf("Info after delete: %v", err)
	}
	if info.Status != StatusDeleted {
		t.Fatalf("status: got %s, want DELETED", info.Status)
	}
}

func newRedisLinkCache(t *testing.T) *enginecache.LinkCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return enginecache.NewLinkCache(client, nil, time.Hour, 30*time.Second)
}

func TestResolve_NegativeCacheShortCircuits(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	e := New(store, newRedisLinkCache(t), nil, nil, nil, Options{Now: clk.Now})
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("first resolve: got %v, want ErrNotFound", err)
	}
	before := store.findCalls
	// 第二次由负缓存挡下，不产生存储层读
	if _, err := e.Resolve(ctx, "missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second resolve: got %v, want ErrNotFound", err)
	}
	if store.findCalls != before {
		t.Fatalf("findCalls changed: %d -> %d", before, store.findCalls)
	}
}

func TestCreate_OverwritesNegativeCache(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	e := New(store, newRedisLinkCache(t), nil, nil, nil, Options{Now: clk.Now})
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "fresh123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve before create: got %v, want ErrNotFound", err)
	}
	if _, err := e.Create(ctx, "https://example.com/f", owner, "fresh123"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 负缓存 TTL 未到，但创建路径的回写必须立刻覆盖它
	url, err := e.Resolve(ctx, "fresh123")
	if err != nil {
		t.Fatalf("resolve after create: %v", err)
	}
	if url != "https://example.com/f" {
		t.Fatalf("url: got %q", url)
	}
}

func TestResolve_CorruptedCacheEntryFallsThrough(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	owner := uuid.New()
	seedLink(store, clk, "abc12345", owner)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := enginecache.NewLinkCache(client, nil, time.Hour, 30*time.Second)
	mr.Set("lk:abc12345", "{not json")

	e := New(store, c, nil, nil, nil, Options{Now: clk.Now})
	url, err := e.Resolve(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://example.com/abc12345" {
		t.Fatalf("url: got %q", url)
	}
}

func TestResolve_CacheUnavailableFallsBackToStore(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	seedLink(store, clk, "abc12345", uuid.New())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := enginecache.NewLinkCache(client, nil, time.Hour, 30*time.Second)
	mr.Close() // 缓存整体不可用

	e := New(store, c, nil, nil, nil, Options{Now: clk.Now})
	url, err := e.Resolve(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("Resolve with dead cache: %v", err)
	}
	if url != "https://example.com/abc12345" {
		t.Fatalf("url: got %q", url)
	}
}

func TestWarmBloom_GatesStoreReads(t *testing.T) {
	store := newMemStore()
	clk := testClock()
	seedLink(store, clk, "abc12345", uuid.New())

	bf := enginecache.NewBloomFilter(1000, 0.01)
	e := New(store, nil, bf, nil, nil, Options{Now: clk.Now})
	ctx := context.Background()

	// 未预热：过滤器不参与判断，存量短码照常解析
	if _, err := e.Resolve(ctx, "abc12345"); err != nil {
		t.Fatalf("resolve before warmup: %v", err)
	}

	if err := e.WarmBloom(ctx); err != nil {
		t.Fatalf("WarmBloom: %v", err)
	}
	if !bf.Ready() {
		t.Fatal("filter not ready after warmup")
	}
	if _, err := e.Resolve(ctx, "abc12345"); err != nil {
		t.Fatalf("resolve after warmup: %v", err)
	}
	// 预热后新建的短码也要进过滤器
	code, err := e.Create(ctx, "https://example.com/n", uuid.New(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Resolve(ctx, code); err != nil {
		t.Fatalf("resolve new code: %v", err)
	}
}
