package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"blockward/backend/config"
	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
	"blockward/backend/pkg/codegen"
)

// ── 测试辅助 ──

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedTokens 依次返回给定 token，用完后退回随机生成
type scriptedTokens struct {
	mu     sync.Mutex
	tokens []string
}

func (g *scriptedTokens) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tokens) == 0 {
		return codegen.Generate()
	}
	tok := g.tokens[0]
	g.tokens = g.tokens[1:]
	return tok, nil
}

func (g *scriptedTokens) Push(tokens ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = append(g.tokens, tokens...)
}

type testEnv struct {
	store  *memStore
	repo   *repository.Repository
	pub    *mockPublisher
	clock  *fakeClock
	tokens *scriptedTokens
	cfg    *config.Config

	invitations *invitationService
	redemptions *redemptionService
	classrooms  *classroomService
	wallets     *walletService
	ledger      *ledgerService
}

func testConfig() *config.Config {
	return &config.Config{
		Invitation: config.InvitationConfig{
			DefaultTTL:          7 * 24 * time.Hour,
			LinkTTL:             90 * 24 * time.Hour,
			MaxTTL:              90 * 24 * time.Hour,
			MaxGenerateAttempts: 5,
			PurgeAfter:          30 * 24 * time.Hour,
		},
		Ledger: config.LedgerConfig{
			MaxPointsPerTransfer: 1000,
			ReconcileBatchSize:   2,
		},
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	repo := newMockRepository(store)
	pub := &mockPublisher{}
	clock := newFakeClock()
	tokens := &scriptedTokens{}
	cfg := testConfig()
	logger := zap.NewNop()
	events := newEventSink(pub, logger)

	inv := NewInvitationService(&cfg.Invitation, repo, logger).(*invitationService)
	inv.now = clock.Now
	inv.gen = tokens.Next

	red := NewRedemptionService(repo, events, logger).(*redemptionService)
	red.now = clock.Now

	cls := NewClassroomService(repo, events, logger).(*classroomService)
	cls.now = clock.Now

	wal := NewWalletService(&cfg.Ledger, repo, logger).(*walletService)
	wal.now = clock.Now

	led := NewLedgerService(&cfg.Ledger, repo, events, logger).(*ledgerService)
	led.now = clock.Now

	return &testEnv{
		store:       store,
		repo:        repo,
		pub:         pub,
		clock:       clock,
		tokens:      tokens,
		cfg:         cfg,
		invitations: inv,
		redemptions: red,
		classrooms:  cls,
		wallets:     wal,
		ledger:      led,
	}
}

// seedClassroom 直接写入班级
func (e *testEnv) seedClassroom(t *testing.T, id, teacherID string) {
	t.Helper()
	err := e.repo.Classroom.Create(context.Background(), &model.Classroom{
		ClassroomID: id,
		Name:        "班级 " + id,
		TeacherID:   teacherID,
	})
	if err != nil {
		t.Fatalf("创建班级失败: %v", err)
	}
}

// seedWallet 创建钱包并返回钱包 ID
func (e *testEnv) seedWallet(t *testing.T, userID string, role model.WalletRole) string {
	t.Helper()
	w, err := e.wallets.GetOrCreate(context.Background(), userID, role)
	if err != nil {
		t.Fatalf("创建钱包失败: %v", err)
	}
	return w.ID
}

// seedToken 直接写入未分配的奖励代币
func (e *testEnv) seedToken(t *testing.T, id string, pointValue int64, createdBy string) {
	t.Helper()
	err := e.repo.RewardToken.Create(context.Background(), &model.RewardToken{
		TokenID: id,
		Metadata: model.RewardMetadata{
			Title:      "奖励 " + id,
			PointValue: pointValue,
			Category:   model.RewardCategoryAchievement,
		},
		CreatedBy: createdBy,
	})
	if err != nil {
		t.Fatalf("创建代币失败: %v", err)
	}
}

func (e *testEnv) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	w, err := e.repo.Wallet.GetByID(context.Background(), walletID)
	if err != nil {
		t.Fatalf("查询钱包失败: %v", err)
	}
	return w.PointBalance
}

func (e *testEnv) enrollmentCount(classroomID string) int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	n := 0
	for _, en := range e.store.enrollments {
		if en.ClassroomID == classroomID {
			n++
		}
	}
	return n
}

func (e *testEnv) tokenCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.tokens)
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
