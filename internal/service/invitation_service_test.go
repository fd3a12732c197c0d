package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/model"
)

// ── Create 测试 ──

func TestInvitationService_Create_Success(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	env.tokens.Push("AB12CD")

	resp, err := env.invitations.Create(context.Background(), &dto.CreateInvitationRequest{
		ClassroomID: "C1",
	}, "teacher-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Token != "AB12CD" {
		t.Errorf("期望 token=AB12CD，实际=%s", resp.Token)
	}
	if resp.Purpose != model.PurposeGeneral {
		t.Errorf("期望默认用途 general，实际=%s", resp.Purpose)
	}
	if resp.Status != string(model.InvitationPending) {
		t.Errorf("期望状态 pending，实际=%s", resp.Status)
	}
	want := formatTime(env.clock.Now().Add(7 * 24 * time.Hour))
	if resp.ExpiresAt != want {
		t.Errorf("期望过期时间 %s，实际=%s", want, resp.ExpiresAt)
	}
}

func TestInvitationService_Create_LinkDefaultTTL(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")

	resp, err := env.invitations.Create(context.Background(), &dto.CreateInvitationRequest{
		ClassroomID: "C1",
		Kind:        "link",
	}, "teacher-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	want := formatTime(env.clock.Now().Add(90 * 24 * time.Hour))
	if resp.ExpiresAt != want {
		t.Errorf("期望链接有效期 90 天 (%s)，实际=%s", want, resp.ExpiresAt)
	}
}

func TestInvitationService_Create_Validation(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")

	tests := []struct {
		name    string
		req     *dto.CreateInvitationRequest
		caller  string
		wantErr error
	}{
		{"ttl 超过上限", &dto.CreateInvitationRequest{ClassroomID: "C1", TTLSeconds: int64((91 * 24 * time.Hour).Seconds())}, "teacher-1", ErrInvalidTTL},
		{"不支持的用途", &dto.CreateInvitationRequest{ClassroomID: "C1", Purpose: "admin"}, "teacher-1", ErrInvalidPurpose},
		{"负的兑换上限", &dto.CreateInvitationRequest{ClassroomID: "C1", MaxRedemptions: -1}, "teacher-1", ErrInvalidMaxRedemptions},
		{"班级不存在", &dto.CreateInvitationRequest{ClassroomID: "C404"}, "teacher-1", ErrClassroomNotFound},
		{"非班级教师", &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-2", ErrNotClassroomTeacher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.invitations.Create(context.Background(), tt.req, tt.caller)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}

	if n := len(env.store.invitations); n != 0 {
		t.Errorf("校验失败不应写入邀请码，实际 %d 条", n)
	}
}

func TestInvitationService_Create_ActiveExists(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	ctx := context.Background()

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1"); err != nil {
		t.Fatalf("第一次 Create 应成功: %v", err)
	}
	_, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1")
	if !errors.Is(err, ErrActiveInvitationExists) {
		t.Errorf("期望 ErrActiveInvitationExists，实际: %v", err)
	}
}

func TestInvitationService_Create_ReplacesExpiredPending(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	ctx := context.Background()
	env.tokens.Push("OLD001", "NEW001")

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1", TTLSeconds: 60}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	env.clock.Advance(2 * time.Minute)

	resp, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1")
	if err != nil {
		t.Fatalf("旧码过期后 Create 应成功: %v", err)
	}
	if resp.Token != "NEW001" {
		t.Errorf("期望新 token=NEW001，实际=%s", resp.Token)
	}

	old, err := env.repo.Invitation.GetByToken(ctx, "OLD001")
	if err != nil {
		t.Fatalf("查询旧码失败: %v", err)
	}
	if old.Status != model.InvitationExpired {
		t.Errorf("旧码应被标记为 expired，实际=%s", old.Status)
	}
}

func TestInvitationService_Create_RetriesOnCollision(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	env.seedClassroom(t, "C2", "teacher-1")
	ctx := context.Background()

	env.tokens.Push("AB12CD")
	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	// C2 前两次生成与 C1 的待使用码碰撞
	env.tokens.Push("AB12CD", "AB12CD", "QW34ER")
	resp, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C2"}, "teacher-1")
	if err != nil {
		t.Fatalf("碰撞后重试应成功: %v", err)
	}
	if resp.Token != "QW34ER" {
		t.Errorf("期望 token=QW34ER，实际=%s", resp.Token)
	}
	if n := len(env.store.invitations); n != 2 {
		t.Errorf("期望共 2 条邀请码，实际 %d", n)
	}
}

func TestInvitationService_Create_GenerationExhausted(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	env.seedClassroom(t, "C2", "teacher-1")
	ctx := context.Background()

	env.tokens.Push("AB12CD")
	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	env.invitations.gen = func() (string, error) { return "AB12CD", nil }
	_, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C2"}, "teacher-1")
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("期望 ErrGenerationExhausted，实际: %v", err)
	}
	if n := len(env.store.invitations); n != 1 {
		t.Errorf("生成失败不应写入新邀请码，实际共 %d 条", n)
	}
}

// ── Regenerate 测试 ──

func TestInvitationService_Regenerate(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	ctx := context.Background()
	env.tokens.Push("AB12CD", "ZZ99QQ")

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	resp, err := env.invitations.Regenerate(ctx, "C1", &dto.RegenerateInvitationRequest{}, "teacher-1")
	if err != nil {
		t.Fatalf("Regenerate 应成功: %v", err)
	}
	if resp.Token != "ZZ99QQ" {
		t.Errorf("期望新 token=ZZ99QQ，实际=%s", resp.Token)
	}

	old, _ := env.repo.Invitation.GetByToken(ctx, "AB12CD")
	if old.Status != model.InvitationSuperseded {
		t.Errorf("旧码应为 superseded，实际=%s", old.Status)
	}
	if old.SupersededAt == nil {
		t.Error("旧码应记录 superseded_at")
	}

	active, err := env.invitations.FindActive(ctx, "C1", "", "teacher-1")
	if err != nil {
		t.Fatalf("FindActive 应成功: %v", err)
	}
	if active.Token != "ZZ99QQ" {
		t.Errorf("当前有效码应为 ZZ99QQ，实际=%s", active.Token)
	}
}

func TestInvitationService_Regenerate_WithoutPending(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")

	resp, err := env.invitations.Regenerate(context.Background(), "C1", &dto.RegenerateInvitationRequest{Kind: "link"}, "teacher-1")
	if err != nil {
		t.Fatalf("无待使用码时 Regenerate 应直接签发: %v", err)
	}
	if resp.Status != string(model.InvitationPending) {
		t.Errorf("期望状态 pending，实际=%s", resp.Status)
	}
}

func TestInvitationService_Regenerate_NotTeacher(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")

	_, err := env.invitations.Regenerate(context.Background(), "C1", &dto.RegenerateInvitationRequest{}, "student-1")
	if !errors.Is(err, ErrNotClassroomTeacher) {
		t.Errorf("期望 ErrNotClassroomTeacher，实际: %v", err)
	}
}

// ── FindActive / Lookup 测试 ──

func TestInvitationService_FindActive_ExpiredIsNotActive(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	ctx := context.Background()

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1", TTLSeconds: 60}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	env.clock.Advance(time.Hour)

	_, err := env.invitations.FindActive(ctx, "C1", "general", "teacher-1")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("期望 ErrCodeNotFound，实际: %v", err)
	}
}

func TestInvitationService_Lookup(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	ctx := context.Background()
	env.tokens.Push("AB12CD")

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1"}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	resp, err := env.invitations.Lookup(ctx, " ab12cd ")
	if err != nil {
		t.Fatalf("Lookup 应成功: %v", err)
	}
	if resp.ClassroomID != "C1" {
		t.Errorf("期望 classroom=C1，实际=%s", resp.ClassroomID)
	}

	if _, err := env.invitations.Lookup(ctx, "XX00XX"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("期望 ErrCodeNotFound，实际: %v", err)
	}
	if _, err := env.invitations.Lookup(ctx, "AB-12"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("期望 ErrInvalidToken，实际: %v", err)
	}
}

// ── SweepExpired 测试 ──

func TestInvitationService_SweepExpired(t *testing.T) {
	env := setupTestEnv(t)
	env.seedClassroom(t, "C1", "teacher-1")
	env.seedClassroom(t, "C2", "teacher-1")
	ctx := context.Background()

	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C1", TTLSeconds: 60}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if _, err := env.invitations.Create(ctx, &dto.CreateInvitationRequest{ClassroomID: "C2"}, "teacher-1"); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	env.clock.Advance(time.Hour)
	result, err := env.invitations.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired 应成功: %v", err)
	}
	if result.Expired != 1 || result.Purged != 0 {
		t.Errorf("期望 expired=1 purged=0，实际 %+v", result)
	}

	// 超过 purge_after 后删除过期记录
	env.clock.Advance(31 * 24 * time.Hour)
	result, err = env.invitations.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired 应成功: %v", err)
	}
	if result.Purged != 1 {
		t.Errorf("期望 purged=1，实际 %+v", result)
	}
}
