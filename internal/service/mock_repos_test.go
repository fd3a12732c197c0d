package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
	pkgerrors "blockward/backend/pkg/errors"
)

// ── 内存存储 ──
//
// 模拟 PostgreSQL 的约束：待使用邀请码 token 唯一、班级待使用槽位唯一、
// (classroom_id, student_id) 唯一、钱包 owner/address 唯一、(token_id, sequence) 唯一。
// 事务通过 txMu 串行化，fn 返回错误时恢复快照。

type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	classrooms  map[string]model.Classroom
	invitations map[string]model.InvitationCode
	enrollments map[string]model.Enrollment
	wallets     map[string]model.Wallet
	tokens      map[string]model.RewardToken
	ledger      []model.LedgerEntry
	awards      []model.PointAward
	nextID      int
}

func newMemStore() *memStore {
	return &memStore{
		classrooms:  make(map[string]model.Classroom),
		invitations: make(map[string]model.InvitationCode),
		enrollments: make(map[string]model.Enrollment),
		wallets:     make(map[string]model.Wallet),
		tokens:      make(map[string]model.RewardToken),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

type memSnapshot struct {
	classrooms  map[string]model.Classroom
	invitations map[string]model.InvitationCode
	enrollments map[string]model.Enrollment
	wallets     map[string]model.Wallet
	tokens      map[string]model.RewardToken
	ledger      []model.LedgerEntry
	awards      []model.PointAward
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() *memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memSnapshot{
		classrooms:  copyMap(s.classrooms),
		invitations: copyMap(s.invitations),
		enrollments: copyMap(s.enrollments),
		wallets:     copyMap(s.wallets),
		tokens:      copyMap(s.tokens),
		ledger:      append([]model.LedgerEntry(nil), s.ledger...),
		awards:      append([]model.PointAward(nil), s.awards...),
	}
}

func (s *memStore) restore(snap *memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classrooms = snap.classrooms
	s.invitations = snap.invitations
	s.enrollments = snap.enrollments
	s.wallets = snap.wallets
	s.tokens = snap.tokens
	s.ledger = snap.ledger
	s.awards = snap.awards
}

// newMockRepository 构造基于内存存储的 Repository
func newMockRepository(s *memStore) *repository.Repository {
	base := &repository.Repository{
		Classroom:   &mockClassroomRepo{s: s},
		Invitation:  &mockInvitationRepo{s: s},
		Enrollment:  &mockEnrollmentRepo{s: s},
		Wallet:      &mockWalletRepo{s: s},
		RewardToken: &mockRewardTokenRepo{s: s},
		Ledger:      &mockLedgerRepo{s: s},
		PointAward:  &mockPointAwardRepo{s: s},
	}

	// 事务内的 Repository：嵌套 Transaction 相当于 SAVEPOINT
	txRepo := *base
	txRepo.RunInTx = func(_ context.Context, fn func(r *repository.Repository) error) error {
		snap := s.snapshot()
		if err := fn(&txRepo); err != nil {
			s.restore(snap)
			return err
		}
		return nil
	}

	base.RunInTx = func(_ context.Context, fn func(r *repository.Repository) error) error {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		snap := s.snapshot()
		if err := fn(&txRepo); err != nil {
			s.restore(snap)
			return err
		}
		return nil
	}
	return base
}

// ── Mock ClassroomRepository ──

type mockClassroomRepo struct {
	s *memStore
}

func (m *mockClassroomRepo) Create(_ context.Context, classroom *model.Classroom) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if classroom.ClassroomID == "" {
		classroom.ClassroomID = m.s.id("cls")
	}
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = time.Now()
	}
	m.s.classrooms[classroom.ClassroomID] = *classroom
	return nil
}

func (m *mockClassroomRepo) GetByID(_ context.Context, id string) (*model.Classroom, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.classrooms[id]; ok {
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassroomRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Classroom, error) {
	return m.GetByID(ctx, id)
}

// ── Mock InvitationRepository ──

type mockInvitationRepo struct {
	s *memStore
}

func (m *mockInvitationRepo) Create(_ context.Context, code *model.InvitationCode) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.invitations {
		if c.Status != model.InvitationPending {
			continue
		}
		if c.Token == code.Token {
			return repository.ErrTokenCollision
		}
		if c.ClassroomID == code.ClassroomID && c.Purpose == code.Purpose {
			return repository.ErrActiveSlotTaken
		}
	}
	if code.InvitationID == "" {
		code.InvitationID = m.s.id("inv")
	}
	m.s.invitations[code.InvitationID] = *code
	return nil
}

func (m *mockInvitationRepo) GetByToken(_ context.Context, token string) (*model.InvitationCode, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var best *model.InvitationCode
	for _, c := range m.s.invitations {
		if c.Token != token {
			continue
		}
		c := c
		switch {
		case best == nil:
			best = &c
		case c.Status == model.InvitationPending && best.Status != model.InvitationPending:
			best = &c
		case (c.Status == model.InvitationPending) == (best.Status == model.InvitationPending) && c.CreatedAt.After(best.CreatedAt):
			best = &c
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (m *mockInvitationRepo) GetByTokenForUpdate(ctx context.Context, token string) (*model.InvitationCode, error) {
	return m.GetByToken(ctx, token)
}

func (m *mockInvitationRepo) FindPending(_ context.Context, classroomID, purpose string) (*model.InvitationCode, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.invitations {
		if c.ClassroomID == classroomID && c.Purpose == purpose && c.Status == model.InvitationPending {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInvitationRepo) SupersedePending(_ context.Context, classroomID, purpose string, at time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, c := range m.s.invitations {
		if c.ClassroomID == classroomID && c.Purpose == purpose && c.Status == model.InvitationPending {
			c.Status = model.InvitationSuperseded
			c.SupersededAt = &at
			c.UpdatedAt = at
			m.s.invitations[id] = c
			n++
		}
	}
	return n, nil
}

func (m *mockInvitationRepo) MarkExpired(_ context.Context, invitationID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.invitations[invitationID]; ok && c.Status == model.InvitationPending {
		c.Status = model.InvitationExpired
		c.UpdatedAt = time.Now()
		m.s.invitations[invitationID] = c
	}
	return nil
}

func (m *mockInvitationRepo) RecordRedemption(_ context.Context, code *model.InvitationCode, studentID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.invitations[code.InvitationID]
	if !ok || stored.Status != model.InvitationPending || stored.UsageCount != code.UsageCount {
		return pkgerrors.ErrOptimisticLock
	}
	stored.UsageCount++
	stored.RedeemedAt = &at
	stored.RedeemedBy = &studentID
	stored.UpdatedAt = at
	if stored.MaxRedemptions > 0 && stored.UsageCount >= stored.MaxRedemptions {
		stored.Status = model.InvitationRedeemed
	}
	m.s.invitations[code.InvitationID] = stored
	*code = stored
	return nil
}

func (m *mockInvitationRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, c := range m.s.invitations {
		if c.Status == model.InvitationPending && c.ExpiresAt.Before(now) {
			c.Status = model.InvitationExpired
			c.UpdatedAt = now
			m.s.invitations[id] = c
			n++
		}
	}
	return n, nil
}

func (m *mockInvitationRepo) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, c := range m.s.invitations {
		if (c.Status == model.InvitationExpired || c.Status == model.InvitationSuperseded) && c.UpdatedAt.Before(before) {
			delete(m.s.invitations, id)
			n++
		}
	}
	return n, nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	s *memStore
}

func enrollmentKey(classroomID, studentID string) string {
	return classroomID + "|" + studentID
}

func (m *mockEnrollmentRepo) Create(_ context.Context, enrollment *model.Enrollment) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := enrollmentKey(enrollment.ClassroomID, enrollment.StudentID)
	if _, ok := m.s.enrollments[key]; ok {
		return false, nil
	}
	if enrollment.EnrollmentID == "" {
		enrollment.EnrollmentID = m.s.id("enr")
	}
	m.s.enrollments[key] = *enrollment
	return true, nil
}

func (m *mockEnrollmentRepo) Exists(_ context.Context, classroomID, studentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.enrollments[enrollmentKey(classroomID, studentID)]
	return ok, nil
}

func (m *mockEnrollmentRepo) Delete(_ context.Context, classroomID, studentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := enrollmentKey(classroomID, studentID)
	if _, ok := m.s.enrollments[key]; !ok {
		return false, nil
	}
	delete(m.s.enrollments, key)
	return true, nil
}

func (m *mockEnrollmentRepo) ListByClassroom(_ context.Context, classroomID string, offset, limit int) ([]model.Enrollment, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Enrollment
	for _, e := range m.s.enrollments {
		if e.ClassroomID == classroomID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StudentID < all[j].StudentID })

	total := int64(len(all))
	if offset >= len(all) {
		return []model.Enrollment{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock WalletRepository ──

type mockWalletRepo struct {
	s *memStore
}

func (m *mockWalletRepo) CreateIfAbsent(_ context.Context, wallet *model.Wallet) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.wallets {
		if w.OwnerID == wallet.OwnerID {
			return false, nil
		}
		if w.Address == wallet.Address {
			return false, repository.ErrDuplicate
		}
	}
	if wallet.WalletID == "" {
		wallet.WalletID = m.s.id("wallet")
	}
	m.s.wallets[wallet.WalletID] = *wallet
	return true, nil
}

func (m *mockWalletRepo) GetByID(_ context.Context, id string) (*model.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if w, ok := m.s.wallets[id]; ok {
		return &w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWalletRepo) GetByOwner(_ context.Context, ownerID string) (*model.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.wallets {
		if w.OwnerID == ownerID {
			return &w, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWalletRepo) ListByIDs(_ context.Context, ids []string) ([]model.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Wallet
	for _, id := range ids {
		if w, ok := m.s.wallets[id]; ok {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *mockWalletRepo) Credit(_ context.Context, walletID string, points int64) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.wallets[walletID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	w.PointBalance += points
	m.s.wallets[walletID] = w
	return w.PointBalance, nil
}

// ── Mock RewardTokenRepository ──

type mockRewardTokenRepo struct {
	s *memStore
}

func (m *mockRewardTokenRepo) Create(_ context.Context, token *model.RewardToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if token.TokenID == "" {
		token.TokenID = m.s.id("tok")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	m.s.tokens[token.TokenID] = *token
	return nil
}

func (m *mockRewardTokenRepo) GetByID(_ context.Context, id string) (*model.RewardToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.tokens[id]; ok {
		return &t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRewardTokenRepo) ListByOwner(_ context.Context, walletID string, offset, limit int) ([]model.RewardToken, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.RewardToken
	for _, t := range m.s.tokens {
		if t.OwnerWalletID != nil && *t.OwnerWalletID == walletID {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TokenID < all[j].TokenID })

	total := int64(len(all))
	if offset >= len(all) {
		return []model.RewardToken{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRewardTokenRepo) UpdateOwner(_ context.Context, tokenID string, expectedSequence int64, ownerWalletID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tokens[tokenID]
	if !ok || t.LastSequence != expectedSequence {
		return pkgerrors.ErrOptimisticLock
	}
	owner := ownerWalletID
	t.OwnerWalletID = &owner
	t.LastSequence = expectedSequence + 1
	m.s.tokens[tokenID] = t
	return nil
}

func (m *mockRewardTokenRepo) List(_ context.Context, afterID string, limit int) ([]model.RewardToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.RewardToken
	for _, t := range m.s.tokens {
		if t.TokenID > afterID {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TokenID < all[j].TokenID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRewardTokenRepo) SetProjection(_ context.Context, tokenID string, ownerWalletID *string, lastSequence int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tokens[tokenID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.OwnerWalletID = ownerWalletID
	t.LastSequence = lastSequence
	m.s.tokens[tokenID] = t
	return nil
}

// ── Mock LedgerRepository ──

type mockLedgerRepo struct {
	s *memStore
}

func (m *mockLedgerRepo) Append(_ context.Context, entry *model.LedgerEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.ledger {
		if e.TokenID == entry.TokenID && e.Sequence == entry.Sequence {
			return repository.ErrDuplicate
		}
	}
	if entry.EntryID == "" {
		entry.EntryID = m.s.id("entry")
	}
	m.s.ledger = append(m.s.ledger, *entry)
	return nil
}

func (m *mockLedgerRepo) ListByToken(_ context.Context, tokenID string) ([]model.LedgerEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.LedgerEntry
	for _, e := range m.s.ledger {
		if e.TokenID == tokenID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *mockLedgerRepo) Latest(ctx context.Context, tokenID string) (*model.LedgerEntry, error) {
	entries, _ := m.ListByToken(ctx, tokenID)
	if len(entries) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

// ── Mock PointAwardRepository ──

type mockPointAwardRepo struct {
	s *memStore
}

func (m *mockPointAwardRepo) Create(_ context.Context, award *model.PointAward) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if award.AwardID == "" {
		award.AwardID = m.s.id("award")
	}
	m.s.awards = append(m.s.awards, *award)
	return nil
}

// ── Mock EventPublisher ──

type publishedEvent struct {
	subject string
	payload any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{subject: subject, payload: v})
	return nil
}

func (p *mockPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}
