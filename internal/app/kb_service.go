package app

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"kbhub/internal/model"
	"kbhub/internal/repository"
)

var (
	ErrKBNotFound       = errors.New("knowledge base not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyMember    = errors.New("user is already a member")
	ErrOwnerImmutable   = errors.New("the owner role cannot be assigned or changed")
	ErrUserNotFound     = errors.New("user not found")
	ErrMemberNotFound   = errors.New("member not found")
)

// roleRank orders member roles for categorical "at least" checks.
// The owner outranks everything and is derived from the foreign key,
// never from a membership row.
var roleRank = map[string]int{
	model.RoleRead:  1,
	model.RoleWrite: 2,
	model.RoleAdmin: 3,
	model.RoleOwner: 4,
}

type KBService struct {
	kbRepo     *repository.KnowledgeBaseRepository
	memberRepo *repository.MembershipRepository
	docRepo    *repository.DocumentRepository
	userRepo   *repository.UserRepository
	activities *ActivityService
}

func NewKBService(
	kbRepo *repository.KnowledgeBaseRepository,
	memberRepo *repository.MembershipRepository,
	docRepo *repository.DocumentRepository,
	userRepo *repository.UserRepository,
	activities *ActivityService,
) *KBService {
	return &KBService{
		kbRepo:     kbRepo,
		memberRepo: memberRepo,
		docRepo:    docRepo,
		userRepo:   userRepo,
		activities: activities,
	}
}

// KBView is the API shape of a knowledge base.
type KBView struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Visibility    string `json:"visibility"`
	OwnerID       uint   `json:"owner_id"`
	OwnerUsername string `json:"owner_username"`
	CreatedAt     string `json:"created_at"`
	DocumentCount int64  `json:"document_count"`
}

// MemberView is the API shape of one member row. The owner is synthesized
// with ID 0 since no membership row exists for them.
type MemberView struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// HasAccess reports whether the user may read the knowledge base:
// public visibility, ownership, or an explicit membership row.
func (s *KBService) HasAccess(kb *model.KnowledgeBase, userID uint) (bool, error) {
	if kb.Visibility == model.VisibilityPublic {
		return true, nil
	}
	if kb.OwnerID == userID {
		return true, nil
	}
	member, err := s.memberRepo.Get(kb.ID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

// roleAtLeast reports whether the user holds minRole or higher on the
// knowledge base. Ownership always satisfies the check.
func (s *KBService) roleAtLeast(kb *model.KnowledgeBase, userID uint, minRole string) (bool, error) {
	if kb.OwnerID == userID {
		return true, nil
	}
	member, err := s.memberRepo.Get(kb.ID, userID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, nil
	}
	return roleRank[member.Role] >= roleRank[minRole], nil
}

// AccessibleKBIDs resolves every knowledge base id the user may query:
// owned, member of, or public.
func (s *KBService) AccessibleKBIDs(userID uint) ([]uint, error) {
	visible, err := s.kbRepo.ListVisibleTo(userID)
	if err != nil {
		return nil, err
	}
	publicIDs, err := s.kbRepo.ListPublicIDs()
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var ids []uint
	for _, kb := range visible {
		if !seen[kb.ID] {
			seen[kb.ID] = true
			ids = append(ids, kb.ID)
		}
	}
	for _, id := range publicIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type CreateKBInput struct {
	OwnerID     uint
	Name        string
	Description string
	Visibility  string
}

func (s *KBService) Create(ctx context.Context, input CreateKBInput) (*KBView, error) {
	name := strings.TrimSpace(input.Name)
	if input.OwnerID == 0 || name == "" {
		return nil, ErrInvalidInput
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}
	if visibility != model.VisibilityPublic && visibility != model.VisibilityPrivate {
		return nil, ErrInvalidInput
	}

	kb := &model.KnowledgeBase{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Visibility:  visibility,
		OwnerID:     input.OwnerID,
	}
	if err := s.kbRepo.Create(kb); err != nil {
		return nil, err
	}

	s.activities.Record(ctx, input.OwnerID, model.ActionCreateKB, kb.ID, map[string]interface{}{
		"name": kb.Name,
	})
	return s.view(kb)
}

func (s *KBService) List(userID uint) ([]KBView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	kbs, err := s.kbRepo.ListVisibleTo(userID)
	if err != nil {
		return nil, err
	}
	views := make([]KBView, 0, len(kbs))
	for i := range kbs {
		v, err := s.view(&kbs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *KBService) Get(userID, kbID uint) (*KBView, error) {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return nil, err
	}
	ok, err := s.HasAccess(kb, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return s.view(kb)
}

type UpdateKBInput struct {
	Name        *string
	Description *string
	Visibility  *string
}

// Update changes name/description/visibility; requires admin or owner.
func (s *KBService) Update(userID, kbID uint, input UpdateKBInput) (*KBView, error) {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return nil, err
	}
	ok, err := s.roleAtLeast(kb, userID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		kb.Name = name
	}
	if input.Description != nil {
		kb.Description = strings.TrimSpace(*input.Description)
	}
	if input.Visibility != nil {
		if *input.Visibility != model.VisibilityPublic && *input.Visibility != model.VisibilityPrivate {
			return nil, ErrInvalidInput
		}
		kb.Visibility = *input.Visibility
	}
	if err := s.kbRepo.Update(kb); err != nil {
		return nil, err
	}
	return s.view(kb)
}

// Delete removes the knowledge base with all memberships, documents and
// chunks. Strictly owner-only, not delegable to admins.
func (s *KBService) Delete(userID, kbID uint) error {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return err
	}
	if kb.OwnerID != userID {
		return ErrPermissionDenied
	}
	return s.kbRepo.Delete(kbID)
}

func (s *KBService) ListMembers(userID, kbID uint) ([]MemberView, error) {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return nil, err
	}
	ok, err := s.HasAccess(kb, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	members, err := s.memberRepo.ListByKnowledgeBase(kbID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(members)+1)
	userIDs = append(userIDs, kb.OwnerID)
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.userRepo.GetByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	views := make([]MemberView, 0, len(members)+1)
	if owner := byID[kb.OwnerID]; owner != nil {
		views = append(views, MemberView{
			ID:        0,
			UserID:    owner.ID,
			Username:  owner.Username,
			Email:     owner.Email,
			Role:      model.RoleOwner,
			CreatedAt: kb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	for _, m := range members {
		u := byID[m.UserID]
		if u == nil {
			continue
		}
		views = append(views, MemberView{
			ID:        m.ID,
			UserID:    u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Role:      m.Role,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return views, nil
}

type AddMemberInput struct {
	ActorID uint
	KBID    uint
	UserID  uint
	Role    string
}

func (s *KBService) AddMember(ctx context.Context, input AddMemberInput) (*MemberView, error) {
	kb, err := s.requireKB(input.KBID)
	if err != nil {
		return nil, err
	}
	ok, err := s.roleAtLeast(kb, input.ActorID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	if input.UserID == kb.OwnerID || input.Role == model.RoleOwner {
		return nil, ErrOwnerImmutable
	}
	if roleRank[input.Role] == 0 {
		return nil, ErrInvalidInput
	}

	existing, err := s.memberRepo.Get(input.KBID, input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	member := &model.Membership{
		KnowledgeBaseID: input.KBID,
		UserID:          input.UserID,
		Role:            input.Role,
	}
	if err := s.memberRepo.Create(member); err != nil {
		return nil, err
	}

	s.activities.Record(ctx, input.ActorID, model.ActionAddMember, kb.ID, map[string]interface{}{
		"member_username": user.Username,
		"role":            input.Role,
	})
	return &MemberView{
		ID:        member.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      member.Role,
		CreatedAt: member.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// UpdateMemberRole changes a member's role. The owner is not reachable
// through this path: they have no membership row and the owner role cannot
// be granted here.
func (s *KBService) UpdateMemberRole(actorID, kbID, targetUserID uint, role string) error {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return err
	}
	ok, err := s.roleAtLeast(kb, actorID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if targetUserID == kb.OwnerID || role == model.RoleOwner {
		return ErrOwnerImmutable
	}
	if roleRank[role] == 0 {
		return ErrInvalidInput
	}

	if err := s.memberRepo.UpdateRole(kbID, targetUserID, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func (s *KBService) RemoveMember(actorID, kbID, targetUserID uint) error {
	kb, err := s.requireKB(kbID)
	if err != nil {
		return err
	}
	ok, err := s.roleAtLeast(kb, actorID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if targetUserID == kb.OwnerID {
		return ErrOwnerImmutable
	}

	if err := s.memberRepo.Delete(kbID, targetUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func (s *KBService) requireKB(kbID uint) (*model.KnowledgeBase, error) {
	kb, err := s.kbRepo.GetByID(kbID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrKBNotFound
	}
	return kb, nil
}

func (s *KBService) view(kb *model.KnowledgeBase) (*KBView, error) {
	docCount, err := s.docRepo.CountByKnowledgeBase(kb.ID)
	if err != nil {
		return nil, err
	}
	ownerUsername := ""
	if owner, err := s.userRepo.GetByID(kb.OwnerID); err == nil && owner != nil {
		ownerUsername = owner.Username
	}
	return &KBView{
		ID:            kb.ID,
		Name:          kb.Name,
		Description:   kb.Description,
		Visibility:    kb.Visibility,
		OwnerID:       kb.OwnerID,
		OwnerUsername: ownerUsername,
		CreatedAt:     kb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		DocumentCount: docCount,
	}, nil
}
