package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/model"
)

func IsAssignee(assignees []model.Assignee, userID string, side model.Side) bool {
	return Access{Assignees: assignees}.IsAssignee(userID, side)
}

// eligibility は担当者として追加できるかを立場ごとに判定する
type eligibility func(ctx context.Context, inquiry *model.Inquiry, userID string) (bool, error)

func (s *Service) eligibility(side model.Side) eligibility {
	switch side {
	case model.SideProject:
		// 企画責任者・副責任者・企画メンバー
		return func(ctx context.Context, inquiry *model.Inquiry, userID string) (bool, error) {
			return s.ds.IsProjectMember(ctx, inquiry.ProjectID, userID)
		}
	case model.SideCommittee:
		// 現在委員であること
		return func(ctx context.Context, _ *model.Inquiry, userID string) (bool, error) {
			m, err := s.ds.GetCommitteeMember(ctx, userID)
			return m != nil, err
		}
	}
	return nil
}

// 企画側からは企画側の担当者しか操作できない
func canManageSide(actor Actor, side model.Side) bool {
	return actor.Side == model.SideCommittee || side == model.SideProject
}

// AddAssignee は担当者を追加する。未対応の問い合わせに実委側担当者が付くと対応中になる
func (s *Service) AddAssignee(ctx context.Context, actor Actor, inquiryID, userID string, side model.Side) (*model.Assignee, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrNotEligible)
	}
	if !side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", ErrNotEligible, side)
	}
	if !canManageSide(actor, side) {
		return nil, ErrForbidden
	}
	inquiry, access, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return nil, err
	}
	for _, a := range access.Assignees {
		if a.UserID == userID {
			return nil, ErrAssigneeExists
		}
	}

	ok, err := s.eligibility(side)(ctx, inquiry, userID)
	if err != nil {
		return nil, fmt.Errorf("eligibility check failed: %w", err)
	}
	if !ok {
		return nil, ErrNotEligible
	}

	a := &model.Assignee{
		ID:         s.newID(),
		InquiryID:  inquiry.ID,
		UserID:     userID,
		Side:       side,
		AssignedAt: s.now(),
	}
	act := s.activity(inquiry.ID, model.ActivityAssigneeAdded, actor.UserID, userID)
	transitioned, err := s.ds.AddAssignee(ctx, a, act, assignTransition(side))
	if err != nil {
		switch {
		case errors.Is(err, infra.ErrDuplicate):
			return nil, ErrAssigneeExists
		case errors.Is(err, infra.ErrNotFound):
			return nil, ErrInquiryNotFound
		case errors.Is(err, infra.ErrStatusConflict):
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidState)
		}
		return nil, fmt.Errorf("AddAssignee failed: %w", err)
	}
	slog.Info("Assignee added", slog.String("inquiryID", inquiry.ID), slog.String("userID", userID), slog.String("side", string(side)), slog.Bool("transitioned", transitioned))

	s.notifier.AssigneeAdded(ctx, inquiry, a)
	if transitioned {
		inquiry.Status = model.InquiryStatusInProgress
		inquiry.UpdatedAt = act.CreatedAt
		s.notifier.StatusChanged(ctx, inquiry)
	}
	return a, nil
}

// RemoveAssignee は担当者を外す。作成者は外せない
func (s *Service) RemoveAssignee(ctx context.Context, actor Actor, inquiryID, assigneeID string) error {
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return err
	}
	a, err := s.ds.GetAssignee(ctx, inquiry.ID, assigneeID)
	if err != nil {
		return fmt.Errorf("GetAssignee failed: %w", err)
	}
	if a == nil {
		return ErrAssigneeNotFound
	}
	if a.IsCreator {
		return ErrCreatorAssignee
	}
	if !canManageSide(actor, a.Side) {
		return ErrForbidden
	}

	act := s.activity(inquiry.ID, model.ActivityAssigneeRemoved, actor.UserID, a.UserID)
	if err := s.ds.RemoveAssignee(ctx, a, act); err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return ErrAssigneeNotFound
		}
		return fmt.Errorf("RemoveAssignee failed: %w", err)
	}
	slog.Info("Assignee removed", slog.String("inquiryID", inquiry.ID), slog.String("userID", a.UserID), slog.String("side", string(a.Side)))
	return nil
}
