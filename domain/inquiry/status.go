package inquiry

import (
	"fmt"

	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/model"
)

// 実委が作った問い合わせは作成者が実委側担当者なので対応中から始まる
func initialStatus(creator model.Side) model.InquiryStatus {
	if creator == model.SideCommittee {
		return model.InquiryStatusInProgress
	}
	return model.InquiryStatusUnassigned
}

func resolveTransition(current model.InquiryStatus) (infra.StatusTransition, error) {
	switch current {
	case model.InquiryStatusUnassigned, model.InquiryStatusInProgress:
		return infra.StatusTransition{From: current, To: model.InquiryStatusResolved}, nil
	}
	return infra.StatusTransition{}, fmt.Errorf("%w: cannot resolve %s inquiry", ErrInvalidState, current)
}

func reopenTransition(current model.InquiryStatus) (infra.StatusTransition, error) {
	if current == model.InquiryStatusResolved {
		return infra.StatusTransition{From: current, To: model.InquiryStatusInProgress}, nil
	}
	return infra.StatusTransition{}, fmt.Errorf("%w: cannot reopen %s inquiry", ErrInvalidState, current)
}

// 実委側担当者が付いたときだけ未対応から対応中に進める
func assignTransition(side model.Side) *infra.StatusTransition {
	if side != model.SideCommittee {
		return nil
	}
	return &infra.StatusTransition{From: model.InquiryStatusUnassigned, To: model.InquiryStatusInProgress}
}
