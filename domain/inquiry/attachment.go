package inquiry

import (
	"context"
	"fmt"

	"github.com/sohosai/sos26-sub000/domain/fileaccess"
)

// AttachmentChecker は問い合わせに添付されたファイルを、その問い合わせを閲覧できる人に許可する
func (s *Service) AttachmentChecker() fileaccess.Checker {
	return fileaccess.CheckerFunc("inquiry_attachment", s.checkAttachment)
}

func (s *Service) checkAttachment(ctx context.Context, fileID string, r fileaccess.Requester) (fileaccess.Decision, error) {
	attachments, err := s.ds.ListAttachmentsByFile(ctx, fileID)
	if err != nil {
		return fileaccess.Abstain, fmt.Errorf("ListAttachmentsByFile failed: %w", err)
	}
	for _, a := range attachments {
		access, err := s.loadAccess(ctx, a.InquiryID, r.Committee != nil)
		if err != nil {
			return fileaccess.Abstain, err
		}
		if CanActAsProject(access, r.UserID) || CanView(access, r.Committee) {
			return fileaccess.Allow, nil
		}
	}
	return fileaccess.Abstain, nil
}
