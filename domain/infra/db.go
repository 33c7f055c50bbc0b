package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/jinzhu/gorm"
	"github.com/mattn/go-sqlite3"
	"github.com/sohosai/sos26-sub000/domain/model"
)

var _ Datastore = (*DataBase)(nil)

type DataBase struct {
	db *gorm.DB
}

func NewDataBase(dbpath string) (*DataBase, error) {
	if dbpath == "" {
		dbpath = "./db/sos.db"
	}
	if !path.IsAbs(dbpath) {
		dbpath = path.Join(os.Getenv("PWD"), dbpath)
	}
	db, err := gorm.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite は書き込みが1本なのでトランザクションを直列化する
	db.DB().SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Inquiry{},
		&model.Assignee{},
		&model.Viewer{},
		&model.Activity{},
		&model.InquiryComment{},
		&model.InquiryAttachment{},
		&model.UploadedFile{},
		&model.Project{},
		&model.ProjectMember{},
		&model.CommitteeMember{},
	).Error; err != nil {
		return nil, fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return &DataBase{db: db}, nil
}

func (d *DataBase) Close() error {
	return d.db.Close()
}

func (d *DataBase) transaction(fn func(tx *gorm.DB) error) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func findInquiry(tx *gorm.DB, id string) (*model.Inquiry, error) {
	var inquiry model.Inquiry
	err := tx.Where("id = ?", id).First(&inquiry).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}

func (d *DataBase) CreateInquiry(_ context.Context, inquiry *model.Inquiry, creator *model.Assignee) error {
	return d.transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inquiry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if err := tx.Create(creator).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

func (d *DataBase) GetInquiry(_ context.Context, id string) (*model.Inquiry, error) {
	return findInquiry(d.db, id)
}

func (d *DataBase) ListInquiries(_ context.Context, projectID string) ([]model.Inquiry, error) {
	var inquiries []model.Inquiry
	q := d.db.Order("created_at desc")
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	err := q.Find(&inquiries).Error
	return inquiries, err
}

func (d *DataBase) UpdateInquiryStatus(_ context.Context, id string, t StatusTransition, act *model.Activity) error {
	return d.transaction(func(tx *gorm.DB) error {
		if err := casStatus(tx, id, t, act); err != nil {
			return err
		}
		return tx.Create(act).Error
	})
}

func casStatus(tx *gorm.DB, id string, t StatusTransition, act *model.Activity) error {
	res := tx.Model(&model.Inquiry{}).
		Where("id = ? AND status = ?", id, t.From).
		UpdateColumns(map[string]interface{}{"status": t.To, "updated_at": act.CreatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStatusConflict
	}
	return nil
}

func (d *DataBase) AddAssignee(_ context.Context, a *model.Assignee, act *model.Activity, auto *StatusTransition) (bool, error) {
	transitioned := false
	err := d.transaction(func(tx *gorm.DB) error {
		inquiry, err := findInquiry(tx, a.InquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return ErrNotFound
		}
		if err := tx.Create(a).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if err := tx.Create(act).Error; err != nil {
			return err
		}
		if auto != nil && inquiry.Status == auto.From {
			if err := casStatus(tx, inquiry.ID, *auto, act); err != nil {
				return err
			}
			transitioned = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

func (d *DataBase) GetAssignee(_ context.Context, inquiryID, assigneeID string) (*model.Assignee, error) {
	var assignee model.Assignee
	err := d.db.Where("inquiry_id = ? AND id = ?", inquiryID, assigneeID).First(&assignee).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignee, nil
}

func (d *DataBase) ListAssignees(_ context.Context, inquiryID string) ([]model.Assignee, error) {
	var assignees []model.Assignee
	err := d.db.Where("inquiry_id = ?", inquiryID).Order("assigned_at asc").Find(&assignees).Error
	return assignees, err
}

func (d *DataBase) RemoveAssignee(_ context.Context, a *model.Assignee, act *model.Activity) error {
	return d.transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND inquiry_id = ? AND is_creator = ?", a.ID, a.InquiryID, false).Delete(&model.Assignee{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}
		return tx.Create(act).Error
	})
}

func (d *DataBase) ListViewers(_ context.Context, inquiryID string) ([]model.Viewer, error) {
	var viewers []model.Viewer
	err := d.db.Where("inquiry_id = ?", inquiryID).Order("position asc").Find(&viewers).Error
	return viewers, err
}

func (d *DataBase) ReplaceViewers(_ context.Context, inquiryID string, viewers []model.Viewer, act *model.Activity) error {
	return d.transaction(func(tx *gorm.DB) error {
		inquiry, err := findInquiry(tx, inquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return ErrNotFound
		}
		if err := tx.Where("inquiry_id = ?", inquiryID).Delete(&model.Viewer{}).Error; err != nil {
			return err
		}
		for i := range viewers {
			viewers[i].InquiryID = inquiryID
			viewers[i].Position = i
			if err := tx.Create(&viewers[i]).Error; err != nil {
				return err
			}
		}
		return tx.Create(act).Error
	})
}

func (d *DataBase) AddComment(_ context.Context, c *model.InquiryComment, blocked model.InquiryStatus) error {
	return d.transaction(func(tx *gorm.DB) error {
		inquiry, err := findInquiry(tx, c.InquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return ErrNotFound
		}
		if inquiry.Status == blocked {
			return ErrStatusConflict
		}
		return tx.Create(c).Error
	})
}

func (d *DataBase) ListComments(_ context.Context, inquiryID string) ([]model.InquiryComment, error) {
	var comments []model.InquiryComment
	err := d.db.Where("inquiry_id = ?", inquiryID).Order("created_at asc").Find(&comments).Error
	return comments, err
}

func (d *DataBase) ListActivities(_ context.Context, inquiryID string) ([]model.Activity, error) {
	var activities []model.Activity
	err := d.db.Where("inquiry_id = ?", inquiryID).Order("created_at asc").Find(&activities).Error
	return activities, err
}

func (d *DataBase) AddAttachment(_ context.Context, a *model.InquiryAttachment, blocked model.InquiryStatus) error {
	return d.transaction(func(tx *gorm.DB) error {
		inquiry, err := findInquiry(tx, a.InquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return ErrNotFound
		}
		if inquiry.Status == blocked {
			return ErrStatusConflict
		}
		if err := tx.Create(a).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

func (d *DataBase) ListAttachments(_ context.Context, inquiryID string) ([]model.InquiryAttachment, error) {
	var attachments []model.InquiryAttachment
	err := d.db.Where("inquiry_id = ?", inquiryID).Order("created_at asc").Find(&attachments).Error
	return attachments, err
}

func (d *DataBase) ListAttachmentsByFile(_ context.Context, fileID string) ([]model.InquiryAttachment, error) {
	var attachments []model.InquiryAttachment
	err := d.db.Where("file_id = ?", fileID).Order("created_at asc").Find(&attachments).Error
	return attachments, err
}

func (d *DataBase) SaveFile(_ context.Context, f *model.UploadedFile) error {
	return d.db.Save(f).Error
}

func (d *DataBase) GetFile(_ context.Context, id string) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := d.db.Where("id = ?", id).First(&f).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (d *DataBase) SaveProject(_ context.Context, p *model.Project) error {
	return d.db.Save(p).Error
}

func (d *DataBase) GetProject(_ context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := d.db.Where("id = ?", id).First(&p).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DataBase) AddProjectMember(_ context.Context, m *model.ProjectMember) error {
	if err := d.db.Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (d *DataBase) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	p, err := d.GetProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	if p.IsLeader(userID) {
		return true, nil
	}
	var count int
	err = d.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

func (d *DataBase) SaveCommitteeMember(_ context.Context, m *model.CommitteeMember) error {
	m.DeletedAt = nil
	return d.db.Unscoped().Save(m).Error
}

func (d *DataBase) GetCommitteeMember(_ context.Context, userID string) (*model.CommitteeMember, error) {
	var m model.CommitteeMember
	err := d.db.Where("user_id = ?", userID).First(&m).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *DataBase) RemoveCommitteeMember(_ context.Context, userID string) error {
	return d.db.Where("user_id = ?", userID).Delete(&model.CommitteeMember{}).Error
}
