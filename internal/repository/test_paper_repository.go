package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"gorm.io/gorm"
)

type TestPaperRepository struct {
	DB *gorm.DB
}

func NewTestPaperRepository(db *gorm.DB) *TestPaperRepository {
	return &TestPaperRepository{DB: db}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", util.ErrNotFound, what, id)
	}
	return err
}

// CreateWithFiles 同一事务内写入试卷、文件记录与进度行
func (r *TestPaperRepository) CreateWithFiles(ctx context.Context, paper *model.TestPaper, files []model.UploadFile) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files", "Questions").Create(paper).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].TestPaperID = paper.ID
		}
		if len(files) > 0 {
			if err := tx.Create(&files).Error; err != nil {
				return err
			}
		}
		progress := &model.UploadProgress{TestPaperID: paper.ID, TotalFiles: len(files)}
		return tx.Create(progress).Error
	})
}

func (r *TestPaperRepository) FindByID(ctx context.Context, id string) (*model.TestPaper, error) {
	var paper model.TestPaper
	if err := r.DB.WithContext(ctx).First(&paper, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "test paper", id)
	}
	return &paper, nil
}

// FindDetail 带文件与解析题目
func (r *TestPaperRepository) FindDetail(ctx context.Context, id string) (*model.TestPaper, error) {
	var paper model.TestPaper
	err := r.DB.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("role asc") }).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_in_doc asc") }).
		First(&paper, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "test paper", id)
	}
	return &paper, nil
}

func (r *TestPaperRepository) ListByOwner(ctx context.Context, ownerID string, status string, page, limit int) ([]model.TestPaper, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.TestPaper{}).Where("owner_id = ?", ownerID)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var papers []model.TestPaper
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("created_at desc").Find(&papers).Error
	return papers, total, err
}

// ClaimForProcessing 原子地把任务切到 processing。
// 仅当当前状态允许迁移时生效，返回是否抢占成功。
func (r *TestPaperRepository) ClaimForProcessing(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.TestPaper{}).
		Where("id = ? AND status IN ?", id, model.ClaimableStatuses()).
		Updates(map[string]interface{}{
			"status":                string(model.JobProcessing),
			"last_error":            nil,
			"processing_started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed processing → failed，并记录原因
func (r *TestPaperRepository) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.TestPaper{}).
		Where("id = ? AND status = ?", id, string(model.JobProcessing)).
		Updates(map[string]interface{}{
			"status":                string(model.JobFailed),
			"last_error":            reason,
			"processing_started_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FailStuck 把超过 cutoff 仍在 processing 的任务标记为失败
func (r *TestPaperRepository) FailStuck(ctx context.Context, cutoff time.Time, reason string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.TestPaper{}).
			Where("status = ? AND processing_started_at < ?", string(model.JobProcessing), cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&model.TestPaper{}).
			Where("id IN ? AND status = ?", ids, string(model.JobProcessing)).
			Updates(map[string]interface{}{
				"status":                string(model.JobFailed),
				"last_error":            reason,
				"processing_started_at": nil,
			}).Error
	})
	return ids, err
}

func (r *TestPaperRepository) FindFileByRole(ctx context.Context, paperID string, role model.FileRole) (*model.UploadFile, error) {
	var f model.UploadFile
	err := r.DB.WithContext(ctx).Where("test_paper_id = ? AND role = ?", paperID, string(role)).First(&f).Error
	if err != nil {
		return nil, notFound(err, "upload file", string(role))
	}
	return &f, nil
}

func (r *TestPaperRepository) ListFiles(ctx context.Context, paperID string) ([]model.UploadFile, error) {
	var files []model.UploadFile
	err := r.DB.WithContext(ctx).Where("test_paper_id = ?", paperID).Order("role asc").Find(&files).Error
	return files, err
}

func (r *TestPaperRepository) SetFilePageCount(ctx context.Context, fileID string, pages int) error {
	return r.DB.WithContext(ctx).Model(&model.UploadFile{}).Where("id = ?", fileID).Update("page_count", pages).Error
}

func (r *TestPaperRepository) FindProgress(ctx context.Context, paperID string) (*model.UploadProgress, error) {
	var p model.UploadProgress
	if err := r.DB.WithContext(ctx).First(&p, "test_paper_id = ?", paperID).Error; err != nil {
		return nil, notFound(err, "upload progress", paperID)
	}
	return &p, nil
}

// Delete 级联删除文件、题目、解析错误与进度；已发布试卷不受影响
func (r *TestPaperRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status <> ?", id, string(model.JobProcessing)).Delete(&model.TestPaper{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.TestPaper{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: test paper %s", util.ErrNotFound, id)
			}
			return fmt.Errorf("%w: test paper %s is processing", util.ErrInvalidState, id)
		}
		if err := tx.Where("test_paper_id = ?", id).Delete(&model.ParsedQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_paper_id = ?", id).Delete(&model.ParsingError{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_paper_id = ?", id).Delete(&model.UploadFile{}).Error; err != nil {
			return err
		}
		return tx.Where("test_paper_id = ?", id).Delete(&model.UploadProgress{}).Error
	})
}
