package repository

import (
	"context"
	"fmt"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"gorm.io/gorm"
)

type ParsedQuestionRepository struct {
	DB *gorm.DB
}

func NewParsedQuestionRepository(db *gorm.DB) *ParsedQuestionRepository {
	return &ParsedQuestionRepository{DB: db}
}

// ExtractionResult 一次成功抽取需要落库的全部内容
type ExtractionResult struct {
	Questions  []model.ParsedQuestion
	Rejected   []model.ParsingError
	// 保留下来但有字段被置空的条目
	Warnings   []model.ParsingError
	TotalPages int
}

// CommitExtraction 替换该任务已有题目与解析错误，并把任务从 processing 推进到 review。
// 全部在一个事务内完成；任务已不在 processing（例如被超时回收）时回滚并返回 ErrInvalidState。
func (r *ParsedQuestionRepository) CommitExtraction(ctx context.Context, paperID string, result ExtractionResult) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_paper_id = ?", paperID).Delete(&model.ParsedQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_paper_id = ?", paperID).Delete(&model.ParsingError{}).Error; err != nil {
			return err
		}
		if len(result.Questions) > 0 {
			if err := tx.CreateInBatches(&result.Questions, 100).Error; err != nil {
				return err
			}
		}
		if len(result.Rejected) > 0 {
			if err := tx.CreateInBatches(&result.Rejected, 100).Error; err != nil {
				return err
			}
		}

		if len(result.Warnings) > 0 {
			if err := tx.CreateInBatches(&result.Warnings, 100).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.UploadProgress{}).Where("test_paper_id = ?", paperID).
			Updates(map[string]interface{}{
				"total_pages":         result.TotalPages,
				"questions_found":     len(result.Questions) + len(result.Rejected),
				"questions_parsed":    len(result.Questions),
				"questions_confirmed": 0,
				"failed_count":        len(result.Rejected),
				"last_updated":        time.Now(),
			}).Error; err != nil {
			return err
		}

		res := tx.Model(&model.TestPaper{}).
			Where("id = ? AND status = ?", paperID, string(model.JobProcessing)).
			Updates(map[string]interface{}{
				"status":                string(model.JobReview),
				"last_error":            nil,
				"processing_started_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: test paper %s left processing before results were saved", util.ErrInvalidState, paperID)
		}
		return nil
	})
}

func (r *ParsedQuestionRepository) FindByID(ctx context.Context, id string) (*model.ParsedQuestion, error) {
	var q model.ParsedQuestion
	if err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "parsed question", id)
	}
	return &q, nil
}

func (r *ParsedQuestionRepository) ListByPaper(ctx context.Context, paperID string) ([]model.ParsedQuestion, error) {
	var qs []model.ParsedQuestion
	err := r.DB.WithContext(ctx).Where("test_paper_id = ?", paperID).Order("sequence_in_doc asc").Find(&qs).Error
	return qs, err
}

func (r *ParsedQuestionRepository) ListByPaperAndStatus(ctx context.Context, paperID string, status model.ReviewStatus) ([]model.ParsedQuestion, error) {
	var qs []model.ParsedQuestion
	err := r.DB.WithContext(ctx).
		Where("test_paper_id = ? AND review_status = ?", paperID, string(status)).
		Order("sequence_in_doc asc").
		Find(&qs).Error
	return qs, err
}

func (r *ParsedQuestionRepository) Update(ctx context.Context, q *model.ParsedQuestion) error {
	return r.DB.WithContext(ctx).Save(q).Error
}

func (r *ParsedQuestionRepository) ListParsingErrors(ctx context.Context, paperID string) ([]model.ParsingError, error) {
	var errs []model.ParsingError
	err := r.DB.WithContext(ctx).Where("test_paper_id = ?", paperID).Order("entry_index asc").Find(&errs).Error
	return errs, err
}
