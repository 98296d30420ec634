package repository

import (
	"context"
	"fmt"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"gorm.io/gorm"
)

type QuestionPaperRepository struct {
	DB *gorm.DB
}

func NewQuestionPaperRepository(db *gorm.DB) *QuestionPaperRepository {
	return &QuestionPaperRepository{DB: db}
}

// PublishApproved 把任务中已通过的题目固化为一份新试卷。
// 表头与题目在同一事务中写入，没有通过的题目时返回 ErrNothingToPublish 且不写任何数据。
func (r *QuestionPaperRepository) PublishApproved(ctx context.Context, job *model.TestPaper, ownerID string) (*model.QuestionPaper, error) {
	var paper *model.QuestionPaper
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var approved []model.ParsedQuestion
		if err := tx.Where("test_paper_id = ? AND review_status = ?", job.ID, string(model.ReviewApproved)).
			Order("sequence_in_doc asc").
			Find(&approved).Error; err != nil {
			return err
		}
		if len(approved) == 0 {
			return fmt.Errorf("%w: test paper %s has no approved questions", util.ErrNothingToPublish, job.ID)
		}

		paper = &model.QuestionPaper{
			OwnerID:        ownerID,
			Title:          job.Title,
			Subject:        job.Subject,
			SourceJobID:    job.ID,
			TotalQuestions: len(approved),
		}
		if err := tx.Omit("Questions").Create(paper).Error; err != nil {
			return err
		}

		questions := make([]model.PaperQuestion, 0, len(approved))
		for i, q := range approved {
			// 复制值，发布后与可编辑的解析题目解耦
			options := make([]string, len(q.Options))
			copy(options, q.Options)
			var answer *string
			if q.DetectedAnswer != nil {
				answer = util.StringPtr(*q.DetectedAnswer)
			}
			questions = append(questions, model.PaperQuestion{
				PaperID:       paper.ID,
				Order:         i + 1,
				QuestionText:  q.QuestionText,
				Options:       options,
				CorrectAnswer: answer,
			})
		}
		if err := tx.CreateInBatches(&questions, 100).Error; err != nil {
			return err
		}
		paper.Questions = questions

		return tx.Model(&model.UploadProgress{}).Where("test_paper_id = ?", job.ID).
			Updates(map[string]interface{}{
				"questions_confirmed": len(approved),
				"last_updated":        time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (r *QuestionPaperRepository) FindByID(ctx context.Context, id string) (*model.QuestionPaper, error) {
	var paper model.QuestionPaper
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&paper, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "question paper", id)
	}
	return &paper, nil
}

func (r *QuestionPaperRepository) ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]model.QuestionPaper, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.QuestionPaper{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var papers []model.QuestionPaper
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("created_at desc").Find(&papers).Error
	return papers, total, err
}

func (r *QuestionPaperRepository) CountBySourceJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuestionPaper{}).Where("source_job_id = ?", jobID).Count(&count).Error
	return count, err
}
