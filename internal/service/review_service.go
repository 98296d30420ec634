package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/repository"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/logger"
	"paperflow_backend/pkg/monitoring"
	"paperflow_backend/pkg/tracing"

	"go.uber.org/zap"
)

// QuestionPatch 人工修改题目内容，nil 字段不修改
type QuestionPatch struct {
	QuestionText   *string   `json:"questionText" validate:"omitempty,min=1"`
	Options        *[]string `json:"options" validate:"omitempty,min=2,dive,required"`
	DetectedAnswer *string   `json:"detectedAnswer" validate:"omitempty,max=32"`
}

func (p QuestionPatch) empty() bool {
	return p.QuestionText == nil && p.Options == nil && p.DetectedAnswer == nil
}

// ReviewUpdate 一次审核操作：内容修改与审核结论可以同时提交
type ReviewUpdate struct {
	QuestionPatch
	ReviewStatus *model.ReviewStatus `json:"reviewStatus"`
	ReviewNotes  *string             `json:"reviewNotes" validate:"omitempty,max=2000"`
}

type ReviewService struct {
	Papers    *repository.TestPaperRepository
	Questions *repository.ParsedQuestionRepository
	Published *repository.QuestionPaperRepository

	now func() time.Time
}

func NewReviewService(papers *repository.TestPaperRepository, questions *repository.ParsedQuestionRepository,
	published *repository.QuestionPaperRepository) *ReviewService {
	return &ReviewService{Papers: papers, Questions: questions, Published: published, now: time.Now}
}

// reviewable 任务必须处于 review，题目必须属于该任务
func (s *ReviewService) reviewable(ctx context.Context, ownerID, jobID, questionID string) (*model.ParsedQuestion, error) {
	paper, err := ownedPaper(ctx, s.Papers, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.JobReview {
		return nil, fmt.Errorf("%w: test paper %s is %s, not review", util.ErrInvalidState, jobID, paper.Status)
	}
	q, err := s.Questions.FindByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.TestPaperID != jobID {
		return nil, fmt.Errorf("%w: parsed question %s", util.ErrNotFound, questionID)
	}
	return q, nil
}

// UpdateQuestion 合并内容修改和审核结论，一次保存
func (s *ReviewService) UpdateQuestion(ctx context.Context, reviewerID, jobID, questionID string, req ReviewUpdate) (*model.ParsedQuestion, error) {
	if req.empty() && req.ReviewStatus == nil && req.ReviewNotes == nil {
		return nil, fmt.Errorf("%w: nothing to update", util.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return nil, invalidInput(err)
	}
	if req.ReviewStatus != nil && !req.ReviewStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown review status %q", util.ErrInvalidInput, *req.ReviewStatus)
	}

	q, err := s.reviewable(ctx, reviewerID, jobID, questionID)
	if err != nil {
		return nil, err
	}

	if err := applyPatch(q, req.QuestionPatch); err != nil {
		return nil, err
	}
	if req.ReviewNotes != nil {
		q.ReviewNotes = *req.ReviewNotes
	}
	if req.ReviewStatus != nil {
		s.stamp(q, *req.ReviewStatus, reviewerID)
	}

	if err := s.Questions.Update(ctx, q); err != nil {
		return nil, err
	}
	logger.ForJob(jobID).Info("Parsed question reviewed",
		zap.String("question_id", questionID),
		zap.String("review_status", string(q.ReviewStatus)))
	return q, nil
}

// EditQuestion 只改内容，不重新计算置信度
func (s *ReviewService) EditQuestion(ctx context.Context, ownerID, jobID, questionID string, patch QuestionPatch) (*model.ParsedQuestion, error) {
	if patch.empty() {
		return nil, fmt.Errorf("%w: nothing to update", util.ErrInvalidInput)
	}
	return s.UpdateQuestion(ctx, ownerID, jobID, questionID, ReviewUpdate{QuestionPatch: patch})
}

// SetReviewStatus 设置审核结论；回到 pending 时清空审核人和时间
func (s *ReviewService) SetReviewStatus(ctx context.Context, reviewerID, jobID, questionID string, status model.ReviewStatus, notes *string) (*model.ParsedQuestion, error) {
	return s.UpdateQuestion(ctx, reviewerID, jobID, questionID, ReviewUpdate{ReviewStatus: &status, ReviewNotes: notes})
}

// ConfirmQuestion 修改并直接通过
func (s *ReviewService) ConfirmQuestion(ctx context.Context, reviewerID, jobID, questionID string, patch QuestionPatch) (*model.ParsedQuestion, error) {
	approved := model.ReviewApproved
	return s.UpdateQuestion(ctx, reviewerID, jobID, questionID, ReviewUpdate{QuestionPatch: patch, ReviewStatus: &approved})
}

func (s *ReviewService) stamp(q *model.ParsedQuestion, status model.ReviewStatus, reviewerID string) {
	q.ReviewStatus = status
	if status == model.ReviewPending {
		q.ReviewerID = nil
		q.ReviewedAt = nil
		return
	}
	now := s.now()
	q.ReviewerID = util.StringPtr(reviewerID)
	q.ReviewedAt = &now
}

func applyPatch(q *model.ParsedQuestion, patch QuestionPatch) error {
	if patch.QuestionText != nil {
		text := strings.TrimSpace(*patch.QuestionText)
		if text == "" {
			return fmt.Errorf("%w: question text is empty", util.ErrInvalidInput)
		}
		q.QuestionText = text
	}
	if patch.Options != nil {
		options := make([]string, 0, len(*patch.Options))
		for _, opt := range *patch.Options {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
		if len(options) < 2 {
			return fmt.Errorf("%w: at least 2 options are required", util.ErrInvalidInput)
		}
		q.Options = options
	}
	if patch.DetectedAnswer != nil {
		if answer := strings.TrimSpace(*patch.DetectedAnswer); answer != "" {
			q.DetectedAnswer = &answer
		} else {
			q.DetectedAnswer = nil
		}
	}
	return nil
}

// ConfirmAndPublish 把已通过的题目发布为新试卷。任务状态保持 review，发布记录即完成标志。
func (s *ReviewService) ConfirmAndPublish(ctx context.Context, ownerID, jobID string) (published *model.QuestionPaper, err error) {
	ctx, span := tracing.StartJobSpan(ctx, "review.ConfirmAndPublish", jobID)
	defer func() {
		// 没有可发布题目属于业务结果，不记为 span 错误
		if errors.Is(err, util.ErrNothingToPublish) {
			tracing.EndSpan(span, nil)
			return
		}
		tracing.EndSpan(span, err)
	}()

	paper, err := ownedPaper(ctx, s.Papers, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.JobReview {
		return nil, fmt.Errorf("%w: test paper %s is %s, not review", util.ErrInvalidState, jobID, paper.Status)
	}

	published, err = s.Published.PublishApproved(ctx, paper, ownerID)
	if err != nil {
		result := "error"
		if errors.Is(err, util.ErrNothingToPublish) {
			result = "empty"
		}
		monitoring.Publications.WithLabelValues(result).Inc()
		return nil, err
	}

	monitoring.Publications.WithLabelValues("success").Inc()
	logger.ForJob(jobID).Info("Question paper published",
		zap.String("paper_id", published.ID),
		zap.Int("total_questions", published.TotalQuestions))
	return published, nil
}

func (s *ReviewService) GetPaper(ctx context.Context, ownerID, paperID string) (*model.QuestionPaper, error) {
	paper, err := s.Published.FindByID(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if paper.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: question paper %s", util.ErrNotFound, paperID)
	}
	return paper, nil
}

func (s *ReviewService) ListPapers(ctx context.Context, ownerID string, page, limit int) ([]model.QuestionPaper, int64, error) {
	return s.Published.ListByOwner(ctx, ownerID, page, limit)
}
