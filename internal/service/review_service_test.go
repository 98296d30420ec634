package service

import (
	"context"
	"errors"
	"testing"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func approve(t *testing.T, env *testEnv, paper *model.TestPaper, q model.ParsedQuestion, status model.ReviewStatus) {
	t.Helper()
	_, err := env.review.SetReviewStatus(context.Background(), paper.OwnerID, paper.ID, q.ID, status, nil)
	require.NoError(t, err)
}

func TestConfirmAndPublish_ApprovedSubset(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewApproved)
	approve(t, env, paper, qs[1], model.ReviewRejected)
	approve(t, env, paper, qs[2], model.ReviewApproved)

	published, err := env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, published.TotalQuestions)
	assert.Equal(t, paper.ID, published.SourceJobID)
	assert.Equal(t, "Midterm", published.Title)

	stored, err := env.review.GetPaper(context.Background(), "owner-1", published.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
	assert.Equal(t, qs[0].QuestionText, stored.Questions[0].QuestionText)
	assert.Equal(t, 1, stored.Questions[0].Order)
	assert.Equal(t, qs[2].QuestionText, stored.Questions[1].QuestionText)
	assert.Equal(t, 2, stored.Questions[1].Order)
	require.NotNil(t, stored.Questions[0].CorrectAnswer)
	assert.Equal(t, "A", *stored.Questions[0].CorrectAnswer)

	// 发布不改变任务状态
	assert.Equal(t, model.JobReview, env.status(t, paper.ID).Status)

	progress, err := env.papers.FindProgress(context.Background(), paper.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.QuestionsConfirmed)
}

func TestConfirmAndPublish_NothingApproved(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewRejected)
	approve(t, env, paper, qs[1], model.ReviewNeedsChanges)

	_, err := env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	assert.ErrorIs(t, err, util.ErrNothingToPublish)
	assert.Zero(t, env.count(t, &model.QuestionPaper{}))
	assert.Zero(t, env.count(t, &model.PaperQuestion{}))

	got := env.status(t, paper.ID)
	assert.Equal(t, model.JobReview, got.Status)
	assert.Nil(t, got.LastError)
}

func TestConfirmAndPublish_FailureLeavesNoOrphanHeader(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewApproved)

	err := env.db.Callback().Create().Before("gorm:create").Register("test:fail_paper_questions", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "paper_questions" {
			tx.AddError(errors.New("injected write failure"))
		}
	})
	require.NoError(t, err)

	_, err = env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected write failure")
	assert.Zero(t, env.count(t, &model.QuestionPaper{}))
	assert.Zero(t, env.count(t, &model.PaperQuestion{}))
	assert.Equal(t, model.JobReview, env.status(t, paper.ID).Status)
}

func TestConfirmAndPublish_Republish(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewApproved)

	first, err := env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	require.NoError(t, err)
	approve(t, env, paper, qs[1], model.ReviewApproved)
	second, err := env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, first.TotalQuestions)
	assert.Equal(t, 2, second.TotalQuestions)
	n, err := env.published.CountBySourceJob(context.Background(), paper.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestConfirmAndPublish_Guards(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewApproved)

	_, err := env.review.ConfirmAndPublish(context.Background(), "owner-2", paper.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	env.setStatus(t, paper.ID, model.JobFailed)
	_, err = env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	assert.ErrorIs(t, err, util.ErrInvalidState)
	assert.Zero(t, env.count(t, &model.QuestionPaper{}))
}

func TestPublishedPaperIsDecoupledFromEdits(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	approve(t, env, paper, qs[0], model.ReviewApproved)

	published, err := env.review.ConfirmAndPublish(context.Background(), "owner-1", paper.ID)
	require.NoError(t, err)

	_, err = env.review.EditQuestion(context.Background(), "owner-1", paper.ID, qs[0].ID, QuestionPatch{
		QuestionText: strPtr("Edited after publish"),
	})
	require.NoError(t, err)

	stored, err := env.review.GetPaper(context.Background(), "owner-1", published.ID)
	require.NoError(t, err)
	assert.Equal(t, qs[0].QuestionText, stored.Questions[0].QuestionText)
}

func TestSetReviewStatus_StampsReviewer(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")

	q, err := env.review.SetReviewStatus(context.Background(), "owner-1", paper.ID, qs[0].ID, model.ReviewRejected, strPtr("duplicate"))
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, q.ReviewStatus)
	require.NotNil(t, q.ReviewerID)
	assert.Equal(t, "owner-1", *q.ReviewerID)
	assert.NotNil(t, q.ReviewedAt)
	assert.Equal(t, "duplicate", q.ReviewNotes)

	q, err = env.review.SetReviewStatus(context.Background(), "owner-1", paper.ID, qs[0].ID, model.ReviewPending, nil)
	require.NoError(t, err)
	assert.Nil(t, q.ReviewerID)
	assert.Nil(t, q.ReviewedAt)

	stored, err := env.questions.FindByID(context.Background(), qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, stored.ReviewStatus)
	assert.Nil(t, stored.ReviewerID)
	assert.Nil(t, stored.ReviewedAt)
	assert.Equal(t, "duplicate", stored.ReviewNotes)
}

func TestSetReviewStatus_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")

	_, err := env.review.SetReviewStatus(context.Background(), "owner-1", paper.ID, qs[0].ID, model.ReviewStatus("published"), nil)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestEditQuestion(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	before := qs[1]

	q, err := env.review.EditQuestion(context.Background(), "owner-1", paper.ID, before.ID, QuestionPatch{
		QuestionText:   strPtr("  Capital of Italy?  "),
		Options:        &[]string{"A. Paris", "  B. Rome "},
		DetectedAnswer: strPtr("B"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Capital of Italy?", q.QuestionText)
	assert.Equal(t, []string{"A. Paris", "B. Rome"}, []string(q.Options))
	require.NotNil(t, q.DetectedAnswer)
	assert.Equal(t, "B", *q.DetectedAnswer)
	// 置信度与审核状态不因编辑改变
	assert.Equal(t, before.DetectionConfidence, q.DetectionConfidence)
	assert.Equal(t, before.NeedsReview, q.NeedsReview)
	assert.Equal(t, model.ReviewPending, q.ReviewStatus)
	assert.Equal(t, before.SequenceInDoc, q.SequenceInDoc)
}

func TestEditQuestion_Rejections(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")
	other, otherQs := env.reviewed(t, "owner-1")
	ctx := context.Background()
	text := QuestionPatch{QuestionText: strPtr("x")}

	tests := []struct {
		name    string
		owner   string
		jobID   string
		qid     string
		patch   QuestionPatch
		wantErr error
	}{
		{"other owner", "owner-2", paper.ID, qs[0].ID, text, util.ErrNotFound},
		{"question of another job", "owner-1", paper.ID, otherQs[0].ID, text, util.ErrNotFound},
		{"missing question", "owner-1", paper.ID, "nope", text, util.ErrNotFound},
		{"single option", "owner-1", paper.ID, qs[0].ID, QuestionPatch{Options: &[]string{"A"}}, util.ErrInvalidInput},
		{"blank options", "owner-1", paper.ID, qs[0].ID, QuestionPatch{Options: &[]string{"A", " "}}, util.ErrInvalidInput},
		{"blank text", "owner-1", paper.ID, qs[0].ID, QuestionPatch{QuestionText: strPtr("   ")}, util.ErrInvalidInput},
		{"empty patch", "owner-1", paper.ID, qs[0].ID, QuestionPatch{}, util.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.review.EditQuestion(ctx, tt.owner, tt.jobID, tt.qid, tt.patch)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	env.setStatus(t, other.ID, model.JobFailed)
	_, err := env.review.EditQuestion(ctx, "owner-1", other.ID, otherQs[0].ID, text)
	assert.ErrorIs(t, err, util.ErrInvalidState)
	_, err = env.review.SetReviewStatus(ctx, "owner-1", other.ID, otherQs[0].ID, model.ReviewApproved, nil)
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestConfirmQuestion(t *testing.T) {
	env := newTestEnv(t)
	paper, qs := env.reviewed(t, "owner-1")

	q, err := env.review.ConfirmQuestion(context.Background(), "owner-1", paper.ID, qs[2].ID, QuestionPatch{DetectedAnswer: strPtr("A")})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, q.ReviewStatus)
	assert.NotNil(t, q.ReviewedAt)

	// 无修改内容也可以直接确认
	q, err = env.review.ConfirmQuestion(context.Background(), "owner-1", paper.ID, qs[0].ID, QuestionPatch{})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, q.ReviewStatus)

	approved, err := env.questions.ListByPaperAndStatus(context.Background(), paper.ID, model.ReviewApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 2)
}
