package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/repository"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// FileInput 一个待上传文件
type FileInput struct {
	Filename string
	MimeType string
	Data     []byte
}

// UploadInput 上传请求，题目文件必填，答案文件可选
type UploadInput struct {
	OwnerID         string     `validate:"required"`
	Title           string     `validate:"required,max=255"`
	Subject         string     `validate:"max=100"`
	DurationMinutes *int       `validate:"omitempty,min=1,max=1440"`
	Difficulty      string     `validate:"max=20"`
	Description     string     `validate:"max=5000"`
	Tags            []string   `validate:"max=20,dive,max=50"`
	QuestionFile    *FileInput `validate:"required"`
	AnswerFile      *FileInput
}

type TestPaperService struct {
	Repo      *repository.TestPaperRepository
	Questions *repository.ParsedQuestionRepository
	Store     *DocumentStore
}

func NewTestPaperService(repo *repository.TestPaperRepository, questions *repository.ParsedQuestionRepository, store *DocumentStore) *TestPaperService {
	return &TestPaperService{Repo: repo, Questions: questions, Store: store}
}

// ownedPaper 归属不符按不存在处理，不暴露其他用户的任务
func ownedPaper(ctx context.Context, repo *repository.TestPaperRepository, ownerID, id string) (*model.TestPaper, error) {
	paper, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: test paper %s", util.ErrNotFound, id)
	}
	return paper, nil
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", util.ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
}

// Upload 写入文件并创建 queued 任务。任一文件失败则整体失败，已写入的对象尽力清理。
func (s *TestPaperService) Upload(ctx context.Context, in UploadInput) (*model.TestPaper, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	paperID := model.GenerateUUID()
	inputs := []struct {
		role model.FileRole
		file *FileInput
	}{
		{model.RoleQuestions, in.QuestionFile},
		{model.RoleAnswers, in.AnswerFile},
	}

	var (
		files []model.UploadFile
		keys  []string
	)
	for _, item := range inputs {
		if item.file == nil {
			continue
		}
		obj, err := s.Store.Store(ctx, in.OwnerID, paperID, item.file.Filename, item.file.Data, item.file.MimeType)
		if err != nil {
			s.Store.Remove(context.WithoutCancel(ctx), keys...)
			return nil, fmt.Errorf("%s file: %w", item.role, err)
		}
		keys = append(keys, obj.Key)
		files = append(files, model.UploadFile{
			OwnerID:    in.OwnerID,
			Role:       item.role,
			StorageKey: obj.Key,
			Filename:   util.SanitizeFilename(item.file.Filename),
			MimeType:   obj.MimeType,
			SizeBytes:  obj.Size,
		})
	}

	paper := &model.TestPaper{
		UUIDBase:        model.UUIDBase{ID: paperID},
		OwnerID:         in.OwnerID,
		Title:           in.Title,
		Subject:         strings.TrimSpace(in.Subject),
		Status:          model.JobQueued,
		DurationMinutes: in.DurationMinutes,
		Difficulty:      strings.TrimSpace(in.Difficulty),
		Description:     in.Description,
		Tags:            in.Tags,
	}
	if err := s.Repo.CreateWithFiles(ctx, paper, files); err != nil {
		s.Store.Remove(context.WithoutCancel(ctx), keys...)
		return nil, err
	}
	paper.Files = files

	logger.Log.Info("Test paper uploaded",
		zap.String("job_id", paper.ID),
		zap.String("owner_id", paper.OwnerID),
		zap.Int("files", len(files)))
	return paper, nil
}

func (s *TestPaperService) Get(ctx context.Context, ownerID, id string) (*model.TestPaper, error) {
	if _, err := ownedPaper(ctx, s.Repo, ownerID, id); err != nil {
		return nil, err
	}
	return s.Repo.FindDetail(ctx, id)
}

func (s *TestPaperService) List(ctx context.Context, ownerID, status string, page, limit int) ([]model.TestPaper, int64, error) {
	if status != "" && status != "all" && !model.JobStatus(status).Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, status)
	}
	return s.Repo.ListByOwner(ctx, ownerID, status, page, limit)
}

func (s *TestPaperService) ListQuestions(ctx context.Context, ownerID, id string) ([]model.ParsedQuestion, error) {
	if _, err := ownedPaper(ctx, s.Repo, ownerID, id); err != nil {
		return nil, err
	}
	return s.Questions.ListByPaper(ctx, id)
}

func (s *TestPaperService) ListParsingErrors(ctx context.Context, ownerID, id string) ([]model.ParsingError, error) {
	if _, err := ownedPaper(ctx, s.Repo, ownerID, id); err != nil {
		return nil, err
	}
	return s.Questions.ListParsingErrors(ctx, id)
}

func (s *TestPaperService) Progress(ctx context.Context, ownerID, id string) (*model.UploadProgress, error) {
	if _, err := ownedPaper(ctx, s.Repo, ownerID, id); err != nil {
		return nil, err
	}
	return s.Repo.FindProgress(ctx, id)
}

// Delete 级联删除任务；处理中的任务不能删除
func (s *TestPaperService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := ownedPaper(ctx, s.Repo, ownerID, id); err != nil {
		return err
	}
	files, err := s.Repo.ListFiles(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.StorageKey)
	}
	s.Store.Remove(context.WithoutCancel(ctx), keys...)

	logger.Log.Info("Test paper deleted", zap.String("job_id", id), zap.String("owner_id", ownerID))
	return nil
}
