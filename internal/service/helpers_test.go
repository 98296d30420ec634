package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/repository"
	"paperflow_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 最小的 PNG 头，足够 mimetype 识别
var pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// memStorage 内存存储，可注入上传/下载失败
type memStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploadFn func(key string) error
	download error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.uploadFn != nil {
		if err := m.uploadFn(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Download(ctx context.Context, key string) ([]byte, error) {
	if m.download != nil {
		return nil, m.download
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return bytes.Clone(data), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// scriptedExtractor 返回预设结果，记录调用次数
type scriptedExtractor struct {
	mu        sync.Mutex
	calls     int
	questions []model.ExtractedQuestion
	err       error
	hook      func(ctx context.Context) error
}

func (s *scriptedExtractor) Extract(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error) {
	s.mu.Lock()
	s.calls++
	hook, qs, err := s.hook, s.questions, s.err
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.ExtractedQuestion, len(qs))
	for i, q := range qs {
		q.Index = i
		out[i] = q
	}
	return out, nil
}

func (s *scriptedExtractor) set(qs []model.ExtractedQuestion, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions, s.err = qs, err
}

func (s *scriptedExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func candidate(text string, confidence *float64, options ...string) model.ExtractedQuestion {
	return model.ExtractedQuestion{
		QuestionText:   text,
		Options:        options,
		DetectedAnswer: strPtr("A"),
		Confidence:     confidence,
	}
}

func threeCandidates() []model.ExtractedQuestion {
	return []model.ExtractedQuestion{
		candidate("1+1=?", floatPtr(0.95), "A. 2", "B. 3"),
		candidate("Capital of France?", floatPtr(0.5), "A. Paris", "B. Rome", "C. Berlin"),
		candidate("Largest planet?", nil, "A. Jupiter", "B. Mars"),
	}
}

type testEnv struct {
	db        *gorm.DB
	storage   *memStorage
	extractor *scriptedExtractor
	papers    *repository.TestPaperRepository
	questions *repository.ParsedQuestionRepository
	published *repository.QuestionPaperRepository
	store     *DocumentStore
	uploads   *TestPaperService
	pipeline  *PipelineService
	review    *ReviewService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:        db,
		storage:   newMemStorage(),
		extractor: &scriptedExtractor{},
		papers:    repository.NewTestPaperRepository(db),
		questions: repository.NewParsedQuestionRepository(db),
		published: repository.NewQuestionPaperRepository(db),
	}
	env.store = NewDocumentStore(env.storage)
	env.uploads = NewTestPaperService(env.papers, env.questions, env.store)
	env.pipeline = NewPipelineService(env.papers, env.questions, env.store, env.extractor, DefaultPipelineSettings())
	env.review = NewReviewService(env.papers, env.questions, env.published)
	return env
}

func (e *testEnv) upload(t *testing.T, owner string) *model.TestPaper {
	t.Helper()
	paper, err := e.uploads.Upload(context.Background(), UploadInput{
		OwnerID:      owner,
		Title:        "Midterm",
		Subject:      "General",
		QuestionFile: &FileInput{Filename: "questions.png", MimeType: "image/png", Data: pngData},
	})
	require.NoError(t, err)
	return paper
}

// answersOnly 只有答案文件的任务，上传接口不允许，直接写库
func (e *testEnv) answersOnly(t *testing.T, owner string) *model.TestPaper {
	t.Helper()
	ctx := context.Background()
	paperID := model.GenerateUUID()
	obj, err := e.store.Store(ctx, owner, paperID, "answers.png", pngData, "image/png")
	require.NoError(t, err)

	paper := &model.TestPaper{UUIDBase: model.UUIDBase{ID: paperID}, OwnerID: owner, Title: "Answers only", Status: model.JobQueued}
	files := []model.UploadFile{{OwnerID: owner, Role: model.RoleAnswers, StorageKey: obj.Key, MimeType: obj.MimeType}}
	require.NoError(t, e.papers.CreateWithFiles(ctx, paper, files))
	return paper
}

// reviewed 上传并处理完成，返回处于 review 的任务和题目
func (e *testEnv) reviewed(t *testing.T, owner string) (*model.TestPaper, []model.ParsedQuestion) {
	t.Helper()
	e.extractor.set(threeCandidates(), nil)
	paper := e.upload(t, owner)
	_, err := e.pipeline.StartProcessing(context.Background(), paper.ID)
	require.NoError(t, err)

	qs, err := e.questions.ListByPaper(context.Background(), paper.ID)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	return paper, qs
}

func (e *testEnv) status(t *testing.T, id string) *model.TestPaper {
	t.Helper()
	paper, err := e.papers.FindByID(context.Background(), id)
	require.NoError(t, err)
	return paper
}

func (e *testEnv) setStatus(t *testing.T, id string, status model.JobStatus) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.TestPaper{}).Where("id = ?", id).Update("status", string(status)).Error)
}

func (e *testEnv) count(t *testing.T, m interface{}, where ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func hasPrefix(keys []string, prefix string) bool {
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			return false
		}
	}
	return len(keys) > 0
}
