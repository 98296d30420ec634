package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/repository"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/logger"
	"paperflow_backend/pkg/monitoring"
	"paperflow_backend/pkg/tracing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PipelineSettings 可热更新的流水线参数
type PipelineSettings struct {
	ReviewThreshold   float64
	ExtractionTimeout time.Duration
	StuckAfter        time.Duration
}

func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		ReviewThreshold:   0.85,
		ExtractionTimeout: 60 * time.Second,
		StuckAfter:        10 * time.Minute,
	}
}

// PipelineService 试卷抽取状态机：queued/failed → processing → review | failed
type PipelineService struct {
	Papers    *repository.TestPaperRepository
	Questions *repository.ParsedQuestionRepository
	Store     *DocumentStore
	Extractor Extractor

	mu       sync.RWMutex
	settings PipelineSettings
	now      func() time.Time
}

func NewPipelineService(papers *repository.TestPaperRepository, questions *repository.ParsedQuestionRepository,
	store *DocumentStore, extractor Extractor, settings PipelineSettings) *PipelineService {
	return &PipelineService{
		Papers:    papers,
		Questions: questions,
		Store:     store,
		Extractor: extractor,
		settings:  DefaultPipelineSettings().merge(settings),
		now:       time.Now,
	}
}

func (s *PipelineService) Settings() PipelineSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings 配置热更新回调，非法值保留旧值
func (s *PipelineService) UpdateSettings(next PipelineSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.settings.merge(next)
	logger.Log.Info("Pipeline settings updated",
		zap.Float64("review_threshold", s.settings.ReviewThreshold),
		zap.Duration("extraction_timeout", s.settings.ExtractionTimeout),
		zap.Duration("stuck_after", s.settings.StuckAfter))
}

// merge 逐项采用 next 中的合法值。
// StuckAfter 必须大于 ExtractionTimeout，否则拉长到超时的两倍。
func (p PipelineSettings) merge(next PipelineSettings) PipelineSettings {
	if next.ReviewThreshold >= 0 && next.ReviewThreshold <= 1 {
		p.ReviewThreshold = next.ReviewThreshold
	}
	if next.ExtractionTimeout > 0 {
		p.ExtractionTimeout = next.ExtractionTimeout
	}
	if next.StuckAfter > p.ExtractionTimeout {
		p.StuckAfter = next.StuckAfter
	}
	if p.StuckAfter <= p.ExtractionTimeout {
		p.StuckAfter = 2 * p.ExtractionTimeout
	}
	return p
}

// CheckProcessable 异步派发前的预检：归属与状态
func (s *PipelineService) CheckProcessable(ctx context.Context, ownerID, id string) (*model.TestPaper, error) {
	paper, err := ownedPaper(ctx, s.Papers, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !paper.Status.CanTransition(model.JobProcessing) {
		return nil, fmt.Errorf("%w: test paper %s is %s", util.ErrInvalidState, id, paper.Status)
	}
	return paper, nil
}

// StartProcessing 抢占任务并执行一次完整抽取。
// 抢占之后的任何失败都会写入 lastError 并把任务置为 failed，同时把错误返回给调用方。
func (s *PipelineService) StartProcessing(ctx context.Context, id string) (paper *model.TestPaper, err error) {
	ctx, span := tracing.StartJobSpan(ctx, "pipeline.StartProcessing", id)
	defer func() { tracing.EndSpan(span, err) }()

	claimed, err := s.Papers.ClaimForProcessing(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		paper, err := s.Papers.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: test paper %s is %s", util.ErrInvalidState, id, paper.Status)
	}
	log := logger.ForJob(id)
	log.Info("Processing started")

	if err := s.process(ctx, id); err != nil {
		return nil, err
	}

	monitoring.JobsProcessed.WithLabelValues(string(model.JobReview)).Inc()
	log.Info("Processing finished", zap.String("status", string(model.JobReview)))
	return s.Papers.FindByID(ctx, id)
}

func (s *PipelineService) process(ctx context.Context, id string) error {
	settings := s.Settings()

	file, err := s.Papers.FindFileByRole(ctx, id, model.RoleQuestions)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return s.fail(ctx, id, util.MsgNoQuestionFile, fmt.Errorf("%w: %s", util.ErrMissingInput, util.MsgNoQuestionFile))
		}
		return s.fail(ctx, id, "load question file failed", err)
	}

	data, detected, err := s.Store.Fetch(ctx, file.StorageKey)
	if err != nil {
		return s.fail(ctx, id, fmt.Sprintf("%s: %v", util.MsgStorageFetch, err), err)
	}
	mimeType := file.MimeType
	if util.IsPDF(detected) || util.IsImage(detected) {
		mimeType = detected
	}

	pages := s.countPages(ctx, file, data, mimeType)

	candidates, err := s.extract(ctx, data, mimeType, settings.ExtractionTimeout)
	if err != nil {
		return s.fail(ctx, id, err.Error(), err)
	}

	result := repository.ExtractionResult{TotalPages: pages}
	for _, c := range candidates {
		c = NormalizeCandidate(c)
		if problems := CandidateProblems(c); len(problems) > 0 {
			result.Rejected = append(result.Rejected, parsingError(id, file.ID, c, true, append(problems, c.Warnings...)))
			continue
		}
		if len(c.Warnings) > 0 {
			result.Warnings = append(result.Warnings, parsingError(id, file.ID, c, false, c.Warnings))
		}
		result.Questions = append(result.Questions, s.toParsedQuestion(id, file.ID, len(result.Questions)+1, c, settings.ReviewThreshold))
	}

	monitoring.QuestionsExtracted.Add(float64(len(result.Questions)))
	monitoring.QuestionsDropped.Add(float64(len(result.Rejected)))
	if len(result.Rejected) > 0 {
		logger.ForJob(id).Warn("Dropped invalid extraction entries",
			zap.Int("dropped", len(result.Rejected)),
			zap.Int("kept", len(result.Questions)))
	}

	if len(result.Questions) == 0 {
		return s.fail(ctx, id, util.MsgNoQuestions,
			fmt.Errorf("%w: %s (%d entries dropped)", util.ErrExtractionFailed, util.MsgNoQuestions, len(result.Rejected)))
	}

	if err := s.Questions.CommitExtraction(ctx, id, result); err != nil {
		if errors.Is(err, util.ErrInvalidState) {
			// 已被回收器判定超时，结果作废
			monitoring.JobsProcessed.WithLabelValues(string(model.JobFailed)).Inc()
			return err
		}
		return s.fail(ctx, id, "save extraction results failed", err)
	}
	return nil
}

// extract 在超时预算内调用抽取服务；抽取实现不响应取消时也按超时处理
func (s *PipelineService) extract(ctx context.Context, data []byte, mimeType string, timeout time.Duration) ([]model.ExtractedQuestion, error) {
	ctx, span := tracing.Tracer.Start(ctx, "pipeline.Extract",
		trace.WithAttributes(attribute.String("document.mime_type", mimeType), attribute.Int("document.bytes", len(data))))
	defer span.End()

	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		questions []model.ExtractedQuestion
		err       error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		qs, err := s.Extractor.Extract(ectx, data, mimeType)
		done <- outcome{qs, err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ectx.Done():
		res = outcome{err: ectx.Err()}
	}
	monitoring.ExtractionDuration.Observe(time.Since(start).Seconds())

	if res.err != nil {
		span.RecordError(res.err)
		if errors.Is(ectx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: model call timed out after %s", util.ErrExtractionFailed, timeout)
		}
		if !errors.Is(res.err, util.ErrExtractionFailed) {
			return nil, fmt.Errorf("%w: %v", util.ErrExtractionFailed, res.err)
		}
		return nil, res.err
	}
	return res.questions, nil
}

func (s *PipelineService) toParsedQuestion(paperID, fileID string, seq int, c model.ExtractedQuestion, threshold float64) model.ParsedQuestion {
	options := make([]string, 0, len(c.Options))
	for _, opt := range c.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}

	var answer *string
	if c.DetectedAnswer != nil && strings.TrimSpace(*c.DetectedAnswer) != "" {
		answer = util.StringPtr(strings.TrimSpace(*c.DetectedAnswer))
	}

	return model.ParsedQuestion{
		TestPaperID:         paperID,
		SourceFileID:        fileID,
		PageNumber:          c.PageNumber,
		SequenceInDoc:       seq,
		QuestionText:        strings.TrimSpace(c.QuestionText),
		Options:             options,
		DetectedAnswer:      answer,
		DetectionConfidence: c.Confidence,
		NeedsReview:         c.Confidence == nil || *c.Confidence < threshold,
		ReviewStatus:        model.ReviewPending,
	}
}

func parsingError(paperID, fileID string, c model.ExtractedQuestion, dropped bool, problems []string) model.ParsingError {
	details, _ := json.Marshal(c)
	return model.ParsingError{
		TestPaperID:  paperID,
		SourceFileID: fileID,
		EntryIndex:   c.Index,
		Dropped:      dropped,
		ErrorMessage: strings.Join(problems, "; "),
		Details:      details,
	}
}

// countPages PDF 用 pdfcpu 计页，图片按一页；失败不影响抽取
func (s *PipelineService) countPages(ctx context.Context, file *model.UploadFile, data []byte, mimeType string) int {
	pages := 1
	if util.IsPDF(mimeType) {
		n, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			logger.Log.Warn("Failed to count PDF pages", zap.String("file_id", file.ID), zap.Error(err))
			return 0
		}
		pages = n
	}
	if err := s.Papers.SetFilePageCount(ctx, file.ID, pages); err != nil {
		logger.Log.Warn("Failed to save page count", zap.String("file_id", file.ID), zap.Error(err))
	}
	return pages
}

// fail processing → failed。用独立 context 写库，请求被取消时失败状态也要落地。
func (s *PipelineService) fail(ctx context.Context, id, reason string, cause error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := s.Papers.MarkFailed(wctx, id, reason); err != nil {
		logger.ForJob(id).Error("Failed to record processing failure",
			zap.String("reason", reason), zap.Error(err))
	}
	monitoring.JobsProcessed.WithLabelValues(string(model.JobFailed)).Inc()
	logger.ForJob(id).Warn("Processing failed",
		zap.String("status", string(model.JobFailed)),
		zap.String("error", reason))
	return cause
}

// ReapStuckJobs 把 processing 超过 StuckAfter 的任务标记为超时失败
func (s *PipelineService) ReapStuckJobs(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.Settings().StuckAfter)
	ids, err := s.Papers.FailStuck(ctx, cutoff, util.MsgProcessingTimeout)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		monitoring.JobsReaped.Add(float64(len(ids)))
		logger.Log.Warn("Reaped stuck jobs", zap.Strings("job_ids", ids), zap.Time("cutoff", cutoff))
	}
	return len(ids), nil
}
