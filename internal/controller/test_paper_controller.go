package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"paperflow_backend/internal/service"
	"paperflow_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestPaperController struct {
	Service    *service.TestPaperService
	Pipeline   *service.PipelineService
	Dispatcher service.Dispatcher // nil 表示同步处理
}

func NewTestPaperController(svc *service.TestPaperService, pipeline *service.PipelineService, dispatcher service.Dispatcher) *TestPaperController {
	return &TestPaperController{Service: svc, Pipeline: pipeline, Dispatcher: dispatcher}
}

func readFormFile(fh *multipart.FileHeader) (*service.FileInput, error) {
	if fh.Size > util.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", util.ErrInvalidInput, fh.Filename, util.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, util.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	return &service.FileInput{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func pageParams(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// @Summary 上传试卷
// @Description 题目文件必填，答案文件可选，创建 queued 状态的处理任务
// @Tags 试卷处理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param questionFile formData file true "题目文件(PDF/图片)"
// @Param answerFile formData file false "答案文件(PDF/图片)"
// @Param title formData string true "标题"
// @Param subject formData string false "科目"
// @Param durationMinutes formData int false "时长(分钟)"
// @Param difficulty formData string false "难度"
// @Param description formData string false "描述"
// @Param tags formData string false "标签，逗号分隔"
// @Success 201 {object} util.Response{data=model.TestPaper}
// @Router /jobs [post]
func (c *TestPaperController) Upload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	qh, err := ctx.FormFile("questionFile")
	if err != nil {
		util.BadRequest(ctx, "questionFile is required")
		return
	}
	questionFile, err := readFormFile(qh)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	var answerFile *service.FileInput
	if ah, err := ctx.FormFile("answerFile"); err == nil {
		if answerFile, err = readFormFile(ah); err != nil {
			util.HandleError(ctx, err)
			return
		}
	}

	duration, err := util.ParseOptionalInt(ctx.PostForm("durationMinutes"))
	if err != nil {
		util.BadRequest(ctx, "durationMinutes must be an integer")
		return
	}

	paper, err := c.Service.Upload(ctx.Request.Context(), service.UploadInput{
		OwnerID:         user.UserID,
		Title:           ctx.PostForm("title"),
		Subject:         ctx.PostForm("subject"),
		DurationMinutes: duration,
		Difficulty:      ctx.PostForm("difficulty"),
		Description:     ctx.PostForm("description"),
		Tags:            util.SplitTags(ctx.PostForm("tags")),
		QuestionFile:    questionFile,
		AnswerFile:      answerFile,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, paper)
}

// @Summary 任务列表
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param status query string false "状态过滤 queued/processing/review/failed"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /jobs [get]
func (c *TestPaperController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pageParams(ctx)

	papers, total, err := c.Service.List(ctx.Request.Context(), user.UserID, ctx.Query("status"), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: papers, Total: total, Page: page, Limit: limit})
}

// @Summary 任务详情
// @Description 包含文件与解析题目
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.TestPaper}
// @Router /jobs/{id} [get]
func (c *TestPaperController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	paper, err := c.Service.Get(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary 删除任务
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response
// @Router /jobs/{id} [delete]
func (c *TestPaperController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.Delete(ctx.Request.Context(), user.UserID, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": ctx.Param("id")})
}

// @Summary 触发抽取
// @Description 同步模式直接返回处理结果；异步模式入队后返回 202，通过任务状态轮询
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.TestPaper}
// @Success 202 {object} util.Response
// @Router /jobs/{id}/process [post]
func (c *TestPaperController) Process(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id := ctx.Param("id")

	paper, err := c.Pipeline.CheckProcessable(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if c.Dispatcher != nil {
		if err := c.Dispatcher.Enqueue(ctx.Request.Context(), id); err != nil {
			util.HandleError(ctx, err)
			return
		}
		util.Accepted(ctx, gin.H{"id": id, "status": paper.Status})
		return
	}

	processed, err := c.Pipeline.StartProcessing(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, processed)
}

// @Summary 解析题目列表
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=[]model.ParsedQuestion}
// @Router /jobs/{id}/questions [get]
func (c *TestPaperController) ListQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	questions, err := c.Service.ListQuestions(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// @Summary 被丢弃的抽取条目
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=[]model.ParsingError}
// @Router /jobs/{id}/parsing-errors [get]
func (c *TestPaperController) ListParsingErrors(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	errs, err := c.Service.ListParsingErrors(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, errs)
}

// @Summary 处理进度
// @Tags 试卷处理
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.UploadProgress}
// @Router /jobs/{id}/progress [get]
func (c *TestPaperController) Progress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.Service.Progress(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
