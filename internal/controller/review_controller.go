package controller

import (
	"paperflow_backend/internal/service"
	"paperflow_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	Service *service.ReviewService
}

func NewReviewController(svc *service.ReviewService) *ReviewController {
	return &ReviewController{Service: svc}
}

// @Summary 审核题目
// @Description 修改题干/选项/答案，或设置审核结论 pending/approved/rejected/needs_changes；任务必须处于 review
// @Tags 题目审核
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Param qid path string true "题目ID"
// @Param body body service.ReviewUpdate true "修改内容"
// @Success 200 {object} util.Response{data=model.ParsedQuestion}
// @Router /jobs/{id}/questions/{qid} [patch]
func (c *ReviewController) UpdateQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ReviewUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.UpdateQuestion(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("qid"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary 确认题目
// @Description 可同时提交修改，保存后直接标记为 approved
// @Tags 题目审核
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Param qid path string true "题目ID"
// @Param body body service.QuestionPatch false "修改内容"
// @Success 200 {object} util.Response{data=model.ParsedQuestion}
// @Router /jobs/{id}/questions/{qid}/confirm [post]
func (c *ReviewController) ConfirmQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var patch service.QuestionPatch
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&patch); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	q, err := c.Service.ConfirmQuestion(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("qid"), patch)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary 确认并发布
// @Description 已通过的题目按顺序发布为新试卷；没有通过的题目返回 422
// @Tags 题目审核
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 201 {object} util.Response{data=model.QuestionPaper}
// @Router /jobs/{id}/publish [post]
func (c *ReviewController) Publish(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	paper, err := c.Service.ConfirmAndPublish(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, paper)
}

// @Summary 已发布试卷列表
// @Tags 已发布试卷
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /papers [get]
func (c *ReviewController) ListPapers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pageParams(ctx)

	papers, total, err := c.Service.ListPapers(ctx.Request.Context(), user.UserID, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: papers, Total: total, Page: page, Limit: limit})
}

// @Summary 已发布试卷详情
// @Tags 已发布试卷
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=model.QuestionPaper}
// @Router /papers/{id} [get]
func (c *ReviewController) GetPaper(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	paper, err := c.Service.GetPaper(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}
