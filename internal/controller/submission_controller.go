package controller

import (
	"strings"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/service"
	"formquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SubmissionController 提交答卷、删除提交与个人提交记录
type SubmissionController struct {
	SubmissionService *service.SubmissionService
	ResultService     *service.ResultService
}

func NewSubmissionController(submissionService *service.SubmissionService, resultService *service.ResultService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService, ResultService: resultService}
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Description 一次性提交全部答案，每人每个测验只能提交一次，返回得分
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "分享码"
// @Param request body service.SubmitReq true "答案"
// @Success 201 {object} util.Response{data=service.QuizResult} "提交成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "测验不存在或未公开"
// @Failure 409 {object} util.Response "已经作答"
// @Router /api/quizzes/code/{code}/submit [post]
func (c *SubmissionController) SubmitQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req service.SubmitReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.SubmitQuiz(ctx.Request.Context(), ctx.Param("code"), user.UserID, &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// SubmitSurvey godoc
// @Summary 提交问卷
// @Description 登录可选。multipart 时 payload 字段为 JSON，文件回答字段为 answers[i][value]
// @Tags 答题
// @Accept json,mpfd
// @Produce json
// @Param code path string true "分享码"
// @Param request body service.SubmitReq true "答案"
// @Success 201 {object} util.Response{data=service.SurveyReceipt} "提交成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "问卷不存在或未公开"
// @Failure 409 {object} util.Response "已经作答"
// @Failure 502 {object} util.Response "文件上传失败"
// @Router /api/surveys/code/{code}/submit [post]
func (c *SubmissionController) SubmitSurvey(ctx *gin.Context) {
	var req service.SubmitReq
	form, err := bindPayload(ctx, &req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	files := service.AnswerFiles{}
	for idx, headers := range indexedFiles(form, answerFileField) {
		files[idx] = headers[0]
	}

	receipt, err := c.SubmissionService.SubmitSurvey(ctx.Request.Context(), ctx.Param("code"), util.CurrentUserID(ctx), &req, files)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, receipt)
}

// Delete godoc
// @Summary 删除提交
// @Description 仅表单所有者可删除，回答一并删除
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response "成功"
// @Failure 403 {object} util.Response "无权删除"
// @Failure 404 {object} util.Response "提交不存在"
// @Router /api/submissions/{id} [delete]
func (c *SubmissionController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		util.NotFound(ctx)
		return
	}

	if err := c.SubmissionService.DeleteSubmission(ctx.Request.Context(), user.UserID, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// RecentActivity godoc
// @Summary 最近活动
// @Description 当前用户最近的提交及得分
// @Tags 个人
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.SubmissionSummary} "成功"
// @Router /api/me/recent-activity [get]
func (c *SubmissionController) RecentActivity(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	items, err := c.ResultService.RecentActivity(user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// MySubmissions godoc
// @Summary 我的提交记录
// @Tags 个人
// @Produce json
// @Security BearerAuth
// @Param type query string false "quiz|survey"
// @Param search query string false "按表单标题搜索"
// @Param sort query string false "date_asc|date_desc|alpha_asc|alpha_desc"
// @Param page query int false "页码"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.SubmissionSummary}} "成功"
// @Router /api/me/submissions [get]
func (c *SubmissionController) MySubmissions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	q := repository.HistoryQuery{
		Type:   model.FormType(ctx.Query("type")),
		Search: strings.TrimSpace(ctx.Query("search")),
		Sort:   ctx.DefaultQuery("sort", "date_desc"),
		Page:   util.ParsePage(ctx.Query("page")),
	}
	page, err := c.ResultService.MySubmissions(user.UserID, q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, page)
}
