package controller

import (
	"strings"

	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/service"
	"formquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// FormController 表单（测验/问卷）的管理与公开访问
type FormController struct {
	FormService   *service.FormService
	ResultService *service.ResultService
}

func NewFormController(formService *service.FormService, resultService *service.ResultService) *FormController {
	return &FormController{FormService: formService, ResultService: resultService}
}

func (c *FormController) bind(ctx *gin.Context) (*service.FormReq, service.QuestionFiles, bool) {
	var req service.FormReq
	form, err := bindPayload(ctx, &req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return nil, nil, false
	}
	return &req, service.QuestionFiles(indexedFiles(form, attachmentField)), true
}

// Create godoc
// @Summary 创建表单
// @Description 创建测验或问卷。/quizzes 与 /surveys 路由固定类型，/forms 从请求体读取 type。支持 multipart：payload 字段为 JSON，附件字段为 questions[i][attachments]
// @Tags 表单
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body service.FormReq true "表单内容"
// @Success 201 {object} util.Response{data=model.Form} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未登录"
// @Failure 502 {object} util.Response "附件上传失败"
// @Router /api/forms [post]
func (c *FormController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	req, files, ok := c.bind(ctx)
	if !ok {
		return
	}

	form, err := c.FormService.Create(ctx.Request.Context(), user.UserID, routeType(ctx), req, files)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, form)
}

// Update godoc
// @Summary 更新表单
// @Description 全量替换标题、描述、状态以及全部题目、选项和附件；类型不可修改
// @Tags 表单
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Param request body service.FormReq true "表单内容"
// @Success 200 {object} util.Response{data=model.Form} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "表单不存在"
// @Router /api/forms/{id} [put]
func (c *FormController) Update(ctx *gin.Context) {
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
	req, files, ok := c.bind(ctx)
	if !ok {
		return
	}

	form, err := c.FormService.Update(ctx.Request.Context(), user.UserID, id, routeType(ctx), req, files)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, form)
}

// List godoc
// @Summary 我的表单
// @Description 列出当前用户的表单（含题目），可按状态与类型筛选
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft|public|private|disabled"
// @Param type query string false "quiz|survey"
// @Success 200 {object} util.Response{data=[]model.Form} "成功"
// @Router /api/forms [get]
func (c *FormController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	filter := service.ParseFormFilter(ctx.Query("status"), ctx.Query("type"))
	if t := routeType(ctx); t != "" {
		filter.Type = t
	}

	forms, err := c.FormService.List(user.UserID, filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, forms)
}

// Summary godoc
// @Summary 表单概要列表
// @Description 列出当前用户的表单及题目数、提交数
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft|public|private|disabled"
// @Param type query string false "quiz|survey"
// @Success 200 {object} util.Response{data=[]repository.FormSummary} "成功"
// @Router /api/forms/summary [get]
func (c *FormController) Summary(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	filter := service.ParseFormFilter(ctx.Query("status"), ctx.Query("type"))

	forms, err := c.FormService.Summary(user.UserID, filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, forms)
}

// Get godoc
// @Summary 获取表单详情
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Success 200 {object} util.Response{data=model.Form} "成功"
// @Failure 404 {object} util.Response "表单不存在"
// @Router /api/forms/{id} [get]
func (c *FormController) Get(ctx *gin.Context) {
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

	form, err := c.FormService.Get(user.UserID, id, routeType(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, form)
}

// Delete godoc
// @Summary 删除表单
// @Description 软删除，表单状态置为 deleted 后不再出现在任何列表中
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "表单不存在"
// @Router /api/forms/{id} [delete]
func (c *FormController) Delete(ctx *gin.Context) {
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

	if err := c.FormService.Delete(ctx.Request.Context(), user.UserID, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// Results godoc
// @Summary 表单提交结果
// @Description 分页查看提交及每题得分，测验按当前答案重新计分
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Param page query int false "页码"
// @Param search query string false "按提交人姓名搜索"
// @Param sort query string false "created_at|user"
// @Param direction query string false "asc|desc"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.SubmissionResult}} "成功"
// @Failure 404 {object} util.Response "表单不存在"
// @Router /api/forms/{id}/results [get]
func (c *FormController) Results(ctx *gin.Context) {
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

	q := repository.ResultQuery{
		Search:    strings.TrimSpace(ctx.Query("search")),
		Sort:      ctx.DefaultQuery("sort", "created_at"),
		Direction: strings.ToLower(ctx.DefaultQuery("direction", "desc")),
		Page:      util.ParsePage(ctx.Query("page")),
	}
	page, err := c.ResultService.GetResults(ctx.Request.Context(), user.UserID, id, routeType(ctx), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, page)
}

// Public godoc
// @Summary 按分享码获取表单
// @Description 答题视图，不含答案、分值与正确选项；仅 public 状态可见
// @Tags 答题
// @Produce json
// @Param code path string true "分享码"
// @Success 200 {object} util.Response{data=service.PublicForm} "成功"
// @Failure 404 {object} util.Response "表单不存在或未公开"
// @Router /api/public/forms/{code} [get]
func (c *FormController) Public(ctx *gin.Context) {
	form, err := c.FormService.Public(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, form)
}

// Permission godoc
// @Summary 答题权限检查
// @Description 返回 permitted 或 already_answered
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param code path string true "分享码"
// @Success 200 {object} util.Response{data=service.Permission} "成功"
// @Failure 404 {object} util.Response "表单不存在或未公开"
// @Router /api/forms/code/{code}/permission [get]
func (c *FormController) Permission(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.FormService.Permission(ctx.Param("code"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
