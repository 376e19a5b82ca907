package controller

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	formTypeKey  = "form_type"
	payloadField = "payload"
)

var (
	attachmentField   = regexp.MustCompile(`^questions\[(\d+)\]\[attachments\](\[\d*\])?$`)
	answerFileField   = regexp.MustCompile(`^answers\[(\d+)\]\[value\]$`)
	errMissingPayload = errors.New("payload field is required for multipart requests")
)

// FixFormType 固定路由对应的表单类型（/quizzes、/surveys）
func FixFormType(t model.FormType) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(formTypeKey, t)
		ctx.Next()
	}
}

func routeType(ctx *gin.Context) model.FormType {
	if v, ok := ctx.Get(formTypeKey); ok {
		if t, ok := v.(model.FormType); ok {
			return t
		}
	}
	return ""
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/form-data")
}

// bindPayload 解析 JSON 请求体，或 multipart 中的 payload 字段
func bindPayload(ctx *gin.Context, dst interface{}) (*multipart.Form, error) {
	if !isMultipart(ctx) {
		return nil, ctx.ShouldBindJSON(dst)
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, err
	}
	values := form.Value[payloadField]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil, errMissingPayload
	}
	if err := json.Unmarshal([]byte(values[0]), dst); err != nil {
		return nil, err
	}
	return form, nil
}

// indexedFiles 按字段名中的下标收集文件
func indexedFiles(form *multipart.Form, pattern *regexp.Regexp) map[int][]*multipart.FileHeader {
	out := make(map[int][]*multipart.FileHeader)
	if form == nil {
		return out
	}
	for field, headers := range form.File {
		m := pattern.FindStringSubmatch(field)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[idx] = append(out[idx], headers...)
	}
	return out
}

func pathID(ctx *gin.Context) (uint, bool) {
	id := util.MustParseUint(ctx.Param("id"))
	return id, id != 0
}
