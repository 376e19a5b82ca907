package repository

import (
	"errors"
	"strings"

	"formquiz_backend/internal/util"

	"gorm.io/gorm"
)

// notFound 将 gorm 的记录不存在转换为业务错误
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotFound
	}
	return err
}

// IsDuplicateKey 识别唯一索引冲突；TranslateError 未覆盖的驱动按错误信息兜底
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// likeEscaper 转义用户输入中的通配符，配合 likeClause 的 ESCAPE '!'
// 不用反斜杠：MySQL 字符串字面量里反斜杠本身需要转义
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeClause 生成 LOWER(col) LIKE ? ESCAPE '!' 条件
func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '!'"
}

// likePattern 用于 likeClause 的大小写不敏感模糊匹配，% 和 _ 按字面量匹配
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
