package util

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyAnswered   = errors.New("already answered")
	ErrUploadFailed      = errors.New("file upload failed")
	ErrWrongFormType     = errors.New("form type does not match this endpoint")
	ErrFormTypeImmutable = errors.New("form type cannot be changed")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrInvalidLogin      = errors.New("invalid credentials")
	ErrUserNotFound      = errors.New("user not found")
)

// ValidationError 请求体校验失败时的字段级错误信息
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, msg string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil 没有字段错误时返回 nil，可直接 return v.OrNil()
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
