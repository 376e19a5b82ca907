package util

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMimeType 根据文件内容识别 MIME 类型，识别失败时回退到请求头声明的类型
func DetectMimeType(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	detected := mt.String()
	if detected == MimeOctetStream || strings.HasPrefix(detected, "text/plain") {
		if declared := fh.Header.Get("Content-Type"); declared != "" {
			return declared, nil
		}
	}
	return detected, nil
}

// ValidateMimeType 深度校验文件 MIME 类型
// allowedTypes: 允许的 MIME 前缀、完整类型或扩展名，如 "image/", "application/pdf", ".docx"
func ValidateMimeType(reader io.Reader, filename string, allowedTypes []string) (string, error) {
	mt, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}
	mimeType := mt.String()
	if len(allowedTypes) == 0 {
		return mimeType, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		switch {
		case allowed == "":
		case strings.HasPrefix(allowed, "."):
			if ext == allowed {
				return mimeType, nil
			}
		case strings.HasSuffix(allowed, "/"), strings.HasSuffix(allowed, "/*"):
			if strings.HasPrefix(mimeType, strings.TrimSuffix(allowed, "*")) {
				return mimeType, nil
			}
		case mt.Is(allowed):
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

// SafeFilename 去掉路径部分和空白，保证对象名可用
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '/', r == '?', r == '#', r == '%':
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "file"
	}
	return name
}
