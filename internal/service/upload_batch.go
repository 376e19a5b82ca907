package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/logger"

	"go.uber.org/zap"
)

// uploadBatch 记录一次写操作中已上传的对象，事务失败时逐个删除
type uploadBatch struct {
	uploader Uploader
	keys     []string
}

func newUploadBatch(u Uploader) *uploadBatch {
	return &uploadBatch{uploader: u}
}

func (b *uploadBatch) put(ctx context.Context, folder string, fh *multipart.FileHeader) (url, mimeType string, err error) {
	if b.uploader == nil {
		return "", "", fmt.Errorf("%w: storage is not configured", util.ErrUploadFailed)
	}
	mimeType, err = util.DetectMimeType(fh)
	if err != nil {
		return "", "", fmt.Errorf("%w: read %s: %v", util.ErrUploadFailed, fh.Filename, err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("%w: open %s: %v", util.ErrUploadFailed, fh.Filename, err)
	}
	defer f.Close()

	url, key, err := b.uploader.Upload(ctx, folder, fh.Filename, f, fh.Size, mimeType)
	if err != nil {
		if !errors.Is(err, util.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", util.ErrUploadFailed, err)
		}
		return "", "", err
	}
	b.keys = append(b.keys, key)
	return url, mimeType, nil
}

// attach 上传题目附件并挂到对应题目上
func (b *uploadBatch) attach(ctx context.Context, questions []model.Question, files QuestionFiles) error {
	for idx, headers := range files {
		if idx < 0 || idx >= len(questions) {
			continue
		}
		for _, fh := range headers {
			url, mimeType, err := b.put(ctx, util.FolderAttachments, fh)
			if err != nil {
				return err
			}
			questions[idx].Attachments = append(questions[idx].Attachments, model.Attachment{
				FilePath: url,
				FileType: mimeType,
			})
		}
	}
	return nil
}

// rollback 补偿删除，失败只记录日志
func (b *uploadBatch) rollback(ctx context.Context) {
	for _, key := range b.keys {
		if err := b.uploader.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.Log.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
	b.keys = nil
}

func checkFiles(files QuestionFiles, questionCount int, maxBytes int64) error {
	v := util.NewValidationError()
	for idx, headers := range files {
		field := fmt.Sprintf("questions[%d].attachments", idx)
		if idx < 0 || idx >= questionCount {
			v.Add(field, "refers to a question that does not exist")
			continue
		}
		for _, fh := range headers {
			if maxBytes > 0 && fh.Size > maxBytes {
				v.Add(field, fmt.Sprintf("file %s exceeds the upload limit", fh.Filename))
			}
		}
	}
	return v.OrNil()
}
