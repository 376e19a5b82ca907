package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 上传目录
const (
	FolderAttachments = "attachments"
	FolderResponses   = "responses"
)

const MimeOctetStream = "application/octet-stream"

const (
	DefaultPageSize    = 10
	RecentActivitySize = 8
	DefaultCodeLength  = 8
)

const (
	PermissionPermitted       = "permitted"
	PermissionAlreadyAnswered = "already_answered"
)
