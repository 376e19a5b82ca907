package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/testutil"
	"formquiz_backend/internal/util"

	"gorm.io/gorm"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

// fakeUploader 内存存储；failOn 让第 n 次 Upload 失败
type fakeUploader struct {
	mu      sync.Mutex
	failOn  int
	calls   int
	objects map[string][]byte
	deleted []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, folder, filename string, reader io.Reader, size int64, contentType string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == f.calls {
		return "", "", fmt.Errorf("%w: bucket unavailable", util.ErrUploadFailed)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}
	key := ObjectKey(folder, filename)
	f.objects[key] = data
	return "https://cdn.example.com/" + key, key, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploader) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type testEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	uploader    *fakeUploader
	policy      *AccessPolicy
	forms       *FormService
	submissions *SubmissionService
	results     *ResultService
	auth        *AuthService
	owner       *model.User
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage: config.StorageConfig{MaxUploadMB: 1},
		Forms:   config.FormsConfig{CodeLength: 8, PageSize: 10},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testConfig()
	formRepo := repository.NewFormRepository(db)
	subRepo := repository.NewSubmissionRepository(db)
	uploader := newFakeUploader()
	policy := NewAccessPolicy(&cfg.Forms)
	cache := NewFormCache(nil, 0)

	return &testEnv{
		db:          db,
		cfg:         cfg,
		uploader:    uploader,
		policy:      policy,
		forms:       NewFormService(formRepo, subRepo, uploader, policy, cache, cfg),
		submissions: NewSubmissionService(formRepo, subRepo, uploader, policy, cfg),
		results:     NewResultService(formRepo, subRepo, policy, cfg),
		auth:        NewAuthService(repository.NewUserRepository(db), cfg),
		owner:       testutil.CreateUser(t, db, "owner"),
	}
}

func formReq(t *testing.T, body string) *FormReq {
	t.Helper()
	var req FormReq
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode form request: %v", err)
	}
	return &req
}

func submitReq(t *testing.T, body string) *SubmitReq {
	t.Helper()
	var req SubmitReq
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode submit request: %v", err)
	}
	return &req
}

// fileHeader 构造真实的 multipart 文件头，Open 行为与请求中一致
func fileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

const capitalsQuiz = `{
	"title": "Capitals",
	"status": "public",
	"questions": [
		{"type": "text-input", "text": "Capital of France?", "total_score": 5, "answer": ["Paris"]},
		{"type": "radio-button", "text": "Pick red", "options": [{"text": "Red", "is_correct": true, "score": 2}, "Blue"]}
	]
}`

const feedbackSurvey = `{
	"title": "Feedback",
	"status": "public",
	"questions": [
		{"type": "text-input", "text": "What did you like?", "required": false},
		{"type": "file", "text": "Screenshot", "allowed_file_types": ["image/"]}
	]
}`

func (e *testEnv) createForm(t *testing.T, formType model.FormType, body string) *model.Form {
	t.Helper()
	form, err := e.forms.Create(context.Background(), e.owner.ID, formType, formReq(t, body), nil)
	if err != nil {
		t.Fatalf("create %s: %v", formType, err)
	}
	return form
}

func answersFor(form *model.Form, values ...string) string {
	var items []string
	for i, v := range values {
		if i >= len(form.Questions) {
			break
		}
		items = append(items, fmt.Sprintf(`{"question_id": %d, "value": %s}`, form.Questions[i].ID, v))
	}
	return `{"answers": [` + strings.Join(items, ", ") + `]}`
}
