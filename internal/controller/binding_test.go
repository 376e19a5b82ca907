package controller

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"formquiz_backend/internal/model"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIndexedFiles(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range []string{
		"questions[0][attachments]",
		"questions[0][attachments][]",
		"questions[2][attachments][1]",
		"questions[x][attachments]",
		"answers[3][value]",
		"avatar",
	} {
		fw, err := w.CreateFormFile(field, "f.bin")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("data"))
	}
	w.Close()

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer form.RemoveAll()

	got := indexedFiles(form, attachmentField)
	if len(got) != 2 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Errorf("attachments=%v", got)
	}
	answers := indexedFiles(form, answerFileField)
	if len(answers) != 1 || len(answers[3]) != 1 {
		t.Errorf("answers=%v", answers)
	}
	if n := len(indexedFiles(nil, attachmentField)); n != 0 {
		t.Errorf("nil form=%d", n)
	}
}

func TestFixFormType(t *testing.T) {
	r := gin.New()
	var seen []model.FormType
	record := func(ctx *gin.Context) {
		seen = append(seen, routeType(ctx))
		ctx.Status(http.StatusNoContent)
	}
	r.GET("/forms", record)
	r.GET("/quizzes", FixFormType(model.FormTypeQuiz), record)

	for _, path := range []string{"/forms", "/quizzes"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if len(seen) != 2 || seen[0] != "" || seen[1] != model.FormTypeQuiz {
		t.Errorf("route types=%v", seen)
	}
}

func TestBindPayloadRequiresPayloadField(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("title", "no payload here")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = req

	var dst map[string]interface{}
	if _, err := bindPayload(ctx, &dst); err != errMissingPayload {
		t.Errorf("err=%v, want errMissingPayload", err)
	}
}
