package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/testutil"
	"formquiz_backend/internal/util"
)

func countRows(t *testing.T, env *testEnv, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := env.db.Model(m).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSubmissionService_SubmitQuizScores(t *testing.T) {
	tests := []struct {
		name           string
		values         []string
		wantScore      float64
		wantPercentage int
		wantCorrect    int
		wantIncorrect  int
	}{
		{"all correct", []string{`"  PARIS "`, `"Red"`}, 7, 100, 2, 0},
		{"text wrong", []string{`"London"`, `"Red"`}, 2, 29, 1, 1},
		{"only first answered", []string{`"Paris"`}, 5, 71, 1, 1},
		{"wrong option", []string{`"Paris"`, `"Blue"`}, 5, 71, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
			alice := testutil.CreateUser(t, env.db, "alice")

			res, err := env.submissions.SubmitQuiz(context.Background(), form.Code, alice.ID, submitReq(t, answersFor(form, tt.values...)))
			if err != nil {
				t.Fatal(err)
			}
			if res.Score != tt.wantScore || res.MaxScore != 7 || res.Percentage != tt.wantPercentage {
				t.Errorf("score=%v/%v (%d%%), want %v/7 (%d%%)", res.Score, res.MaxScore, res.Percentage, tt.wantScore, tt.wantPercentage)
			}
			if res.CorrectCount != tt.wantCorrect || res.IncorrectCount != tt.wantIncorrect {
				t.Errorf("correct=%d incorrect=%d", res.CorrectCount, res.IncorrectCount)
			}
			if n := countRows(t, env, &model.Response{}); n != 2 {
				t.Errorf("responses=%d, want one per question", n)
			}
		})
	}
}

func TestSubmissionService_SubmitQuizOnce(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	alice := testutil.CreateUser(t, env.db, "alice")
	ctx := context.Background()

	if _, err := env.submissions.SubmitQuiz(ctx, form.Code, alice.ID, submitReq(t, answersFor(form, `"Paris"`, `"Red"`))); err != nil {
		t.Fatal(err)
	}
	_, err := env.submissions.SubmitQuiz(ctx, form.Code, alice.ID, submitReq(t, answersFor(form, `"Rome"`, `"Blue"`)))
	if !errors.Is(err, util.ErrAlreadyAnswered) {
		t.Fatalf("second submit err=%v, want ErrAlreadyAnswered", err)
	}
	if n := countRows(t, env, &model.Submission{}); n != 1 {
		t.Errorf("submissions=%d", n)
	}
	if n := countRows(t, env, &model.Response{}); n != 2 {
		t.Errorf("responses=%d, the rejected attempt must not write", n)
	}
}

func TestSubmissionService_SubmitQuizConcurrent(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	alice := testutil.CreateUser(t, env.db, "alice")

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		req := submitReq(t, answersFor(form, `"Paris"`))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.submissions.SubmitQuiz(context.Background(), form.Code, alice.ID, req)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, util.ErrAlreadyAnswered):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful submissions=%d, want exactly 1", ok)
	}
	if n := countRows(t, env, &model.Submission{}); n != 1 {
		t.Errorf("submissions=%d", n)
	}
}

func TestSubmissionService_SubmitQuizGuards(t *testing.T) {
	env := newTestEnv(t)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	draft := env.createForm(t, model.FormTypeQuiz, strings.Replace(capitalsQuiz, `"public"`, `"private"`, 1))
	alice := testutil.CreateUser(t, env.db, "alice")
	ctx := context.Background()

	if _, err := env.submissions.SubmitQuiz(ctx, survey.Code, alice.ID, submitReq(t, `{"answers": []}`)); !errors.Is(err, util.ErrWrongFormType) {
		t.Errorf("survey code err=%v", err)
	}
	if _, err := env.submissions.SubmitQuiz(ctx, draft.Code, alice.ID, submitReq(t, `{"answers": []}`)); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("private quiz err=%v", err)
	}
	var verr *util.ValidationError
	if _, err := env.submissions.SubmitQuiz(ctx, "ZZZZZZZZ", alice.ID, submitReq(t, `{}`)); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("unknown code err=%v", err)
	}
	quiz := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	if _, err := env.submissions.SubmitQuiz(ctx, quiz.Code, alice.ID, submitReq(t, `{}`)); !errors.As(err, &verr) {
		t.Errorf("missing answers err=%v", err)
	}
}

func TestSubmissionService_SubmitSurveyPolicy(t *testing.T) {
	env := newTestEnv(t)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	alice := testutil.CreateUser(t, env.db, "alice")
	aliceID := alice.ID
	ctx := context.Background()
	body := answersFor(survey, `"the pace"`)

	for i := 0; i < 2; i++ {
		if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, nil, submitReq(t, body), nil); err != nil {
			t.Fatalf("anonymous submit %d: %v", i, err)
		}
		if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, &aliceID, submitReq(t, body), nil); err != nil {
			t.Fatalf("repeat submit %d without policy: %v", i, err)
		}
	}

	cfg := testConfig()
	cfg.Forms.SurveySingleSubmission = true
	env.policy.Apply(cfg)

	bob := testutil.CreateUser(t, env.db, "bob")
	bobID := bob.ID
	if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, &bobID, submitReq(t, body), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, &bobID, submitReq(t, body), nil); !errors.Is(err, util.ErrAlreadyAnswered) {
		t.Errorf("second submit with policy err=%v", err)
	}
	if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, nil, submitReq(t, body), nil); err != nil {
		t.Errorf("anonymous submit with policy: %v", err)
	}
}

func TestSubmissionService_SubmitSurveyRejects(t *testing.T) {
	env := newTestEnv(t)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	quiz := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	ctx := context.Background()

	if _, err := env.submissions.SubmitSurvey(ctx, quiz.Code, nil, submitReq(t, `{"answers": []}`), nil); !errors.Is(err, util.ErrWrongFormType) {
		t.Errorf("quiz code err=%v", err)
	}

	foreign := fmt.Sprintf(`{"answers": [{"question_id": %d, "value": "x"}]}`, quiz.Questions[0].ID)
	_, err := env.submissions.SubmitSurvey(ctx, survey.Code, nil, submitReq(t, foreign), nil)
	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("foreign question err=%v", err)
	}
	if _, ok := verr.Fields["answers[0].question_id"]; !ok {
		t.Errorf("fields=%v", verr.Fields)
	}

	// 文件类型不在 allowed_file_types 内
	files := AnswerFiles{0: fileHeader(t, "notes.txt", "text/plain", []byte("plain text"))}
	_, err = env.submissions.SubmitSurvey(ctx, survey.Code, nil, submitReq(t, fileAnswerBody(survey)), files)
	if !errors.As(err, &verr) {
		t.Fatalf("disallowed file err=%v", err)
	}
	if env.uploader.calls != 0 {
		t.Errorf("uploads=%d for a rejected file", env.uploader.calls)
	}
	if n := countRows(t, env, &model.Submission{}); n != 0 {
		t.Errorf("submissions=%d", n)
	}
}

// fileAnswerBody 只回答文件题，答案下标为 0
func fileAnswerBody(survey *model.Form) string {
	return fmt.Sprintf(`{"answers": [{"question_id": %d, "value": null}]}`, survey.Questions[1].ID)
}

func TestSubmissionService_SubmitSurveyFile(t *testing.T) {
	env := newTestEnv(t)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	files := AnswerFiles{0: fileHeader(t, "shot.png", "image/png", pngBytes)}

	receipt, err := env.submissions.SubmitSurvey(context.Background(), survey.Code, nil, submitReq(t, fileAnswerBody(survey)), files)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Responses != 1 {
		t.Errorf("responses=%d", receipt.Responses)
	}

	var resp model.Response
	if err := env.db.Where("submission_id = ?", receipt.SubmissionID).First(&resp).Error; err != nil {
		t.Fatal(err)
	}
	if resp.AnswerText == nil || !strings.HasPrefix(*resp.AnswerText, "https://cdn.example.com/responses/") {
		t.Errorf("answer_text=%v, want uploaded URL", resp.AnswerText)
	}
	if resp.UserID != nil {
		t.Error("anonymous response should have no user")
	}
}

func TestSubmissionService_SubmitSurveyUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	env.uploader.failOn = 1
	files := AnswerFiles{0: fileHeader(t, "shot.png", "image/png", pngBytes)}

	_, err := env.submissions.SubmitSurvey(context.Background(), survey.Code, nil, submitReq(t, fileAnswerBody(survey)), files)
	if !errors.Is(err, util.ErrUploadFailed) {
		t.Fatalf("err=%v, want ErrUploadFailed", err)
	}
	if n := countRows(t, env, &model.Submission{}); n != 0 {
		t.Errorf("submissions=%d after failed upload", n)
	}
	if n := countRows(t, env, &model.Response{}); n != 0 {
		t.Errorf("responses=%d after failed upload", n)
	}
}

func TestSubmissionService_DeleteSubmission(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	alice := testutil.CreateUser(t, env.db, "alice")
	ctx := context.Background()

	res, err := env.submissions.SubmitQuiz(ctx, form.Code, alice.ID, submitReq(t, answersFor(form, `"Paris"`, `"Red"`)))
	if err != nil {
		t.Fatal(err)
	}

	if err := env.submissions.DeleteSubmission(ctx, alice.ID, res.SubmissionID); !errors.Is(err, util.ErrForbidden) {
		t.Errorf("respondent delete err=%v, want ErrForbidden", err)
	}
	if err := env.submissions.DeleteSubmission(ctx, env.owner.ID, 9999); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing submission err=%v", err)
	}
	if err := env.submissions.DeleteSubmission(ctx, env.owner.ID, res.SubmissionID); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, env, &model.Response{}); n != 0 {
		t.Errorf("responses=%d after delete", n)
	}

	// 删除后释放唯一键，可以重新作答
	if _, err := env.submissions.SubmitQuiz(ctx, form.Code, alice.ID, submitReq(t, answersFor(form, `"Paris"`))); err != nil {
		t.Errorf("resubmit after delete: %v", err)
	}
}
