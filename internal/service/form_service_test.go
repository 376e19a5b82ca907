package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/testutil"
	"formquiz_backend/internal/util"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestFormService_CreateQuiz(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)

	if form.Type != model.FormTypeQuiz || form.Status != model.FormStatusPublic {
		t.Fatalf("type=%s status=%s", form.Type, form.Status)
	}
	if !codePattern.MatchString(form.Code) {
		t.Errorf("code %q is not 8 upper-case alphanumerics", form.Code)
	}
	if len(form.Questions) != 2 {
		t.Fatalf("questions=%d", len(form.Questions))
	}

	text, radio := form.Questions[0], form.Questions[1]
	if text.Answer == nil || *text.Answer != `["Paris"]` {
		t.Errorf("answer key=%v", text.Answer)
	}
	if !text.Required {
		t.Error("required should default to true")
	}
	if radio.TotalScore == nil || *radio.TotalScore != 2 {
		t.Errorf("radio total_score=%v, want correct option sum 2", radio.TotalScore)
	}
	if len(radio.Options) != 2 || radio.Options[1].Text != "Blue" || radio.Options[1].IsCorrect {
		t.Errorf("options=%+v", radio.Options)
	}
}

func TestFormService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	form, err := env.forms.Create(context.Background(), env.owner.ID, "", formReq(t, `{
		"title": "Untyped route",
		"type": "survey",
		"questions": [{"type": "scale", "text": "Rate us", "scale_min": 1, "scale_max": 5}]
	}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if form.Status != model.FormStatusDraft {
		t.Errorf("status=%s, want draft", form.Status)
	}
	if form.Type != model.FormTypeSurvey {
		t.Errorf("type=%s", form.Type)
	}
	if form.Questions[0].TotalScore != nil {
		t.Error("survey questions should not get a default total_score")
	}
}

func TestFormService_CreateRejects(t *testing.T) {
	tests := []struct {
		name      string
		routeType model.FormType
		body      string
		wantErr   error
		wantField string
	}{
		{
			name:      "route and body type disagree",
			routeType: model.FormTypeQuiz,
			body:      `{"title": "x", "type": "survey", "questions": [{"type": "text-input", "text": "q"}]}`,
			wantErr:   util.ErrWrongFormType,
		},
		{
			name:      "missing type on generic route",
			body:      `{"title": "x", "questions": [{"type": "text-input", "text": "q"}]}`,
			wantField: "type",
		},
		{
			name:      "missing title",
			routeType: model.FormTypeQuiz,
			body:      `{"questions": [{"type": "text-input", "text": "q"}]}`,
			wantField: "title",
		},
		{
			name:      "no questions",
			routeType: model.FormTypeQuiz,
			body:      `{"title": "x", "questions": []}`,
			wantField: "questions",
		},
		{
			name:      "choice question without options",
			routeType: model.FormTypeQuiz,
			body:      `{"title": "x", "questions": [{"type": "checkbox", "text": "q"}]}`,
			wantField: "questions[0].options",
		},
		{
			name:      "options on a text question",
			routeType: model.FormTypeQuiz,
			body:      `{"title": "x", "questions": [{"type": "text-input", "text": "q", "options": ["a"]}]}`,
			wantField: "questions[0].options",
		},
		{
			name:      "unknown question type",
			routeType: model.FormTypeSurvey,
			body:      `{"title": "x", "questions": [{"type": "matrix", "text": "q"}]}`,
			wantField: "questions[0].type",
		},
		{
			name:      "inverted scale bounds",
			routeType: model.FormTypeSurvey,
			body:      `{"title": "x", "questions": [{"type": "scale", "text": "q", "scale_min": 5, "scale_max": 1}]}`,
			wantField: "questions[0].scale_min",
		},
		{
			name:      "object answer key",
			routeType: model.FormTypeQuiz,
			body:      `{"title": "x", "questions": [{"type": "text-input", "text": "q", "answer": {"a": 1}}]}`,
			wantField: "questions[0].answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.forms.Create(context.Background(), env.owner.ID, tt.routeType, formReq(t, tt.body), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err=%v, want validation error", err)
			}
			if _, ok := verr.Fields[tt.wantField]; !ok {
				t.Fatalf("fields=%v, want %s", verr.Fields, tt.wantField)
			}

			var count int64
			env.db.Model(&model.Form{}).Count(&count)
			if count != 0 {
				t.Errorf("forms=%d after rejected create", count)
			}
		})
	}
}

func TestFormService_CreateWithAttachments(t *testing.T) {
	env := newTestEnv(t)
	files := QuestionFiles{1: {fileHeader(t, "flag.png", "image/png", pngBytes)}}

	form, err := env.forms.Create(context.Background(), env.owner.ID, model.FormTypeQuiz, formReq(t, capitalsQuiz), files)
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.forms.Get(env.owner.ID, form.ID, model.FormTypeQuiz)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(got.Questions[0].Attachments); n != 0 {
		t.Errorf("question 0 attachments=%d", n)
	}
	atts := got.Questions[1].Attachments
	if len(atts) != 1 {
		t.Fatalf("question 1 attachments=%d", len(atts))
	}
	if !strings.HasPrefix(atts[0].FilePath, "https://cdn.example.com/attachments/") {
		t.Errorf("file path=%s", atts[0].FilePath)
	}
	if atts[0].FileType != "image/png" {
		t.Errorf("file type=%s", atts[0].FileType)
	}
	if env.uploader.stored() != 1 {
		t.Errorf("stored objects=%d", env.uploader.stored())
	}
}

func TestFormService_CreateUploadFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.failOn = 2
	files := QuestionFiles{
		0: {fileHeader(t, "a.png", "image/png", pngBytes)},
		1: {fileHeader(t, "b.png", "image/png", pngBytes)},
	}

	_, err := env.forms.Create(context.Background(), env.owner.ID, model.FormTypeQuiz, formReq(t, capitalsQuiz), files)
	if !errors.Is(err, util.ErrUploadFailed) {
		t.Fatalf("err=%v, want ErrUploadFailed", err)
	}

	for _, m := range []interface{}{&model.Form{}, &model.Question{}, &model.Option{}, &model.Attachment{}} {
		var count int64
		env.db.Model(m).Count(&count)
		if count != 0 {
			t.Errorf("%T rows=%d after failed create", m, count)
		}
	}
	if env.uploader.stored() != 0 {
		t.Errorf("orphaned objects=%d", env.uploader.stored())
	}
	if len(env.uploader.deleted) != 1 {
		t.Errorf("compensating deletes=%d, want 1", len(env.uploader.deleted))
	}
}

func TestFormService_CreateRejectsOutOfRangeAttachment(t *testing.T) {
	env := newTestEnv(t)
	files := QuestionFiles{5: {fileHeader(t, "a.png", "image/png", pngBytes)}}

	_, err := env.forms.Create(context.Background(), env.owner.ID, model.FormTypeQuiz, formReq(t, capitalsQuiz), files)
	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v", err)
	}
	if env.uploader.calls != 0 {
		t.Errorf("uploads=%d, want none before validation passes", env.uploader.calls)
	}
}

func TestFormService_Update(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	oldOption := form.Questions[1].Options[0].ID

	updated, err := env.forms.Update(context.Background(), env.owner.ID, form.ID, model.FormTypeQuiz, formReq(t, `{
		"title": "Capitals v2",
		"description": "second edition",
		"questions": [{"type": "dropdown", "text": "Capital of Spain?", "options": [{"text": "Madrid", "is_correct": true, "score": 4}, "Lisbon"]}]
	}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Capitals v2" || updated.Description != "second edition" {
		t.Errorf("title=%q description=%q", updated.Title, updated.Description)
	}
	if updated.Code != form.Code {
		t.Error("code must not change on update")
	}
	if updated.Status != model.FormStatusPublic {
		t.Errorf("status=%s, omitted status keeps the current one", updated.Status)
	}
	if len(updated.Questions) != 1 || updated.Questions[0].Text != "Capital of Spain?" {
		t.Fatalf("questions=%+v", updated.Questions)
	}

	var stale int64
	env.db.Unscoped().Model(&model.Option{}).Where("id = ?", oldOption).Count(&stale)
	if stale != 0 {
		t.Error("replaced options should be hard deleted")
	}
}

func TestFormService_UpdateGuards(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	stranger := testutil.CreateUser(t, env.db, "stranger")
	ctx := context.Background()

	_, err := env.forms.Update(ctx, env.owner.ID, form.ID, "", formReq(t, `{"title": "x", "type": "survey", "questions": [{"type": "text-input", "text": "q"}]}`), nil)
	if !errors.Is(err, util.ErrFormTypeImmutable) {
		t.Errorf("type change err=%v", err)
	}
	_, err = env.forms.Update(ctx, stranger.ID, form.ID, "", formReq(t, capitalsQuiz), nil)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("non-owner err=%v, want ErrNotFound", err)
	}
	_, err = env.forms.Update(ctx, env.owner.ID, form.ID, model.FormTypeSurvey, formReq(t, capitalsQuiz), nil)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("survey route for a quiz err=%v, want ErrNotFound", err)
	}
}

func TestFormService_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	ctx := context.Background()

	all, err := env.forms.List(env.owner.ID, ParseFormFilter("", ""))
	if err != nil || len(all) != 2 {
		t.Fatalf("list=%d, %v", len(all), err)
	}
	quizzes, _ := env.forms.List(env.owner.ID, ParseFormFilter("bogus", "quiz"))
	if len(quizzes) != 1 || quizzes[0].ID != quiz.ID {
		t.Fatalf("quiz filter=%+v", quizzes)
	}

	if err := env.forms.Delete(ctx, env.owner.ID, quiz.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.forms.Get(env.owner.ID, quiz.ID, ""); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("get deleted err=%v", err)
	}
	if _, err := env.forms.Public(ctx, quiz.Code); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("public deleted err=%v", err)
	}
	summary, err := env.forms.Summary(env.owner.ID, ParseFormFilter("", ""))
	if err != nil || len(summary) != 1 {
		t.Fatalf("summary=%d, %v", len(summary), err)
	}
	if summary[0].QuestionsCount != 2 {
		t.Errorf("questions count=%d", summary[0].QuestionsCount)
	}
}

func TestFormService_Public(t *testing.T) {
	env := newTestEnv(t)
	form := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	ctx := context.Background()

	view, err := env.forms.Public(ctx, strings.ToLower(form.Code))
	if err != nil {
		t.Fatal(err)
	}
	if view.ID != form.ID || len(view.Questions) != 2 {
		t.Fatalf("view=%+v", view)
	}
	if len(view.Questions[1].Options) != 2 || view.Questions[1].Options[0].Text != "Red" {
		t.Errorf("options=%+v", view.Questions[1].Options)
	}

	draft := env.createForm(t, model.FormTypeSurvey, `{"title": "Draft", "questions": [{"type": "text-input", "text": "q"}]}`)
	if _, err := env.forms.Public(ctx, draft.Code); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("draft err=%v, want ErrNotFound", err)
	}
	if _, err := env.forms.Public(ctx, "NOPE0000"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("unknown code err=%v", err)
	}
}

func TestFormService_Permission(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.createForm(t, model.FormTypeQuiz, capitalsQuiz)
	survey := env.createForm(t, model.FormTypeSurvey, feedbackSurvey)
	alice := testutil.CreateUser(t, env.db, "alice")
	ctx := context.Background()

	perm, err := env.forms.Permission(quiz.Code, alice.ID)
	if err != nil || perm.Status != util.PermissionPermitted {
		t.Fatalf("before submit: %+v, %v", perm, err)
	}
	if perm.Title != "Capitals" || perm.Type != model.FormTypeQuiz {
		t.Errorf("perm=%+v", perm)
	}

	if _, err := env.submissions.SubmitQuiz(ctx, quiz.Code, alice.ID, submitReq(t, answersFor(quiz, `"Paris"`))); err != nil {
		t.Fatal(err)
	}
	perm, _ = env.forms.Permission(quiz.Code, alice.ID)
	if perm.Status != util.PermissionAlreadyAnswered {
		t.Errorf("quiz after submit=%s", perm.Status)
	}

	aliceID := alice.ID
	if _, err := env.submissions.SubmitSurvey(ctx, survey.Code, &aliceID, submitReq(t, answersFor(survey, `"nice"`)), nil); err != nil {
		t.Fatal(err)
	}
	perm, _ = env.forms.Permission(survey.Code, alice.ID)
	if perm.Status != util.PermissionPermitted {
		t.Errorf("survey without single-submission policy=%s", perm.Status)
	}

	cfg := testConfig()
	cfg.Forms.SurveySingleSubmission = true
	env.policy.Apply(cfg)
	perm, _ = env.forms.Permission(survey.Code, alice.ID)
	if perm.Status != util.PermissionAlreadyAnswered {
		t.Errorf("survey with single-submission policy=%s", perm.Status)
	}
}
