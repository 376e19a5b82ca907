package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"reflect"
	"strings"

	"formquiz_backend/internal/model"
	"formquiz_backend/internal/util"

	"github.com/go-playground/validator/v10"
)

// OptionReq 选项，既可以是字符串也可以是对象
type OptionReq struct {
	Text      string   `json:"text" validate:"required,max=500"`
	IsCorrect bool     `json:"is_correct"`
	Score     *float64 `json:"score" validate:"omitempty,gte=0"`
}

func (o *OptionReq) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*o = OptionReq{Text: text}
		return nil
	}
	type plain OptionReq
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = OptionReq(p)
	return nil
}

type QuestionReq struct {
	Type             string          `json:"type" validate:"required,oneof=text-input date multiple-choice checkbox radio-button dropdown scale file"`
	Text             string          `json:"text" validate:"required"`
	Required         *bool           `json:"required"`
	TotalScore       *float64        `json:"total_score" validate:"omitempty,gte=0"`
	Answer           json.RawMessage `json:"answer" swaggertype:"string"`
	Placeholder      *string         `json:"placeholder" validate:"omitempty,max=255"`
	MinLength        *int            `json:"min_length" validate:"omitempty,gte=0"`
	MaxLength        *int            `json:"max_length" validate:"omitempty,gte=0"`
	MinSelection     *int            `json:"min_selection" validate:"omitempty,gte=0"`
	MaxSelection     *int            `json:"max_selection" validate:"omitempty,gte=0"`
	AllowedFileTypes []string        `json:"allowed_file_types" validate:"omitempty,dive,max=100"`
	ScaleMin         *int            `json:"scale_min"`
	ScaleMax         *int            `json:"scale_max"`
	ScaleLabelMin    *string         `json:"scale_label_min" validate:"omitempty,max=255"`
	ScaleLabelMax    *string         `json:"scale_label_max" validate:"omitempty,max=255"`
	Options          []OptionReq     `json:"options" validate:"omitempty,dive"`
}

// FormReq 创建/更新表单的请求体；multipart 时放在 payload 字段
type FormReq struct {
	Title       string        `json:"title" validate:"required,max=255"`
	Description *string       `json:"description"`
	Status      string        `json:"status" validate:"omitempty,oneof=draft public private disabled"`
	Type        string        `json:"type" validate:"omitempty,oneof=quiz survey"`
	Questions   []QuestionReq `json:"questions" validate:"required,min=1,dive"`
}

// AnswerReq 单题作答，value 可以是字符串、数字、数组或 null
type AnswerReq struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	Value      json.RawMessage `json:"value" swaggertype:"string"`
}

type SubmitReq struct {
	Answers []AnswerReq `json:"answers" validate:"required,dive"`
}

// QuestionFiles 按题目下标分组的附件
type QuestionFiles map[int][]*multipart.FileHeader

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

// validateStruct 将 validator 的错误转换为字段级错误
func validateStruct(s interface{}) *util.ValidationError {
	v := util.NewValidationError()
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				v.Add(fieldPath(fe), fieldMessage(fe))
			}
		} else {
			v.Add("body", err.Error())
		}
	}
	return v
}

// Validate 校验标签之外的跨字段规则
func (r *FormReq) Validate() error {
	v := validateStruct(r)
	for i, q := range r.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		choice := model.IsChoiceType(q.Type)
		switch {
		case choice && len(q.Options) == 0:
			v.Add(prefix+".options", "is required for choice questions")
		case !choice && len(q.Options) > 0 && q.Type != "":
			v.Add(prefix+".options", "is only allowed for choice questions")
		}
		if q.MinLength != nil && q.MaxLength != nil && *q.MinLength > *q.MaxLength {
			v.Add(prefix+".min_length", "must not exceed max_length")
		}
		if q.MinSelection != nil && q.MaxSelection != nil && *q.MinSelection > *q.MaxSelection {
			v.Add(prefix+".min_selection", "must not exceed max_selection")
		}
		if q.ScaleMin != nil && q.ScaleMax != nil && *q.ScaleMin > *q.ScaleMax {
			v.Add(prefix+".scale_min", "must not exceed scale_max")
		}
		if _, err := answerKey(q.Answer); err != nil {
			v.Add(prefix+".answer", err.Error())
		}
	}
	return v.OrNil()
}

func (r *SubmitReq) Validate() error {
	return validateStruct(r).OrNil()
}

// answerKey 将答案字段转换为存储格式：字符串原样保存，数组保存为紧凑 JSON
func answerKey(raw json.RawMessage) (*string, error) {
	raw = json.RawMessage(bytes.TrimSpace(raw))
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("must be a string, number or array")
		}
		return &s, nil
	case '[':
		var items []interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("must be a string, number or array")
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		s := buf.String()
		return &s, nil
	case '{', 't', 'f':
		return nil, fmt.Errorf("must be a string, number or array")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("must be a string, number or array")
	}
	s := n.String()
	return &s, nil
}

// answerText 将作答值转换为 answer_text：数组保存为 JSON，标量保存为文本
func answerText(raw json.RawMessage) *string {
	raw = json.RawMessage(bytes.TrimSpace(raw))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return &s
		}
	case '[', '{':
		var buf bytes.Buffer
		if json.Compact(&buf, raw) == nil {
			s := buf.String()
			return &s
		}
	}
	s := string(raw)
	return &s
}

// toQuestions 将请求转换为模型；测验题目未设置总分时取正确选项分值之和
func (r *FormReq) toQuestions(formType model.FormType) []model.Question {
	questions := make([]model.Question, 0, len(r.Questions))
	for i, q := range r.Questions {
		required := true
		if q.Required != nil {
			required = *q.Required
		}
		answer, _ := answerKey(q.Answer)

		mq := model.Question{
			Position:      i,
			Type:          q.Type,
			Text:          q.Text,
			Required:      required,
			TotalScore:    q.TotalScore,
			Answer:        answer,
			Placeholder:   q.Placeholder,
			MinLength:     q.MinLength,
			MaxLength:     q.MaxLength,
			MinSelection:  q.MinSelection,
			MaxSelection:  q.MaxSelection,
			ScaleMin:      q.ScaleMin,
			ScaleMax:      q.ScaleMax,
			ScaleLabelMin: q.ScaleLabelMin,
			ScaleLabelMax: q.ScaleLabelMax,
		}
		if len(q.AllowedFileTypes) > 0 {
			mq.AllowedTypes = q.AllowedFileTypes
		}

		var correctSum float64
		for j, o := range q.Options {
			mq.Options = append(mq.Options, model.Option{
				Position:  j,
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
				Score:     o.Score,
			})
			if o.IsCorrect && o.Score != nil {
				correctSum += *o.Score
			}
		}
		if formType == model.FormTypeQuiz && mq.TotalScore == nil && correctSum > 0 {
			total := correctSum
			mq.TotalScore = &total
		}
		questions = append(questions, mq)
	}
	return questions
}
