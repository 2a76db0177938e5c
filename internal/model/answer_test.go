package model

import "testing"

func TestAnswerValueValidateFor(t *testing.T) {
	text := "an answer"
	url := "https://files.example.com/upload.pdf"
	empty := ""

	cases := []struct {
		name    string
		value   AnswerValue
		qt      QuestionType
		wantErr bool
	}{
		{"single choice with one option", AnswerValue{SelectedOptionIDs: []uint{1}}, SingleChoice, false},
		{"single choice with two options", AnswerValue{SelectedOptionIDs: []uint{1, 2}}, SingleChoice, true},
		{"true false with one option", AnswerValue{SelectedOptionIDs: []uint{1}}, TrueFalse, false},
		{"multiple choice with several options", AnswerValue{SelectedOptionIDs: []uint{1, 3}}, MultipleChoice, false},
		{"short answer with text", AnswerValue{Text: &text}, ShortAnswer, false},
		{"long answer with text", AnswerValue{Text: &text}, LongAnswer, false},
		{"file upload with url", AnswerValue{FileURL: &url}, FileUpload, false},
		{"text on a choice question", AnswerValue{Text: &text}, SingleChoice, true},
		{"options on a text question", AnswerValue{SelectedOptionIDs: []uint{1}}, ShortAnswer, true},
		{"url on a text question", AnswerValue{FileURL: &url}, LongAnswer, true},
		{"two variants populated", AnswerValue{SelectedOptionIDs: []uint{1}, Text: &text}, SingleChoice, true},
		{"nothing populated", AnswerValue{}, SingleChoice, true},
		{"empty string counts as unpopulated", AnswerValue{Text: &empty}, ShortAnswer, true},
		{"unknown question type", AnswerValue{Text: &text}, "matching", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.value.ValidateFor(tc.qt)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateFor(%s) error = %v, wantErr %v", tc.qt, err, tc.wantErr)
			}
		})
	}
}

func TestAnswerValueEmpty(t *testing.T) {
	text := "x"
	if !(AnswerValue{}).Empty() {
		t.Error("zero value must be empty")
	}
	empty := ""
	if !(AnswerValue{Text: &empty}).Empty() {
		t.Error("empty string text must count as empty")
	}
	if (AnswerValue{Text: &text}).Empty() {
		t.Error("populated text must not be empty")
	}
	if (AnswerValue{SelectedOptionIDs: []uint{1}}).Empty() {
		t.Error("selected options must not be empty")
	}
}

func TestAnswerValueRoundTrip(t *testing.T) {
	text := "essay body"
	v := AnswerValue{Text: &text}
	a := NewAnswer(4, 9, v)
	if a.SubmissionID != 4 || a.QuestionID != 9 {
		t.Fatalf("NewAnswer keys = (%d, %d), want (4, 9)", a.SubmissionID, a.QuestionID)
	}
	back := a.Value()
	if back.Text == nil || *back.Text != text {
		t.Errorf("round trip lost the text: %+v", back)
	}
}
