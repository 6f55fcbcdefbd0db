package models

// Settings control how the oracle generates questions for a session.
// QuestionStyle runs from 1 (factual recall) to 5 (analytical).
type Settings struct {
	QuestionStyle int    `json:"question_style"`
	GradeLevel    string `json:"grade_level"`
}

const (
	MinQuestionStyle = 1
	MaxQuestionStyle = 5

	DefaultQuestionStyle = 3
	DefaultGradeLevel    = "6"
)

// Normalized returns a copy with out-of-range or missing fields replaced
// by defaults.
func (s Settings) Normalized() Settings {
	if s.QuestionStyle < MinQuestionStyle || s.QuestionStyle > MaxQuestionStyle {
		s.QuestionStyle = DefaultQuestionStyle
	}
	if s.GradeLevel == "" {
		s.GradeLevel = DefaultGradeLevel
	}
	return s
}
