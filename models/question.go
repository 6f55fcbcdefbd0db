package models

// Question is a multiple-choice question produced by the question oracle
// from a transcript segment. The content segment is carried along so that
// answer grading can be run against the same excerpt later.
type Question struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
	ContentSegment   string   `json:"content_segment,omitempty"`
}
