package models

// AnswerSubmission is one player's answer to the current question. The
// nickname is denormalized at submit time. A session holds at most one
// submission per player; a resubmission replaces the text in place.
type AnswerSubmission struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
	Answer   string `json:"answer"`
}

// CandidateAnswer is an answer handed to the oracle for grading.
type CandidateAnswer struct {
	PlayerID string `json:"player_id"`
	Answer   string `json:"answer"`
}

// AnswerVerdict is the oracle's grading result for one candidate answer.
type AnswerVerdict struct {
	PlayerID    string `json:"player_id"`
	Answer      string `json:"answer"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}
