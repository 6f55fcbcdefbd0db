package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidquiz/logger"
	"vidquiz/models"
)

// OracleService is the question oracle client: it turns a content segment
// into a multiple-choice question and grades free-text answers, both via
// a chat-completions style HTTP API. Stateless with respect to sessions;
// the host previews a generated question before committing it to the
// room with broadcast_question.
type OracleService struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func NewOracleService(apiURL, apiKey, model string, timeout time.Duration) *OracleService {
	return &OracleService{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
	}
}

func (s *OracleService) IsAvailable() bool {
	return s.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// styleSlant maps the 1-5 question style ordinal to a prompt fragment,
// from factual recall up to analytical.
var styleSlant = map[int]string{
	1: "purely factual recall questions about details stated in the content",
	2: "mostly factual questions with a small interpretive element",
	3: "a balance of factual and interpretive questions",
	4: "mostly interpretive questions that require connecting ideas",
	5: "analytical questions that require reasoning about the content's implications",
}

const generateSystemPrompt = `You are an expert in creating multiple-choice questions from lecture and video content. %sCreate %s. Generate a question with one correct answer and three plausible but incorrect answers. Respond with ONLY valid JSON (no markdown, no code fences, no explanations) in this format:

{"question": "...", "correct_answer": "...", "incorrect_answers": ["...", "...", "..."]}`

const checkSystemPrompt = `You are an expert in validating student answers. Be lenient - even close or short answers are fine. Respond with ONLY valid JSON (no markdown, no code fences, no explanations) in this format:

{"is_correct": true, "explanation": "..."}

When the answer is incorrect, explain why in the explanation field.`

// GenerateQuestion asks the oracle for a question over the given content
// segment. Failures surface as ErrOracleFailure with no partial result.
func (s *OracleService) GenerateQuestion(ctx context.Context, segment string, settings models.Settings) (*models.Question, error) {
	settings = settings.Normalized()

	gradePrompt := fmt.Sprintf("Create questions suitable for grade %s students. ", settings.GradeLevel)
	system := fmt.Sprintf(generateSystemPrompt, gradePrompt, styleSlant[settings.QuestionStyle])
	user := fmt.Sprintf("Generate a multiple-choice question based on this content: %s", segment)

	content, err := s.complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleFailure, err)
	}

	var question models.Question
	if err := json.Unmarshal([]byte(content), &question); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", ErrOracleFailure, err)
	}
	if question.Question == "" || question.CorrectAnswer == "" {
		return nil, fmt.Errorf("%w: incomplete question in response", ErrOracleFailure)
	}

	question.ContentSegment = segment
	return &question, nil
}

type checkVerdict struct {
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// CheckAnswers grades each candidate answer against the content segment
// and question. One failed grading call fails the whole request; no
// partial verdict list is returned.
func (s *OracleService) CheckAnswers(ctx context.Context, segment, question string, candidates []models.CandidateAnswer) ([]models.AnswerVerdict, error) {
	verdicts := make([]models.AnswerVerdict, 0, len(candidates))

	for _, candidate := range candidates {
		user := fmt.Sprintf(
			"Context: %s\nQuestion: %s\nPlease check if this answer is somewhat correct: %s",
			segment, question, candidate.Answer,
		)

		content, err := s.complete(ctx, checkSystemPrompt, user)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOracleFailure, err)
		}

		var verdict checkVerdict
		if err := json.Unmarshal([]byte(content), &verdict); err != nil {
			return nil, fmt.Errorf("%w: unparseable verdict: %v", ErrOracleFailure, err)
		}

		verdicts = append(verdicts, models.AnswerVerdict{
			PlayerID:    candidate.PlayerID,
			Answer:      candidate.Answer,
			IsCorrect:   verdict.IsCorrect,
			Explanation: verdict.Explanation,
		})
	}

	return verdicts, nil
}

func (s *OracleService) complete(ctx context.Context, system, user string) (string, error) {
	if !s.IsAvailable() {
		return "", fmt.Errorf("oracle is not configured")
	}

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("oracle error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	content := stripCodeFences(chatResp.Choices[0].Message.Content)
	logger.S().Debugf("oracle completion: %d bytes", len(content))
	return content, nil
}

// stripCodeFences tolerates models that wrap their JSON in markdown
// fences despite instructions.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}
