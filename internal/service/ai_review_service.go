package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openlms/assessment-engine/config"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// AIReviewService produces advisory grading suggestions for free-text answers
// awaiting manual review. Output is stored next to the answer for the
// instructor; it never becomes the authoritative score.
type AIReviewService interface {
	Enabled() bool
	SuggestGrade(ctx context.Context, question *model.Question, answerText string) (feedback string, points float64, err error)
}

type aiReviewService struct {
	client *genai.GenerativeModel
	cfg    *config.Config
}

func NewAIReviewService(cfg *config.Config) (AIReviewService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; AI grading suggestions are disabled")
		return &aiReviewService{cfg: cfg, client: nil}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &aiReviewService{client: client.GenerativeModel("gemini-1.5-flash"), cfg: cfg}, nil
}

func (s *aiReviewService) Enabled() bool {
	return s.client != nil
}

func (s *aiReviewService) SuggestGrade(ctx context.Context, question *model.Question, answerText string) (string, float64, error) {
	if s.client == nil {
		return "", 0, fmt.Errorf("gemini client not initialized")
	}
	if question.Type.Objective() {
		return "", 0, fmt.Errorf("question type %s is scored automatically and needs no suggestion", question.Type)
	}

	var prompt strings.Builder
	prompt.WriteString("You are assisting an instructor who grades student test answers. ")
	prompt.WriteString("Suggest a score and concise feedback for the answer below. The instructor makes the final decision.\n\n")
	prompt.WriteString("Question:\n---\n")
	prompt.WriteString(question.Prompt)
	prompt.WriteString("\n---\n\n")
	prompt.WriteString("Student's answer:\n---\n")
	prompt.WriteString(answerText)
	prompt.WriteString("\n---\n\n")
	prompt.WriteString(fmt.Sprintf(`Evaluate correctness, completeness, and clarity relative to the question.

Format your response strictly as:
Score: [a number from 0 to %d]
Feedback:
[2-5 sentences the instructor could reuse, noting strengths and concrete gaps]
`, question.Points))

	resp, err := s.client.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		log.Error().Err(err).Uint("questionID", question.ID).Msg("Gemini API error during review suggestion")
		return "", 0, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("gemini returned no content")
	}

	raw := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			raw += string(txt)
		}
	}
	if raw == "" {
		return "", 0, fmt.Errorf("gemini returned no text content")
	}

	scoreStr, feedback, err := parseScoreAndFeedback(raw)
	if err != nil {
		log.Warn().Err(err).Str("rawResponse", raw).Msg("Failed to parse review suggestion")
		return "", 0, err
	}
	points, err := strconv.ParseFloat(strings.TrimSpace(scoreStr), 64)
	if err != nil {
		return "", 0, fmt.Errorf("could not parse score value %q from AI response", scoreStr)
	}

	if points > float64(question.Points) {
		points = float64(question.Points)
	}
	if points < 0 {
		points = 0
	}
	return strings.TrimSpace(feedback), points, nil
}

func parseScoreAndFeedback(rawResponse string) (scoreStr string, feedbackStr string, err error) {
	scorePrefix := "Score:"
	feedbackPrefix := "Feedback:"

	scoreIndex := strings.Index(rawResponse, scorePrefix)
	feedbackIndex := strings.Index(rawResponse, feedbackPrefix)

	if scoreIndex == -1 {
		return "", rawResponse, fmt.Errorf("response does not contain 'Score:' prefix")
	}

	endOfScoreLine := strings.Index(rawResponse[scoreIndex:], "\n")
	if endOfScoreLine == -1 {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix):])
	} else {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix) : scoreIndex+endOfScoreLine])
	}

	if feedbackIndex != -1 && feedbackIndex > scoreIndex {
		feedbackStr = strings.TrimSpace(rawResponse[feedbackIndex+len(feedbackPrefix):])
	} else if endOfScoreLine != -1 && len(rawResponse) > scoreIndex+endOfScoreLine+1 {
		feedbackStr = strings.TrimSpace(rawResponse[scoreIndex+endOfScoreLine+1:])
	} else {
		feedbackStr = ""
	}

	// The score line may carry trailing words; keep only the leading number.
	parts := strings.Fields(scoreStr)
	if len(parts) > 0 {
		scoreStr = parts[0]
	}
	return scoreStr, feedbackStr, nil
}
