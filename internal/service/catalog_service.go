package service

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CatalogService serves test definitions to students. Correct-answer flags
// never leave this layer on the taking path; randomization is deterministic
// per attempt so a resumed draft sees the same order.
type CatalogService interface {
	GetAllTests() ([]dto.TestSummaryDTO, error)
	// GetTestForAttempt renders the test as one attempt sees it; shuffleSeed
	// is the submission ID.
	GetTestForAttempt(testID uint, shuffleSeed int64) (*dto.TestDetailDTO, error)
}

type catalogService struct {
	testRepo repository.TestRepository
}

func NewCatalogService(testRepo repository.TestRepository) CatalogService {
	return &catalogService{testRepo: testRepo}
}

func (s *catalogService) GetAllTests() ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllWithQuestionCount()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tests with question count")
		return nil, fmt.Errorf("error fetching tests: %w", err)
	}

	var dtos []dto.TestSummaryDTO
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:              twc.Test.ID,
			Title:           twc.Test.Title,
			Description:     twc.Test.Description,
			QuestionCount:   twc.QuestionCount,
			DurationMinutes: twc.Test.DurationMinutes,
			MaxAttempts:     twc.Test.MaxAttempts,
			PassingScore:    twc.Test.PassingScore,
			CreatedAt:       twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

func (s *catalogService) GetTestForAttempt(testID uint, shuffleSeed int64) (*dto.TestDetailDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTestNotFound, testID)
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}

	resp := &dto.TestDetailDTO{
		ID:                     test.ID,
		Title:                  test.Title,
		Description:            test.Description,
		DurationMinutes:        test.DurationMinutes,
		MaxAttempts:            test.MaxAttempts,
		PassingScore:           test.PassingScore,
		ValidationType:         string(test.ValidationType),
		ShowResultsImmediately: test.ShowResultsImmediately,
		ShowCorrectAnswers:     test.ShowCorrectAnswers,
		OneQuestionPerPage:     test.OneQuestionPerPage,
		AllowBackNavigation:    test.AllowBackNavigation,
		AutoSaveDraft:          test.AutoSaveDraft,
		CreatedAt:              test.CreatedAt,
	}

	rng := rand.New(rand.NewSource(shuffleSeed))

	questions := make([]model.Question, len(test.Questions))
	copy(questions, test.Questions)
	if test.RandomizeQuestions {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	for qi := range questions {
		q := &questions[qi]
		questionDTO := dto.QuestionDTO{
			ID:          q.ID,
			TestID:      q.TestID,
			Prompt:      q.Prompt,
			Type:        string(q.Type),
			Points:      q.Points,
			IsRequired:  q.IsRequired,
			OrderInTest: q.OrderInTest,
		}
		options := make([]model.QuestionOption, len(q.Options))
		copy(options, q.Options)
		if test.RandomizeOptions {
			rng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}
		for oi := range options {
			// is_correct deliberately omitted on the taking path.
			questionDTO.Options = append(questionDTO.Options, dto.OptionDTO{
				ID:              options[oi].ID,
				Text:            options[oi].Text,
				OrderInQuestion: options[oi].OrderInQuestion,
			})
		}
		resp.Questions = append(resp.Questions, questionDTO)
	}
	return resp, nil
}
