package service

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/rs/zerolog/log"
)

// TestImportService is the boundary with the external authoring system: it
// accepts complete test definitions and validates the structural invariants
// before persisting. This service never edits a definition in place.
type TestImportService interface {
	ImportTest(req dto.ImportTestRequest) (*dto.TestDetailDTO, error)
}

type testImportService struct {
	testRepo repository.TestRepository
	catalog  CatalogService
}

func NewTestImportService(testRepo repository.TestRepository, catalog CatalogService) TestImportService {
	return &testImportService{testRepo: testRepo, catalog: catalog}
}

func (s *testImportService) ImportTest(req dto.ImportTestRequest) (*dto.TestDetailDTO, error) {
	orderSeen := make(map[int]bool, len(req.Questions))
	questions := make([]model.Question, 0, len(req.Questions))
	for _, qReq := range req.Questions {
		if orderSeen[qReq.OrderInTest] {
			return nil, fmt.Errorf("duplicate order_in_test %d", qReq.OrderInTest)
		}
		orderSeen[qReq.OrderInTest] = true

		question := model.Question{
			Prompt:      qReq.Prompt,
			Type:        model.QuestionType(qReq.Type),
			Points:      qReq.Points,
			IsRequired:  qReq.IsRequired,
			OrderInTest: qReq.OrderInTest,
		}
		for _, oReq := range qReq.Options {
			question.Options = append(question.Options, model.QuestionOption{
				Text:            oReq.Text,
				IsCorrect:       oReq.IsCorrect,
				OrderInQuestion: oReq.OrderInQuestion,
			})
		}
		questions = append(questions, question)
	}

	test := model.Test{
		Title:                  req.Title,
		Description:            req.Description,
		InstructorID:           req.InstructorID,
		CourseID:               req.CourseID,
		DurationMinutes:        req.DurationMinutes,
		MaxAttempts:            req.MaxAttempts,
		PassingScore:           req.PassingScore,
		ValidationType:         model.ValidationType(req.ValidationType),
		ShowResultsImmediately: req.ShowResultsImmediately,
		ShowCorrectAnswers:     req.ShowCorrectAnswers,
		RandomizeQuestions:     req.RandomizeQuestions,
		RandomizeOptions:       req.RandomizeOptions,
		OneQuestionPerPage:     req.OneQuestionPerPage,
		AllowBackNavigation:    req.AllowBackNavigation,
		AutoSaveDraft:          req.AutoSaveDraft,
		Questions:              questions,
	}
	if err := test.Validate(); err != nil {
		return nil, fmt.Errorf("invalid test definition: %w", err)
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Msg("Failed to persist imported test")
		return nil, fmt.Errorf("database error importing test: %w", err)
	}
	log.Info().Uint("testID", test.ID).Int("questions", len(test.Questions)).Msg("Test definition imported")

	created, err := s.testRepo.FindByIDWithQuestions(test.ID)
	if err != nil {
		var fallback dto.TestDetailDTO
		copier.Copy(&fallback, &test)
		return &fallback, nil
	}
	var resp dto.TestDetailDTO
	if err := copier.Copy(&resp, created); err != nil {
		return nil, fmt.Errorf("error preparing import response: %w", err)
	}
	resp.ValidationType = string(created.ValidationType)
	return &resp, nil
}
