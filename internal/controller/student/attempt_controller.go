package student

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	catalogService service.CatalogService
	attemptService service.AttemptService
}

func NewAttemptController(catalogService service.CatalogService, attemptService service.AttemptService) *AttemptController {
	return &AttemptController{
		catalogService: catalogService,
		attemptService: attemptService,
	}
}

// GetAllTests godoc
// @Summary (Student) List available tests
// @Tags Student - Tests & Attempts
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /tests [get]
func (c *AttemptController) GetAllTests(ctx *gin.Context) {
	tests, err := c.catalogService.GetAllTests()
	if err != nil {
		log.Error().Err(err).Msg("Student GetAllTests: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve tests"})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// StartAttempt godoc
// @Summary (Student) Start or resume a test attempt
// @Description Opens a new draft submission, or returns the existing draft unchanged when one exists.
// @Tags Student - Tests & Attempts
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param body body dto.StartAttemptRequest true "User starting the attempt"
// @Success 200 {object} dto.AttemptStateDTO "Existing draft resumed"
// @Success 201 {object} dto.AttemptStateDTO "New attempt opened"
// @Failure 403 {object} dto.ErrorResponse "Attempt limit exceeded"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	state, err := c.attemptService.Start(testID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptLimitExceeded):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt limit exceeded for this test"})
		case errors.Is(err, service.ErrTestNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
		default:
			log.Error().Err(err).Uint("testID", testID).Msg("Student StartAttempt: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to start attempt", Details: []string{err.Error()}})
		}
		return
	}
	status := http.StatusCreated
	if state.Resumed {
		status = http.StatusOK
	}
	ctx.JSON(status, state)
}

// GetTestForAttempt godoc
// @Summary (Student) Get the test as one attempt sees it
// @Description Question/option order follows the attempt's deterministic shuffle; correct answers are never included.
// @Tags Student - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Param attempt_id query int true "Submission ID used as shuffle seed"
// @Success 200 {object} dto.TestDetailDTO
// @Failure 400 {object} dto.ErrorResponse "Missing or malformed attempt_id"
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id} [get]
func (c *AttemptController) GetTestForAttempt(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	seed, err := strconv.ParseInt(ctx.Query("attempt_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid attempt_id in query"})
		return
	}

	test, err := c.catalogService.GetTestForAttempt(testID, seed)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
			return
		}
		log.Error().Err(err).Uint("testID", testID).Msg("Student GetTestForAttempt: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve test"})
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// RecordAnswer godoc
// @Summary (Student) Record an answer on the active draft
// @Description Buffers the answer in the attempt session; the autosave loop persists it. Valid only while the attempt is a draft.
// @Tags Student - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Submission ID"
// @Param body body dto.RecordAnswerRequest true "Answer payload, one variant populated"
// @Success 204 "Answer buffered"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload for the question type"
// @Failure 409 {object} dto.ErrorResponse "Attempt is no longer a draft"
// @Router /attempts/{attempt_id}/answers [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.RecordAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.attemptService.RecordAnswer(attemptID, req); err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Attempt not found"})
		case errors.Is(err, service.ErrAttemptNotOwned):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt belongs to another user"})
		case errors.Is(err, service.ErrAttemptClosed):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Attempt is no longer in draft"})
		default:
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to record answer", Details: []string{err.Error()}})
		}
		return
	}
	ctx.Status(http.StatusNoContent)
}

// SubmitAttempt godoc
// @Summary (Student) Submit the attempt for scoring
// @Description Finalizes the draft. A repeated submit returns the existing result instead of an error.
// @Tags Student - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Submission ID"
// @Param body body dto.SubmitAttemptRequest true "User submitting"
// @Success 200 {object} dto.SubmissionResultDTO
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse "Store unavailable; client should retry"
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := c.attemptService.Submit(attemptID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Attempt not found"})
		case errors.Is(err, service.ErrAttemptNotOwned):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt belongs to another user"})
		case errors.Is(err, service.ErrPersistenceUnavailable):
			// Manual submit is not time-bounded; surface the failure so the
			// client can retry.
			log.Error().Err(err).Uint("attemptID", attemptID).Msg("Student SubmitAttempt: persistence unavailable")
			ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: "Submission could not be saved, please retry"})
		default:
			log.Error().Err(err).Uint("attemptID", attemptID).Msg("Student SubmitAttempt: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to submit attempt", Details: []string{err.Error()}})
		}
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetTimeRemaining godoc
// @Summary (Student) Seconds left on the attempt clock
// @Tags Student - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Submission ID"
// @Param user_id query int true "User ID"
// @Success 200 {object} dto.TimeRemainingDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/time [get]
func (c *AttemptController) GetTimeRemaining(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	userID, ok := queryUserID(ctx)
	if !ok {
		return
	}

	remaining, err := c.attemptService.TimeRemaining(attemptID, userID)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, remaining)
}

// GetAttempt godoc
// @Summary (Student) Get one attempt with its answers
// @Tags Student - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Submission ID"
// @Param user_id query int true "User ID"
// @Success 200 {object} dto.SubmissionResultDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	userID, ok := queryUserID(ctx)
	if !ok {
		return
	}

	result, err := c.attemptService.GetAttempt(attemptID, userID)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// ListAttempts godoc
// @Summary (Student) List a user's attempts for a test
// @Tags Student - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Param user_id query int true "User ID"
// @Success 200 {array} dto.SubmissionSummaryDTO
// @Router /tests/{test_id}/my-attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	userID, ok := queryUserID(ctx)
	if !ok {
		return
	}

	attempts, err := c.attemptService.ListAttempts(testID, userID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("Student ListAttempts: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve attempts"})
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

func respondAttemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, service.ErrAttemptNotOwned):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt belongs to another user"})
	default:
		log.Error().Err(err).Msg("Student attempt endpoint: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal error", Details: []string{err.Error()}})
	}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

func queryUserID(ctx *gin.Context) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Query("user_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid user_id in query"})
		return 0, false
	}
	return uint(val), true
}
