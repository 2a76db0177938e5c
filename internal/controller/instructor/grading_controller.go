package instructor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/service"
	"github.com/rs/zerolog/log"
)

type GradingController struct {
	gradingService service.GradingService
	importService  service.TestImportService
}

func NewGradingController(gradingService service.GradingService, importService service.TestImportService) *GradingController {
	return &GradingController{
		gradingService: gradingService,
		importService:  importService,
	}
}

// ListPending godoc
// @Summary (Instructor) List submissions awaiting manual grading
// @Tags Instructor - Grading
// @Produce json
// @Success 200 {array} dto.PendingSubmissionDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /grading/pending [get]
func (c *GradingController) ListPending(ctx *gin.Context) {
	pending, err := c.gradingService.ListPending()
	if err != nil {
		log.Error().Err(err).Msg("Instructor ListPending: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve pending submissions"})
		return
	}
	ctx.JSON(http.StatusOK, pending)
}

// GetPending godoc
// @Summary (Instructor) Get one pending submission with answers to grade
// @Description Includes AI-suggested points and feedback where available; suggestions are advisory only.
// @Tags Instructor - Grading
// @Produce json
// @Param submission_id path int true "Submission ID"
// @Success 200 {object} dto.PendingSubmissionDTO
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Submission is not awaiting manual grading"
// @Router /grading/submissions/{submission_id} [get]
func (c *GradingController) GetPending(ctx *gin.Context) {
	submissionID, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}

	pending, err := c.gradingService.GetPending(submissionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Submission not found"})
		case errors.Is(err, service.ErrNotPendingManual):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Submission is not awaiting manual grading"})
		default:
			log.Error().Err(err).Uint("submissionID", submissionID).Msg("Instructor GetPending: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve submission"})
		}
		return
	}
	ctx.JSON(http.StatusOK, pending)
}

// GradeSubmission godoc
// @Summary (Instructor) Grade a submission's manual questions
// @Description Applies the instructor's points per question, combines them with the automatic score, and finalizes the attempt. Every manually graded question must be covered in one call.
// @Tags Instructor - Grading
// @Accept json
// @Produce json
// @Param submission_id path int true "Submission ID"
// @Param body body dto.GradeSubmissionRequest true "Per-question points and feedback"
// @Success 200 {object} dto.SubmissionResultDTO
// @Failure 400 {object} dto.ErrorResponse "Points outside the question range or incomplete grade set"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Submission already graded, or modified concurrently"
// @Router /grading/submissions/{submission_id}/grade [post]
func (c *GradingController) GradeSubmission(ctx *gin.Context) {
	submissionID, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	var req dto.GradeSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := c.gradingService.GradeSubmission(submissionID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Submission not found"})
		case errors.Is(err, service.ErrInvalidPoints):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid grade set", Details: []string{err.Error()}})
		case errors.Is(err, service.ErrNotPendingManual):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Submission has no questions awaiting manual grading"})
		case errors.Is(err, service.ErrStaleTransition):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Submission was graded or modified concurrently"})
		default:
			log.Error().Err(err).Uint("submissionID", submissionID).Msg("Instructor GradeSubmission: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to grade submission", Details: []string{err.Error()}})
		}
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// ImportTest godoc
// @Summary (Instructor) Import a complete test definition
// @Description Creates a test with its questions and options in one call. Validation covers the passing score range, option correctness per question type, and duplicate question ordering.
// @Tags Instructor - Tests
// @Accept json
// @Produce json
// @Param body body dto.ImportTestRequest true "Test definition"
// @Success 201 {object} dto.TestDetailDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/tests [post]
func (c *GradingController) ImportTest(ctx *gin.Context) {
	var req dto.ImportTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	created, err := c.importService.ImportTest(req)
	if err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Instructor ImportTest: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to import test", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, created)
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}
