package repository

import (
	"time"

	"github.com/openlms/assessment-engine/internal/model"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	Create(submission *model.Submission) error
	FindByID(id uint) (*model.Submission, error)
	FindByIDWithDetails(id uint) (*model.Submission, error)
	FindDraft(userID, testID uint) (*model.Submission, error)
	FindAllDrafts() ([]model.Submission, error)
	CountClosed(userID, testID uint) (int64, error)
	FindAllByTestAndUser(testID, userID uint) ([]model.Submission, error)
	FindPendingManual() ([]model.Submission, error)

	// SaveDraftAnswers replaces the full answer set of a draft submission.
	// The write is dropped (false, nil) when the submission is no longer a
	// draft or when revision is not strictly newer than the stored one.
	SaveDraftAnswers(submissionID uint, revision int64, answers []model.Answer) (bool, error)

	// CloseDraft transitions draft -> submitted with the final answer set in
	// one transaction, guarded on the current state. Returns false when the
	// submission was not in draft (transition race loser or duplicate submit).
	CloseDraft(submissionID uint, submittedAt time.Time, forced bool, autoScore float64, pendingManual bool, answers []model.Answer) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(submission *model.Submission) error {
	return r.db.Create(submission).Error
}

func (r *submissionRepository) FindByID(id uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.First(&submission, id).Error
	return &submission, err
}

func (r *submissionRepository) FindByIDWithDetails(id uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.
		Preload("Test").
		Preload("Test.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_test ASC")
		}).
		Preload("Test.Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.order_in_question ASC")
		}).
		Preload("Answers").
		Preload("Answers.Question").
		First(&submission, id).Error
	return &submission, err
}

func (r *submissionRepository) FindDraft(userID, testID uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.
		Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.SubmissionDraft).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) FindAllDrafts() ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.
		Preload("Test").
		Where("status = ?", model.SubmissionDraft).
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) CountClosed(userID, testID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Submission{}).
		Where("user_id = ? AND test_id = ? AND status IN ?", userID, testID,
			[]model.SubmissionStatus{model.SubmissionSubmitted, model.SubmissionGraded}).
		Count(&count).Error
	return count, err
}

func (r *submissionRepository) FindAllByTestAndUser(testID, userID uint) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("attempt_number ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) FindPendingManual() ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.
		Preload("Test").
		Where("status = ? AND pending_manual = ?", model.SubmissionSubmitted, true).
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) SaveDraftAnswers(submissionID uint, revision int64, answers []model.Answer) (bool, error) {
	saved := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Submission{}).
			Where("id = ? AND status = ? AND draft_revision < ?", submissionID, model.SubmissionDraft, revision).
			Update("draft_revision", revision)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Stale revision or the draft was already closed; drop the write.
			return nil
		}
		if err := tx.Unscoped().Where("submission_id = ?", submissionID).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].SubmissionID = submissionID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		saved = true
		return nil
	})
	return saved, err
}

func (r *submissionRepository) CloseDraft(submissionID uint, submittedAt time.Time, forced bool, autoScore float64, pendingManual bool, answers []model.Answer) (bool, error) {
	closed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Submission{}).
			Where("id = ? AND status = ?", submissionID, model.SubmissionDraft).
			Updates(map[string]interface{}{
				"status":         model.SubmissionSubmitted,
				"submitted_at":   submittedAt,
				"forced_submit":  forced,
				"auto_score":     autoScore,
				"pending_manual": pendingManual,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: a concurrent submit or forced submit got there first.
			return nil
		}
		if err := tx.Unscoped().Where("submission_id = ?", submissionID).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].SubmissionID = submissionID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		closed = true
		return nil
	})
	return closed, err
}
