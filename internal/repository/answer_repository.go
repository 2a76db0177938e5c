package repository

import (
	"github.com/openlms/assessment-engine/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	Update(answer *model.Answer) error
	FindBySubmissionID(submissionID uint) ([]model.Answer, error)
	SaveAISuggestion(answerID uint, points float64, feedback string) error
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Update(answer *model.Answer) error {
	return r.db.Save(answer).Error
}

func (r *answerRepository) FindBySubmissionID(submissionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.
		Preload("Question").
		Preload("Question.Options").
		Where("submission_id = ?", submissionID).
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) SaveAISuggestion(answerID uint, points float64, feedback string) error {
	return r.db.Model(&model.Answer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"ai_suggested_points":   points,
			"ai_suggested_feedback": feedback,
		}).Error
}
