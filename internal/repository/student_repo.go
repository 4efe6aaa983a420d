package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

// StudentRepository provides read-only access to student records used to label reports.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	NamesByID(ctx context.Context, ids []uint) (map[uint]string, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, translateError(err)
	}

	return student, nil
}

func (r *studentRepository) NamesByID(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var students []models.Student
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, translateError(err)
	}

	for _, student := range students {
		names[student.ID] = student.Name
	}
	return names, nil
}
