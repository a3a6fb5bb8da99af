package repository

import (
	"context"

	"github.com/natep/cinesearch/internal/domain"
	"gorm.io/gorm"
)

// UserRepository reads the user profile slice this core needs.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *UserRepository: repository instance bound to db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: user ID.
// Returns:
//   - *domain.User: user record if found.
//   - error: gorm.ErrRecordNotFound when absent; other errors on store failure.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
