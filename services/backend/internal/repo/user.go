package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/services/backend/internal/models"
)

var ErrUserExists = errors.New("user already exists")

// CreateUser inserts u. If no account exists yet and firstRole is not empty,
// u gets firstRole instead of its own role.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User, firstRole string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("username = ?", u.Username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrUserExists
		}
		var total int64
		if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 && firstRole != "" {
			u.Role = firstRole
		}
		return tx.Create(u).Error
	})
}

func (r *GormRepo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUser accepts either the user id or the username.
func (r *GormRepo) FindUser(ctx context.Context, ref string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("id = ? OR username = ?", ref, ref).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormRepo) UserRole(ctx context.Context, id string) (string, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Select("role").Where("id = ?", id).First(&u).Error; err != nil {
		return "", err
	}
	return u.Role, nil
}

func (r *GormRepo) SetUserRole(ctx context.Context, id, role string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role).Error
}

func (r *GormRepo) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) SaveProfile(ctx context.Context, p *models.Profile) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "phone", "updated_at"}),
	}).Create(p).Error
}
