package entitlements

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TimoLindner/WaxCrate/app/models"
)

// ErrNotFound is returned when no entitlement record exists for a user.
var ErrNotFound = errors.New("entitlement record not found")

// Repository is the entitlement store contract. Upsert writes the given
// columns as a full overwrite in one statement, so every transition is safe
// to repeat. IncrementScansUsed must be a single atomic update on the store,
// never a read-modify-write in application code.
type Repository interface {
	Get(ctx context.Context, userID uint) (*models.Subscription, error)
	FindByBillingCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription, columns []string) error
	IncrementScansUsed(ctx context.Context, userID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByBillingCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("billing_customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Upsert(ctx context.Context, sub *models.Subscription, columns []string) error {
	assign := append(append([]string(nil), columns...), "updated_at")
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(assign),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID and untouched columns reflect the stored row after upsert.
	return r.db.WithContext(ctx).Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) IncrementScansUsed(ctx context.Context, userID uint) error {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		UpdateColumn("scans_used", gorm.Expr("scans_used + 1"))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
