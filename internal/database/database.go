package database

import (
	"log/slog"

	"bmr/config"
	"bmr/internal/domain"
	"bmr/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Group{},
		&models.User{},
		&models.Status{},
		&models.MembershipType{},
		&models.EducationLevel{},
		&models.Institution{},
		&models.Membership{},
		&models.PersonalInfo{},
		&models.ContactInfo{},
		&models.EducationInfo{},
		&models.WorkInfo{},
		&models.MembershipPayment{},
		&models.WorkflowAudit{},
		&models.Notification{},
	)
}

// SeedStatuses upserts the workflow status tree by code. Safe to run on every start.
func SeedStatuses(db *gorm.DB) error {
	ids := make(map[string]uint, len(domain.StatusTree))
	for _, seed := range domain.StatusTree {
		external := seed.External
		if external == "" {
			external = seed.Internal
		}
		attrs := map[string]interface{}{
			"internal_status": seed.Internal,
			"external_status": external,
			"description":     seed.Description,
			"parent_code":     seed.ParentCode,
		}
		// parent is best effort: the tree is seeded root first
		if pid, ok := ids[seed.ParentCode]; ok {
			attrs["parent_id"] = pid
		}
		var st models.Status
		err := db.Where(models.Status{StatusCode: seed.Code}).
			Attrs(models.Status{InternalStatus: seed.Internal, ExternalStatus: external}).
			FirstOrCreate(&st).Error
		if err != nil {
			return err
		}
		if err := db.Model(&st).Updates(attrs).Error; err != nil {
			return err
		}
		ids[seed.Code] = st.ID
	}
	slog.Info("workflow statuses seeded", "count", len(ids))
	return nil
}

// SeedLookups inserts default membership types and education levels when the
// tables are empty.
func SeedLookups(db *gorm.DB) error {
	var n int64
	if err := db.Model(&models.MembershipType{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		types := []models.MembershipType{
			{Name: "Ordinary", Amount: decimal.NewFromInt(50), Description: "Ordinary membership", IsActive: true},
			{Name: "Student", Amount: decimal.NewFromInt(20), Description: "Full-time students", IsActive: true},
			{Name: "Life", Amount: decimal.NewFromInt(500), Description: "Life membership", IsActive: true},
		}
		if err := db.Create(&types).Error; err != nil {
			return err
		}
	}
	if err := db.Model(&models.EducationLevel{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		levels := []models.EducationLevel{
			{Name: "Secondary"},
			{Name: "Diploma"},
			{Name: "Bachelor's Degree"},
			{Name: "Master's Degree"},
			{Name: "Doctorate"},
		}
		if err := db.Create(&levels).Error; err != nil {
			return err
		}
	}
	return nil
}
