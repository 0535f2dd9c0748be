package repository

import (
	"context"

	"bmr/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("WorkflowStatus").
		Preload("MembershipType").
		Preload("PersonalInfo").
		Preload("ContactInfo").
		Preload("EducationInfo.EducationLevel").
		Preload("EducationInfo.Institution").
		Preload("WorkInfo")
}

func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

// Save writes the membership's own columns; related rows go through the Upsert methods.
func (r *MembershipRepository) Save(ctx context.Context, m *models.Membership) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error)
}

func (r *MembershipRepository) ByID(ctx context.Context, id uint) (*models.Membership, error) {
	var m models.Membership
	if err := r.preloaded(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MembershipRepository) ByUUID(ctx context.Context, uuid string) (*models.Membership, error) {
	var m models.Membership
	if err := r.preloaded(ctx).Where("uuid = ?", uuid).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MembershipRepository) ByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	var m models.Membership
	if err := r.preloaded(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MembershipRepository) LockByID(ctx context.Context, id uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("WorkflowStatus").
		First(&m, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MembershipRepository) List(ctx context.Context, f MembershipFilter) ([]models.Membership, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Membership{})
	if f.UserID != 0 {
		q = q.Where("memberships.user_id = ?", f.UserID)
	}
	if f.StatusCode != "" {
		q = q.Joins("JOIN statuses ON statuses.id = memberships.workflow_status_id").
			Where("statuses.status_code = ?", f.StatusCode)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var list []models.Membership
	err := q.Preload("WorkflowStatus").Preload("MembershipType").
		Order("memberships.created_at DESC").Find(&list).Error
	return list, total, err
}

func (r *MembershipRepository) upsert(ctx context.Context, value interface{}, columns []string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "membership_id"}},
		DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
	}).Create(value).Error
}

func (r *MembershipRepository) UpsertPersonal(ctx context.Context, p *models.PersonalInfo) error {
	return r.upsert(ctx, p, []string{"full_name", "date_of_birth", "gender", "country_of_birth", "city_of_birth", "citizenship"})
}

func (r *MembershipRepository) UpsertContact(ctx context.Context, c *models.ContactInfo) error {
	return r.upsert(ctx, c, []string{"nric_fin_enc", "primary_contact_enc", "secondary_contact_enc",
		"residential_status", "postal_code", "address"})
}

func (r *MembershipRepository) UpsertEducation(ctx context.Context, e *models.EducationInfo) error {
	return r.upsert(ctx, e, []string{"education_level_id", "institution_id", "other_societies"})
}

func (r *MembershipRepository) UpsertWork(ctx context.Context, w *models.WorkInfo) error {
	return r.upsert(ctx, w, []string{"occupation", "company_name", "company_address", "company_postal_code", "company_contact_enc"})
}
