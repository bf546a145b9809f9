package repositories

import (
	"errors"

	"flulance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrContactNotFound = errors.New("delivery contact not found")

type ContactRepository interface {
	UpsertContact(db *gorm.DB, contact *models.DeliveryContact) error
	FindContact(db *gorm.DB, userID string) (*models.DeliveryContact, error)
	FindContacts(db *gorm.DB, userIDs []string) (map[string]models.DeliveryContact, error)
}

type ContactRepositoryImpl struct{}

func NewContactRepository() ContactRepository {
	return &ContactRepositoryImpl{}
}

func (r *ContactRepositoryImpl) UpsertContact(db *gorm.DB, contact *models.DeliveryContact) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "telegram_chat_id", "updated_at"}),
	}).Create(contact).Error
}

func (r *ContactRepositoryImpl) FindContact(db *gorm.DB, userID string) (*models.DeliveryContact, error) {
	var contact models.DeliveryContact
	err := db.Where("user_id = ?", userID).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

func (r *ContactRepositoryImpl) FindContacts(db *gorm.DB, userIDs []string) (map[string]models.DeliveryContact, error) {
	out := make(map[string]models.DeliveryContact, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var contacts []models.DeliveryContact
	if err := db.Where("user_id IN ?", userIDs).Find(&contacts).Error; err != nil {
		return nil, err
	}
	for _, c := range contacts {
		out[c.UserID] = c
	}
	return out, nil
}
