package services

import (
	"errors"
	"strings"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"gorm.io/gorm"
)

// ContactService manages where a user's notifications are delivered outside
// the app. Users only ever touch their own contact.
type ContactService interface {
	GetContact(db *gorm.DB, userID string) (*dto.ContactResponse, error)
	UpdateContact(db *gorm.DB, userID string, req *dto.UpdateContactRequest) (*dto.ContactResponse, error)
}

type contactService struct {
	contactRepo repositories.ContactRepository
	clock       clock.Clock
}

func NewContactService(contactRepo repositories.ContactRepository, clk clock.Clock) ContactService {
	return &contactService{contactRepo: contactRepo, clock: clk}
}

// GetContact returns an empty contact when none was set.
func (s *contactService) GetContact(db *gorm.DB, userID string) (*dto.ContactResponse, error) {
	contact, err := s.contactRepo.FindContact(db, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrContactNotFound) {
			return &dto.ContactResponse{UserID: userID}, nil
		}
		return nil, apperrors.InternalError(err)
	}
	return buildContactResponse(contact), nil
}

// UpdateContact replaces the contact; a nil or blank field clears that channel.
func (s *contactService) UpdateContact(db *gorm.DB, userID string, req *dto.UpdateContactRequest) (*dto.ContactResponse, error) {
	contact := &models.DeliveryContact{
		UserID:         userID,
		TelegramChatID: req.TelegramChatID,
		UpdatedAt:      s.clock.Now(),
	}
	if req.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*req.Email)); email != "" {
			contact.Email = &email
		}
	}

	if err := s.contactRepo.UpsertContact(db, contact); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return buildContactResponse(contact), nil
}

func buildContactResponse(c *models.DeliveryContact) *dto.ContactResponse {
	updated := c.UpdatedAt
	return &dto.ContactResponse{
		UserID:         c.UserID,
		Email:          c.Email,
		TelegramChatID: c.TelegramChatID,
		UpdatedAt:      &updated,
	}
}
