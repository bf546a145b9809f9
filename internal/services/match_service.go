package services

import (
	"fmt"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"gorm.io/gorm"
)

type MatchService interface {
	ListMatches(db *gorm.DB, userID string, criteria dto.MatchCriteria) (*dto.MatchListResponse, error)
	GetMatch(db *gorm.DB, userID, matchID string) (*dto.MatchResponse, error)
	Complete(db *gorm.DB, userID, matchID string) (*dto.MatchResponse, error)
}

type matchService struct {
	matchRepo           repositories.MatchRepository
	chatRepo            repositories.ChatRepository
	notificationService NotificationService
	clock               clock.Clock
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	chatRepo repositories.ChatRepository,
	notificationService NotificationService,
	clk clock.Clock,
) MatchService {
	return &matchService{
		matchRepo:           matchRepo,
		chatRepo:            chatRepo,
		notificationService: notificationService,
		clock:               clk,
	}
}

func (s *matchService) ListMatches(db *gorm.DB, userID string, criteria dto.MatchCriteria) (*dto.MatchListResponse, error) {
	matches, err := s.matchRepo.FindUserMatches(db, userID, models.MatchStatus(criteria.Status))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	unread, err := s.chatRepo.CountUnreadByMatches(db, ids, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.MatchListResponse{
		Matches: make([]*dto.MatchResponse, 0, len(matches)),
		Total:   len(matches),
	}
	for i := range matches {
		resp.Matches = append(resp.Matches, buildMatchResponse(&matches[i], unread[matches[i].ID]))
	}
	return resp, nil
}

func (s *matchService) GetMatch(db *gorm.DB, userID, matchID string) (*dto.MatchResponse, error) {
	match, err := loadMatchForParticipant(db, s.matchRepo, matchID, userID)
	if err != nil {
		return nil, err
	}

	unread, err := s.chatRepo.CountUnreadByMatches(db, []string{match.ID}, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return buildMatchResponse(match, unread[match.ID]), nil
}

// Complete closes the match for either participant. A second call, or a
// concurrent one that loses, gets an invalid-status error.
func (s *matchService) Complete(db *gorm.DB, userID, matchID string) (*dto.MatchResponse, error) {
	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchForParticipant(tx, s.matchRepo, matchID, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.matchRepo.CompleteMatch(tx, match.ID, userID, now)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !ok {
		return nil, apperrors.ErrInvalidStatus("match", "Match is already completed", string(models.MatchStatusCompleted))
	}

	title := "your collaboration"
	if match.Job != nil {
		title = fmt.Sprintf("%q", match.Job.Title)
	}
	_, err = s.notificationService.Emit(tx, EmitParams{
		UserID: match.Counterpart(userID),
		Type:   models.NotificationMatchCompleted,
		Title:  "Collaboration completed",
		Body:   fmt.Sprintf("The other side marked %s as completed. You can now leave a review.", title),
		Link:   "/matches/" + match.ID,
		Data:   map[string]string{"match_id": match.ID, "job_id": match.JobID},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	match.Status = models.MatchStatusCompleted
	match.CompletedAt = &now
	match.CompletedBy = &userID
	return buildMatchResponse(match, 0), nil
}

func buildMatchResponse(m *models.Match, unread int64) *dto.MatchResponse {
	return &dto.MatchResponse{
		ID:            m.ID,
		ApplicationID: m.ApplicationID,
		JobID:         m.JobID,
		BrandID:       m.BrandID,
		CreatorID:     m.CreatorID,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
		CompletedBy:   m.CompletedBy,
		Job:           buildJobSummary(m.Job),
		UnreadCount:   unread,
	}
}
