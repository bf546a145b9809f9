package services

import (
	"flulance/internal/clock"
	"flulance/internal/repositories"
	"flulance/internal/storage"
)

// ServiceContainer holds every application service.
type ServiceContainer struct {
	JobService          JobService
	ApplicationService  ApplicationService
	MatchService        MatchService
	ChatService         ChatService
	NotificationService NotificationService
	ReviewService       ReviewService
	ContactService      ContactService
}

// RepositoryContainer holds the stateless repositories shared by services and workers.
type RepositoryContainer struct {
	Jobs          repositories.JobRepository
	Applications  repositories.ApplicationRepository
	Matches       repositories.MatchRepository
	Chat          repositories.ChatRepository
	Notifications repositories.NotificationRepository
	Reviews       repositories.ReviewRepository
	Contacts      repositories.ContactRepository
}

func NewRepositoryContainer() *RepositoryContainer {
	return &RepositoryContainer{
		Jobs:          repositories.NewJobRepository(),
		Applications:  repositories.NewApplicationRepository(),
		Matches:       repositories.NewMatchRepository(),
		Chat:          repositories.NewChatRepository(),
		Notifications: repositories.NewNotificationRepository(),
		Reviews:       repositories.NewReviewRepository(),
		Contacts:      repositories.NewContactRepository(),
	}
}

func NewServiceContainer(repos *RepositoryContainer, store storage.Storage, clk clock.Clock, chatCfg ChatConfig) *ServiceContainer {
	notifications := NewNotificationService(repos.Notifications, clk)

	return &ServiceContainer{
		JobService:          NewJobService(repos.Jobs, repos.Applications, notifications, clk),
		ApplicationService:  NewApplicationService(repos.Jobs, repos.Applications, repos.Matches, notifications, clk),
		MatchService:        NewMatchService(repos.Matches, repos.Chat, notifications, clk),
		ChatService:         NewChatService(repos.Chat, repos.Matches, store, clk, chatCfg),
		NotificationService: notifications,
		ReviewService:       NewReviewService(repos.Reviews, repos.Matches, notifications, clk),
		ContactService:      NewContactService(repos.Contacts, clk),
	}
}
