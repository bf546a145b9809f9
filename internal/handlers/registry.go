package handlers

// AppHandlers holds every HTTP handler of the API.
type AppHandlers struct {
	HealthHandler       *HealthHandler
	JobHandler          *JobHandler
	ApplicationHandler  *ApplicationHandler
	MatchHandler        *MatchHandler
	ChatHandler         *ChatHandler
	NotificationHandler *NotificationHandler
	ReviewHandler       *ReviewHandler
	ContactHandler      *ContactHandler
}
