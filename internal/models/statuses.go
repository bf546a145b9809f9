package models

type UserRole string
type JobStatus string
type JobCategory string
type Platform string
type ApplicationStatus string
type MatchStatus string
type AttachmentKind string
type NotificationType string

const (
	UserRoleBrand   UserRole = "brand"
	UserRoleCreator UserRole = "creator"
	UserRoleAdmin   UserRole = "admin"

	JobStatusOpen   JobStatus = "open"
	JobStatusFilled JobStatus = "filled"
	JobStatusClosed JobStatus = "closed"

	CategoryBeauty    JobCategory = "beauty"
	CategoryFashion   JobCategory = "fashion"
	CategoryFitness   JobCategory = "fitness"
	CategoryFood      JobCategory = "food"
	CategoryGaming    JobCategory = "gaming"
	CategoryLifestyle JobCategory = "lifestyle"
	CategoryMusic     JobCategory = "music"
	CategoryTech      JobCategory = "tech"
	CategoryTravel    JobCategory = "travel"
	CategoryOther     JobCategory = "other"

	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitch    Platform = "twitch"
	PlatformTwitter   Platform = "twitter"
	PlatformTelegram  Platform = "telegram"
	PlatformBlog      Platform = "blog"

	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"

	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"

	AttachmentKindImage    AttachmentKind = "image"
	AttachmentKindVideo    AttachmentKind = "video"
	AttachmentKindDocument AttachmentKind = "document"

	NotificationApplicationReceived NotificationType = "application_received"
	NotificationApplicationAccepted NotificationType = "application_accepted"
	NotificationApplicationRejected NotificationType = "application_rejected"
	NotificationMatchCompleted      NotificationType = "match_completed"
	NotificationReviewReceived      NotificationType = "review_received"
	NotificationJobClosed           NotificationType = "job_closed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:   {JobStatusFilled, JobStatusClosed},
	JobStatusFilled: {JobStatusClosed},
}

// CanTransitionTo reports whether the job lifecycle allows s -> next.
// There are no backward edges; closed is a sink.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusOpen, JobStatusFilled, JobStatusClosed:
		return true
	}
	return false
}

func (c JobCategory) IsValid() bool {
	switch c {
	case CategoryBeauty, CategoryFashion, CategoryFitness, CategoryFood, CategoryGaming,
		CategoryLifestyle, CategoryMusic, CategoryTech, CategoryTravel, CategoryOther:
		return true
	}
	return false
}

func (p Platform) IsValid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformTwitch,
		PlatformTwitter, PlatformTelegram, PlatformBlog:
		return true
	}
	return false
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusRejected
}

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleBrand, UserRoleCreator, UserRoleAdmin:
		return true
	}
	return false
}
