// Package store defines the persistence collaborators of the moderation
// pipeline. gormstore is the Postgres implementation; memstore backs tests and
// local development.
package store

import (
	"context"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/types"
)

type QueueFilter struct {
	Status     types.QueueStatus
	Priority   types.Priority
	Severity   types.Severity
	AssignedTo string
	Limit      int
	Offset     int
}

type ReportFilter struct {
	Status     types.ReportStatus
	ReportType types.ReportType
	Priority   types.Priority
	Limit      int
	Offset     int
}

// ReportKey identifies "the same report" for deduplication.
type ReportKey struct {
	ReporterID     string
	ReportType     types.ReportType
	ReportedUserID string
	ContentID      string
	ContentType    string
}

type QueueCompletion struct {
	Status           types.QueueStatus
	ReviewerID       string
	Notes            string
	EscalationReason string
	At               time.Time
}

type ReportResolution struct {
	Status      types.ReportStatus
	ResolverID  string
	Resolution  string
	ActionTaken types.ResolutionAction
	At          time.Time
}

// UserHistory summarizes a user's moderation outcomes over a window.
type UserHistory struct {
	Total    int
	Rejected int
	Severe   int
}

type ResultStats struct {
	Total       int64            `json:"total"`
	Approved    int64            `json:"approved"`
	Rejected    int64            `json:"rejected"`
	NeedsReview int64            `json:"needsReview"`
	TopFlags    map[string]int64 `json:"topFlags"`
}

// ResultStore is the append-only moderation audit log.
type ResultStore interface {
	SaveResult(ctx context.Context, rec *models.ModerationRecord) error
	LatestResult(ctx context.Context, contentID, contentType string) (*models.ModerationRecord, error)
	UserHistory(ctx context.Context, userID string, since time.Time) (UserHistory, error)
	CountDuplicates(ctx context.Context, contentHash, excludeUserID string, since time.Time) (int, error)
	ResultStats(ctx context.Context, since time.Time) (ResultStats, error)
}

type QueueStore interface {
	// CreateQueueItem inserts item unless an open item already exists for the
	// same content, in which case that item is returned with created=false.
	// The check and the insert are atomic.
	CreateQueueItem(ctx context.Context, item *models.QueueItem) (existing *models.QueueItem, created bool, err error)
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
	OpenQueueItem(ctx context.Context, contentID, contentType string) (*models.QueueItem, error)
	ListQueueItems(ctx context.Context, f QueueFilter) ([]models.QueueItem, int64, error)
	// AssignQueueItem moves a pending item to in_review. Items in any other
	// state yield types.ErrConflict.
	AssignQueueItem(ctx context.Context, id, moderatorID string) (*models.QueueItem, error)
	// CompleteQueueItem moves an open item to a terminal state.
	CompleteQueueItem(ctx context.Context, id string, c QueueCompletion) (*models.QueueItem, error)
	InReviewCounts(ctx context.Context) (map[string]int, error)
	QueueCounts(ctx context.Context) (map[string]int64, error)
}

type ReportStore interface {
	// FindOpenReport returns the open report matching key created after since, or nil.
	FindOpenReport(ctx context.Context, key ReportKey, since time.Time) (*models.UserReport, error)
	CreateReport(ctx context.Context, r *models.UserReport) error
	GetReport(ctx context.Context, id string) (*models.UserReport, error)
	ResolveReport(ctx context.Context, id string, r ReportResolution) (*models.UserReport, error)
	ListReports(ctx context.Context, f ReportFilter) ([]models.UserReport, int64, error)
	CountContentReports(ctx context.Context, contentID, contentType string, since time.Time) (int, error)
	CountUserReports(ctx context.Context, userID string, since time.Time) (int, error)
	ReportCounts(ctx context.Context) (map[string]int64, error)
}

type AppealStore interface {
	CreateAppeal(ctx context.Context, a *models.Appeal) error
}

type NotificationStore interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
}

type RuleStateStore interface {
	LoadRuleStates(ctx context.Context) ([]models.RuleState, error)
	SaveRuleState(ctx context.Context, s *models.RuleState) error
}

// ContentStore reads user activity and applies moderation side effects to
// content and accounts. Mutations return types.ErrNotFound for a missing
// target and are otherwise idempotent.
type ContentStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CountUserContent(ctx context.Context, userID string, ct types.ContentType, since time.Time) (int, error)
	FollowerCount(ctx context.Context, userID string) (int, error)
	EngagementRate(ctx context.Context, userID string) (float64, error)
	ListActiveModerators(ctx context.Context) ([]models.User, error)
	// ContentAuthor returns the id of the user who owns the content.
	ContentAuthor(ctx context.Context, contentID string, ct types.ContentType) (string, error)

	HideContent(ctx context.Context, contentID string, ct types.ContentType) error
	ApproveContent(ctx context.Context, contentID string, ct types.ContentType) error
	RemoveContent(ctx context.Context, contentID string, ct types.ContentType) error
	FlagUser(ctx context.Context, userID string) error
	WarnUser(ctx context.Context, userID string) error
	SuspendUser(ctx context.Context, userID string, until time.Time) error
	BanUser(ctx context.Context, userID string, at time.Time) error
	LiftExpiredSuspensions(ctx context.Context, now time.Time) (int, error)
	LogActivity(ctx context.Context, entry *models.ActivityLog) error
}

// Store is everything the pipeline persists.
type Store interface {
	ResultStore
	QueueStore
	ReportStore
	AppealStore
	NotificationStore
	RuleStateStore
	ContentStore
	Ping(ctx context.Context) error
}
