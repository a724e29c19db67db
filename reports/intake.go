// Package reports accepts community reports, deduplicates them and resolves
// them with optional enforcement actions.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

type intakeStore interface {
	store.ReportStore
	LatestResult(ctx context.Context, contentID, contentType string) (*models.ModerationRecord, error)
	ContentAuthor(ctx context.Context, contentID string, ct types.ContentType) (string, error)
	WarnUser(ctx context.Context, userID string) error
	SuspendUser(ctx context.Context, userID string, until time.Time) error
	BanUser(ctx context.Context, userID string, at time.Time) error
	RemoveContent(ctx context.Context, contentID string, ct types.ContentType) error
	LogActivity(ctx context.Context, entry *models.ActivityLog) error
}

type SubmitRequest struct {
	ReporterID     string            `json:"-"`
	ReportedUserID string            `json:"reportedUserId"`
	ContentID      string            `json:"contentId"`
	ContentType    types.ContentType `json:"contentType"`
	ReportType     types.ReportType  `json:"reportType"`
	Reason         string            `json:"reason"`
	Evidence       []string          `json:"evidence"`
}

type ResolveRequest struct {
	ResolverID string                 `json:"-"`
	Resolution string                 `json:"resolution"`
	Action     types.ResolutionAction `json:"action"`
	Dismiss    bool                   `json:"dismiss"`
}

type Intake struct {
	store      intakeStore
	queue      *queue.Queue
	notify     *notify.Dispatcher
	suspension time.Duration
	log        *zap.Logger
	now        func() time.Time

	// serializes the dedup lookup and insert per reporter and target
	submitLocks keyedMutex
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func New(s intakeStore, q *queue.Queue, d *notify.Dispatcher, suspension time.Duration, log *zap.Logger) *Intake {
	if suspension <= 0 {
		suspension = types.DEFAULT_SUSPENSION
	}
	return &Intake{
		store:      s,
		queue:      q,
		notify:     d,
		suspension: suspension,
		log:        log.Named("reports"),
		now:        time.Now,
	}
}

func (req *SubmitRequest) validate() error {
	req.Reason = strings.TrimSpace(req.Reason)
	switch {
	case req.ReporterID == "":
		return types.Validationf("reporter is required")
	case req.ReportType == "":
		return types.Validationf("reportType is required")
	case !req.ReportType.Valid():
		return types.Validationf("invalid report type %q", req.ReportType)
	case req.Reason == "":
		return types.Validationf("reason is required")
	case req.ReportedUserID == "" && req.ContentID == "":
		return types.Validationf("a report must target a user or content")
	case req.ContentID != "" && !req.ContentType.Valid():
		return types.Validationf("invalid content type %q", req.ContentType)
	case req.ContentID == "" && req.ContentType != "":
		return types.Validationf("contentType given without contentId")
	}
	return nil
}

func (req SubmitRequest) key() store.ReportKey {
	return store.ReportKey{
		ReporterID:     req.ReporterID,
		ReportType:     req.ReportType,
		ReportedUserID: req.ReportedUserID,
		ContentID:      req.ContentID,
		ContentType:    string(req.ContentType),
	}
}

func lockKey(k store.ReportKey) string {
	return strings.Join([]string{k.ReporterID, string(k.ReportType), k.ReportedUserID, k.ContentType, k.ContentID}, "\x00")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Submit records a report. An open report from the same reporter with the
// same type and target in the last 24 hours is returned instead of creating a
// duplicate.
func (in *Intake) Submit(ctx context.Context, req SubmitRequest) (*models.UserReport, bool, error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}

	key := req.key()
	unlock := in.submitLocks.Lock(lockKey(key))
	now := in.now()
	existing, err := in.store.FindOpenReport(ctx, key, now.Add(-types.REPORT_DEDUP_WINDOW))
	if err != nil {
		unlock()
		return nil, false, fmt.Errorf("checking duplicate reports: %w", err)
	}
	if existing != nil {
		unlock()
		return existing, false, nil
	}

	status := types.ReportStatusPending
	if req.ReportType.AutoEscalates() {
		status = types.ReportStatusInvestigating
	}
	report := &models.UserReport{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
		ReporterID:     req.ReporterID,
		ReportedUserID: optional(req.ReportedUserID),
		ContentID:      optional(req.ContentID),
		ContentType:    optional(string(req.ContentType)),
		ReportType:     string(req.ReportType),
		Reason:         req.Reason,
		Evidence:       pq.StringArray(req.Evidence),
		Priority:       string(types.ReportPriority(req.ReportType)),
		Status:         string(status),
	}
	err = in.store.CreateReport(ctx, report)
	unlock()
	if err != nil {
		return nil, false, fmt.Errorf("creating report: %w", err)
	}

	reportsSubmitted.WithLabelValues(report.ReportType).Inc()
	in.log.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("report_type", report.ReportType),
		zap.String("priority", report.Priority),
		zap.String("status", report.Status))

	in.enqueue(ctx, req, report)
	return report, true, nil
}

// enqueue puts the reported target in front of a moderator. Failures are
// logged; the report itself is already recorded.
func (in *Intake) enqueue(ctx context.Context, req SubmitRequest, report *models.UserReport) {
	if in.queue == nil {
		return
	}
	contentID, ct := req.ContentID, req.ContentType
	if contentID == "" {
		contentID, ct = req.ReportedUserID, types.ContentTypeProfile
	}
	_, _, err := in.queue.Enqueue(ctx, queue.EnqueueRequest{
		ContentID:   contentID,
		ContentType: ct,
		UserID:      in.targetUser(ctx, report),
		Priority:    types.Priority(report.Priority),
		Severity:    severityForPriority(types.Priority(report.Priority)),
		Flags:       []string{"reported_" + report.ReportType},
		Reasons:     []string{"Community report: " + report.Reason},
	})
	if err != nil {
		in.log.Warn("queueing reported content", zap.String("report_id", report.ID), zap.Error(err))
	}
}

func severityForPriority(p types.Priority) types.Severity {
	switch p {
	case types.PriorityUrgent:
		return types.SeverityHigh
	case types.PriorityHigh, types.PriorityMedium:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func (in *Intake) Get(ctx context.Context, id string) (*models.UserReport, error) {
	return in.store.GetReport(ctx, id)
}

func (in *Intake) List(ctx context.Context, f store.ReportFilter) ([]models.UserReport, int64, error) {
	if f.ReportType != "" && !f.ReportType.Valid() {
		return nil, 0, types.Validationf("invalid report type %q", f.ReportType)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, 0, types.Validationf("invalid priority %q", f.Priority)
	}
	return in.store.ListReports(ctx, f)
}

// Resolve closes an open report and then applies the chosen action. Only the
// caller that closes the report runs the action. A missing action target or a
// failing action is logged and does not undo the resolution.
func (in *Intake) Resolve(ctx context.Context, id string, req ResolveRequest) (*models.UserReport, error) {
	if req.ResolverID == "" {
		return nil, types.Validationf("resolver is required")
	}
	if !req.Action.Valid() {
		return nil, types.Validationf("invalid action %q", req.Action)
	}
	if req.Dismiss && req.Action != types.ResolutionNone {
		return nil, types.Validationf("a dismissed report cannot carry an action")
	}

	report, err := in.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !types.ReportStatus(report.Status).Open() {
		return nil, fmt.Errorf("report %s is already %s: %w", id, report.Status, types.ErrConflict)
	}

	now := in.now()
	status := types.ReportStatusResolved
	if req.Dismiss {
		status = types.ReportStatusDismissed
	}
	// The guarded transition decides which of several concurrent resolutions
	// applies its action.
	resolved, err := in.store.ResolveReport(ctx, id, store.ReportResolution{
		Status:      status,
		ResolverID:  req.ResolverID,
		Resolution:  req.Resolution,
		ActionTaken: req.Action,
		At:          now,
	})
	if errors.Is(err, types.ErrConflict) {
		return nil, fmt.Errorf("report %s was resolved by someone else: %w", id, err)
	}
	if err != nil {
		return nil, err
	}

	if err := in.applyAction(ctx, report, req, now); err != nil {
		in.log.Error("report resolved but its action failed",
			zap.String("report_id", id),
			zap.String("action", string(req.Action)),
			zap.Error(err))
	}

	reportsResolved.WithLabelValues(string(status), string(req.Action)).Inc()
	in.notify.Send(notify.Notification{
		UserID:   report.ReporterID,
		Type:     notify.TypeReportResolution,
		Title:    "Your report has been reviewed",
		Message:  "Thank you for helping keep the community safe.",
		Priority: types.PriorityLow,
		Data:     map[string]any{"reportId": report.ID, "status": string(status)},
	})
	return resolved, nil
}

// targetUser is the account a report is about: the reported user, or else the
// author of the reported content as stored, or as last moderated.
func (in *Intake) targetUser(ctx context.Context, r *models.UserReport) string {
	if r.ReportedUserID != nil {
		return *r.ReportedUserID
	}
	if r.ContentID == nil || r.ContentType == nil {
		return ""
	}
	if author, err := in.store.ContentAuthor(ctx, *r.ContentID, types.ContentType(*r.ContentType)); err == nil {
		return author
	}
	rec, err := in.store.LatestResult(ctx, *r.ContentID, *r.ContentType)
	if err != nil {
		return ""
	}
	return rec.UserID
}

func (in *Intake) applyAction(ctx context.Context, r *models.UserReport, req ResolveRequest, now time.Time) error {
	if req.Action == types.ResolutionNone {
		return nil
	}

	var (
		err      error
		activity string
		userID   = in.targetUser(ctx, r)
		entry    = &models.ActivityLog{ActorID: req.ResolverID, Details: "report " + r.ID}
	)
	switch req.Action {
	case types.ResolutionRemoveContent:
		if r.ContentID == nil || r.ContentType == nil {
			in.log.Warn("remove_content on a report without content", zap.String("report_id", r.ID))
			return nil
		}
		activity = "content_removed"
		entry.ContentID, entry.ContentType = *r.ContentID, *r.ContentType
		err = in.store.RemoveContent(ctx, *r.ContentID, types.ContentType(*r.ContentType))
	default:
		if userID == "" {
			in.log.Warn("no user to act on", zap.String("report_id", r.ID), zap.String("action", string(req.Action)))
			return nil
		}
		switch req.Action {
		case types.ResolutionWarnUser:
			activity = "user_warned"
			err = in.store.WarnUser(ctx, userID)
		case types.ResolutionSuspendUser:
			activity = "user_suspended"
			err = in.store.SuspendUser(ctx, userID, now.Add(in.suspension))
		case types.ResolutionBanUser:
			activity = "user_banned"
			err = in.store.BanUser(ctx, userID, now)
		}
	}
	if errors.Is(err, types.ErrNotFound) {
		in.log.Warn("report action target missing",
			zap.String("report_id", r.ID),
			zap.String("action", string(req.Action)),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying %s: %w", req.Action, err)
	}

	entry.UserID = userID
	entry.Activity = activity
	if err := in.store.LogActivity(ctx, entry); err != nil {
		in.log.Warn("recording report action", zap.Error(err))
	}
	if userID != "" && req.Action != types.ResolutionRemoveContent {
		in.notify.Send(notify.Notification{
			UserID:   userID,
			Type:     notify.TypeAccountAction,
			Title:    "Action taken on your account",
			Message:  fmt.Sprintf("A moderator applied %s after reviewing a report.", strings.ReplaceAll(string(req.Action), "_", " ")),
			Priority: types.PriorityHigh,
		})
	}
	return nil
}
