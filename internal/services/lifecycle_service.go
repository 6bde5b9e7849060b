package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/meetsweeper/internal/models"
)

// ErrSweepInProgress is returned when this process is already running a sweep.
var ErrSweepInProgress = errors.New("meeting lifecycle sweep already in progress")

const defaultBatchLimit = 500

type LifecycleConfig struct {
	PlatformFeePercent int
	BatchLimit         int
}

// LifecycleService runs the meeting lifecycle sweep: creator no-shows are cancelled and
// refunded, finished live meets are completed and the creator is paid.
type LifecycleService struct {
	store      models.Store
	ledger     *LedgerService
	feePercent int
	batchLimit int
	logger     *slog.Logger
	clock      func() time.Time
	running    sync.Mutex
}

func NewLifecycleService(store models.Store, ledger *LedgerService, cfg LifecycleConfig, logger *slog.Logger) *LifecycleService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	return &LifecycleService{
		store:      store,
		ledger:     ledger,
		feePercent: cfg.PlatformFeePercent,
		batchLimit: cfg.BatchLimit,
		logger:     logger,
		clock:      time.Now,
	}
}

// SetClock replaces the time source used by RunNow and RunEvery.
func (ls *LifecycleService) SetClock(clock func() time.Time) {
	ls.clock = clock
}

// sessionResult carries one meet's outcome plus whether its status was flipped,
// which is what the phase counters count.
type sessionResult struct {
	outcome      SessionOutcome
	transitioned bool
}

func (r *sessionResult) succeed(reason string) {
	r.outcome.Status = OutcomeSucceeded
	r.outcome.Reason = reason
}

func (r *sessionResult) skip(reason string) {
	r.outcome.Status = OutcomeSkipped
	r.outcome.Reason = reason
}

func (r *sessionResult) fail(reason string) {
	r.outcome.Status = OutcomeFailed
	r.outcome.Reason = reason
}

// isolate runs fn for one meet and turns a panic into a failed outcome so the rest of
// the batch still runs.
func (ls *LifecycleService) isolate(meet *models.Meet, fn func(*models.Meet, *sessionResult)) (res sessionResult) {
	if meet != nil {
		res.outcome.MeetID = meet.ID
	}
	defer func() {
		if r := recover(); r != nil {
			ls.logger.Error("Panic while processing meet", "meet_id", res.outcome.MeetID, "panic", r)
			res.fail(fmt.Sprintf("panic: %v", r))
		}
	}()
	fn(meet, &res)
	return res
}

// interrupted logs a phase stopped by caller cancellation. Meets not reached keep their
// status and are picked up by the next sweep.
func (ls *LifecycleService) interrupted(phase string, processed, total int, err error) string {
	ls.logger.Warn(phase+" interrupted", "processed", processed, "remaining", total-processed, "error", err)
	return fmt.Sprintf("interrupted after %d of %d meets: %v", processed, total, err)
}

// SweepNoShows cancels scheduled meets whose creator did not start before the scheduled
// time and refunds the fan in full.
//
// ctx bounds the candidate read and is checked between meets. A meet whose status has
// been flipped is always settled on a context detached from ctx, so cancelling the caller
// cannot leave a cancelled meet without its refund or audit trail.
func (ls *LifecycleService) SweepNoShows(ctx context.Context, now time.Time) NoShowReport {
	cutoff := now
	candidates, err := ls.store.ListMeetsByStatus(ctx, models.MeetStatusScheduled, &cutoff, ls.batchLimit)
	if err != nil {
		ls.logger.Error("No-show check aborted: failed to list scheduled meets", "error", err)
		return NoShowReport{Error: err.Error()}
	}

	report := NoShowReport{Checked: len(candidates)}
	work := context.WithoutCancel(ctx)
	for _, meet := range candidates {
		if err := ctx.Err(); err != nil {
			report.Error = ls.interrupted("No-show check", len(report.Results), len(candidates), err)
			break
		}
		res := ls.isolate(meet, func(m *models.Meet, r *sessionResult) {
			ls.processNoShow(work, m, now, r)
		})
		if res.transitioned {
			report.Cancelled++
		}
		report.Results = append(report.Results, res.outcome)
	}

	ls.logger.Info("No-show check finished",
		"checked", report.Checked,
		"cancelled", report.Cancelled,
		"failed", report.Failed(),
	)
	return report
}

func (ls *LifecycleService) processNoShow(ctx context.Context, meet *models.Meet, now time.Time, res *sessionResult) {
	if err := models.Validate.Struct(meet); err != nil {
		ls.logger.Error("Skipping invalid meet record", "meet_id", meet.ID, "error", err)
		res.fail(fmt.Sprintf("invalid meet record: %v", err))
		return
	}
	if meet.Status != models.MeetStatusScheduled {
		res.skip(fmt.Sprintf("status is %s", meet.Status))
		return
	}
	if meet.ScheduledAt.After(now) {
		res.skip("scheduled start not reached")
		return
	}
	// Starting exactly at the scheduled time is still a no-show.
	if meet.CreatorStartedBefore(meet.ScheduledAt) {
		res.skip("creator started before the scheduled time")
		return
	}

	reason := models.CancellationReasonCreatorNoShow
	applied, err := ls.store.TransitionMeet(ctx, meet.ID, models.MeetStatusScheduled, models.MeetStatusCancelledNoShowCreator, models.MeetUpdate{
		CancelledAt:        &now,
		CancellationReason: &reason,
		UpdatedAt:          now,
	})
	if err != nil {
		ls.logger.Error("Failed to cancel no-show meet", "meet_id", meet.ID, "error", err)
		res.fail(fmt.Sprintf("cancel: %v", err))
		return
	}
	if !applied {
		ls.logger.Info("Meet left scheduled state before cancellation", "meet_id", meet.ID)
		res.skip("status changed by another run")
		return
	}
	res.transitioned = true
	ls.logger.Info("Meet cancelled: creator no-show",
		"meet_id", meet.ID,
		"creator_id", meet.CreatorID,
		"scheduled_at", meet.ScheduledAt,
	)

	ls.audit(ctx, meet.ID, models.MeetingEventCancelledNoShowCreator, now, map[string]interface{}{
		"reason":             reason,
		"scheduled_at":       meet.ScheduledAt.UTC(),
		"creator_started_at": meet.CreatorStartedAt,
		"creator_id":         meet.CreatorID.String(),
		"fan_id":             meet.FanID.String(),
	})
	ls.audit(ctx, meet.ID, models.MeetingEventFanJoinStatusAtCancel, now, map[string]interface{}{
		"fan_joined":    meet.FanJoinedAt != nil,
		"fan_joined_at": meet.FanJoinedAt,
	})
	ls.ledger.notify(ctx, &models.Notification{
		UserID:  meet.CreatorID,
		Type:    models.NotificationMeetCancelledNoShow,
		Title:   "Meet cancelled",
		Message: "Your meet was cancelled because it was not started before the scheduled time. The fan has been refunded.",
		Metadata: map[string]interface{}{
			"meet_id": meet.ID.String(),
		},
		CreatedAt: now,
	})

	refundMeta := map[string]interface{}{"success": false}
	_, bid, err := ls.resolveWinningBid(ctx, meet.EventID)
	switch {
	case err != nil:
		refundMeta["error"] = err.Error()
		ls.audit(ctx, meet.ID, models.MeetingEventRefundIssued, now, refundMeta)
		res.fail(fmt.Sprintf("refund: %v", err))
		return
	case bid == nil:
		refundMeta["reason"] = "no winning bid"
		ls.audit(ctx, meet.ID, models.MeetingEventRefundIssued, now, refundMeta)
		res.succeed("cancelled without refund: no winning bid")
		return
	}

	refundMeta["amount"] = bid.Amount.String()
	refundMeta["bid_id"] = bid.ID.String()
	refundMeta["fan_id"] = meet.FanID.String()
	if bid.UserID != uuid.Nil && bid.UserID != meet.FanID {
		ls.logger.Warn("Winning bid belongs to a different user than the meet's fan",
			"meet_id", meet.ID, "bid_user_id", bid.UserID, "fan_id", meet.FanID)
	}

	refundID, err := ls.ledger.RefundFull(ctx, meet.ID, meet.FanID, bid.ID, bid.Amount, now)
	if err != nil {
		ls.logger.Error("Refund failed for no-show meet", "meet_id", meet.ID, "amount", bid.Amount.String(), "error", err)
		refundMeta["error"] = err.Error()
		ls.audit(ctx, meet.ID, models.MeetingEventRefundIssued, now, refundMeta)
		res.fail(fmt.Sprintf("refund: %v", err))
		return
	}
	refundMeta["success"] = true
	refundMeta["refund_id"] = refundID

	if err := ls.store.UpdateMeet(ctx, meet.ID, models.MeetUpdate{RefundID: &refundID, UpdatedAt: now}); err != nil {
		ls.logger.Error("Failed to record refund reference on meet", "meet_id", meet.ID, "refund_id", refundID, "error", err)
		refundMeta["meet_update_error"] = err.Error()
	}
	ls.audit(ctx, meet.ID, models.MeetingEventRefundIssued, now, refundMeta)
	res.succeed("")
}

// SweepCompletions completes live meets whose scheduled end has passed and credits the
// creator's share of the winning bid.
func (ls *LifecycleService) SweepCompletions(ctx context.Context, now time.Time) CompletionReport {
	candidates, err := ls.store.ListMeetsByStatus(ctx, models.MeetStatusLive, nil, ls.batchLimit)
	if err != nil {
		ls.logger.Error("Completion check aborted: failed to list live meets", "error", err)
		return CompletionReport{Error: err.Error()}
	}

	report := CompletionReport{Checked: len(candidates)}
	work := context.WithoutCancel(ctx)
	for _, meet := range candidates {
		if err := ctx.Err(); err != nil {
			report.Error = ls.interrupted("Completion check", len(report.Results), len(candidates), err)
			break
		}
		res := ls.isolate(meet, func(m *models.Meet, r *sessionResult) {
			ls.processCompletion(work, m, now, r)
		})
		if res.transitioned {
			report.Completed++
		}
		report.Results = append(report.Results, res.outcome)
	}

	ls.logger.Info("Completion check finished",
		"checked", report.Checked,
		"completed", report.Completed,
		"failed", report.Failed(),
	)
	return report
}

func (ls *LifecycleService) processCompletion(ctx context.Context, meet *models.Meet, now time.Time, res *sessionResult) {
	if err := models.Validate.Struct(meet); err != nil {
		ls.logger.Error("Skipping invalid meet record", "meet_id", meet.ID, "error", err)
		res.fail(fmt.Sprintf("invalid meet record: %v", err))
		return
	}
	if meet.Status != models.MeetStatusLive {
		res.skip(fmt.Sprintf("status is %s", meet.Status))
		return
	}
	scheduledEnd := meet.ScheduledEnd()
	if now.Before(scheduledEnd) {
		res.skip("scheduled end not reached")
		return
	}

	update := models.MeetUpdate{CompletedAt: &now, UpdatedAt: now}
	stopRecording := meet.RecordingOpen()
	if stopRecording {
		update.RecordingStoppedAt = &now
	}

	applied, err := ls.store.TransitionMeet(ctx, meet.ID, models.MeetStatusLive, models.MeetStatusCompleted, update)
	if err != nil {
		ls.logger.Error("Failed to complete meet", "meet_id", meet.ID, "error", err)
		res.fail(fmt.Sprintf("complete: %v", err))
		return
	}
	if !applied {
		ls.logger.Info("Meet left live state before completion", "meet_id", meet.ID)
		res.skip("status changed by another run")
		return
	}
	res.transitioned = true
	ls.logger.Info("Meet completed", "meet_id", meet.ID, "scheduled_end", scheduledEnd)

	recordingStoppedAt := meet.RecordingStoppedAt
	if stopRecording {
		recordingStoppedAt = &now
		ls.audit(ctx, meet.ID, models.MeetingEventRecordingStopped, now, map[string]interface{}{
			"recording_started_at": meet.RecordingStartedAt,
			"recording_stopped_at": now.UTC(),
			"stopped_by":           "lifecycle_sweep",
		})
	}

	completedMeta := map[string]interface{}{
		"scheduled_at":         meet.ScheduledAt.UTC(),
		"scheduled_end":        scheduledEnd.UTC(),
		"creator_started_at":   meet.CreatorStartedAt,
		"fan_joined_at":        meet.FanJoinedAt,
		"recording_started_at": meet.RecordingStartedAt,
		"recording_stopped_at": recordingStoppedAt,
		"creator_credited":     false,
		"fee_percent":          ls.feePercent,
	}

	event, bid, err := ls.resolveWinningBid(ctx, meet.EventID)
	switch {
	case err != nil:
		completedMeta["error"] = err.Error()
		ls.audit(ctx, meet.ID, models.MeetingEventCompleted, now, completedMeta)
		res.fail(fmt.Sprintf("credit: %v", err))
		return
	case bid == nil:
		completedMeta["reason"] = "no winning bid on event"
		ls.audit(ctx, meet.ID, models.MeetingEventCompleted, now, completedMeta)
		res.succeed("completed without credit: no winning bid")
		return
	}
	if event != nil {
		completedMeta["event_title"] = event.Title
	}
	completedMeta["bid_id"] = bid.ID.String()
	completedMeta["bid_amount"] = bid.Amount.String()

	share, err := ls.ledger.CreditHostShare(ctx, meet.ID, meet.CreatorID, bid.Amount, ls.feePercent, now)
	completedMeta["credited_amount"] = share.Net.String()
	completedMeta["commission_amount"] = share.Commission.String()
	if err != nil {
		ls.logger.Error("Failed to credit creator for completed meet", "meet_id", meet.ID, "error", err)
		completedMeta["error"] = err.Error()
		ls.audit(ctx, meet.ID, models.MeetingEventCompleted, now, completedMeta)
		if errors.Is(err, ErrNothingToCredit) {
			res.succeed("completed without credit: net share is zero")
			return
		}
		res.fail(fmt.Sprintf("credit: %v", err))
		return
	}
	completedMeta["creator_credited"] = true
	ls.audit(ctx, meet.ID, models.MeetingEventCompleted, now, completedMeta)
	res.succeed("")
}

// resolveWinningBid follows the event's winning bid reference and falls back to the
// highest won bid. A nil bid with a nil error means the event has no winner.
func (ls *LifecycleService) resolveWinningBid(ctx context.Context, eventID uuid.UUID) (*models.Event, *models.Bid, error) {
	event, err := ls.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}

	if event.WinningBidID != nil {
		bid, err := ls.store.GetBid(ctx, *event.WinningBidID)
		if err == nil {
			return event, bid, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return event, nil, fmt.Errorf("failed to get winning bid %s: %w", *event.WinningBidID, err)
		}
		ls.logger.Warn("Event references a missing winning bid, falling back to bid query",
			"event_id", eventID, "bid_id", *event.WinningBidID)
	}

	bid, err := ls.store.GetWinningBid(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return event, nil, nil
	}
	if err != nil {
		return event, nil, fmt.Errorf("failed to query winning bid for event %s: %w", eventID, err)
	}
	return event, bid, nil
}

// audit appends a meeting event. A failed append is logged and does not stop the sweep.
func (ls *LifecycleService) audit(ctx context.Context, meetID uuid.UUID, eventType string, now time.Time, metadata map[string]interface{}) {
	err := ls.store.AppendMeetingEvent(ctx, &models.MeetingEvent{
		MeetID:    meetID,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: now,
	})
	if err != nil {
		ls.logger.Error("Failed to append meeting event", "meet_id", meetID, "event_type", eventType, "error", err)
	}
}

// Run performs one sweep: the no-show check, then the completion check.
func (ls *LifecycleService) Run(ctx context.Context, now time.Time) (SweepSummary, error) {
	if err := ctx.Err(); err != nil {
		return SweepSummary{}, err
	}
	if !ls.running.TryLock() {
		return SweepSummary{}, ErrSweepInProgress
	}
	defer ls.running.Unlock()

	ls.logger.Info("Meeting lifecycle sweep started", "now", now)
	summary := SweepSummary{
		Success:         true,
		Timestamp:       now.UTC(),
		NoShowCheck:     ls.SweepNoShows(ctx, now),
		CompletionCheck: ls.SweepCompletions(ctx, now),
	}
	ls.logger.Info("Meeting lifecycle sweep finished",
		"no_show_checked", summary.NoShowCheck.Checked,
		"no_show_cancelled", summary.NoShowCheck.Cancelled,
		"completion_checked", summary.CompletionCheck.Checked,
		"completion_completed", summary.CompletionCheck.Completed,
	)
	return summary, nil
}

// RunNow runs a sweep at the service clock's current time.
func (ls *LifecycleService) RunNow(ctx context.Context) (SweepSummary, error) {
	return ls.Run(ctx, ls.clock())
}

// RunEvery sweeps once immediately and then on every tick until ctx is cancelled.
func (ls *LifecycleService) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ls.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ls.tick(ctx)
		}
	}
}

func (ls *LifecycleService) tick(ctx context.Context) {
	if _, err := ls.RunNow(ctx); err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			ls.logger.Warn("Skipping scheduled sweep: previous run still in progress")
			return
		}
		if ctx.Err() == nil {
			ls.logger.Error("Scheduled sweep failed", "error", err)
		}
	}
}
