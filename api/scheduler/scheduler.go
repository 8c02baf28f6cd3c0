package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
)

// staleAnalysisCutoff is how long a record may sit in "analyzing" before the
// sweep completes it with a failure anomaly
const staleAnalysisCutoff = 15 * time.Minute

// Scheduler handles the periodic consistency sweeps over the evidence store
type Scheduler struct {
	cron       *cron.Cron
	EDB        databases.EvidenceDatabase
	CDB        databases.CaseDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	eDB databases.EvidenceDatabase,
	cDB databases.CaseDatabase,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		EDB:        eDB,
		CDB:        cDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Sweep orphaned evidence hourly. These are records whose case was
	// deleted while the record was written concurrently with the cascade.
	_, err := s.cron.AddFunc("0 * * * *", s.sweepOrphanedEvidence)
	if err != nil {
		zap.S().Errorw("failed to register orphan sweep job", "error", err)
	}

	// Complete stale analyses every five minutes so a crashed analysis call
	// never leaves a record stuck in "analyzing"
	_, err = s.cron.AddFunc("*/5 * * * *", s.sweepStaleAnalyses)
	if err != nil {
		zap.S().Errorw("failed to register stale analysis job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("evidence scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("evidence scheduler stopped")
}

// sweepOrphanedEvidence deletes evidence whose case no longer exists
func (s *Scheduler) sweepOrphanedEvidence() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "orphan_sweep_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for orphan sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("orphan sweep already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "orphan_sweep_job", s.instanceID)

	cases, err := s.CDB.Find(ctx, bson.M{})
	if err != nil {
		zap.S().Errorw("failed to list cases for orphan sweep", "error", err)
		return
	}
	liveIDs := make([]string, 0, len(cases))
	for _, c := range cases {
		liveIDs = append(liveIDs, c.ID.Hex())
	}

	deleted, err := s.EDB.DeleteMany(ctx, bson.M{
		"evidence.caseId": bson.M{
			"$exists": true,
			"$ne":     "",
			"$nin":    liveIDs,
		},
	})
	if err != nil {
		zap.S().Errorw("failed to delete orphaned evidence", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("orphan sweep removed evidence",
			"instance", s.instanceID,
			"deleted", deleted,
		)
	}
}

// sweepStaleAnalyses completes records stuck in "analyzing" past the cutoff
func (s *Scheduler) sweepStaleAnalyses() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "stale_analysis_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for stale analysis sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("stale analysis sweep already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "stale_analysis_job", s.instanceID)

	cutoff := primitive.NewDateTimeFromTime(time.Now().Add(-staleAnalysisCutoff))
	stale, err := s.EDB.Find(ctx, bson.M{
		"evidence.status":            models.StatusAnalyzing,
		"evidence.analysisStartedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to find stale analyses", "error", err)
		return
	}

	for _, record := range stale {
		_, err := s.EDB.UpdateAnalysis(ctx, record.ID, models.AnalysisUpdate{
			Verdict:    models.VerdictAuthentic,
			Confidence: 0,
			Anomalies:  []string{"analysis failed: timed out"},
		})
		if err != nil {
			zap.S().Errorw("failed to complete stale analysis",
				"evidenceId", record.ID, "error", err)
		}
	}

	if len(stale) > 0 {
		zap.S().Infow("stale analysis sweep complete",
			"instance", s.instanceID,
			"completed", len(stale),
		)
	}
}
