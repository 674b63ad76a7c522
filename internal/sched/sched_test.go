package sched

import (
	"context"
	"testing"
	"time"

	"github.com/mwillard/beacon/internal/config"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNextCronDuration_ValidExpression(t *testing.T) {
	// "0 9 * * *" = daily at 09:00. Duration should be positive and < 24h.
	d := nextCronDuration("0 9 * * *")
	if d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	if d > 24*time.Hour {
		t.Fatalf("expected duration < 24h, got %v", d)
	}
}

func TestNextCronDuration_InvalidExpression(t *testing.T) {
	d := nextCronDuration("not a cron expr")
	if d != 0 {
		t.Fatalf("expected 0 for invalid expression, got %v", d)
	}
}

func TestNextCronDuration_EveryMinute(t *testing.T) {
	// "* * * * *" = every minute. Duration should be < 61s.
	d := nextCronDuration("* * * * *")
	if d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	if d > 61*time.Second {
		t.Fatalf("expected duration < 61s, got %v", d)
	}
}

func TestRun_NoJobsReturns(t *testing.T) {
	s := New(config.SchedulerConfig{}, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return with no jobs enabled")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	audit, _ := openTestAudit(t)
	s := New(config.SchedulerConfig{RetentionSweep: "0 3 * * *", RetentionDays: 30}, nil, audit)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestFireSweep(t *testing.T) {
	audit, db := openTestAudit(t)
	s := New(config.SchedulerConfig{RetentionDays: 30}, nil, audit)

	old := models.Event{Kind: models.EventSystem, Detail: "stale", CreatedAt: time.Now().AddDate(0, 0, -60)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed old event: %v", err)
	}
	audit.Log(models.EventSystem, "", "fresh")

	s.fireSweep()

	left, err := audit.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(left) != 1 || left[0].Detail != "fresh" {
		t.Errorf("remaining = %+v, want only the fresh event", left)
	}
}

func openTestAudit(t *testing.T) (*events.Logger, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Event{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	l, err := events.New(db)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return l, db
}
