package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"loomworks/trawl/pkg/config"
	"loomworks/trawl/pkg/schedule"
)

func newTestReloader(t *testing.T, ctx context.Context, initial *config.Config, load func() (*config.Config, error), apply func(*config.Config)) *configReloader {
	t.Helper()

	start := func(spec string) (*schedule.Scheduler, error) {
		s := schedule.NewScheduler(spec, func(ctx context.Context) error { return nil })
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	scheduler, err := start(initial.Schedule.Cron)
	if err != nil {
		t.Fatalf("failed to start initial scheduler: %v", err)
	}

	return &configReloader{
		load:       load,
		apply:      apply,
		start:      start,
		prev:       initial,
		scheduler:  scheduler,
		activeCron: initial.Schedule.Cron,
	}
}

func TestConfigReloaderAppliesNewConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := &config.Config{}
	initial.Schedule.Cron = "0 0 1 1 *"
	initial.Export.OutputRoot = "exports"

	updated := &config.Config{}
	updated.Schedule.Cron = "*/5 * * * *"
	updated.Export.OutputRoot = "elsewhere"

	var applied *config.Config
	r := newTestReloader(t, ctx, initial,
		func() (*config.Config, error) { return updated, nil },
		func(c *config.Config) { applied = c },
	)
	defer r.stop()

	first := r.scheduler
	if err := r.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if applied == nil || applied.Export.OutputRoot != "elsewhere" {
		t.Errorf("reload did not hand the new config to apply: %+v", applied)
	}
	if r.activeCron != "*/5 * * * *" {
		t.Errorf("activeCron = %q, want */5 * * * *", r.activeCron)
	}
	if r.scheduler == first {
		t.Error("scheduler was not replaced for the new cron spec")
	}
	if !r.scheduler.IsRunning() {
		t.Error("replacement scheduler is not running")
	}
	if next := r.scheduler.NextRun(); next == nil || time.Until(*next) > 5*time.Minute {
		t.Errorf("next run %v does not follow the new schedule", next)
	}
}

func TestConfigReloaderKeepsStateOnLoadFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := &config.Config{}
	initial.Schedule.Cron = "0 0 1 1 *"

	applyCalls := 0
	r := newTestReloader(t, ctx, initial,
		func() (*config.Config, error) { return nil, errors.New("bad yaml") },
		func(*config.Config) { applyCalls++ },
	)
	defer r.stop()

	first := r.scheduler
	if err := r.reload(); err == nil {
		t.Fatal("expected reload to surface the load error")
	}

	if applyCalls != 0 {
		t.Errorf("apply called %d times on a failed load", applyCalls)
	}
	if r.scheduler != first || r.activeCron != initial.Schedule.Cron {
		t.Error("failed load must leave the running scheduler untouched")
	}
	if !r.scheduler.IsRunning() {
		t.Error("scheduler stopped after a failed load")
	}
}

func TestConfigReloaderKeepsScheduleWhenCronRemoved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := &config.Config{}
	initial.Schedule.Cron = "0 0 1 1 *"

	updated := &config.Config{}
	updated.Export.OutputRoot = "elsewhere"

	var applied *config.Config
	r := newTestReloader(t, ctx, initial,
		func() (*config.Config, error) { return updated, nil },
		func(c *config.Config) { applied = c },
	)
	defer r.stop()

	first := r.scheduler
	if err := r.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if applied == nil || applied.Export.OutputRoot != "elsewhere" {
		t.Error("export tuning must still apply when cron is removed")
	}
	if r.scheduler != first || r.activeCron != "0 0 1 1 *" {
		t.Error("removing schedule.cron must keep the current schedule")
	}
}
