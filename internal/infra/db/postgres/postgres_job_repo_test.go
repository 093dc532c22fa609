//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
)

func newTestJob(name string) *model.Job {
	return &model.Job{
		Name:       name,
		Data:       json.RawMessage(`{"profileId":"p1"}`),
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
		ExpireIn:   15 * time.Minute,
		KeepUntil:  time.Now().Add(14 * 24 * time.Hour),
	}
}

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	tm := NewTxManager(testPool)
	repo := NewJobRepo(testPool, tm)

	t.Run("should insert, find and settle a job", func(t *testing.T) {
		cleanup(t)

		job := newTestJob("buildProfile")
		inserted, err := repo.Insert(ctx, nil, job)
		if err != nil || !inserted {
			t.Fatalf("insert: inserted=%v err=%v", inserted, err)
		}

		found, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.State != model.JobStateCreated || found.Name != "buildProfile" {
			t.Fatalf("found = %+v", found)
		}
		if found.RetryDelay != 30*time.Second || found.ExpireIn != 15*time.Minute {
			t.Fatalf("duration columns round-tripped wrong: %+v", found)
		}

		claimed, err := repo.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if claimed.ID != job.ID || claimed.State != model.JobStateActive || claimed.StartedAt == nil {
			t.Fatalf("claimed = %+v", claimed)
		}

		if err := repo.MarkCompleted(ctx, job.ID, time.Now()); err != nil {
			t.Fatalf("complete: %v", err)
		}
		var state string
		if err := testPool.QueryRow(ctx, `SELECT state FROM jobs WHERE id = $1`, job.ID).Scan(&state); err != nil {
			t.Fatalf("query state: %v", err)
		}
		if state != "completed" {
			t.Errorf("expected state 'completed', got %q", state)
		}
	})

	t.Run("exactly one of N concurrent claims wins", func(t *testing.T) {
		cleanup(t)

		job := newTestJob("matchBots")
		if _, err := repo.Insert(ctx, nil, job); err != nil {
			t.Fatalf("insert: %v", err)
		}

		const workers = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			wins     int
			misses   int
			lastErrs []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := repo.ClaimNext(ctx)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil && claimed.ID == job.ID:
					wins++
				case errors.Is(err, domain.ErrNotFound):
					misses++
				default:
					lastErrs = append(lastErrs, err)
				}
			}()
		}
		wg.Wait()

		if len(lastErrs) != 0 {
			t.Fatalf("unexpected claim errors: %v", lastErrs)
		}
		if wins != 1 || misses != workers-1 {
			t.Fatalf("wins=%d misses=%d, exactly one worker must claim the job", wins, misses)
		}
	})

	t.Run("claim order is priority then id", func(t *testing.T) {
		cleanup(t)

		low := newTestJob("low")
		high := newTestJob("high")
		high.Priority = 10
		if _, err := repo.Insert(ctx, nil, low); err != nil {
			t.Fatalf("insert low: %v", err)
		}
		if _, err := repo.Insert(ctx, nil, high); err != nil {
			t.Fatalf("insert high: %v", err)
		}

		first, err := repo.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if first.ID != high.ID {
			t.Errorf("expected the high-priority job first, got %q", first.Name)
		}
		second, err := repo.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if second.ID != low.ID {
			t.Errorf("expected the low-priority job second, got %q", second.Name)
		}
	})

	t.Run("concurrent singleton inserts dedup to one live job", func(t *testing.T) {
		cleanup(t)

		const attempts = 6
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			inserts   int
			returned  []string
			insertErr error
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job := newTestJob("buildProfile")
				job.SingletonKey = "buildProfile:p1"
				inserted, err := repo.Insert(ctx, nil, job)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					insertErr = err
					return
				}
				if inserted {
					inserts++
				}
				returned = append(returned, job.ID)
			}()
		}
		wg.Wait()

		if insertErr != nil {
			t.Fatalf("insert: %v", insertErr)
		}
		if inserts != 1 {
			t.Fatalf("inserted %d jobs for one singleton key", inserts)
		}
		var count int
		if err := testPool.QueryRow(ctx, `SELECT count(*) FROM jobs`).Scan(&count); err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("jobs table holds %d rows", count)
		}
		// Every caller, winner or loser, must come away with the live
		// holder's id.
		var holderID string
		if err := testPool.QueryRow(ctx, `SELECT id FROM jobs`).Scan(&holderID); err != nil {
			t.Fatalf("holder id: %v", err)
		}
		for _, id := range returned {
			if id != holderID {
				t.Fatalf("returned id %q differs from live holder %q", id, holderID)
			}
		}
	})

	t.Run("singleton key frees up once the holder settles", func(t *testing.T) {
		cleanup(t)

		first := newTestJob("buildProfile")
		first.SingletonKey = "buildProfile:p1"
		if _, err := repo.Insert(ctx, nil, first); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := repo.ClaimNext(ctx); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := repo.MarkCompleted(ctx, first.ID, time.Now()); err != nil {
			t.Fatalf("complete: %v", err)
		}

		second := newTestJob("buildProfile")
		second.SingletonKey = "buildProfile:p1"
		inserted, err := repo.Insert(ctx, nil, second)
		if err != nil || !inserted {
			t.Fatalf("insert after settle: inserted=%v err=%v", inserted, err)
		}
		if second.ID == first.ID {
			t.Fatal("second enqueue reused the settled job's id")
		}
	})

	t.Run("expire overdue forces only overrunning active jobs", func(t *testing.T) {
		cleanup(t)

		overdue := newTestJob("sendBotMessage")
		overdue.ExpireIn = 50 * time.Millisecond
		if _, err := repo.Insert(ctx, nil, overdue); err != nil {
			t.Fatalf("insert: %v", err)
		}
		waiting := newTestJob("processPhotos")
		if _, err := repo.Insert(ctx, nil, waiting); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := repo.ClaimNext(ctx); err != nil { // claims overdue (equal priority, older id)
			t.Fatalf("claim: %v", err)
		}

		n, err := repo.ExpireOverdue(ctx, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatalf("expire: %v", err)
		}
		if n != 1 {
			t.Fatalf("expired %d jobs", n)
		}
		found, err := repo.FindByID(ctx, nil, overdue.ID)
		if err != nil || found.State != model.JobStateExpired {
			t.Fatalf("overdue job = %+v err=%v", found, err)
		}
		untouched, err := repo.FindByID(ctx, nil, waiting.ID)
		if err != nil || untouched.State != model.JobStateCreated {
			t.Fatalf("waiting job = %+v err=%v", untouched, err)
		}
	})

	t.Run("archive moves settled rows and keeps them inspectable", func(t *testing.T) {
		cleanup(t)

		job := newTestJob("changeProfile")
		job.SingletonKey = "changeProfile:p1"
		job.KeepUntil = time.Now().Add(-time.Hour)
		if _, err := repo.Insert(ctx, nil, job); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := repo.ClaimNext(ctx); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := repo.MarkFailed(ctx, job.ID, "provider down"); err != nil {
			t.Fatalf("fail: %v", err)
		}

		n, err := repo.ArchiveSettled(ctx, time.Now())
		if err != nil {
			t.Fatalf("archive: %v", err)
		}
		if n != 1 {
			t.Fatalf("archived %d jobs", n)
		}

		var liveCount int
		if err := testPool.QueryRow(ctx, `SELECT count(*) FROM jobs`).Scan(&liveCount); err != nil {
			t.Fatalf("count: %v", err)
		}
		if liveCount != 0 {
			t.Fatalf("jobs table still holds %d rows", liveCount)
		}

		// Column mapping: the moved row must land field for field.
		var (
			name, state, lastError, singletonKey string
			data                                 []byte
		)
		err = testPool.QueryRow(ctx,
			`SELECT name, state, last_error, singleton_key, data FROM jobs_archive WHERE id = $1`, job.ID).
			Scan(&name, &state, &lastError, &singletonKey, &data)
		if err != nil {
			t.Fatalf("query archive: %v", err)
		}
		if name != "changeProfile" || state != "failed" || lastError != "provider down" || singletonKey != "changeProfile:p1" {
			t.Fatalf("archived row = %s %s %q %q", name, state, lastError, singletonKey)
		}
		if string(data) != `{"profileId": "p1"}` && string(data) != `{"profileId":"p1"}` {
			t.Fatalf("archived data = %s", data)
		}

		// The inspection surface must still resolve the archived job.
		found, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("find archived: %v", err)
		}
		if found.State != model.JobStateFailed || found.LastError != "provider down" {
			t.Fatalf("archived job = %+v", found)
		}
	})
}
