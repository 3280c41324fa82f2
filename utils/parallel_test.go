package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad")
	test.That(t, elapsed, test.ShouldBeLessThan, 90*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParallelForEachRow(t *testing.T) {
	for _, height := range []int{0, 1, 3, 424, 1082} {
		visits := make([]int, height)
		ParallelForEachRow(height, func(y int) {
			visits[y]++
		})
		for _, count := range visits {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestStoppableWorkers(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	stopped := atomic.NewInt32(0)
	worker := func(ctx context.Context) {
		started.Done()
		<-ctx.Done()
		stopped.Inc()
	}

	workers := NewStoppableWorkers(worker, worker)
	started.Wait()
	test.That(t, workers.Context().Err(), test.ShouldBeNil)

	workers.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, int32(2))
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)

	// Adding after a stop is a no-op and stopping again is harmless.
	workers.AddWorkers(func(context.Context) { stopped.Inc() })
	workers.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, int32(2))
}

func TestStoppableWorkersParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	workers := NewStoppableWorkersWithContext(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	workers.Stop()
}
