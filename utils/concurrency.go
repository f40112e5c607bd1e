package utils

import (
	"sync"
	"time"
)

// WorkerPool runs jobs on at most maxWorkers goroutines, spacing job starts
// by at least rateLimitMs milliseconds.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
// A maxWorkers below one is treated as one.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		semaphore:   make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) enforceRateLimit() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if !wp.lastRequest.IsZero() {
		if elapsed := time.Since(wp.lastRequest); elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	wp.lastRequest = time.Now()
}

// MapOrdered calls fn for every index in [0, n) on the pool and returns the
// results in index order, whatever order the calls completed in.
func MapOrdered[T any](wp *WorkerPool, n int, fn func(i int) T) []T {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		i := i
		wp.Submit(func() {
			out[i] = fn(i)
		})
	}
	wp.Wait()
	return out
}
