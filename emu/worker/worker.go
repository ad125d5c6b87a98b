/*
 * S2200 - Background worker for nodes
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package worker runs the service loop of a processor or channel module.
// Each pass calls the step function, then waits for a wake, the interval
// to expire or a stop request.
package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Worker struct {
	name    string
	mu      sync.Mutex
	wg      sync.WaitGroup
	done    chan struct{} // Signal to shutdown worker.
	wake    chan struct{} // Work is pending.
	running bool
}

func New(name string) *Worker {
	return &Worker{
		name: name,
		wake: make(chan struct{}, 1),
	}
}

// Start worker running step every interval or when woken.
func (w *Worker) Start(interval time.Duration, step func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.run(interval, step, w.done)
}

func (w *Worker) run(interval time.Duration, step func(), done chan struct{}) {
	defer w.wg.Done()
	slog.Debug(w.name + " worker starting")
	for {
		w.pass(step)
		select {
		case <-done:
			slog.Debug(w.name + " worker stopping")
			return
		case <-w.wake:
		case <-time.After(interval):
		}
	}
}

// One pass, a panic is logged and the loop continues.
func (w *Worker) pass(step func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(w.name+" worker caught exception", "error", fmt.Sprint(r))
		}
	}()
	step()
}

// Wake the worker. Never blocks; wakes coalesce.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop worker and wait for it to exit. A slow step only draws a warning,
// Stop still returns after the goroutine is gone.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
		slog.Warn("Timed out waiting for " + w.name + " to finish.")
	}
	<-done
	slog.Debug(w.name + " worker finished after timeout")
}
