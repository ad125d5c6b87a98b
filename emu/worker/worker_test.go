/*
 * S2200 - Background worker tests
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

package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWakeRunsStep(t *testing.T) {
	var count atomic.Int32
	w := New("test")
	w.Start(time.Hour, func() { count.Add(1) })
	defer w.Stop()

	w.Wake()
	deadline := time.Now().Add(time.Second)
	for count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count.Load() < 2 {
		t.Errorf("Step not run on wake got: %d expected: %d", count.Load(), 2)
	}
}

func TestIntervalAndPanic(t *testing.T) {
	var count atomic.Int32
	w := New("test")
	w.Start(time.Millisecond, func() {
		if count.Add(1) == 1 {
			panic("first pass")
		}
	})
	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	w.Stop()
	if count.Load() < 3 {
		t.Errorf("Worker did not continue after panic got: %d", count.Load())
	}
	if w.Running() {
		t.Error("Worker still running after stop")
	}

	// Stopped worker can be restarted.
	before := count.Load()
	w.Start(time.Millisecond, func() { count.Add(1) })
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	if count.Load() == before {
		t.Error("Restarted worker did not run")
	}
}

func TestStopIdle(t *testing.T) {
	w := New("idle")
	w.Stop()
	if w.Running() {
		t.Error("Idle worker running")
	}
}

// Stop must not return while a long step is still running.
func TestStopWaitsForSlowStep(t *testing.T) {
	var inStep, finished atomic.Bool
	w := New("slow")
	w.Start(time.Hour, func() {
		if inStep.Swap(true) {
			return
		}
		time.Sleep(1200 * time.Millisecond)
		finished.Store(true)
	})
	deadline := time.Now().Add(time.Second)
	for !inStep.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	if !finished.Load() {
		t.Error("Stop returned while step still running")
	}
	if w.Running() {
		t.Error("Worker still running after stop")
	}
}
