// Package wizard implements the plotting wizard's plan/create/move/miner
// orchestration: three cooperating worker threads plus an external
// plotter subprocess and an optional miner subprocess, per §4.9.
package wizard

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vorteil/plotkit/pkg/elog"
)

type moveJob struct {
	srcPath string
	dstDir  string
}

// Orchestrator runs the create -> move -> miner pipeline over a planned
// set of chunks. Cancellation is cooperative: Cancel sets a flag every
// worker loop checks at its head, the same atomic-flag style as
// pkg/pipeline's Cancel rather than a context.Context tree.
type Orchestrator struct {
	Plotter   PlotterConfig
	TmpDir    string
	ProcLog   *ProcLog
	Log       elog.View
	Miner     MinerConfig
	cancelled int32
}

// MinerConfig configures the optional miner-restart activity.
type MinerConfig struct {
	Enabled       bool
	MinerPathName string
	ProcessName   string
}

// Cancel requests that all three workers stop at their next loop
// iteration. In-flight subprocess calls are not interrupted; the next
// queued chunk is simply never started.
func (o *Orchestrator) Cancel() {
	atomic.StoreInt32(&o.cancelled, 1)
}

func (o *Orchestrator) cancelled() bool {
	return atomic.LoadInt32(&o.cancelled) != 0
}

// Run plots every chunk, moving each into its target directory as it
// completes, and (if Miner.Enabled) restarting the miner after every
// successful move. It returns once every chunk has been processed or
// Cancel has been called; the first fatal per-chunk error is remembered
// and returned at the end, but does not stop the remaining chunks from
// being attempted (a nonzero plotter exit is fatal to the wizard per §7,
// but only after the batch finishes draining).
func (o *Orchestrator) Run(chunks []Chunk) error {

	batchID := uuid.New().String()
	o.logf("batch %s: planned %d chunks", batchID, len(chunks))

	toCreate := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		toCreate <- c
	}
	close(toCreate)

	toMove := make(chan moveJob, 8)
	minerSignal := make(chan struct{}, 1)

	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	recordErr := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(toMove)
		for chunk := range toCreate {
			if o.cancelled() {
				return
			}
			path, err := CreatePlot(o.Plotter, chunk, o.TmpDir, o.ProcLog)
			if err != nil {
				o.logf("batch %s: create failed for chunk startNonce=%d: %v", batchID, chunk.StartNonce, err)
				recordErr(err)
				continue
			}
			toMove <- moveJob{srcPath: path, dstDir: chunk.Dir}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(minerSignal)
		for job := range toMove {
			if o.cancelled() {
				return
			}
			dst, err := Move(job.srcPath, job.dstDir)
			if err != nil {
				o.logf("batch %s: move failed for %s: %v", batchID, job.srcPath, err)
				recordErr(err)
				continue
			}
			o.logf("batch %s: moved plot to %s", batchID, dst)
			select {
			case minerSignal <- struct{}{}:
			default:
			}
		}
	}()

	if o.Miner.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range minerSignal {
				if o.cancelled() {
					return
				}
				if err := RestartMiner(o.Miner.MinerPathName, o.Miner.ProcessName, o.ProcLog); err != nil {
					o.logf("batch %s: miner restart failed: %v", batchID, err)
					recordErr(err)
				}
			}
		}()
	} else {
		go func() {
			for range minerSignal {
			}
		}()
	}

	wg.Wait()

	return firstErr
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.Log != nil {
		o.Log.Infof(format, args...)
	}
}
