// Package elog provides leveled logging and progress-bar reporting shared
// by every plotkit command: BFS operations, the reorderer, the shuffle,
// and the wizard all report through the same View so their output looks
// and behaves identically whether run interactively or piped to a file.
package elog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// Logger is the subset of leveled logging every command uses. Debugf and
// Infof are gated behind IsDebug/IsVerbose so a plain invocation stays
// quiet; Errorf/Warnf/Printf always emit.
type Logger interface {
	Debugf(format string, x ...interface{})
	Errorf(format string, x ...interface{})
	Infof(format string, x ...interface{})
	Printf(format string, x ...interface{})
	Warnf(format string, x ...interface{})
	IsInfoEnabled() bool
	IsDebugEnabled() bool
}

// Progress reports throughput for a long-running copy, reorder, or
// shuffle pass. Increment is the hot path: callers add bytes moved since
// the last call and the bar amortizes actual redraws against its own
// interval, keeping the ≥2s-equivalent reporting cadence cheap to call
// from tight loops.
type Progress interface {
	Finish(success bool)
	Increment(n int64)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	ProxyReader(r io.Reader) io.ReadCloser
}

// ProgressReporter creates Progress trackers.
type ProgressReporter interface {
	NewProgress(label string, units string, total int64) Progress
}

// View is the logging + progress surface every plotkit package depends
// on, satisfied by *CLI.
type View interface {
	Logger
	ProgressReporter
}

// CLI is the terminal-facing View implementation: logrus for leveled
// text, mpb for progress bars, fatih/color for formatting. Progress bars
// and logging share stdout, so while any bar is active, log lines are
// buffered and flushed once the last bar finishes (mirrors how a
// multi-device BFS sweep or a wizard batch keeps one bar on screen while
// still wanting error lines to appear in order).
type CLI struct {
	DisableColors      bool
	DisableTTY         bool
	IsDebug            bool
	IsVerbose          bool
	lock               sync.Mutex
	isTrackingProgress bool
	bars               map[*mpb.Bar]bool
	buffer             *bytes.Buffer
	progressContainer  *mpb.Progress
}

// Debugf logs at trace level, gated by IsDebug.
func (log *CLI) Debugf(format string, x ...interface{}) {
	if log.IsDebug {
		logrus.Tracef(format, x...)
	}
}

// Errorf always logs at error level.
func (log *CLI) Errorf(format string, x ...interface{}) {
	logrus.Errorf(format, x...)
}

// Infof logs at debug level, gated by IsVerbose.
func (log *CLI) Infof(format string, x ...interface{}) {
	if log.IsVerbose {
		logrus.Debugf(format, x...)
	}
}

// Printf always logs at info level with no gating.
func (log *CLI) Printf(format string, x ...interface{}) {
	logrus.Printf(format, x...)
}

// Warnf always logs at warn level.
func (log *CLI) Warnf(format string, x ...interface{}) {
	logrus.Warnf(format, x...)
}

// IsInfoEnabled reports whether info-level logging is active.
func (log *CLI) IsInfoEnabled() bool {
	return logrus.IsLevelEnabled(logrus.InfoLevel)
}

// IsDebugEnabled reports whether debug-level logging is active.
func (log *CLI) IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// NewProgress creates a progress bar or spinner. With DisableTTY set (a
// non-interactive invocation, e.g. under cron or CI) it returns a
// nilProgress that tracks position without drawing anything.
func (log *CLI) NewProgress(label string, units string, total int64) Progress {

	if log.DisableTTY {
		return &nilProgress{total: total}
	}

	log.lock.Lock()
	defer log.lock.Unlock()

	if !log.isTrackingProgress {
		log.isTrackingProgress = true
		log.buffer = new(bytes.Buffer)
		logrus.SetOutput(log.buffer)
		log.progressContainer = mpb.New(mpb.WithWidth(80))
		log.bars = make(map[*mpb.Bar]bool)
	}

	var decorators []decor.Decorator
	switch units {
	case "nonces":
		decorators = append(decorators, decor.Counters(0, "% d / % d"))
	case "KiB":
		decorators = append(decorators, decor.Counters(decor.UnitKiB, "% .1f / % .1f"))
	default:
		decorators = append(decorators, decor.Percentage())
	}

	var p *mpb.Bar
	if total == 0 {
		p = log.progressContainer.AddSpinner(0, mpb.SpinnerOnLeft,
			mpb.PrependDecorators(
				decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DidentRight}),
			),
		)
	} else {
		p = log.progressContainer.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DidentRight}),
				decor.OnComplete(
					decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done",
				),
			),
			mpb.AppendDecorators(decorators...),
		)
	}

	log.bars[p] = true

	pb := &pb{
		log:      log,
		p:        p,
		total:    total,
		interval: 2 * time.Second,
	}
	pb.nextUpdate = time.Now().Add(pb.interval)

	return pb
}

type nilProgress struct {
	cursor int64
	total  int64
}

func (np *nilProgress) Increment(n int64) {}
func (np *nilProgress) Finish(success bool) {}

func (np *nilProgress) Write(p []byte) (n int, err error) {
	n = len(p)
	np.cursor += int64(n)
	return
}

func (np *nilProgress) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekCurrent:
		abs = np.cursor + offset
	case io.SeekStart:
		abs = offset
	case io.SeekEnd:
		abs = np.total + offset
	default:
		return 0, errors.New("invalid whence")
	}
	np.cursor = abs
	return abs, nil
}

func (np *nilProgress) ProxyReader(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return ioutil.NopCloser(r)
}

// pb tracks one live mpb bar. Increment calls are cheap and batched: a
// redraw only happens once `interval` (≥2s, per §4.2's reporting cadence)
// has elapsed since the last one.
type pb struct {
	log    *CLI
	p      *mpb.Bar
	closed bool
	total  int64
	cursor int64
	bar    int64

	buffered   int64
	interval   time.Duration
	nextUpdate time.Time
}

func (pb *pb) Increment(n int64) {
	pb.buffered += n
	pb.bar += n
	if !time.Now().Before(pb.nextUpdate) {
		pb.flush()
	}
}

func (pb *pb) flush() {
	pb.nextUpdate = time.Now().Add(pb.interval)
	pb.p.IncrInt64(pb.buffered)
	pb.buffered = 0
}

func (pb *pb) Finish(success bool) {
	if pb.closed {
		return
	}
	pb.flush()
	pb.closed = true
	if pb.bar != pb.total || pb.total == 0 || !success {
		pb.p.Abort(false)
	}

	pb.log.lock.Lock()
	defer pb.log.lock.Unlock()
	delete(pb.log.bars, pb.p)

	if len(pb.log.bars) == 0 {
		pb.log.bars = nil
		pb.log.isTrackingProgress = false
		pb.log.progressContainer.Wait()
		pb.log.progressContainer = nil
		logrus.SetOutput(os.Stdout)
		_, _ = pb.log.buffer.WriteTo(os.Stdout)
		pb.log.buffer = nil
	}
}

func (pb *pb) Write(p []byte) (n int, err error) {
	n = len(p)
	pb.cursor += int64(n)
	if pb.bar < pb.cursor {
		pb.Increment(pb.cursor - pb.bar)
	}
	return
}

func (pb *pb) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekCurrent:
		abs = pb.cursor + offset
	case io.SeekStart:
		abs = offset
	case io.SeekEnd:
		abs = pb.total + offset
	default:
		return 0, errors.New("invalid whence")
	}
	pb.cursor = abs
	if pb.bar < pb.cursor {
		pb.Increment(pb.cursor - pb.bar)
	}
	return abs, nil
}

func (pb *pb) ProxyReader(r io.Reader) io.ReadCloser {
	pr := pb.p.ProxyReader(r)
	return &lazyCloser{r: pr, closeFunc: func() error {
		pb.flush()
		pb.Finish(pb.total == pb.bar)
		return pr.Close()
	}}
}

// lazyCloser wraps a reader with a close hook, standing in for the
// teacher's vio.LazyReadCloser without pulling in the rest of vio's
// virtual-file machinery, which plotkit has no other use for.
type lazyCloser struct {
	r         io.Reader
	closeFunc func() error
}

func (l *lazyCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *lazyCloser) Close() error                { return l.closeFunc() }

// Format renders a logrus entry for terminal output: faint traces, blue
// debug, plain info, yellow warnings, red errors.
func (log *CLI) Format(entry *logrus.Entry) ([]byte, error) {

	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	x := entry.Message
	if !log.DisableColors {
		switch entry.Level {
		case logrus.TraceLevel:
			x = fmt.Sprintf("%s\n", faint(x))
		case logrus.DebugLevel:
			x = fmt.Sprintf("%s\n", blue(x))
		case logrus.InfoLevel:
			x = fmt.Sprintf("%s\n", x)
		case logrus.WarnLevel:
			x = fmt.Sprintf("%s\n", yellow(x))
		case logrus.ErrorLevel:
			x = fmt.Sprintf("%s\n", red(x))
		default:
		}
	} else {
		x = fmt.Sprintf("%s\n", x)
	}

	return []byte(x), nil
}
