// Package pipeline implements the bounded producer/consumer handoff that
// streams plot bytes between a reader and a writer running on separate
// goroutines. BFS write and read copies (pkg/bfsfs) move bytes through a
// Pipeline via Copy. The scoop reorderer writes straight to its io.Writer
// from the calling goroutine and the shuffle does its own positioned reads
// and writes; neither goes through a Pipeline.
package pipeline

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/djherbis/buffer"
	"github.com/djherbis/nio"
)

// Pipeline is a byte-capacity bounded pipe between a producer and a
// consumer goroutine. It is built on nio.Pipe over a djherbis/buffer pool,
// the same mechanism the teacher uses to stream a package builder's output
// into a reader without holding the whole archive in memory. A capacity
// bounded by bytes rather than by a fixed count of discrete buffers still
// blocks the producer when full and the consumer when empty, and it never
// reorders: the pipe is strictly FIFO.
type Pipeline struct {
	r io.ReadCloser
	w io.WriteCloser

	cancelled int32

	total     int64
	sinceTick int64
}

// New constructs a Pipeline whose internal buffer holds at most
// capacityBytes bytes of unread data before the producer blocks. Callers
// that think in terms of a buffer count (the reorderer's "at most ~1000
// buffers in flight") should pass capacityBytes = bufSize * bufferCount.
func New(capacityBytes int64) *Pipeline {
	r, w := nio.Pipe(buffer.New(capacityBytes))
	return &Pipeline{r: r, w: w}
}

// Writer returns the producer side. Each Write call blocks until the
// consumer has made room, and observes cancellation: once Cancel has been
// called, Write returns io.ErrClosedPipe instead of accepting more data.
func (p *Pipeline) Writer() io.WriteCloser {
	return &trackedWriter{p: p}
}

// Reader returns the consumer side.
func (p *Pipeline) Reader() io.ReadCloser {
	return &trackedReader{p: p}
}

// Cancel sets the monotonic cancellation flag. Any subsequent Write call
// fails immediately; a producer loop must still check Cancelled() at the
// top of each iteration per the blocking-handoff contract, since a Write
// already in flight when Cancel is called is allowed to complete.
func (p *Pipeline) Cancel() {
	atomic.StoreInt32(&p.cancelled, 1)
}

// Cancelled reports whether Cancel has been called.
func (p *Pipeline) Cancelled() bool {
	return atomic.LoadInt32(&p.cancelled) != 0
}

// CloseWithError aborts the pipe, unblocking any goroutine waiting on
// Reader.Read or Writer.Write with err. Used by a producer that hit a fatal
// I/O error partway through and needs the consumer to stop cleanly instead
// of hanging forever on a Write that will never come.
func (p *Pipeline) CloseWithError(err error) {
	if pw, ok := p.w.(interface{ CloseWithError(error) error }); ok {
		pw.CloseWithError(err)
		return
	}
	p.w.Close()
}

// Progress returns the total bytes moved through the pipeline so far and
// the bytes moved since the last Progress call, for periodic reporting at
// the ≥2s cadence elog expects.
func (p *Pipeline) Progress() (total int64, sinceLastTick int64) {
	total = atomic.LoadInt64(&p.total)
	sinceLastTick = atomic.SwapInt64(&p.sinceTick, 0)
	return
}

type trackedWriter struct {
	p *Pipeline
}

func (tw *trackedWriter) Write(b []byte) (int, error) {
	if tw.p.Cancelled() {
		return 0, io.ErrClosedPipe
	}
	n, err := tw.p.w.Write(b)
	if n > 0 {
		atomic.AddInt64(&tw.p.total, int64(n))
		atomic.AddInt64(&tw.p.sinceTick, int64(n))
	}
	return n, err
}

func (tw *trackedWriter) Close() error {
	return tw.p.w.Close()
}

type trackedReader struct {
	p *Pipeline
}

func (tr *trackedReader) Read(b []byte) (int, error) {
	return tr.p.r.Read(b)
}

func (tr *trackedReader) Close() error {
	return tr.p.r.Close()
}

// Ticker returns a time.Ticker firing at the ≥2s interval §4.2 requires for
// progress reporting. Callers select on it alongside their copy loop and
// call Progress when it fires.
func Ticker() *time.Ticker {
	return time.NewTicker(2 * time.Second)
}

// WriterAt is the subset of rawio.Device a Copy destination needs.
type WriterAt interface {
	WriteAt(p []byte, off int64) (int, error)
}

// Copy streams exactly n bytes from src to dst starting at dstOffset
// through a Pipeline, with a dedicated reader goroutine feeding the
// bounded buffer and the calling goroutine draining it as the writer —
// the "exactly two threads: a reader and a writer" shape §5 requires for
// BFS read/write. bufSize*bufCount bounds the pipeline's capacity.
// progress, if non-nil, is called after every chunk write with the total
// bytes written so far.
func Copy(src io.Reader, dst WriterAt, dstOffset, n int64, bufSize int64, bufCount int, progress func(total int64)) error {

	p := New(bufSize * int64(bufCount))
	readErr := make(chan error, 1)

	go func() {
		w := p.Writer()
		buf := make([]byte, bufSize)
		remaining := n

		for remaining > 0 {
			chunk := bufSize
			if chunk > remaining {
				chunk = remaining
			}

			read, err := io.ReadFull(src, buf[:chunk])
			if read > 0 {
				if _, werr := w.Write(buf[:read]); werr != nil {
					readErr <- werr
					return
				}
			}
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				p.CloseWithError(err)
				readErr <- err
				return
			}
			remaining -= int64(read)
		}

		w.Close()
		readErr <- nil
	}()

	r := p.Reader()
	buf := make([]byte, bufSize)
	var written int64

	for {
		rn, err := r.Read(buf)
		if rn > 0 {
			if _, werr := dst.WriteAt(buf[:rn], dstOffset+written); werr != nil {
				return werr
			}
			written += int64(rn)
			if progress != nil {
				progress(written)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if err := <-readErr; err != nil {
		return err
	}

	if written != n {
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, n)
	}

	return nil
}
