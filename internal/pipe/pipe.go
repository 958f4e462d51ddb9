// Package pipe connects an in-process byte producer to a network consumer
// through a bounded, back-pressured pipe.
package pipe

import (
	"bufio"
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the producer-side buffer used when Stream is given size <= 0.
const DefaultSize = 8192

// ErrUnread is reported to a producer whose consumer returned successfully
// without reading the whole stream.
var ErrUnread = errors.New("pipe: consumer returned before end of stream")

// ProduceFunc writes the payload. Returning an error aborts the stream and
// the consumer's next read fails with that error.
type ProduceFunc func(w io.Writer) error

// ConsumeFunc drains r. Returning an error aborts the stream and the
// producer's next write fails with that error.
type ConsumeFunc func(ctx context.Context, r io.Reader) error

// Stream runs produce and consume concurrently. Bytes reach the consumer in
// write order; the producer blocks once size bytes are buffered and not yet
// read. Both pipe ends are closed before Stream returns.
//
// When both sides fail, the producer's error wins unless it is only the echo
// of the consumer going away.
func Stream(ctx context.Context, size int, produce ProduceFunc, consume ConsumeFunc) error {
	if size <= 0 {
		size = DefaultSize
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	// unblock a side stuck on the pipe when the other fails or ctx ends.
	// Only the write end is closed: a reader still sees the producer's own
	// error, and a blocked writer fails with io.ErrClosedPipe.
	stop := context.AfterFunc(gctx, func() {
		pw.CloseWithError(context.Cause(gctx))
	})
	defer stop()

	var perr, cerr error

	g.Go(func() error {
		bw := bufio.NewWriterSize(pw, size)
		err := produce(bw)
		if err == nil {
			err = bw.Flush()
		}
		if err != nil {
			perr = err
			pw.CloseWithError(err)
			return err
		}
		return pw.Close()
	})

	g.Go(func() error {
		err := consume(gctx, pr)
		if err != nil {
			cerr = err
			pr.CloseWithError(err)
			return err
		}
		pr.CloseWithError(ErrUnread)
		return nil
	})

	werr := g.Wait()

	switch {
	case perr != nil && cerr != nil:
		if errors.Is(perr, io.ErrClosedPipe) || errors.Is(perr, cerr) ||
			errors.Is(perr, context.Canceled) {
			return cerr
		}
		return perr
	case perr != nil:
		return perr
	case cerr != nil:
		return cerr
	}
	return werr
}
