package pipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_DeliversInOrder(t *testing.T) {
	var want bytes.Buffer
	for i := 0; i < 10000; i++ {
		fmt.Fprintf(&want, "row-%05d\n", i)
	}

	var got bytes.Buffer
	err := Stream(context.Background(), 64,
		func(w io.Writer) error {
			data := want.Bytes()
			for len(data) > 0 {
				n := min(7, len(data))
				if _, err := w.Write(data[:n]); err != nil {
					return err
				}
				data = data[n:]
			}
			return nil
		},
		func(_ context.Context, r io.Reader) error {
			_, err := io.Copy(&got, r)
			return err
		},
	)

	require.NoError(t, err)
	assert.Equal(t, want.String(), got.String())
}

func TestStream_DefaultSize(t *testing.T) {
	var got []byte
	err := Stream(context.Background(), 0,
		func(w io.Writer) error {
			_, err := w.Write([]byte("ok"))
			return err
		},
		func(_ context.Context, r io.Reader) error {
			var err error
			got, err = io.ReadAll(r)
			return err
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestStream_ProducerErrorReachesConsumer(t *testing.T) {
	errEncode := errors.New("encode failed")
	var readErr error

	err := Stream(context.Background(), 16,
		func(w io.Writer) error {
			if _, err := w.Write(bytes.Repeat([]byte("x"), 100)); err != nil {
				return err
			}
			return errEncode
		},
		func(_ context.Context, r io.Reader) error {
			_, readErr = io.Copy(io.Discard, r)
			if readErr != nil {
				return fmt.Errorf("send body: %w", readErr)
			}
			return nil
		},
	)

	assert.Same(t, errEncode, err)
	assert.ErrorIs(t, readErr, errEncode)
}

func TestStream_ProducerErrorWhileConsumerWaits(t *testing.T) {
	errEncode := errors.New("encode failed")
	started := make(chan struct{})
	var readErr error

	err := Stream(context.Background(), 16,
		func(io.Writer) error {
			<-started
			time.Sleep(10 * time.Millisecond)
			return errEncode
		},
		func(_ context.Context, r io.Reader) error {
			close(started)
			_, readErr = io.Copy(io.Discard, r)
			return readErr
		},
	)

	assert.Same(t, errEncode, err)
	assert.ErrorIs(t, readErr, errEncode)
	assert.NotErrorIs(t, readErr, io.ErrClosedPipe)
}

func TestStream_ConsumerErrorStopsProducer(t *testing.T) {
	errRemote := errors.New("connection reset")
	written := 0

	err := Stream(context.Background(), 16,
		func(w io.Writer) error {
			chunk := bytes.Repeat([]byte("y"), 32)
			for {
				if _, err := w.Write(chunk); err != nil {
					return err
				}
				written++
			}
		},
		func(_ context.Context, r io.Reader) error {
			buf := make([]byte, 10)
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			return errRemote
		},
	)

	assert.Same(t, errRemote, err)
	assert.Less(t, written, 100)
}

func TestStream_ConsumerReturnsEarly(t *testing.T) {
	err := Stream(context.Background(), 16,
		func(w io.Writer) error {
			for i := 0; i < 1000; i++ {
				if _, err := w.Write([]byte("0123456789")); err != nil {
					return err
				}
			}
			return nil
		},
		func(_ context.Context, r io.Reader) error {
			_, err := r.Read(make([]byte, 4))
			return err
		},
	)

	assert.ErrorIs(t, err, ErrUnread)
}

func TestStream_ContextCancelUnblocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Stream(ctx, 16,
			func(w io.Writer) error {
				for {
					if _, err := w.Write([]byte("blocked")); err != nil {
						return err
					}
				}
			},
			func(ctx context.Context, r io.Reader) error {
				<-ctx.Done()
				return ctx.Err()
			},
		)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not return after cancel")
	}
}

func TestStream_EmptyPayload(t *testing.T) {
	var n int64
	err := Stream(context.Background(), 16,
		func(io.Writer) error { return nil },
		func(_ context.Context, r io.Reader) error {
			var err error
			n, err = io.Copy(io.Discard, r)
			return err
		},
	)
	require.NoError(t, err)
	assert.Zero(t, n)
}
