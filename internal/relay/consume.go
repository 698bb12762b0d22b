package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"portfolio-edge/internal/sse"
)

const readBufferSize = 4 * 1024

// Consume reads an SSE chat-completion body until [DONE], EOF or an error,
// calling onContent with the accumulated text after every delta. The body is
// closed on every return path, and as soon as ctx is cancelled.
func Consume(ctx context.Context, body io.ReadCloser, onContent func(content string)) (string, error) {
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	var (
		dec sse.Decoder
		acc strings.Builder
		buf = make([]byte, readBufferSize)
	)

	apply := func(deltas []string) {
		for _, delta := range deltas {
			acc.WriteString(delta)
			if onContent != nil {
				onContent(acc.String())
			}
		}
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			deltas, done := dec.Feed(buf[:n])
			apply(deltas)
			if done {
				return acc.String(), nil
			}
		}

		if errors.Is(err, io.EOF) {
			apply(dec.Close())
			return acc.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return acc.String(), ctxErr
			}
			return acc.String(), fmt.Errorf("failed to read stream: %w", err)
		}
	}
}
