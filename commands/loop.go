package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// MaxFrame is the longest frame. Input without a newline is cut into frames of this size.
const MaxFrame = 19

// ScanFrames is a bufio.SplitFunc for newline-terminated frames. A trailing '\r' is dropped.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	window := data
	if len(window) > MaxFrame+1 {
		window = window[:MaxFrame+1]
	}

	if i := bytes.IndexByte(window, '\n'); i >= 0 {
		return i + 1, dropCR(data[:i]), nil
	}
	if len(data) >= MaxFrame {
		return MaxFrame, data[:MaxFrame], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), dropCR(data), nil
	}

	return 0, nil, nil
}

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}

// Loop reads frames and dispatches them to a Handler
type Loop struct {
	Handler Handler
	Log     zerolog.Logger
	// Ignored is called with every frame that is not a valid command
	Ignored func(frame []byte, err error)
}

// Run reads frames from r until it is exhausted or ctx is done. Replies are written to w. Malformed frames
// are logged and ignored; other errors are replied as "ERR <message>".
func (l Loop) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)

		scanner := bufio.NewScanner(r)
		scanner.Split(ScanFrames)
		for scanner.Scan() {
			frame := bytes.Clone(scanner.Bytes())
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("error reading commands: %w", err)
					}
				default:
				}
				return ctx.Err()
			}
			l.handle(ctx, w, frame)
		}
	}
}

func (l Loop) handle(ctx context.Context, w io.Writer, frame []byte) {
	err := Dispatch(ctx, l.Handler, w, frame)
	switch {
	case err == nil:
		l.Log.Debug().Bytes("frame", frame).Msg("command")
	case errors.Is(err, ErrMalformed):
		l.Log.Warn().Bytes("frame", frame).Err(err).Msg("ignored data")
		if l.Ignored != nil {
			l.Ignored(frame, err)
		}
	default:
		l.Log.Error().Bytes("frame", frame).Err(err).Msg("command failed")
		fmt.Fprintf(w, "ERR %v\n", err)
	}
}
