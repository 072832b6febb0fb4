package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/calvinmclean/carddealer"
)

// ErrMalformed is returned for any frame that is not a known command with the right input
var ErrMalformed = errors.New("malformed command")

type Command struct {
	Flag        byte
	InputSize   uint
	Run         func(context.Context, Handler, io.Writer, []byte) error
	Description string
}

// Handler runs the sessions requested by commands
type Handler interface {
	Start(context.Context, carddealer.Request) (carddealer.Session, error)
	Abort() error
	Status() carddealer.Status
}

var (
	DealCommand = &Command{
		Flag:      'P',
		InputSize: 3,
		Run: func(ctx context.Context, h Handler, w io.Writer, input []byte) error {
			req, err := ParseRequest(input)
			if err != nil {
				return err
			}

			session, err := h.Start(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "OK %s %s\n", session.ID, req)
			return nil
		},
		Description: "Deal cards. Input: station count (1-9), 'C', cards per station (1-9). Example: P3C2.",
	}
	AbortCommand = &Command{
		Flag:      'X',
		InputSize: 0,
		Run: func(ctx context.Context, h Handler, w io.Writer, input []byte) error {
			status := h.Status()
			err := h.Abort()
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "OK abort %s\n", status.SessionID)
			return nil
		},
		Description: "Abort the running session. The card being dealt is finished first.",
	}
	StatusCommand = &Command{
		Flag:      'S',
		InputSize: 0,
		Run: func(ctx context.Context, h Handler, w io.Writer, input []byte) error {
			fmt.Fprintln(w, h.Status().String())
			return nil
		},
		Description: "Print the current state.",
	}
	HelpCommand = &Command{
		Flag:        'H',
		InputSize:   0,
		Description: "Show all available commands and their descriptions.",
		Run: func(ctx context.Context, h Handler, w io.Writer, input []byte) error {
			fmt.Fprintln(w, "Available Commands:")
			for _, cmd := range commands {
				fmt.Fprintf(w, "%c: %s\n", cmd.Flag, cmd.Description)
			}
			return nil
		},
	}
)

var commands = []*Command{
	DealCommand,
	AbortCommand,
	StatusCommand,
}

var cmdMap = func() map[byte]*Command {
	m := map[byte]*Command{
		HelpCommand.Flag: HelpCommand,
	}
	for _, cmd := range commands {
		m[cmd.Flag] = cmd
	}
	return m
}()

// ParseRequest reads the input of a deal command, like "3C2"
func ParseRequest(input []byte) (carddealer.Request, error) {
	if len(input) != 3 || input[1] != 'C' {
		return carddealer.Request{}, fmt.Errorf("%w: %q", ErrMalformed, input)
	}

	stations := b2i(input[0])
	quota := b2i(input[2])
	if stations == 0 || quota == 0 {
		return carddealer.Request{}, fmt.Errorf("%w: counts must be digits 1-9: %q", ErrMalformed, input)
	}

	return carddealer.Request{Stations: stations, Quota: quota}, nil
}

// Dispatch runs the command in a single frame. Empty frames are skipped. Anything that is not a known
// command with exactly its input size returns ErrMalformed.
func Dispatch(ctx context.Context, h Handler, w io.Writer, frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	cmd, ok := cmdMap[frame[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrMalformed, frame)
	}

	input := frame[1:]
	if len(input) != int(cmd.InputSize) {
		return fmt.Errorf("%w: %q", ErrMalformed, frame)
	}

	return cmd.Run(ctx, h, w, input)
}

func b2i(b byte) int {
	v := int(b) - '0'
	if v < 1 || v > 9 {
		return 0
	}
	return v
}
