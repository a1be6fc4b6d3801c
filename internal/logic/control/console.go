package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cluckburg/coopdoor/internal/logic/daylight"
)

// Console is the interactive debug mode: it reads one command per line and
// runs it against the door.
//
//	open        run the open maneuver
//	close       run the close maneuver
//	lightcheck  print whether it is daylight now
//	q           quit
//
// Commands are case-insensitive and must match the whole line; anything
// else, including padded input such as " open ", is ignored.
type Console struct {
	door      Door
	evaluator *daylight.Evaluator
	in        io.Reader
	out       io.Writer
}

// NewConsole reads commands from in and writes prompts and results to out.
func NewConsole(d Door, e *daylight.Evaluator, in io.Reader, out io.Writer) *Console {
	return &Console{door: d, evaluator: e, in: in, out: out}
}

// Run prompts until "q", end of input, ctx cancellation or a maneuver error.
// Input is read on a helper goroutine so that cancellation is seen while
// waiting for a line; commands themselves run on the caller's goroutine.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	for {
		fmt.Fprintln(c.out, "Ready for input:")

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return <-readErr
			}
			line = l
		}

		quit, err := c.Execute(line)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintln(c.out, "Exited.")
			return nil
		}
	}
}

// Execute runs a single command line and reports whether it asked to quit.
func (c *Console) Execute(line string) (bool, error) {
	switch strings.ToLower(line) {
	case "q":
		return true, nil
	case "open":
		return false, c.door.Open()
	case "close":
		return false, c.door.Close()
	case "lightcheck":
		fmt.Fprintln(c.out, c.evaluator.IsDaylightNow())
	}
	return false, nil
}
