package services

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/huangang/deployguide/pkg/logger"
	"github.com/mattn/go-isatty"
)

const progressInterval = 100 * time.Millisecond

var progressFrames = []byte{'|', '/', '-', '\\'}

// Progress is a cosmetic spinner shown while a blocking call is in flight.
// It carries no data and never influences the result of the call.
type Progress struct {
	description string
	out         io.Writer
	tty         bool
	interval    time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	frames   int
}

// StartProgress launches the spinner. Frames are drawn in place when out is a
// terminal and logged at debug level otherwise. A nil out means stderr.
func StartProgress(description string, out io.Writer) *Progress {
	if out == nil {
		out = os.Stderr
	}
	return launchProgress(description, out, isTerminal(out), progressInterval)
}

func launchProgress(description string, out io.Writer, tty bool, interval time.Duration) *Progress {
	p := &Progress{
		description: description,
		out:         out,
		tty:         tty,
		interval:    interval,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Progress) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.draw()
		select {
		case <-p.stop:
			p.finish()
			return
		case <-ticker.C:
		}
	}
}

func (p *Progress) draw() {
	frame := progressFrames[p.frames%len(progressFrames)]
	p.frames++
	if p.tty {
		fmt.Fprintf(p.out, "\r%s... %c", p.description, frame)
		return
	}
	logger.Debug().Str("frame", string(frame)).Msg(p.description)
}

func (p *Progress) finish() {
	if p.tty {
		fmt.Fprint(p.out, "\rCompleted!\n")
	}
	logger.Debug().Int("frames", p.frames).Msgf("%s: completed", p.description)
}

// Stop signals the spinner and waits for its goroutine to exit. Safe to call
// more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Frames reports how many frames were emitted. Only meaningful after Stop.
func (p *Progress) Frames() int {
	<-p.done
	return p.frames
}
