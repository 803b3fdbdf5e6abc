// Package device adapts the local machine to the location flow: gpsd and IP
// geolocation as positioning backends, and the terminal as permission dialog,
// settings screen and notification surface.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/i474232898/airquality/internal/common"
)

var errNotInteractive = errors.New("console is not interactive")

// Prompter asks questions on the terminal, one at a time.
type Prompter struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter returns a prompter. When interactive is false every question
// is answered with an empty line without touching in.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Ask prints question and returns the next input line without the newline.
func (p *Prompter) Ask(question string) (string, error) {
	if !p.interactive {
		return "", errNotInteractive
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprint(p.out, question+" "); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. Anything but an explicit yes is a no.
func (p *Prompter) Confirm(question string) bool {
	answer, err := p.Ask(question + " [y/N]")
	if err != nil {
		return false
	}
	return common.Affirmative(answer)
}
