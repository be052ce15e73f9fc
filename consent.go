package pyext

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
)

// DecisionSource records how a consent decision was reached.
type DecisionSource int

const (
	// SourceUserAnswer means the user typed an answer.
	SourceUserAnswer DecisionSource = iota
	// SourceDefaultNonInteractive means the input channel was unavailable or
	// interrupted and the default applied.
	SourceDefaultNonInteractive
)

// ConsentDecision is the outcome of the consent gate.
type ConsentDecision struct {
	Granted bool
	Source  DecisionSource
}

// ConsentProvider answers the yes/no question asked before a prebuilt binary
// is installed in place of a source build. Injecting the provider keeps the
// pipeline testable without terminal I/O.
type ConsentProvider interface {
	Consent(ctx context.Context, question string) ConsentDecision
}

// TerminalConsent asks the question on an output stream and reads the answer
// from an input stream.
//
// Accepted answers, case-insensitively: yes, y, no, n, and empty (empty
// means yes). When the stream is closed, the run is non-interactive, or an
// interrupt arrives while waiting, the decision defaults to granted: the
// system favors a successful installation over failure when it cannot ask.
type TerminalConsent struct {
	In  io.Reader
	Out io.Writer
}

// Consent implements ConsentProvider.
func (t *TerminalConsent) Consent(ctx context.Context, question string) ConsentDecision {
	fmt.Fprintf(t.Out, "\n%s [Y/n] ", question)

	type answer struct {
		line string
		err  error
	}
	// The buffered channel lets the reader goroutine finish its send even
	// when the interrupt or cancellation branch wins; the goroutine is then
	// abandoned until the stream closes. Consent is asked at most once per
	// process, so at most one reader is ever left behind.
	answers := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		answers <- answer{line: line, err: err}
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	select {
	case a := <-answers:
		response := strings.ToLower(strings.TrimSpace(a.line))
		if a.err != nil && response == "" {
			return ConsentDecision{Granted: true, Source: SourceDefaultNonInteractive}
		}
		if response == "n" || response == "no" {
			return ConsentDecision{Granted: false, Source: SourceUserAnswer}
		}
		return ConsentDecision{Granted: true, Source: SourceUserAnswer}
	case <-interrupts:
		return ConsentDecision{Granted: true, Source: SourceDefaultNonInteractive}
	case <-ctx.Done():
		return ConsentDecision{Granted: true, Source: SourceDefaultNonInteractive}
	}
}

// StaticConsent always returns a fixed decision. Used by tests and by
// non-interactive producer runs.
type StaticConsent struct {
	Decision ConsentDecision
}

// Consent implements ConsentProvider.
func (s *StaticConsent) Consent(context.Context, string) ConsentDecision {
	return s.Decision
}
