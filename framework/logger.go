package framework

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the basic logging interface used throughout the harness. Debug
// output from components (HTTP client, fixtures, mock controller) goes through
// a Logger so it can be captured per test rather than written globally.
type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

// NullLogger returns a Logger that discards all output.
func NullLogger() Logger { return nullLogger{} }

// Prefixed returns a Logger that prepends a component tag to every message,
// so interleaved debug output from different components stays readable.
func Prefixed(base Logger, prefix string) Logger {
	if base == nil {
		return nullLogger{}
	}
	return prefixedLogger{base: base, prefix: prefix}
}

type prefixedLogger struct {
	base   Logger
	prefix string
}

func (p prefixedLogger) Printf(message string, args ...interface{}) {
	p.base.Printf("(%s) %s", p.prefix, fmt.Sprintf(message, args...))
}

// CapturedMessage is one timestamped line of debug output from a test.
type CapturedMessage struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// CapturedOutput is the debug output accumulated by one test.
type CapturedOutput []CapturedMessage

// CapturingLogger is a thread-safe Logger that accumulates output in memory,
// to be dumped by the test logger if the test fails (or on request).
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

// Output returns a copy of everything logged so far.
func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append(CapturedOutput(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Dump writes each captured message to dest, one line per message.
func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}
