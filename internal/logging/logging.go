package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

type Logger struct {
	out     io.Writer
	err     io.Writer
	verbose bool
}

func Default() *Logger {
	return &Logger{
		out: os.Stdout,
		err: os.Stderr,
	}
}

func New(out, err io.Writer, verbose bool) *Logger {
	return &Logger{out, err, verbose}
}

// Discard returns a logger that prints nothing.
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

func (l *Logger) Verbose() bool {
	return l.verbose
}

func (l *Logger) Out(f string, args ...interface{}) {
	fmt.Fprintf(l.out, f+"\n", args...)
}

func (l *Logger) Info(tag string, f string, args ...interface{}) {
	print(l.err, color.New(color.FgHiGreen), tag, f, args...)
}

func (l *Logger) Debug(tag string, f string, args ...interface{}) {
	if l.verbose {
		print(l.err, color.New(color.FgGreen), tag, f, args...)
	}
}

// Error reports a failed operation as "[ERROR][op] message".
func (l *Logger) Error(op string, err error) {
	if err == nil {
		return
	}
	tag := color.New(color.FgRed).Sprintf("[ERROR][%s]", op)
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(l.err, "%s %s\n", tag, line)
	}
}

func print(w io.Writer, tagColor *color.Color, tag, f string, args ...interface{}) {
	str := fmt.Sprintf(f, args...)
	for _, line := range strings.Split(str, "\n") {
		fmt.Fprintf(w, "%s  %s\n",
			tagColor.Sprint(tag),
			color.WhiteString(line))
	}
}
