package matio

import (
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/robert-malhotra/go-matio/internal/logging"
)

// TracerName is the instrumentation name of the default tracer.
const TracerName = "github.com/robert-malhotra/go-matio"

// Option configures a File.
type Option func(*options)

type options struct {
	fs      billy.Filesystem
	out     io.Writer
	errOut  io.Writer
	verbose bool
	tracer  trace.Tracer
}

func defaultOptions() *options {
	return &options{
		fs:     osfs.New(""),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(TracerName)
	}
	return o
}

func (o *options) logger() *logging.Logger {
	return logging.New(o.out, o.errOut, o.verbose)
}

// WithFilesystem sets the filesystem paths are resolved against.
// The default is the host filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithLogOutput sends all log output, errors included, to w.
// Use io.Discard to silence it.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.out, o.errOut = w, w
	}
}

// WithVerbose enables debug logging.
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithTracer sets the OpenTelemetry tracer for file operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}
