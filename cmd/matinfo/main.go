// Command matinfo inspects and edits MAT-files.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/facette/natsort"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/serum-errors/go-serum"
	"github.com/urfave/cli/v2"

	matio "github.com/robert-malhotra/go-matio"
	"github.com/robert-malhotra/go-matio/internal/logging"
)

const VERSION = "v0.1.0"

func makeApp(stdout, stderr io.Writer, fs billy.Filesystem) *cli.App {
	app := cli.NewApp()
	app.Name = "matinfo"
	app.Version = VERSION
	app.Usage = "inspect and edit MATLAB MAT-files"
	app.Description = heredoc.Doc(`
		matinfo lists, prints, creates and edits Level 4, Level 5 and 7.3
		MAT-files. Paths are resolved against the current directory.
	`)
	app.Writer = stdout
	app.ErrWriter = stderr
	app.HideVersion = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: []string{"MATIO_DEBUG"},
		},
	}
	// Failed File operations log their own error; print only the rest.
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err != nil && serum.Code(err) == "" {
			fmt.Fprintf(c.App.ErrWriter, "error: %s\n", err)
		}
	}
	env := &environment{fs: fs}
	app.Commands = []*cli.Command{
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "List the variables in a file",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "sort",
					Usage: "Sort names in natural order instead of file order",
				},
			},
			Action: env.cmdList,
		},
		{
			Name:      "show",
			Usage:     "Print the header and a summary of each named variable",
			ArgsUsage: "<file> [variable...]",
			Action:    env.cmdShow,
		},
		{
			Name:      "create",
			Usage:     "Create an empty file",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "version",
					Usage: "File version: 4, 5 or 7.3",
					Value: "5",
				},
				&cli.StringFlag{
					Name:  "header",
					Usage: "Header text; a default one is written when empty",
				},
			},
			Action: env.cmdCreate,
		},
		{
			Name:      "rm",
			Usage:     "Remove variables from a file",
			ArgsUsage: "<file> <variable...>",
			Action:    env.cmdRemove,
		},
	}
	return app
}

type environment struct {
	fs billy.Filesystem
}

func (e *environment) options(c *cli.Context) []matio.Option {
	return []matio.Option{
		matio.WithFilesystem(e.fs),
		matio.WithLogOutput(c.App.ErrWriter),
		matio.WithVerbose(c.Bool("verbose")),
	}
}

func (e *environment) logger(c *cli.Context) *logging.Logger {
	return logging.New(c.App.Writer, c.App.ErrWriter, c.Bool("verbose"))
}

func fileArg(c *cli.Context, minArgs int) (string, error) {
	if c.NArg() < minArgs {
		return "", fmt.Errorf("%s needs %d arguments, got %d", c.Command.Name, minArgs, c.NArg())
	}
	return c.Args().First(), nil
}

func (e *environment) cmdList(c *cli.Context) error {
	path, err := fileArg(c, 1)
	if err != nil {
		return err
	}
	f, err := matio.OpenFile(path, matio.ReadOnly, e.options(c)...)
	if err != nil {
		return err
	}
	defer f.Close()

	names := f.VariableNames()
	if c.Bool("sort") {
		natsort.Sort(names)
	}
	log := e.logger(c)
	for _, n := range names {
		log.Out("%s", n)
	}
	return nil
}

func (e *environment) cmdShow(c *cli.Context) error {
	path, err := fileArg(c, 1)
	if err != nil {
		return err
	}
	f, err := matio.OpenFile(path, matio.ReadOnly, e.options(c)...)
	if err != nil {
		return err
	}
	defer f.Close()

	log := e.logger(c)
	log.Out("%s: %s", path, f.Version())
	if f.Version() != matio.MAT4 {
		log.Out("header: %s", strings.TrimRight(f.Header(), " "))
	}
	names := c.Args().Tail()
	if len(names) == 0 {
		names = f.VariableNames()
		natsort.Sort(names)
	}
	for _, n := range names {
		v, err := f.Read(n)
		if err != nil {
			return err
		}
		log.Out("%s", describe(v))
	}
	return nil
}

func describe(v matio.Variable) string {
	dims := make([]string, 0, len(v.Dimensions()))
	for _, d := range v.Dimensions() {
		dims = append(dims, fmt.Sprint(d))
	}
	var attrs []string
	if v.IsComplex() {
		attrs = append(attrs, "complex")
	}
	if v.IsGlobal() {
		attrs = append(attrs, "global")
	}
	s := fmt.Sprintf("%-20s %-10s %-12s %s", v.Name(), strings.Join(dims, "x"), v.ClassName(), v.VariableType())
	if len(attrs) > 0 {
		s += " (" + strings.Join(attrs, ", ") + ")"
	}
	if v.VariableType() == matio.TypeString {
		s += fmt.Sprintf(" %q", v.AsString().Value())
	}
	return s
}

func (e *environment) cmdCreate(c *cli.Context) error {
	path, err := fileArg(c, 1)
	if err != nil {
		return err
	}
	version, err := matio.ParseFileVersion(c.String("version"))
	if err != nil {
		return err
	}
	f, err := matio.Create(path, version, c.String("header"), e.options(c)...)
	if err != nil {
		return err
	}
	e.logger(c).Info("matinfo", "created %s (%s)", path, f.Version())
	return f.Close()
}

func (e *environment) cmdRemove(c *cli.Context) error {
	path, err := fileArg(c, 2)
	if err != nil {
		return err
	}
	f, err := matio.OpenFile(path, matio.ReadAndWrite, e.options(c)...)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, n := range c.Args().Tail() {
		if err := f.Remove(n); err != nil {
			return err
		}
		e.logger(c).Debug("matinfo", "removed %s", n)
	}
	return nil
}

func main() {
	app := makeApp(os.Stdout, os.Stderr, osfs.New(""))
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
