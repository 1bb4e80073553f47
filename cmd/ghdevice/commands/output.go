package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// render prints v as indented JSON unless stdout is an interactive terminal,
// in which case human prints a readable summary. --json forces JSON.
func render(cmd *cli.Command, v any, human func(io.Writer)) error {
	w := outWriter(cmd)
	if !cmd.Bool("json") && isTerminal(w) {
		human(w)
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
