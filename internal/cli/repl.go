package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// REPL is the interactive command loop.
type REPL struct {
	session *Session
	io      *IO
	liner   *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".mcache_history")
}

// Run starts the REPL loop. It returns when the user exits or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	defer r.saveHistory()

	st := r.session.reg.Stats()
	r.io.Printf("mcache - member cache playground (session %s, max_capacity=%d)\n", r.session.ID(), st.MaxCapacity)
	r.io.Println("Type 'help' for available commands.")
	r.io.Println()

	for ctx.Err() == nil {
		line, err := r.liner.Prompt("mcache> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.io.Println("\nBye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		if quit, _ := r.session.Exec(ctx, r.io, line); quit {
			r.io.Println("Bye!")

			return nil
		}
	}

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer completes command names, then type names.
func (r *REPL) completer(line string) []string {
	var completions []string

	fields := strings.Fields(line)
	if len(fields) <= 1 && !strings.HasSuffix(line, " ") {
		lower := strings.ToLower(line)
		for _, cmd := range r.session.CommandNames() {
			if strings.HasPrefix(cmd, lower) {
				completions = append(completions, cmd)
			}
		}

		return completions
	}

	prefix, partial := line, ""
	if !strings.HasSuffix(line, " ") {
		partial = fields[len(fields)-1]
		prefix = strings.TrimSuffix(line, partial)
	}

	for _, t := range r.session.universe.Types() {
		if strings.HasPrefix(t.Name(), partial) {
			completions = append(completions, prefix+t.Name())
		}
	}

	return completions
}
