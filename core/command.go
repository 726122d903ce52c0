package core

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/shlex"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyCommand    = errors.New("empty command")
)

// CommandHandler handles one command. args excludes the command name;
// human-readable output goes to w.
type CommandHandler func(w io.Writer, args []string) error

// Command represents one console command
type Command struct {
	Name    string
	Usage   string // Usage line shown by help (e.g., "set <dr|region|ch> <value>")
	Handler CommandHandler
}

// CommandRegistry holds all registered commands
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry. Registering a name twice keeps
// the first handler.
func (r *CommandRegistry) Register(name, usage string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return
	}

	r.commands[name] = &Command{
		Name:    name,
		Usage:   usage,
		Handler: handler,
	}
}

// Lookup retrieves a command by name
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Commands returns all commands sorted by name
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute tokenises line and calls the matching handler
func (r *CommandRegistry) Execute(w io.Writer, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	cmd, ok := r.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}

	return cmd.Handler(w, args[1:])
}
