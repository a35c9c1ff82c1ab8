package protocol

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"sensorstream/core"

	"github.com/google/shlex"
)

// CommandHandler handles one host command line. The returned text is sent
// back on the control channel.
type CommandHandler func(args []string) (string, error)

// Command is a named host command
type Command struct {
	Name    string
	Help    string
	Handler CommandHandler
}

// CommandRegistry holds the host command surface
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewCommandRegistry creates a registry with no commands
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command. Registering a name twice replaces the handler.
func (r *CommandRegistry) Register(name, help string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = &Command{Name: name, Help: help, Handler: handler}
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

// Dispatch splits line into shell-style words and runs the named
// command. Quoted arguments keep their spaces.
func (r *CommandRegistry) Dispatch(line string) (string, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", nil
	}
	cmd, ok := r.Lookup(fields[0])
	if !ok {
		return "", errors.New("unknown command: " + fields[0])
	}
	return cmd.Handler(fields[1:])
}

// Help lists the commands, one per line, sorted by name.
func (r *CommandRegistry) Help() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		if help := r.commands[name].Help; help != "" {
			b.WriteString(" - ")
			b.WriteString(help)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RegisterBuiltins installs the commands every firmware build answers.
func RegisterBuiltins(r *CommandRegistry) {
	help := func(args []string) (string, error) { return r.Help(), nil }
	r.Register("help", "list commands", help)
	r.Register("?", "list commands", help)
	r.Register("version", "firmware version", func(args []string) (string, error) {
		return Version, nil
	})
	r.Register("echo", "echo arguments", func(args []string) (string, error) {
		return strings.Join(args, " "), nil
	})
	r.Register("ping", "liveness check", func(args []string) (string, error) {
		return "pong", nil
	})
	r.Register("debug", "debug on|off", func(args []string) (string, error) {
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return "", errors.New("usage: debug on|off")
		}
		core.SetDebugEnabled(args[0] == "on")
		return "debug " + args[0], nil
	})
}
