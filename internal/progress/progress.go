// Package progress is the Progress Reporter (C10, spec.md §4.10): an
// in-process, hierarchical task tree with create/update/complete operations,
// safe for concurrent use, that renders either to a redrawn terminal line
// (TTY) or append-only log lines (piped output/CI), the same fork the
// teacher's own status output never needed because its console consumer was
// always a human terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// TaskID identifies a task created by Reporter.CreateTask.
type TaskID int64

// Reporter is the narrow interface spec.md §9 calls for ("expose as a
// narrow interface with create/update/complete operations ... Null-object
// implementation is required for tests"). Every method is safe to call from
// multiple goroutines.
type Reporter interface {
	CreateTask(description string, total int64, indentLevel int) TaskID
	UpdateTask(id TaskID, advance int64, newTotal int64, newDescription string)
	CompleteTask(id TaskID)

	Info(msg string)
	Warning(msg string)
	Error(msg string)
	Success(msg string)
	Notice(msg string)
	Wait(msg string)
}

// UnknownTotal marks a task whose total size isn't known up front (e.g. a
// chunked download without Content-Length).
const UnknownTotal int64 = -1

type task struct {
	description string
	total       int64
	current     int64
	indent      int
	done        bool
}

// TerminalReporter is the default Reporter: redraws the task tree in place
// when stdout is a TTY, otherwise appends one log line when a task completes
// so piped output stays readable (mirrors the teacher's go-isatty based choice
// between fancy and plain output, generalized from a single status line to
// a tree).
type TerminalReporter struct {
	mu      sync.Mutex
	out     io.Writer
	isTTY   bool
	nextID  TaskID
	tasks   map[TaskID]*task
	lastLen int // bytes of the last redrawn line, for clearing on TTY
}

// NewTerminalReporter builds a reporter writing to out. isTTY is normally
// isatty.IsTerminal(os.Stdout.Fd()); split out as a parameter so tests can
// force either mode.
func NewTerminalReporter(out io.Writer, isTTY bool) *TerminalReporter {
	return &TerminalReporter{out: out, isTTY: isTTY, tasks: make(map[TaskID]*task)}
}

// NewDefaultReporter auto-detects whether stdout is a terminal.
func NewDefaultReporter() *TerminalReporter {
	return NewTerminalReporter(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
}

func (r *TerminalReporter) CreateTask(description string, total int64, indentLevel int) TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.tasks[id] = &task{description: description, total: total, indent: indentLevel}
	r.renderLocked()
	return id
}

func (r *TerminalReporter) UpdateTask(id TaskID, advance int64, newTotal int64, newDescription string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return
	}
	t.current += advance
	if newTotal != 0 {
		t.total = newTotal
	}
	if newDescription != "" {
		t.description = newDescription
	}
	r.renderLocked()
}

func (r *TerminalReporter) CompleteTask(id TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.done = true
		if t.total > 0 {
			t.current = t.total
		}
	}
	r.renderLocked()
	delete(r.tasks, id)
}

func (r *TerminalReporter) renderLocked() {
	// Rendering is output-only (spec.md §4.10); a render failure never
	// affects the task tree's logical state.
	for _, id := range r.orderedIDsLocked() {
		t := r.tasks[id]
		line := formatTask(t)
		if r.isTTY {
			fmt.Fprintf(r.out, "\r%s\033[K", line)
			if t.done {
				fmt.Fprintln(r.out)
			}
		} else if t.done {
			fmt.Fprintln(r.out, line)
		}
	}
}

func (r *TerminalReporter) orderedIDsLocked() []TaskID {
	ids := make([]TaskID, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	// Stable insertion order (map iteration isn't); TaskID increases
	// monotonically so a numeric sort is an order-of-creation sort.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

func formatTask(t *task) string {
	indent := ""
	for i := 0; i < t.indent; i++ {
		indent += "  "
	}
	if t.total <= 0 {
		return fmt.Sprintf("%s%s: %s", indent, t.description, humanize.Bytes(uint64(t.current)))
	}
	return fmt.Sprintf("%s%s: %s / %s", indent, t.description,
		humanize.Bytes(uint64(t.current)), humanize.Bytes(uint64(t.total)))
}

func (r *TerminalReporter) logLine(prefix, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", prefix, msg)
}

func (r *TerminalReporter) Info(msg string)    { r.logLine("[info]", msg) }
func (r *TerminalReporter) Warning(msg string) { r.logLine("[warn]", msg) }
func (r *TerminalReporter) Error(msg string)   { r.logLine("[error]", msg) }
func (r *TerminalReporter) Success(msg string) { r.logLine("[ok]", msg) }
func (r *TerminalReporter) Notice(msg string)  { r.logLine("[notice]", msg) }
func (r *TerminalReporter) Wait(msg string)    { r.logLine("[wait]", msg) }

// Null is the null-object Reporter spec.md §9 requires for tests: every
// operation is a no-op.
type Null struct{}

func (Null) CreateTask(string, int64, int) TaskID   { return 0 }
func (Null) UpdateTask(TaskID, int64, int64, string) {}
func (Null) CompleteTask(TaskID)                     {}
func (Null) Info(string)                             {}
func (Null) Warning(string)                          {}
func (Null) Error(string)                            {}
func (Null) Success(string)                           {}
func (Null) Notice(string)                            {}
func (Null) Wait(string)                              {}

var _ Reporter = (*TerminalReporter)(nil)
var _ Reporter = Null{}
