// Package task loads YAML task documents and performs them against the
// pipeline components. A task file holds one or more documents separated by
// "---"; each document names a context, an action, and the specifications
// for that pair. Only explicitly registered {context, action} pairs are
// performable; anything else is rejected before any work starts.
package task

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Context names the subject a task operates on.
type Context string

const (
	// ContextIDs operates on product identifier lists.
	ContextIDs Context = "ids"
	// ContextFiles operates on product files on disk.
	ContextFiles Context = "files"
	// ContextChimp operates on retrieval runs over product files.
	ContextChimp Context = "chimp"
)

// Action names what a task does with its context.
type Action string

const (
	ActionFetch    Action = "fetch"
	ActionVerify   Action = "verify"
	ActionRetrieve Action = "retrieve"
)

// Kind is a {context, action} pair, the unit of dispatch.
type Kind struct {
	Context Context
	Action  Action
}

func (k Kind) String() string {
	return string(k.Context) + "." + string(k.Action)
}

// UnsupportedTaskError is returned for a {context, action} pair with no
// registered handler.
type UnsupportedTaskError struct {
	Kind Kind
}

func (e *UnsupportedTaskError) Error() string {
	return fmt.Sprintf("unsupported task %q", e.Kind)
}

// ErrInvalidSpec marks task specifications that fail validation. Errors
// wrapping it indicate bad input rather than a runtime failure.
var ErrInvalidSpec = errors.New("invalid task specification")

// Task is one document of a task file. Specifications stay undecoded until
// the task's kind selects the concrete spec type.
type Task struct {
	Context        Context   `yaml:"context"`
	Action         Action    `yaml:"action"`
	Specifications yaml.Node `yaml:"specifications"`
}

// Kind returns the task's {context, action} pair.
func (t *Task) Kind() Kind {
	return Kind{Context: t.Context, Action: t.Action}
}

func (t *Task) decodeSpec(v any) error {
	if t.Specifications.IsZero() {
		return fmt.Errorf("%w: specifications are required", ErrInvalidSpec)
	}
	if err := t.Specifications.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return nil
}

// Load reads every task document from a YAML file, in order. Documents with
// an unregistered {context, action} pair fail the whole load; a file with no
// task documents is an error.
func Load(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)

	var tasks []Task
	for {
		var t Task
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode task document %d: %w", len(tasks)+1, err)
		}
		if t.Context == "" && t.Action == "" {
			continue
		}
		if !Supported(t.Kind()) {
			return nil, &UnsupportedTaskError{Kind: t.Kind()}
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no task documents in %s", path)
	}
	return tasks, nil
}
