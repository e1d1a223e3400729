package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/voxflow/go-transcribe/internal/args"
	"github.com/voxflow/go-transcribe/internal/fn"
)

type (
	Workflow = any
	Activity = any
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry maps the names recorded in a history to workflow and activity functions. Names
// have to stay stable across deployments, otherwise running instances cannot be replayed.
type Registry struct {
	mu sync.RWMutex

	workflows  map[string]Workflow
	activities map[string]Activity
}

func New() *Registry {
	return &Registry{
		workflows:  make(map[string]Workflow),
		activities: make(map[string]Activity),
	}
}

// RegisterWorkflow registers a workflow function. Workflows take a workflow.Context first and
// return either an error or a result and an error.
func (r *Registry) RegisterWorkflow(workflow Workflow, opts ...RegisterOption) error {
	t := reflect.TypeOf(workflow)
	if t == nil || t.Kind() != reflect.Func {
		return &ErrInvalidWorkflow{fmt.Sprintf("%T", workflow), "not a function"}
	}

	name := nameFor(workflow, fn.Name, opts)

	if t.NumIn() == 0 || !args.IsOwnContext(t.In(0)) {
		return &ErrInvalidWorkflow{name, "first parameter must be a workflow.Context"}
	}

	if reason := checkResults(t); reason != "" {
		return &ErrInvalidWorkflow{name, reason}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[name]; ok {
		return &ErrWorkflowAlreadyRegistered{name}
	}

	r.workflows[name] = workflow

	return nil
}

// RegisterActivity registers a single activity function, or every exported method of the
// given struct pointer as an activity named after the method.
func (r *Registry) RegisterActivity(activity Activity, opts ...RegisterOption) error {
	t := reflect.TypeOf(activity)
	if t == nil {
		return &ErrInvalidActivity{"<nil>", "activity is nil"}
	}

	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return r.registerMethods(reflect.ValueOf(activity))
	}

	if t.Kind() != reflect.Func {
		return &ErrInvalidActivity{t.String(), "not a function"}
	}

	name := nameFor(activity, fn.Name, opts)

	if reason := checkResults(t); reason != "" {
		return &ErrInvalidActivity{name, reason}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.addActivity(name, activity)
}

func (r *Registry) registerMethods(v reflect.Value) error {
	methods := make(map[string]any)

	for i := 0; i < v.NumMethod(); i++ {
		m := v.Type().Method(i)
		if !m.IsExported() {
			continue
		}

		if reason := checkResults(m.Type); reason != "" {
			return &ErrInvalidActivity{m.Name, reason}
		}

		methods[m.Name] = v.Method(i).Interface()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range methods {
		if _, ok := r.activities[name]; ok {
			return &ErrActivityAlreadyRegistered{name}
		}
	}

	for name, method := range methods {
		if err := r.addActivity(name, method); err != nil {
			return err
		}
	}

	return nil
}

func (r *Registry) addActivity(name string, activity Activity) error {
	if _, ok := r.activities[name]; ok {
		return &ErrActivityAlreadyRegistered{name}
	}

	r.activities[name] = activity

	return nil
}

// checkResults returns why t's results are not (error) or (T, error), or "" if they are
func checkResults(t reflect.Type) string {
	switch {
	case t.NumOut() == 0:
		return "must return an error"
	case t.NumOut() > 2:
		return "must return at most two values"
	case !t.Out(t.NumOut() - 1).Implements(errorType):
		return "must return an error as last value"
	}

	return ""
}

func (r *Registry) GetWorkflow(name string) (Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if wf, ok := r.workflows[name]; ok {
		return wf, nil
	}

	return nil, fmt.Errorf("workflow %s: %w", name, ErrNotFound)
}

func (r *Registry) GetActivity(name string) (Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.activities[name]; ok {
		return a, nil
	}

	return nil, fmt.Errorf("activity %s: %w", name, ErrNotFound)
}

// Activities returns the sorted names of all registered activities
func (r *Registry) Activities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.activities))
	for name := range r.activities {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
