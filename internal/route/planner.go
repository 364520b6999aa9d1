// Package route maps task types to the collaborator endpoints that
// implement them.
//
// The table is data: it is decoded from YAML once at startup and never
// changes afterwards, so a Planner is safe for concurrent use.
package route

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

// Target is where a task is dispatched.
type Target struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	URL     string `json:"url"`
}

func (t Target) String() string {
	return t.Method + " " + t.URL
}

// Options adjust base URLs when the table is built.
type Options struct {
	// BaseURL, when set, replaces every service base URL (single gateway).
	BaseURL string
	// Services overrides base URLs per service name.
	Services map[string]string
}

// Entry is one row of the resolved table.
type Entry struct {
	Types   []string `json:"types"`
	Service string   `json:"service"`
	Method  string   `json:"method"`
	Path    string   `json:"path"`
	URL     string   `json:"url"`
}

// Planner resolves task types against an immutable table.
type Planner struct {
	targets  map[string]Target
	entries  []Entry
	services map[string]string
}

// NewPlanner validates doc, applies opts and builds a Planner.
func NewPlanner(doc *Document, opts Options) (*Planner, error) {
	if doc == nil || len(doc.Routes) == 0 {
		return nil, tableError("route table has no routes")
	}

	bases := make(map[string]string, len(doc.Services))
	for name, base := range doc.Services {
		bases[name] = base
	}
	for name, base := range opts.Services {
		bases[name] = base
	}

	p := &Planner{
		targets:  make(map[string]Target),
		services: make(map[string]string),
	}
	for i, r := range doc.Routes {
		method := strings.ToUpper(strings.TrimSpace(r.Method))
		if method != "GET" && method != "POST" {
			return nil, tableError(fmt.Sprintf("route %d: method %q must be GET or POST", i, r.Method))
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, tableError(fmt.Sprintf("route %d: path %q must start with /", i, r.Path))
		}
		if len(r.Types) == 0 {
			return nil, tableError(fmt.Sprintf("route %d: no task types", i))
		}

		base := opts.BaseURL
		if base == "" {
			base = bases[r.Service]
		}
		if base == "" {
			return nil, tableError(fmt.Sprintf("service %q has no base URL", r.Service))
		}
		if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, tableError(fmt.Sprintf("service %q base URL %q is not absolute", r.Service, base))
		}

		p.services[r.Service] = strings.TrimRight(base, "/")
		target := Target{
			Service: r.Service,
			Method:  method,
			URL:     strings.TrimRight(base, "/") + r.Path,
		}

		types := make([]string, 0, len(r.Types))
		for _, alias := range r.Types {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				return nil, tableError(fmt.Sprintf("route %d: empty task type", i))
			}
			if _, dup := p.targets[key]; dup {
				return nil, tableError(fmt.Sprintf("task type %q is routed twice", key))
			}
			p.targets[key] = target
			types = append(types, key)
		}

		p.entries = append(p.entries, Entry{
			Types:   types,
			Service: target.Service,
			Method:  target.Method,
			Path:    r.Path,
			URL:     target.URL,
		})
	}

	return p, nil
}

// Default builds a Planner from the built-in table.
func Default(opts Options) (*Planner, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	return NewPlanner(doc, opts)
}

// PlanRoute returns the target for task's type. Lookup is case-insensitive.
// An unknown type yields an error matching errors.ErrUnknownTaskType.
func (p *Planner) PlanRoute(task graph.Task) (Target, error) {
	return p.Lookup(task.Type)
}

// Lookup resolves a bare task type.
func (p *Planner) Lookup(taskType string) (Target, error) {
	target, ok := p.targets[strings.ToLower(taskType)]
	if !ok {
		return Target{}, errors.NewUnknownTaskTypeError(taskType)
	}
	return target, nil
}

// Entries returns the table rows in declaration order.
func (p *Planner) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		e.Types = append([]string(nil), e.Types...)
		out[i] = e
	}
	return out
}

// Services returns the resolved base URL of every service the table routes
// to.
func (p *Planner) Services() map[string]string {
	out := make(map[string]string, len(p.services))
	for name, base := range p.services {
		out[name] = base
	}
	return out
}

// Types returns every routable task type, sorted.
func (p *Planner) Types() []string {
	types := make([]string, 0, len(p.targets))
	for t := range p.targets {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func tableError(msg string) error {
	return errors.New(errors.ErrCodeRouteTableInvalid, msg)
}
