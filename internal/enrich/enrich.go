// Package enrich builds the payload sent to a collaborator by threading
// dependency results into a task's stored payload.
//
// Two forms of binding are understood. The legacy suffix form names a field
// with a "<field>FromTask" key and an optional "<field>TaskId" key picking
// the source dependency. The explicit form is a value
//
//	{"$ref": {"taskId": "t1", "field": "data.items.0.url"}}
//
// anywhere in the payload, where field is a gjson path into the source
// task's result. An empty field binds the whole result.
package enrich

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/log"
)

const (
	// FromTaskSuffix marks a legacy placeholder key.
	FromTaskSuffix = "FromTask"
	// TaskIDSuffix marks the companion key naming the source task.
	TaskIDSuffix = "TaskId"
	// DependencyResultsKey holds every dependency result when the payload
	// does not set it itself.
	DependencyResultsKey = "dependencyResults"
	// RefKey introduces an explicit binding.
	RefKey = "$ref"
)

// Options configure an Enricher.
type Options struct {
	// Strict turns unresolved legacy placeholders into errors. Explicit
	// bindings always fail on error.
	Strict bool
	Logger *log.Logger
}

// Enricher resolves bindings. It holds no per-task state and is safe for
// concurrent use.
type Enricher struct {
	strict bool
	logger *log.Logger
}

// New creates an Enricher.
func New(opts Options) *Enricher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Enricher{strict: opts.Strict, logger: logger}
}

// Enrich returns the payload to dispatch for task given the results of its
// completed dependencies. The task's own payload is never modified.
func (e *Enricher) Enrich(task graph.Task, results map[string]json.RawMessage) (map[string]any, error) {
	payload := graph.ClonePayload(task.Payload)
	if payload == nil {
		payload = make(map[string]any)
	}

	// Explicit bindings are resolved on the stored payload only. Values
	// copied in from results afterwards are data and are not walked.
	for key, value := range payload {
		resolved, err := resolveRefs(task, value, results)
		if err != nil {
			return nil, err
		}
		payload[key] = resolved
	}

	if err := e.resolvePlaceholders(task, payload, results); err != nil {
		return nil, err
	}

	if _, ok := payload[DependencyResultsKey]; !ok && len(task.DependsOn) > 0 {
		all := make(map[string]any, len(results))
		for id, raw := range results {
			all[id] = decode(raw)
		}
		payload[DependencyResultsKey] = all
	}

	return payload, nil
}

// resolvePlaceholders applies the suffix convention in place.
func (e *Enricher) resolvePlaceholders(task graph.Task, payload map[string]any, results map[string]json.RawMessage) error {
	var keys []string
	for key := range payload {
		if strings.HasSuffix(key, FromTaskSuffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := strings.TrimSuffix(key, FromTaskSuffix)
		idKey := field + TaskIDSuffix

		value, err := lookupPlaceholder(task, field, payload[idKey], results)
		delete(payload, key)
		delete(payload, idKey)

		if err != nil {
			if e.strict {
				return err
			}
			e.logger.Warn("dropping unresolved placeholder",
				"task_id", task.ID,
				"key", key,
				"error_code", string(errors.CodeOf(err)),
			)
			continue
		}
		payload[field] = value
	}
	return nil
}

func lookupPlaceholder(task graph.Task, field string, sourceRef any, results map[string]json.RawMessage) (any, error) {
	if field == "" {
		return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("key %q names no field", FromTaskSuffix))
	}

	var sourceID string
	switch v := sourceRef.(type) {
	case nil:
		if len(task.DependsOn) == 0 {
			return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("%s%s has no source task", field, FromTaskSuffix))
		}
		sourceID = task.DependsOn[0]
	case string:
		sourceID = v
	default:
		return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("%s%s must be a string", field, TaskIDSuffix))
	}

	raw, ok := results[sourceID]
	if !ok {
		return nil, errors.NewMissingResultError(task.ID, sourceID)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.NewMissingFieldError(task.ID, sourceID, field)
	}
	value, ok := obj[field]
	if !ok {
		return nil, errors.NewMissingFieldError(task.ID, sourceID, field)
	}
	return value, nil
}

// resolveRefs walks v and replaces every explicit binding with its value.
func resolveRefs(task graph.Task, v any, results map[string]json.RawMessage) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := val[RefKey]; ok && len(val) == 1 {
			return resolveRef(task, ref, results)
		}
		for k, item := range val {
			resolved, err := resolveRefs(task, item, results)
			if err != nil {
				return nil, err
			}
			val[k] = resolved
		}
		return val, nil
	case []any:
		for i, item := range val {
			resolved, err := resolveRefs(task, item, results)
			if err != nil {
				return nil, err
			}
			val[i] = resolved
		}
		return val, nil
	default:
		return val, nil
	}
}

func resolveRef(task graph.Task, ref any, results map[string]json.RawMessage) (any, error) {
	binding, ok := ref.(map[string]any)
	if !ok {
		return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("%s must be an object", RefKey))
	}

	sourceID, _ := binding["taskId"].(string)
	if sourceID == "" {
		return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("%s.taskId must be a non-empty string", RefKey))
	}

	var field string
	if f, present := binding["field"]; present {
		s, isString := f.(string)
		if !isString {
			return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("%s.field must be a string", RefKey))
		}
		field = s
	}
	for key := range binding {
		if key != "taskId" && key != "field" {
			return nil, errors.NewBadBindingError(task.ID, fmt.Sprintf("unexpected key %q in %s", key, RefKey))
		}
	}

	if !dependsOn(task, sourceID) {
		return nil, errors.NewMissingResultError(task.ID, sourceID)
	}
	raw, ok := results[sourceID]
	if !ok {
		return nil, errors.NewMissingResultError(task.ID, sourceID)
	}

	if field == "" {
		return decode(raw), nil
	}
	res := gjson.GetBytes(raw, field)
	if !res.Exists() {
		return nil, errors.NewMissingFieldError(task.ID, sourceID, field)
	}
	return res.Value(), nil
}

func dependsOn(task graph.Task, id string) bool {
	for _, dep := range task.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// decode turns a stored result into a generic value. Invalid JSON is kept
// as a string.
func decode(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
