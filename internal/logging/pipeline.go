// internal/logging/pipeline.go
package logging

import (
	"fmt"

	"github.com/pkg/errors"
)

// TimestampLayout is the layout of the timestamp every pipeline injects.
const TimestampLayout = "2006-01-02 15:04:05"

// Stage is one transformation step of a pipeline. A stage returning nil
// drops the entry.
type Stage func(*Entry) *Entry

// Combine composes stages into a single stage applied left to right.
func Combine(stages ...Stage) Stage {
	stages = append([]Stage(nil), stages...)
	return func(e *Entry) *Entry {
		for _, s := range stages {
			if e == nil {
				return nil
			}
			e = s(e)
		}
		return e
	}
}

// PipelineSpec describes the user-configurable part of a pipeline.
type PipelineSpec struct {
	// Formats are resolved through the format registry, in order.
	Formats FormatList

	// Custom stages run after the registered formats.
	Custom []Stage

	// Labels, when present, are attached after the user stages.
	Labels map[string]any

	// Options are passed to every stage factory.
	Options map[string]any

	// Redact runs right after the fixed prefix, before any user stage.
	Redact Stage
}

// BuildPipeline composes the pipeline for one transport.
//
// Every pipeline starts with error expansion then timestamp injection,
// whatever the configured formats are.
func BuildPipeline(reg *FormatRegistry, spec PipelineSpec) (Stage, error) {
	stages := []Stage{expandErrors, injectTimestamp(TimestampLayout)}
	if spec.Redact != nil {
		stages = append(stages, spec.Redact)
	}

	for _, id := range spec.Formats {
		factory, ok := reg.Resolve(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, id)
		}
		stage, err := factory(spec.Options)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", id, err)
		}
		stages = append(stages, stage)
	}

	for _, s := range spec.Custom {
		if s != nil {
			stages = append(stages, s)
		}
	}

	if len(spec.Labels) > 0 {
		stages = append(stages, attachLabels(spec.Labels))
	}

	return Combine(stages...), nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// expandErrors moves the error message into the entry message when the
// message is empty and records the error's stack under FieldStack.
func expandErrors(e *Entry) *Entry {
	if e.Err == nil {
		return e
	}
	if e.Message == "" {
		e.Message = e.Err.Error()
	}
	e.Fields[FieldStack] = stackOf(e.Err)
	return e
}

// stackOf renders the deepest recorded stack in err's chain.
func stackOf(err error) string {
	var st errors.StackTrace
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if t, ok := cur.(stackTracer); ok {
			st = t.StackTrace()
		}
	}
	if st == nil {
		return err.Error()
	}
	return err.Error() + fmt.Sprintf("%+v", st)
}

func injectTimestamp(layout string) Stage {
	return func(e *Entry) *Entry {
		e.Fields[FieldTimestamp] = e.Time.Format(layout)
		return e
	}
}

func attachLabels(labels map[string]any) Stage {
	copied := make(map[string]any, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return func(e *Entry) *Entry {
		e.Fields[FieldLabels] = copied
		return e
	}
}
