// Package actions turns dialogue turns into shop operations and renders the
// replies.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrUnknownAction = errors.New("unknown action")

type Message struct {
	Text string `json:"text"`
}

type Action interface {
	Name() string
	Run(ctx context.Context, t Tracker) []Message
}

// mutating is implemented by actions whose effects must not be repeated when
// the same user message is delivered twice.
type mutating interface {
	Mutates() bool
}

type Registry struct {
	log     *slog.Logger
	actions map[string]Action
	tracer  trace.Tracer
}

func NewRegistry(log *slog.Logger, actions ...Action) *Registry {
	r := &Registry{
		log:     log,
		actions: make(map[string]Action, len(actions)),
		tracer:  otel.Tracer("actions"),
	}
	for _, a := range actions {
		r.actions[a.Name()] = a
	}
	return r
}

func (r *Registry) Run(ctx context.Context, name string, t Tracker) ([]Message, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, ErrUnknownAction
	}
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("sender_id", t.SenderID)))
	defer span.End()

	r.log.Debug("running action", "action", name, "sender_id", t.SenderID)
	return a.Run(ctx, t), nil
}

// Mutates reports whether the named action changes cart or order state.
func (r *Registry) Mutates(name string) bool {
	m, ok := r.actions[name].(mutating)
	return ok && m.Mutates()
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func say(text string) []Message {
	return []Message{{Text: text}}
}
