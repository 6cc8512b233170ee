package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/graph/entity"
	"github.com/c360/traitstore/subscription"
)

type mutationView struct {
	EntityID    string `json:"entity_id"`
	OperationID uint64 `json:"operation_id"`
}

type traitView struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Priority bool            `json:"priority,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type modelView struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Deleted     bool        `json:"deleted,omitempty"`
	Traits      []traitView `json:"traits"`
}

type watchView struct {
	State       string      `json:"state"`
	OperationID uint64      `json:"operation_id,omitempty"`
	Entities    []modelView `json:"entities,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func newModelView(m *entity.Model) modelView {
	v := modelView{
		ID:          m.ID(),
		DisplayName: m.DisplayName(),
		Deleted:     m.Deleted(),
		Traits:      make([]traitView, 0, m.Len()),
	}
	priority := m.PriorityTraitID()
	for _, inst := range m.Traits() {
		data, err := codec.PayloadData(inst.Payload())
		if err != nil {
			data = nil
		}
		v.Traits = append(v.Traits, traitView{
			ID:       inst.ID(),
			Type:     inst.Type(),
			Name:     inst.DisplayName(),
			Priority: inst.ID() == priority,
			Data:     data,
		})
	}
	return v
}

func newModelViews(models []*entity.Model) []modelView {
	out := make([]modelView, 0, len(models))
	for _, m := range models {
		out = append(out, newModelView(m))
	}
	return out
}

func newWatchView(models []*entity.Model, ev subscription.WatchEvent) watchView {
	v := watchView{State: ev.State.String()}
	if ev.Result != nil {
		v.OperationID = ev.Result.OperationID
	}
	if ev.Err != nil {
		v.Error = ev.Err.Error()
	}
	if len(models) > 0 {
		v.Entities = newModelViews(models)
	}
	return v
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printLine(v any) error {
	return json.NewEncoder(a.out).Encode(v)
}

func (a *app) logError(msg string, err error) {
	if a.logger != nil {
		a.logger.Error(msg, "error", err)
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
}
