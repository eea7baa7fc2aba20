// Package handlers implements the five specialized response handlers run by
// the orchestrator graph.
package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

// Handler processes one request snapshot. An error is recorded by the
// calling node as a node-local failure; it never aborts the run.
type Handler interface {
	ID() model.HandlerID
	Process(ctx context.Context, snap model.Snapshot) (model.Result, error)
}

// Set is the closed handler set keyed by identifier.
type Set map[model.HandlerID]Handler

// NewSet indexes hs by ID.
func NewSet(hs ...Handler) Set {
	s := make(Set, len(hs))
	for _, h := range hs {
		s[h.ID()] = h
	}
	return s
}

var errNoProvider = errors.New("no language model configured")

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
