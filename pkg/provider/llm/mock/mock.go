// Package mock provides a test double for the llm.Generator interface.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/roomguard/pkg/provider/llm"
)

// Generator is a mock implementation of llm.Generator.
type Generator struct {
	mu sync.Mutex

	// Lines is the sequence of lines returned by Generate, one per call.
	// When exhausted, Generate returns a synthetic line describing the
	// request so tests can still assert on level and reason.
	Lines []string

	// Err, if non-nil, is returned by every Generate call.
	Err error

	// Requests records every request passed to Generate, in order.
	Requests []llm.Request

	next int
}

var _ llm.Generator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return "", g.Err
	}
	if g.next < len(g.Lines) {
		line := g.Lines[g.next]
		g.next++
		return line, nil
	}
	return fmt.Sprintf("level %d line (%s)", req.Level, req.Reason), nil
}

// CallCount returns the number of Generate invocations so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// RequestAt returns a copy of the i-th recorded request.
func (g *Generator) RequestAt(i int) llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Requests[i]
}
