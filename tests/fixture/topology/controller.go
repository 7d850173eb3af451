// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package topology

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
)

const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
)

var (
	ErrMutationFailed = errors.New("topology mutation failed")

	errGraphSizeMismatch = errors.New("graph size does not match the number of nodes")
)

// Linker mutates the links between running nodes.
type Linker interface {
	Link(ctx context.Context, a, b nodenet.Node) error
	Unlink(ctx context.Context, a, b nodenet.Node) error
}

// Recorder is notified of every mutation attempted by a Controller.
type Recorder interface {
	Mutated(op string, success bool)
}

// Controller tracks the connectivity graph of a network and applies changes
// to it through a Linker. It is not safe for concurrent use.
type Controller struct {
	log      logging.Logger
	nodes    []nodenet.Node
	graph    *Graph
	linker   Linker
	recorder Recorder
}

// New returns a controller for [nodes] whose current links are described by
// [graph]. [recorder] may be nil.
func New(log logging.Logger, nodes []nodenet.Node, graph *Graph, linker Linker, recorder Recorder) (*Controller, error) {
	if graph.Size() != len(nodes) {
		return nil, fmt.Errorf("%w: %d nodes, graph of %d", errGraphSizeMismatch, len(nodes), graph.Size())
	}
	return &Controller{
		log:      log,
		nodes:    nodes,
		graph:    graph.Clone(),
		linker:   linker,
		recorder: recorder,
	}, nil
}

// Graph returns a copy of the current graph.
func (c *Controller) Graph() *Graph {
	return c.graph.Clone()
}

// CrossEdges returns the currently connected edges between [p1] and [p2].
func (c *Controller) CrossEdges(p1, p2 []int) []Edge {
	var edges []Edge
	for _, e := range CrossEdges(p1, p2) {
		if c.graph.Connected(e.A, e.B) {
			edges = append(edges, e)
		}
	}
	return edges
}

// Establish creates every link of the current graph through the linker, so
// that later mutations act on links the linker owns. Links that already exist
// are left in place.
func (c *Controller) Establish(ctx context.Context) error {
	edges := c.graph.Edges()
	for _, e := range edges {
		a, b := c.nodes[e.A], c.nodes[e.B]
		err := c.linker.Link(ctx, a, b)
		if c.recorder != nil {
			c.recorder.Mutated(OpConnect, err == nil)
		}
		if err != nil {
			c.log.Error("failed to establish link",
				zap.String("a", a.Name()),
				zap.String("b", b.Name()),
				zap.Error(err),
			)
			return MutationError("establish", a, b, err)
		}
	}
	c.log.Info("established links", zap.Int("edges", len(edges)))
	return nil
}

// Disconnect removes the link between [a] and [b]. Both nodes keep their
// other links. Disconnecting unlinked nodes is a no-op.
func (c *Controller) Disconnect(ctx context.Context, a, b int) error {
	return c.mutate(ctx, NewEdge(a, b), false)
}

// Connect restores the link between [a] and [b]. Peer discovery happens
// asynchronously on the nodes, so callers should poll peer counts before
// relying on the link. Connecting linked nodes is a no-op.
func (c *Controller) Connect(ctx context.Context, a, b int) error {
	return c.mutate(ctx, NewEdge(a, b), true)
}

// DisconnectAll disconnects every edge in order and stops at the first
// failure.
func (c *Controller) DisconnectAll(ctx context.Context, edges []Edge) error {
	for _, e := range edges {
		if err := c.Disconnect(ctx, e.A, e.B); err != nil {
			return err
		}
	}
	return nil
}

// ConnectAll connects every edge in order and stops at the first failure.
func (c *Controller) ConnectAll(ctx context.Context, edges []Edge) error {
	for _, e := range edges {
		if err := c.Connect(ctx, e.A, e.B); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) mutate(ctx context.Context, e Edge, connect bool) error {
	if err := c.graph.check(e); err != nil {
		return err
	}

	op := OpDisconnect
	if connect {
		op = OpConnect
	}
	a, b := c.nodes[e.A], c.nodes[e.B]
	log := c.log.With(
		zap.String("op", op),
		zap.String("a", a.Name()),
		zap.String("b", b.Name()),
	)
	if c.graph.Connected(e.A, e.B) == connect {
		log.Debug("link already in requested state")
		return nil
	}

	var err error
	if connect {
		err = c.linker.Link(ctx, a, b)
	} else {
		err = c.linker.Unlink(ctx, a, b)
	}
	if c.recorder != nil {
		c.recorder.Mutated(op, err == nil)
	}
	if err != nil {
		log.Error("failed to mutate link", zap.Error(err))
		return MutationError(op, a, b, err)
	}

	c.graph.set(e, connect)
	log.Info("mutated link")
	return nil
}

// MutationError reports a failed [op] on the link between [a] and [b]. The
// result always wraps ErrMutationFailed.
func MutationError(op string, a, b nodenet.Node, err error) error {
	if errors.Is(err, ErrMutationFailed) {
		return fmt.Errorf("%s %s and %s: %w", op, a.Name(), b.Name(), err)
	}
	return fmt.Errorf("%w: %s %s and %s: %w", ErrMutationFailed, op, a.Name(), b.Name(), err)
}
