// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simnet provides an in-memory network of gossiping nodes that
// implements the node and link capabilities used by the harness. It exists
// to test the harness itself; it is not a model of any real consensus.
package simnet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
)

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	_ nodenet.Node = (*Node)(nil)

	ErrNoNewDeploys     = errors.New("no new deploys")
	ErrProposalInFlight = errors.New("another proposal is in flight")
	ErrDeployRejected   = errors.New("deploy rejected")
	ErrLinkFailed       = errors.New("link mutation failed")

	errUnknownNode = errors.New("unknown node")
)

type block struct {
	hash     string
	parents  []string
	rank     uint64
	proposer string
	deploys  int
}

type link struct {
	a, b int
}

func newLink(a, b int) link {
	if a > b {
		a, b = b, a
	}
	return link{a: a, b: b}
}

// Network is a set of simulated nodes. Blocks proposed by a node are
// delivered, together with any ancestors the receiver lacks, to every node
// reachable from the proposer over the current links.
type Network struct {
	lock sync.Mutex

	nodes []*Node
	links map[link]bool

	// Number of peer count queries a node keeps reporting its previous peer
	// count after a link change.
	peerRefreshLag int

	linkCalls   int
	unlinkCalls int
	failLinks   bool
}

type Option func(*Network)

// WithPeerRefreshLag delays the visibility of link changes in peer counts.
func WithPeerRefreshLag(queries int) Option {
	return func(n *Network) {
		n.peerRefreshLag = queries
	}
}

// WithTimeout sets the timeout budget reported by every node.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Network) {
		for _, node := range n.nodes {
			node.timeout = timeout
		}
	}
}

// New returns a network of [count] nodes named node-0..node-N that share a
// genesis block and are linked according to [edges]. All pairs are linked
// when no edges are provided.
func New(count int, edges [][2]int, opts ...Option) *Network {
	n := &Network{
		links: map[link]bool{},
	}
	genesis := &block{hash: genesisHash}
	for i := 0; i < count; i++ {
		n.nodes = append(n.nodes, &Node{
			network: n,
			index:   i,
			name:    fmt.Sprintf("node-%d", i),
			timeout: time.Second,
			blocks:  map[string]*block{genesis.hash: genesis},
		})
	}
	if len(edges) == 0 {
		for i := 0; i < count; i++ {
			for j := i + 1; j < count; j++ {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	for _, edge := range edges {
		n.links[newLink(edge[0], edge[1])] = true
	}
	for _, node := range n.nodes {
		node.peerView = n.peerCount(node.index)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Nodes returns the nodes of the network as capability handles.
func (n *Network) Nodes() []nodenet.Node {
	nodes := make([]nodenet.Node, len(n.nodes))
	for i, node := range n.nodes {
		nodes[i] = node
	}
	return nodes
}

// Node returns the simulated node at [index].
func (n *Network) Node(index int) *Node {
	return n.nodes[index]
}

// Link implements topology.Linker.
func (n *Network) Link(_ context.Context, a, b nodenet.Node) error {
	return n.setLinked(a, b, true)
}

// Unlink implements topology.Linker.
func (n *Network) Unlink(_ context.Context, a, b nodenet.Node) error {
	return n.setLinked(a, b, false)
}

// FailLinks makes every following link mutation fail.
func (n *Network) FailLinks() {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.failLinks = true
}

// LinkCalls returns how many times Link and Unlink were called.
func (n *Network) LinkCalls() (int, int) {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.linkCalls, n.unlinkCalls
}

// Linked reports whether the nodes at [a] and [b] are directly linked.
func (n *Network) Linked(a, b int) bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.links[newLink(a, b)]
}

func (n *Network) setLinked(a, b nodenet.Node, linked bool) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if linked {
		n.linkCalls++
	} else {
		n.unlinkCalls++
	}
	if n.failLinks {
		return fmt.Errorf("%w: %s-%s", ErrLinkFailed, a.Name(), b.Name())
	}

	i, err := n.indexOf(a)
	if err != nil {
		return err
	}
	j, err := n.indexOf(b)
	if err != nil {
		return err
	}

	l := newLink(i, j)
	if n.links[l] == linked {
		return nil
	}
	for _, node := range []*Node{n.nodes[i], n.nodes[j]} {
		if node.refreshRemaining == 0 {
			node.peerView = n.peerCount(node.index)
		}
		node.refreshRemaining = n.peerRefreshLag
	}
	if linked {
		n.links[l] = true
	} else {
		delete(n.links, l)
	}
	return nil
}

func (n *Network) indexOf(node nodenet.Node) (int, error) {
	for i, candidate := range n.nodes {
		if candidate.name == node.Name() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", errUnknownNode, node.Name())
}

// Assumes [n.lock] is held
func (n *Network) peerCount(index int) int {
	count := 0
	for l := range n.links {
		if l.a == index || l.b == index {
			count++
		}
	}
	return count
}

// Assumes [n.lock] is held
func (n *Network) reachableFrom(index int) []int {
	visited := map[int]bool{index: true}
	queue := []int{index}
	var reached []int
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for peer := range n.nodes {
			if visited[peer] || !n.links[newLink(current, peer)] {
				continue
			}
			visited[peer] = true
			reached = append(reached, peer)
			queue = append(queue, peer)
		}
	}
	return reached
}

// Assumes [n.lock] is held
func (n *Network) gossip(from *Node, b *block) {
	for _, index := range n.reachableFrom(from.index) {
		n.nodes[index].receive(from, b)
	}
}

// Node is a simulated node.
type Node struct {
	network *Network

	index   int
	name    string
	timeout time.Duration

	blocks  map[string]*block
	pending []string
	seq     int

	rejectProposals int
	failDeploys     bool

	peerView         int
	refreshRemaining int
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Timeout() time.Duration {
	return n.timeout
}

// RejectProposals makes the next [count] proposals fail transiently.
func (n *Node) RejectProposals(count int) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	n.rejectProposals = count
}

// FailDeploys makes every following deploy fail.
func (n *Node) FailDeploys() {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	n.failDeploys = true
}

// Hashes returns the full hashes of every block known to the node.
func (n *Node) Hashes() []string {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	hashes := make([]string, 0, len(n.blocks))
	for hash := range n.blocks {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes
}

func (n *Node) Deploy(_ context.Context, req nodenet.DeployRequest) (string, error) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	if n.failDeploys {
		return "Error: deploy of " + req.Session + " rejected", fmt.Errorf("%w: %s", ErrDeployRejected, req.Session)
	}
	n.pending = append(n.pending, req.Session)
	return fmt.Sprintf("Success! Deploy of %s queued on %s", req.Session, n.name), nil
}

func (n *Node) Propose(context.Context) (string, error) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	if n.rejectProposals > 0 {
		n.rejectProposals--
		return "Response: Failure! " + ErrProposalInFlight.Error(), ErrProposalInFlight
	}
	if len(n.pending) == 0 {
		return "Response: Failure! " + ErrNoNewDeploys.Error(), ErrNoNewDeploys
	}

	parents := n.tips()
	var rank uint64
	for _, parent := range parents {
		rank = max(rank, n.blocks[parent].rank+1)
	}
	n.seq++
	digest := sha256.Sum256([]byte(fmt.Sprintf(
		"%s/%d/%s/%s",
		n.name,
		n.seq,
		strings.Join(parents, ","),
		strings.Join(n.pending, ","),
	)))
	b := &block{
		hash:     hex.EncodeToString(digest[:]),
		parents:  parents,
		rank:     rank,
		proposer: n.name,
		deploys:  len(n.pending),
	}
	n.pending = nil
	n.blocks[b.hash] = b
	n.network.gossip(n, b)

	return fmt.Sprintf("Response: Success! Block %s... created and added.", b.hash[:nodenet.HashPrefixLen]), nil
}

func (n *Node) ShowBlocks(_ context.Context, limit int) ([]nodenet.BlockRecord, error) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	blocks := make([]*block, 0, len(n.blocks))
	for _, b := range n.blocks {
		blocks = append(blocks, b)
	}
	slices.SortFunc(blocks, func(a, b *block) int {
		if a.rank != b.rank {
			if a.rank > b.rank {
				return -1
			}
			return 1
		}
		return strings.Compare(a.hash, b.hash)
	})
	if limit >= 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}

	records := make([]nodenet.BlockRecord, len(blocks))
	for i, b := range blocks {
		records[i] = nodenet.BlockRecord{
			Hash:        b.hash,
			Parents:     slices.Clone(b.parents),
			Rank:        b.rank,
			ValidatorID: b.proposer,
			DeployCount: b.deploys,
		}
	}
	return records, nil
}

func (n *Node) BlockCount(context.Context) (int, error) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	return len(n.blocks), nil
}

func (n *Node) PeerCount(context.Context) (int, error) {
	n.network.lock.Lock()
	defer n.network.lock.Unlock()

	if n.refreshRemaining > 0 {
		n.refreshRemaining--
		return n.peerView, nil
	}
	n.peerView = n.network.peerCount(n.index)
	return n.peerView, nil
}

// Assumes [n.network.lock] is held
func (n *Node) tips() []string {
	referenced := map[string]bool{}
	for _, b := range n.blocks {
		for _, parent := range b.parents {
			referenced[parent] = true
		}
	}
	var tips []string
	for hash := range n.blocks {
		if !referenced[hash] {
			tips = append(tips, hash)
		}
	}
	sort.Strings(tips)
	return tips
}

// receive stores [b] and any of its ancestors missing locally, fetching
// them from [from].
//
// Assumes [n.network.lock] is held
func (n *Node) receive(from *Node, b *block) {
	if _, ok := n.blocks[b.hash]; ok {
		return
	}
	n.blocks[b.hash] = b
	for _, parent := range b.parents {
		if ancestor, ok := from.blocks[parent]; ok {
			n.receive(from, ancestor)
		}
	}
}
