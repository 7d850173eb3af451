// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package topology

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/simnet"
	"github.com/ava-labs/blockprop/utils/logging"
	"github.com/ava-labs/blockprop/utils/set"
)

var errDaemon = errors.New("daemon unavailable")

// fakeDocker tracks which containers are attached to which networks.
type fakeDocker struct {
	client.NetworkAPIClient

	networks  map[string]set.Set[string]
	creates   int
	removed   []string
	createErr error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		networks: map[string]set.Set[string]{},
	}
}

// Network IDs are the network names.
func (f *fakeDocker) NetworkList(context.Context, types.NetworkListOptions) ([]types.NetworkResource, error) {
	resources := make([]types.NetworkResource, 0, len(f.networks))
	for name := range f.networks {
		resources = append(resources, types.NetworkResource{Name: name, ID: name})
	}
	return resources, nil
}

func (f *fakeDocker) NetworkInspect(_ context.Context, name string, _ types.NetworkInspectOptions) (types.NetworkResource, error) {
	members, ok := f.networks[name]
	if !ok {
		return types.NetworkResource{}, errdefs.NotFound(errors.New("network " + name + " not found"))
	}
	containers := make(map[string]types.EndpointResource, members.Len())
	for container := range members {
		containers["id-"+container] = types.EndpointResource{Name: container}
	}
	return types.NetworkResource{Name: name, ID: name, Containers: containers}, nil
}

func (f *fakeDocker) share(a, b string) bool {
	for _, members := range f.networks {
		if members.Contains(a) && members.Contains(b) {
			return true
		}
	}
	return false
}

func (f *fakeDocker) NetworkCreate(_ context.Context, name string, options types.NetworkCreate) (types.NetworkCreateResponse, error) {
	if f.createErr != nil {
		return types.NetworkCreateResponse{}, f.createErr
	}
	f.creates++
	f.networks[name] = set.Set[string]{}
	return types.NetworkCreateResponse{ID: name}, nil
}

func (f *fakeDocker) NetworkConnect(_ context.Context, name string, container string, _ *network.EndpointSettings) error {
	members, ok := f.networks[name]
	if !ok {
		return errdefs.NotFound(errors.New("network " + name + " not found"))
	}
	if members.Contains(container) {
		return errdefs.Forbidden(errors.New("endpoint already exists"))
	}
	members.Add(container)
	return nil
}

func (f *fakeDocker) NetworkDisconnect(_ context.Context, name string, container string, _ bool) error {
	members, ok := f.networks[name]
	if !ok {
		return errdefs.NotFound(errors.New("network " + name + " not found"))
	}
	if !members.Contains(container) {
		return errdefs.Forbidden(errors.New("container is not connected"))
	}
	members.Remove(container)
	return nil
}

func (f *fakeDocker) NetworkRemove(_ context.Context, name string) error {
	delete(f.networks, name)
	f.removed = append(f.removed, name)
	return nil
}

type containerizedNode struct {
	nodenet.Node
	container string
}

func (n containerizedNode) Container() string {
	return n.container
}

func TestDockerLinkerNetworkName(t *testing.T) {
	require := require.New(t)

	nodes := simnet.New(2, nil).Nodes()
	linker := NewDockerLinkerWithClient(logging.NoLog{}, newFakeDocker(), "run1")
	require.Equal("run1-node-0-node-1", linker.NetworkName(nodes[0], nodes[1]))
	require.Equal("run1-node-0-node-1", linker.NetworkName(nodes[1], nodes[0]))
}

func TestDockerLinkerLinkUnlink(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	nodes := simnet.New(2, nil).Nodes()
	a := containerizedNode{Node: nodes[0], container: "blockprop-node-0"}
	b := nodes[1]
	docker := newFakeDocker()
	linker := NewDockerLinkerWithClient(logging.NoLog{}, docker, "run1")

	require.NoError(linker.Link(ctx, a, b))
	require.NoError(linker.Link(ctx, a, b))
	require.Equal(1, docker.creates)
	require.Equal(set.Of("blockprop-node-0", "node-1"), docker.networks["run1-node-0-node-1"])

	require.NoError(linker.Unlink(ctx, a, b))
	require.NoError(linker.Unlink(ctx, b, a))
	require.Zero(docker.networks["run1-node-0-node-1"].Len())

	require.NoError(linker.Close(ctx))
	require.Equal([]string{"run1-node-0-node-1"}, docker.removed)
	require.Empty(docker.networks)
}

func TestDockerLinkerUnlinkMissingNetwork(t *testing.T) {
	nodes := simnet.New(2, nil).Nodes()
	linker := NewDockerLinkerWithClient(logging.NoLog{}, newFakeDocker(), "run1")
	err := linker.Unlink(context.Background(), nodes[0], nodes[1])
	require.ErrorIs(t, err, ErrMutationFailed)
	require.ErrorIs(t, err, errNoEdgeNetwork)
}

func TestDockerLinkerUnlinkStillShared(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	nodes := simnet.New(2, nil).Nodes()
	docker := newFakeDocker()
	docker.networks["provisioned"] = set.Of("node-0", "node-1")
	linker := NewDockerLinkerWithClient(logging.NoLog{}, docker, "run1")

	require.NoError(linker.Link(ctx, nodes[0], nodes[1]))
	err := linker.Unlink(ctx, nodes[0], nodes[1])
	require.ErrorIs(err, ErrMutationFailed)
	require.ErrorIs(err, errStillShared)
	require.ErrorContains(err, "[provisioned]")
}

func TestDockerLinkerCreateFailure(t *testing.T) {
	require := require.New(t)

	nodes := simnet.New(2, nil).Nodes()
	docker := newFakeDocker()
	docker.createErr = errDaemon
	linker := NewDockerLinkerWithClient(logging.NoLog{}, docker, "run1")

	err := linker.Link(context.Background(), nodes[0], nodes[1])
	require.ErrorIs(err, errDaemon)

	require.NoError(linker.Close(context.Background()))
	require.Empty(docker.removed)
}

func TestControllerWithDockerLinker(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	nodes := simnet.New(3, nil).Nodes()
	docker := newFakeDocker()
	linker := NewDockerLinkerWithClient(logging.NoLog{}, docker, "run1")

	c, err := New(logging.NoLog{}, nodes, FullMesh(3), linker, nil)
	require.NoError(err)
	require.NoError(c.Establish(ctx))
	require.Equal(3, docker.creates)

	require.NoError(c.Disconnect(ctx, 0, 1))
	require.False(docker.share("node-0", "node-1"))
	require.True(docker.share("node-0", "node-2"))
	require.True(docker.share("node-1", "node-2"))

	require.NoError(c.Connect(ctx, 0, 1))
	require.Equal(set.Of("node-0", "node-1"), docker.networks["run1-node-0-node-1"])
}

func TestControllerWithDockerLinkerSharedNetwork(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	nodes := simnet.New(3, nil).Nodes()
	docker := newFakeDocker()
	docker.networks["provisioned"] = set.Of("node-0", "node-1", "node-2")
	linker := NewDockerLinkerWithClient(logging.NoLog{}, docker, "run1")

	c, err := New(logging.NoLog{}, nodes, FullMesh(3), linker, nil)
	require.NoError(err)
	require.NoError(c.Establish(ctx))

	err = c.Disconnect(ctx, 0, 1)
	require.ErrorIs(err, ErrMutationFailed)
	require.ErrorIs(err, errStillShared)
	require.True(c.Graph().Connected(0, 1))
}
