// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
	"github.com/ava-labs/blockprop/utils/set"
)

const (
	bridgeDriver = "bridge"
	runLabel     = "blockprop.run"
)

var (
	_ Linker = (*DockerLinker)(nil)

	errNoEdgeNetwork = errors.New("no edge network")
	errStillShared   = errors.New("containers still share a network")
)

// containerNode is implemented by nodes that run in a named container.
type containerNode interface {
	Container() string
}

func containerOf(node nodenet.Node) string {
	if c, ok := node.(containerNode); ok && len(c.Container()) > 0 {
		return c.Container()
	}
	return node.Name()
}

// DockerLinker links a pair of containers by attaching both of them to a
// bridge network dedicated to that pair. Unlinking detaches them from it,
// which leaves every other link of either container in place.
//
// Containers must not share any network besides their edge networks, so
// every initial link has to be created through Link before it can be
// removed.
type DockerLinker struct {
	log    logging.Logger
	client client.NetworkAPIClient
	prefix string

	lock    sync.Mutex
	created set.Set[string]
}

// NewDockerLinker returns a linker using a docker client configured from the
// environment. Edge networks are named after [prefix].
func NewDockerLinker(log logging.Logger, prefix string) (*DockerLinker, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerLinkerWithClient(log, cli, prefix), nil
}

func NewDockerLinkerWithClient(log logging.Logger, cli client.NetworkAPIClient, prefix string) *DockerLinker {
	return &DockerLinker{
		log:     log,
		client:  cli,
		prefix:  prefix,
		created: set.Set[string]{},
	}
}

// NetworkName returns the name of the edge network between [a] and [b].
func (d *DockerLinker) NetworkName(a, b nodenet.Node) string {
	first, second := a.Name(), b.Name()
	if first > second {
		first, second = second, first
	}
	return fmt.Sprintf("%s-%s-%s", d.prefix, first, second)
}

func (d *DockerLinker) Link(ctx context.Context, a, b nodenet.Node) error {
	name := d.NetworkName(a, b)
	if err := d.ensureNetwork(ctx, name); err != nil {
		return err
	}
	for _, node := range []nodenet.Node{a, b} {
		container := containerOf(node)
		err := d.client.NetworkConnect(ctx, name, container, &network.EndpointSettings{})
		if err != nil && !alreadyApplied(err) {
			return fmt.Errorf("failed to attach %s to %s: %w", container, name, err)
		}
	}
	d.log.Debug("linked containers",
		zap.String("network", name),
		zap.String("a", containerOf(a)),
		zap.String("b", containerOf(b)),
	)
	return nil
}

// Unlink detaches both containers from their edge network and fails unless
// that leaves them without any network in common.
func (d *DockerLinker) Unlink(ctx context.Context, a, b nodenet.Node) error {
	name := d.NetworkName(a, b)
	for _, node := range []nodenet.Node{a, b} {
		container := containerOf(node)
		err := d.client.NetworkDisconnect(ctx, name, container, true)
		switch {
		case err == nil, alreadyApplied(err):
		case client.IsErrNotFound(err):
			return fmt.Errorf("%w: %w %s", ErrMutationFailed, errNoEdgeNetwork, name)
		default:
			return fmt.Errorf("failed to detach %s from %s: %w", container, name, err)
		}
	}

	shared, err := d.sharedNetworks(ctx, containerOf(a), containerOf(b))
	if err != nil {
		return err
	}
	if len(shared) > 0 {
		return fmt.Errorf("%w: %w: %s and %s are attached to %v",
			ErrMutationFailed,
			errStillShared,
			containerOf(a),
			containerOf(b),
			shared,
		)
	}
	d.log.Debug("unlinked containers",
		zap.String("network", name),
		zap.String("a", containerOf(a)),
		zap.String("b", containerOf(b)),
	)
	return nil
}

// sharedNetworks returns the networks that both containers are attached to.
// Listing does not report attached containers, so every network is
// inspected.
func (d *DockerLinker) sharedNetworks(ctx context.Context, a, b string) ([]string, error) {
	networks, err := d.client.NetworkList(ctx, types.NetworkListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	var shared []string
	for _, listed := range networks {
		resource, err := d.client.NetworkInspect(ctx, listed.ID, types.NetworkInspectOptions{})
		if client.IsErrNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to inspect network %s: %w", listed.Name, err)
		}
		attached := set.NewSet[string](len(resource.Containers))
		for _, endpoint := range resource.Containers {
			attached.Add(endpoint.Name)
		}
		if attached.Contains(a) && attached.Contains(b) {
			shared = append(shared, resource.Name)
		}
	}
	return shared, nil
}

func (d *DockerLinker) ensureNetwork(ctx context.Context, name string) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	_, err := d.client.NetworkInspect(ctx, name, types.NetworkInspectOptions{})
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect network %s: %w", name, err)
	}

	_, err = d.client.NetworkCreate(ctx, name, types.NetworkCreate{
		CheckDuplicate: true,
		Driver:         bridgeDriver,
		Labels: map[string]string{
			runLabel: d.prefix,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	d.created.Add(name)
	d.log.Info("created edge network", zap.String("network", name))
	return nil
}

// Close removes every edge network created by the linker.
func (d *DockerLinker) Close(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	var errs []error
	for _, name := range set.Sorted(d.created) {
		if err := d.client.NetworkRemove(ctx, name); err != nil && !client.IsErrNotFound(err) {
			errs = append(errs, fmt.Errorf("failed to remove network %s: %w", name, err))
			continue
		}
		d.created.Remove(name)
	}
	return errors.Join(errs...)
}

// The daemon reports a forbidden operation when a container is already
// attached to, or already detached from, a network.
func alreadyApplied(err error) bool {
	return errdefs.IsForbidden(err) || errdefs.IsConflict(err)
}
