//go:build !linux

package main

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStubProvisioner_PartialTeardown(t *testing.T) {
	ctx := context.Background()
	p := NewNetworkProvisioner("eth0", zap.NewNop())

	a := mustCIDR(t, "10.0.0.5/24")
	b := mustCIDR(t, "10.0.0.6/24")
	require.NoError(t, p.Setup(ctx, []*net.IPNet{a, b}))

	require.NoError(t, p.Teardown(ctx, []*net.IPNet{a}))

	listed, err := p.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, listed, b)
	assert.NotContains(t, listed, a)

	require.NoError(t, p.Teardown(ctx, nil))
	listed, err = p.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, listed, b)
}
