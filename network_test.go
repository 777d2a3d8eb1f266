package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatal(err)
	}
	ipNet.IP = ip
	return ipNet
}

func TestBaseProvisioner_Validate(t *testing.T) {
	p := &BaseProvisioner{}

	assert.NoError(t, p.Validate([]*net.IPNet{mustCIDR(t, "192.168.1.50/24")}))
	assert.Error(t, p.Validate([]*net.IPNet{nil}))
	assert.Error(t, p.Validate([]*net.IPNet{mustCIDR(t, "127.0.0.2/8")}))
	assert.Error(t, p.Validate([]*net.IPNet{mustCIDR(t, "0.0.0.0/0")}))
}

func TestBaseProvisioner_TeardownTargets(t *testing.T) {
	configured := []*net.IPNet{mustCIDR(t, "10.0.0.5/24")}
	p := &BaseProvisioner{Configured: configured}

	assert.Equal(t, configured, p.teardownTargets(nil))

	explicit := []*net.IPNet{mustCIDR(t, "10.0.0.6/24")}
	assert.Equal(t, explicit, p.teardownTargets(explicit))
}

func TestBaseProvisioner_Forget(t *testing.T) {
	a := mustCIDR(t, "10.0.0.5/24")
	b := mustCIDR(t, "10.0.0.6/24")
	c := mustCIDR(t, "10.0.0.7/24")
	p := &BaseProvisioner{Configured: []*net.IPNet{a, b, c}}

	p.forget([]*net.IPNet{mustCIDR(t, "10.0.0.6/24")})
	assert.Equal(t, []*net.IPNet{a, c}, p.Configured)

	p.forget(p.teardownTargets(nil))
	assert.Empty(t, p.Configured)
}

func TestHostCovered(t *testing.T) {
	addrs := []*net.IPNet{mustCIDR(t, "192.168.1.50/24")}

	tests := []struct {
		host string
		want bool
	}{
		{"", true},
		{"0.0.0.0", true},
		{"127.0.0.1", true},
		{"192.168.1.50", true},
		{"192.168.1.51", false},
		{"plc.local", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, HostCovered(tt.host, addrs))
		})
	}
}
