package main

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// NetworkProvisioner 網路配置器介面
//
// 在介面上加掛 Slave 的監聽位址 (例如模擬現場設備的 IP)。
type NetworkProvisioner interface {
	// Setup 加入位址
	Setup(ctx context.Context, addrs []*net.IPNet) error

	// Teardown 移除位址；addrs 為空時移除本次 Setup 加入的位址
	Teardown(ctx context.Context, addrs []*net.IPNet) error

	// List 列出介面上的位址
	List(ctx context.Context) ([]*net.IPNet, error)
}

// NewNetworkProvisioner 建立網路配置器
func NewNetworkProvisioner(interfaceName string, logger *zap.Logger) NetworkProvisioner {
	return newPlatformProvisioner(interfaceName, logger)
}

// BaseProvisioner 基礎配置器 (共用邏輯)
type BaseProvisioner struct {
	InterfaceName string
	Logger        *zap.Logger
	Configured    []*net.IPNet
}

// Validate 驗證位址
func (p *BaseProvisioner) Validate(addrs []*net.IPNet) error {
	for _, addr := range addrs {
		if addr == nil || addr.IP == nil {
			return fmt.Errorf("位址不可為空")
		}
		if addr.IP.IsUnspecified() || addr.IP.IsLoopback() {
			return fmt.Errorf("不可配置的位址: %s", addr)
		}
	}
	return nil
}

// teardownTargets 決定要移除的位址
func (p *BaseProvisioner) teardownTargets(addrs []*net.IPNet) []*net.IPNet {
	if len(addrs) > 0 {
		return addrs
	}
	return p.Configured
}

// forget 從已配置清單移除位址
func (p *BaseProvisioner) forget(removed []*net.IPNet) {
	kept := make([]*net.IPNet, 0, len(p.Configured))
	for _, c := range p.Configured {
		match := false
		for _, r := range removed {
			if c.IP.Equal(r.IP) {
				match = true
				break
			}
		}
		if !match {
			kept = append(kept, c)
		}
	}
	p.Configured = kept
}

// HostCovered 監聽主機是否為萬用位址或已在列表中
func HostCovered(host string, addrs []*net.IPNet) bool {
	ip := net.ParseIP(host)
	if host == "" || ip == nil || ip.IsUnspecified() || ip.IsLoopback() {
		return true
	}
	for _, addr := range addrs {
		if addr.IP.Equal(ip) {
			return true
		}
	}
	return false
}
