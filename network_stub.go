//go:build !linux

package main

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// StubProvisioner 非 Linux 平台的 stub 配置器
type StubProvisioner struct {
	BaseProvisioner
}

func newPlatformProvisioner(interfaceName string, logger *zap.Logger) NetworkProvisioner {
	return &StubProvisioner{
		BaseProvisioner: BaseProvisioner{
			InterfaceName: interfaceName,
			Logger:        logger,
		},
	}
}

// Setup 只記錄位址 (stub)
func (p *StubProvisioner) Setup(ctx context.Context, addrs []*net.IPNet) error {
	if err := p.Validate(addrs); err != nil {
		return err
	}

	p.Logger.Warn("監聽位址配置僅在 Linux 上支援，使用模擬模式",
		zap.String("interface", p.InterfaceName),
		zap.Int("count", len(addrs)),
	)

	p.Configured = append(p.Configured, addrs...)
	return nil
}

// Teardown 移除位址 (stub)
func (p *StubProvisioner) Teardown(ctx context.Context, addrs []*net.IPNet) error {
	p.Logger.Warn("監聽位址移除僅在 Linux 上支援，使用模擬模式",
		zap.String("interface", p.InterfaceName),
		zap.Int("count", len(p.teardownTargets(addrs))),
	)

	p.forget(p.teardownTargets(addrs))
	return nil
}

// List 列出本機 IPv4 位址與模擬配置的位址 (stub)
func (p *StubProvisioner) List(ctx context.Context) ([]*net.IPNet, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("取得本地 IP 失敗: %w", err)
	}

	var nets []*net.IPNet
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			nets = append(nets, ipNet)
		}
	}

	return append(nets, p.Configured...), nil
}
