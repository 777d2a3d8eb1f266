//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

// LinuxProvisioner Linux 網路配置器
type LinuxProvisioner struct {
	BaseProvisioner
	link netlink.Link
}

func newPlatformProvisioner(interfaceName string, logger *zap.Logger) NetworkProvisioner {
	return &LinuxProvisioner{
		BaseProvisioner: BaseProvisioner{
			InterfaceName: interfaceName,
			Logger:        logger,
		},
	}
}

func (p *LinuxProvisioner) resolveLink() (netlink.Link, error) {
	if p.link != nil {
		return p.link, nil
	}
	link, err := netlink.LinkByName(p.InterfaceName)
	if err != nil {
		return nil, fmt.Errorf("找不到網路介面 %s: %w", p.InterfaceName, err)
	}
	p.link = link
	return link, nil
}

// Setup 加入位址 (使用 netlink)
func (p *LinuxProvisioner) Setup(ctx context.Context, addrs []*net.IPNet) error {
	if err := p.Validate(addrs); err != nil {
		return err
	}

	link, err := p.resolveLink()
	if err != nil {
		return err
	}

	p.Logger.Info("正在設置監聽位址",
		zap.String("interface", p.InterfaceName),
		zap.Int("count", len(addrs)),
	)

	successCount := 0
	for _, ipNet := range addrs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet}); err != nil {
			// 位址已存在視為成功，但不列入移除清單
			if errors.Is(err, syscall.EEXIST) {
				p.Logger.Debug("位址已存在", zap.Stringer("addr", ipNet))
				successCount++
				continue
			}
			p.Logger.Warn("添加位址失敗",
				zap.Stringer("addr", ipNet),
				zap.Error(err),
			)
			continue
		}

		successCount++
		p.Configured = append(p.Configured, ipNet)
		p.Logger.Debug("已添加位址", zap.Stringer("addr", ipNet))
	}

	p.Logger.Info("監聽位址設置完成",
		zap.Int("success", successCount),
		zap.Int("total", len(addrs)),
	)

	if successCount == 0 && len(addrs) > 0 {
		return fmt.Errorf("沒有任何位址設置成功")
	}
	return nil
}

// Teardown 移除位址
func (p *LinuxProvisioner) Teardown(ctx context.Context, addrs []*net.IPNet) error {
	link, err := p.resolveLink()
	if err != nil {
		return err
	}

	targets := p.teardownTargets(addrs)
	p.Logger.Info("正在移除監聽位址",
		zap.String("interface", p.InterfaceName),
		zap.Int("count", len(targets)),
	)

	var removed []*net.IPNet
	for _, ipNet := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := netlink.AddrDel(link, &netlink.Addr{IPNet: ipNet}); err != nil {
			p.Logger.Warn("移除位址失敗",
				zap.Stringer("addr", ipNet),
				zap.Error(err),
			)
			continue
		}

		removed = append(removed, ipNet)
		p.Logger.Debug("已移除位址", zap.Stringer("addr", ipNet))
	}

	p.forget(removed)

	p.Logger.Info("監聽位址移除完成", zap.Int("removed", len(removed)))
	return nil
}

// List 列出介面上的 IPv4 位址
func (p *LinuxProvisioner) List(ctx context.Context) ([]*net.IPNet, error) {
	link, err := p.resolveLink()
	if err != nil {
		return nil, err
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("列出位址失敗: %w", err)
	}

	nets := make([]*net.IPNet, 0, len(addrs))
	for _, addr := range addrs {
		nets = append(nets, addr.IPNet)
	}
	return nets, nil
}
