package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/config"
)

// GiftThankerName 礼物答谢插件名
const GiftThankerName = "gift_thanker"

// GiftThanker 收到礼物时按模板回复答谢
//
// 模板字段取自 event.Gift，例如 {{.Uname}} {{.Count}} {{.GiftName}}。
type GiftThanker struct {
	mu   sync.RWMutex
	cfg  config.GiftThankerConfig
	tmpl *template.Template
}

// NewGiftThanker 创建礼物答谢插件
func NewGiftThanker(cfg config.GiftThankerConfig) (*GiftThanker, error) {
	g := &GiftThanker{}
	if err := g.SetConfig(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Name 插件名
func (g *GiftThanker) Name() string {
	return GiftThankerName
}

// Config 当前配置
func (g *GiftThanker) Config() config.GiftThankerConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// SetConfig 运行时更新配置，模板非法时保持原配置
func (g *GiftThanker) SetConfig(cfg config.GiftThankerConfig) error {
	if cfg.Template == "" {
		cfg.Template = config.DefaultThankTemplate
	}
	tmpl, err := template.New(GiftThankerName).Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return fmt.Errorf("parse thank template: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	g.tmpl = tmpl
	return nil
}

// Process 只处理礼物事件
func (g *GiftThanker) Process(_ context.Context, ev event.Event) ([]string, error) {
	if ev.Kind != event.KindGift || ev.Gift == nil {
		return nil, nil
	}

	g.mu.RLock()
	enabled, tmpl := g.cfg.Enabled, g.tmpl
	g.mu.RUnlock()

	if !enabled {
		return nil, nil
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, ev.Gift); err != nil {
		return nil, fmt.Errorf("render thank template: %w", err)
	}
	return []string{sb.String()}, nil
}
