package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/services/quorum"
)

// defaultDebounce 连续写入合并窗口
const defaultDebounce = 100 * time.Millisecond

// PolicyApplier 接收新的法定人数策略（通常为 Engine.SetQuorumPolicy）
type PolicyApplier func(quorum.Policy) error

// Watcher 监听配置文件，热加载 [quorum] 段
//
// 只有法定人数策略支持热加载，其他字段修改需重启节点。
type Watcher struct {
	path     string
	base     quorum.Policy
	apply    PolicyApplier
	logger   log.Logger
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	current quorum.Policy
}

// NewWatcher 创建配置监听器，base 为启动时生效的策略
func NewWatcher(path string, base quorum.Policy, apply PolicyApplier, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{
		path:     path,
		base:     base,
		apply:    apply,
		logger:   logger.With("component", "config-watcher", "path", path),
		debounce: defaultDebounce,
		current:  base,
	}
}

// Current 当前生效的策略
func (w *Watcher) Current() quorum.Policy {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run 监听配置文件所在目录直到 ctx 取消
//
// 监听目录而非文件本身，编辑器的 rename-and-replace 写入方式也能被捕获。
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.Reload(); err != nil {
			w.logger.Error("reload failed, keeping previous quorum policy", "error", err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Reload 读取配置文件并应用其中的法定人数策略，策略未变化时不调用 apply
func (w *Watcher) Reload() error {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		return err
	}
	policy := fc.Quorum.Policy(w.base)
	if err := policy.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if policy == w.current {
		return nil
	}
	if err := w.apply(policy); err != nil {
		return err
	}
	w.logger.Info("quorum policy reloaded", "previous", w.current.String(), "policy", policy.String())
	w.current = policy
	return nil
}
