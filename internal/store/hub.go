package store

import (
	"sync"

	"go.uber.org/zap"
)

// 每个订阅者的待收缓冲，写满时丢弃最旧的快照
// 后来的快照总是更新的服务器状态，丢旧不丢新即可保序
const subscriberBuffer = 64

type hub struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func newHub() *hub {
	return &hub{
		subs: make(map[string][]*Subscription),
	}
}

// subscribe 注册订阅者并立即送达当前快照
func (h *hub) subscribe(path string, current Snapshot) *Subscription {
	sub := &Subscription{
		C: make(chan Snapshot, subscriberBuffer),
	}

	sub.cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		list := h.subs[path]
		for i, s := range list {
			if s == sub {
				h.subs[path] = append(list[:i], list[i+1:]...)
				close(sub.C)
				return
			}
		}
	}

	// 注册和首次送达在同一临界区内完成，保证首个快照
	// 一定不晚于后续任何提交
	h.mu.Lock()
	h.subs[path] = append(h.subs[path], sub)
	sub.C <- current
	h.mu.Unlock()

	return sub
}

// publish 向该路径的所有订阅者广播新快照
func (h *hub) publish(path string, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[path] {
		for {
			select {
			case sub.C <- snap:
			default:
				// 缓冲已满，丢掉最旧的再试
				select {
				case <-sub.C:
					zap.L().Warn(
						"订阅者处理过慢，丢弃最旧快照",
						zap.String("path", path),
					)
				default:
				}
				continue
			}
			break
		}
	}
}

// closeAll 关闭所有订阅，存储关闭时调用
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for path, list := range h.subs {
		for _, sub := range list {
			sub.cancel = nil
			close(sub.C)
		}
		delete(h.subs, path)
	}
}
