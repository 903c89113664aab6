package store

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore 是进程内的文档存储实现，供测试和单机部署使用
// 文档路径到 JSON 对象的映射，一把锁保护全部文档
//
// 广播在持有文档锁时进行，保证每个订阅者按提交顺序收到快照
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]map[string]any

	hub *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]any),
		hub:  newHub(),
	}
}

func (ms *MemoryStore) snapshotLocked(path string) Snapshot {
	doc, ok := ms.docs[path]
	if !ok {
		return Snapshot{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		// 文档来自 JSON 归一化，不应出现
		return Snapshot{}
	}

	return Snapshot{Data: data}
}

func (ms *MemoryStore) Create(path string, value any) error {
	doc, err := normalizeDoc(value)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.docs[path] = doc
	ms.hub.publish(path, ms.snapshotLocked(path))

	return nil
}

func (ms *MemoryStore) Read(path string, dest any) (bool, error) {
	ms.mu.Lock()
	snap := ms.snapshotLocked(path)
	ms.mu.Unlock()

	if !snap.Exists() {
		return false, nil
	}

	if err := json.Unmarshal(snap.Data, dest); err != nil {
		return false, err
	}

	return true, nil
}

func (ms *MemoryStore) WriteFields(path string, fields map[string]any) error {
	return ms.WriteFieldsIf(path, nil, fields)
}

func (ms *MemoryStore) WriteFieldsIf(path string, guard map[string]any, fields map[string]any) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	doc, ok := ms.docs[path]
	if !ok {
		return ErrDocNotFound
	}

	if err := checkGuard(doc, guard); err != nil {
		return err
	}

	if err := applyFields(doc, fields); err != nil {
		return err
	}

	ms.hub.publish(path, ms.snapshotLocked(path))

	return nil
}

func (ms *MemoryStore) AppendChild(path string, field string, value any) (string, error) {
	key := pushKey()

	err := ms.WriteFields(path, map[string]any{
		field + "/" + key: value,
	})
	if err != nil {
		return "", err
	}

	return key, nil
}

func (ms *MemoryStore) Delete(path string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.docs, path)
	ms.hub.publish(path, Snapshot{})

	return nil
}

func (ms *MemoryStore) Subscribe(path string) *Subscription {
	// 与写入同一临界区，首个快照与后续提交之间不会漏档
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.hub.subscribe(path, ms.snapshotLocked(path))
}

func (ms *MemoryStore) Close() error {
	ms.hub.closeAll()
	return nil
}

// pushKey 生成存储侧的追加键
// uuid v7 自带时间前缀，键的字典序即追加顺序
func pushKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
