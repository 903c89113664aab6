package store

import (
	"encoding/json"
	"errors"
)

// 对外部同步文档服务的抽象，任何满足该契约的同步
// 键值/文档服务都可以作为后端
//
// 写入对写入者而言是 fire-and-forget 的：写入的效果只能
// 通过自己的订阅回环观察到，绝不能假设写完即可读
var (
	// 文档不存在
	ErrDocNotFound = errors.New("document not found")
	// 条件提交失败，说明有并发写入者抢先提交
	ErrConflict = errors.New("document write conflict")
)

// Snapshot 是某一次已提交变更后的完整文档，nil Data 表示文档已删除
type Snapshot struct {
	Data json.RawMessage
}

// Exists 报告快照对应的文档是否存在
func (s Snapshot) Exists() bool {
	return s.Data != nil
}

// Decode 把快照解码到 dest，文档不存在时返回 ErrDocNotFound
func (s Snapshot) Decode(dest any) error {
	if s.Data == nil {
		return ErrDocNotFound
	}

	return json.Unmarshal(s.Data, dest)
}

// Subscription 是对单个文档路径的订阅
// C 上按提交顺序送达每次变更后的完整快照，订阅建立时
// 立即送达一次当前值（文档不存在时送达 nil 快照）
type Subscription struct {
	C chan Snapshot

	cancel func()
}

// Cancel 取消订阅并关闭 C
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Store 是同步文档存储的契约
//
// fields 的键是 "/" 分隔的字段路径（如 "votes/Ana"），值为 nil
// 表示删除该子树，这是合并更新而不是整体替换
type Store interface {
	// Create 写入整个文档（覆盖语义）
	Create(path string, value any) error

	// Read 读取整个文档，不存在时返回 false
	Read(path string, dest any) (bool, error)

	// WriteFields 合并更新，文档不存在时返回 ErrDocNotFound
	WriteFields(path string, fields map[string]any) error

	// WriteFieldsIf 条件合并更新：guard 中每个字段路径的当前值
	// 必须与给定值一致，否则返回 ErrConflict 且不发生任何写入
	WriteFieldsIf(path string, guard map[string]any, fields map[string]any) error

	// AppendChild 在文档的某个子集合下追加一条记录，
	// 键由存储生成，避免多客户端并发追加时互相覆盖
	AppendChild(path string, field string, value any) (string, error)

	// Delete 删除文档，订阅者会收到 nil 快照
	Delete(path string) error

	// Subscribe 订阅文档路径
	Subscribe(path string) *Subscription

	Close() error
}
