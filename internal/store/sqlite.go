package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore 把文档落到本地 SQLite，进程重启后房间仍在
// 订阅机制与内存实现共用同一个 hub
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB

	hub *hub
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("数据库路径不能为空")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 失败: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("配置 SQLite 失败: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		body BLOB NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		hub: newHub(),
	}, nil
}

func (ss *SQLiteStore) readDocLocked(path string) (map[string]any, bool, error) {
	var body []byte

	err := ss.db.QueryRow(
		`SELECT body FROM documents WHERE path = ?`, path,
	).Scan(&body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取文档失败: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, fmt.Errorf("解码文档失败: %w", err)
	}

	return doc, true, nil
}

func (ss *SQLiteStore) writeDocLocked(path string, doc map[string]any) (Snapshot, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("编码文档失败: %w", err)
	}

	_, err = ss.db.Exec(
		`INSERT INTO documents(path, body) VALUES(?, ?)
		 ON CONFLICT(path) DO UPDATE SET body = excluded.body`,
		path, body,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("写入文档失败: %w", err)
	}

	return Snapshot{Data: body}, nil
}

func (ss *SQLiteStore) Create(path string, value any) error {
	doc, err := normalizeDoc(value)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	snap, err := ss.writeDocLocked(path, doc)
	if err != nil {
		return err
	}

	ss.hub.publish(path, snap)

	return nil
}

func (ss *SQLiteStore) Read(path string, dest any) (bool, error) {
	ss.mu.Lock()
	doc, ok, err := ss.readDocLocked(path)
	ss.mu.Unlock()

	if err != nil || !ok {
		return false, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}

	return true, nil
}

func (ss *SQLiteStore) WriteFields(path string, fields map[string]any) error {
	return ss.WriteFieldsIf(path, nil, fields)
}

func (ss *SQLiteStore) WriteFieldsIf(path string, guard map[string]any, fields map[string]any) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	doc, ok, err := ss.readDocLocked(path)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDocNotFound
	}

	if err := checkGuard(doc, guard); err != nil {
		return err
	}

	if err := applyFields(doc, fields); err != nil {
		return err
	}

	snap, err := ss.writeDocLocked(path, doc)
	if err != nil {
		return err
	}

	ss.hub.publish(path, snap)

	return nil
}

func (ss *SQLiteStore) AppendChild(path string, field string, value any) (string, error) {
	key := pushKey()

	err := ss.WriteFields(path, map[string]any{
		field + "/" + key: value,
	})
	if err != nil {
		return "", err
	}

	return key, nil
}

func (ss *SQLiteStore) Delete(path string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, err := ss.db.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}

	ss.hub.publish(path, Snapshot{})

	return nil
}

func (ss *SQLiteStore) Subscribe(path string) *Subscription {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	doc, ok, err := ss.readDocLocked(path)
	if err != nil || !ok {
		return ss.hub.subscribe(path, Snapshot{})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return ss.hub.subscribe(path, Snapshot{})
	}

	return ss.hub.subscribe(path, Snapshot{Data: data})
}

func (ss *SQLiteStore) Close() error {
	ss.hub.closeAll()
	return ss.db.Close()
}
