package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// 文档在内部统一表示为 JSON 解码后的 map[string]any，
// 数值一律是 float64，比较前必须先做同样的归一化

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("归一化文档值失败: %w", err)
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("归一化文档值失败: %w", err)
	}

	return out, nil
}

func normalizeDoc(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}

	doc, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("文档必须是对象，实际为 %T", n)
	}

	return doc, nil
}

// applyField 按 "/" 分隔的字段路径写入一个值，nil 删除子树
// 中间节点不是对象时整个替换为对象
func applyField(doc map[string]any, fieldPath string, value any) {
	parts := strings.Split(fieldPath, "/")

	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}

	last := parts[len(parts)-1]
	if value == nil {
		delete(cur, last)
		return
	}

	cur[last] = value
}

// lookupField 读取字段路径的当前值，不存在时返回 nil
func lookupField(doc map[string]any, fieldPath string) any {
	parts := strings.Split(fieldPath, "/")

	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}

	return cur
}

// checkGuard 校验条件提交的前置值，全部一致才允许写入
func checkGuard(doc map[string]any, guard map[string]any) error {
	for fieldPath, want := range guard {
		normWant, err := normalize(want)
		if err != nil {
			return err
		}

		got := lookupField(doc, fieldPath)
		if !reflect.DeepEqual(got, normWant) {
			return ErrConflict
		}
	}

	return nil
}

// applyFields 把一组合并更新应用到文档上
func applyFields(doc map[string]any, fields map[string]any) error {
	for fieldPath, value := range fields {
		if value == nil {
			applyField(doc, fieldPath, nil)
			continue
		}

		norm, err := normalize(value)
		if err != nil {
			return err
		}

		applyField(doc, fieldPath, norm)
	}

	return nil
}
