package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray 字符串数组类型,以 JSON 文本存储在单列中
type StringArray []string

// Scan 实现 sql.Scanner 接口
func (sa *StringArray) Scan(value interface{}) error {
	if value == nil {
		*sa = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal StringArray value: %v", value)
	}

	// 处理空字符串
	if len(bytes) == 0 {
		*sa = []string{}
		return nil
	}

	return json.Unmarshal(bytes, sa)
}

// Value 实现 driver.Valuer 接口
func (sa StringArray) Value() (driver.Value, error) {
	if len(sa) == 0 {
		return "[]", nil
	}
	return json.Marshal(sa)
}

// Contains 判断数组中是否包含指定元素
func (sa StringArray) Contains(s string) bool {
	for _, v := range sa {
		if v == s {
			return true
		}
	}
	return false
}

// Remove 返回去掉指定元素后的新数组,保持原有顺序
func (sa StringArray) Remove(s string) StringArray {
	out := make(StringArray, 0, len(sa))
	for _, v := range sa {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// TagMap 标签集合类型,键区分大小写,以 JSON 文本存储在单列中
type TagMap map[string]string

// Scan 实现 sql.Scanner 接口
func (tm *TagMap) Scan(value interface{}) error {
	if value == nil {
		*tm = TagMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal TagMap value: %v", value)
	}

	if len(bytes) == 0 {
		*tm = TagMap{}
		return nil
	}

	return json.Unmarshal(bytes, tm)
}

// Value 实现 driver.Valuer 接口
func (tm TagMap) Value() (driver.Value, error) {
	if len(tm) == 0 {
		return "{}", nil
	}
	return json.Marshal(tm)
}

// Clone 返回标签集合的浅拷贝
func (tm TagMap) Clone() TagMap {
	out := make(TagMap, len(tm))
	for k, v := range tm {
		out[k] = v
	}
	return out
}
