package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentKind 笔记内容的形态
type ContentKind int

const (
	ContentEmpty     ContentKind = iota // 尚无内容
	ContentLegacy                       // 旧版：单个字符串
	ContentVersioned                    // 版本列表，最新在前
)

// Content 笔记内容
// 持久化数据中 markdown 字段可能是字符串（旧版）或版本数组，解码时区分两种形态
type Content struct {
	kind     ContentKind
	legacy   string
	versions []ContentVersion
}

// LegacyContent 构造旧版单值内容
func LegacyContent(body string) Content {
	if body == "" {
		return Content{}
	}
	return Content{kind: ContentLegacy, legacy: body}
}

// VersionedContent 构造版本列表内容
func VersionedContent(versions []ContentVersion) Content {
	if len(versions) == 0 {
		return Content{}
	}
	return Content{kind: ContentVersioned, versions: append([]ContentVersion(nil), versions...)}
}

// Kind 返回内容形态
func (c Content) Kind() ContentKind {
	return c.kind
}

// Legacy 返回旧版单值内容
func (c Content) Legacy() string {
	return c.legacy
}

// Versions 返回版本列表的拷贝，最新在前
func (c Content) Versions() []ContentVersion {
	return append([]ContentVersion(nil), c.versions...)
}

// Latest 返回最新的内容文本
func (c Content) Latest() string {
	switch c.kind {
	case ContentLegacy:
		return c.legacy
	case ContentVersioned:
		return c.versions[0].Content
	}
	return ""
}

// IsEmpty 是否没有任何内容
func (c Content) IsEmpty() bool {
	return c.kind == ContentEmpty
}

// Clone 深拷贝
func (c Content) Clone() Content {
	out := c
	out.versions = append([]ContentVersion(nil), c.versions...)
	return out
}

// MarshalJSON 旧版内容编码为字符串，版本列表编码为数组
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ContentLegacy:
		return json.Marshal(c.legacy)
	case ContentVersioned:
		return json.Marshal(c.versions)
	}
	return []byte(`""`), nil
}

// UnmarshalJSON 兼容 null、字符串和数组三种形态
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var body string
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return err
		}
		*c = LegacyContent(body)
		return nil
	case '[':
		var versions []ContentVersion
		if err := json.Unmarshal(trimmed, &versions); err != nil {
			return err
		}
		*c = VersionedContent(versions)
		return nil
	}
	return fmt.Errorf("无法解析 markdown 字段: %s", string(trimmed))
}
