package store

import (
	"net/url"
	"path"
	"strings"

	"note-tracker/app/model"

	"golang.org/x/text/unicode/norm"
)

// PlaceholderTitle 无法推导标题时使用的占位标题
const PlaceholderTitle = "untitled"

// legacyPlaceholders 旧版本写入的占位标题，标题规范化时会被重新推导
var legacyPlaceholders = map[string]bool{
	PlaceholderTitle: true,
	"未命名笔记":          true,
	"未命名":            true,
}

// DeriveTitle 根据提交参数推导任务标题
// 优先使用资源地址中的文件名（去掉扩展名），其次是显式标题和模型名
func DeriveTitle(params model.SubmissionParameters) string {
	if stem := fileStem(params.Locator()); stem != "" {
		return stem
	}
	if title := strings.TrimSpace(params.Title); title != "" {
		return title
	}
	if modelName := strings.TrimSpace(params.ModelName); modelName != "" {
		return modelName
	}
	return PlaceholderTitle
}

func fileStem(locator string) string {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return ""
	}

	p := strings.ReplaceAll(locator, "\\", "/")
	if u, err := url.Parse(locator); err == nil && u.Host != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}

	base := path.Base(p)
	return strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base)))
}

// normalizeTitle 规范化标题，返回规范化后的标题
func normalizeTitle(task model.Task) string {
	title := strings.TrimSpace(norm.NFC.String(task.AudioMeta.Title))
	if title == "" || legacyPlaceholders[title] {
		return DeriveTitle(task.FormData)
	}
	return title
}
