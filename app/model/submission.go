package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SubmissionMode 提交方式
type SubmissionMode string

const (
	SubmissionModeLocal SubmissionMode = "local" // 本地上传的文件
	SubmissionModeURL   SubmissionMode = "url"   // 单个远程链接
	SubmissionModeBatch SubmissionMode = "batch" // 多个远程链接
)

// SubmissionParameters 生成笔记的提交参数
type SubmissionParameters struct {
	Mode               SubmissionMode `json:"mode,omitempty" validate:"omitempty,oneof=local url batch"`
	VideoURL           string         `json:"video_url,omitempty" validate:"omitempty,url"`
	FilePath           string         `json:"file_path,omitempty"`
	VideoURLs          []string       `json:"video_urls,omitempty" validate:"omitempty,dive,url"`
	Platform           string         `json:"platform" validate:"required"`
	Quality            string         `json:"quality,omitempty" validate:"omitempty,oneof=fast medium slow"`
	ModelName          string         `json:"model_name,omitempty"`
	ProviderID         string         `json:"provider_id,omitempty"`
	Style              string         `json:"style,omitempty"`
	Format             []string       `json:"format,omitempty"`
	Extras             string         `json:"extras,omitempty"`
	Screenshot         bool           `json:"screenshot,omitempty"`
	Link               bool           `json:"link,omitempty"`
	VideoUnderstanding bool           `json:"video_understanding,omitempty"`
	VideoInterval      int            `json:"video_interval,omitempty" validate:"gte=0"`
	GridSize           []int          `json:"grid_size,omitempty"`
	Title              string         `json:"title,omitempty"`
}

var validate = validator.New()

// ResolvedMode 返回提交方式，未显式指定时根据已填写的字段推断
func (p SubmissionParameters) ResolvedMode() SubmissionMode {
	if p.Mode != "" {
		return p.Mode
	}
	switch {
	case len(p.VideoURLs) > 0:
		return SubmissionModeBatch
	case p.FilePath != "":
		return SubmissionModeLocal
	}
	return SubmissionModeURL
}

// Locator 返回当前提交方式下的资源地址
func (p SubmissionParameters) Locator() string {
	switch p.ResolvedMode() {
	case SubmissionModeLocal:
		return p.FilePath
	case SubmissionModeBatch:
		if len(p.VideoURLs) > 0 {
			return p.VideoURLs[0]
		}
		return ""
	}
	return p.VideoURL
}

// Validate 校验提交参数
func (p SubmissionParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	switch p.ResolvedMode() {
	case SubmissionModeLocal:
		if p.FilePath == "" {
			return fmt.Errorf("本地文件模式缺少 file_path")
		}
	case SubmissionModeURL:
		if p.VideoURL == "" {
			return fmt.Errorf("链接模式缺少 video_url")
		}
	case SubmissionModeBatch:
		if len(p.VideoURLs) == 0 {
			return fmt.Errorf("批量模式缺少 video_urls")
		}
	}
	return nil
}

// Clone 深拷贝
func (p SubmissionParameters) Clone() SubmissionParameters {
	out := p
	out.VideoURLs = append([]string(nil), p.VideoURLs...)
	out.Format = append([]string(nil), p.Format...)
	out.GridSize = append([]int(nil), p.GridSize...)
	return out
}
