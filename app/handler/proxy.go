package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"note-tracker/app/config"
	"note-tracker/app/logger"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// localHostnames 指向本机的图片地址，/static/ 下的文件直接从静态目录读取
var localHostnames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
}

var (
	imageExtRe   = regexp.MustCompile(`(?i)^(.*?\.(?:jpg|jpeg|png|gif|webp|svg))(?:[?#].*)?$`)
	trailingJunk = regexp.MustCompile(`-{3,}.*$`)
)

// cachedImage 缓存的图片内容
type cachedImage struct {
	contentType string
	body        []byte
}

// ProxyHandler 图片代理处理器，为笔记中的外链图片补上 Referer
type ProxyHandler struct {
	client    *resty.Client
	goCache   *cache.Cache
	referer   string
	staticDir string
	log       *logger.Logger
}

// NewProxyHandler 创建图片代理处理器
func NewProxyHandler(cfg config.ProxyConfig, log *logger.Logger) *ProxyHandler {
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	client.SetHeader("User-Agent", "BiliNote-Proxy/1.0")

	// 缓存过期时间使用配置，清理间隔为10分钟
	cacheExpiration := time.Duration(cfg.CacheMinutes) * time.Minute

	return &ProxyHandler{
		client:    client,
		goCache:   cache.New(cacheExpiration, 10*time.Minute),
		referer:   cfg.Referer,
		staticDir: cfg.StaticDir,
		log:       log,
	}
}

// Close 释放底层连接
func (h *ProxyHandler) Close() error {
	return h.client.Close()
}

// cleanImageURL 去掉图片地址后面多余的后缀（如 markdown 锚点、'---'）
func cleanImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := imageExtRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return trailingJunk.ReplaceAllString(raw, "")
}

// ProxyImage 代理获取图片
func (h *ProxyHandler) ProxyImage(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		fail(c, http.StatusBadRequest, "缺少 url 参数")
		return
	}

	// 前端可能对地址做了二次编码
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}

	target := cleanImageURL(raw)
	parsed, err := url.Parse(target)
	if err != nil {
		fail(c, http.StatusBadRequest, "无效的图片地址")
		return
	}

	if parsed.Scheme == "" {
		if file := h.staticFile(parsed.Path); file != "" {
			h.writeFile(c, file)
			return
		}
		fail(c, http.StatusBadRequest, "无效的图片地址或本地文件不存在")
		return
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		fail(c, http.StatusBadRequest, "无效的图片地址")
		return
	}
	if localHostnames[parsed.Hostname()] {
		if file := h.staticFile(parsed.Path); file != "" {
			h.writeFile(c, file)
			return
		}
	}

	if cached, ok := h.goCache.Get(target); ok {
		h.writeImage(c, cached.(cachedImage))
		return
	}

	resp, err := h.client.R().
		SetContext(c.Request.Context()).
		SetHeader("Referer", h.referer).
		Get(target)
	if err != nil {
		h.log.Warnf("代理图片请求失败: %s, 错误: %v", target, err)
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	if resp.IsError() {
		fail(c, http.StatusBadGateway, fmt.Sprintf("Upstream status %d", resp.StatusCode()))
		return
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	img := cachedImage{contentType: contentType, body: resp.Bytes()}
	h.goCache.SetDefault(target, img)
	h.writeImage(c, img)
}

// staticFile 将 /static/ 路径映射到静态目录下的文件，不存在或越出目录时返回空
func (h *ProxyHandler) staticFile(p string) string {
	if h.staticDir == "" {
		return ""
	}

	cleaned := path.Clean("/" + p)
	rel, ok := strings.CutPrefix(cleaned, "/static/")
	if !ok || rel == "" {
		return ""
	}

	file := filepath.Join(h.staticDir, filepath.FromSlash(rel))
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return file
}

func (h *ProxyHandler) writeImage(c *gin.Context, img cachedImage) {
	setImageHeaders(c)
	c.Data(http.StatusOK, img.contentType, img.body)
}

func (h *ProxyHandler) writeFile(c *gin.Context, file string) {
	setImageHeaders(c)
	c.File(file)
}

func setImageHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Cache-Control", "public, max-age=86400")
}
