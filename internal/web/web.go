// Package web はブラウザ向けのオフライン対応画面（静的アセットとService Worker）を配信する。
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"text/template"
)

//go:embed assets/*
var assetsFS embed.FS

// DefaultCacheName はオフラインキャッシュの既定名。
// アセットを変更したリリースでは名前を変え、古いキャッシュを破棄させる。
const DefaultCacheName = "packman-shell-v1"

// ShellAssets はService Workerが事前にキャッシュするパス。
var ShellAssets = []string{
	"/",
	"/app.js",
	"/style.css",
	"/manifest.json",
	"/icon.svg",
}

// Shell は画面アセットを配信するhttp.Handler。
type Shell struct {
	files    http.Handler
	worker   []byte
	manifest []byte
}

// NewShell はShellを生成する。cacheNameが空の場合はDefaultCacheNameを使う。
func NewShell(cacheName string) (*Shell, error) {
	if strings.TrimSpace(cacheName) == "" {
		cacheName = DefaultCacheName
	}

	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded assets: %w", err)
	}

	worker, err := renderWorker(sub, cacheName)
	if err != nil {
		return nil, err
	}

	manifest, err := fs.ReadFile(sub, "manifest.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return &Shell{
		files:    http.FileServer(http.FS(sub)),
		worker:   worker,
		manifest: manifest,
	}, nil
}

// ServeHTTP はService Workerと静的アセットを配信する。
func (s *Shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/sw.js":
		// 更新を検出できるようService Worker自体はHTTPキャッシュさせない
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/")
		_, _ = w.Write(s.worker)
		return
	case "/manifest.json":
		w.Header().Set("Content-Type", "application/manifest+json")
		_, _ = w.Write(s.manifest)
		return
	case "/sw.js.tmpl":
		http.NotFound(w, r)
		return
	}

	s.files.ServeHTTP(w, r)
}

func renderWorker(assets fs.FS, cacheName string) ([]byte, error) {
	tmpl, err := template.ParseFS(assets, "sw.js.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse service worker template: %w", err)
	}

	name, err := json.Marshal(cacheName)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache name: %w", err)
	}
	list, err := json.Marshal(ShellAssets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode asset list: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{
		"CacheName": string(name),
		"Assets":    string(list),
	}); err != nil {
		return nil, fmt.Errorf("failed to render service worker: %w", err)
	}
	return buf.Bytes(), nil
}
