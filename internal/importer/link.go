package importer

import (
	"bytes"
	"mime"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// orderFileExtensions は一覧ページから取り込み対象とみなす拡張子。
var orderFileExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".tab":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// isHTML はContent-TypeがHTMLかどうかを返す。
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// findOrderFileLinks はHTML内のaタグから注文ファイルらしいリンクを抽出する。
// 相対URLはbaseURLを基準に解決する。http(s)以外のリンクは無視する。
func findOrderFileLinks(htmlBody []byte, baseURL string) []string {
	var links []string

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "a" || !hasAttr {
				continue
			}

			var href string
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.ToLower(string(key)) == "href" {
					href = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
			if href == "" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			resolved := base.ResolveReference(ref)
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}
			if !orderFileExtensions[strings.ToLower(path.Ext(resolved.Path))] {
				continue
			}
			links = append(links, resolved.String())
		}
	}
}

// selectOrderFileLink は候補から取り込むリンクを選ぶ。
// 優先順位: 同一ホスト > 先頭
func selectOrderFileLink(links []string, pageURL string) string {
	if len(links) == 0 {
		return ""
	}

	pageHost := strings.ToLower(hostOf(pageURL))
	for _, link := range links {
		if strings.ToLower(hostOf(link)) == pageHost {
			return link
		}
	}
	return links[0]
}
