// Package scan はバーコード読み取り元（カメラ・手入力）の抽象化を提供する。
//
// 読み取り元は一度に1つだけ有効で、開始後に届く検出イベントは最大1件。
// 停止済みの読み取り元に遅れて届いた検出は破棄され、状態マシンには渡らない。
package scan

import "strings"

// Symbology はバーコードの規格。
type Symbology string

const (
	Code128 Symbology = "code_128"
	EAN13   Symbology = "ean_13"
	EAN8    Symbology = "ean_8"
	Code39  Symbology = "code_39"
	UPCA    Symbology = "upc_a"
	UPCE    Symbology = "upc_e"
	Codabar Symbology = "codabar"
	ITF     Symbology = "itf"
)

// supported は読み取りを受け付ける規格。表示順を兼ねる。
var supported = []Symbology{Code128, EAN13, EAN8, Code39, UPCA, UPCE, Codabar, ITF}

// aliases はデコーダーごとの表記揺れを吸収する。
var aliases = map[string]Symbology{
	"code128":         Code128,
	"ean13":           EAN13,
	"ean8":            EAN8,
	"code39":          Code39,
	"upc":             UPCA,
	"upca":            UPCA,
	"upce":            UPCE,
	"codabar":         Codabar,
	"nw7":             Codabar,
	"itf":             ITF,
	"i2of5":           ITF,
	"interleaved2of5": ITF,
}

// Supported は受け付ける規格の一覧を返す。
func Supported() []Symbology {
	return append([]Symbology(nil), supported...)
}

// ParseSymbology はデコーダーが報告した規格名を正規化する。
// 大文字小文字、ハイフン、アンダースコア、空白の違いは無視する。
func ParseSymbology(format string) (Symbology, bool) {
	key := strings.ToLower(strings.TrimSpace(format))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if key == "" {
		return "", false
	}
	s, ok := aliases[key]
	return s, ok
}

// Capability は端末でカメラ読み取りが使えるかどうかを表す。
type Capability struct {
	Camera        bool        `json:"camera"`
	SecureContext bool        `json:"secureContext"`
	CameraAPI     bool        `json:"cameraApi"`
	Symbologies   []Symbology `json:"symbologies"`
}

// CheckCapability は安全なコンテキストかつカメラAPIが存在する場合にのみカメラ読み取りを許可する。
// 使えない場合、表示層は手入力に切り替える。
func CheckCapability(secureContext, cameraAPI bool) Capability {
	return Capability{
		Camera:        secureContext && cameraAPI,
		SecureContext: secureContext,
		CameraAPI:     cameraAPI,
		Symbologies:   Supported(),
	}
}
