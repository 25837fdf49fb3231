// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, scan, import, system
	Action   string // 作業者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeOrderAlreadyPacked   = "ORDER_ALREADY_PACKED"
	ErrCodeDuplicatePart        = "DUPLICATE_PART"
	ErrCodePartNotInOrder       = "PART_NOT_IN_ORDER"
	ErrCodeImportParse          = "IMPORT_PARSE_ERROR"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeNotLoggedIn          = "NOT_LOGGED_IN"
	ErrCodePartsMissing         = "PARTS_MISSING"
	ErrCodeUnsupportedSymbology = "UNSUPPORTED_SYMBOLOGY"
	ErrCodePersistenceFailed    = "PERSISTENCE_FAILED"
	ErrCodeRateLimited          = "RATE_LIMITED"
)

// IsCode はerrがAPIErrorで、指定のコードを持つかどうかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}

// NewValidationError は必須入力が空の場合のエラーを生成する。
func NewValidationError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%sを入力してください。", field),
		Category: "validation",
		Action:   "空欄のまま送信せず、値を入力してから再度お試しください。",
	}
}

// NewOrderNotFoundError は注文番号が見つからない場合のエラーを生成する。
func NewOrderNotFoundError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("注文が見つかりません: %s", code),
		Category: "scan",
		Action:   "注文番号のバーコードを読み直すか、手入力で確認してください。",
	}
}

// NewOrderAlreadyPackedError は梱包済み注文を選択した場合のエラーを生成する。
func NewOrderAlreadyPackedError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderAlreadyPacked,
		Message:  fmt.Sprintf("この注文は既に梱包済みです: %s", code),
		Category: "scan",
		Action:   "別の注文番号を読み取ってください。",
	}
}

// NewDuplicatePartError は同じ部品を二度読み取った場合のエラーを生成する。
func NewDuplicatePartError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePart,
		Message:  fmt.Sprintf("この部品は既に読み取り済みです: %s", code),
		Category: "scan",
		Action:   "未読み取りの部品を読み取ってください。",
	}
}

// NewPartNotInOrderError は注文に含まれない部品を読み取った場合のエラーを生成する。
func NewPartNotInOrderError(code string) *APIError {
	return &APIError{
		Code:     ErrCodePartNotInOrder,
		Message:  fmt.Sprintf("この部品はこの注文に含まれていません: %s", code),
		Category: "scan",
		Action:   "部品を確認し、注文に含まれる部品を読み取ってください。",
	}
}

// NewImportParseError は取り込みファイルの解析に失敗した場合のエラーを生成する。
func NewImportParseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportParse,
		Message:  fmt.Sprintf("ファイルを読み込めませんでした: %s", reason),
		Category: "import",
		Action:   "CSVまたはExcel形式のファイルか確認してください。データは変更されていません。",
	}
}

// NewInvalidTransitionError は現在の画面で実行できない操作の場合のエラーを生成する。
func NewInvalidTransitionError(operation, state string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の画面（%s）では %s を実行できません。", state, operation),
		Category: "validation",
		Action:   "画面を再読み込みして、表示中の操作から続けてください。",
	}
}

// NewNotLoggedInError は未ログインの場合のエラーを生成する。
func NewNotLoggedInError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLoggedIn,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "作業者名を入力してログインしてください。",
	}
}

// NewPartsMissingError は未確認の部品が残っている状態で梱包完了しようとした場合のエラーを生成する。
func NewPartsMissingError(missing int) *APIError {
	return &APIError{
		Code:     ErrCodePartsMissing,
		Message:  fmt.Sprintf("未確認の部品が%d件あります。", missing),
		Category: "scan",
		Action:   "すべての部品を読み取ってから梱包完了してください。",
	}
}

// NewUnsupportedSymbologyError は対応していないバーコード種別の場合のエラーを生成する。
func NewUnsupportedSymbologyError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedSymbology,
		Message:  fmt.Sprintf("対応していないバーコード種別です: %s", format),
		Category: "scan",
		Action:   "Code128、EAN、Code39、UPC、Codabar、ITF のいずれかのバーコードを読み取ってください。",
	}
}

// NewPersistenceFailedError は端末への保存に失敗した場合のエラーを生成する。
func NewPersistenceFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  "データの保存に失敗しました。",
		Category: "system",
		Action:   "もう一度操作してください。繰り返し失敗する場合は管理者に連絡してください。",
	}
}

// NewRateLimitedError は短時間に操作が集中した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "操作が多すぎます。",
		Category: "system",
		Action:   "少し待ってから再度お試しください。",
	}
}
