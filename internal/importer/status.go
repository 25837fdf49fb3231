package importer

import (
	"fmt"
	"net/http"
)

// downloadOutcome はURL取り込み時のHTTPステータスの分類。
type downloadOutcome int

const (
	downloadOK downloadOutcome = iota
	// downloadGone はURLの見直しが必要なステータス（404/410/401/403）。
	downloadGone
	// downloadRetryLater は時間をおけば成功しうるステータス（429/5xx）。
	downloadRetryLater
	downloadUnexpected
)

func classifyDownloadStatus(statusCode int) downloadOutcome {
	switch {
	case statusCode == http.StatusOK:
		return downloadOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return downloadGone
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return downloadGone
	case statusCode == http.StatusTooManyRequests:
		return downloadRetryLater
	case statusCode >= 500:
		return downloadRetryLater
	default:
		return downloadUnexpected
	}
}

// downloadFailureReason は作業者向けの失敗理由を返す。
func downloadFailureReason(statusCode int) string {
	switch classifyDownloadStatus(statusCode) {
	case downloadGone:
		return fmt.Sprintf("ファイルを取得できません。URLを確認してください（HTTP %d）", statusCode)
	case downloadRetryLater:
		return fmt.Sprintf("配布元が応答しません。時間をおいて再度取り込んでください（HTTP %d）", statusCode)
	default:
		return fmt.Sprintf("ダウンロードに失敗しました（HTTP %d）", statusCode)
	}
}
