package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"

	"github.com/hitoshi/packman/internal/model"
)

// defaultMaxSize は取り込みファイルのデフォルト上限（10MB）。
const defaultMaxSize int64 = 10 * 1024 * 1024

// URLGuard はURL取り込みに使う安全なHTTPクライアントを提供するインターフェース。
// security.SSRFGuardが実装する。
type URLGuard interface {
	ValidateURL(rawURL string) error
	Client() *http.Client
}

// Observer は取り込み結果を記録するインターフェース。
type Observer interface {
	RecordImport(format string, rows, skipped int)
	RecordImportFailed(source string)
}

// Result は取り込み結果。
type Result struct {
	Database *model.Database
	Format   Format
	Report   Report
}

// Service はファイルまたはURLから注文カタログを取り込む。
// 取り込んだDatabaseの保存と差し替えは呼び出し元（状態マシン）が行う。
type Service struct {
	normalizer *Normalizer
	guard      URLGuard
	maxSize    int64
	observer   Observer
	logger     *slog.Logger
}

// NewService はServiceを生成する。maxSizeが0以下の場合は10MBとする。
func NewService(normalizer *Normalizer, guard URLGuard, maxSize int64, observer Observer, logger *slog.Logger) *Service {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		normalizer: normalizer,
		guard:      guard,
		maxSize:    maxSize,
		observer:   observer,
		logger:     logger,
	}
}

// ImportFile はアップロードされたファイルを読み取り、正規化したDatabaseを返す。
// 失敗時はIMPORT_PARSE_ERRORを返し、呼び出し元のDatabaseは変更されない。
func (s *Service) ImportFile(name, contentType string, r io.Reader) (*Result, error) {
	data, err := s.readLimited(r)
	if err != nil {
		s.recordFailure("file", name, err)
		return nil, err
	}

	result, err := s.process(name, contentType, data)
	if err != nil {
		s.recordFailure("file", name, err)
		return nil, err
	}
	return result, nil
}

// ImportURL は指定URLからファイルをダウンロードして取り込む。
// 内部ネットワークへのアクセスはURLGuardにより拒否される。
func (s *Service) ImportURL(ctx context.Context, rawURL string) (*Result, error) {
	if s.guard == nil {
		return nil, model.NewImportParseError("URL取り込みは無効です")
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		s.recordFailure("url", rawURL, err)
		return nil, model.NewValidationError("URL")
	}

	name, contentType, data, err := s.download(ctx, rawURL)
	if err != nil {
		s.recordFailure("url", rawURL, err)
		return nil, err
	}

	// 一覧ページの場合はリンク先の注文ファイルを1回だけ辿る
	if isHTML(contentType) {
		name, contentType, data, err = s.followOrderFileLink(ctx, rawURL, data)
		if err != nil {
			s.recordFailure("url", rawURL, err)
			return nil, err
		}
	}

	result, err := s.process(name, contentType, data)
	if err != nil {
		s.recordFailure("url", rawURL, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) process(name, contentType string, data []byte) (*Result, error) {
	format := DetectFormat(name, contentType, data)

	table, err := Parse(format, contentType, data)
	if err != nil {
		return nil, err
	}

	db, report := s.normalizer.Normalize(table)

	if s.observer != nil {
		s.observer.RecordImport(string(format), report.Rows, report.Skipped)
	}
	s.logger.Info("注文ファイルを正規化しました",
		slog.String("name", name),
		slog.String("format", string(format)),
		slog.Int("rows", report.Rows),
		slog.Int("skipped", report.Skipped),
		slog.Int("orders", report.Orders),
	)

	return &Result{Database: db, Format: format, Report: report}, nil
}

func (s *Service) download(ctx context.Context, rawURL string) (string, string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", nil, model.NewValidationError("URL")
	}

	resp, err := s.guard.Client().Do(req)
	if err != nil {
		return "", "", nil, model.NewImportParseError(fmt.Sprintf("ダウンロードに失敗しました: %s", hostOf(rawURL)))
	}
	defer resp.Body.Close()

	if classifyDownloadStatus(resp.StatusCode) != downloadOK {
		return "", "", nil, model.NewImportParseError(downloadFailureReason(resp.StatusCode))
	}

	data, err := s.readLimited(resp.Body)
	if err != nil {
		return "", "", nil, err
	}

	return path.Base(resp.Request.URL.Path), resp.Header.Get("Content-Type"), data, nil
}

func (s *Service) followOrderFileLink(ctx context.Context, pageURL string, page []byte) (string, string, []byte, error) {
	link := selectOrderFileLink(findOrderFileLinks(page, pageURL), pageURL)
	if link == "" {
		return "", "", nil, model.NewImportParseError("ページに注文ファイルへのリンクが見つかりません")
	}
	if err := s.guard.ValidateURL(link); err != nil {
		return "", "", nil, model.NewValidationError("URL")
	}

	s.logger.Info("一覧ページのリンクから注文ファイルを取得します",
		slog.String("page", hostOf(pageURL)),
		slog.String("link", link),
	)

	name, contentType, data, err := s.download(ctx, link)
	if err != nil {
		return "", "", nil, err
	}
	if isHTML(contentType) {
		return "", "", nil, model.NewImportParseError("リンク先が注文ファイルではありません")
	}
	return name, contentType, data, nil
}

// readLimited はmaxSizeを超える入力を拒否する。
func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, model.NewImportParseError("ファイルを読み取れません")
	}
	if n > s.maxSize {
		return nil, model.NewImportParseError(fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています", s.maxSize))
	}
	return buf.Bytes(), nil
}

func (s *Service) recordFailure(source, target string, err error) {
	s.logger.Warn("注文ファイルの取り込みに失敗しました",
		slog.String("source", source),
		slog.String("target", target),
		slog.String("error", err.Error()),
	)
	if s.observer != nil {
		s.observer.RecordImportFailed(source)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
