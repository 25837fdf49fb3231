package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーと画面配信を起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はPostgreSQLのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandImport は注文ファイルを取り込んで保存することを示す。
	// 端末の初期設定用で、サーバーを起動せずに実行する。
	CommandImport Command = "import"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "import":
		return CommandImport
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
