package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はブリッジサーバーと定期更新を起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はセッションストアのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandLogin はメールアドレスとパスワードでログインすることを示す。
	CommandLogin Command = "login"
	// CommandLogout は永続化されたセッションを破棄することを示す。
	CommandLogout Command = "logout"
	// CommandStatus は現在のセッションを表示することを示す。
	CommandStatus Command = "status"
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

	switch Command(args[0]) {
	case CommandServe, CommandMigrate, CommandLogin, CommandLogout, CommandStatus, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
