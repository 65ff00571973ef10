package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバー・イベント購読者・セッション掃除を1プロセスで起動する。
	CommandServe Command = "serve"
	// CommandWorker はイベント購読者とセッション掃除のみを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のAPIの /ping を叩いて終了する。
	// distrolessイメージにはcurlがないためDockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commandDescriptions = map[Command]string{
	CommandServe:       "http api + event consumers + session sweeper",
	CommandWorker:      "event consumers + session sweeper",
	CommandMigrate:     "apply database migrations",
	CommandHealthcheck: "check local /ping",
}

// Description は起動ログに出すモードの説明を返す。
func (c Command) Description() string {
	return commandDescriptions[c]
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeとtrueを返す。
// サポート外のコマンドの場合もCommandServeを返すが、okはfalseになる。
func ParseCommand(args []string) (cmd Command, ok bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	cmd = Command(args[0])
	if _, known := commandDescriptions[cmd]; known {
		return cmd, true
	}
	return CommandServe, false
}
