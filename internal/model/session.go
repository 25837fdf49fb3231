package model

// Session は作業者のローカルログイン状態を表す。
// 同時に有効なSessionは1つだけで、Userが空の場合は未ログインを意味する。
type Session struct {
	User string
}

// LoggedIn はログイン済みかどうかを返す。
func (s Session) LoggedIn() bool {
	return s.User != ""
}
