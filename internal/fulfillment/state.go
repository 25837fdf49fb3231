package fulfillment

// State は梱包作業の画面状態を表す。
type State string

const (
	StateLoggedOut      State = "logged_out"
	StateHome           State = "home"
	StateSelectingOrder State = "selecting_order"
	StateScanningParts  State = "scanning_parts"
	StateSummary        State = "summary"
)

// Label は作業者向けの画面名を返す。
func (s State) Label() string {
	switch s {
	case StateLoggedOut:
		return "ログイン"
	case StateHome:
		return "ホーム"
	case StateSelectingOrder:
		return "注文選択"
	case StateScanningParts:
		return "部品読み取り"
	case StateSummary:
		return "確認"
	default:
		return string(s)
	}
}
