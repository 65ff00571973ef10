package model

// 一覧取得のページング上限。
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// NormalizePage はskip/limitを有効範囲に丸める。
// 負のskipは0、0以下のlimitはDefaultPageLimit、上限超過はMaxPageLimitになる。
func NormalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return skip, limit
}
