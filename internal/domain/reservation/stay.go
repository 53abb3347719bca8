package reservation

import "time"

// DateLayout は宿泊日の文字列表現
const DateLayout = "2006-01-02"

// DateOf は t を loc における当日0時に正規化する
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CalendarDate は t の年月日をそのまま loc の0時として解釈する
// DATE 型カラムから読み出した値（UTC 0時）を宿泊日として扱う際に使う
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseDate は "2006-01-02" 形式の日付を loc の0時として解釈する
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// NightKey は宿泊日のキー表現
func NightKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Nights は半開区間 [from, to) に含まれる各泊の日付を返す
func Nights(from, to time.Time) []time.Time {
	var nights []time.Time
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// Overlaps は [aFrom, aTo) と [bFrom, bTo) が1泊以上重なるかを返す
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && bFrom.Before(aTo)
}
