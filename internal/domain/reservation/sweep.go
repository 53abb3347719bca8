package reservation

import "time"

// DefaultGracePeriod は未払い予約が自動キャンセルされるまでの猶予
const DefaultGracePeriod = 5 * time.Minute

// SweepPolicy は時間経過による状態遷移の判定条件
type SweepPolicy struct {
	GracePeriod time.Duration
	Location    *time.Location
}

func (p SweepPolicy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p SweepPolicy) gracePeriod() time.Duration {
	if p.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return p.GracePeriod
}

// CheckInDeadline はPENDING予約の期限（チェックイン日の終わり = 翌日0時）を返す
func (r *Reservation) CheckInDeadline(loc *time.Location) time.Time {
	return DateOf(r.CheckInDate, loc).AddDate(0, 0, 1)
}

// SweepTarget は now 時点でスイープが適用すべき遷移先を返す
//
//   - NOT_PAID: 作成から猶予期間を超えたら CANCELLED
//   - PENDING: チェックイン日の終わりを過ぎたら CANCELLED（返金申請を伴う）
//   - BOOKED / OFFLINE: チェックイン日時を過ぎたら CHECKED_IN
//   - CHECKED_IN: チェックアウト日時以降なら CHECKED_OUT
//
// BOOKED / OFFLINE はチェックアウト日を過ぎていても一旦 CHECKED_IN を経由する
func (r *Reservation) SweepTarget(now time.Time, p SweepPolicy) (Status, bool) {
	switch r.Status {
	case StatusNotPaid:
		if now.Sub(r.CreatedAt) > p.gracePeriod() {
			return StatusCancelled, true
		}
	case StatusPending:
		if !now.Before(r.CheckInDeadline(p.location())) {
			return StatusCancelled, true
		}
	case StatusBooked, StatusOffline:
		if !now.Before(r.CheckInDate) {
			return StatusCheckedIn, true
		}
	case StatusCheckedIn:
		if !now.Before(r.CheckOutDate) {
			return StatusCheckedOut, true
		}
	}
	return "", false
}

// ApplySweep は SweepTarget で得た遷移を適用する
func (r *Reservation) ApplySweep(target Status, now time.Time) error {
	switch target {
	case StatusCancelled:
		return r.Cancel(now)
	case StatusCheckedIn:
		return r.CheckIn(now)
	case StatusCheckedOut:
		return r.CheckOut(now)
	}
	return &TransitionError{From: r.Status, To: target}
}

// SweepReport は1回のスイープ結果
type SweepReport struct {
	Scanned    int
	Cancelled  int
	Refunded   int
	CheckedIn  int
	CheckedOut int
	Skipped    int
	Failed     int
}

// Transitioned は遷移した予約数を返す
func (s SweepReport) Transitioned() int {
	return s.Cancelled + s.CheckedIn + s.CheckedOut
}
