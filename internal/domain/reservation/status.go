package reservation

// Status は予約の状態を表す
type Status string

const (
	StatusNotPaid    Status = "NOT_PAID"
	StatusPending    Status = "PENDING"
	StatusBooked     Status = "BOOKED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusOffline    Status = "OFFLINE"
)

// transitions は許可された状態遷移の有向グラフ
var transitions = map[Status][]Status{
	StatusNotPaid:    {StatusPending, StatusBooked, StatusCancelled},
	StatusPending:    {StatusBooked, StatusCancelled},
	StatusBooked:     {StatusCheckedIn, StatusCancelled},
	StatusOffline:    {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:  {StatusCheckedOut, StatusCancelled},
	StatusCheckedOut: {StatusCompleted, StatusCancelled},
}

// AllStatuses は全ステータスを返す
func AllStatuses() []Status {
	return []Status{
		StatusNotPaid, StatusPending, StatusBooked, StatusCheckedIn,
		StatusCheckedOut, StatusCompleted, StatusCancelled, StatusOffline,
	}
}

// Valid は既知のステータスかを返す
func (s Status) Valid() bool {
	switch s {
	case StatusNotPaid, StatusPending, StatusBooked, StatusCheckedIn,
		StatusCheckedOut, StatusCompleted, StatusCancelled, StatusOffline:
		return true
	}
	return false
}

// HoldsCapacity は在庫を占有するステータスかを返す（CANCELLED以外すべて）
func (s Status) HoldsCapacity() bool {
	return s.Valid() && s != StatusCancelled
}

// IsTerminal は終端ステータスかを返す
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition は from から to への遷移が許可されているかを返す
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CapacityHoldingStatuses は在庫を占有するステータス一覧を返す
func CapacityHoldingStatuses() []Status {
	var out []Status
	for _, s := range AllStatuses() {
		if s.HoldsCapacity() {
			out = append(out, s)
		}
	}
	return out
}

// SweepStatuses はスイープが時間経過で遷移させるステータス
func SweepStatuses() []Status {
	return []Status{StatusNotPaid, StatusPending, StatusBooked, StatusOffline, StatusCheckedIn}
}
