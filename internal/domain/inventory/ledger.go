// Package inventory は既存予約から部屋タイプごとの空室数を導出する
package inventory

import (
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

// Occupancy は照会期間内の泊ごとの占有数
type Occupancy struct {
	RoomID    string
	Nights    map[string]int
	Peak      int
	PeakNight string
}

// NightlyOccupancy は [from, to) の各泊について、在庫占有中の予約が要求する数量を合計する
// 照会期間外の泊は数えない
func NightlyOccupancy(roomID string, from, to time.Time, reservations []*reservation.Reservation) Occupancy {
	occ := Occupancy{RoomID: roomID, Nights: make(map[string]int)}
	for _, r := range reservations {
		if !r.HoldsCapacity() || !r.Overlaps(from, to) {
			continue
		}
		qty := r.QuantityFor(roomID)
		if qty == 0 {
			continue
		}
		start, end := r.CheckInDate, r.CheckOutDate
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		for _, night := range reservation.Nights(start, end) {
			key := reservation.NightKey(night)
			occ.Nights[key] += qty
			if occ.Nights[key] > occ.Peak {
				occ.Peak = occ.Nights[key]
				occ.PeakNight = key
			}
		}
	}
	return occ
}

// Available は総数からピーク占有数を引いた空室数を返す
// 不変条件が既に破れている場合は負になり得る
func Available(totalQuantity int, occ Occupancy) int {
	return totalQuantity - occ.Peak
}

// Bookable は予約判定に使う空室数（0未満は0に丸める）
func Bookable(available int) int {
	if available < 0 {
		return 0
	}
	return available
}

// Check は要求数量が空室数以内かを判定する
func Check(roomID string, requested, available int) error {
	if requested > Bookable(available) {
		return &reservation.CapacityError{RoomID: roomID, Requested: requested, Available: Bookable(available)}
	}
	return nil
}

// Excluding は指定IDの予約を除いた一覧を返す（未払い予約の更新時に自身を数えないため）
func Excluding(reservations []*reservation.Reservation, id string) []*reservation.Reservation {
	if id == "" {
		return reservations
	}
	out := make([]*reservation.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
