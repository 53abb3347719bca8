package inventory

import (
	"context"
	"errors"
	"sort"
)

// ErrRoomBusy は部屋タイプのロックを取得できなかったことを表す
var ErrRoomBusy = errors.New("同じ部屋タイプの予約処理が進行中です。しばらくしてから再試行してください")

// Release は取得したロックを解放する
type Release func(ctx context.Context)

// Locker は部屋タイプ単位で空室判定と書き込みを直列化する
type Locker interface {
	// Lock は roomIDs をすべてロックする。一部でも取得できなければ取得済み分を解放して ErrRoomBusy を返す
	Lock(ctx context.Context, roomIDs []string) (Release, error)
}

// LockOrder は重複を除いてソートしたロック順序を返す
func LockOrder(roomIDs []string) []string {
	seen := make(map[string]struct{}, len(roomIDs))
	out := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
