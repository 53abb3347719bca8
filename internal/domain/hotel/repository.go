package hotel

import (
	"context"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// Repository はホテル・部屋タイプ・サービスのリポジトリ
type Repository interface {
	CreateHotel(ctx context.Context, h *Hotel) error
	GetHotel(ctx context.Context, id string) (*Hotel, error)
	UpdateHotel(ctx context.Context, h *Hotel) error

	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	GetRoomsByIDs(ctx context.Context, ids []string) ([]*Room, error)
	UpdateRoom(ctx context.Context, r *Room) error

	// LockRooms はトランザクション内で部屋タイプ行を排他ロックする（SELECT ... FOR UPDATE）
	// 同じ部屋タイプへの空室確認と書き込みを直列化するために使う
	LockRooms(ctx context.Context, tx transaction.Tx, ids []string) error

	CreateService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id string) (*Service, error)
	GetServicesByIDs(ctx context.Context, ids []string) ([]*Service, error)
	UpdateService(ctx context.Context, s *Service) error
}
