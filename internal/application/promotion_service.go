package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// PromotionService はプロモーションのカタログと利用台帳を扱う
type PromotionService struct {
	repo promotion.Repository
	now  func() time.Time
}

func NewPromotionService(repo promotion.Repository) *PromotionService {
	return &PromotionService{repo: repo, now: time.Now}
}

type CreatePromotionInput struct {
	Code              string
	Name              string
	Description       string
	DiscountType      promotion.DiscountType
	DiscountValue     int
	MaxDiscountAmount int
	MinOrderAmount    int
	StartDate         time.Time
	EndDate           time.Time
	UsageLimit        *int
	MaxUsagePerUser   int
	IsActive          bool
}

func (s *PromotionService) CreatePromotion(ctx context.Context, input CreatePromotionInput) (*promotion.Promotion, error) {
	now := s.now()
	p := &promotion.Promotion{
		Code:              promotion.NormalizeCode(input.Code),
		Name:              input.Name,
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MaxDiscountAmount: input.MaxDiscountAmount,
		MinOrderAmount:    input.MinOrderAmount,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		UsageLimit:        input.UsageLimit,
		MaxUsagePerUser:   input.MaxUsagePerUser,
		IsActive:          input.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*promotion.Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PromotionService) GetPromotionByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return s.repo.GetByCode(ctx, promotion.NormalizeCode(code))
}

func (s *PromotionService) ListActivePromotions(ctx context.Context, limit, offset int) ([]*promotion.Promotion, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListActive(ctx, s.now(), limit, offset)
}

// Quote はコード適用時の割引額の見積もり
type Quote struct {
	PromotionID string `json:"promotion_id"`
	Code        string `json:"code"`
	OrderAmount int    `json:"order_amount"`
	Discount    int    `json:"discount"`
	FinalAmount int    `json:"final_amount"`
}

// Quote は注文金額に対する割引を見積もる。userID を指定するとユーザー別上限も確認する
func (s *PromotionService) Quote(ctx context.Context, code string, amount int, userID string) (*Quote, error) {
	p, discount, err := s.resolve(ctx, code, amount, userID, "")
	if err != nil {
		return nil, err
	}
	return &Quote{
		PromotionID: p.ID,
		Code:        p.Code,
		OrderAmount: amount,
		Discount:    discount,
		FinalAmount: amount - discount,
	}, nil
}

// resolve はコードを検証し割引額を計算する。台帳は更新しない
// heldID は予約が既に適用中のプロモーションで、その再適用は利用上限の判定に含めない
func (s *PromotionService) resolve(ctx context.Context, code string, amount int, userID, heldID string) (*promotion.Promotion, int, error) {
	p, err := s.repo.GetByCode(ctx, promotion.NormalizeCode(code))
	if err != nil {
		return nil, 0, err
	}
	held := heldID != "" && p.ID == heldID
	check := *p
	if held {
		check.UsageLimit = nil
	}
	if err := check.CheckUsable(s.now()); err != nil {
		return nil, 0, err
	}
	if userID != "" && !held && p.MaxUsagePerUser > 0 {
		usage, err := s.repo.GetUsage(ctx, p.ID, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("利用状況の取得に失敗: %w", err)
		}
		if !usage.CanUse(p.MaxUsagePerUser) {
			return nil, 0, promotion.ErrUserLimitReached
		}
	}
	discount, err := p.Discount(amount)
	if err != nil {
		return nil, 0, err
	}
	return p, discount, nil
}

// RegisterUse は予約へのプロモーション適用を台帳に記録する
// 全体とユーザー別の上限はカウンタ更新の条件で判定する
func (s *PromotionService) RegisterUse(ctx context.Context, tx transaction.Tx, p *promotion.Promotion, userID, reservationID string) error {
	if err := s.repo.IncrementUsage(ctx, tx, p.ID); err != nil {
		return err
	}
	return s.repo.IncrementUserUsage(ctx, tx, p.ID, userID, reservationID, p.MaxUsagePerUser, s.now())
}

// ReverseUse はキャンセルに伴い利用回数を戻す
// カウンタが既に0の場合は整合性違反として記録し、キャンセル自体は続行する
func (s *PromotionService) ReverseUse(ctx context.Context, tx transaction.Tx, promotionID, userID string) error {
	if promotionID == "" {
		return nil
	}
	if err := s.repo.DecrementUsage(ctx, tx, promotionID); err != nil {
		if !errors.Is(err, promotion.ErrCounterUnderflow) {
			return err
		}
		logger.Error("プロモーション利用回数の整合性違反",
			zap.String("promotion_id", promotionID), zap.Error(err))
	}
	if err := s.repo.DecrementUserUsage(ctx, tx, promotionID, userID); err != nil {
		if !errors.Is(err, promotion.ErrCounterUnderflow) {
			return err
		}
		logger.Error("ユーザー別プロモーション利用回数の整合性違反",
			zap.String("promotion_id", promotionID), zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// SwapUse は未払い予約の更新時に適用プロモーションを差し替える
func (s *PromotionService) SwapUse(ctx context.Context, tx transaction.Tx, oldID string, next *promotion.Promotion, userID, reservationID string) error {
	nextID := ""
	if next != nil {
		nextID = next.ID
	}
	if oldID == nextID {
		return nil
	}
	if next != nil {
		if err := s.RegisterUse(ctx, tx, next, userID, reservationID); err != nil {
			return err
		}
	}
	return s.ReverseUse(ctx, tx, oldID, userID)
}
