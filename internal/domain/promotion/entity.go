package promotion

import (
	"strings"
	"time"
)

// DiscountType は割引の種類
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Promotion はプロモーションコードを表す
type Promotion struct {
	ID                string
	Code              string
	Name              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     int
	MaxDiscountAmount int // 0 は上限なし
	MinOrderAmount    int
	StartDate         time.Time
	EndDate           time.Time
	UsageLimit        *int // nil は無制限
	UsedCount         int
	MaxUsagePerUser   int // 0 は無制限
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NormalizeCode はコードを大文字・前後空白除去で正規化する
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate はプロモーションの検証を行う
func (p *Promotion) Validate() error {
	if p.Code == "" {
		return ErrCodeRequired
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue <= 0 || p.DiscountValue > 100 {
			return ErrInvalidDiscountValue
		}
	case DiscountFixedAmount:
		if p.DiscountValue <= 0 {
			return ErrInvalidDiscountValue
		}
	default:
		return ErrInvalidDiscountType
	}
	if !p.StartDate.Before(p.EndDate) {
		return ErrInvalidPeriod
	}
	if p.UsageLimit != nil && *p.UsageLimit < 0 {
		return ErrInvalidUsageLimit
	}
	if p.MaxDiscountAmount < 0 || p.MinOrderAmount < 0 || p.MaxUsagePerUser < 0 {
		return ErrInvalidDiscountValue
	}
	return nil
}

// CheckUsable は now 時点で利用可能かを検証する
func (p *Promotion) CheckUsable(now time.Time) error {
	if !p.IsActive {
		return ErrPromotionInactive
	}
	if now.Before(p.StartDate) {
		return ErrPromotionNotStarted
	}
	if now.After(p.EndDate) {
		return ErrPromotionExpired
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Discount は注文金額に対する割引額を計算する
func (p *Promotion) Discount(amount int) (int, error) {
	if amount < p.MinOrderAmount {
		return 0, ErrMinOrderNotMet
	}
	var discount int
	switch p.DiscountType {
	case DiscountPercentage:
		discount = amount * p.DiscountValue / 100
		if p.MaxDiscountAmount > 0 && discount > p.MaxDiscountAmount {
			discount = p.MaxDiscountAmount
		}
	case DiscountFixedAmount:
		discount = p.DiscountValue
	default:
		return 0, ErrInvalidDiscountType
	}
	if discount > amount {
		discount = amount
	}
	return discount, nil
}

// Usage はユーザーごとの利用状況
type Usage struct {
	PromotionID       string
	UserID            string
	UsedCount         int
	LastReservationID string
	LastUsedAt        *time.Time
}

// CanUse はユーザーごとの上限に達していないかを返す
func (u *Usage) CanUse(maxPerUser int) bool {
	return maxPerUser <= 0 || u.UsedCount < maxPerUser
}
