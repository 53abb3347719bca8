package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

var errTxRequired = errors.New("トランザクションが必要です")

// === インメモリストア ===

// memStore はトランザクションを直列化するインメモリのデータストア
// Begin でスナップショットを取り、Rollback で復元する
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	hotels       map[string]*hotel.Hotel
	rooms        map[string]*hotel.Room
	services     map[string]*hotel.Service
	reservations map[string]*reservation.Reservation
	promotions   map[string]*promotion.Promotion
	usages       map[string]*promotion.Usage
	refunds      map[string]*refund.RefundRequest
}

type memSnapshot struct {
	reservations map[string]*reservation.Reservation
	promotions   map[string]*promotion.Promotion
	usages       map[string]*promotion.Usage
	refunds      map[string]*refund.RefundRequest
}

func newMemStore() *memStore {
	return &memStore{
		hotels:       make(map[string]*hotel.Hotel),
		rooms:        make(map[string]*hotel.Room),
		services:     make(map[string]*hotel.Service),
		reservations: make(map[string]*reservation.Reservation),
		promotions:   make(map[string]*promotion.Promotion),
		usages:       make(map[string]*promotion.Usage),
		refunds:      make(map[string]*refund.RefundRequest),
	}
}

func (s *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{store: s, snapshot: s.snapshot()}, nil
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		reservations: make(map[string]*reservation.Reservation, len(s.reservations)),
		promotions:   make(map[string]*promotion.Promotion, len(s.promotions)),
		usages:       make(map[string]*promotion.Usage, len(s.usages)),
		refunds:      make(map[string]*refund.RefundRequest, len(s.refunds)),
	}
	for k, v := range s.reservations {
		snap.reservations[k] = cloneReservation(v)
	}
	for k, v := range s.promotions {
		p := *v
		snap.promotions[k] = &p
	}
	for k, v := range s.usages {
		u := *v
		snap.usages[k] = &u
	}
	for k, v := range s.refunds {
		snap.refunds[k] = cloneRefund(v)
	}
	return snap
}

type memTx struct {
	store    *memStore
	snapshot memSnapshot
	done     bool
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("トランザクションは終了しています")
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.reservations = t.snapshot.reservations
	t.store.promotions = t.snapshot.promotions
	t.store.usages = t.snapshot.usages
	t.store.refunds = t.snapshot.refunds
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	c.Rooms = append([]reservation.RoomLine(nil), r.Rooms...)
	c.Services = make([]reservation.ServiceLine, len(r.Services))
	for i, s := range r.Services {
		s.Dates = append([]time.Time(nil), s.Dates...)
		c.Services[i] = s
	}
	if r.CancelledAt != nil {
		at := *r.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

func cloneRefund(r *refund.RefundRequest) *refund.RefundRequest {
	c := *r
	if r.Payee != nil {
		p := *r.Payee
		c.Payee = &p
	}
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}

func requireTx(tx transaction.Tx) error {
	if tx == nil {
		return errTxRequired
	}
	return nil
}

// === ホテル ===

type memHotelRepo struct{ s *memStore }

func (r *memHotelRepo) CreateHotel(ctx context.Context, h *hotel.Hotel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = uuid.NewString()
	c := *h
	r.s.hotels[h.ID] = &c
	return nil
}

func (r *memHotelRepo) GetHotel(ctx context.Context, id string) (*hotel.Hotel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hotels[id]
	if !ok {
		return nil, hotel.ErrHotelNotFound
	}
	c := *h
	return &c, nil
}

func (r *memHotelRepo) UpdateHotel(ctx context.Context, h *hotel.Hotel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.hotels[h.ID]
	if !ok || cur.Version != h.Version {
		return hotel.ErrVersionConflict
	}
	h.Version++
	c := *h
	r.s.hotels[h.ID] = &c
	return nil
}

func (r *memHotelRepo) CreateRoom(ctx context.Context, room *hotel.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room.ID = uuid.NewString()
	c := *room
	r.s.rooms[room.ID] = &c
	return nil
}

func (r *memHotelRepo) GetRoom(ctx context.Context, id string) (*hotel.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, hotel.ErrRoomNotFound
	}
	c := *room
	return &c, nil
}

func (r *memHotelRepo) GetRoomsByIDs(ctx context.Context, ids []string) ([]*hotel.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*hotel.Room
	for _, id := range ids {
		if room, ok := r.s.rooms[id]; ok {
			c := *room
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memHotelRepo) UpdateRoom(ctx context.Context, room *hotel.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.rooms[room.ID]
	if !ok || cur.Version != room.Version {
		return hotel.ErrVersionConflict
	}
	room.Version++
	c := *room
	r.s.rooms[room.ID] = &c
	return nil
}

func (r *memHotelRepo) LockRooms(ctx context.Context, tx transaction.Tx, ids []string) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.s.rooms[id]; !ok {
			return hotel.ErrRoomNotFound
		}
	}
	return nil
}

func (r *memHotelRepo) CreateService(ctx context.Context, sv *hotel.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sv.ID = uuid.NewString()
	c := *sv
	r.s.services[sv.ID] = &c
	return nil
}

func (r *memHotelRepo) GetService(ctx context.Context, id string) (*hotel.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sv, ok := r.s.services[id]
	if !ok {
		return nil, hotel.ErrServiceNotFound
	}
	c := *sv
	return &c, nil
}

func (r *memHotelRepo) GetServicesByIDs(ctx context.Context, ids []string) ([]*hotel.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*hotel.Service
	for _, id := range ids {
		if sv, ok := r.s.services[id]; ok {
			c := *sv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memHotelRepo) UpdateService(ctx context.Context, sv *hotel.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.services[sv.ID]
	if !ok || cur.Version != sv.Version {
		return hotel.ErrVersionConflict
	}
	sv.Version++
	c := *sv
	r.s.services[sv.ID] = &c
	return nil
}

// === 予約 ===

type memReservationRepo struct{ s *memStore }

func (r *memReservationRepo) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res.Status == reservation.StatusNotPaid {
		for _, other := range r.s.reservations {
			if other.UserID == res.UserID && other.Status == reservation.StatusNotPaid {
				return reservation.ErrReservationConflict
			}
		}
	}
	res.ID = uuid.NewString()
	r.s.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (r *memReservationRepo) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.reservations[res.ID]
	if !ok || cur.Version != res.Version {
		return reservation.ErrReservationConflict
	}
	res.Version++
	r.s.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (r *memReservationRepo) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return cloneReservation(res), nil
}

func (r *memReservationRepo) filter(match func(*reservation.Reservation) bool) []*reservation.Reservation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*reservation.Reservation
	for _, res := range r.s.reservations {
		if match(res) {
			out = append(out, cloneReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *memReservationRepo) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	return page(r.filter(func(res *reservation.Reservation) bool { return res.UserID == userID }), limit, offset), nil
}

func (r *memReservationRepo) GetByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*reservation.Reservation, error) {
	return page(r.filter(func(res *reservation.Reservation) bool { return res.HotelID == hotelID }), limit, offset), nil
}

func (r *memReservationRepo) GetByPaymentHandle(ctx context.Context, handle string) (*reservation.Reservation, error) {
	found := r.filter(func(res *reservation.Reservation) bool { return handle != "" && res.PaymentHandle == handle })
	if len(found) == 0 {
		return nil, reservation.ErrReservationNotFound
	}
	return found[0], nil
}

func (r *memReservationRepo) FindUnpaidByUser(ctx context.Context, tx transaction.Tx, userID string) (*reservation.Reservation, error) {
	found := r.filter(func(res *reservation.Reservation) bool {
		return res.UserID == userID && res.Status == reservation.StatusNotPaid
	})
	if len(found) == 0 {
		return nil, reservation.ErrReservationNotFound
	}
	return found[0], nil
}

func (r *memReservationRepo) ListCapacityHolding(ctx context.Context, tx transaction.Tx, roomIDs []string, from, to time.Time) ([]*reservation.Reservation, error) {
	return r.filter(func(res *reservation.Reservation) bool {
		if !res.HoldsCapacity() || !res.Overlaps(from, to) {
			return false
		}
		for _, id := range roomIDs {
			if res.QuantityFor(id) > 0 {
				return true
			}
		}
		return false
	}), nil
}

func (r *memReservationRepo) ListByStatuses(ctx context.Context, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	want := make(map[reservation.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return r.filter(func(res *reservation.Reservation) bool { return want[res.Status] }), nil
}

// === プロモーション ===

type memPromotionRepo struct{ s *memStore }

func usageKey(promotionID, userID string) string { return promotionID + "/" + userID }

func (r *memPromotionRepo) Create(ctx context.Context, p *promotion.Promotion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.promotions {
		if other.Code == p.Code {
			return promotion.ErrCodeAlreadyExists
		}
	}
	p.ID = uuid.NewString()
	c := *p
	r.s.promotions[p.ID] = &c
	return nil
}

func (r *memPromotionRepo) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promotions[id]
	if !ok {
		return nil, promotion.ErrPromotionNotFound
	}
	c := *p
	return &c, nil
}

func (r *memPromotionRepo) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.promotions {
		if p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, promotion.ErrPromotionNotFound
}

func (r *memPromotionRepo) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*promotion.Promotion
	for _, p := range r.s.promotions {
		if p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return page(out, limit, offset), nil
}

func (r *memPromotionRepo) IncrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promotions[promotionID]
	if !ok {
		return promotion.ErrPromotionNotFound
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return promotion.ErrUsageLimitReached
	}
	p.UsedCount++
	return nil
}

func (r *memPromotionRepo) DecrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promotions[promotionID]
	if !ok {
		return promotion.ErrPromotionNotFound
	}
	if p.UsedCount <= 0 {
		return promotion.ErrCounterUnderflow
	}
	p.UsedCount--
	return nil
}

func (r *memPromotionRepo) GetUsage(ctx context.Context, promotionID, userID string) (*promotion.Usage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usages[usageKey(promotionID, userID)]
	if !ok {
		return &promotion.Usage{PromotionID: promotionID, UserID: userID}, nil
	}
	c := *u
	return &c, nil
}

func (r *memPromotionRepo) IncrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID, reservationID string, maxPerUser int, now time.Time) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := usageKey(promotionID, userID)
	u, ok := r.s.usages[key]
	if !ok {
		u = &promotion.Usage{PromotionID: promotionID, UserID: userID}
		r.s.usages[key] = u
	}
	if !u.CanUse(maxPerUser) {
		return promotion.ErrUserLimitReached
	}
	u.UsedCount++
	u.LastReservationID = reservationID
	u.LastUsedAt = &now
	return nil
}

func (r *memPromotionRepo) DecrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID string) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usages[usageKey(promotionID, userID)]
	if !ok || u.UsedCount <= 0 {
		return promotion.ErrCounterUnderflow
	}
	u.UsedCount--
	return nil
}

// === 返金 ===

type memRefundRepo struct{ s *memStore }

func (r *memRefundRepo) Create(ctx context.Context, tx transaction.Tx, req *refund.RefundRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.refunds {
		if other.PerReservation() != req.PerReservation() {
			continue
		}
		dup := other.PaymentReference == req.PaymentReference
		if req.PerReservation() {
			dup = other.ReservationID == req.ReservationID && other.Status != refund.StatusRejected
		}
		if dup {
			return refund.ErrRefundAlreadyRequested
		}
	}
	req.ID = uuid.NewString()
	r.s.refunds[req.ID] = cloneRefund(req)
	return nil
}

func (r *memRefundRepo) Update(ctx context.Context, tx transaction.Tx, req *refund.RefundRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.refunds[req.ID]
	if !ok || cur.Version != req.Version {
		return refund.ErrRefundConflict
	}
	req.Version++
	r.s.refunds[req.ID] = cloneRefund(req)
	return nil
}

func (r *memRefundRepo) GetByID(ctx context.Context, id string) (*refund.RefundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.refunds[id]
	if !ok {
		return nil, refund.ErrRefundNotFound
	}
	return cloneRefund(req), nil
}

func (r *memRefundRepo) list(match func(*refund.RefundRequest) bool) []*refund.RefundRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*refund.RefundRequest
	for _, req := range r.s.refunds {
		if match(req) {
			out = append(out, cloneRefund(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRefundRepo) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*refund.RefundRequest, error) {
	return page(r.list(func(req *refund.RefundRequest) bool { return req.UserID == userID }), limit, offset), nil
}

func (r *memRefundRepo) FindActiveByReservation(ctx context.Context, tx transaction.Tx, reservationID string) (*refund.RefundRequest, error) {
	found := r.list(func(req *refund.RefundRequest) bool {
		return req.ReservationID == reservationID && req.Status != refund.StatusRejected && req.PerReservation()
	})
	if len(found) == 0 {
		return nil, refund.ErrRefundNotFound
	}
	return found[0], nil
}

func (r *memRefundRepo) FindByPaymentReference(ctx context.Context, tx transaction.Tx, paymentRef string) (*refund.RefundRequest, error) {
	found := r.list(func(req *refund.RefundRequest) bool {
		return req.Source == refund.SourceStalePayment && req.PaymentReference == paymentRef
	})
	if len(found) == 0 {
		return nil, refund.ErrRefundNotFound
	}
	return found[0], nil
}

// === 空室キャッシュ ===

type memCache struct {
	mu    sync.Mutex
	items map[string]int
}

func newMemCache() *memCache { return &memCache{items: make(map[string]int)} }

func cacheKey(roomID string, from, to time.Time) string {
	return roomID + ":" + reservation.NightKey(from) + ":" + reservation.NightKey(to)
}

func (c *memCache) Get(ctx context.Context, roomID string, from, to time.Time) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[cacheKey(roomID, from, to)]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, roomID string, from, to time.Time, units int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cacheKey(roomID, from, to)] = units
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, roomIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		for _, id := range roomIDs {
			if len(key) > len(id) && key[:len(id)+1] == id+":" {
				delete(c.items, key)
			}
		}
	}
	return nil
}

// === モック ===

// MockGateway は payment.Gateway のモック
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Checkout), args.Error(1)
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentReference string, amount int) (string, error) {
	args := m.Called(ctx, paymentReference, amount)
	return args.String(0), args.Error(1)
}

// MockTxManager は transaction.Manager のモック
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// fakeClock はテスト用の時計
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
