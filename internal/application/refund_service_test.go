package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

var testPayee = refund.PayeeInfo{AccountHolderName: "NGUYEN VAN A", AccountNumber: "0123456789", BankName: "Vietcombank"}

// paidReservation は支払い済み（BOOKED）の予約を用意する
func paidReservation(t *testing.T, env *testEnv, ref string) *reservation.Reservation {
	t.Helper()
	h := env.seedHotel(t, "owner-1")
	room := env.seedRoom(t, h, 1000, 2)
	res := env.book(t, "user-1", h, room, 1, date(2025, 6, 1), date(2025, 6, 3))
	env.setStatus(t, res.ID, reservation.StatusBooked, ref)
	return res
}

func TestRefundService_CreateRefundRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("予約者は支払額以内で申請できる", func(t *testing.T) {
		env := newTestEnv(t)
		res := paidReservation(t, env, "pay_1")

		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{
			ReservationID: res.ID, UserID: "user-1", Amount: 2000, Reason: "予定変更",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, req.ID)
		assert.Equal(t, refund.StatusPending, req.Status)
		assert.Equal(t, refund.SourceManual, req.Source)

		_, err = env.refunds.CreateRefundRequest(ctx, CreateRefundInput{
			ReservationID: res.ID, UserID: "user-1", Amount: 100,
		})
		assert.ErrorIs(t, err, refund.ErrRefundAlreadyRequested)
	})

	tests := []struct {
		name    string
		userID  string
		amount  int
		unpaid  bool
		payee   *refund.PayeeInfo
		wantErr error
	}{
		{name: "第三者", userID: "user-2", amount: 100, wantErr: reservation.ErrNotReservationOwner},
		{name: "未払い予約", userID: "user-1", amount: 100, unpaid: true, wantErr: refund.ErrReservationNotRefundable},
		{name: "支払額超過", userID: "user-1", amount: 2001, wantErr: refund.ErrAmountExceedsPaid},
		{name: "金額0", userID: "user-1", amount: 0, wantErr: refund.ErrInvalidAmount},
		{name: "不完全な口座情報", userID: "user-1", amount: 100, payee: &refund.PayeeInfo{BankName: "ACB"}, wantErr: refund.ErrPayeeInfoIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			res := paidReservation(t, env, "pay_1")
			if tt.unpaid {
				env.setStatus(t, res.ID, reservation.StatusNotPaid, "")
			}
			_, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{
				ReservationID: res.ID, UserID: tt.userID, Amount: tt.amount, Payee: tt.payee,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRefundService_ApproveRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("決済参照IDがあればゲートウェイで返金する", func(t *testing.T) {
		env := newTestEnv(t)
		res := paidReservation(t, env, "pay_1")
		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 1500})
		require.NoError(t, err)
		env.gateway.On("Refund", mock.Anything, "pay_1", 1500).Return("rfnd_1", nil).Once()

		_, err = env.refunds.ApproveRefund(ctx, "user-1", req.ID)
		assert.ErrorIs(t, err, hotel.ErrNotHotelOwner)

		approved, err := env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusApproved, approved.Status)
		assert.Equal(t, "rfnd_1", approved.GatewayRefundID)
		assert.NotNil(t, approved.DecidedAt)

		_, err = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		assert.ErrorIs(t, err, refund.ErrRefundNotPending)
		env.gateway.AssertExpectations(t)
	})

	t.Run("ゲートウェイ失敗時はPENDINGのまま", func(t *testing.T) {
		env := newTestEnv(t)
		res := paidReservation(t, env, "pay_2")
		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 500})
		require.NoError(t, err)
		env.gateway.On("Refund", mock.Anything, "pay_2", 500).
			Return("", fmt.Errorf("%w: timeout", payment.ErrGatewayFailure)).Once()

		_, err = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		assert.ErrorIs(t, err, payment.ErrGatewayFailure)

		got, err := env.refundRepo.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusPending, got.Status)
		assert.Empty(t, got.GatewayRefundID)
	})

	t.Run("同時に承認してもゲートウェイ返金は1回だけ", func(t *testing.T) {
		env := newTestEnv(t)
		res := paidReservation(t, env, "pay_c")
		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 800})
		require.NoError(t, err)
		env.gateway.On("Refund", mock.Anything, "pay_c", 800).
			Run(func(mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
			Return("rfnd_c", nil)

		const approvers = 2
		errs := make([]error, approvers)
		var wg sync.WaitGroup
		for i := 0; i < approvers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
			}(i)
		}
		wg.Wait()

		env.gateway.AssertNumberOfCalls(t, "Refund", 1)
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, refund.ErrRefundConflict) || errors.Is(err, refund.ErrRefundNotPending), err.Error())
		}
		assert.Equal(t, 1, succeeded)

		got, err := env.refundRepo.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusApproved, got.Status)
		assert.Equal(t, "rfnd_c", got.GatewayRefundID)
	})

	t.Run("ゲートウェイ返金の実行中は承認も却下もできない", func(t *testing.T) {
		env := newTestEnv(t)
		res := paidReservation(t, env, "pay_p")
		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 300})
		require.NoError(t, err)

		inFlight := make(chan struct{})
		finish := make(chan struct{})
		env.gateway.On("Refund", mock.Anything, "pay_p", 300).
			Run(func(mock.Arguments) { close(inFlight); <-finish }).
			Return("rfnd_p", nil).Once()

		done := make(chan error, 1)
		go func() {
			_, err := env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
			done <- err
		}()
		<-inFlight

		got, err := env.refundRepo.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusProcessing, got.Status)
		_, err = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		assert.ErrorIs(t, err, refund.ErrRefundNotPending)
		_, err = env.refunds.RejectRefund(ctx, "owner-1", req.ID, "")
		assert.ErrorIs(t, err, refund.ErrRefundNotPending)

		close(finish)
		require.NoError(t, <-done)
		env.gateway.AssertExpectations(t)
	})

	t.Run("ゲートウェイ未設定は失敗扱い", func(t *testing.T) {
		env := newTestEnv(t)
		env.refunds.gateway = nil
		res := paidReservation(t, env, "pay_3")
		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 500})
		require.NoError(t, err)

		_, err = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		assert.ErrorIs(t, err, payment.ErrGatewayFailure)
	})

	t.Run("決済参照IDがない予約は口座情報が必要", func(t *testing.T) {
		env := newTestEnv(t)
		h := env.seedHotel(t, "owner-1")
		room := env.seedRoom(t, h, 1000, 2)
		res := env.book(t, "user-1", h, room, 1, date(2025, 6, 1), date(2025, 6, 2))
		_, err := env.reservations.AcceptReservation(ctx, "owner-1", res.ID)
		require.NoError(t, err)

		req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 1000})
		require.NoError(t, err)

		_, err = env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		assert.ErrorIs(t, err, refund.ErrPayeeInfoRequired)

		_, err = env.refunds.SubmitPayeeInfo(ctx, "user-2", req.ID, testPayee)
		assert.ErrorIs(t, err, refund.ErrNotRefundOwner)

		withPayee, err := env.refunds.SubmitPayeeInfo(ctx, "user-1", req.ID, testPayee)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusPending, withPayee.Status)
		assert.False(t, withPayee.AwaitingPayeeInfo())

		approved, err := env.refunds.ApproveRefund(ctx, "owner-1", req.ID)
		require.NoError(t, err)
		assert.Equal(t, refund.StatusApproved, approved.Status)
		assert.Empty(t, approved.GatewayRefundID)
		env.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRefundService_RejectRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := paidReservation(t, env, "pay_1")
	req, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 500, Reason: "予定変更"})
	require.NoError(t, err)

	rejected, err := env.refunds.RejectRefund(ctx, "owner-1", req.ID, "規約によりキャンセル料が発生します")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRejected, rejected.Status)
	assert.Equal(t, "規約によりキャンセル料が発生します", rejected.Reason)

	// 却下後は再申請できる
	again, err := env.refunds.CreateRefundRequest(ctx, CreateRefundInput{ReservationID: res.ID, UserID: "user-1", Amount: 300})
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, again.ID)

	_, err = env.refunds.RejectRefund(ctx, "owner-1", "missing", "")
	assert.ErrorIs(t, err, refund.ErrRefundNotFound)
}
