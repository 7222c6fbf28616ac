package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

func TestReconciler_Reconcile(t *testing.T) {
	t.Parallel()

	t.Run("success code marks paid and confirmed", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(12, "150000"))
		clk := clock.NewManual(testNow)
		r := NewReconciler(repo, clk)
		clk.Advance(time.Minute)

		res, err := r.Reconcile(context.Background(), Callback{OrderRef: "12", ResponseCode: "00", TransactionID: "TX-1"})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.True(t, res.Paid())
		assert.Equal(t, domain.PaymentPaid, res.Order.PaymentStatus)
		assert.Equal(t, domain.FulfillmentConfirmed, res.Order.FulfillmentStatus)
		require.NotNil(t, res.Order.TransactionID)
		assert.Equal(t, "TX-1", *res.Order.TransactionID)

		stored := repo.get(12)
		assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
		assert.Equal(t, domain.FulfillmentConfirmed, stored.FulfillmentStatus)
		assert.Equal(t, testNow.Add(time.Minute), stored.UpdatedAt)
	})

	t.Run("failure code marks failed and cancelled", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(13, "150000"))
		r := NewReconciler(repo, clock.NewManual(testNow))

		res, err := r.Reconcile(context.Background(), Callback{OrderRef: "13", ResponseCode: "24"})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.False(t, res.Paid())
		assert.Equal(t, domain.PaymentFailed, repo.get(13).PaymentStatus)
		assert.Equal(t, domain.FulfillmentCancelled, repo.get(13).FulfillmentStatus)
	})

	t.Run("redelivered success is a no-op", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(14, "150000"))
		core, logs := observer.New(zap.InfoLevel)
		r := NewReconciler(repo, clock.NewManual(testNow), WithReconcilerLogger(zap.New(core)))

		first, err := r.Reconcile(context.Background(), Callback{OrderRef: "14", ResponseCode: "00"})
		require.NoError(t, err)
		require.True(t, first.Applied)
		versionAfterFirst := repo.get(14).Version

		second, err := r.Reconcile(context.Background(), Callback{OrderRef: "14", ResponseCode: "00"})
		require.NoError(t, err)
		assert.False(t, second.Applied)
		assert.True(t, second.Paid())
		assert.Equal(t, versionAfterFirst, repo.get(14).Version)
		assert.Equal(t, 1, logs.FilterMessage("payment callback already reconciled").Len())
	})

	t.Run("late failure does not undo a captured payment", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(15, "150000"))
		r := NewReconciler(repo, clock.NewManual(testNow))

		_, err := r.Reconcile(context.Background(), Callback{OrderRef: "15", ResponseCode: "00"})
		require.NoError(t, err)
		res, err := r.Reconcile(context.Background(), Callback{OrderRef: "15", ResponseCode: "99"})
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, domain.PaymentPaid, repo.get(15).PaymentStatus)
		assert.Equal(t, domain.FulfillmentConfirmed, repo.get(15).FulfillmentStatus)
	})

	t.Run("success on a cancelled order keeps fulfillment", func(t *testing.T) {
		t.Parallel()
		o := gatewayOrder(16, "150000")
		o.FulfillmentStatus = domain.FulfillmentCancelled
		repo := newFakeOrderRepo(o)
		core, logs := observer.New(zap.WarnLevel)
		r := NewReconciler(repo, clock.NewManual(testNow), WithReconcilerLogger(zap.New(core)))

		res, err := r.Reconcile(context.Background(), Callback{OrderRef: "16", ResponseCode: "00"})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, domain.PaymentPaid, repo.get(16).PaymentStatus)
		assert.Equal(t, domain.FulfillmentCancelled, repo.get(16).FulfillmentStatus)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("matching amount is accepted", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(17, "150000"))
		r := NewReconciler(repo, clock.NewManual(testNow))
		amount := dec("150000.00")

		res, err := r.Reconcile(context.Background(), Callback{OrderRef: "17", ResponseCode: "00", Amount: &amount})
		require.NoError(t, err)
		assert.True(t, res.Applied)
	})

	t.Run("amount mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(18, "150000"))
		r := NewReconciler(repo, clock.NewManual(testNow))
		amount := dec("1000")

		_, err := r.Reconcile(context.Background(), Callback{OrderRef: "18", ResponseCode: "00", Amount: &amount})
		require.ErrorIs(t, err, domain.ErrAmountMismatch)
		assert.Equal(t, domain.PaymentPending, repo.get(18).PaymentStatus)
	})

	t.Run("cash on delivery orders reject callbacks", func(t *testing.T) {
		t.Parallel()
		o := gatewayOrder(19, "150000")
		o.PaymentMethod = domain.PaymentCashOnDelivery
		repo := newFakeOrderRepo(o)
		r := NewReconciler(repo, clock.NewManual(testNow))

		_, err := r.Reconcile(context.Background(), Callback{OrderRef: "19", ResponseCode: "00"})
		require.ErrorIs(t, err, domain.ErrInvalidCallback)
		assert.Equal(t, domain.PaymentPending, repo.get(19).PaymentStatus)
	})

	t.Run("malformed reference", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo()
		r := NewReconciler(repo, clock.NewManual(testNow))

		for _, ref := range []string{"", "abc", "-4", "0"} {
			_, err := r.Reconcile(context.Background(), Callback{OrderRef: ref, ResponseCode: "00"})
			require.ErrorIs(t, err, domain.ErrInvalidCallback, ref)
		}
		assert.Equal(t, 0, repo.calls)
	})

	t.Run("unknown order", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(newFakeOrderRepo(), clock.NewManual(testNow))

		_, err := r.Reconcile(context.Background(), Callback{OrderRef: "404", ResponseCode: "00"})
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("storage failure rolls back", func(t *testing.T) {
		t.Parallel()
		repo := newFakeOrderRepo(gatewayOrder(20, "150000"))
		repo.updateErr = errStorage
		r := NewReconciler(repo, clock.NewManual(testNow))

		_, err := r.Reconcile(context.Background(), Callback{OrderRef: "20", ResponseCode: "00"})
		require.ErrorIs(t, err, domain.ErrPersistence)
		assert.Equal(t, domain.PaymentPending, repo.get(20).PaymentStatus)
	})
}
