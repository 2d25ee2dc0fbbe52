package service

import (
	"context"
	"testing"

	"github.com/cloudedbasement/control-panel/internal/models"
)

func newPaymentFixture() (*PaymentService, *fakePaymentStore, *fakeServerStore) {
	servers := newFakeServerStore()
	payments := &fakePaymentStore{}
	users := &fakeUserStore{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "owner@example.com"},
	}}
	provision := NewProvisionService(testConfig(), servers, users, payments,
		&fakeEventLog{}, &fakeComputeGateway{}, &fakeMailer{})
	return NewPaymentService(payments, servers, provision), payments, servers
}

func TestRecordPayment(t *testing.T) {
	t.Run("first succeeded payment starts provisioning", func(t *testing.T) {
		svc, payments, servers := newPaymentFixture()

		resp, err := svc.RecordPayment(context.Background(), &models.RecordPaymentRequest{
			UserID:      "user-1",
			Status:      models.PaymentStatusSucceeded,
			AmountCents: 1500,
			Plan:        models.PlanPro,
		})
		if err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
		if !resp.ProvisioningStarted || resp.ServerID == "" {
			t.Fatalf("expected provisioning started, got %+v", resp)
		}
		if len(payments.payments) != 1 {
			t.Fatalf("expected one payment recorded, got %d", len(payments.payments))
		}

		server, err := servers.GetByID(context.Background(), resp.ServerID)
		if err != nil {
			t.Fatalf("server record missing: %v", err)
		}
		if server.Plan != models.PlanPro || server.SiteLimit != 5 {
			t.Errorf("unexpected server %+v", server)
		}
	})

	t.Run("renewal payment does not provision again", func(t *testing.T) {
		svc, _, servers := newPaymentFixture()
		servers.Create(context.Background(), &models.Server{
			ID:     "srv-1",
			UserID: "user-1",
			Status: models.ServerStatusRunning,
		})

		resp, err := svc.RecordPayment(context.Background(), &models.RecordPaymentRequest{
			UserID: "user-1",
			Status: models.PaymentStatusSucceeded,
			Plan:   models.PlanBasic,
		})
		if err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
		if resp.ProvisioningStarted {
			t.Fatal("expected no provisioning for renewal")
		}
	})

	t.Run("failed payment is recorded but never provisions", func(t *testing.T) {
		svc, payments, _ := newPaymentFixture()

		resp, err := svc.RecordPayment(context.Background(), &models.RecordPaymentRequest{
			UserID: "user-1",
			Status: models.PaymentStatusFailed,
			Plan:   models.PlanBasic,
		})
		if err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
		if resp.ProvisioningStarted {
			t.Fatal("expected no provisioning for failed payment")
		}
		if len(payments.payments) != 1 {
			t.Fatalf("expected payment recorded, got %d", len(payments.payments))
		}
	})

	t.Run("rejects unknown status and plan", func(t *testing.T) {
		svc, _, _ := newPaymentFixture()

		if _, err := svc.RecordPayment(context.Background(), &models.RecordPaymentRequest{
			UserID: "user-1", Status: "charged", Plan: models.PlanBasic,
		}); err == nil {
			t.Error("expected error for unknown status")
		}
		if _, err := svc.RecordPayment(context.Background(), &models.RecordPaymentRequest{
			UserID: "user-1", Status: models.PaymentStatusSucceeded, Plan: "mega",
		}); err == nil {
			t.Error("expected error for unknown plan")
		}
	})
}
