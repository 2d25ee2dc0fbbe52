package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/cloudedbasement/control-panel/internal/repository"
)

// PaymentService records settled charges and kicks off provisioning for
// first-time payers. Webhook verification happens at the billing edge; by the
// time a request lands here it is already authenticated with the internal
// secret.
type PaymentService struct {
	payments  PaymentStore
	servers   ServerStore
	provision *ProvisionService
}

// NewPaymentService creates a new payment service
func NewPaymentService(payments PaymentStore, servers ServerStore, provision *ProvisionService) *PaymentService {
	return &PaymentService{
		payments:  payments,
		servers:   servers,
		provision: provision,
	}
}

// RecordPayment stores the payment and, when it succeeded and the user has no
// server yet, starts provisioning one.
func (s *PaymentService) RecordPayment(ctx context.Context, req *models.RecordPaymentRequest) (*models.RecordPaymentResponse, error) {
	switch req.Status {
	case models.PaymentStatusSucceeded, models.PaymentStatusFailed, models.PaymentStatusPending:
	default:
		return nil, fmt.Errorf("unknown payment status %q", req.Status)
	}
	if !models.ValidPlan(req.Plan) {
		return nil, fmt.Errorf("unknown plan %q", req.Plan)
	}

	interval := req.Interval
	if interval == "" {
		interval = models.IntervalMonthly
	}

	payment := &models.Payment{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Status:      req.Status,
		AmountCents: req.AmountCents,
		Plan:        req.Plan,
		Interval:    interval,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	log.Printf("[Payment] Recorded %s payment %s for user %s (plan %s)",
		req.Status, payment.ID, req.UserID, req.Plan)

	resp := &models.RecordPaymentResponse{
		PaymentID: payment.ID,
		Message:   "Payment recorded",
	}

	if req.Status != models.PaymentStatusSucceeded {
		return resp, nil
	}

	// A succeeded payment for a user without a server means a fresh signup
	_, err := s.servers.GetActiveByUser(ctx, req.UserID)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("[Payment] Check existing server for user %s: %v", req.UserID, err)
		return resp, nil
	}

	provResp, err := s.provision.Provision(ctx, &models.ProvisionRequest{
		UserID:   req.UserID,
		Plan:     req.Plan,
		Interval: interval,
	})
	if err != nil {
		log.Printf("[Payment] Provisioning after payment %s failed to start: %v", payment.ID, err)
		resp.Message = "Payment recorded; provisioning could not be started"
		return resp, nil
	}

	resp.ProvisioningStarted = true
	resp.ServerID = provResp.ServerID
	resp.Message = "Payment recorded; provisioning started"
	return resp, nil
}

// ListPayments returns the caller's payment history
func (s *PaymentService) ListPayments(ctx context.Context, userID string) ([]*models.PaymentInfo, error) {
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]*models.PaymentInfo, 0, len(payments))
	for _, payment := range payments {
		infos = append(infos, &models.PaymentInfo{
			PaymentID:   payment.ID,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
			Plan:        payment.Plan,
			Interval:    payment.Interval,
			CreatedAt:   payment.CreatedAt.Format(time.RFC3339),
		})
	}
	return infos, nil
}
