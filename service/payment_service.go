package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"card-gateway/apperr"
	"card-gateway/events"
	"card-gateway/gateway"
	"card-gateway/guard"
	"card-gateway/ledger"
	"card-gateway/logging"
	"card-gateway/models"
	"card-gateway/monitoring"
	"card-gateway/store"
)

// ReasonEchoMismatch is recorded when a response names another attempt.
const ReasonEchoMismatch = "echo mismatch"

// Sender makes the single outbound gateway call.
type Sender interface {
	Send(ctx context.Context, req gateway.SignedRequest) ([]byte, error)
}

// Settings are the gateway credentials and policy, fixed at start-up.
type Settings struct {
	Merchant        gateway.MerchantSettings
	Secret          string
	SignaturePolicy gateway.SignaturePolicy
}

// Deps are the collaborators of PaymentService.
type Deps struct {
	Tracer    trace.Tracer
	Guard     *guard.Guard
	Ledger    *ledger.Ledger
	Gateway   Sender
	Settler   store.Settler
	Publisher events.Publisher
}

// PaymentService runs one direct card authorization per call.
type PaymentService struct {
	tracer    trace.Tracer
	guard     *guard.Guard
	ledger    *ledger.Ledger
	gateway   Sender
	settler   store.Settler
	publisher events.Publisher
	settings  Settings
}

// NewPaymentService wires a PaymentService. A nil publisher drops events and
// an empty policy means audit.
func NewPaymentService(d Deps, s Settings) *PaymentService {
	pub := d.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer("card-gateway")
	}
	if s.SignaturePolicy == "" {
		s.SignaturePolicy = gateway.PolicyAudit
	}
	return &PaymentService{
		tracer:    tracer,
		guard:     d.Guard,
		ledger:    d.Ledger,
		gateway:   d.Gateway,
		settler:   d.Settler,
		publisher: pub,
		settings:  s,
	}
}

// attempt carries one authorization through its stages.
type attempt struct {
	callerID string
	req      *models.AuthorizeRequest
	order    *models.Order
	token    string
	signed   gateway.SignedRequest
	logger   *zap.Logger
}

// Authorize validates, guards, records, signs, sends and verifies a SALE.
// On a decline it returns both the caller response and a Declined error.
func (s *PaymentService) Authorize(ctx context.Context, callerID string, req *models.AuthorizeRequest, remoteAddr string) (*models.AuthorizeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "authorize_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment.order_ref", req.OrderRef),
		attribute.Int64("payment.amount", req.Amount),
		attribute.Int("payment.currency_code", req.CurrencyCode),
	)
	a := &attempt{
		callerID: callerID,
		req:      req,
		logger: logging.WithTraceContext(span).With(
			zap.String("order_ref", req.OrderRef),
			zap.String("user_id", callerID),
		),
	}

	resp, err := s.authorize(ctx, a, remoteAddr)
	if err != nil {
		span.RecordError(err)
		if apperr.HTTPStatus(err) >= 500 {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	return resp, err
}

func (s *PaymentService) authorize(ctx context.Context, a *attempt, remoteAddr string) (*models.AuthorizeResponse, error) {
	card := gateway.Card{
		Number:      a.req.CardNumber.String(),
		ExpiryMonth: a.req.CardExpiryMonth.String(),
		ExpiryYear:  a.req.CardExpiryYear.String(),
		CVV:         a.req.CardCVV.String(),
	}
	if err := gateway.ValidateCard(card); err != nil {
		s.count(ctx, "rejected", "validation")
		return nil, apperr.InvalidErr("Invalid card details", gateway.CardErrorFields(err))
	}

	order, err := s.guard.Check(ctx, a.callerID, a.req.OrderRef, a.req.Amount)
	if err != nil {
		s.count(ctx, "rejected", "guard")
		return nil, guardError(err)
	}
	if order.CurrencyCode != 0 && order.CurrencyCode != a.req.CurrencyCode {
		s.count(ctx, "rejected", "guard")
		return nil, apperr.InvalidErr("Currency does not match order", map[string]string{"currencyCode": "does not match order"})
	}
	a.order = order

	if err := s.guard.Recheck(ctx, order.ID); err != nil {
		s.count(ctx, "rejected", "guard")
		return nil, guardError(err)
	}

	token, err := s.ledger.Begin(ctx, ledger.BeginInput{
		OrderID:      order.ID,
		UserID:       a.callerID,
		Amount:       a.req.Amount,
		CurrencyCode: a.req.CurrencyCode,
	})
	if err != nil {
		a.logger.Error("Failed to open ledger record", zap.Error(err))
		return nil, apperr.Wrap(err)
	}
	a.token = token
	a.logger = a.logger.With(zap.String("transaction_unique", token))

	fields := gateway.BuildSaleFields(s.settings.Merchant, gateway.Sale{
		Amount:            a.req.Amount,
		CurrencyCode:      a.req.CurrencyCode,
		OrderRef:          order.ID,
		TransactionUnique: token,
		Card:              card,
		CustomerName:      a.req.CustomerName,
		CustomerEmail:     a.req.CustomerEmail,
		RemoteAddress:     remoteAddr,
	})
	a.signed = gateway.SignRequest(fields, s.settings.Secret)

	// Past this point the row must reach a terminal state even if the caller
	// goes away.
	bg := context.WithoutCancel(ctx)

	if err := ctx.Err(); err != nil {
		s.complete(bg, a, ledger.Outcome{Status: models.TxFailed, Attempt: models.OutcomeLocalFailure})
		return nil, apperr.Wrap(err)
	}

	a.logger.Info("Sending authorization",
		zap.Int("field_count", len(a.signed.Fields)),
		zap.String("signature_preview", gateway.DigestPreview(a.signed.Signature)),
	)
	raw, err := s.gateway.Send(ctx, a.signed)
	if err != nil {
		return nil, s.transportFailure(bg, a, err)
	}

	return s.settle(bg, a, raw)
}

// settle interprets a response body that arrived intact.
func (s *PaymentService) settle(ctx context.Context, a *attempt, raw []byte) (*models.AuthorizeResponse, error) {
	verification := gateway.Verify(raw, s.settings.Secret)
	if !verification.Valid {
		monitoring.SignatureMismatchCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", verification.Reason)))
		a.logger.Warn("Gateway response signature did not verify",
			zap.String("reason", verification.Reason),
			zap.String("policy", string(s.settings.SignaturePolicy)),
		)
		s.publish(ctx, a, events.Event{Type: events.TypeSignatureMismatch, Reason: verification.Reason})
	}

	parsed, err := gateway.ParseResponse(raw)
	if err != nil {
		a.logger.Error("Malformed gateway response", zap.Error(err))
		s.complete(ctx, a, ledger.Outcome{
			Status:            models.TxAmbiguous,
			Attempt:           failedOutcome(verification.Valid),
			SignatureVerified: verification.Valid,
			MismatchReason:    verification.Reason,
			Request:           a.signed.Fields,
			RawResponse:       raw,
		})
		s.count(ctx, "ambiguous", "malformed")
		return nil, apperr.New(apperr.GatewayUnavailable, "Payment status could not be confirmed", err)
	}

	approved := parsed.Approved()
	outcome := ledger.Outcome{
		Attempt:              attemptOutcome(approved, verification.Valid),
		GatewayTransactionID: parsed.TransactionID,
		ResponseCode:         parsed.ResponseCode,
		ResponseMessage:      parsed.ResponseMessage,
		SignatureVerified:    verification.Valid,
		MismatchReason:       verification.Reason,
		Request:              a.signed.Fields,
		Response:             parsed.Values,
	}

	// A response for another attempt proves nothing about this one, however
	// well it is signed.
	if field := echoMismatch(parsed, a); field != "" {
		a.logger.Warn("Gateway response does not belong to this attempt",
			zap.String("field", field),
			zap.String("echoed_transaction_unique", parsed.TransactionUnique),
			zap.String("echoed_order_ref", parsed.OrderRef),
		)
		monitoring.SignatureMismatchCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", ReasonEchoMismatch)))
		outcome.Status = models.TxAmbiguous
		outcome.Attempt = attemptOutcome(approved, false)
		if verification.Valid {
			outcome.MismatchReason = ReasonEchoMismatch
		}
		if err := s.complete(ctx, a, outcome); err != nil {
			return nil, apperr.Wrap(err)
		}
		s.count(ctx, string(models.TxAmbiguous), string(outcome.Attempt))
		s.publish(ctx, a, events.Event{
			Type:                 events.TypeEchoMismatch,
			GatewayTransactionID: parsed.TransactionID,
			ResponseCode:         parsed.ResponseCode,
			Reason:               ReasonEchoMismatch + ": " + field,
		})
		return nil, apperr.New(apperr.Signature, "Payment status could not be confirmed",
			fmt.Errorf("%s: %s", ReasonEchoMismatch, field))
	}

	if !verification.Valid && s.settings.SignaturePolicy == gateway.PolicyEnforce {
		outcome.Status = models.TxAmbiguous
		if err := s.complete(ctx, a, outcome); err != nil {
			return nil, apperr.Wrap(err)
		}
		s.count(ctx, "ambiguous", string(outcome.Attempt))
		return nil, apperr.New(apperr.Signature, "Payment status could not be confirmed", verification.Err())
	}

	if !approved {
		outcome.Status = models.TxFailed
		if err := s.complete(ctx, a, outcome); err != nil {
			return nil, apperr.Wrap(err)
		}
		s.count(ctx, string(models.TxFailed), string(outcome.Attempt))
		msg := gateway.DescribeResponseCode(parsed.ResponseCode, parsed.ResponseMessage)
		a.logger.Info("Authorization declined", zap.String("response_code", parsed.ResponseCode))
		return &models.AuthorizeResponse{
			Success:      false,
			OrderRef:     a.order.ID,
			Message:      msg,
			ResponseCode: parsed.ResponseCode,
		}, apperr.DeclinedErr(msg, parsed.ResponseCode)
	}

	outcome.Status = models.TxSuccess
	if err := s.complete(ctx, a, outcome); err != nil {
		return nil, apperr.Wrap(err)
	}
	s.count(ctx, string(models.TxSuccess), string(outcome.Attempt))
	monitoring.AuthorizationAmount.Record(ctx, a.req.Amount,
		metric.WithAttributes(attribute.Int("currency_code", a.req.CurrencyCode)))

	resp := &models.AuthorizeResponse{
		Success:       true,
		TransactionID: parsed.TransactionID,
		OrderRef:      a.order.ID,
		Message:       gateway.DescribeResponseCode(parsed.ResponseCode, parsed.ResponseMessage),
		ResponseCode:  parsed.ResponseCode,
	}

	// Only a verified success settles. An unverified one stays on the ledger
	// as success for reconciliation, and the guard refuses a new attempt.
	if !verification.Valid {
		a.logger.Warn("Unverified approval left for reconciliation",
			zap.String("gateway_transaction_id", parsed.TransactionID))
		return resp, nil
	}

	err = s.settler.Settle(ctx, &models.Settlement{
		ID:                   uuid.NewString(),
		OrderID:              a.order.ID,
		Token:                a.token,
		GatewayTransactionID: parsed.TransactionID,
		Amount:               a.req.Amount,
	})
	switch {
	case errors.Is(err, store.ErrAlreadySettled):
		a.logger.Warn("Order was already settled by another attempt",
			zap.String("gateway_transaction_id", parsed.TransactionID))
		s.publish(ctx, a, events.Event{
			Type:                 events.TypeDuplicateSettlement,
			GatewayTransactionID: parsed.TransactionID,
			ResponseCode:         parsed.ResponseCode,
			Reason:               "order already settled",
		})
		resp.Message = "Payment approved; order was already settled"
	case err != nil:
		// The charge stands and the ledger row blocks a second attempt.
		a.logger.Error("Failed to settle order", zap.Error(err))
		s.publish(ctx, a, events.Event{
			Type:                 events.TypeSettlementFailed,
			GatewayTransactionID: parsed.TransactionID,
			ResponseCode:         parsed.ResponseCode,
			Reason:               err.Error(),
		})
	default:
		s.publish(ctx, a, events.Event{
			Type:                 events.TypeAuthorizationSucceeded,
			GatewayTransactionID: parsed.TransactionID,
			ResponseCode:         parsed.ResponseCode,
		})
	}

	a.logger.Info("Authorization approved",
		zap.String("gateway_transaction_id", parsed.TransactionID),
		zap.Bool("signature_verified", verification.Valid),
	)
	return resp, nil
}

// echoMismatch names the first echoed field that does not match the attempt.
// The amount is compared only when the gateway echoes it.
func echoMismatch(parsed gateway.ParsedResponse, a *attempt) string {
	switch {
	case parsed.TransactionUnique != a.token:
		return "transactionUnique"
	case parsed.OrderRef != a.order.ID:
		return "orderRef"
	}
	if amount, ok := parsed.Values["amount"]; ok && amount != strconv.FormatInt(a.req.Amount, 10) {
		return "amount"
	}
	return ""
}

func (s *PaymentService) transportFailure(ctx context.Context, a *attempt, err error) error {
	var te *gateway.TransportError
	timeout := errors.As(err, &te) && te.Timeout()
	a.logger.Error("Gateway call failed, outcome unknown",
		zap.Error(err),
		zap.Bool("timeout", timeout),
	)
	s.complete(ctx, a, ledger.Outcome{
		Status:  models.TxAmbiguous,
		Attempt: models.OutcomeTransportError,
		Request: a.signed.Fields,
	})
	s.count(ctx, string(models.TxAmbiguous), string(models.OutcomeTransportError))
	return apperr.New(apperr.GatewayUnavailable, "Payment gateway unavailable; payment status will be confirmed shortly", err)
}

func (s *PaymentService) complete(ctx context.Context, a *attempt, out ledger.Outcome) error {
	err := s.ledger.Complete(ctx, a.token, out)
	if err != nil {
		a.logger.Error("Failed to complete ledger record",
			zap.Error(err),
			zap.String("status", string(out.Status)),
			zap.String("outcome", string(out.Attempt)),
		)
	}
	return err
}

// publish fills in the attempt's identifiers and sends e. Failures are logged
// and never change the outcome.
func (s *PaymentService) publish(ctx context.Context, a *attempt, e events.Event) {
	e.Token = a.token
	e.OrderID = a.order.ID
	e.UserID = a.callerID
	e.Amount = a.req.Amount
	e.CurrencyCode = a.req.CurrencyCode
	if err := s.publisher.Publish(ctx, e); err != nil {
		a.logger.Warn("Failed to publish event", zap.String("event_type", e.Type), zap.Error(err))
	}
}

func (s *PaymentService) count(ctx context.Context, status, outcome string) {
	monitoring.AuthorizationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("outcome", outcome),
		),
	)
}

func attemptOutcome(approved, verified bool) models.AttemptOutcome {
	switch {
	case approved && verified:
		return models.OutcomeVerifiedSuccess
	case approved:
		return models.OutcomeUnverifiedSuccess
	default:
		return failedOutcome(verified)
	}
}

func failedOutcome(verified bool) models.AttemptOutcome {
	if verified {
		return models.OutcomeVerifiedFailed
	}
	return models.OutcomeUnverifiedFailed
}

func guardError(err error) error {
	switch {
	case errors.Is(err, guard.ErrOrderNotFound):
		return apperr.New(apperr.NotFound, "Order not found", err)
	case errors.Is(err, guard.ErrNotOrderOwner):
		return apperr.New(apperr.Forbidden, "Order does not belong to caller", err)
	case errors.Is(err, guard.ErrOrderAlreadyPaid):
		return apperr.New(apperr.Invalid, "Order has already been paid", err)
	case errors.Is(err, guard.ErrAmountMismatch):
		return apperr.New(apperr.Invalid, "Amount does not match order total", err)
	default:
		return apperr.Wrap(err)
	}
}
