package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"card-gateway/apperr"
	"card-gateway/logging"
	"card-gateway/middleware"
	"card-gateway/models"
)

// Authorizer runs a card authorization.
type Authorizer interface {
	Authorize(ctx context.Context, callerID string, req *models.AuthorizeRequest, remoteAddr string) (*models.AuthorizeResponse, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PaymentHandler handles HTTP requests for card payments
type PaymentHandler struct {
	payments Authorizer
	store    Pinger
}

// NewPaymentHandler returns the HTTP handlers for payments and probes.
func NewPaymentHandler(payments Authorizer, store Pinger) *PaymentHandler {
	return &PaymentHandler{payments: payments, store: store}
}

// Authorize handles POST /api/payments/authorize.
func (h *PaymentHandler) Authorize(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)
	logger := logging.WithTraceContext(span).With(zap.String("request_id", middleware.GetRequestID(c)))

	var req models.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request",
			"fields":  bindErrorFields(err),
		})
		return
	}

	resp, err := h.payments.Authorize(ctx, middleware.CallerID(c), &req, c.ClientIP())
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Card authorization failed", zap.Error(err), zap.String("order_ref", req.OrderRef))
		} else {
			logger.Info("Card authorization rejected", zap.Error(err), zap.String("order_ref", req.OrderRef))
		}
		c.JSON(status, errorBody(resp, err, req.OrderRef))
		return
	}

	span.AddEvent("card_authorized")
	c.JSON(http.StatusOK, resp)
}

// HealthCheck handles liveness probes.
func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready reports whether the backing store answers.
func (h *PaymentHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logging.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func errorBody(resp *models.AuthorizeResponse, err error, orderRef string) gin.H {
	body := gin.H{
		"success": false,
		"message": apperr.PublicMessage(err),
	}
	if resp != nil {
		body["message"] = resp.Message
		body["orderRef"] = resp.OrderRef
		body["responseCode"] = resp.ResponseCode
		return body
	}
	if ae, ok := apperr.As(err); ok {
		if len(ae.Fields) > 0 {
			body["fields"] = ae.Fields
		}
		if ae.ResponseCode != "" {
			body["responseCode"] = ae.ResponseCode
		}
	}
	if orderRef != "" {
		body["orderRef"] = orderRef
	}
	return body
}

var jsonNames = map[string]string{
	"Amount":          "amount",
	"CurrencyCode":    "currencyCode",
	"OrderRef":        "orderRef",
	"CustomerEmail":   "customerEmail",
	"CustomerName":    "customerName",
	"CardNumber":      "cardNumber",
	"CardExpiryMonth": "cardExpiryMonth",
	"CardExpiryYear":  "cardExpiryYear",
	"CardCVV":         "cardCVV",
}

func bindErrorFields(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			name, ok := jsonNames[fe.StructField()]
			if !ok {
				name = fe.Field()
			}
			out[name] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}
	out["_"] = "malformed JSON body"
	return out
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + param
	case "lte":
		return "must be at most " + param
	case "max":
		return "must be at most " + param + " characters"
	default:
		return "is invalid"
	}
}
