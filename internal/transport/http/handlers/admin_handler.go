package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	orderssvc "github.com/Monu5641000/Telegram-bot/internal/services/orders"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
	"github.com/Monu5641000/Telegram-bot/internal/transport/http/dto"
	httperrors "github.com/Monu5641000/Telegram-bot/internal/transport/http/errors"
)

type OrderService interface {
	Approve(ctx context.Context, orderID string) (pgrepo.OrderRecord, error)
	Reject(ctx context.Context, orderID string) (pgrepo.OrderRecord, error)
	ListPending(ctx context.Context) ([]pgrepo.OrderRecord, error)
	Stats(ctx context.Context) (orderssvc.Stats, error)
}

type UserDirectory interface {
	List(ctx context.Context) ([]pgrepo.UserRecord, error)
}

type SubscriptionLedger interface {
	CheckAccess(ctx context.Context, userID int64) (subs.Access, error)
	Revoke(ctx context.Context, userID int64) error
}

type ContentCatalog interface {
	Add(ctx context.Context, channelMessageID int64, description string) (pgrepo.ContentRecord, error)
	FindBySequence(ctx context.Context, sequenceID int64) (pgrepo.ContentRecord, error)
	Total(ctx context.Context) (int64, error)
}

type UserNotifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type AdminHandler struct {
	orders   OrderService
	users    UserDirectory
	ledger   SubscriptionLedger
	content  ContentCatalog
	notifier UserNotifier
	logger   *zap.Logger
}

func NewAdminHandler(orders OrderService, users UserDirectory, ledger SubscriptionLedger, content ContentCatalog, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		orders:  orders,
		users:   users,
		ledger:  ledger,
		content: content,
		logger:  logger,
	}
}

// AttachNotifier enables approval/rejection messages to users. Without it
// decisions still apply, users just are not told.
func (h *AdminHandler) AttachNotifier(notifier UserNotifier) {
	h.notifier = notifier
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "USERS_UNAVAILABLE", "user directory is unavailable")
		return
	}

	records, err := h.users.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list users")
		return
	}

	items := make([]dto.AdminUserItem, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.AdminUserItem{
			UserID:     rec.UserID,
			Subscribed: rec.Subscribed,
			ExpiresAt:  rec.ExpiresAt,
			Cursor:     rec.Cursor,
			DemoUsed:   rec.DemoUsed,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.AdminUsersResponse{Items: items})
}

func (h *AdminHandler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeInternal(w, "ORDERS_UNAVAILABLE", "order service is unavailable")
		return
	}

	records, err := h.orders.ListPending(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list pending orders")
		return
	}

	items := make([]dto.AdminOrderItem, 0, len(records))
	for _, rec := range records {
		items = append(items, orderItem(rec))
	}

	httperrors.Write(w, http.StatusOK, dto.AdminOrdersResponse{Items: items})
}

func (h *AdminHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.decideOrder(w, r, true)
}

func (h *AdminHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	h.decideOrder(w, r, false)
}

func (h *AdminHandler) decideOrder(w http.ResponseWriter, r *http.Request, approve bool) {
	if h.orders == nil {
		writeInternal(w, "ORDERS_UNAVAILABLE", "order service is unavailable")
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "id"))
	if orderID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "order id is required")
		return
	}

	var (
		order pgrepo.OrderRecord
		err   error
	)
	if approve {
		order, err = h.orders.Approve(r.Context(), orderID)
	} else {
		order, err = h.orders.Reject(r.Context(), orderID)
	}
	if err != nil {
		switch {
		case errors.Is(err, orderssvc.ErrOrderNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "NOT_FOUND",
				Message: "order not found",
			})
		case errors.Is(err, orderssvc.ErrAlreadyProcessed):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "ALREADY_PROCESSED",
				Message: "order was already decided",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process order")
		}
		return
	}

	h.notifyDecision(r.Context(), order, approve)

	httperrors.Write(w, http.StatusOK, dto.OrderDecisionResponse{
		OrderID: order.OrderID,
		Status:  order.Status,
	})
}

func (h *AdminHandler) notifyDecision(ctx context.Context, order pgrepo.OrderRecord, approved bool) {
	if h.notifier == nil {
		return
	}

	var text string
	if approved {
		text = fmt.Sprintf("✅ Payment approved! Your %d-day subscription is now active. Send /start to begin.", order.GrantDays)
	} else {
		text = "❌ Your payment could not be verified. Please contact support or try again."
	}

	if err := h.notifier.Notify(ctx, order.UserID, text); err != nil {
		h.logger.Warn("order decision notify failed",
			zap.String("order_id", order.OrderID),
			zap.Int64("user_id", order.UserID),
			zap.Error(err))
	}
}

func (h *AdminHandler) RevokeUser(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LEDGER_UNAVAILABLE", "subscription ledger is unavailable")
		return
	}

	userID, ok := targetUserIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	if err := h.ledger.Revoke(r.Context(), userID); err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to revoke subscription")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RevokeResponse{UserID: userID, OK: true})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil || h.users == nil {
		writeInternal(w, "STATS_UNAVAILABLE", "stats are unavailable")
		return
	}

	earnings, err := h.orders.Stats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load earnings")
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list users")
		return
	}

	active := 0
	for _, rec := range users {
		if rec.Subscribed {
			active++
		}
	}

	pending, err := h.orders.ListPending(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list pending orders")
		return
	}

	var contentTotal int64
	if h.content != nil {
		contentTotal, err = h.content.Total(r.Context())
		if err != nil {
			writeInternal(w, "INTERNAL_ERROR", "failed to count content")
			return
		}
	}

	httperrors.Write(w, http.StatusOK, dto.AdminStatsResponse{
		TotalEarnings: earnings.Total,
		TodayEarnings: earnings.Today,
		TotalUsers:    len(users),
		ActiveUsers:   active,
		PendingOrders: len(pending),
		ContentItems:  contentTotal,
	})
}

func (h *AdminHandler) AddContent(w http.ResponseWriter, r *http.Request) {
	if h.content == nil {
		writeInternal(w, "CONTENT_UNAVAILABLE", "content catalog is unavailable")
		return
	}

	var req dto.AddContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.ChannelMessageID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "channel_message_id must be positive")
		return
	}

	record, err := h.content.Add(r.Context(), req.ChannelMessageID, strings.TrimSpace(req.Description))
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to register content")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AddContentResponse{
		SequenceID:       record.SequenceID,
		ChannelMessageID: record.ChannelMessageID,
	})
}

func (h *AdminHandler) ContentItem(w http.ResponseWriter, r *http.Request) {
	if h.content == nil {
		writeInternal(w, "CONTENT_UNAVAILABLE", "content catalog is unavailable")
		return
	}

	rawID := strings.TrimSpace(chi.URLParam(r, "id"))
	sequenceID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || sequenceID < 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid sequence id")
		return
	}

	record, err := h.content.FindBySequence(r.Context(), sequenceID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrContentItemNotFound) {
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "NOT_FOUND",
				Message: "content item not found",
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load content item")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ContentItemResponse{
		SequenceID:       record.SequenceID,
		ChannelMessageID: record.ChannelMessageID,
		Description:      record.Description,
		CreatedAt:        record.CreatedAt,
	})
}

func orderItem(rec pgrepo.OrderRecord) dto.AdminOrderItem {
	return dto.AdminOrderItem{
		OrderID:       rec.OrderID,
		UserID:        rec.UserID,
		Amount:        rec.Amount,
		GrantDays:     rec.GrantDays,
		ScreenshotKey: rec.ScreenshotKey,
		Status:        rec.Status,
		CreatedAt:     rec.CreatedAt,
	}
}

func targetUserIDFromRequest(r *http.Request) (int64, bool) {
	if r == nil {
		return 0, false
	}
	rawID := strings.TrimSpace(chi.URLParam(r, "id"))
	if rawID == "" {
		return 0, false
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
