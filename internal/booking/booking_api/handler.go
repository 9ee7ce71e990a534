package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ms-booking/internal/analytics"
	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
	"ms-booking/internal/voucher"
)

type Handler struct {
	BookingService   *booking.Service
	AnalyticsService *analytics.Service
	Vouchers         *voucher.Generator
	Logger           *logger.Logger
}

func NewHandler(svc *booking.Service, analyticsSvc *analytics.Service, vouchers *voucher.Generator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		BookingService:   svc,
		AnalyticsService: analyticsSvc,
		Vouchers:         vouchers,
		Logger:           log,
	}
}

// Router builds the service's HTTP surface. gatherer backs /metrics; nil
// leaves the endpoint out.
func (h *Handler) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/flights", h.CreateFlightBooking)
			r.Post("/hotels", h.CreateHotelBooking)
			r.Route("/{bookingType}/{bookingId}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Get("/approval", h.GetApproval)
				r.Post("/approve", h.ApproveBooking)
				r.Post("/reject", h.RejectBooking)
				r.Get("/voucher", h.GetVoucher)
			})
		})
		r.Post("/vouchers/verify", h.VerifyVoucher)
		r.Get("/users/{userId}/bookings", h.ListUserBookings)
		r.Get("/users/{userId}/notifications", h.ListUserNotifications)
		r.Get("/analytics/summary", h.GetAnalyticsSummary)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).String())
	})
}

// ---------------- CREATE ----------------

func (h *Handler) CreateFlightBooking(w http.ResponseWriter, r *http.Request) {
	var in models.FlightBookingInput
	if !h.decode(w, r, "CreateFlightBooking", &in) {
		return
	}
	b, err := h.BookingService.CreateFlightBooking(r.Context(), in)
	if err != nil {
		h.writeError(w, "CreateFlightBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Flight booking created", b))
}

func (h *Handler) CreateHotelBooking(w http.ResponseWriter, r *http.Request) {
	var in models.HotelBookingInput
	if !h.decode(w, r, "CreateHotelBooking", &in) {
		return
	}
	b, err := h.BookingService.CreateHotelBooking(r.Context(), in)
	if err != nil {
		h.writeError(w, "CreateHotelBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Hotel booking created", b))
}

// ---------------- READ ----------------

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.bookingKey(w, r, "GetBooking")
	if !ok {
		return
	}
	b, err := h.BookingService.GetBooking(r.Context(), t, id)
	if err != nil {
		h.writeError(w, "GetBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", b))
}

func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.bookingKey(w, r, "GetApproval")
	if !ok {
		return
	}
	a, err := h.BookingService.GetApproval(r.Context(), t, id)
	if err != nil {
		h.writeError(w, "GetApproval", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Approval retrieved", a))
}

func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "ListUserBookings")
	if !ok {
		return
	}
	bookings, err := h.BookingService.ListBookings(r.Context(), userID)
	if err != nil {
		h.writeError(w, "ListUserBookings", err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Bookings retrieved", bookings))
}

func (h *Handler) ListUserNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "ListUserNotifications")
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, "ListUserNotifications", apperrors.Validation("list notifications", map[string]string{"limit": "gte=0"}))
			return
		}
		limit = n
	}
	notifications, err := h.BookingService.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, "ListUserNotifications", err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Notifications retrieved", notifications))
}

// ---------------- RESOLVE ----------------

type resolutionRequest struct {
	AdminID int64   `json:"adminId"`
	Notes   *string `json:"notes,omitempty"`
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.bookingKey(w, r, "ApproveBooking")
	if !ok {
		return
	}
	var req resolutionRequest
	if !h.decode(w, r, "ApproveBooking", &req) {
		return
	}
	if err := h.BookingService.ApproveBooking(r.Context(), t, id, req.AdminID, req.Notes); err != nil {
		h.writeError(w, "ApproveBooking", err)
		return
	}
	h.writeResolved(w, r, "ApproveBooking", t, id, "Booking approved")
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.bookingKey(w, r, "RejectBooking")
	if !ok {
		return
	}
	var req resolutionRequest
	if !h.decode(w, r, "RejectBooking", &req) {
		return
	}
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	if err := h.BookingService.RejectBooking(r.Context(), t, id, req.AdminID, notes); err != nil {
		h.writeError(w, "RejectBooking", err)
		return
	}
	h.writeResolved(w, r, "RejectBooking", t, id, "Booking rejected")
}

// writeResolved answers with the committed approval record.
func (h *Handler) writeResolved(w http.ResponseWriter, r *http.Request, op string, t models.BookingType, id int64, message string) {
	a, err := h.BookingService.GetApproval(r.Context(), t, id)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, a))
}

// ---------------- VOUCHER ----------------

func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.bookingKey(w, r, "GetVoucher")
	if !ok {
		return
	}
	b, err := h.BookingService.GetBooking(r.Context(), t, id)
	if err != nil {
		h.writeError(w, "GetVoucher", err)
		return
	}
	png, err := h.Vouchers.Generate(b)
	if err != nil {
		h.writeError(w, "GetVoucher", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", b.BookingReference+".png"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetVoucher: failed to write image: %v", err))
	}
}

func (h *Handler) VerifyVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !h.decode(w, r, "VerifyVoucher", &req) {
		return
	}
	claims, err := h.Vouchers.Open(req.Token)
	if err != nil {
		h.writeError(w, "VerifyVoucher", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Voucher valid", claims))
}

// ---------------- ANALYTICS ----------------

func (h *Handler) GetAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.AnalyticsService.Summary(r.Context())
	if err != nil {
		h.writeError(w, "GetAnalyticsSummary", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Analytics summary", summary))
}

// ---------------- HELPERS ----------------

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// decode reads exactly one JSON object from the body. Unknown fields,
// trailing data and bodies over maxBodyBytes are rejected.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON body")
	}
	if err == nil {
		return true
	}

	h.Logger.Warn("API", fmt.Sprintf("%s: failed to decode request body: %v", op, err))
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	resp := utils.ErrorResponse("Invalid request body", err.Error())
	resp.Kind = string(apperrors.KindValidation)
	utils.WriteJSON(w, status, resp)
	return false
}

func (h *Handler) bookingKey(w http.ResponseWriter, r *http.Request, op string) (models.BookingType, int64, bool) {
	fields := map[string]string{}
	t, ok := models.ParseBookingType(chi.URLParam(r, "bookingType"))
	if !ok {
		fields["bookingType"] = "oneof=flight hotel"
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "bookingId"), 10, 64)
	if err != nil || id <= 0 {
		fields["bookingId"] = "gt=0"
	}
	if len(fields) > 0 {
		h.writeError(w, op, apperrors.Validation("parse booking key", fields))
		return "", 0, false
	}
	return t, id, true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, op, apperrors.Validation("parse user id", map[string]string{"userId": "gt=0"}))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	kind := apperrors.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}

	resp := utils.ErrorResponse(messageFor(kind), err.Error())
	resp.Kind = string(kind)
	if e, ok := apperrors.As(err); ok {
		resp.Fields = e.Fields
	}
	if kind == apperrors.KindInternal {
		resp.Error = "internal error"
	}
	utils.WriteJSON(w, status, resp)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindAlreadyResolved, apperrors.KindConstraint:
		return http.StatusConflict
	case apperrors.KindNoAdmin, apperrors.KindSerialization, apperrors.KindConnectivity:
		return http.StatusServiceUnavailable
	case apperrors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindValidation:
		return "Invalid input"
	case apperrors.KindNotFound:
		return "Not found"
	case apperrors.KindAlreadyResolved:
		return "Approval already resolved"
	case apperrors.KindConstraint:
		return "Conflicting data"
	case apperrors.KindNoAdmin:
		return "No admin available"
	case apperrors.KindSerialization, apperrors.KindConnectivity:
		return "Temporarily unavailable, retry later"
	case apperrors.KindTimeout:
		return "Request timed out"
	default:
		return "Internal server error"
	}
}
