package booking

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/admins"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/txn"
	"ms-booking/internal/utils"
)

// Store is the persistence the workflows need. Writes receive the
// transaction to run on; reads accept nil for the pool.
type Store interface {
	InsertBooking(ctx context.Context, idb bun.IDB, b *models.Booking) error
	InsertApproval(ctx context.Context, idb bun.IDB, a *models.ApprovalRecord) error
	InsertAnalyticsEvent(ctx context.Context, idb bun.IDB, e *models.AnalyticsEvent) error
	InsertNotification(ctx context.Context, idb bun.IDB, n *models.Notification) error
	LockApproval(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.ApprovalRecord, error)
	ResolveApproval(ctx context.Context, idb bun.IDB, a *models.ApprovalRecord) (bool, error)
	GetBooking(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, idb bun.IDB, b *models.Booking, status models.BookingStatus, from []models.BookingStatus) (bool, error)
	GetApproval(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.ApprovalRecord, error)
	ListNotificationsByUser(ctx context.Context, idb bun.IDB, userID int64, limit int) ([]models.Notification, error)
	ListBookingsByUser(ctx context.Context, idb bun.IDB, userID int64) ([]models.Booking, error)
}

// Transactor runs a named unit of work atomically. *txn.Coordinator
// implements it.
type Transactor interface {
	Run(ctx context.Context, name string, fn txn.UnitOfWork) error
}

type Options struct {
	// AllowUnassignedAdmin writes the creation notification with no admin
	// when the resolver finds none, instead of failing the booking.
	AllowUnassignedAdmin bool
}

type Service struct {
	Store   Store
	Tx      Transactor
	Admins  admins.Resolver
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	opts    Options

	now          func() time.Time
	newReference func(models.BookingType) (string, error)
}

func NewService(store Store, tx Transactor, resolver admins.Resolver, opts Options, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		Store:        store,
		Tx:           tx,
		Admins:       resolver,
		Logger:       log,
		Metrics:      m,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
		newReference: utils.GenerateBookingReference,
	}
}

// ---------------- READS ----------------

func (s *Service) GetBooking(ctx context.Context, t models.BookingType, id int64) (*models.Booking, error) {
	return s.Store.GetBooking(ctx, nil, t, id)
}

func (s *Service) GetApproval(ctx context.Context, t models.BookingType, id int64) (*models.ApprovalRecord, error) {
	return s.Store.GetApproval(ctx, nil, t, id)
}

func (s *Service) ListNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return s.Store.ListNotificationsByUser(ctx, nil, userID, limit)
}

func (s *Service) ListBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	return s.Store.ListBookingsByUser(ctx, nil, userID)
}
