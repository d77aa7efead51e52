package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"toolshare-backend/internal/apperr"
	"toolshare-backend/internal/model"
)

// Store defines the record-store operations the rest of the application
// depends on: get-by-id, filtered find and single-record upsert.
type Store interface {
	// DB exposes the underlying handle for collaborators that need ad hoc
	// queries (router wiring, migrations in tests).
	DB() *gorm.DB
	// Ping reports whether the record store is currently reachable. Used by
	// the scheduler's skip rule.
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateTool(ctx context.Context, tool *model.Tool) error
	GetTool(ctx context.Context, id int64) (*model.Tool, error)
	SaveTool(ctx context.Context, tool *model.Tool) error
	DeleteTool(ctx context.Context, id int64) error
	ListAvailableTools(ctx context.Context) ([]model.Tool, error)

	CreateBooking(ctx context.Context, booking *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	SaveBooking(ctx context.Context, booking *model.Booking) error
	ListBookingsForUser(ctx context.Context, userID int64) ([]model.Booking, error)
	HasActiveBooking(ctx context.Context, toolID, borrowerID int64) (bool, error)
	FindExpiredApproved(ctx context.Context, now time.Time) ([]model.Booking, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Unavailable("record store unreachable: %v", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.Unavailable("record store unreachable: %v", err)
	}
	return nil
}

// --- Users ---

func (s *gormStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", id, err)
	}
	return &user, nil
}

func (s *gormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no account for %s", email)
		}
		return nil, fmt.Errorf("failed to fetch user by email: %w", err)
	}
	return &user, nil
}

// --- Tools ---

func (s *gormStore) CreateTool(ctx context.Context, tool *model.Tool) error {
	return s.db.WithContext(ctx).Create(tool).Error
}

func (s *gormStore) GetTool(ctx context.Context, id int64) (*model.Tool, error) {
	var tool model.Tool
	if err := s.db.WithContext(ctx).Preload("Owner").First(&tool, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tool %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch tool %d: %w", id, err)
	}
	return &tool, nil
}

func (s *gormStore) SaveTool(ctx context.Context, tool *model.Tool) error {
	// Save without the preloaded association to avoid touching the owner row.
	return s.db.WithContext(ctx).Omit("Owner").Save(tool).Error
}

func (s *gormStore) DeleteTool(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.Tool{}, id).Error
}

func (s *gormStore) ListAvailableTools(ctx context.Context) ([]model.Tool, error) {
	var tools []model.Tool
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Where("availability = ?", true).
		Order("created_at DESC").
		Find(&tools).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available tools: %w", err)
	}
	return tools, nil
}

// --- Bookings ---

func (s *gormStore) CreateBooking(ctx context.Context, booking *model.Booking) error {
	return s.db.WithContext(ctx).Omit("Tool", "Borrower", "Owner").Create(booking).Error
}

func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var booking model.Booking
	err := s.db.WithContext(ctx).
		Preload("Tool").
		Preload("Borrower").
		Preload("Owner").
		First(&booking, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("booking %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch booking %d: %w", id, err)
	}
	return &booking, nil
}

func (s *gormStore) SaveBooking(ctx context.Context, booking *model.Booking) error {
	return s.db.WithContext(ctx).Omit("Tool", "Borrower", "Owner").Save(booking).Error
}

// ListBookingsForUser returns every booking the user participates in, as
// borrower or owner, most recent first.
func (s *gormStore) ListBookingsForUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Preload("Tool").
		Preload("Borrower").
		Preload("Owner").
		Where("borrower_id = ? OR owner_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for user %d: %w", userID, err)
	}
	return bookings, nil
}

// HasActiveBooking reports whether the borrower already has a pending or
// approved booking on the tool.
func (s *gormStore) HasActiveBooking(ctx context.Context, toolID, borrowerID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("tool_id = ? AND borrower_id = ? AND status IN ?",
			toolID, borrowerID, []model.BookingStatus{model.StatusPending, model.StatusApproved}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return count > 0, nil
}

// FindExpiredApproved returns approved bookings whose window elapsed before
// now. The scheduler drives each of them through the completed transition.
func (s *gormStore) FindExpiredApproved(ctx context.Context, now time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", model.StatusApproved, now).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired bookings: %w", err)
	}
	return bookings, nil
}
