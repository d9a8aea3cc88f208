package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
	"github.com/urbanoasis/farmstand-backend/pkg/security"
)

// maxAnnouncementLength keeps banners short enough for the register header.
const maxAnnouncementLength = 50

// maxFavorites caps the product shortcut row on the register.
const maxFavorites = 10

const dateLayout = "2006-01-02"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// remoteSettings is the slice of the mirror the settings refresh reads.
type remoteSettings interface {
	Announcements(ctx context.Context) (mirror.AnnouncementsDoc, error)
	DailyGoal(ctx context.Context) (mirror.DailyGoalDoc, error)
	Pins(ctx context.Context) (mirror.PinsDoc, error)
}

// FavoritesDoc is the station's pinned product shortcuts, newest first.
type FavoritesDoc struct {
	IDs       []string  `json:"ids"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service manages announcements, the daily goal, favorites, and the
// terminal PINs.
type Service interface {
	Announcements(ctx context.Context) ([]mirror.AnnouncementDoc, error)
	AddAnnouncement(ctx context.Context, text string, tone enums.AnnouncementType) (*mirror.AnnouncementDoc, error)
	SetAnnouncementEnabled(ctx context.Context, id string, enabled bool) error
	RemoveAnnouncement(ctx context.Context, id string) error
	ClearAnnouncements(ctx context.Context) error

	DailyGoal(ctx context.Context) (decimal.Decimal, bool, error)
	SetDailyGoal(ctx context.Context, amount decimal.Decimal) error
	ClearDailyGoal(ctx context.Context) error

	Favorites(ctx context.Context) ([]string, error)
	ToggleFavorite(ctx context.Context, productID string) ([]string, bool, error)
	ClearFavorites(ctx context.Context) error

	EnsureDefaultPins(ctx context.Context) error
	SetPins(ctx context.Context, volunteerPIN, adminPIN string) error
	PinHashes(ctx context.Context) (mirror.PinsDoc, error)

	RefreshFromMirror(ctx context.Context) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	remote remoteSettings
	pins   config.PinConfig
	now    func() time.Time

	// mu serializes edits to the list-shaped documents. Each edit reads the
	// whole document and writes it back, so two concurrent edits would
	// otherwise drop one of the writes.
	mu sync.Mutex
}

// NewService wires the settings service. remote may be nil when the station
// runs without a mirror.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, remote remoteSettings, pins config.PinConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: publisher,
		remote: remote,
		pins:   pins,
		now:    time.Now,
	}, nil
}

func (s *service) Announcements(ctx context.Context) ([]mirror.AnnouncementDoc, error) {
	doc, err := s.announcementsDoc(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func (s *service) AddAnnouncement(ctx context.Context, text string, tone enums.AnnouncementType) (*mirror.AnnouncementDoc, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "announcement text required")
	}
	if len([]rune(text)) > maxAnnouncementLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("announcement text cannot exceed %d characters", maxAnnouncementLength))
	}
	if tone == "" {
		tone = enums.AnnouncementTypeInfo
	}
	if !tone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tone must be info, warning, or urgent")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.announcementsDoc(ctx)
	if err != nil {
		return nil, err
	}
	item := mirror.AnnouncementDoc{
		ID:      uuid.NewString(),
		Text:    text,
		Tone:    string(tone),
		Enabled: true,
	}
	doc.Items = append(doc.Items, item)
	if err := s.saveAnnouncements(ctx, doc); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *service) SetAnnouncementEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.announcementsDoc(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range doc.Items {
		if doc.Items[i].ID == id {
			doc.Items[i].Enabled = enabled
			found = true
			break
		}
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "announcement not found")
	}
	return s.saveAnnouncements(ctx, doc)
}

func (s *service) RemoveAnnouncement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.announcementsDoc(ctx)
	if err != nil {
		return err
	}
	kept := doc.Items[:0]
	for _, item := range doc.Items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(doc.Items) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "announcement not found")
	}
	doc.Items = kept
	return s.saveAnnouncements(ctx, doc)
}

func (s *service) ClearAnnouncements(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAnnouncements(ctx, mirror.AnnouncementsDoc{})
}

// DailyGoal returns today's target. A goal set on a previous day reads as
// absent; each market day starts from a blank target.
func (s *service) DailyGoal(ctx context.Context) (decimal.Decimal, bool, error) {
	raw, err := s.repo.Get(ctx, models.SettingKeyDailyGoal)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load daily goal")
	}
	var doc mirror.DailyGoalDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return decimal.Zero, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode daily goal")
	}
	if doc.Date != s.now().Local().Format(dateLayout) {
		return decimal.Zero, false, nil
	}
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return decimal.Zero, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode daily goal amount")
	}
	return amount, true, nil
}

func (s *service) SetDailyGoal(ctx context.Context, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "goal amount must be positive")
	}
	doc := mirror.DailyGoalDoc{
		Date:      s.now().Local().Format(dateLayout),
		Amount:    amount.StringFixed(2),
		UpdatedAt: s.now().UTC(),
	}
	return s.saveSingleton(ctx, models.SettingKeyDailyGoal, doc, outbox.DomainEvent{
		EventType:     enums.EventDailyGoalSaved,
		AggregateType: enums.AggregateDailyGoal,
		AggregateID:   mirror.DocDailyGoal,
		Data:          doc,
	})
}

// ClearDailyGoal removes today's target. The stored document keeps its
// shape but loses its date, so every read treats it as absent.
func (s *service) ClearDailyGoal(ctx context.Context) error {
	doc := mirror.DailyGoalDoc{
		Date:      "",
		Amount:    "0.00",
		UpdatedAt: s.now().UTC(),
	}
	return s.saveSingleton(ctx, models.SettingKeyDailyGoal, doc, outbox.DomainEvent{
		EventType:     enums.EventDailyGoalSaved,
		AggregateType: enums.AggregateDailyGoal,
		AggregateID:   mirror.DocDailyGoal,
		Data:          doc,
	})
}

func (s *service) Favorites(ctx context.Context) ([]string, error) {
	doc, err := s.favoritesDoc(ctx)
	if err != nil {
		return nil, err
	}
	return doc.IDs, nil
}

// ToggleFavorite pins or unpins one product shortcut. New pins go to the
// front so the latest one lands where the volunteer's thumb already is.
func (s *service) ToggleFavorite(ctx context.Context, productID string) ([]string, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.favoritesDoc(ctx)
	if err != nil {
		return nil, false, err
	}

	kept := make([]string, 0, len(doc.IDs))
	removed := false
	for _, id := range doc.IDs {
		if id == productID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		if len(doc.IDs) >= maxFavorites {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("favorites are limited to %d products", maxFavorites))
		}
		kept = append([]string{productID}, doc.IDs...)
	}

	doc.IDs = kept
	if err := s.saveFavorites(ctx, doc); err != nil {
		return nil, false, err
	}
	return doc.IDs, !removed, nil
}

func (s *service) ClearFavorites(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveFavorites(ctx, FavoritesDoc{})
}

func (s *service) favoritesDoc(ctx context.Context) (FavoritesDoc, error) {
	raw, err := s.repo.Get(ctx, models.SettingKeyFavorites)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FavoritesDoc{}, nil
		}
		return FavoritesDoc{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load favorites")
	}
	var doc FavoritesDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return FavoritesDoc{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode favorites")
	}
	return doc, nil
}

// saveFavorites writes the local table only. Favorites are a register layout
// preference, so they ride neither the outbox nor the mirror.
func (s *service) saveFavorites(ctx context.Context, doc FavoritesDoc) error {
	doc.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode favorites")
	}
	if err := s.repo.Upsert(ctx, models.SettingKeyFavorites, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save favorites")
	}
	return nil
}

// Progress reports how far total has come toward target, capped at 100.
func Progress(target, total decimal.Decimal) int {
	if target.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	percent := total.Div(target).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return int(percent)
}

// EnsureDefaultPins seeds the configured default PINs on first run. Existing
// hashes are never overwritten.
func (s *service) EnsureDefaultPins(ctx context.Context) error {
	_, err := s.repo.Get(ctx, models.SettingKeyPins)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pins")
	}
	return s.SetPins(ctx, s.pins.DefaultVolunteerPIN, s.pins.DefaultAdminPIN)
}

func (s *service) SetPins(ctx context.Context, volunteerPIN, adminPIN string) error {
	if err := validatePIN(volunteerPIN); err != nil {
		return err
	}
	if err := validatePIN(adminPIN); err != nil {
		return err
	}
	volunteerHash, err := security.HashPIN(volunteerPIN, s.pins)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash volunteer pin")
	}
	adminHash, err := security.HashPIN(adminPIN, s.pins)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash admin pin")
	}
	doc := mirror.PinsDoc{
		VolunteerHash: volunteerHash,
		AdminHash:     adminHash,
		UpdatedAt:     s.now().UTC(),
	}
	return s.saveSingleton(ctx, models.SettingKeyPins, doc, outbox.DomainEvent{
		EventType:     enums.EventPinsSaved,
		AggregateType: enums.AggregatePins,
		AggregateID:   mirror.DocPins,
		Data:          doc,
	})
}

func (s *service) PinHashes(ctx context.Context) (mirror.PinsDoc, error) {
	raw, err := s.repo.Get(ctx, models.SettingKeyPins)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mirror.PinsDoc{}, pkgerrors.New(pkgerrors.CodeNotFound, "pins not configured")
		}
		return mirror.PinsDoc{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pins")
	}
	var doc mirror.PinsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return mirror.PinsDoc{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode pins")
	}
	return doc, nil
}

// RefreshFromMirror overwrites the local singletons with whatever the remote
// holds. Missing remote documents are skipped, not treated as deletions.
func (s *service) RefreshFromMirror(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	if doc, err := s.remote.Announcements(ctx); err == nil {
		if err := s.upsertLocal(ctx, models.SettingKeyAnnouncements, doc); err != nil {
			return err
		}
	} else if !skippableRemoteErr(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh announcements")
	}

	if doc, err := s.remote.DailyGoal(ctx); err == nil {
		if err := s.upsertLocal(ctx, models.SettingKeyDailyGoal, doc); err != nil {
			return err
		}
	} else if !skippableRemoteErr(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh daily goal")
	}

	if doc, err := s.remote.Pins(ctx); err == nil {
		if err := s.upsertLocal(ctx, models.SettingKeyPins, doc); err != nil {
			return err
		}
	} else if !skippableRemoteErr(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh pins")
	}

	return nil
}

func (s *service) announcementsDoc(ctx context.Context) (mirror.AnnouncementsDoc, error) {
	raw, err := s.repo.Get(ctx, models.SettingKeyAnnouncements)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mirror.AnnouncementsDoc{}, nil
		}
		return mirror.AnnouncementsDoc{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load announcements")
	}
	var doc mirror.AnnouncementsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return mirror.AnnouncementsDoc{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode announcements")
	}
	return doc, nil
}

// saveAnnouncements replaces the whole list so concurrent edits cannot
// interleave individual items.
func (s *service) saveAnnouncements(ctx context.Context, doc mirror.AnnouncementsDoc) error {
	doc.UpdatedAt = s.now().UTC()
	return s.saveSingleton(ctx, models.SettingKeyAnnouncements, doc, outbox.DomainEvent{
		EventType:     enums.EventAnnouncementsSaved,
		AggregateType: enums.AggregateAnnouncement,
		AggregateID:   mirror.DocAnnouncements,
		Data:          doc,
	})
}

func (s *service) saveSingleton(ctx context.Context, key string, doc any, event outbox.DomainEvent) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode setting")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, key, raw); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save setting")
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue setting sync")
		}
		return nil
	})
}

func (s *service) upsertLocal(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode setting")
	}
	if err := s.repo.Upsert(ctx, key, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refreshed setting")
	}
	return nil
}

func skippableRemoteErr(err error) bool {
	return errors.Is(err, mirror.ErrNotFound) || errors.Is(err, mirror.ErrUnconfigured)
}

func validatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pin must be 4 to 8 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return pkgerrors.New(pkgerrors.CodeValidation, "pin must contain only digits")
		}
	}
	return nil
}
