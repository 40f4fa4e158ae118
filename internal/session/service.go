package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"service-availability-backend/config"
	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/logging"
	"service-availability-backend/internal/model"
	"service-availability-backend/internal/remote"
)

// Remote is the part of the marketplace client sessions use.
type Remote interface {
	GetService(ctx context.Context, id string) (*remote.Service, error)
	CreateService(ctx context.Context, form remote.ServiceForm) (*remote.Service, error)
	UpdateService(ctx context.Context, id string, form remote.ServiceForm) error
}

// ImageCleaner deletes dropped images and reports the ones it could not delete.
type ImageCleaner interface {
	DeleteAll(ctx context.Context, ids []string) map[string]error
}

// Journal records save attempts.
type Journal interface {
	RecordSave(ctx context.Context, rec *model.SaveRecord) error
}

// MediaStore holds images picked locally until they are uploaded.
type MediaStore interface {
	Save(filename string, r io.Reader) (string, error)
	Open(uri string) (*os.File, error)
	Remove(uri string) error
}

// DefaultPayloadKeys are the response fields availability is read from, in order.
var DefaultPayloadKeys = []string{"availabilities", "availability", "availability_list"}

// Options tune slot authoring for every session.
type Options struct {
	Window      avail.Window
	Validator   avail.Validator
	LockOnEdit  bool
	Location    *time.Location
	Now         func() time.Time
	PayloadKeys []string
}

// OptionsFromConfig builds Options from the engine and remote configuration.
func OptionsFromConfig(engine config.EngineConfig, remoteCfg config.RemoteConfig) (Options, error) {
	start, err := avail.ParseClock(engine.DefaultStart)
	if err != nil {
		return Options{}, fmt.Errorf("engine.default_start: %w", err)
	}
	loc, err := engine.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Window: avail.Window{
			Start:    start,
			Duration: time.Duration(engine.DefaultDurationMinutes) * time.Minute,
		},
		Validator:   avail.Validator{MinDuration: time.Duration(engine.MinDurationMinutes) * time.Minute},
		LockOnEdit:  engine.LockOnEdit,
		Location:    loc,
		PayloadKeys: remoteCfg.AvailabilityPayloadKeys,
	}, nil
}

// Service drives edit sessions.
type Service struct {
	repo    Repository
	remote  Remote
	cleaner ImageCleaner
	journal Journal
	media   MediaStore
	opts    Options
	logger  *zap.Logger
}

// NewService wires a session service. journal may be nil.
func NewService(repo Repository, rc Remote, cleaner ImageCleaner, journal Journal, media MediaStore, opts Options, logger *zap.Logger) *Service {
	if opts.Window.Duration <= 0 {
		opts.Window = avail.DefaultWindow
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.PayloadKeys) == 0 {
		opts.PayloadKeys = DefaultPayloadKeys
	}
	return &Service{
		repo:    repo,
		remote:  rc,
		cleaner: cleaner,
		journal: journal,
		media:   media,
		opts:    opts,
		logger:  logging.OrNop(logger).Named("session"),
	}
}

func (s *Service) today() avail.Date {
	return avail.DateOf(s.opts.Now().In(s.opts.Location))
}

// lockFor returns the lock predicate a session of mode authors under.
func (s *Service) lockFor(mode Mode) func(avail.Date) bool {
	if mode == ModeCreate || s.opts.LockOnEdit {
		return avail.LockPastAndToday(s.opts.Now, s.opts.Location)
	}
	return nil
}

func (s *Service) prepare(sess *EditSession) {
	sess.Slots.SetLockPredicate(s.lockFor(sess.Mode))
}

func (s *Service) view(sess *EditSession) *View {
	return newView(sess, s.opts.Validator)
}

// StartCreate opens a session for a brand new listing.
func (s *Service) StartCreate(ctx context.Context) (*View, error) {
	now := s.opts.Now()
	sess := &EditSession{
		ID:        uuid.NewString(),
		Mode:      ModeCreate,
		Selected:  s.today(),
		Slots:     avail.NewSlotStore(avail.WithLockPredicate(s.lockFor(ModeCreate))),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("create session started", zap.String("session_id", sess.ID))
	return s.view(sess), nil
}

// StartEdit opens a session on an existing listing, loaded from the marketplace.
func (s *Service) StartEdit(ctx context.Context, serviceID string) (*View, error) {
	svc, err := s.remote.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	slots, err := s.decodeAvailability(svc)
	if err != nil {
		return nil, err
	}
	slots.SetLockPredicate(s.lockFor(ModeEdit))

	now := s.opts.Now()
	sess := &EditSession{
		ID:        uuid.NewString(),
		Mode:      ModeEdit,
		ServiceID: string(svc.ID),
		Selected:  s.today(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.applyCanonical(sess, svc, slots)
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("edit session started",
		zap.String("session_id", sess.ID),
		zap.String("service_id", sess.ServiceID),
		zap.Int("slots", slots.Len()),
		zap.Int("images", len(sess.Images)),
	)
	return s.view(sess), nil
}

// applyCanonical replaces the working state with what the server confirmed and resets
// the reconciliation baseline.
func (s *Service) applyCanonical(sess *EditSession, svc *remote.Service, slots *avail.SlotStore) {
	sess.ServiceID = string(svc.ID)
	sess.Details = Details{
		Name:        svc.Name,
		Description: svc.Description,
		Price:       string(svc.Price),
		Type:        svc.Type,
	}
	sess.Slots = slots
	sess.Images = svc.ImageAssets()
	sess.OriginalImageIDs = avail.IDs(sess.Images, avail.AssetID)
	sess.OriginalSlotIDs = avail.IDs(slots.All(), avail.SlotID)
}

func (s *Service) decodeAvailability(svc *remote.Service) (*avail.SlotStore, error) {
	shape, raw, ok := svc.Availability(s.opts.PayloadKeys)
	if !ok {
		return avail.NewSlotStore(), nil
	}
	slots, stats, err := avail.Decode(shape, raw)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.ID, err)
	}
	if stats.Skipped > 0 {
		s.logger.Warn("skipped malformed availability entries",
			zap.String("service_id", string(svc.ID)),
			zap.String("shape", string(shape)),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return slots, nil
}

// Get renders a session.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.prepare(sess)
	return s.view(sess), nil
}

// mutate applies fn under the repository's per-session serialisation.
func (s *Service) mutate(ctx context.Context, id string, fn func(*EditSession) error) (*View, error) {
	sess, err := s.repo.Update(ctx, id, func(sess *EditSession) error {
		s.prepare(sess)
		if err := fn(sess); err != nil {
			return err
		}
		sess.Version++
		sess.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// SelectDate moves the calendar selection. Any date may be selected, locked or not.
func (s *Service) SelectDate(ctx context.Context, id string, date avail.Date) (*View, error) {
	return s.mutate(ctx, id, func(sess *EditSession) error {
		sess.Selected = date
		return nil
	})
}

// AddSlot adds a default window slot on date and returns it with the new view.
func (s *Service) AddSlot(ctx context.Context, id string, date avail.Date) (avail.TimeSlot, *View, error) {
	var added avail.TimeSlot
	view, err := s.mutate(ctx, id, func(sess *EditSession) error {
		slot, err := sess.Slots.AddSlot(date, s.opts.Window)
		if err != nil {
			return err
		}
		added = slot
		return nil
	})
	if err != nil {
		return avail.TimeSlot{}, nil, err
	}
	return added, view, nil
}

// UpdateSlot edits one endpoint of a slot, repairing inverted intervals.
func (s *Service) UpdateSlot(ctx context.Context, id string, date avail.Date, slotID string, field avail.Field, value avail.Clock) (*View, error) {
	return s.mutate(ctx, id, func(sess *EditSession) error {
		return sess.Slots.UpdateSlot(date, slotID, field, value)
	})
}

// RemoveSlot deletes a slot.
func (s *Service) RemoveSlot(ctx context.Context, id string, date avail.Date, slotID string) (*View, error) {
	return s.mutate(ctx, id, func(sess *EditSession) error {
		return sess.Slots.RemoveSlot(date, slotID)
	})
}

// SetDetails replaces the listing fields.
func (s *Service) SetDetails(ctx context.Context, id string, d Details) (*View, error) {
	return s.mutate(ctx, id, func(sess *EditSession) error {
		sess.Details = d
		return nil
	})
}

// AttachImage stores an upload locally and adds it to the session.
func (s *Service) AttachImage(ctx context.Context, id, filename string, r io.Reader) (*View, error) {
	uri, err := s.media.Save(filename, r)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	view, err := s.mutate(ctx, id, func(sess *EditSession) error {
		sess.Images = append(sess.Images, avail.ImageAsset{URI: uri})
		return nil
	})
	if err != nil {
		s.removeLocal(uri)
		return nil, err
	}
	return view, nil
}

// DetachImage drops the image at index. Confirmed images are deleted on the next save.
func (s *Service) DetachImage(ctx context.Context, id string, index int) (*View, error) {
	var dropped avail.ImageAsset
	view, err := s.mutate(ctx, id, func(sess *EditSession) error {
		if index < 0 || index >= len(sess.Images) {
			return fmt.Errorf("%w: %d", ErrNoImage, index)
		}
		dropped = sess.Images[index]
		sess.Images = append(sess.Images[:index:index], sess.Images[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dropped.Local() {
		s.removeLocal(dropped.URI)
	}
	return view, nil
}

// Discard ends a session without saving and frees its local uploads.
func (s *Service) Discard(ctx context.Context, id string) error {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, img := range sess.Images {
		if img.Local() {
			s.removeLocal(img.URI)
		}
	}
	s.logger.Info("session discarded", zap.String("session_id", id))
	return nil
}

func (s *Service) removeLocal(uri string) {
	if err := s.media.Remove(uri); err != nil {
		s.logger.Warn("failed to remove local image", zap.String("uri", uri), zap.Error(err))
	}
}
