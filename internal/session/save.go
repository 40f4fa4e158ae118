package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/model"
	"service-availability-backend/internal/remote"
)

// SaveLeaseTTL bounds how long a save may hold a session before another save can
// take over.
const SaveLeaseTTL = 5 * time.Minute

// SaveResult reports what a successful save sent and what came back.
type SaveResult struct {
	ServiceID     string      `json:"service_id"`
	Mode          Mode        `json:"mode"`
	Shape         avail.Shape `json:"shape"`
	SlotCount     int         `json:"slot_count"`
	SlotsAdded    int         `json:"slots_added"`
	SlotsRemoved  int         `json:"slots_removed"`
	ImagesAdded   int         `json:"images_added"`
	ImagesRemoved int         `json:"images_removed"`
	FailedDeletes []string    `json:"failed_deletes,omitempty"`
	Refreshed     bool        `json:"refreshed"`
	View          *View       `json:"session"`
}

// validate checks the form in the order providers see the messages.
func (s *Service) validate(sess *EditSession) (string, error) {
	if err := s.opts.Validator.ValidateSubmission(sess.Slots); err != nil {
		return "", &ValidationError{Field: "availability", Message: "Please add at least one time slot.", Err: err}
	}
	if strings.TrimSpace(sess.Details.Name) == "" {
		return "", &ValidationError{Field: "name", Message: "Please enter a service name."}
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(sess.Details.Price), 64)
	if err != nil || price < 0 {
		return "", &ValidationError{Field: "price", Message: "Enter a valid price.", Err: err}
	}
	if strings.TrimSpace(sess.Details.Type) == "" {
		return "", &ValidationError{Field: "type", Message: "Please choose a service tag."}
	}
	return strconv.FormatFloat(price, 'f', -1, 64), nil
}

// Save validates the session, deletes dropped images, submits the listing and then
// reloads the canonical state so the next save diffs against what the server holds.
// Create sessions send the flat list; edit sessions send the ISO map.
// Only one save per session runs at a time; a concurrent call fails with
// ErrSaveInProgress.
func (s *Service) Save(ctx context.Context, id string) (*SaveResult, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			s.release(ctx, id)
		}
	}()
	s.prepare(sess)

	rec := &model.SaveRecord{
		SessionID: sess.ID,
		ServiceID: sess.ServiceID,
		Mode:      model.SaveMode(sess.Mode),
	}

	price, err := s.validate(sess)
	if err != nil {
		rec.Outcome = model.SaveOutcomeInvalid
		rec.Error = err.Error()
		s.record(ctx, rec)
		return nil, err
	}

	shape := avail.ShapeISOMap
	if sess.Mode == ModeCreate {
		shape = avail.ShapeFlat
	}
	payload, err := avail.Encode(sess.Slots, shape, s.opts.Validator)
	if err != nil {
		return nil, err
	}

	images := avail.Diff(sess.OriginalImageIDs, sess.Images, avail.AssetID)
	slotDelta := avail.Diff(sess.OriginalSlotIDs, sess.Slots.All(), avail.SlotID)
	result := &SaveResult{
		Mode:          sess.Mode,
		Shape:         shape,
		SlotCount:     payload.Len(),
		SlotsAdded:    len(slotDelta.Added),
		SlotsRemoved:  len(slotDelta.Removed),
		ImagesAdded:   len(images.Added),
		ImagesRemoved: len(images.Removed),
	}
	rec.Shape = string(shape)
	rec.SlotCount = result.SlotCount
	rec.ImagesAdded = result.ImagesAdded
	rec.ImagesRemoved = result.ImagesRemoved

	if len(images.Removed) > 0 {
		failed := s.cleaner.DeleteAll(ctx, images.Removed)
		for imageID := range failed {
			result.FailedDeletes = append(result.FailedDeletes, imageID)
		}
		sort.Strings(result.FailedDeletes)
		rec.FailedDeletes = len(failed)
	}

	form := remote.ServiceForm{
		Name:         sess.Details.Name,
		Description:  sess.Details.Description,
		Price:        price,
		Type:         sess.Details.Type,
		Availability: payload,
	}
	uploads, closeUploads, err := s.openUploads(images.Added)
	if err != nil {
		return nil, s.fail(ctx, rec, err)
	}
	form.Images = uploads

	var created *remote.Service
	serviceID := sess.ServiceID
	if sess.Mode == ModeCreate {
		created, err = s.remote.CreateService(ctx, form)
		if err == nil {
			serviceID = string(created.ID)
		}
	} else {
		err = s.remote.UpdateService(ctx, serviceID, form)
	}
	closeUploads()
	if err != nil {
		return nil, s.fail(ctx, rec, err)
	}
	result.ServiceID = serviceID
	rec.ServiceID = serviceID

	canonical, err := s.remote.GetService(ctx, serviceID)
	if err != nil {
		s.logger.Warn("saved but could not reload service", zap.String("service_id", serviceID), zap.Error(err))
		canonical = created
	}
	var fresh *avail.SlotStore
	if canonical != nil {
		if fresh, err = s.decodeAvailability(canonical); err != nil {
			s.logger.Warn("saved but reloaded availability is unreadable", zap.String("service_id", serviceID), zap.Error(err))
			fresh = nil
		}
	}

	view, err := s.mutate(ctx, id, func(cur *EditSession) error {
		cur.Mode = ModeEdit
		cur.ServiceID = serviceID
		cur.SavingSince = time.Time{}
		if fresh == nil {
			return nil
		}
		// Edits made while the save was in flight are kept; the uploads they still
		// reference are swapped for the assets the server confirmed.
		if cur.Version != sess.Version {
			confirmed := canonical.ImageAssets()
			cur.Images = confirmUploads(cur.Images, images.Added, newAssets(sess.OriginalImageIDs, confirmed))
			cur.OriginalImageIDs = avail.IDs(confirmed, avail.AssetID)
			cur.OriginalSlotIDs = avail.IDs(fresh.All(), avail.SlotID)
			return nil
		}
		s.applyCanonical(cur, canonical, fresh)
		s.prepare(cur)
		return nil
	})
	if err != nil {
		s.logger.Warn("saved but could not refresh session", zap.String("session_id", id), zap.Error(err))
	} else {
		released = true
		result.View = view
		s.removeUnreferenced(images.Added, view.Images)
	}
	result.Refreshed = fresh != nil

	rec.Outcome = model.SaveOutcomeOK
	s.record(ctx, rec)
	s.logger.Info("session saved",
		zap.String("session_id", id),
		zap.String("service_id", serviceID),
		zap.String("shape", string(shape)),
		zap.Int("slots", result.SlotCount),
		zap.Int("images_added", result.ImagesAdded),
		zap.Int("images_removed", result.ImagesRemoved),
		zap.Int("failed_deletes", len(result.FailedDeletes)),
	)
	return result, nil
}

// acquire takes the session's save lease. A lease older than SaveLeaseTTL belongs to
// a save that never finished and is taken over.
func (s *Service) acquire(ctx context.Context, id string) (*EditSession, error) {
	return s.repo.Update(ctx, id, func(cur *EditSession) error {
		now := s.opts.Now()
		if !cur.SavingSince.IsZero() && now.Sub(cur.SavingSince) < SaveLeaseTTL {
			return ErrSaveInProgress
		}
		cur.SavingSince = now
		return nil
	})
}

func (s *Service) release(ctx context.Context, id string) {
	_, err := s.repo.Update(context.WithoutCancel(ctx), id, func(cur *EditSession) error {
		cur.SavingSince = time.Time{}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to release save lease", zap.String("session_id", id), zap.Error(err))
	}
}

// newAssets returns the confirmed assets that were not on the server before the save,
// in server order.
func newAssets(before []string, confirmed []avail.ImageAsset) []avail.ImageAsset {
	known := make(map[string]struct{}, len(before))
	for _, id := range before {
		known[id] = struct{}{}
	}
	var out []avail.ImageAsset
	for _, a := range confirmed {
		if _, ok := known[a.ID]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// confirmUploads pairs uploaded local assets with the assets the server created for
// them, in upload order, and replaces them in images.
func confirmUploads(images, uploaded, created []avail.ImageAsset) []avail.ImageAsset {
	byURI := make(map[string]avail.ImageAsset, len(created))
	for i, local := range uploaded {
		if i >= len(created) {
			break
		}
		byURI[local.URI] = created[i]
	}
	out := make([]avail.ImageAsset, 0, len(images))
	for _, img := range images {
		if confirmed, ok := byURI[img.URI]; ok && img.Local() {
			img = confirmed
		}
		out = append(out, img)
	}
	return out
}

// removeUnreferenced deletes the files of uploaded assets the session no longer uses.
func (s *Service) removeUnreferenced(uploaded, current []avail.ImageAsset) {
	inUse := make(map[string]struct{}, len(current))
	for _, img := range current {
		if img.Local() {
			inUse[img.URI] = struct{}{}
		}
	}
	for _, img := range uploaded {
		if _, ok := inUse[img.URI]; !ok {
			s.removeLocal(img.URI)
		}
	}
}

func (s *Service) openUploads(assets []avail.ImageAsset) ([]remote.Upload, func(), error) {
	var (
		uploads []remote.Upload
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for i, img := range assets {
		f, err := s.media.Open(img.URI)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open image %d: %w", i, err)
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, remote.Upload{Filename: filepath.Base(f.Name()), Body: f})
	}
	return uploads, closeAll, nil
}

func (s *Service) fail(ctx context.Context, rec *model.SaveRecord, err error) error {
	rec.Outcome = model.SaveOutcomeFailed
	rec.Error = err.Error()
	s.record(ctx, rec)
	s.logger.Error("save failed", zap.String("session_id", rec.SessionID), zap.String("service_id", rec.ServiceID), zap.Error(err))
	return err
}

func (s *Service) record(ctx context.Context, rec *model.SaveRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordSave(ctx, rec); err != nil {
		s.logger.Warn("failed to journal save", zap.String("session_id", rec.SessionID), zap.Error(err))
	}
}
