package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-availability-backend/internal/avail"
)

func TestConcurrentSavesCreateOnce(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	view, err := h.svc.StartCreate(ctx)
	require.NoError(t, err)
	_, view, err = h.svc.AddSlot(ctx, view.ID, tomorrow)
	require.NoError(t, err)
	_, err = h.svc.SetDetails(ctx, view.ID, Details{Name: "Fade", Price: "25", Type: "Haircuts"})
	require.NoError(t, err)

	started := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	h.market.beforeWrite = func() {
		once.Do(func() { close(started) })
		<-unblock
	}

	type outcome struct {
		result *SaveResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		result, err := h.svc.Save(ctx, view.ID)
		first <- outcome{result, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first save never reached the marketplace")
	}

	_, err = h.svc.Save(ctx, view.ID)
	assert.ErrorIs(t, err, ErrSaveInProgress)
	during, err := h.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, during.Saving)

	close(unblock)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, "101", got.result.ServiceID)
	assert.False(t, got.result.View.Saving)

	h.market.mu.Lock()
	creates := len(h.market.creates)
	h.market.mu.Unlock()
	assert.Equal(t, 1, creates)

	// The lease is gone, so the session saves again as an edit.
	again, err := h.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, again.Mode)
	assert.Len(t, h.market.creates, 1)
	assert.Len(t, h.market.updates, 1)
}

func TestSaveLease(t *testing.T) {
	testCases := []struct {
		name    string
		since   time.Time
		wantErr error
	}{
		{name: "free", since: time.Time{}},
		{name: "held", since: fixedNow.Add(-time.Minute), wantErr: ErrSaveInProgress},
		{name: "held since now", since: fixedNow, wantErr: ErrSaveInProgress},
		{name: "stale", since: fixedNow.Add(-SaveLeaseTTL - time.Second)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, false)
			ctx := context.Background()
			view, err := h.svc.StartEdit(ctx, h.seed(existingListing()))
			require.NoError(t, err)
			_, err = h.repo.Update(ctx, view.ID, func(s *EditSession) error {
				s.SavingSince = tc.since
				return nil
			})
			require.NoError(t, err)

			_, err = h.svc.Save(ctx, view.ID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, h.market.updates)
				return
			}
			require.NoError(t, err)
			after, err := h.svc.Get(ctx, view.ID)
			require.NoError(t, err)
			assert.False(t, after.Saving)
		})
	}
}

func TestFailedSaveReleasesLease(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	view, err := h.svc.StartEdit(ctx, h.seed(existingListing()))
	require.NoError(t, err)

	h.market.updateErr = errBoom
	_, err = h.svc.Save(ctx, view.ID)
	assert.ErrorIs(t, err, errBoom)

	h.market.updateErr = nil
	_, err = h.svc.Save(ctx, view.ID)
	assert.NoError(t, err)
}

func TestEditDuringSaveKeepsConfirmedUpload(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	view, err := h.svc.StartEdit(ctx, h.seed(existingListing()))
	require.NoError(t, err)
	view, err = h.svc.AttachImage(ctx, view.ID, "new.png", strings.NewReader("png"))
	require.NoError(t, err)
	localURI := view.Images[3].URI

	edited := false
	h.market.beforeWrite = func() {
		if edited {
			return
		}
		edited = true
		_, err := h.svc.SelectDate(ctx, view.ID, tomorrow)
		require.NoError(t, err)
	}

	result, err := h.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	require.NotNil(t, result.View)
	assert.Equal(t, tomorrow, result.View.SelectedDate)

	var ids []string
	for _, img := range result.View.Images {
		assert.False(t, img.Local())
		ids = append(ids, img.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "501"}, ids)
	_, err = h.media.Open(localURI)
	assert.Error(t, err)

	// Nothing is left to upload or delete on the next save.
	again, err := h.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	assert.Zero(t, again.ImagesAdded)
	assert.Zero(t, again.ImagesRemoved)
	assert.Empty(t, h.market.deleted)
	assert.Len(t, h.market.uploaded, 1)

	served, err := h.market.GetService(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, served.ImageAssets(), 4)
}

func TestEditDuringSaveKeepsUnsentUpload(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	view, err := h.svc.StartEdit(ctx, h.seed(existingListing()))
	require.NoError(t, err)

	var lateURI string
	h.market.beforeWrite = func() {
		if lateURI != "" {
			return
		}
		v, err := h.svc.AttachImage(ctx, view.ID, "late.png", strings.NewReader("png"))
		require.NoError(t, err)
		lateURI = v.Images[len(v.Images)-1].URI
	}

	result, err := h.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	require.NotNil(t, result.View)
	require.Len(t, result.View.Images, 4)
	assert.Equal(t, lateURI, result.View.Images[3].URI)

	f, err := h.media.Open(lateURI)
	require.NoError(t, err)
	f.Close()
}

func TestNewAssets(t *testing.T) {
	confirmed := []avail.ImageAsset{{ID: "1"}, {ID: "7"}, {ID: "2"}, {ID: "8"}}
	assert.Equal(t, []avail.ImageAsset{{ID: "7"}, {ID: "8"}}, newAssets([]string{"1", "2"}, confirmed))
	assert.Empty(t, newAssets([]string{"1", "2", "7", "8"}, confirmed))
}
