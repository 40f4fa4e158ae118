package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/cleanup"
	"service-availability-backend/internal/media"
	"service-availability-backend/internal/model"
	"service-availability-backend/internal/remote"
)

type fakeService struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          string          `json:"price"`
	Type           string          `json:"type"`
	Images         []fakeImage     `json:"images"`
	Availabilities json.RawMessage `json:"availabilities,omitempty"`
	Availability   json.RawMessage `json:"availability,omitempty"`
}

type fakeImage struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// fakeMarketplace stands in for the marketplace API and deletes images for the
// cleanup pool.
type fakeMarketplace struct {
	mu          sync.Mutex
	services    map[string]*fakeService
	nextID      int
	nextImageID int
	creates     []remote.ServiceForm
	updates     []remote.ServiceForm
	uploaded    []string
	deleted     []string
	updateErr   error
	deleteErr   map[string]error
	// beforeWrite, when set, runs before a create or update takes effect.
	beforeWrite func()
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{services: make(map[string]*fakeService), nextID: 100, nextImageID: 500}
}

func (f *fakeMarketplace) GetService(ctx context.Context, id string) (*remote.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[id]
	if !ok {
		return nil, &remote.APIError{Status: 404, Body: `{"detail":"Not found."}`}
	}
	data, err := json.Marshal(svc)
	if err != nil {
		return nil, err
	}
	var out remote.Service
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *fakeMarketplace) CreateService(ctx context.Context, form remote.ServiceForm) (*remote.Service, error) {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	f.mu.Lock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	svc := &fakeService{ID: f.nextID}
	f.apply(svc, form)
	f.services[id] = svc
	f.creates = append(f.creates, form)
	f.mu.Unlock()
	return f.GetService(ctx, id)
}

func (f *fakeMarketplace) UpdateService(ctx context.Context, id string, form remote.ServiceForm) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	svc, ok := f.services[id]
	if !ok {
		return &remote.APIError{Status: 404, Body: "Not found."}
	}
	f.apply(svc, form)
	f.updates = append(f.updates, form)
	return nil
}

func (f *fakeMarketplace) DeleteImage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	for _, svc := range f.services {
		kept := svc.Images[:0]
		for _, img := range svc.Images {
			if strconv.Itoa(img.ID) != id {
				kept = append(kept, img)
			}
		}
		svc.Images = kept
	}
	return nil
}

// apply stores the form the way the marketplace does: availability becomes rows
// served back as the flat list with fresh ids.
func (f *fakeMarketplace) apply(svc *fakeService, form remote.ServiceForm) {
	svc.Name = form.Name
	svc.Description = form.Description
	svc.Price = form.Price
	svc.Type = form.Type
	for _, up := range form.Images {
		io.Copy(io.Discard, up.Body)
		f.nextImageID++
		f.uploaded = append(f.uploaded, up.Filename)
		svc.Images = append(svc.Images, fakeImage{ID: f.nextImageID, URL: fmt.Sprintf("https://cdn/%d.jpg", f.nextImageID)})
	}

	type row struct {
		ID        int    `json:"id"`
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	var rows []row
	switch form.Availability.Shape {
	case avail.ShapeFlat:
		for _, fs := range form.Availability.Flat {
			rows = append(rows, row{Date: fs.Date, StartTime: fs.StartTime, EndTime: fs.EndTime})
		}
	case avail.ShapeISOMap:
		var dates []string
		for d := range form.Availability.ISO {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates {
			for _, iv := range form.Availability.ISO[d] {
				rows = append(rows, row{Date: d, StartTime: iv.Start[11:], EndTime: iv.End[11:]})
			}
		}
	}
	for i := range rows {
		rows[i].ID = 1000 + i
	}
	svc.Availabilities, _ = json.Marshal(rows)
	svc.Availability = nil
}

type fakeJournal struct {
	mu      sync.Mutex
	records []model.SaveRecord
	err     error
}

func (j *fakeJournal) RecordSave(ctx context.Context, rec *model.SaveRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, *rec)
	return j.err
}

type harness struct {
	svc     *Service
	market  *fakeMarketplace
	journal *fakeJournal
	media   *media.Store
	repo    *MemoryRepository
}

var fixedNow = time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, lockOnEdit bool) *harness {
	t.Helper()
	market := newFakeMarketplace()
	journal := &fakeJournal{}
	store, err := media.NewStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool := cleanup.NewWorkerPool(2, market, nil)
	pool.Start(ctx)

	repo := NewMemoryRepository(time.Hour)
	svc := NewService(repo, market, pool, journal, store, Options{
		Window:     avail.DefaultWindow,
		LockOnEdit: lockOnEdit,
		Location:   time.UTC,
		Now:        func() time.Time { return fixedNow },
	}, nil)
	return &harness{svc: svc, market: market, journal: journal, media: store, repo: repo}
}

func (h *harness) seed(svc *fakeService) string {
	h.market.mu.Lock()
	defer h.market.mu.Unlock()
	id := strconv.Itoa(svc.ID)
	h.market.services[id] = svc
	return id
}

var errBoom = errors.New("boom")
