package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"service-availability-backend/internal/avail"
)

// ID is a server identifier; the marketplace sends integers but clients treat ids as
// opaque strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID(strconv.FormatInt(n, 10))
	return nil
}

// Price keeps the decimal text the server sent ("25.00" or 25).
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	*p = Price(b)
	return nil
}

// Image is a confirmed service image.
type Image struct {
	ID  ID     `json:"id"`
	URL string `json:"url"`
}

// Service is the subset of the marketplace service document the engine needs.
type Service struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       Price   `json:"price"`
	Type        string  `json:"type"`
	Images      []Image `json:"images"`

	// Raw keeps every top-level field so availability can be read under any of the
	// keys the server has used.
	Raw map[string]json.RawMessage `json:"-"`
}

func (s *Service) UnmarshalJSON(b []byte) error {
	type plain Service
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &p.Raw); err != nil {
		return err
	}
	*s = Service(p)
	return nil
}

// availabilityShapes maps each known availability key onto its wire shape.
var availabilityShapes = map[string]avail.Shape{
	"availabilities":    avail.ShapeFlat,
	"availability_list": avail.ShapeFlat,
	"availability":      avail.ShapeISOMap,
}

// Availability returns the first non-empty availability document found under keys,
// with the shape that key is known to carry. ok is false when none is present.
func (s *Service) Availability(keys []string) (shape avail.Shape, raw json.RawMessage, ok bool) {
	for _, key := range keys {
		shape, known := availabilityShapes[key]
		if !known {
			continue
		}
		doc, present := s.Raw[key]
		if !present || isEmptyDocument(doc) {
			continue
		}
		return shape, doc, true
	}
	return "", nil, false
}

func isEmptyDocument(doc json.RawMessage) bool {
	switch string(bytes.TrimSpace(doc)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}

// ImageAssets converts the confirmed images into reconciliation assets.
func (s *Service) ImageAssets() []avail.ImageAsset {
	out := make([]avail.ImageAsset, 0, len(s.Images))
	for _, img := range s.Images {
		out = append(out, avail.ImageAsset{ID: string(img.ID), URI: img.URL})
	}
	return out
}

// Upload is an image file sent inside a multipart form.
type Upload struct {
	Filename string
	Body     io.Reader
}

// ServiceForm is what a save sends for a service.
type ServiceForm struct {
	Name         string
	Description  string
	Price        string
	Type         string
	Availability avail.Payload
	Images       []Upload
}
