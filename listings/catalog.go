package listings

import (
	_ "embed"
	"encoding/json"
	"slices"
	"strings"

	"github.com/jrsteele09/bomani-client/internal/errors"
)

//go:embed sample_listings.json
var sampleListings []byte

// Catalog is a fixed, load-once collection of listings. It is safe for concurrent use
// because nothing mutates it after construction.
type Catalog struct {
	records []ListingRecord
}

// NewCatalog creates a catalog over a copy of records
func NewCatalog(records []ListingRecord) *Catalog {
	c := &Catalog{records: make([]ListingRecord, len(records))}
	for i, r := range records {
		c.records[i] = r.Clone()
	}
	return c
}

// LoadCatalog decodes a JSON array of listings
func LoadCatalog(data []byte) (*Catalog, error) {
	var records []ListingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "[LoadCatalog] decode listings")
	}
	return &Catalog{records: records}, nil
}

// SampleCatalog returns the built-in sample listings
func SampleCatalog() (*Catalog, error) {
	return LoadCatalog(sampleListings)
}

// All returns every listing in catalog order
func (c *Catalog) All() []ListingRecord {
	return Filter(c.records, AllTypes)
}

// Browse filters by property type then sorts
func (c *Catalog) Browse(byType string, key SortKey) []ListingRecord {
	return Sort(Filter(c.records, byType), key)
}

// Get returns the listing with id, or an error wrapping errors.ErrNotFound
func (c *Catalog) Get(id int64) (ListingRecord, error) {
	for _, r := range c.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return ListingRecord{}, errors.Wrapf(errors.ErrNotFound, "listing %d", id)
}

// Types returns the distinct lower-cased property types, sorted
func (c *Catalog) Types() []string {
	var types []string
	for _, r := range c.records {
		t := strings.ToLower(r.PropertyType)
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	slices.Sort(types)
	return types
}

// Len returns the number of listings
func (c *Catalog) Len() int {
	return len(c.records)
}
