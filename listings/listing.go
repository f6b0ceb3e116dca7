package listings

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/jrsteele09/bomani-client/internal/errors"
)

// AllTypes is the filter value that matches every property type
const AllTypes = "all"

// ListingRecord is a rental property shown in the catalog
type ListingRecord struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	Price        int64    `json:"price"` // KES per night
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	PropertyType string   `json:"type"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
	Featured     bool     `json:"featured"`
	HostName     string   `json:"host_name"`
	HostContact  string   `json:"host_contact"` // E.164 phone number
	Description  string   `json:"description"`
	Available    bool     `json:"available"`
}

// Clone returns a deep copy of the record
func (r ListingRecord) Clone() ListingRecord {
	r.Amenities = slices.Clone(r.Amenities)
	r.Images = slices.Clone(r.Images)
	return r
}

// SortKey selects the catalog ordering
type SortKey string

const (
	SortFeatured  SortKey = "featured"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
)

// SortKeys lists the supported keys in display order
var SortKeys = []SortKey{SortFeatured, SortPriceLow, SortPriceHigh}

// ParseSortKey validates a user supplied sort key. Empty selects SortFeatured.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if key == "" {
		return SortFeatured, nil
	}
	if !slices.Contains(SortKeys, key) {
		return "", errors.Wrapf(errors.ErrUnsupported, "sort key %q", s)
	}
	return key, nil
}

// Filter returns the records whose property type equals byType, ignoring case.
// "all" or an empty byType returns every record in input order.
func Filter(records []ListingRecord, byType string) []ListingRecord {
	byType = strings.TrimSpace(byType)
	out := make([]ListingRecord, 0, len(records))
	for _, r := range records {
		if byType == "" || strings.EqualFold(byType, AllTypes) || strings.EqualFold(r.PropertyType, byType) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Sort returns a stably sorted copy of records. An unknown key keeps input order.
func Sort(records []ListingRecord, key SortKey) []ListingRecord {
	out := make([]ListingRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}

	switch key {
	case SortFeatured:
		slices.SortStableFunc(out, func(a, b ListingRecord) int {
			return boolRank(b.Featured) - boolRank(a.Featured)
		})
	case SortPriceLow:
		slices.SortStableFunc(out, func(a, b ListingRecord) int {
			return compareInt64(a.Price, b.Price)
		})
	case SortPriceHigh:
		slices.SortStableFunc(out, func(a, b ListingRecord) int {
			return compareInt64(b.Price, a.Price)
		})
	}
	return out
}

// ContactHostURL builds the WhatsApp deep link used to message a listing's host
func ContactHostURL(r ListingRecord) (string, error) {
	digits := strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, r.HostContact)
	if digits == "" {
		return "", fmt.Errorf("[ContactHostURL] listing %d has no host contact", r.ID)
	}
	msg := fmt.Sprintf("Hi, I'm interested in the %s listed on BomaniHosts.", r.Title)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(msg), nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
