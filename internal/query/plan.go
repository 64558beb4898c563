// Package query turns raw list-request parameters into a validated Plan
// and derives pagination metadata and navigation links from its results.
//
// Everything here is pure; execution against the database lives in store.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/MGallo-Code/ticklist/internal/i18n"
)

// Defaults applied when a parameter is absent.
const (
	DefaultPerPage    = 20
	DefaultMaxPerPage = 100
)

// SortField is a column the list endpoint may be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortTitle     SortField = "title"
)

// Direction is a sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Plan is a validated list query scoped to one owner.
// Completed nil means no filter.
type Plan struct {
	OwnerID   int64
	Completed *bool
	Sort      SortField
	Order     Direction
	Page      int
	PerPage   int
}

// Options tunes parsing. Zero MaxPerPage uses DefaultMaxPerPage.
type Options struct {
	MaxPerPage int
}

// FieldErrors maps a parameter name to its validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Parse builds a Plan from query string values.
// Unknown sort/order values fall back to defaults so listing keeps working;
// malformed page, limit and completed values are reported in FieldErrors.
// The returned Plan is only meaningful when FieldErrors is empty.
func Parse(ownerID int64, values url.Values, opts Options) (Plan, FieldErrors) {
	maxPerPage := opts.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPerPage
	}

	plan := Plan{
		OwnerID: ownerID,
		Sort:    SortCreatedAt,
		Order:   Desc,
		Page:    1,
		PerPage: DefaultPerPage,
	}
	errs := FieldErrors{}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs.add("page", i18n.MsgPageInvalid)
		} else {
			plan.Page = n
		}
	}

	// limit wins over per_page when both are sent.
	limitKey, limitMsg := "limit", i18n.MsgLimitInvalid
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		limitKey, limitMsg = "per_page", i18n.MsgPerPageInvalid
		raw = strings.TrimSpace(values.Get("per_page"))
	}
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs.add(limitKey, limitMsg)
		} else {
			plan.PerPage = min(n, maxPerPage)
		}
	}

	switch strings.ToLower(strings.TrimSpace(values.Get("completed"))) {
	case "":
	case "true":
		v := true
		plan.Completed = &v
	case "false":
		v := false
		plan.Completed = &v
	default:
		errs.add("completed", i18n.MsgCompletedFilter)
	}

	switch SortField(strings.ToLower(strings.TrimSpace(values.Get("sort")))) {
	case SortTitle:
		plan.Sort = SortTitle
	case SortCreatedAt:
		plan.Sort = SortCreatedAt
	}

	switch Direction(strings.ToLower(strings.TrimSpace(values.Get("order")))) {
	case Asc:
		plan.Order = Asc
	case Desc:
		plan.Order = Desc
	}

	return plan, errs
}

// Offset is the number of rows skipped before this page.
// Saturates at math.MaxInt64 so huge pages stay past the end instead of wrapping.
func (p Plan) Offset() int64 {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	skipped := int64(p.Page - 1)
	if skipped > math.MaxInt64/int64(p.PerPage) {
		return math.MaxInt64
	}
	return skipped * int64(p.PerPage)
}

// Fingerprint is a deterministic string covering every field that affects output.
func (p Plan) Fingerprint() string {
	completed := "any"
	if p.Completed != nil {
		completed = strconv.FormatBool(*p.Completed)
	}
	return fmt.Sprintf("owner=%d|completed=%s|sort=%s|order=%s|page=%d|per_page=%d",
		p.OwnerID, completed, p.Sort, p.Order, p.Page, p.PerPage)
}

// CacheKey is the response cache key for this plan's page.
func (p Plan) CacheKey() string {
	sum := sha256.Sum256([]byte(p.Fingerprint()))
	return "todos:list:" + hex.EncodeToString(sum[:])
}

// Values renders the plan back into canonical query parameters (owner excluded).
func (p Plan) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.PerPage))
	v.Set("sort", string(p.Sort))
	v.Set("order", string(p.Order))
	if p.Completed != nil {
		v.Set("completed", strconv.FormatBool(*p.Completed))
	}
	return v
}
