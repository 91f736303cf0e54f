package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// Namespace groups entries that share a lifecycle.
type Namespace string

const (
	// NamespaceDashboard holds interval-refreshed dashboard data.  It is
	// cleared wholesale by the weekly cleanup job.
	NamespaceDashboard Namespace = "dashboard"

	// NamespaceStats holds daily and trend snapshots.
	NamespaceStats Namespace = "stats"
)

// Key addresses one entry.  HotelID is mandatory; there is no key shape
// that spans hotels.
type Key struct {
	Namespace Namespace
	HotelID   int64
	Metric    string
	Period    string
}

// String renders <namespace>:<hotel>:<metric>:<period>.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", k.Namespace, k.HotelID, k.Metric, k.Period)
}

// Validate rejects keys that would not be tenant scoped or would not parse
// back.
func (k Key) Validate() error {
	switch {
	case k.Namespace == "":
		return fmt.Errorf("cache: key %q has no namespace", k)
	case k.HotelID <= 0:
		return fmt.Errorf("cache: key %q has no hotel id", k)
	case k.Metric == "" || strings.Contains(k.Metric, ":"):
		return fmt.Errorf("cache: key %q has an invalid metric", k)
	case k.Period == "":
		return fmt.Errorf("cache: key %q has no period", k)
	}
	return nil
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("cache: malformed key %q", s)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("cache: malformed hotel id in key %q: %w", s, err)
	}
	k := Key{Namespace: Namespace(parts[0]), HotelID: id, Metric: parts[2], Period: parts[3]}
	return k, k.Validate()
}

// Prefix selects the entries of one hotel, optionally narrowed to one
// metric.
type Prefix struct {
	Namespace Namespace
	HotelID   int64
	Metric    string
}

// String renders the key prefix the selection matches.
func (p Prefix) String() string {
	if p.Metric == "" {
		return fmt.Sprintf("%s:%d:", p.Namespace, p.HotelID)
	}
	return fmt.Sprintf("%s:%d:%s:", p.Namespace, p.HotelID, p.Metric)
}

// Validate rejects prefixes that are not hotel scoped.
func (p Prefix) Validate() error {
	if p.Namespace == "" || p.HotelID <= 0 {
		return fmt.Errorf("cache: prefix %q must name a namespace and hotel", p)
	}
	return nil
}
