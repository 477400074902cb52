// Package company resolves ticker symbols to company names and derives the
// required-keyword sets used to filter news headlines.
package company

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"golang-stock-alerts/pkg/logger"
)

// legalSuffixes are common legal-form suffixes stripped from company names
// to get a cleaner search keyword ("Apple Inc." -> "Apple", "SAP SE" -> "SAP").
var legalSuffixes = map[string]bool{
	// EN
	"inc": true, "inc.": true, "corp": true, "corp.": true, "corporation": true,
	"co": true, "co.": true, "company": true, "ltd": true, "ltd.": true,
	"limited": true, "llc": true, "lp": true, "plc": true,
	// DE
	"ag": true, "se": true, "gmbh": true, "kgaa": true, "kg": true, "ohg": true, "ug": true,
	// CH/FR/ES/IT/NL/SE/FI
	"sa": true, "s.a.": true, "nv": true, "n.v.": true, "bv": true, "b.v.": true,
	"ab": true, "oy": true, "oyj": true, "oyj.": true,
	"spa": true, "s.p.a.": true, "sarl": true, "sas": true,
	"holding": true, "holdings": true,
}

// Meta holds the resolved metadata for a ticker.
type Meta struct {
	Ticker     string
	Name       string // cleaned name without legal suffix
	RawName    string // name as reported by the quote provider
	Source     string // which provider field supplied the name
	BaseTicker string // ticker without exchange or class suffix
}

// NameProvider looks up the company name for a symbol. Implementations may
// fail; the service falls back to ticker-derived metadata.
type NameProvider interface {
	LookupName(ctx context.Context, symbol string) (name, source string, err error)
}

// Service resolves company metadata with an explicit TTL cache in front of
// the provider. It replaces what would otherwise be a process-wide mutable
// lookup table.
type Service struct {
	provider NameProvider
	cache    *gocache.Cache
	log      *logger.Logger
}

// NewService creates a metadata service caching lookups for ttl.
func NewService(provider NameProvider, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		provider: provider,
		cache:    gocache.New(ttl, 2*ttl),
		log:      log,
	}
}

// Get resolves metadata for a symbol, consulting the cache first. Provider
// failures degrade to ticker-derived fallback metadata, which is cached for
// the same TTL so a flaky provider is not hammered.
func (s *Service) Get(ctx context.Context, symbol string) Meta {
	if cached, ok := s.cache.Get(symbol); ok {
		return cached.(Meta)
	}

	meta := Meta{
		Ticker:     symbol,
		Source:     "fallback",
		BaseTicker: BaseTicker(symbol),
	}

	if s.provider != nil {
		rawName, source, err := s.provider.LookupName(ctx, symbol)
		if err != nil {
			s.log.Debug("Company name lookup failed",
				logger.StringField("symbol", symbol), logger.ErrorField(err))
		} else if rawName != "" {
			meta.RawName = rawName
			meta.Source = source
		}
	}

	meta.Name = StripLegalSuffixes(meta.RawName)
	if meta.Name == "" {
		meta.Name = meta.BaseTicker
		meta.Source = "fallback"
	}

	s.cache.SetDefault(symbol, meta)
	return meta
}

// Keywords returns the display name and the required keywords for the news
// title filter: name, base ticker, and the raw symbol, deduplicated with
// order preserved.
func (s *Service) Keywords(ctx context.Context, symbol string) (string, []string) {
	meta := s.Get(ctx, symbol)

	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = strings.TrimSpace(meta.RawName)
	}
	if name == "" {
		name = meta.BaseTicker
	}
	if name == "" {
		name = symbol
	}

	seen := make(map[string]bool)
	var keywords []string
	for _, k := range []string{name, meta.BaseTicker, symbol} {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		keywords = append(keywords, k)
	}
	return name, keywords
}

// StripLegalSuffixes removes trailing legal-form words from a company name.
func StripLegalSuffixes(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Fields(name)
	for i := range parts {
		parts[i] = strings.Trim(parts[i], ",. ")
	}
	for len(parts) > 0 && isLegalSuffix(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return strings.TrimSpace(name)
	}
	return strings.Join(parts, " ")
}

// isLegalSuffix matches a name part against the suffix table, with and
// without interior dots ("N.V" and "NV" both count).
func isLegalSuffix(part string) bool {
	key := strings.ToLower(strings.Trim(part, ",. "))
	if key == "" {
		return false
	}
	return legalSuffixes[key] || legalSuffixes[strings.ReplaceAll(key, ".", "")]
}

// BaseTicker extracts the base symbol: "SAP.DE" -> "SAP", "BRK.B" -> "BRK",
// "RDS-A" -> "RDS". Index symbols like "^GDAXI" are kept as is.
func BaseTicker(symbol string) string {
	if strings.HasPrefix(symbol, "^") {
		return symbol
	}
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[:i]
	}
	if i := strings.IndexByte(symbol, '-'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}
