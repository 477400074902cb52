package news

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"golang-stock-alerts/pkg/logger"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxInspectBody = 2 << 20 // cap the HTML we scan for fallback links
)

var (
	jsLocationRe   = regexp.MustCompile(`(?i)location\.(?:replace|href)\((["'])(.+?)["']\)`)
	metaRefreshRe  = regexp.MustCompile(`(?i)^\s*\d+\s*;\s*url\s*=\s*(.+)$`)
	absoluteURLRe  = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)
	googleDomainRe = regexp.MustCompile(`(?i)(?:^|\.)google\.[^/]+|(?:^|\.)gstatic\.com`)
	trackingParams = map[string]bool{"ved": true, "usg": true, "si": true, "sca_esv": true, "opi": true}
)

// Resolver turns Google News aggregator links into best-effort canonical
// article URLs. It never fails: every internal error degrades to the best
// intermediate URL available, worst case the scheme-normalized input.
type Resolver struct {
	httpClient *http.Client
	log        *logger.Logger
}

// NewResolver creates a resolver whose HTTP attempts are bounded by timeout.
func NewResolver(timeout time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{
		// The default client policy caps redirect chains at ten hops,
		// which also bounds pathological aggregator loops.
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Resolve extracts the original article URL behind an aggregator link.
// Cheap parameter extraction is attempted before any network call; with
// followRedirects false the method never touches the network.
func (r *Resolver) Resolve(ctx context.Context, rawLink string, followRedirects bool) string {
	u := EnsureHTTPS(strings.TrimSpace(rawLink))
	if u == "" {
		return ""
	}

	if direct := extractURLParam(u); direct != "" {
		return direct
	}
	if cont := consentContinue(u); cont != "" {
		return cont
	}

	u = rewriteRSSArticlePath(u)

	if !followRedirects {
		return u
	}

	if resolved := r.resolveViaHTTP(ctx, u); resolved != "" {
		return resolved
	}

	return stripTrackingParams(u)
}

// resolveViaHTTP follows the redirect chain and inspects the final page.
// An empty return means no refinement was possible.
func (r *Resolver) resolveViaHTTP(ctx context.Context, u string) string {
	var hops []*url.URL
	client := &http.Client{
		Timeout: r.httpClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			hops = append(hops, req.URL)
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	// Aggregators reject bare requests, so present a browser identity.
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		r.log.DebugContext(ctx, "URL resolution request failed", logger.StringField("url", u), logger.ErrorField(err))
		return ""
	}
	defer resp.Body.Close()

	for _, hop := range hops {
		if cont := consentContinue(hop.String()); cont != "" {
			return cont
		}
	}

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	if !isGoogleHost(hostOf(finalURL)) {
		return EnsureHTTPS(finalURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInspectBody))
	if err != nil {
		return ""
	}
	return r.inspectHTML(string(body))
}

// inspectHTML scans a page still parked on the aggregator domain for the
// embedded target link, cheapest signal first.
func (r *Resolver) inspectHTML(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
			return EnsureHTTPS(urlDecode(href))
		}
		var refresh string
		doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if equiv, _ := sel.Attr("http-equiv"); !strings.EqualFold(equiv, "refresh") {
				return true
			}
			content, _ := sel.Attr("content")
			if m := metaRefreshRe.FindStringSubmatch(content); m != nil {
				refresh = strings.Trim(m[1], `"' `)
				return false
			}
			return true
		})
		if refresh != "" {
			return EnsureHTTPS(urlDecode(refresh))
		}
	}

	if m := jsLocationRe.FindStringSubmatch(body); m != nil {
		return EnsureHTTPS(urlDecode(m[2]))
	}

	if doc != nil {
		var nested string
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			if target := extractNestedURLParam(href); target != "" {
				nested = target
				return false
			}
			return true
		})
		if nested != "" {
			return nested
		}
	}

	// Brute force: first absolute URL that is not Google's own or its
	// static-asset domain.
	for _, cand := range absoluteURLRe.FindAllString(body, -1) {
		if host := hostOf(cand); host != "" && !googleDomainRe.MatchString(host) {
			return EnsureHTTPS(urlDecode(cand))
		}
	}
	return ""
}

// EnsureHTTPS prefixes a scheme when the URL lacks one.
func EnsureHTTPS(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + strings.TrimLeft(u, "/")
}

func hostOf(rawURL string) string {
	p, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return p.Hostname()
}

func isGoogleHost(host string) bool {
	return strings.Contains(host, "google.")
}

func isNewsGoogleHost(host string) bool {
	return strings.Contains(host, "news.google.")
}

// extractURLParam handles the direct aggregator redirect shape
// news.google.com/...?url=<target>.
func extractURLParam(rawURL string) string {
	p, err := url.Parse(rawURL)
	if err != nil || !isNewsGoogleHost(p.Hostname()) {
		return ""
	}
	if target := p.Query().Get("url"); target != "" {
		return EnsureHTTPS(urlDecode(target))
	}
	return ""
}

// extractNestedURLParam matches anchors of the form /url?...url=<target>
// with or without the aggregator host prefix.
func extractNestedURLParam(href string) string {
	if href == "" {
		return ""
	}
	p, err := url.Parse(href)
	if err != nil || p.Path != "/url" {
		return ""
	}
	if p.Host != "" && !isNewsGoogleHost(p.Hostname()) {
		return ""
	}
	if target := p.Query().Get("url"); target != "" {
		return EnsureHTTPS(urlDecode(target))
	}
	return ""
}

// consentContinue unwraps consent.google.* interstitials carrying the real
// destination in a continue parameter.
func consentContinue(rawURL string) string {
	p, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(p.Hostname(), "consent.google.") {
		return ""
	}
	q := p.Query()
	cont := q.Get("continue")
	if cont == "" {
		cont = q.Get("continue_url")
	}
	if cont == "" {
		return ""
	}
	return EnsureHTTPS(urlDecode(cont))
}

// rewriteRSSArticlePath maps /rss/articles/ to /articles/; the article view
// embeds the true source link far more reliably than the RSS redirect.
func rewriteRSSArticlePath(rawURL string) string {
	p, err := url.Parse(rawURL)
	if err != nil || !isNewsGoogleHost(p.Hostname()) {
		return rawURL
	}
	if strings.Contains(p.Path, "/rss/articles/") {
		p.Path = strings.Replace(p.Path, "/rss/articles/", "/articles/", 1)
		return p.String()
	}
	return rawURL
}

// stripTrackingParams cosmetically removes click-ids, UTM parameters and
// session identifiers. The URL is returned unchanged when nothing matches.
func stripTrackingParams(rawURL string) string {
	p, err := url.Parse(rawURL)
	if err != nil || p.RawQuery == "" {
		return rawURL
	}
	q := p.Query()
	changed := false
	for key := range q {
		if trackingParams[key] || strings.HasPrefix(key, "utm_") || strings.HasPrefix(key, "gws_") {
			q.Del(key)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	p.RawQuery = q.Encode()
	return p.String()
}

func urlDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}
