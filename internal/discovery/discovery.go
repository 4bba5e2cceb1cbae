// Package discovery scrapes the archive's calendar pages to learn which
// dates actually have published editions and where their PDFs live, so a
// discovery-mode run avoids speculative fetches of unpublished dates.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/diario"
)

// Config controls scraper behavior.
type Config struct {
	// BaseURL is the archive search root (default diario.BaseURL).
	BaseURL string
	// UserAgent is sent on every request.
	UserAgent string
	// Timeout bounds a single page fetch.
	Timeout time.Duration
}

var (
	yearPattern   = regexp.MustCompile(`\b(?:18|19|20)\d{2}\b`)
	datainPattern = regexp.MustCompile(`Datain=(\d{2}/\d{2}/\d{4})`)
	pdfPattern    = regexp.MustCompile(`(?i)(?:https://imagem\.camara\.gov\.br)?/Imagem/d/pdf/[^"']+\.PDF`)
)

// Scraper discovers published editions through the archive's HTML pages.
type Scraper struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// DateLink pairs a published date with the calendar page link to it.
type DateLink struct {
	Date time.Time
	URL  string
}

// New builds a Scraper.
func New(cfg Config, logger *zap.Logger) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = diario.BaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(&http.Transport{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	})
	return &Scraper{cfg: cfg, baseCollector: c, logger: logger}
}

// Years scrapes the search page for the publication years the archive
// offers, ascending, clamped to [diario.FirstYear, current year].
func (s *Scraper) Years(ctx context.Context) ([]int, error) {
	var body string
	collector := s.newCollector()
	collector.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	url := s.cfg.BaseURL + diario.SearchPage
	if err := s.visit(ctx, collector, url); err != nil {
		return nil, fmt.Errorf("load search page: %w", err)
	}

	current := time.Now().Year()
	seen := make(map[int]struct{})
	for _, match := range yearPattern.FindAllString(body, -1) {
		year, err := strconv.Atoi(match)
		if err != nil || year < diario.FirstYear || year > current {
			continue
		}
		seen[year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// Calendar scrapes the per-year calendar page and returns the published
// dates, ascending, with their date-page links.
func (s *Scraper) Calendar(ctx context.Context, year int) ([]DateLink, error) {
	var links []DateLink
	collector := s.newCollector()
	collector.OnHTML("a.WeekDay[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !strings.Contains(href, "dc_20b.asp") {
			return
		}
		m := datainPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		date, err := diario.ParseArchiveDate(m[1])
		if err != nil {
			s.logger.Debug("skipping malformed calendar date", zap.String("href", href), zap.Error(err))
			return
		}
		links = append(links, DateLink{Date: date, URL: e.Request.AbsoluteURL(href)})
	})

	url := fmt.Sprintf("%s%s?ano=%d", s.cfg.BaseURL, diario.SearchPage, year)
	if err := s.visit(ctx, collector, url); err != nil {
		return nil, fmt.Errorf("load calendar for %d: %w", year, err)
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Date.Before(links[j].Date) })
	s.logger.Info("calendar scraped", zap.Int("year", year), zap.Int("dates", len(links)))
	return links, nil
}

// ResolvePDF follows one date link and extracts the document URL. Relative
// URLs are made absolute against the image host.
func (s *Scraper) ResolvePDF(ctx context.Context, dateURL string) (string, error) {
	var body string
	collector := s.newCollector()
	collector.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	if err := s.visit(ctx, collector, dateURL); err != nil {
		return "", fmt.Errorf("load date page: %w", err)
	}

	match := pdfPattern.FindString(body)
	if match == "" {
		return "", fmt.Errorf("no PDF link on %s", dateURL)
	}
	if strings.HasPrefix(match, "/") {
		match = diario.PDFBaseURL + match
	}
	return match, nil
}

// Editions resolves the published editions inside rng: one calendar scrape
// per year, one resolve per published date. A date whose PDF link cannot be
// resolved falls back to the conventional derived URL.
func (s *Scraper) Editions(ctx context.Context, rng diario.Range) ([]diario.Edition, error) {
	var editions []diario.Edition
	for year := rng.Start.Year(); year <= rng.End.Year(); year++ {
		links, err := s.Calendar(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if !rng.Contains(link.Date) {
				continue
			}
			ed := diario.EditionOn(link.Date)
			pdfURL, err := s.ResolvePDF(ctx, link.URL)
			if err != nil {
				s.logger.Warn("falling back to derived document URL",
					zap.String("edition", ed.Key()), zap.Error(err))
			} else {
				ed.PDFURL = pdfURL
			}
			editions = append(editions, ed)
		}
	}
	return editions, nil
}

func (s *Scraper) newCollector() *colly.Collector {
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(s.cfg.Timeout)
	return collector
}

// visit runs the collector on its own goroutine so the caller's context can
// abandon a slow page load.
func (s *Scraper) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("discovery canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}
