// Package diario models editions of the Diário da Câmara dos Deputados and
// the locations the archive publishes them at.
package diario

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Archive endpoints. The search and calendar pages live on the leg.br host
// while the document images are served from gov.br.
const (
	BaseURL    = "https://imagem.camara.leg.br/"
	PDFBaseURL = "https://imagem.camara.gov.br"
	SearchPage = "pesquisa_diario_basica.asp"
)

// FirstYear is the oldest publication year the archive exposes.
const FirstYear = 1881

// monthDirs holds the directory names used by the on-disk layout, indexed by
// time.Month - 1. The labels match the archive's own Portuguese month names.
var monthDirs = [...]string{
	"01_Janeiro", "02_Fevereiro", "03_Março", "04_Abril",
	"05_Maio", "06_Junho", "07_Julho", "08_Agosto",
	"09_Setembro", "10_Outubro", "11_Novembro", "12_Dezembro",
}

// Granularity selects how deep the date-based directory layout nests.
type Granularity string

// Supported layout granularities.
const (
	GranularityMonth Granularity = "month"
	GranularityDay   Granularity = "day"
)

// ParseGranularity validates a granularity name from configuration.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case GranularityMonth:
		return GranularityMonth, nil
	case GranularityDay:
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want month or day)", s)
	}
}

// Edition identifies a single published issue of the Diário: one per
// calendar day. The zero value is not usable; build editions with NewEdition
// or EditionOn.
type Edition struct {
	// Date is the publication date, normalized to midnight UTC.
	Date time.Time
	// PDFURL optionally carries the archive's real document URL as resolved
	// by the calendar scraper. When empty the URL is derived from Code.
	PDFURL string
}

// NewEdition builds an Edition for the given calendar day.
func NewEdition(year int, month time.Month, day int) Edition {
	return Edition{Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// EditionOn builds an Edition for the calendar day of t.
func EditionOn(t time.Time) Edition {
	return NewEdition(t.Year(), t.Month(), t.Day())
}

// Key returns the ledger identifier for the edition. The format,
// "YYYY_DD/MM/YYYY", matches the keys historic progress files were written
// with, so old ledgers keep resuming correctly.
func (e Edition) Key() string {
	return fmt.Sprintf("%d_%s", e.Date.Year(), e.ArchiveDate())
}

// ArchiveDate returns the date in the DD/MM/YYYY form the archive uses in
// its Datain query parameters.
func (e Edition) ArchiveDate() string {
	return fmt.Sprintf("%02d/%02d/%04d", e.Date.Day(), int(e.Date.Month()), e.Date.Year())
}

// Code returns the derived document code, DCD followed by the date as
// YYYYMMDD.
func (e Edition) Code() string {
	return fmt.Sprintf("DCD%04d%02d%02d", e.Date.Year(), int(e.Date.Month()), e.Date.Day())
}

// URL returns the remote document location: the resolved PDFURL when the
// calendar scraper supplied one, otherwise the conventional location derived
// from Code.
func (e Edition) URL() string {
	if e.PDFURL != "" {
		return e.PDFURL
	}
	return fmt.Sprintf("%s/Imagem/d/pdf/%s.PDF", PDFBaseURL, e.Code())
}

// FileName returns the local file name: the base name of the document URL
// with the archive's upper-case .PDF extension enforced.
func (e Edition) FileName() string {
	name := e.Code() + ".PDF"
	if e.PDFURL != "" {
		if u, err := url.Parse(e.PDFURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			name = path.Base(u.Path)
		}
	}
	if !strings.HasSuffix(strings.ToUpper(name), ".PDF") {
		name += ".PDF"
	}
	return name
}

// LocalPath returns the deterministic on-disk destination under root. Month
// granularity groups editions into the archive's Portuguese month
// directories; day granularity nests one numeric directory per day.
func (e Edition) LocalPath(root string, g Granularity) string {
	year := fmt.Sprintf("%04d", e.Date.Year())
	switch g {
	case GranularityDay:
		return filepath.Join(root, year,
			fmt.Sprintf("%02d", int(e.Date.Month())),
			fmt.Sprintf("%02d", e.Date.Day()),
			e.FileName())
	default:
		return filepath.Join(root, year, monthDirs[int(e.Date.Month())-1], e.FileName())
	}
}

// ParseArchiveDate parses a DD/MM/YYYY date as found in calendar links.
func ParseArchiveDate(s string) (time.Time, error) {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse archive date %q: %w", s, err)
	}
	return t.UTC(), nil
}
