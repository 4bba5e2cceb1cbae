package diario

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEditionKeyMatchesHistoricFormat(t *testing.T) {
	t.Parallel()

	ed := NewEdition(1996, time.January, 10)
	require.Equal(t, "1996_10/01/1996", ed.Key())
	require.Equal(t, "10/01/1996", ed.ArchiveDate())
}

func TestEditionDerivedURL(t *testing.T) {
	t.Parallel()

	ed := NewEdition(2024, time.March, 5)
	require.Equal(t, "DCD20240305", ed.Code())
	require.Equal(t, "https://imagem.camara.gov.br/Imagem/d/pdf/DCD20240305.PDF", ed.URL())
}

func TestEditionResolvedURLWins(t *testing.T) {
	t.Parallel()

	ed := NewEdition(2024, time.March, 5)
	ed.PDFURL = "https://imagem.camara.gov.br/Imagem/d/pdf/DCD05MAR2024.PDF"
	require.Equal(t, ed.PDFURL, ed.URL())
	require.Equal(t, "DCD05MAR2024.PDF", ed.FileName())
}

func TestEditionFileNameEnforcesExtension(t *testing.T) {
	t.Parallel()

	ed := NewEdition(2024, time.March, 5)
	ed.PDFURL = "https://imagem.camara.gov.br/Imagem/d/pdf/DCD05MAR2024"
	require.Equal(t, "DCD05MAR2024.PDF", ed.FileName())
}

func TestLocalPathMonthGranularity(t *testing.T) {
	t.Parallel()

	ed := NewEdition(1996, time.March, 10)
	want := filepath.Join("downloads", "1996", "03_Março", "DCD19960310.PDF")
	require.Equal(t, want, ed.LocalPath("downloads", GranularityMonth))
}

func TestLocalPathDayGranularity(t *testing.T) {
	t.Parallel()

	ed := NewEdition(1996, time.December, 2)
	want := filepath.Join("downloads", "1996", "12", "02", "DCD19961202.PDF")
	require.Equal(t, want, ed.LocalPath("downloads", GranularityDay))
}

func TestLocalPathIsDeterministic(t *testing.T) {
	t.Parallel()

	a := NewEdition(2020, time.July, 9)
	b := EditionOn(time.Date(2020, time.July, 9, 23, 59, 0, 0, time.UTC))
	require.Equal(t, a.LocalPath("x", GranularityMonth), b.LocalPath("x", GranularityMonth))
	require.Equal(t, a.Key(), b.Key())
}

func TestParseArchiveDate(t *testing.T) {
	t.Parallel()

	d, err := ParseArchiveDate("10/01/1996")
	require.NoError(t, err)
	require.Equal(t, time.Date(1996, time.January, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseArchiveDate("1996-01-10")
	require.Error(t, err)
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	g, err := ParseGranularity(" Month ")
	require.NoError(t, err)
	require.Equal(t, GranularityMonth, g)

	_, err = ParseGranularity("weekly")
	require.Error(t, err)
}
