package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRefdata(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	countries := `countries:
  - code: nl
    name: Netherlands
    languages: [nl, en]
    cities:
      - id: ams
        name: Amsterdam
        slug: amsterdam
      - id: rtm
        name: Rotterdam
        slug: rotterdam
        languages: [nl]
`
	categories := `categories:
  - slug: barbershop
    name: Barbershops
    queries:
      nl: kapper
      en: barber shop
  - slug: florist
    name: Florists
    queries: {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.yaml"), []byte(countries), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.yaml"), []byte(categories), 0o600))
	return dir
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	cat, err := Load(writeRefdata(t))
	require.NoError(t, err)

	nl, err := cat.Country("nl")
	require.NoError(t, err)
	require.Len(t, nl.Cities, 2)

	barber, err := cat.Category("barbershop")
	require.NoError(t, err)
	require.Equal(t, "kapper", barber.Queries["nl"])

	_, err = cat.Country("xx")
	require.Error(t, err)
}

func TestCityLanguagesOverride(t *testing.T) {
	t.Parallel()

	cat, err := Load(writeRefdata(t))
	require.NoError(t, err)
	nl, err := cat.Country("nl")
	require.NoError(t, err)

	require.Equal(t, []string{"nl", "en"}, CityLanguages(nl, nl.Cities[0]))
	require.Equal(t, []string{"nl"}, CityLanguages(nl, nl.Cities[1]))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir())
	require.Error(t, err)
}
