package addon

import (
	"github.com/snapetech/uakino-gateway/internal/catalog"
)

// Manifest constants.
const (
	ManifestID     = "org.uakino.best.gateway"
	DefaultVersion = "6.2.0"

	CatalogPremieres = "uakino-premieres"
	CatalogMovies    = "uakino-movies"
	CatalogSeries    = "uakino-series"
)

// Manifest describes the addon with the current genre options.
func (s *Service) Manifest() catalog.Manifest {
	g := s.Genres()
	return catalog.Manifest{
		ID:          ManifestID,
		Version:     s.Version,
		Name:        "uakino.best",
		Description: "Повнофункціональний додаток для uakino.best.",
		Logo:        s.BaseURL + "/templates/uakino/images/logo.svg",
		Types:       []string{catalog.TypeMovie, catalog.TypeSeries},
		Catalogs: []catalog.CatalogManifest{
			{ID: CatalogPremieres, Type: catalog.TypeMovie, Name: "Новинки прокату (uakino)"},
			{
				ID:   CatalogMovies,
				Type: catalog.TypeMovie,
				Name: "Фільми (uakino)",
				Extra: []catalog.Extra{
					{Name: "genre", Options: g.Names(catalog.TypeMovie)},
					{Name: "search"},
				},
			},
			{
				ID:   CatalogSeries,
				Type: catalog.TypeSeries,
				Name: "Серіали (uakino)",
				Extra: []catalog.Extra{
					{Name: "genre", Options: g.Names(catalog.TypeSeries)},
					{Name: "search"},
				},
			},
		},
		Resources:  []string{"catalog", "meta", "stream"},
		IDPrefixes: []string{catalog.IDPrefix + ":"},
	}
}
