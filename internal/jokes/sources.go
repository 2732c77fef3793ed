package jokes

import "chistes/app/internal/providers"

const (
	TokenChuck = "Chuck"
	TokenDad   = "Dad"

	// FallbackSourceLabel is reported as the source of a joke served from
	// the database after its provider failed.
	FallbackSourceLabel = "Base de datos (fallback)"
)

// Source binds a URL token to a remote provider and the topic keywords used
// to pick a local joke when that provider is down.
type Source struct {
	Token            string
	Provider         providers.Provider
	FallbackKeywords []string
}

// DefaultSources returns the Chuck and Dad sources with their stock fallback
// keywords.
func DefaultSources(chuck, dad providers.Provider) []Source {
	return []Source{
		{Token: TokenChuck, Provider: chuck, FallbackKeywords: []string{"negro", "chuck"}},
		{Token: TokenDad, Provider: dad, FallbackKeywords: []string{"amarillo", "dad"}},
	}
}
