package providers

import "strings"

// ChuckNorrisURL is the public random joke endpoint of api.chucknorris.io.
const ChuckNorrisURL = "https://api.chucknorris.io/jokes/random"

type chuckNorrisPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// NewChuckNorris builds a provider for api.chucknorris.io. The joke text is
// read from the `value` field.
func NewChuckNorris(opts Options) (*HTTPProvider, error) {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = ChuckNorrisURL
	}

	return newHTTPProvider("chuck", "Chuck Norris API", opts, func(body []byte) (Joke, error) {
		var payload chuckNorrisPayload
		if err := decodeJSON(body, &payload); err != nil {
			return Joke{}, err
		}
		return Joke{ID: payload.ID, Text: payload.Value}, nil
	})
}
