package providers

import "strings"

// DadJokeURL is the icanhazdadjoke.com endpoint; it only answers JSON when
// asked through the Accept header.
const DadJokeURL = "https://icanhazdadjoke.com/"

type dadJokePayload struct {
	ID     string `json:"id"`
	Joke   string `json:"joke"`
	Status int    `json:"status"`
}

// NewDadJoke builds a provider for icanhazdadjoke.com. The joke text is read
// from the `joke` field.
func NewDadJoke(opts Options) (*HTTPProvider, error) {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DadJokeURL
	}

	return newHTTPProvider("dad", "Dad Jokes API", opts, func(body []byte) (Joke, error) {
		var payload dadJokePayload
		if err := decodeJSON(body, &payload); err != nil {
			return Joke{}, err
		}
		return Joke{ID: payload.ID, Text: payload.Joke}, nil
	})
}
