package selector

import (
	"encoding/json"
	"fmt"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

const systemPrompt = "You are a music expert and playlist curator."

const userTemplate = `Here is a list of songs in JSON format:

%s

Pick exactly %d songs from this list for the theme:
"%s"

Only pick from songs I gave you. Return just a JSON array like:
[
  { "title": "Song Title", "artist": "Artist" },
  ...
]
`

// prompt builds the system and user messages for a batch.
func prompt(batch []catalog.Record, theme string, k int) (string, string, error) {
	if batch == nil {
		batch = []catalog.Record{}
	}
	js, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("selector: couldn't marshal batch: %w", err)
	}
	return systemPrompt, fmt.Sprintf(userTemplate, js, k, theme), nil
}
