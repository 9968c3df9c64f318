package playlist

import (
	"encoding/json"
	"strings"
)

// Candidate is a song proposed by the selector. Usually it only has title
// and artist, but any other fields are kept.
type Candidate map[string]any

// Key is the normalized identity used for deduplication.
type Key struct {
	Title  string
	Artist string
}

// KeyOf returns the dedup key of a song. Missing or non-string fields count
// as empty.
func KeyOf(v map[string]any) Key {
	title, _ := v["title"].(string)
	artist, _ := v["artist"].(string)
	return Key{
		Title:  normalize(title),
		Artist: normalize(artist),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Parse decodes a raw reply as a json array of objects. The second value is
// false when nothing usable could be decoded.
//
// Models like to wrap the array in prose or code fences, so if a strict
// decode fails the text between the first '[' and the last ']' is tried.
func Parse(raw string) ([]Candidate, bool) {
	if cs, ok := decode(raw); ok {
		return cs, true
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	return decode(raw[start : end+1])
}

func decode(s string) ([]Candidate, bool) {
	var cs []Candidate
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &cs); err != nil {
		return nil, false
	}
	// null decodes fine into a slice but isn't an array
	if cs == nil {
		return nil, false
	}
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, true
}
