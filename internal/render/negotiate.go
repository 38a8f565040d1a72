package render

import (
	"strconv"
	"strings"
)

// MediaType is one of the gateway's three negotiable response formats.
type MediaType string

const (
	MediaJSON    MediaType = "application/json"
	MediaHTML    MediaType = "text/html"
	MediaVOTable MediaType = "application/x-votable+xml"
)

// supported lists the negotiable formats in preference order. JSON wins ties
// and is the fallback when the Accept header matches nothing.
var supported = []MediaType{MediaJSON, MediaHTML, MediaVOTable}

// Negotiate picks the best supported media type for an Accept header,
// honoring q-values; wildcards match the highest-preference format.
func Negotiate(accept string) MediaType {
	if strings.TrimSpace(accept) == "" {
		return MediaJSON
	}

	best := MediaJSON
	bestQ := -1.0
	for _, clause := range strings.Split(accept, ",") {
		mediaType, quality := parseClause(clause)
		if mediaType == "" || quality <= 0 {
			continue
		}
		for _, candidate := range supported {
			if !clauseMatches(mediaType, candidate) {
				continue
			}
			if quality > bestQ {
				best = candidate
				bestQ = quality
			}
			break
		}
	}
	return best
}

func parseClause(clause string) (string, float64) {
	parts := strings.Split(clause, ";")
	mediaType := strings.ToLower(strings.TrimSpace(parts[0]))
	quality := 1.0
	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		if !strings.HasPrefix(param, "q=") {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimPrefix(param, "q="), 64)
		if err != nil {
			return mediaType, 0
		}
		quality = parsed
	}
	return mediaType, quality
}

func clauseMatches(clause string, candidate MediaType) bool {
	if clause == "*/*" || clause == string(candidate) {
		return true
	}
	slash := strings.IndexByte(clause, '/')
	if slash < 0 || !strings.HasSuffix(clause, "/*") {
		return false
	}
	return strings.HasPrefix(string(candidate), clause[:slash+1])
}
