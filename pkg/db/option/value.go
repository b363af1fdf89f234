package option

import (
	"errors"
	"strings"
)

var errMalformedValue = errors.New("malformed value")

// splitValues tokenizes a filter value into whitespace-separated items.
// Items may be wrapped in single or double quotes to keep spaces; an
// optional surrounding pair of parentheses is stripped first.
func splitValues(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	hasOpen, hasClose := strings.HasPrefix(raw, "("), strings.HasSuffix(raw, ")")
	if hasOpen != hasClose {
		return nil, errMalformedValue
	}
	if hasOpen {
		raw = raw[1 : len(raw)-1]
	}

	var values []string
	for i := 0; i < len(raw); {
		c := raw[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}

		if c == '"' || c == '\'' {
			end := strings.IndexByte(raw[i+1:], c)
			if end < 0 {
				return nil, errMalformedValue
			}
			item := raw[i+1 : i+1+end]
			next := i + end + 2
			if next < len(raw) && raw[next] != ' ' && raw[next] != '\t' {
				return nil, errMalformedValue
			}
			if strings.TrimSpace(item) == "" {
				return nil, errMalformedValue
			}
			values = append(values, item)
			i = next
			continue
		}

		end := strings.IndexAny(raw[i:], " \t")
		if end < 0 {
			end = len(raw) - i
		}
		values = append(values, raw[i:i+end])
		i += end
	}

	if len(values) == 0 {
		return nil, errMalformedValue
	}
	return values, nil
}
