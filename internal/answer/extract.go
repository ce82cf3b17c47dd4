// Package answer pulls plain text and structured web-search hits out of a
// provider response, regardless of which output shape the provider used.
package answer

import (
	"strings"

	"github.com/openai/openai-go/responses"
)

// Hit is one structured web-search result the provider attached to its text.
type Hit struct {
	URL   string
	Title string
}

// Text concatenates every output_text part of every message item, newline
// joined. Malformed or empty responses degrade to "".
func Text(resp *responses.Response) string {
	if resp == nil {
		return ""
	}

	var sb strings.Builder
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if strings.TrimSpace(part.Type) != "output_text" {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// Hits collects the url_citation annotations the web-search tool attached to
// the output text, in order of appearance, deduplicated by URL. Responses
// without annotations yield an empty slice.
func Hits(resp *responses.Response) []Hit {
	if resp == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var hits []Hit
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if strings.TrimSpace(part.Type) != "output_text" {
				continue
			}
			for _, a := range part.Annotations {
				if strings.TrimSpace(a.Type) != "url_citation" {
					continue
				}
				url := strings.TrimSpace(a.URL)
				if url == "" {
					continue
				}
				if _, dup := seen[url]; dup {
					continue
				}
				seen[url] = struct{}{}
				hits = append(hits, Hit{URL: url, Title: strings.TrimSpace(a.Title)})
			}
		}
	}
	return hits
}

// URLs projects hits onto their URLs, preserving order.
func URLs(hits []Hit) []string {
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.URL
	}
	return out
}
