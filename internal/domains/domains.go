package domains

import "strings"

// sourceDomainMap translates the source labels shown in the form into the
// domains the web-search tool should actually be restricted to.
var sourceDomainMap = map[string][]string{
	"IEEE":          {"ieeexplore.ieee.org"},
	"SpringerLink":  {"link.springer.com"},
	"ScienceDirect": {"www.sciencedirect.com", "sciencedirect.com"},
	"Wiley":         {"onlinelibrary.wiley.com"},
	"PubMed":        {"pubmed.ncbi.nlm.nih.gov", "www.ncbi.nlm.nih.gov"},
	"arXiv":         {"arxiv.org"},
	"Scopus":        {"www.scopus.com"},
}

// defaultDomains is the fallback allow-list used when automatic domain
// discovery fails or returns nothing usable.
var defaultDomains = []string{
	"ieeexplore.ieee.org",
	"link.springer.com",
	"www.sciencedirect.com",
	"onlinelibrary.wiley.com",
	"pubmed.ncbi.nlm.nih.gov",
	"arxiv.org",
}

// KnownLabels lists the source labels the form may offer, in display order.
func KnownLabels() []string {
	return []string{"IEEE", "SpringerLink", "ScienceDirect", "Wiley", "PubMed", "arXiv", "Scopus"}
}

// Resolve maps source labels to literal domains. Unknown labels contribute
// nothing. Input label order is preserved, then per-label domain order.
func Resolve(labels []string) []string {
	var out []string
	for _, label := range labels {
		out = append(out, sourceDomainMap[strings.TrimSpace(label)]...)
	}
	return dedupe(out)
}

// Defaults returns a copy of the fallback allow-list.
func Defaults() []string {
	out := make([]string, len(defaultDomains))
	copy(out, defaultDomains)
	return out
}

// Sanitize cleans domain-like strings as returned by the model: strips a
// leading protocol, enumeration markers ("1. ", "- ", "(2) "), anything after
// the first whitespace, and trailing slashes. Strings that do not look like a
// domain afterwards (no dot) are dropped. Case is preserved.
func Sanitize(raw []string) []string {
	var out []string
	for _, line := range raw {
		d := sanitizeOne(line)
		if d != "" {
			out = append(out, d)
		}
	}
	return dedupe(out)
}

func sanitizeOne(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.TrimLeft(s, "0123456789.-() \t")

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "https://") {
		s = s[len("https://"):]
	} else if strings.HasPrefix(lower, "http://") {
		s = s[len("http://"):]
	}

	// The model sometimes appends commentary after the domain.
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	} else {
		return ""
	}

	s = strings.TrimRight(s, "/")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

func dedupe(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, d := range list {
		key := strings.ToLower(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
