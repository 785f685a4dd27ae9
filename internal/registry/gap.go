package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/weftlabs/weft/internal/util"
)

// GapResult pairs a requested capability name with the ranked node options
// found for it
type GapResult struct {
	Capability string        `json:"capability"`
	Options    []*NodeOption `json:"options"`
}

const maxOptionsPerGap = 5

// stopwords are dropped when widening a capability name into search terms
var stopwords = util.SetOf(
	"a", "an", "and", "the", "to", "for", "with", "in", "on", "of",
	"node", "service", "api", "integration",
)

// FindGaps resolves capability names that have no direct registry match into
// ranked node options. Searches for independent capabilities run in
// parallel; they are read-only and order-independent
func FindGaps(
	ctx context.Context, svc Service, capabilities []string,
) []*GapResult {
	res := make([]*GapResult, len(capabilities))

	var wg sync.WaitGroup
	for i, capability := range capabilities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res[i] = &GapResult{
				Capability: capability,
				Options:    searchGap(ctx, svc, capability),
			}
		}()
	}
	wg.Wait()
	return res
}

// searchGap widens the capability name one term set at a time, stopping at
// the first term set that produces any options
func searchGap(
	ctx context.Context, svc Service, capability string,
) []*NodeOption {
	for _, term := range ExpandTerms(capability) {
		options, err := svc.Search(ctx, term, maxOptionsPerGap)
		if err != nil {
			continue
		}
		if len(options) > 0 {
			return rankOptions(capability, options)
		}
	}
	return nil
}

// ExpandTerms produces progressively broader search terms for a capability
// name: the name itself, its word split, the significant words only, and
// finally the single most significant word
func ExpandTerms(capability string) []string {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return nil
	}

	words := SplitWords(capability)
	significant := make([]string, 0, len(words))
	for _, w := range words {
		if !stopwords.Contains(strings.ToLower(w)) {
			significant = append(significant, w)
		}
	}

	ordered := []string{capability}
	if joined := strings.Join(words, " "); joined != "" {
		ordered = append(ordered, joined)
	}
	if joined := strings.Join(significant, " "); joined != "" {
		ordered = append(ordered, joined)
	}
	if len(significant) > 0 {
		ordered = append(ordered, significant[0])
	}

	var res []string
	seen := map[string]bool{}
	for _, term := range ordered {
		lower := strings.ToLower(term)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		res = append(res, term)
	}
	return res
}

// SplitWords breaks a capability name on whitespace, punctuation, and
// camelCase boundaries
func SplitWords(name string) []string {
	var words []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r), r == '_', r == '-', r == '.', r == '/':
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// rankOptions orders search results so that options whose display name or
// type mention the capability come first. Registry order breaks ties
func rankOptions(capability string, options []*NodeOption) []*NodeOption {
	lower := strings.ToLower(capability)
	score := func(o *NodeOption) int {
		s := 0
		if strings.Contains(strings.ToLower(o.DisplayName), lower) {
			s += 2
		}
		if strings.Contains(strings.ToLower(string(o.NodeType)), lower) {
			s++
		}
		return s
	}

	res := append([]*NodeOption(nil), options...)
	sort.SliceStable(res, func(i, j int) bool {
		return score(res[i]) > score(res[j])
	})
	if len(res) > maxOptionsPerGap {
		res = res[:maxOptionsPerGap]
	}
	return res
}
