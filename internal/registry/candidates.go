package registry

import "strings"

// Capability identifiers arrive in several inconsistent textual forms:
// scoped packages ("@scope/n8n-nodes-base.httpRequest"), full package
// prefixes ("n8n-nodes-base.httpRequest"), registry-canonical prefixes
// ("nodes-base.httpRequest"), and bare names ("httpRequest"). The registry
// is not guaranteed to normalize these the same way we do, so lookups try a
// small ordered candidate list instead of requiring callers to spell the
// identifier exactly right.

const namespacePrefix = "n8n-"

// Candidates builds the ordered list of identifier spellings to try against
// the registry: canonical form first, then the raw string, the
// namespace-stripped form, the scope-stripped form, and finally the bare
// trailing segment. Duplicates are removed preserving order
func Candidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	ordered := []string{
		Canonical(raw),
		raw,
		stripNamespace(raw),
		stripScope(raw),
		tailSegment(raw),
	}

	var res []string
	seen := map[string]bool{}
	for _, c := range ordered {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		res = append(res, c)
	}
	return res
}

// Canonical normalizes a raw identifier to the registry's preferred form:
// package scope removed and the vendor namespace prefix collapsed, e.g.
// "@scope/n8n-nodes-base.httpRequest" becomes "nodes-base.httpRequest"
func Canonical(raw string) string {
	return stripNamespace(stripScope(raw))
}

func stripScope(raw string) string {
	if !strings.HasPrefix(raw, "@") {
		return raw
	}
	if _, rest, ok := strings.Cut(raw, "/"); ok {
		return rest
	}
	return raw
}

func stripNamespace(raw string) string {
	return strings.TrimPrefix(stripScope(raw), namespacePrefix)
}

func tailSegment(raw string) string {
	if idx := strings.LastIndexByte(raw, '.'); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}
