package roster

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/errors"
)

// ImportEntry is one parsed row of a bulk import, before it is merged into
// the roster.
type ImportEntry struct {
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Excluded bool   `json:"excluded"`
}

// ImportReport accounts for what an import actually did. Duplicates are
// imported anyway; the count is surfaced as a soft warning only.
type ImportReport struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// First-column values that mark a line as a header rather than a
// participant.
var headerAliases = map[string]bool{
	"name":   true,
	"姓名":     true,
	"weight": true,
	"权重":     true,
	"参与者":    true,
}

// ParseImport decodes a participant import payload. A payload that starts
// with '[' is treated as a JSON array of {name, weight?, excluded?};
// anything else is parsed as delimited text, one participant per line.
func ParseImport(data []byte) ([]ImportEntry, error) {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []ImportEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("import: not a valid participant JSON array"),
				errors.WithCause(err))
		}
		return entries, nil
	}
	return parseDelimited(data), nil
}

// parseDelimited splits each line on comma, tab, or runs of whitespace.
// First column is the name; an optional second column is a positive integer
// weight. Blank lines and header lines are skipped.
func parseDelimited(data []byte) []ImportEntry {
	var entries []ImportEntry

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == '\t' || unicode.IsSpace(r)
		})
		if len(fields) == 0 {
			continue
		}
		if headerAliases[strings.ToLower(fields[0])] {
			continue
		}

		e := ImportEntry{Name: fields[0], Weight: 1}
		if len(fields) > 1 {
			if w, err := strconv.Atoi(fields[1]); err == nil && w > 0 {
				e.Weight = w
			}
		}
		entries = append(entries, e)
	}

	return entries
}

// BulkImport appends a batch of entries. Entries whose name trims to empty
// are dropped and counted as skipped. Duplicate names (case and whitespace
// insensitive, against both the existing roster and the batch itself) are
// still imported but counted, so the caller can warn.
func (s *Store) BulkImport(entries []ImportEntry) ImportReport {
	var rep ImportReport

	seen := make(map[string]bool, len(s.participants)+len(entries))
	for _, p := range s.participants {
		seen[normalizeName(p.Name)] = true
	}

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			rep.Skipped++
			continue
		}
		weight := e.Weight
		if weight < 1 {
			weight = 1
		}

		key := normalizeName(name)
		if seen[key] {
			rep.Duplicates++
		}
		seen[key] = true

		s.participants = append(s.participants, domain.Participant{
			ID:       s.nextID(),
			Name:     name,
			Weight:   weight,
			Excluded: e.Excluded,
		})
		rep.Added++
	}

	return rep
}

// normalizeName lowers the name and strips all whitespace for duplicate
// comparison.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
