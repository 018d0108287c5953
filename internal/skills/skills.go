// Package skills turns a batch of job postings into a ranked skill frequency
// table. It is pure: no I/O and no shared state beyond the injected
// Tokenizer.
package skills

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Document is one fetched posting. Description may be missing or hold a
// non-string JSON value; both contribute no tokens.
type Document struct {
	Title       string          `json:"title,omitempty"`
	CompanyName string          `json:"company_name,omitempty"`
	Location    string          `json:"location,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
}

// NewDocument builds a Document with a textual description.
func NewDocument(description string) Document {
	raw, _ := json.Marshal(description)
	return Document{Description: raw}
}

// DescriptionText returns the description when it is a JSON string and ""
// otherwise.
func (d Document) DescriptionText() string {
	if len(d.Description) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(d.Description, &text); err != nil {
		return ""
	}
	return text
}

// Skill is one row of the frequency table.
type Skill struct {
	Name        string `json:"name"`
	Occurrences int    `json:"occurrences"`
}

// Table is ordered by Occurrences descending. Ties keep first-seen order.
type Table []Skill

// Top returns at most n leading rows.
func (t Table) Top(n int) Table {
	if n < 0 || len(t) <= n {
		return t
	}
	return t[:n]
}

// Names lists skill names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, s := range t {
		names[i] = s.Name
	}
	return names
}

// Encode serializes the table in the form stored by the cache and audit log.
// An empty table encodes as [] rather than null.
func Encode(t Table) ([]byte, error) {
	if t == nil {
		t = Table{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding skill table: %w", err)
	}
	return data, nil
}

// Decode parses a table produced by Encode.
func Decode(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding skill table: %w", err)
	}
	if t == nil {
		t = Table{}
	}
	return t, nil
}

// Tokenizer reduces cleaned text to normalized content tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(text string) []string

func (f TokenizerFunc) Tokenize(text string) []string { return f(text) }

// bulletPattern captures the rest of the line after a bullet. The second
// alternative is the bullet's UTF-8 bytes mis-decoded as Windows-1252.
var bulletPattern = regexp.MustCompile(`(?:•|â€¢)(.+)`)

// ExtractBullets keeps only text following bullet markers, joined by spaces
// and lower-cased.
func ExtractBullets(description string) string {
	matches := bulletPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m[1])
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Aggregator counts tokens across a whole batch of documents.
type Aggregator struct {
	tokenizer Tokenizer
}

func NewAggregator(tokenizer Tokenizer) *Aggregator {
	return &Aggregator{tokenizer: tokenizer}
}

// Aggregate builds the frequency table for docs. Tokens are counted with
// multiplicity, per batch rather than per document.
func (a *Aggregator) Aggregate(docs []Document) Table {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, doc := range docs {
		text := ExtractBullets(doc.DescriptionText())
		if text == "" {
			continue
		}
		for _, tok := range a.tokenizer.Tokenize(text) {
			if tok == "" {
				continue
			}
			if _, seen := counts[tok]; !seen {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	table := make(Table, 0, len(order))
	for _, name := range order {
		table = append(table, Skill{Name: name, Occurrences: counts[name]})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Occurrences > table[j].Occurrences
	})
	return table
}
