package principal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// policyDocument is the slice of an IAM policy needed here. Statement
// and Principal both come in single-value and list shapes; the custom
// unmarshallers below absorb that.
type policyDocument struct {
	Statement statementList `json:"Statement"`
}

type statement struct {
	Effect    string         `json:"Effect"`
	Principal principalEntry `json:"Principal"`
}

type statementList []statement

func (s *statementList) UnmarshalJSON(data []byte) error {
	var many []statement
	if err := json.Unmarshal(data, &many); err == nil {
		*s = many
		return nil
	}
	var one statement
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = statementList{one}
	return nil
}

// principalEntry holds either the literal "*" or a map of principal
// type to one or more values.
type principalEntry struct {
	wildcard bool
	types    []string
	values   map[string][]string
}

func (p *principalEntry) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		if literal != "*" {
			return fmt.Errorf("unexpected principal literal %q", literal)
		}
		p.wildcard = true
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("principal element is neither %q nor an object", "*")
	}

	p.values = make(map[string][]string, len(raw))
	for typ, val := range raw {
		var one string
		if err := json.Unmarshal(val, &one); err == nil {
			p.types = append(p.types, typ)
			p.values[typ] = []string{one}
			continue
		}
		var many []string
		if err := json.Unmarshal(val, &many); err != nil {
			return fmt.Errorf("principal %s values: %w", typ, err)
		}
		p.types = append(p.types, typ)
		p.values[typ] = many
	}
	// JSON object order is not observable through a map; sort so
	// extraction is deterministic.
	sort.Strings(p.types)
	return nil
}

// ExtractPrincipals pulls every principal reference out of a policy
// document and classifies it. Duplicates across statements collapse to
// one entry; first-seen order is preserved. Documents arriving
// URL-encoded, the way IAM returns trust policies, are decoded first.
func ExtractPrincipals(document string) ([]Principal, error) {
	doc := strings.TrimSpace(document)
	if doc != "" && !strings.HasPrefix(doc, "{") {
		decoded, err := url.QueryUnescape(doc)
		if err != nil {
			return nil, fmt.Errorf("decoding policy document: %w", err)
		}
		doc = decoded
	}

	var parsed policyDocument
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}

	var (
		out  []Principal
		seen = make(map[string]bool)
	)
	add := func(p Principal) {
		key := string(p.Kind) + "|" + p.Raw
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, stmt := range parsed.Statement {
		if stmt.Principal.wildcard {
			add(Classify("AWS", "*"))
			continue
		}
		for _, typ := range stmt.Principal.types {
			for _, value := range stmt.Principal.values[typ] {
				add(Classify(typ, value))
			}
		}
	}
	return out, nil
}
