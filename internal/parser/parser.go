// Package parser reads and rewrites the frontmatter of Markdown pages.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter keys understood by the vault source.
const (
	KeyTitle       = "title"
	KeyURL         = "url"
	KeyStatus      = "status"
	KeyPublishDate = "publish_date"
	KeyType        = "type"
)

// Meta is the typed frontmatter of a page.
type Meta struct {
	Title       string   `yaml:"title" toml:"title" json:"title"`
	URL         string   `yaml:"url" toml:"url" json:"url"`
	Status      string   `yaml:"status" toml:"status" json:"status"`
	PublishDate string   `yaml:"publish_date" toml:"publish_date" json:"publish_date"`
	Type        string   `yaml:"type" toml:"type" json:"type"`
	Tags        []string `yaml:"tags" toml:"tags" json:"tags"`
}

// Result holds the output of parsing a Markdown page.
type Result struct {
	Meta  Meta
	Body  []byte
	Tags  []string
	Title string
}

// Parse splits frontmatter (YAML, TOML or JSON) from the Markdown body.
// Content without frontmatter is all body.
func Parse(data []byte) (*Result, error) {
	var meta Meta
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}

	return &Result{
		Meta:  meta,
		Body:  body,
		Tags:  extractTags(string(body), meta.Tags),
		Title: deriveTitle(meta, string(body)),
	}, nil
}

// Field is one frontmatter key to set.
type Field struct {
	Key   string
	Value string
}

// ErrUnsupportedFrontmatter is returned by SetFields for frontmatter it
// cannot rewrite in place.
var ErrUnsupportedFrontmatter = errors.New("parser: unsupported frontmatter format")

const (
	yamlDelim = "---"
	tomlDelim = "+++"
)

// SetFields rewrites frontmatter in the format it was found in, updating or
// appending each field and leaving other keys, their order and the body
// untouched. YAML and TOML blocks are supported; JSON frontmatter yields
// ErrUnsupportedFrontmatter. Content without frontmatter gets a new YAML
// block.
func SetFields(data []byte, fields ...Field) ([]byte, error) {
	if hasDelimLine(data, "{") {
		return nil, ErrUnsupportedFrontmatter
	}
	if block, body, ok := splitFrontmatter(data, tomlDelim); ok {
		var buf bytes.Buffer
		buf.WriteString(tomlDelim + "\n")
		buf.Write(setTOMLFields(block, fields))
		buf.WriteString(tomlDelim + "\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	block, body, ok := splitFrontmatter(data, yamlDelim)

	var doc yaml.Node
	if ok && len(bytes.TrimSpace(block)) > 0 {
		if err := yaml.Unmarshal(block, &doc); err != nil {
			return nil, fmt.Errorf("parser: decode frontmatter: %w", err)
		}
	}
	if !ok {
		body = data
	}

	mapping := rootMapping(&doc)
	if mapping == nil {
		return nil, fmt.Errorf("parser: frontmatter is not a mapping")
	}
	for _, f := range fields {
		setScalar(mapping, f.Key, f.Value)
	}

	var buf bytes.Buffer
	buf.WriteString(yamlDelim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	buf.WriteString(yamlDelim + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// setTOMLFields sets top-level string keys line by line. Keys live before
// the first table header; new keys are inserted there.
func setTOMLFields(block []byte, fields []Field) []byte {
	var lines []string
	if trimmed := strings.Trim(string(block), "\r\n"); trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}
	end := len(lines)
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "[") {
			end = i
			break
		}
	}

	for _, f := range fields {
		line := f.Key + " = " + strconv.Quote(f.Value)
		found := false
		for i := 0; i < end; i++ {
			k, _, ok := strings.Cut(lines[i], "=")
			if ok && strings.TrimSpace(k) == f.Key {
				lines[i] = line
				found = true
				break
			}
		}
		if !found {
			lines = slices.Insert(lines, end, line)
			end++
		}
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func rootMapping(doc *yaml.Node) *yaml.Node {
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if doc.Kind != yaml.DocumentNode {
		return nil
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

func setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			v.Kind = yaml.ScalarNode
			v.Tag = ""
			v.Style = 0
			v.Value = value
			v.Content = nil
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value},
	)
}

// hasDelimLine reports whether data opens with delim on a line of its own.
func hasDelimLine(data []byte, delim string) bool {
	trimmed := bytes.TrimLeft(data, "\n\r")
	return bytes.HasPrefix(trimmed, []byte(delim+"\n")) || bytes.HasPrefix(trimmed, []byte(delim+"\r\n"))
}

// splitFrontmatter separates a leading delim-fenced block from the rest.
// The body starts after the closing delimiter line.
func splitFrontmatter(data []byte, delim string) (block, body []byte, ok bool) {
	if !hasDelimLine(data, delim) {
		return nil, data, false
	}
	trimmed := bytes.TrimLeft(data, "\n\r")

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, data, false
	}

	block = rest[:idx]
	after := rest[idx+1+len(delim):]
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = nil
	}
	return block, after, true
}

// extractTags merges frontmatter tags with inline #tags from the body.
func extractTags(body string, fmTags []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range fmTags {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(meta Meta, body string) string {
	if t := strings.TrimSpace(meta.Title); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
