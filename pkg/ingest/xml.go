package ingest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"

	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
)

// XML types for parsing bazel query --output=xml

type xmlQuery struct {
	XMLName     xml.Name        `xml:"query"`
	Rules       []xmlRule       `xml:"rule"`
	SourceFiles []xmlSourceFile `xml:"source-file"`
}

type xmlRule struct {
	Class    string       `xml:"class,attr"`
	Name     string       `xml:"name,attr"`
	Location string       `xml:"location,attr"`
	Lists    []xmlList    `xml:"list"`
	Attrs    []xmlAttrStr `xml:"string"`
}

type xmlList struct {
	Name   string          `xml:"name,attr"`
	Labels []xmlLabelValue `xml:"label"`
}

type xmlLabelValue struct {
	Value string `xml:"value,attr"`
}

type xmlAttrStr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlSourceFile struct {
	Name     string `xml:"name,attr"`
	Location string `xml:"location,attr"`
}

// Rule is a rule from the query output.
type Rule struct {
	Label         label.Label
	Kind          string
	Srcs          []label.Label
	Deps          []label.Label
	RuntimeDeps   []label.Label
	ResourceFiles []label.Label
	CustomPackage string
}

// Summary is the parsed content of one or more query outputs.
type Summary struct {
	Rules       map[label.Label]*Rule
	SourceFiles map[label.Label]graph.Location
	// Packages are the directories holding a BUILD file.
	Packages []string
}

func newSummary() *Summary {
	return &Summary{
		Rules:       make(map[label.Label]*Rule),
		SourceFiles: make(map[label.Label]graph.Location),
	}
}

// Merge adds everything in other to s. The first occurrence of a label wins,
// so overlapping query chunks are harmless.
func (s *Summary) Merge(other *Summary) {
	for l, r := range other.Rules {
		if _, ok := s.Rules[l]; !ok {
			s.Rules[l] = r
		}
	}
	for l, loc := range other.SourceFiles {
		if _, ok := s.SourceFiles[l]; !ok {
			s.SourceFiles[l] = loc
		}
	}
	s.Packages = append(s.Packages, other.Packages...)
}

// ParseQueryOutput parses the output of bazel query --output=xml run with
// --relative_locations=true.
func ParseQueryOutput(data []byte) (*Summary, error) {
	// Bazel 8+ outputs XML 1.1, but Go's encoding/xml only supports 1.0.
	// Strip the XML declaration; the actual content is 1.0-compatible.
	data = stripXMLDeclaration(data)

	var q xmlQuery
	if err := xml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parsing bazel XML output: %w", err)
	}

	s := newSummary()
	for _, sf := range q.SourceFiles {
		l, err := label.Parse(sf.Name)
		if err != nil {
			return nil, fmt.Errorf("source file: %w", err)
		}
		loc, err := graph.ParseLocation(sf.Location)
		if err != nil {
			return nil, fmt.Errorf("source file %s: %w", sf.Name, err)
		}
		s.SourceFiles[l] = loc
		if isBuildFile(l.Name) {
			s.Packages = append(s.Packages, l.Package)
		}
	}

	for _, xr := range q.Rules {
		r, err := convertRule(xr)
		if err != nil {
			return nil, err
		}
		if _, dup := s.Rules[r.Label]; !dup {
			s.Rules[r.Label] = r
		}
	}
	return s, nil
}

func convertRule(xr xmlRule) (*Rule, error) {
	l, err := label.Parse(xr.Name)
	if err != nil {
		return nil, fmt.Errorf("rule: %w", err)
	}
	r := &Rule{Label: l, Kind: xr.Class}
	for _, list := range xr.Lists {
		var dst *[]label.Label
		switch list.Name {
		case "srcs":
			dst = &r.Srcs
		case "deps":
			dst = &r.Deps
		case "runtime_deps":
			dst = &r.RuntimeDeps
		case "resource_files":
			dst = &r.ResourceFiles
		default:
			continue
		}
		for _, v := range list.Labels {
			dep, err := label.Parse(v.Value)
			if err != nil {
				return nil, fmt.Errorf("rule %s attribute %s: %w", l, list.Name, err)
			}
			*dst = append(*dst, dep)
		}
	}
	for _, attr := range xr.Attrs {
		if attr.Name == "custom_package" {
			r.CustomPackage = attr.Value
		}
	}
	return r, nil
}

// stripXMLDeclaration removes the <?xml ...?> declaration from the start of
// XML data. Bazel 8+ emits version="1.1" which Go's xml package rejects.
func stripXMLDeclaration(data []byte) []byte {
	start := bytes.Index(data, []byte("<?xml"))
	if start < 0 {
		return data
	}
	end := bytes.Index(data[start:], []byte("?>"))
	if end < 0 {
		return data
	}
	cutEnd := start + end + 2
	if cutEnd < len(data) && data[cutEnd] == '\n' {
		cutEnd++
	}
	out := make([]byte, 0, len(data)-(cutEnd-start))
	out = append(out, data[:start]...)
	return append(out, data[cutEnd:]...)
}

func isBuildFile(name string) bool {
	base := path.Base(name)
	return base == "BUILD" || base == "BUILD.bazel"
}
