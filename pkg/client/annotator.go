package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// PrefLabelProperty is the property key holding a class's preferred label
// when the request asks for include=properties.
const PrefLabelProperty = "http://data.bioontology.org/metadata/def/prefLabel"

// AnnotateParams are the query options sent with every annotation request.
type AnnotateParams struct {
	Ontologies      string
	LongestOnly     bool
	IncludeProps    bool
	ExcludeNumbers  bool
	ExcludeSynonyms bool
}

// DefaultAnnotateParams is the ChEBI lookup configuration: longest match
// only, properties included, numbers and synonyms not excluded.
func DefaultAnnotateParams() AnnotateParams {
	return AnnotateParams{
		Ontologies:   "CHEBI",
		LongestOnly:  true,
		IncludeProps: true,
	}
}

func (p AnnotateParams) values(text string) url.Values {
	v := url.Values{}
	v.Set("text", text)
	if p.Ontologies != "" {
		v.Set("ontologies", p.Ontologies)
	}
	v.Set("longest_only", strconv.FormatBool(p.LongestOnly))
	if p.IncludeProps {
		v.Set("include", "properties")
	}
	v.Set("exclude_numbers", strconv.FormatBool(p.ExcludeNumbers))
	v.Set("exclude_synonyms", strconv.FormatBool(p.ExcludeSynonyms))
	return v
}

// Annotation is one annotated class returned for the submitted text.
type Annotation struct {
	AnnotatedClass AnnotatedClass `json:"annotatedClass"`
	Annotations    []TextMatch    `json:"annotations"`
}

// AnnotatedClass is the ontology class an annotation points at.
type AnnotatedClass struct {
	ID         string                     `json:"@id"`
	PrefLabel  string                     `json:"prefLabel,omitempty"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
}

// TextMatch is the span of input text that matched the class.
type TextMatch struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	MatchType string `json:"matchType"`
	Text      string `json:"text"`
}

// Label returns the first preferred label, read from properties and then
// from the top-level prefLabel field.
func (a Annotation) Label() (string, bool) {
	if raw, ok := a.AnnotatedClass.Properties[PrefLabelProperty]; ok {
		var labels []string
		if err := json.Unmarshal(raw, &labels); err == nil && len(labels) > 0 {
			return labels[0], true
		}
		var label string
		if err := json.Unmarshal(raw, &label); err == nil && label != "" {
			return label, true
		}
	}
	if a.AnnotatedClass.PrefLabel != "" {
		return a.AnnotatedClass.PrefLabel, true
	}
	return "", false
}

// MatchedText returns the text of the first match.
func (a Annotation) MatchedText() (string, bool) {
	if len(a.Annotations) == 0 {
		return "", false
	}
	return a.Annotations[0].Text, true
}

// LocalID returns the trailing identifier of the class IRI:
// http://purl.obolibrary.org/obo/CHEBI_15377 → 15377.
func (a Annotation) LocalID() string {
	id := a.AnnotatedClass.ID
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.LastIndex(id, "_"); i >= 0 {
		id = id[i+1:]
	}
	return id
}

// Annotate submits text and returns the annotations in response order.
func (c *Client) Annotate(ctx context.Context, text string, params AnnotateParams) ([]Annotation, error) {
	var out []Annotation
	if err := c.get(ctx, params.values(text), &out); err != nil {
		return nil, err
	}
	return out, nil
}
