// Package reaction holds the reconciled document model shared by the Rhea
// and ExPASy passes: resolutions, constituents, parsed equations and the two
// record types that are persisted by key.
package reaction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// TimestampLayout is the capture-time format stored on every document.
const TimestampLayout = "2006-01-02 15:04:05"

// NoName is stored for a ChEBI identifier that the name table does not know.
const NoName = "none"

// ─────────────────────────────────────────────────────────────────────────────
// Resolution
// ─────────────────────────────────────────────────────────────────────────────

// Resolution is the result of any lookup that may legitimately miss. The zero
// value is NotFound.
type Resolution struct {
	value string
	found bool
}

func Found(value string) Resolution { return Resolution{value: value, found: true} }

func NotFound() Resolution { return Resolution{} }

func (r Resolution) IsFound() bool { return r.found }

// Get returns the value and whether it was found.
func (r Resolution) Get() (string, bool) { return r.value, r.found }

// OrElse returns the value, or def when not found.
func (r Resolution) OrElse(def string) string {
	if !r.found {
		return def
	}
	return r.value
}

func (r Resolution) String() string {
	if !r.found {
		return "<unresolved>"
	}
	return r.value
}

// MarshalJSON encodes NotFound as null.
func (r Resolution) MarshalJSON() ([]byte, error) {
	if !r.found {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = NotFound()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Found(s)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Constituents and equations
// ─────────────────────────────────────────────────────────────────────────────

// Constituent is one participant as written in the source plus its ChEBI id.
type Constituent struct {
	Name  string     `json:"name"`
	ChEBI Resolution `json:"chebi"`
}

// ReactionEquation is one equation split into ordered sides. Duplicates are
// kept as separate entries.
type ReactionEquation struct {
	Text  string
	Left  []string
	Right []string
}

// Join reassembles the equation in canonical spacing.
func (e ReactionEquation) Join() string {
	return strings.Join(e.Left, " + ") + " = " + strings.Join(e.Right, " + ")
}

// ResolvedReaction is an equation whose constituents went through the resolver.
type ResolvedReaction struct {
	// Ordinal is the 1-based position of the equation in the enzyme's CA field.
	Ordinal int
	Text    string
	Left    []Constituent
	Right   []Constituent
}

// Key is the per-record reaction key, rxn_<ordinal>.
func (r ResolvedReaction) Key() string {
	return "rxn_" + strconv.Itoa(r.Ordinal)
}

// Unresolved counts constituents on both sides without a ChEBI id.
func (r ResolvedReaction) Unresolved() int {
	n := 0
	for _, c := range r.Left {
		if !c.ChEBI.IsFound() {
			n++
		}
	}
	for _, c := range r.Right {
		if !c.ChEBI.IsFound() {
			n++
		}
	}
	return n
}

// nameMap collapses a side to name → id. A repeated name keeps its first
// resolution; the ordered list in "constituents" keeps every occurrence.
func nameMap(cs []Constituent) map[string]Resolution {
	m := make(map[string]Resolution, len(cs))
	for _, c := range cs {
		if _, dup := m[c.Name]; !dup {
			m[c.Name] = c.ChEBI
		}
	}
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// RheaReactionRecord
// ─────────────────────────────────────────────────────────────────────────────

// RheaReactionRecord is one Rhea reaction with the ChEBI ids it references.
type RheaReactionRecord struct {
	RheaID string
	// ChEBI maps "CHEBI:<n>" to the canonical name or NoName.
	ChEBI     map[string]string
	ECNumber  Resolution
	Timestamp time.Time
}

type rheaDocument struct {
	ID        string            `json:"_id"`
	ChEBI     map[string]string `json:"chebi_id"`
	ECNumber  string            `json:"ecnumber,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Key returns the document key.
func (r *RheaReactionRecord) Key() string { return r.RheaID }

// Validate rejects records that must not be persisted.
func (r *RheaReactionRecord) Validate() error {
	if err := ValidateRheaID(r.RheaID); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return errors.New(errors.ErrCodeRecordIncomplete, "rhea record has no timestamp").WithDetail(r.RheaID)
	}
	return nil
}

// ChEBIIDs returns the referenced identifiers in sorted order.
func (r *RheaReactionRecord) ChEBIIDs() []string {
	ids := make([]string, 0, len(r.ChEBI))
	for id := range r.ChEBI {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarshalJSON omits ecnumber entirely when no mapping exists.
func (r RheaReactionRecord) MarshalJSON() ([]byte, error) {
	chebi := r.ChEBI
	if chebi == nil {
		chebi = map[string]string{}
	}
	return json.Marshal(rheaDocument{
		ID:        r.RheaID,
		ChEBI:     chebi,
		ECNumber:  r.ECNumber.OrElse(""),
		Timestamp: r.Timestamp.Format(TimestampLayout),
	})
}

func (r *RheaReactionRecord) UnmarshalJSON(data []byte) error {
	var doc rheaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	ts, err := parseTimestamp(doc.Timestamp)
	if err != nil {
		return err
	}
	r.RheaID = doc.ID
	r.ChEBI = doc.ChEBI
	r.ECNumber = NotFound()
	if doc.ECNumber != "" {
		r.ECNumber = Found(doc.ECNumber)
	}
	r.Timestamp = ts
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ExpasyEnzymeRecord
// ─────────────────────────────────────────────────────────────────────────────

// ExpasyEnzymeRecord is one ENZYME entry with its resolved reactions in
// source order.
type ExpasyEnzymeRecord struct {
	ECNumber    string
	Description string
	Reactions   []ResolvedReaction
	Timestamp   time.Time
}

type sideLists struct {
	Left  []Constituent `json:"left"`
	Right []Constituent `json:"right"`
}

type reactionDocument struct {
	Reaction     string                `json:"reaction"`
	Left         map[string]Resolution `json:"left"`
	Right        map[string]Resolution `json:"right"`
	Constituents sideLists             `json:"constituents"`
}

type enzymeDocument struct {
	ID          string          `json:"_id"`
	Description string          `json:"description"`
	Reactions   json.RawMessage `json:"reaction(s)"`
	Timestamp   string          `json:"timestamp"`
}

// Key returns the document key.
func (r *ExpasyEnzymeRecord) Key() string { return r.ECNumber }

func (r *ExpasyEnzymeRecord) Validate() error {
	if err := ValidateECNumber(r.ECNumber); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return errors.New(errors.ErrCodeRecordIncomplete, "enzyme record has no timestamp").WithDetail(r.ECNumber)
	}
	seen := make(map[int]bool, len(r.Reactions))
	for _, rx := range r.Reactions {
		if rx.Ordinal < 1 || seen[rx.Ordinal] {
			return errors.Newf(errors.ErrCodeRecordIncomplete, "reaction ordinal %d is invalid or repeated", rx.Ordinal).
				WithDetail(r.ECNumber)
		}
		seen[rx.Ordinal] = true
	}
	return nil
}

// Reaction returns the reaction stored under key (rxn_<n>).
func (r *ExpasyEnzymeRecord) Reaction(key string) (ResolvedReaction, bool) {
	for _, rx := range r.Reactions {
		if rx.Key() == key {
			return rx, true
		}
	}
	return ResolvedReaction{}, false
}

// MarshalJSON writes "reaction(s)" with keys in ordinal order so rxn_10
// follows rxn_9.
func (r ExpasyEnzymeRecord) MarshalJSON() ([]byte, error) {
	reactions := make([]ResolvedReaction, len(r.Reactions))
	copy(reactions, r.Reactions)
	sort.SliceStable(reactions, func(i, j int) bool { return reactions[i].Ordinal < reactions[j].Ordinal })

	var buf strings.Builder
	buf.WriteByte('{')
	for i, rx := range reactions {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(rx.Key())
		body, err := json.Marshal(reactionDocument{
			Reaction:     rx.Text,
			Left:         nameMap(rx.Left),
			Right:        nameMap(rx.Right),
			Constituents: sideLists{Left: nonNil(rx.Left), Right: nonNil(rx.Right)},
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')

	return json.Marshal(enzymeDocument{
		ID:          r.ECNumber,
		Description: r.Description,
		Reactions:   json.RawMessage(buf.String()),
		Timestamp:   r.Timestamp.Format(TimestampLayout),
	})
}

func (r *ExpasyEnzymeRecord) UnmarshalJSON(data []byte) error {
	var doc enzymeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	ts, err := parseTimestamp(doc.Timestamp)
	if err != nil {
		return err
	}
	var raw map[string]reactionDocument
	if len(doc.Reactions) > 0 {
		if err := json.Unmarshal(doc.Reactions, &raw); err != nil {
			return err
		}
	}
	reactions := make([]ResolvedReaction, 0, len(raw))
	for key, rd := range raw {
		ordinal, err := strconv.Atoi(strings.TrimPrefix(key, "rxn_"))
		if err != nil || !strings.HasPrefix(key, "rxn_") {
			return fmt.Errorf("reaction: unexpected reaction key %q", key)
		}
		reactions = append(reactions, ResolvedReaction{
			Ordinal: ordinal,
			Text:    rd.Reaction,
			Left:    rd.Constituents.Left,
			Right:   rd.Constituents.Right,
		})
	}
	sort.Slice(reactions, func(i, j int) bool { return reactions[i].Ordinal < reactions[j].Ordinal })

	r.ECNumber = doc.ID
	r.Description = doc.Description
	r.Reactions = reactions
	r.Timestamp = ts
	return nil
}

func nonNil(cs []Constituent) []Constituent {
	if cs == nil {
		return []Constituent{}
	}
	return cs
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("reaction: bad timestamp %q: %w", s, err)
	}
	return ts, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Key validation
// ─────────────────────────────────────────────────────────────────────────────

var (
	ecNumberPattern = regexp.MustCompile(`^\d+\.(?:\d+|-)\.(?:\d+|-)\.(?:n?\d+|-)$`)
	rheaIDPattern   = regexp.MustCompile(`^\d+$`)
)

// ValidateECNumber accepts n.n.n.n including ExPASy's preliminary "n" serials.
func ValidateECNumber(ec string) error {
	if !ecNumberPattern.MatchString(ec) {
		return errors.Newf(errors.ErrCodeInvalidECNumber, "invalid EC number %q", ec)
	}
	return nil
}

func ValidateRheaID(id string) error {
	if !rheaIDPattern.MatchString(id) {
		return errors.Newf(errors.ErrCodeInvalidRheaID, "invalid Rhea id %q", id)
	}
	return nil
}
