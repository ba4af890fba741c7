// Package xc holds the FRBR-leveled accumulator written by the MARC to XC
// transformation and its XML serialization.
package xc

import "strconv"

// LinkedWork is an additional work and expression pair introduced by a linking
// field (700/710/711/730 with second indicator 2).
type LinkedWork struct {
	LinkingTag string
	Work       []Element
	Expression []Element
}

// AggregateXCRecord accumulates the XC elements produced for one MARC record.
// It holds exactly one work, expression, manifestation and item entity, zero or
// more holdings entities, and any linked works keyed by linking tag.
//
// AddElement is idempotent: a (name, level, value, attributes) tuple is stored
// at most once.
type AggregateXCRecord struct {
	entities map[Level][]Element

	holdings    []Element
	holdingKeys map[string]struct{}

	linked      map[string]*LinkedWork
	linkedOrder []string
	linkedAdded map[string]struct{}

	added map[string]struct{}

	// HasBibInfo is set once any work, expression or manifestation element is
	// added.
	HasBibInfo bool

	// IDs assigned to the serialized entities, see AssignIDs.
	ids ids
}

type ids struct {
	work, expression, manifestation, item string
	holdings                              []string
	linkedWork, linkedExpression          map[string]string
}

func New() *AggregateXCRecord {
	return &AggregateXCRecord{
		entities:    make(map[Level][]Element),
		holdingKeys: make(map[string]struct{}),
		linked:      make(map[string]*LinkedWork),
		linkedAdded: make(map[string]struct{}),
		added:       make(map[string]struct{}),
	}
}

func dedupKey(level Level, e Element) string {
	return strconv.Itoa(int(level)) + "#" + e.key()
}

// AddElement adds a leaf element at level. It returns false when an identical
// element was already added at that level, or when value is empty.
func (r *AggregateXCRecord) AddElement(ns Namespace, name, value string, level Level, attrs ...Attribute) bool {
	if value == "" {
		return false
	}
	return r.Add(level, NewElement(ns, name, value, attrs...))
}

// Add adds a prebuilt element at level with the same dedup contract as
// AddElement.
func (r *AggregateXCRecord) Add(level Level, e Element) bool {
	k := dedupKey(level, e)
	if _, ok := r.added[k]; ok {
		return false
	}
	r.added[k] = struct{}{}
	r.entities[level] = append(r.entities[level], e.Clone())

	if level == Work || level == Expression || level == Manifestation {
		r.HasBibInfo = true
	}
	return true
}

// AddHoldingsElement adds a separate holdings entity holding children. Empty or
// duplicate holdings are ignored.
func (r *AggregateXCRecord) AddHoldingsElement(children []Element) bool {
	if len(children) == 0 {
		return false
	}
	h := Element{Namespace: XC, Name: "entity", Children: make([]Element, len(children))}
	for i, c := range children {
		h.Children[i] = c.Clone()
	}
	k := h.key()
	if _, ok := r.holdingKeys[k]; ok {
		return false
	}
	r.holdingKeys[k] = struct{}{}
	r.holdings = append(r.holdings, h)
	return true
}

func (r *AggregateXCRecord) linkedWork(tag string) *LinkedWork {
	lw, ok := r.linked[tag]
	if !ok {
		lw = &LinkedWork{LinkingTag: tag}
		r.linked[tag] = lw
		r.linkedOrder = append(r.linkedOrder, tag)
	}
	return lw
}

// addLinked appends e to the linked work's elements at level unless an
// identical element is already there.
func (r *AggregateXCRecord) addLinked(lw *LinkedWork, level Level, e Element) bool {
	k := strconv.Itoa(len(lw.LinkingTag)) + ":" + lw.LinkingTag + dedupKey(level, e)
	if _, ok := r.linkedAdded[k]; ok {
		return false
	}
	r.linkedAdded[k] = struct{}{}
	if level == Expression {
		lw.Expression = append(lw.Expression, e.Clone())
	} else {
		lw.Work = append(lw.Work, e.Clone())
	}
	return true
}

// AddElementBasedOnLinkingField adds e to the work identified by linkingTag,
// creating that work when needed. It returns false when the work already holds
// an identical element.
func (r *AggregateXCRecord) AddElementBasedOnLinkingField(linkingTag string, e Element) bool {
	lw := r.linkedWork(linkingTag)
	r.HasBibInfo = true
	return r.addLinked(lw, Work, e)
}

// AddLinkedWorkAndExpression records an additional work and expression pair
// under linkingTag. Elements already present on that linked work are merged in
// and repeats are dropped.
func (r *AggregateXCRecord) AddLinkedWorkAndExpression(linkingTag string, work, expression []Element) {
	lw := r.linkedWork(linkingTag)
	for _, e := range work {
		r.addLinked(lw, Work, e)
	}
	for _, e := range expression {
		r.addLinked(lw, Expression, e)
	}
	r.HasBibInfo = true
}

// Elements returns a copy of the elements stored at level. For Holdings this is
// the content added through AddElement, not the entities from
// AddHoldingsElement.
func (r *AggregateXCRecord) Elements(level Level) []Element {
	src := r.entities[level]
	out := make([]Element, len(src))
	for i, e := range src {
		out[i] = e.Clone()
	}
	return out
}

// Find returns the elements named name at level.
func (r *AggregateXCRecord) Find(level Level, name string) []Element {
	var out []Element
	for _, e := range r.entities[level] {
		if e.Name == name {
			out = append(out, e.Clone())
		}
	}
	return out
}

// HoldingsElements returns a copy of the holdings entities' children.
func (r *AggregateXCRecord) HoldingsElements() [][]Element {
	out := make([][]Element, len(r.holdings))
	for i, h := range r.holdings {
		out[i] = h.Clone().Children
	}
	return out
}

// LinkedWorks returns copies of the linked works in the order their linking
// tags were first seen.
func (r *AggregateXCRecord) LinkedWorks() []LinkedWork {
	out := make([]LinkedWork, 0, len(r.linkedOrder))
	for _, tag := range r.linkedOrder {
		lw := r.linked[tag]
		cp := LinkedWork{LinkingTag: tag}
		for _, e := range lw.Work {
			cp.Work = append(cp.Work, e.Clone())
		}
		for _, e := range lw.Expression {
			cp.Expression = append(cp.Expression, e.Clone())
		}
		out = append(out, cp)
	}
	return out
}

// Len returns the number of distinct elements added through AddElement/Add.
func (r *AggregateXCRecord) Len() int {
	return len(r.added)
}

// AssignIDs gives every entity that will be serialized an identifier taken from
// next. Serialization then emits id attributes and the work/expression/
// manifestation back-links.
func (r *AggregateXCRecord) AssignIDs(next func() string) {
	r.ids = ids{
		linkedWork:       make(map[string]string),
		linkedExpression: make(map[string]string),
	}
	if r.HasBibInfo {
		r.ids.work = next()
		r.ids.expression = next()
		r.ids.manifestation = next()
	}
	if len(r.entities[Item]) > 0 {
		r.ids.item = next()
	}
	for _, tag := range r.linkedOrder {
		r.ids.linkedWork[tag] = next()
		r.ids.linkedExpression[tag] = next()
	}
	if len(r.entities[Holdings]) > 0 {
		r.ids.holdings = append(r.ids.holdings, next())
	}
	for range r.holdings {
		r.ids.holdings = append(r.ids.holdings, next())
	}
}

// ManifestationID returns the identifier assigned to the manifestation entity.
func (r *AggregateXCRecord) ManifestationID() string {
	return r.ids.manifestation
}

// HoldingsIDs returns the identifiers assigned to the holdings entities.
func (r *AggregateXCRecord) HoldingsIDs() []string {
	return append([]string(nil), r.ids.holdings...)
}
