package xc

// Namespace is an XML namespace with the prefix used when serializing.
type Namespace struct {
	Prefix string
	URI    string
}

var (
	NoNamespace = Namespace{}

	XSI     = Namespace{"xsi", "http://www.w3.org/2001/XMLSchema-instance"}
	XC      = Namespace{"xc", "http://www.extensiblecatalog.info/Elements"}
	RDVocab = Namespace{"rdvocab", "http://rdvocab.info/Elements"}
	DCTerms = Namespace{"dcterms", "http://purl.org/dc/terms/"}
	RDARole = Namespace{"rdarole", "http://rdvocab.info/roles"}
)

// Namespaces lists every namespace declared on a serialized record, in
// declaration order.
var Namespaces = []Namespace{XSI, XC, RDVocab, DCTerms, RDARole}

func (n Namespace) qualify(local string) string {
	if n.Prefix == "" {
		return local
	}
	return n.Prefix + ":" + local
}

// Level is a FRBR level of the XC schema.
type Level int

const (
	Work Level = iota
	Expression
	Manifestation
	Item
	Holdings
)

func (l Level) String() string {
	switch l {
	case Work:
		return "work"
	case Expression:
		return "expression"
	case Manifestation:
		return "manifestation"
	case Item:
		return "item"
	case Holdings:
		return "holdings"
	}
	return "unknown"
}
