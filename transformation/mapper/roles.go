package mapper

import "github.com/CMSgov/xc-harvester/transformation/xc"

// roles maps the first three characters of a $4 relator code to an rdarole
// element name.
var roles = map[string]string{
	"aut": "author",
	"lbt": "author",
	"lyr": "author",
	"cmp": "composer",
	"com": "compiler",
	"art": "artist",
	"ths": "thesisAdvisor",
	"drt": "director",
	"edt": "editor",
	"ill": "illustrator",
	"prf": "performer",
	"act": "performer",
	"dnc": "performer",
	"nrt": "performer",
	"voc": "performer",
	"itr": "performer",
	"cnd": "performer",
	"mod": "performer",
	"pro": "producer",
	"trl": "translator",
}

// Roles that describe a realization of the work rather than the work itself.
var expressionRoles = map[string]bool{
	"director":    true,
	"editor":      true,
	"illustrator": true,
	"performer":   true,
	"producer":    true,
	"translator":  true,
}

func roleFor(code string) (string, bool) {
	if len(code) < 3 {
		return "", false
	}
	r, ok := roles[code[:3]]
	return r, ok
}

func roleLevel(role string) xc.Level {
	if expressionRoles[role] {
		return xc.Expression
	}
	return xc.Work
}
