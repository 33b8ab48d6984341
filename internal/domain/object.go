package domain

import "github.com/google/uuid"

// Template identity of the MISP "domain-ip" object.
const (
	DomainIPTemplateName    = "domain-ip"
	DomainIPTemplateUUID    = "43b3b146-77eb-4931-b4cc-b66c60f28734"
	DomainIPTemplateVersion = "9"
	DomainIPMetaCategory    = "network"
)

// DomainIP holds the values of a domain-ip object. FirstSeen and LastSeen
// are optional and only become sub-attributes when non-empty.
type DomainIP struct {
	Domain    string
	IP        string
	FirstSeen string
	LastSeen  string
}

// NewDomainIPObject builds a domain-ip object with a fresh UUID. The object
// always carries the "domain" and "ip" relations, in that order, followed by
// "first-seen" and "last-seen" when given.
func NewDomainIPObject(v DomainIP) Object {
	obj := Object{
		UUID:            uuid.NewString(),
		Name:            DomainIPTemplateName,
		MetaCategory:    DomainIPMetaCategory,
		Description:     "A domain and IP address seen as a tuple in a specific time frame.",
		TemplateUUID:    DomainIPTemplateUUID,
		TemplateVersion: DomainIPTemplateVersion,
		Attributes: []Attribute{
			objectAttribute("domain", "domain", v.Domain),
			objectAttribute("ip", "ip-dst", v.IP),
		},
	}
	if v.FirstSeen != "" {
		obj.Attributes = append(obj.Attributes, objectAttribute("first-seen", "datetime", v.FirstSeen))
	}
	if v.LastSeen != "" {
		obj.Attributes = append(obj.Attributes, objectAttribute("last-seen", "datetime", v.LastSeen))
	}
	return obj
}

func objectAttribute(relation, attrType, value string) Attribute {
	return Attribute{
		UUID:           uuid.NewString(),
		ObjectRelation: relation,
		Type:           attrType,
		Value:          value,
	}
}

// Relations lists the object_relation of every sub-attribute in order.
func (o Object) Relations() []string {
	out := make([]string, 0, len(o.Attributes))
	for _, a := range o.Attributes {
		out = append(out, a.ObjectRelation)
	}
	return out
}
