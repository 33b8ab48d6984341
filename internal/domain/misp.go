package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier or numeric-ish field as the platform serializes it.
// MISP emits most of these as JSON strings ("12") but some versions and
// endpoints use bare numbers; both decode into the same value.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// EventEnvelope is the wrapper the platform puts around a single event.
type EventEnvelope struct {
	Event Event `json:"Event"`
}

// Event is the in-memory representation of a MISP event, restricted to the
// fields handlers read or change. Every other member the platform sends is
// kept in Extra and written back unchanged.
type Event struct {
	ID               ID          `json:"id,omitempty"`
	UUID             string      `json:"uuid,omitempty"`
	Info             string      `json:"info"`
	Date             string      `json:"date,omitempty"`
	Published        bool        `json:"published"`
	Analysis         ID          `json:"analysis,omitempty"`
	ThreatLevelID    ID          `json:"threat_level_id,omitempty"`
	Distribution     ID          `json:"distribution,omitempty"`
	OrgID            ID          `json:"org_id,omitempty"`
	OrgcID           ID          `json:"orgc_id,omitempty"`
	Timestamp        ID          `json:"timestamp,omitempty"`
	PublishTimestamp ID          `json:"publish_timestamp,omitempty"`
	Attributes       []Attribute `json:"Attribute,omitempty"`
	Objects          []Object    `json:"Object,omitempty"`
	Tags             []Tag       `json:"Tag,omitempty"`
	Extra            Extra       `json:"-"`
}

// Attribute is a single indicator inside an event or object.
type Attribute struct {
	ID             ID     `json:"id,omitempty"`
	UUID           string `json:"uuid,omitempty"`
	EventID        ID     `json:"event_id,omitempty"`
	ObjectID       ID     `json:"object_id,omitempty"`
	ObjectRelation string `json:"object_relation,omitempty"`
	Category       string `json:"category,omitempty"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	ToIDs          bool   `json:"to_ids"`
	Comment        string `json:"comment,omitempty"`
	Distribution   ID     `json:"distribution,omitempty"`
	Deleted        bool   `json:"deleted"`
	Timestamp      ID     `json:"timestamp,omitempty"`
	Extra          Extra  `json:"-"`
}

// Object groups attributes according to an object template.
type Object struct {
	ID              ID          `json:"id,omitempty"`
	UUID            string      `json:"uuid,omitempty"`
	Name            string      `json:"name"`
	MetaCategory    string      `json:"meta-category,omitempty"`
	Description     string      `json:"description,omitempty"`
	TemplateUUID    string      `json:"template_uuid,omitempty"`
	TemplateVersion ID          `json:"template_version,omitempty"`
	EventID         ID          `json:"event_id,omitempty"`
	Distribution    ID          `json:"distribution,omitempty"`
	Comment         string      `json:"comment,omitempty"`
	Deleted         bool        `json:"deleted"`
	Attributes      []Attribute `json:"Attribute,omitempty"`
	Extra           Extra       `json:"-"`
}

// Tag is a label attached to an event or attribute.
type Tag struct {
	ID     ID     `json:"id,omitempty"`
	Name   string `json:"name"`
	Colour string `json:"colour,omitempty"`
	Extra  Extra  `json:"-"`
}

// Encoding with undeclared members preserved. The *Fields types share the
// layout of the model types without their methods.
type (
	eventFields     Event
	attributeFields Attribute
	objectFields    Object
	tagFields       Tag
)

func (e *Event) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*eventFields)(e)); err != nil {
		return err
	}
	e.Extra = collectExtra(data, eventFields{})
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(eventFields(e), e.Extra)
}

func (a *Attribute) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*attributeFields)(a)); err != nil {
		return err
	}
	a.Extra = collectExtra(data, attributeFields{})
	return nil
}

func (a Attribute) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(attributeFields(a), a.Extra)
}

func (o *Object) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*objectFields)(o)); err != nil {
		return err
	}
	o.Extra = collectExtra(data, objectFields{})
	return nil
}

func (o Object) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(objectFields(o), o.Extra)
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*tagFields)(t)); err != nil {
		return err
	}
	t.Extra = collectExtra(data, tagFields{})
	return nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(tagFields(t), t.Extra)
}

// FindAttribute returns the attribute whose id or uuid equals ref, searching
// the event's own attributes first and then those of its objects.
func (e *Event) FindAttribute(ref string) (*Attribute, bool) {
	for i := range e.Attributes {
		if e.Attributes[i].matches(ref) {
			return &e.Attributes[i], true
		}
	}
	for i := range e.Objects {
		for j := range e.Objects[i].Attributes {
			if e.Objects[i].Attributes[j].matches(ref) {
				return &e.Objects[i].Attributes[j], true
			}
		}
	}
	return nil, false
}

func (a *Attribute) matches(ref string) bool {
	if ref == "" {
		return false
	}
	return string(a.ID) == ref || a.UUID == ref
}

// User is a platform account. Pointer fields are only sent when set, so the
// same type serves creation and partial edits.
type User struct {
	ID       ID     `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	OrgID    ID     `json:"org_id,omitempty"`
	RoleID   ID     `json:"role_id,omitempty"`
	Disabled *bool  `json:"disabled,omitempty"`
}

// SearchQuery is the filter set of one restSearch call. Controller selects
// the searched collection ("events" or "attributes") and is not sent in the body.
type SearchQuery struct {
	Controller    string   `json:"-"`
	ReturnFormat  string   `json:"returnFormat,omitempty"`
	Published     *bool    `json:"published,omitempty"`
	DateFrom      string   `json:"date_from,omitempty"`
	DateTo        string   `json:"date_to,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Org           string   `json:"org,omitempty"`
	TypeAttribute string   `json:"type,omitempty"`
	Value         any      `json:"value,omitempty"`
	ObjectName    string   `json:"object_name,omitempty"`
	Timestamp     any      `json:"timestamp,omitempty"`
	Metadata      bool     `json:"metadata,omitempty"`
}

// Search controllers.
const (
	ControllerEvents     = "events"
	ControllerAttributes = "attributes"
)

// ComplexQuery is the boolean filter form accepted in place of a plain value.
type ComplexQuery struct {
	Or  []string `json:"OR,omitempty"`
	And []string `json:"AND,omitempty"`
	Not []string `json:"NOT,omitempty"`
}

// LogQuery filters the audit log listing.
type LogQuery struct {
	Model  string `json:"model,omitempty"`
	Action string `json:"action,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Page   int    `json:"page,omitempty"`
}
