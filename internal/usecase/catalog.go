package usecase

import (
	"context"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/i2y/misperer/internal/domain"
)

// toolFunc is the bound body of a tool: it decodes the validated arguments
// into the tool's own argument struct and runs the handler.
type toolFunc func(h *toolHandlers, ctx context.Context, arguments map[string]any) (domain.Result, error)

// declaration is the single source for one tool: its catalog entry and the
// handler the dispatcher routes to.
type declaration struct {
	tool     domain.Tool
	mutating bool
	run      toolFunc
}

type catalogEntry struct {
	declaration
	schema *gojsonschema.Schema
}

// CatalogOptions tunes which declarations become part of the catalog.
type CatalogOptions struct {
	// ReadOnly drops every mutating tool.
	ReadOnly bool
}

// Catalog is the immutable, ordered set of tools. It is built once at startup
// and shared by the listing and dispatch paths.
type Catalog struct {
	entries []catalogEntry
	byName  map[string]int
}

// NewCatalog builds the catalog from the tool declarations and compiles every
// argument schema. It fails only on a broken declaration (duplicate name or a
// schema that does not compile).
func NewCatalog(opts CatalogOptions) (*Catalog, error) {
	decls := toolDeclarations()
	c := &Catalog{
		entries: make([]catalogEntry, 0, len(decls)),
		byName:  make(map[string]int, len(decls)),
	}
	for _, d := range decls {
		if opts.ReadOnly && d.mutating {
			continue
		}
		if _, dup := c.byName[d.tool.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q in catalog", d.tool.Name)
		}
		schema, err := compileSchema(d.tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("compile input schema of %q: %w", d.tool.Name, err)
		}
		c.byName[d.tool.Name] = len(c.entries)
		c.entries = append(c.entries, catalogEntry{declaration: d, schema: schema})
	}
	return c, nil
}

// List returns the tools in declaration order. The returned slice is a copy.
func (c *Catalog) List() []domain.Tool {
	tools := make([]domain.Tool, len(c.entries))
	for i, e := range c.entries {
		tools[i] = e.tool
	}
	return tools
}

// Len reports the number of tools.
func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) entry(name string) (*catalogEntry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.entries[i], true
}

// --- schema helpers ---

type argument struct {
	name     string
	schema   domain.JSONSchemaProps
	required bool
}

func required(name string, schema domain.JSONSchemaProps) argument {
	return argument{name: name, schema: schema, required: true}
}

func optional(name string, schema domain.JSONSchemaProps) argument {
	return argument{name: name, schema: schema}
}

func objectSchema(args ...argument) domain.JSONSchemaProps {
	s := domain.JSONSchemaProps{
		Type:       "object",
		Properties: make(map[string]domain.JSONSchemaProps, len(args)),
	}
	for _, a := range args {
		s.Properties[a.name] = a.schema
		if a.required {
			s.Required = append(s.Required, a.name)
		}
	}
	return s
}

func stringProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "string", Description: desc}
}

// nonEmptyProp is a string that must carry at least one character. Required
// filters use it so an empty value cannot widen a search to every event.
func nonEmptyProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "string", MinLength: 1, Description: desc}
}

func dateProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "string", Format: "date", Description: desc}
}

func uuidProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "string", Format: "uuid", Description: desc}
}

func integerProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "integer", Description: desc}
}

func booleanProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{Type: "boolean", Description: desc}
}

func stringListProp(desc string) domain.JSONSchemaProps {
	return domain.JSONSchemaProps{
		Type:        "array",
		Items:       &domain.JSONSchemaProps{Type: "string", MinLength: 1},
		MinItems:    1,
		Description: desc,
	}
}

var (
	readHints        = domain.ToolHints{ReadOnly: true, Idempotent: true}
	writeHints       = domain.ToolHints{}
	destructiveHints = domain.ToolHints{Destructive: true, Idempotent: true}
)

func readTool(name, desc string, schema domain.JSONSchemaProps, run toolFunc) declaration {
	return declaration{
		tool: domain.Tool{Name: name, Description: desc, InputSchema: schema, Hints: readHints},
		run:  run,
	}
}

func writeTool(name, desc string, hints domain.ToolHints, schema domain.JSONSchemaProps, run toolFunc) declaration {
	return declaration{
		tool:     domain.Tool{Name: name, Description: desc, InputSchema: schema, Hints: hints},
		mutating: true,
		run:      run,
	}
}

// toolDeclarations lists every tool, read/search operations first.
func toolDeclarations() []declaration {
	return []declaration{
		readTool("search_from_date", "Search all published events from a specific date (YYYY-MM-DD). Returns event metadata only.",
			objectSchema(required("date", dateProp("Earliest event date"))),
			bind((*toolHandlers).searchFromDate)),
		readTool("search_from_range", "Search published events between two dates (YYYY-MM-DD, inclusive). Returns event metadata only.",
			objectSchema(required("start", dateProp("First day of the range")), required("end", dateProp("Last day of the range"))),
			bind((*toolHandlers).searchFromRange)),
		readTool("search_by_tags", "Search events by one or more tags. Returns event metadata only.",
			objectSchema(required("tags", stringListProp("Tag names, e.g. tlp:white"))),
			bind((*toolHandlers).searchByTags)),
		readTool("search_by_creator", "Search events by the creator organisation. Returns event metadata only.",
			objectSchema(required("creator", nonEmptyProp("Organisation name or id"))),
			bind((*toolHandlers).searchByCreator)),
		readTool("get_event_by_id", "Get a specific event by ID, including its attributes and objects.",
			objectSchema(required("id", integerProp("Numeric event id"))),
			bind((*toolHandlers).getEventByID)),
		readTool("get_event_by_uuid", "Get the metadata of a specific event by UUID.",
			objectSchema(required("uuid", uuidProp("Event UUID"))),
			bind((*toolHandlers).getEventByUUID)),
		readTool("list_organisations", "List all organisations.",
			objectSchema(),
			bind((*toolHandlers).listOrganisations)),
		readTool("search_by_galaxy", "Search events by galaxy tag (e.g. threat-actor=\"APT 29\"). Returns event metadata only.",
			objectSchema(required("galaxy", nonEmptyProp("Galaxy cluster tag or cluster value"))),
			bind((*toolHandlers).searchByGalaxy)),
		readTool("search_by_taxonomy", "Search events by taxonomy tag (e.g. tlp:amber). Returns event metadata only.",
			objectSchema(required("taxonomy", nonEmptyProp("Taxonomy tag"))),
			bind((*toolHandlers).searchByTaxonomy)),
		readTool("search_by_attribute", "Search attributes by attribute type and value.",
			objectSchema(required("type", nonEmptyProp("Attribute type, e.g. ip-dst")), required("value", nonEmptyProp("Attribute value"))),
			bind((*toolHandlers).searchByAttribute)),
		readTool("search_by_object", "Search events containing an object with the given name.",
			objectSchema(required("object", nonEmptyProp("Object name, e.g. domain-ip"))),
			bind((*toolHandlers).searchByObject)),
		readTool("search_by_value", "Search events containing an attribute with the given value.",
			objectSchema(required("value", nonEmptyProp("Attribute value, % acts as wildcard"))),
			bind((*toolHandlers).searchByValue)),
		readTool("complex_query", "Search events matching any of the given values (OR query). Returns event metadata only.",
			objectSchema(required("values", stringListProp("Values combined with OR"))),
			bind((*toolHandlers).complexQuery)),
		readTool("search_updated_since", "Search events updated since a timestamp (unix seconds or relative, e.g. 1d). Returns event metadata only.",
			objectSchema(required("timestamp", nonEmptyProp("Lower bound")), optional("until", stringProp("Upper bound"))),
			bind((*toolHandlers).searchUpdatedSince)),
		readTool("get_logs", "Fetch audit log entries.",
			objectSchema(
				optional("model", stringProp("Model name, e.g. Event")),
				optional("action", stringProp("Action, e.g. add")),
				optional("limit", integerProp("Maximum number of entries")),
				optional("page", integerProp("Page number, starting at 1")),
			),
			bind((*toolHandlers).getLogs)),
		readTool("list_users", "List all users.",
			objectSchema(),
			bind((*toolHandlers).listUsers)),

		writeTool("create_event", "Create a new event.", writeHints,
			objectSchema(
				required("info", nonEmptyProp("Event title")),
				optional("distribution", integerProp("0 org only, 1 community, 2 connected, 3 all")),
				optional("threat_level_id", integerProp("1 high, 2 medium, 3 low, 4 undefined")),
				optional("analysis", integerProp("0 initial, 1 ongoing, 2 completed")),
				optional("date", dateProp("Event date")),
			),
			bind((*toolHandlers).createEvent)),
		writeTool("add_attribute", "Add an attribute to an existing event.", writeHints,
			objectSchema(
				required("event_id", nonEmptyProp("Target event id or uuid")),
				required("type", nonEmptyProp("Attribute type, e.g. ip-dst")),
				required("value", nonEmptyProp("Attribute value")),
				optional("category", stringProp("Attribute category, e.g. Network activity")),
				optional("to_ids", booleanProp("Flag the attribute for IDS export")),
				optional("comment", stringProp("Free-text comment")),
			),
			bind((*toolHandlers).addAttribute)),
		writeTool("create_object", "Add a domain-ip object to an existing event.", writeHints,
			objectSchema(
				required("event_id", nonEmptyProp("Target event id or uuid")),
				required("domain", nonEmptyProp("Domain name")),
				required("ip", nonEmptyProp("IP address")),
				optional("first_seen", stringProp("First time the tuple was seen")),
				optional("last_seen", stringProp("Last time the tuple was seen")),
			),
			bind((*toolHandlers).createObject)),
		writeTool("publish_event", "Publish an event.", domain.ToolHints{Idempotent: true},
			objectSchema(required("event_id", nonEmptyProp("Event id or uuid"))),
			bind((*toolHandlers).publishEvent)),
		writeTool("delete_attribute", "Soft-delete an attribute of an event.", destructiveHints,
			objectSchema(required("event_id", nonEmptyProp("Event id or uuid")), required("attribute_id", nonEmptyProp("Attribute id or uuid"))),
			bind((*toolHandlers).deleteAttribute)),
		writeTool("delete_object", "Delete an object.", destructiveHints,
			objectSchema(required("object_id", nonEmptyProp("Object id"))),
			bind((*toolHandlers).deleteObject)),
		writeTool("delete_event", "Delete an event.", destructiveHints,
			objectSchema(required("event_id", nonEmptyProp("Event id or uuid"))),
			bind((*toolHandlers).deleteEvent)),
		writeTool("delete_tag", "Delete a tag.", destructiveHints,
			objectSchema(required("tag_id", nonEmptyProp("Tag id"))),
			bind((*toolHandlers).deleteTag)),
		writeTool("add_user", "Create a user.", writeHints,
			objectSchema(
				required("email", nonEmptyProp("Login e-mail address")),
				required("org_id", nonEmptyProp("Organisation id")),
				optional("role_id", stringProp("Role id")),
			),
			bind((*toolHandlers).addUser)),
		writeTool("delete_user", "Delete a user.", destructiveHints,
			objectSchema(required("user_id", nonEmptyProp("User id"))),
			bind((*toolHandlers).deleteUser)),
		writeTool("edit_user", "Edit a user. Only the given fields change.", writeHints,
			objectSchema(
				required("user_id", nonEmptyProp("User id")),
				optional("email", stringProp("New e-mail address")),
				optional("org_id", stringProp("New organisation id")),
				optional("role_id", stringProp("New role id")),
				optional("disabled", booleanProp("Disable or enable the account")),
			),
			bind((*toolHandlers).editUser)),
	}
}
