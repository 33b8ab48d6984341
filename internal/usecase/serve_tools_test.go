package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/misperer/internal/domain"
	"github.com/i2y/misperer/internal/usecase"
)

var readToolNames = []string{
	"search_from_date", "search_from_range", "search_by_tags", "search_by_creator",
	"get_event_by_id", "get_event_by_uuid", "list_organisations", "search_by_galaxy",
	"search_by_taxonomy", "search_by_attribute", "search_by_object", "search_by_value",
	"complex_query", "search_updated_since", "get_logs", "list_users",
}

var writeToolNames = []string{
	"create_event", "add_attribute", "create_object", "publish_event",
	"delete_attribute", "delete_object", "delete_event", "delete_tag",
	"add_user", "delete_user", "edit_user",
}

func TestServeToolsUseCase_Execute(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		opts      usecase.CatalogOptions
		wantNames []string
	}{
		{
			name:      "Full catalog - reads first, then writes",
			opts:      usecase.CatalogOptions{},
			wantNames: append(append([]string{}, readToolNames...), writeToolNames...),
		},
		{
			name:      "Read-only catalog - writes removed",
			opts:      usecase.CatalogOptions{ReadOnly: true},
			wantNames: readToolNames,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := usecase.NewCatalog(tt.opts)
			require.NoError(t, err)
			uc := usecase.NewServeToolsUseCase(catalog, testLogger())

			tools := uc.Execute(ctx)

			names := make([]string, 0, len(tools))
			seen := make(map[string]bool, len(tools))
			for _, tool := range tools {
				assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
				seen[tool.Name] = true
				names = append(names, tool.Name)

				assert.NotEmpty(t, tool.Description, tool.Name)
				assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
				assert.NotNil(t, tool.InputSchema.Properties, tool.Name)
				for _, req := range tool.InputSchema.Required {
					assert.Contains(t, tool.InputSchema.Properties, req, "%s requires undeclared %s", tool.Name, req)
				}
				if tt.opts.ReadOnly {
					assert.True(t, tool.Hints.ReadOnly, tool.Name)
				}
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, len(tt.wantNames), catalog.Len())
		})
	}
}

func TestServeToolsUseCase_ListIsACopy(t *testing.T) {
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{})
	require.NoError(t, err)
	uc := usecase.NewServeToolsUseCase(catalog, testLogger())

	first := uc.Execute(context.Background())
	first[0].Name = "changed"
	second := uc.Execute(context.Background())

	assert.Equal(t, "search_from_date", second[0].Name)
}

// findTool returns the listed descriptor of the named tool.
func findTool(t *testing.T, catalog *usecase.Catalog, name string) (domain.Tool, bool) {
	t.Helper()
	for _, tool := range catalog.List() {
		if tool.Name == name {
			return tool, true
		}
	}
	return domain.Tool{}, false
}

func TestCatalog_Descriptors(t *testing.T) {
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{})
	require.NoError(t, err)

	tool, ok := findTool(t, catalog, "create_object")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"event_id", "domain", "ip"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "first_seen")
	assert.False(t, tool.Hints.ReadOnly)

	tool, ok = findTool(t, catalog, "delete_event")
	require.True(t, ok)
	assert.True(t, tool.Hints.Destructive)

	tool, ok = findTool(t, catalog, "get_event_by_uuid")
	require.True(t, ok)
	assert.Equal(t, "uuid", tool.InputSchema.Properties["uuid"].Format)

	_, ok = findTool(t, catalog, "search")
	assert.False(t, ok)
}

func TestCatalog_RequiredValuesMustBeNonEmpty(t *testing.T) {
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{})
	require.NoError(t, err)

	for _, tool := range catalog.List() {
		for _, name := range tool.InputSchema.Required {
			prop := tool.InputSchema.Properties[name]
			switch prop.Type {
			case "string":
				if prop.Format == "" {
					assert.Equal(t, 1, prop.MinLength, "%s.%s", tool.Name, name)
				}
			case "array":
				assert.Equal(t, 1, prop.MinItems, "%s.%s", tool.Name, name)
				require.NotNil(t, prop.Items, "%s.%s", tool.Name, name)
				assert.Equal(t, 1, prop.Items.MinLength, "%s.%s items", tool.Name, name)
			}
		}
	}
}
