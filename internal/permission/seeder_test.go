package permission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/model"
)

func TestGenerateRowsDeterministic(t *testing.T) {
	for _, name := range ModuleNames() {
		module, ok := LookupModule(name)
		require.True(t, ok, name)
		first := GenerateRows(module)
		second := GenerateRows(module)
		assert.Equal(t, first, second, name)
		assert.NotEmpty(t, first, name)
	}
}

func TestGeneratedRowsStayInsideModuleEntities(t *testing.T) {
	for _, name := range ModuleNames() {
		module, _ := LookupModule(name)
		owned := map[string]bool{}
		for _, e := range module.Entities {
			owned[e.Name] = true
		}
		for _, r := range GenerateRows(module) {
			entity := strings.SplitN(r.Target, ".", 2)[0]
			assert.True(t, owned[entity], "%s row targets foreign entity: %s", name, r.Target)
		}
	}
}

func TestGeneratedConditionsParse(t *testing.T) {
	for _, name := range ModuleNames() {
		module, _ := LookupModule(name)
		for _, r := range GenerateRows(module) {
			for _, cond := range r.Conditions {
				_, err := ParsePredicate(cond)
				assert.NoError(t, err, "%s: %s", r.Target, cond)
			}
		}
	}
}

func TestSeededActionsMatchDeclaredActions(t *testing.T) {
	for _, name := range ModuleNames() {
		module, _ := LookupModule(name)
		for _, e := range module.Entities {
			declared := map[string]bool{}
			for _, a := range e.Actions {
				declared[a] = true
			}
			for _, r := range GenerateRows(module) {
				if r.Kind != model.PermissionKindAction {
					continue
				}
				target := strings.TrimPrefix(r.Target, e.Name+".")
				if target == r.Target || target == "*" {
					continue
				}
				assert.True(t, declared[target],
					"%s seeds undeclared action %s", name, r.Target)
			}
		}
	}
}

func TestEntityLookups(t *testing.T) {
	assert.Equal(t, "audit", ModuleForEntity("engagement"))
	assert.Equal(t, "tpm", ModuleForEntity("tpmvisit"))
	assert.Equal(t, "field_monitoring", ModuleForEntity("monitoringactivity"))
	assert.Equal(t, "psea", ModuleForEntity("pseaassessment"))
	assert.Equal(t, "action_points", ModuleForEntity("actionpoint"))
	assert.Empty(t, ModuleForEntity("nonsuch"))

	assert.Contains(t, EntityFields("engagement"), "findings")
	assert.Contains(t, EntityActions("engagement"), "submit")
	assert.Nil(t, EntityFields("nonsuch"))
}
