package source_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ioc/definition"
	"github.com/gocrud/ioc/registry"
	"github.com/gocrud/ioc/source"
)

type Endpoint struct {
	Host    string
	Port    int
	Backend *Endpoint
}

const templates = `
components:
  - name: base-endpoint
    type: Endpoint
    abstract: true
    properties:
      - name: Host
        value: localhost
      - name: Port
        value: 80
  - name: api
    parent: base-endpoint
    scope: singleton
    lazyInit: true
    properties:
      - name: Port
        value: 8080
      - name: Backend
        ref: upstream
  - name: upstream
    type: Endpoint
    scope: prototype
    properties:
      - name: Host
        value: upstream.internal
aliases:
  gateway: api
`

func newLoader(t *testing.T) *source.Loader {
	types := source.NewTypeTable()
	require.NoError(t, source.RegisterType[Endpoint](types, "Endpoint"))
	return source.NewLoader(types)
}

func TestLoadTemplates(t *testing.T) {
	loader := newLoader(t)

	doc, err := loader.Load(strings.NewReader(templates))
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 3)

	base := doc.Definitions[0]
	assert.Equal(t, "base-endpoint", base.Name)
	assert.True(t, base.Abstract)
	assert.Equal(t, reflect.TypeOf(Endpoint{}), base.Type)
	require.Len(t, base.Properties, 2)
	assert.Equal(t, "localhost", base.Properties[0].Value)

	api := doc.Definitions[1]
	assert.Equal(t, "base-endpoint", api.Parent)
	assert.Equal(t, definition.ScopeSingleton, api.Scope)
	require.NotNil(t, api.LazyInit)
	assert.True(t, *api.LazyInit)
	assert.Equal(t, "upstream", api.Properties[1].Ref)

	upstream := doc.Definitions[2]
	assert.Equal(t, definition.ScopePrototype, upstream.Scope)

	assert.Equal(t, map[string]string{"gateway": "api"}, doc.Aliases)
}

func TestApplyToRegistry(t *testing.T) {
	loader := newLoader(t)

	doc, err := loader.Load(strings.NewReader(templates))
	require.NoError(t, err)

	r := registry.New()
	require.NoError(t, doc.Apply(r))

	inst, err := r.Get("gateway")
	require.NoError(t, err)
	ep := inst.(*Endpoint)

	assert.Equal(t, "localhost", ep.Host, "inherited from abstract parent")
	assert.Equal(t, 8080, ep.Port, "overridden by child")
	require.NotNil(t, ep.Backend)
	assert.Equal(t, "upstream.internal", ep.Backend.Host)

	// 抽象模板本身不可实例化
	_, err = r.Get("base-endpoint")
	var ade *definition.AbstractDefinitionError
	require.ErrorAs(t, err, &ade)
}

func TestLoadUnknownType(t *testing.T) {
	loader := source.NewLoader(source.NewTypeTable())

	_, err := loader.Load(strings.NewReader(`
components:
  - name: x
    type: Mystery
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mystery")
}

func TestLoadValidation(t *testing.T) {
	loader := newLoader(t)

	_, err := loader.Load(strings.NewReader(`
components:
  - type: Endpoint
`))
	require.Error(t, err, "component without a name must be rejected")

	_, err = loader.Load(strings.NewReader(`
components:
  - name: x
    type: Endpoint
    properties:
      - name: Host
        value: a
        ref: other
`))
	require.Error(t, err, "value and ref are mutually exclusive")

	_, err = loader.Load(strings.NewReader(`
components:
  - name: x
    type: Endpoint
    properties:
      - name: Host
        deferred: true
`))
	require.Error(t, err, "deferred without ref must be rejected")
}

func TestTypeTableConflicts(t *testing.T) {
	types := source.NewTypeTable()
	require.NoError(t, source.RegisterType[Endpoint](types, "Endpoint"))
	// 幂等
	require.NoError(t, source.RegisterType[Endpoint](types, "Endpoint"))
	// 同名不同类型
	err := source.RegisterType[string](types, "Endpoint")
	require.ErrorIs(t, err, source.ErrConflictingType)
}
