package ioc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ioc"
	"github.com/gocrud/ioc/definition"
	"github.com/gocrud/ioc/event"
	"github.com/gocrud/ioc/registry"
	"github.com/gocrud/ioc/source"
)

type Store struct {
	DSN string
}

type Service struct {
	Store *Store
	Label string
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

const appTemplates = `
components:
  - name: store
    type: Store
    properties:
      - name: DSN
        value: memory://local
  - name: service
    type: Service
    properties:
      - name: Store
        ref: store
      - name: Label
        value: primary
aliases:
  svc: service
`

func TestEndToEnd(t *testing.T) {
	bus := event.NewBus()
	var created []string
	event.On[registry.ComponentCreated](bus, func(ev registry.ComponentCreated) error {
		created = append(created, ev.Name)
		return nil
	})

	r := ioc.New(registry.WithEventBus(bus))

	types := source.NewTypeTable()
	require.NoError(t, source.RegisterType[Store](types, "Store"))
	require.NoError(t, source.RegisterType[Service](types, "Service"))

	doc, err := source.NewLoader(types).Load(strings.NewReader(appTemplates))
	require.NoError(t, err)
	require.NoError(t, doc.Apply(r))

	svc, err := ioc.Resolve[*Service](r, "svc")
	require.NoError(t, err)
	assert.Equal(t, "primary", svc.Label)
	require.NotNil(t, svc.Store)
	assert.Equal(t, "memory://local", svc.Store.DSN)

	// 单例：别名与正名解析到同一实例
	again, err := ioc.Resolve[*Service](r, "service")
	require.NoError(t, err)
	assert.Same(t, svc, again)

	assert.Equal(t, []string{"store", "service"}, created)
}

func TestResolveTypeMismatch(t *testing.T) {
	r := ioc.New()
	require.NoError(t, r.RegisterDefinition(&definition.ComponentDefinition{
		Name:    "store",
		Value:   &Store{DSN: "x"},
		IsValue: true,
	}))

	_, err := ioc.Resolve[*Service](r, "store")
	var tme *registry.TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, "store", tme.Name)
}

func TestResolveByType(t *testing.T) {
	r := ioc.New()
	require.NoError(t, r.RegisterDefinition(&definition.ComponentDefinition{
		Name:    "service",
		Factory: NewService,
		ConstructorArgs: []definition.ArgumentSpec{
			{Index: 0, ValueRef: definition.Val(&Store{DSN: "y"})},
		},
	}))

	svc, err := ioc.ResolveByType[*Service](r)
	require.NoError(t, err)
	assert.Equal(t, "y", svc.Store.DSN)
}

func TestProviderFor(t *testing.T) {
	r := ioc.New()

	// 注册前即可取 provider，解析被推迟到首次调用
	get := ioc.ProviderFor[*Store](r, "store")

	require.NoError(t, r.RegisterDefinition(&definition.ComponentDefinition{
		Name:    "store",
		Value:   &Store{DSN: "late"},
		IsValue: true,
	}))

	st, err := get()
	require.NoError(t, err)
	assert.Equal(t, "late", st.DSN)
}
