// Package registry - таблица регистрации политик, типов агентов и раскладок.
// Таблицу создаёт и передаёт дальше вызывающий код, глобального экземпляра нет.
package registry

import (
	"sort"
	"sync"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/warehouse"
	"github.com/annel0/rescue-sim/internal/world"
)

// PolicyFactory создаёт политику для агента
type PolicyFactory func(p policy.Params) (policy.Policy, error)

// LayoutFactory создаёт раскладку мира по сиду
type LayoutFactory func(seed int64) world.Layout

// Environment - общее у всех сред: время и описание пространств
type Environment interface {
	Time() int
	ObservationSpace() world.ObservationSpace
	ActionSpace() world.ActionSpace
}

// EnvironmentFactory создаёт среду с раскладкой по умолчанию
type EnvironmentFactory func(seed int64) (Environment, error)

// Registry хранит фабрики по именам
type Registry struct {
	mu           sync.RWMutex
	policies     map[string]PolicyFactory
	layouts      map[string]LayoutFactory
	environments map[string]EnvironmentFactory
}

// New создаёт пустую таблицу
func New() *Registry {
	return &Registry{
		policies:     make(map[string]PolicyFactory),
		layouts:      make(map[string]LayoutFactory),
		environments: make(map[string]EnvironmentFactory),
	}
}

// Default создаёт таблицу со встроенными политиками и раскладками
func Default() *Registry {
	r := New()
	_ = r.RegisterPolicy("idle", policy.NewIdle)
	_ = r.RegisterPolicy("scripted", policy.NewScripted)
	_ = r.RegisterPolicy("random", policy.NewRandom)
	_ = r.RegisterPolicy("seek", policy.NewSeek)

	_ = r.RegisterLayout("empty", func(int64) world.Layout {
		return func(*world.World) error { return nil }
	})
	_ = r.RegisterLayout("default", func(int64) world.Layout { return world.DefaultLayout })
	_ = r.RegisterLayout("perlin", func(seed int64) world.Layout {
		return world.PerlinLayout(world.DefaultPerlinOptions(seed))
	})

	_ = r.RegisterEnvironment("rescue", newRescueEnvironment)
	_ = r.RegisterEnvironment("warehouse", newWarehouseEnvironment)
	return r
}

func newRescueEnvironment(int64) (Environment, error) {
	w := world.NewDefault()
	if err := world.DefaultLayout(w); err != nil {
		return nil, err
	}
	return engine.New(w, sensor.NewObserver()), nil
}

func newWarehouseEnvironment(int64) (Environment, error) {
	env := warehouse.NewDefault()
	if err := warehouse.DefaultLayout(env); err != nil {
		return nil, err
	}
	return env, nil
}

// RegisterEnvironment регистрирует среду. Повторное имя - ConfigurationError.
func (r *Registry) RegisterEnvironment(name string, factory EnvironmentFactory) error {
	if name == "" || factory == nil {
		return errs.Configuration("registry.environment", "пустое имя или фабрика")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.environments[name]; exists {
		return errs.Configuration("registry.environment", "среда %q уже зарегистрирована", name)
	}
	r.environments[name] = factory
	return nil
}

// Environment возвращает фабрику среды по имени
func (r *Registry) Environment(name string) (EnvironmentFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.environments[name]
	if !ok {
		return nil, errs.Lookup("environment", name)
	}
	return factory, nil
}

// EnvironmentNames возвращает отсортированные имена сред
func (r *Registry) EnvironmentNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.environments)
}

// RegisterPolicy регистрирует фабрику политики. Повторное имя - ConfigurationError.
func (r *Registry) RegisterPolicy(name string, factory PolicyFactory) error {
	if name == "" || factory == nil {
		return errs.Configuration("registry.policy", "пустое имя или фабрика")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[name]; exists {
		return errs.Configuration("registry.policy", "политика %q уже зарегистрирована", name)
	}
	r.policies[name] = factory
	return nil
}

// Policy возвращает фабрику политики по имени
func (r *Registry) Policy(name string) (PolicyFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.policies[name]
	if !ok {
		return nil, errs.Lookup("policy", name)
	}
	return factory, nil
}

// RegisterLayout регистрирует раскладку. Повторное имя - ConfigurationError.
func (r *Registry) RegisterLayout(name string, factory LayoutFactory) error {
	if name == "" || factory == nil {
		return errs.Configuration("registry.layout", "пустое имя или фабрика")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.layouts[name]; exists {
		return errs.Configuration("registry.layout", "раскладка %q уже зарегистрирована", name)
	}
	r.layouts[name] = factory
	return nil
}

// Layout возвращает фабрику раскладки по имени
func (r *Registry) Layout(name string) (LayoutFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.layouts[name]
	if !ok {
		return nil, errs.Lookup("layout", name)
	}
	return factory, nil
}

// Kind ищет тип агента по имени или псевдониму
func (r *Registry) Kind(name string) (agent.Kind, error) {
	kind, err := agent.ParseKind(name)
	if err != nil {
		return 0, errs.Lookup("kind", name)
	}
	return kind, nil
}

// PolicyNames возвращает отсортированные имена политик
func (r *Registry) PolicyNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.policies)
}

// LayoutNames возвращает отсортированные имена раскладок
func (r *Registry) LayoutNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.layouts)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
