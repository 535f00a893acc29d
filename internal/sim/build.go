package sim

import (
	"github.com/google/uuid"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/registry"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

const defaultPolicy = "idle"

// BuildWorld собирает мир: раскладка из таблицы, затем пациенты, препятствия
// и агенты из конфигурации. Политики возвращаются в порядке агентов мира.
func BuildWorld(cfg *config.Config, reg *registry.Registry) (*world.World, []policy.Policy, error) {
	env := cfg.Environment
	w, err := world.New(env.Width, env.Height,
		world.WithGridSize(env.GridSize),
		world.WithObstacleSize(env.ObstacleSize),
	)
	if err != nil {
		return nil, nil, err
	}

	layoutName := cfg.Layout.Name
	if layoutName == "" {
		layoutName = "default"
	}
	layoutFactory, err := reg.Layout(layoutName)
	if err != nil {
		return nil, nil, err
	}
	if err := layoutFactory(cfg.Layout.Seed)(w); err != nil {
		return nil, nil, err
	}

	for _, p := range cfg.Patients {
		if err := w.AddPatient(p.Vec2()); err != nil {
			return nil, nil, err
		}
	}
	for _, o := range cfg.Obstacles {
		kind, err := world.ParseObstacleKind(o.Kind)
		if err != nil {
			return nil, nil, err
		}
		if err := w.AddObstacle(o.Position.Vec2(), kind); err != nil {
			return nil, nil, err
		}
	}

	policies := make([]policy.Policy, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		kind, err := reg.Kind(ac.Kind)
		if err != nil {
			return nil, nil, err
		}

		var a *agent.Agent
		if ac.ID != nil {
			a = agent.New(*ac.ID, kind, ac.Position.Vec2())
			err = w.AddAgent(a)
		} else {
			a, err = w.SpawnAgent(kind, ac.Position.Vec2())
		}
		if err != nil {
			return nil, nil, err
		}

		name := ac.Policy
		if name == "" {
			name = defaultPolicy
		}
		factory, err := reg.Policy(name)
		if err != nil {
			return nil, nil, err
		}
		script := make([]vec.Vec2, len(ac.Script))
		for i, step := range ac.Script {
			script[i] = step.Vec2()
		}
		p, err := factory(policy.Params{
			AgentID: a.ID,
			Kind:    kind,
			Seed:    cfg.Run.Seed,
			Script:  script,
			Loop:    ac.Loop,
		})
		if err != nil {
			return nil, nil, err
		}
		policies = append(policies, p)
	}
	return w, policies, nil
}

// NewObserverFromConfig создаёт вращающийся наблюдатель. Углы в конфигурации заданы в градусах.
func NewObserverFromConfig(cfg config.ObserverConfig) *sensor.Observer {
	opts := []sensor.Option{
		sensor.WithRotationSpeed(cfg.RotationSpeed),
		sensor.WithHeading(physics.Radians(cfg.Heading)),
	}
	if len(cfg.Position) == 2 {
		opts = append(opts, sensor.WithPosition(cfg.Position.Vec2()))
	}
	if cfg.ViewRange > 0 {
		opts = append(opts, sensor.WithViewRange(cfg.ViewRange))
	}
	if cfg.FOVDegrees > 0 {
		opts = append(opts, sensor.WithFOV(physics.Radians(cfg.FOVDegrees)))
	}
	return sensor.NewObserver(opts...)
}

// EngineOptions переводит настройки окружения в опции движка
func EngineOptions(cfg *config.Config) []engine.Option {
	var opts []engine.Option
	if cfg.Environment.SpeedLimit {
		opts = append(opts, engine.WithSpeedLimit())
	}
	if cfg.Environment.PersistentMessages {
		opts = append(opts, engine.WithPersistentMessages())
	}
	if cfg.Environment.HistoryLimit > 0 {
		opts = append(opts, engine.WithHistoryLimit(cfg.Environment.HistoryLimit))
	}
	if cfg.Run.ReachRadius > 0 {
		opts = append(opts, engine.WithTermination(engine.PatientsReached(cfg.Run.ReachRadius)))
	}
	return opts
}

// Build собирает готовый к запуску Runner из конфигурации. Хранилище, шину
// и метрики вызывающий код передаёт через opts.
func Build(cfg *config.Config, reg *registry.Registry, opts ...Option) (*Runner, error) {
	w, policies, err := BuildWorld(cfg, reg)
	if err != nil {
		return nil, err
	}
	eng := engine.New(w, NewObserverFromConfig(cfg.Observer), EngineOptions(cfg)...)

	episodeID := cfg.Run.EpisodeID
	if episodeID == "" {
		episodeID = uuid.NewString()
	}
	base := []Option{
		WithEpisodeID(episodeID),
		WithMaxTicks(cfg.Run.MaxTicks),
		WithInterval(cfg.Run.TickInterval),
	}
	return NewRunner(eng, policies, append(base, opts...)...)
}
