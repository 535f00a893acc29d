package world

import (
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/rescue-sim/internal/vec"
)

// Layout заполняет мир пациентами и препятствиями
type Layout func(w *World) error

// Пороги шума для генерации препятствий. Ниже CanopyStart - свободная местность.
const (
	CanopyStart = 0.55 // Выше - кроны и провода: воздушные препятствия
	RubbleStart = 0.70 // Выше - завалы: обычные препятствия
)

// DefaultLayout воспроизводит классическую миссию: пять пациентов,
// стена в центре, два кольца воздушных препятствий и одно обычное.
func DefaultLayout(w *World) error {
	for _, p := range []vec.Vec2{{X: 200, Y: 300}, {X: 600, Y: 400}, {X: 500, Y: 150}, {X: 650, Y: 250}, {X: 350, Y: 450}} {
		if err := w.AddPatient(p); err != nil {
			return err
		}
	}

	// Центральная стена
	for y := 100; y <= 500; y += 40 {
		if err := w.AddObstacle(vec.Vec2{X: 400, Y: y}, ObstacleNormal); err != nil {
			return err
		}
	}

	rings := []struct {
		center     vec.Vec2
		kind       ObstacleKind
		openBottom bool
	}{
		{vec.Vec2{X: 500, Y: 150}, ObstacleAerial, false},
		{vec.Vec2{X: 650, Y: 250}, ObstacleAerial, false},
		{vec.Vec2{X: 350, Y: 450}, ObstacleNormal, true}, // Наземный подход снизу
	}
	for _, r := range rings {
		if err := addRing(w, r.center, 40, r.kind, r.openBottom); err != nil {
			return err
		}
	}
	return nil
}

// addRing обносит центр квадратом препятствий с шагом 40.
// При openBottom нижняя сторона не ставится.
func addRing(w *World, center vec.Vec2, radius int, kind ObstacleKind, openBottom bool) error {
	left, right := center.X-radius, center.X+radius
	top, bottom := center.Y-radius, center.Y+radius

	for x := left; x <= right; x += 40 {
		if err := w.AddObstacle(vec.Vec2{X: x, Y: top}, kind); err != nil {
			return err
		}
		if openBottom {
			continue
		}
		if err := w.AddObstacle(vec.Vec2{X: x, Y: bottom}, kind); err != nil {
			return err
		}
	}
	for y := top; y <= bottom; y += 40 {
		if err := w.AddObstacle(vec.Vec2{X: left, Y: y}, kind); err != nil {
			return err
		}
		if err := w.AddObstacle(vec.Vec2{X: right, Y: y}, kind); err != nil {
			return err
		}
	}
	return nil
}

// PerlinOptions - параметры процедурной генерации
type PerlinOptions struct {
	Seed       int64   // Сид шума и размещения пациентов
	NoiseScale float64 // Масштаб шума (сглаженность местности)
	CellSize   int     // Шаг сетки размещения препятствий
	Patients   int     // Сколько пациентов разместить
}

// DefaultPerlinOptions возвращает параметры генерации по умолчанию
func DefaultPerlinOptions(seed int64) PerlinOptions {
	return PerlinOptions{
		Seed:       seed,
		NoiseScale: 0.01,
		CellSize:   40,
		Patients:   5,
	}
}

// PerlinLayout генерирует препятствия по шуму Перлина. Для одного сида
// результат всегда одинаков.
func PerlinLayout(opts PerlinOptions) Layout {
	return func(w *World) error {
		if opts.CellSize <= 0 {
			opts.CellSize = w.gridSize
		}
		if opts.NoiseScale <= 0 {
			opts.NoiseScale = 0.01
		}

		noise := newNoiseField(opts.Seed)
		rng := rand.New(rand.NewSource(opts.Seed))

		var free []vec.Vec2
		half := opts.CellSize / 2
		for y := half; y <= w.height; y += opts.CellSize {
			for x := half; x <= w.width; x += opts.CellSize {
				pos := vec.Vec2{X: x, Y: y}
				height := noise.At(float64(x)*opts.NoiseScale, float64(y)*opts.NoiseScale)

				switch {
				case height >= RubbleStart:
					if err := w.AddObstacle(pos, ObstacleNormal); err != nil {
						return err
					}
				case height >= CanopyStart:
					if err := w.AddObstacle(pos, ObstacleAerial); err != nil {
						return err
					}
				default:
					free = append(free, pos)
				}
			}
		}

		// Пациенты - только на свободных клетках
		rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		for i := 0; i < opts.Patients && i < len(free); i++ {
			if err := w.AddPatient(free[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

// noiseField - шум Перлина, приведённый к диапазону [0, 1]
type noiseField struct {
	p *perlin.Perlin
}

func newNoiseField(seed int64) noiseField {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return noiseField{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// At возвращает значение шума в точке (от 0 до 1)
func (f noiseField) At(x, y float64) float64 {
	return (f.p.Noise2D(x, y) + 1.0) / 2.0
}
