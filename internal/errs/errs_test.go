package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Run("ConfigurationError", func(t *testing.T) {
		err := fmt.Errorf("загрузка: %w", Configuration("obstacles[0].kind", "неизвестный тип %q", "LAVA"))

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "ошибка должна распознаваться через errors.As")
		assert.Equal(t, "obstacles[0].kind", cfgErr.Field)
		assert.True(t, errors.Is(err, ErrConfiguration))
		assert.False(t, errors.Is(err, ErrArgument))
	})

	t.Run("ArgumentError", func(t *testing.T) {
		err := Argument("ожидалось %d действий, получено %d", 3, 2)
		assert.True(t, errors.Is(err, ErrArgument))
		assert.Contains(t, err.Error(), "ожидалось 3")
	})

	t.Run("LookupError", func(t *testing.T) {
		err := Lookup("policy", "ppo")
		var lookupErr *LookupError
		assert.True(t, errors.As(err, &lookupErr))
		assert.Equal(t, "ppo", lookupErr.Name)
		assert.True(t, errors.Is(err, ErrLookup))
	})
}
