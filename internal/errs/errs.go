// Package errs содержит таксономию ошибок симуляции.
//
// ConfigurationError возникает на этапе настройки мира и никогда во время Step,
// ArgumentError прерывает тик целиком до любых изменений состояния,
// LookupError сообщает о неизвестном имени в реестре.
package errs

import (
	"errors"
	"fmt"
)

// Сентинелы для проверки через errors.Is
var (
	ErrConfiguration = errors.New("configuration error")
	ErrArgument      = errors.New("argument error")
	ErrLookup        = errors.New("lookup error")
)

// ConfigurationError описывает некорректные или отсутствующие входные данные настройки
type ConfigurationError struct {
	Field  string // Поле конфигурации или операция настройки
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("конфигурация: %s", e.Reason)
	}
	return fmt.Sprintf("конфигурация %s: %s", e.Field, e.Reason)
}

// Unwrap позволяет errors.Is(err, ErrConfiguration)
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ArgumentError описывает некорректные аргументы шага симуляции
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("аргумент: %s", e.Reason)
}

// Unwrap позволяет errors.Is(err, ErrArgument)
func (e *ArgumentError) Unwrap() error { return ErrArgument }

// LookupError описывает обращение к незарегистрированному имени
type LookupError struct {
	Kind string // policy, layout, agent kind …
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q не найден в реестре", e.Kind, e.Name)
}

// Unwrap позволяет errors.Is(err, ErrLookup)
func (e *LookupError) Unwrap() error { return ErrLookup }

// Configuration создаёт ConfigurationError с форматированной причиной
func Configuration(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Argument создаёт ArgumentError с форматированной причиной
func Argument(format string, args ...interface{}) error {
	return &ArgumentError{Reason: fmt.Sprintf(format, args...)}
}

// Lookup создаёт LookupError
func Lookup(kind, name string) error {
	return &LookupError{Kind: kind, Name: name}
}
