package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials возвращается при неизвестном операторе или неверном пароле
var ErrBadCredentials = errors.New("неверное имя оператора или пароль")

// HashPassword returns a bcrypt hash of the password using DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Operator - учётная запись оператора из конфигурации
type Operator struct {
	Name         string
	PasswordHash string // bcrypt
	Role         string
}

// Credentials проверяет пароли операторов. Заполняется один раз при старте.
type Credentials struct {
	operators map[string]Operator
}

// NewCredentials строит таблицу операторов. Пустая роль означает RoleViewer.
func NewCredentials(operators []Operator) (*Credentials, error) {
	c := &Credentials{operators: make(map[string]Operator, len(operators))}
	for _, op := range operators {
		if op.Role == "" {
			op.Role = RoleViewer
		}
		if op.Role != RoleViewer && op.Role != RoleOperator {
			return nil, fmt.Errorf("оператор %s: неизвестная роль %q", op.Name, op.Role)
		}
		if _, err := bcrypt.Cost([]byte(op.PasswordHash)); err != nil {
			return nil, fmt.Errorf("оператор %s: некорректный bcrypt хеш: %w", op.Name, err)
		}
		if _, dup := c.operators[op.Name]; dup {
			return nil, fmt.Errorf("оператор %s объявлен дважды", op.Name)
		}
		c.operators[op.Name] = op
	}
	return c, nil
}

// Len возвращает число операторов
func (c *Credentials) Len() int {
	return len(c.operators)
}

// Authenticate проверяет пароль и возвращает роль оператора
func (c *Credentials) Authenticate(name, password string) (string, error) {
	op, ok := c.operators[name]
	if !ok || !CheckPassword(op.PasswordHash, password) {
		return "", ErrBadCredentials
	}
	return op.Role, nil
}
