// staff.go — проверка логина и пароля сотрудников (SD_STAFF_USERS, bcrypt).
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials — неверный логин или пароль.
var ErrInvalidCredentials = errors.New("usuário ou senha inválidos")

// dummyHash — хэш для сравнения при неизвестном логине.
var dummyHash = mustHash("senadocs-dummy-password")

// Staff — справочник сотрудников: логин → bcrypt-хэш.
type Staff struct {
	users map[string]string
}

// NewStaff создаёт справочник. Карта копируется.
func NewStaff(users map[string]string) *Staff {
	copied := make(map[string]string, len(users))
	for k, v := range users {
		copied[k] = v
	}
	return &Staff{users: copied}
}

// Empty сообщает, что ни один сотрудник не настроен.
func (s *Staff) Empty() bool {
	return len(s.users) == 0
}

// Authenticate проверяет пароль сотрудника.
func (s *Staff) Authenticate(username, password string) error {
	hash, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword возвращает bcrypt-хэш пароля для SD_STAFF_USERS.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("пароль не может быть пустым")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

func mustHash(password string) []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
}
