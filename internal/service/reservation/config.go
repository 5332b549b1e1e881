package reservation

import (
	"strings"
	"time"
)

const (
	// DefaultDestination номер WhatsApp ресторана для уведомлений о бронях.
	DefaultDestination = "34624432245"
	// DefaultTimezone определяет, какой день считается «сегодня».
	DefaultTimezone = "America/Lima"
)

// Config параметры мастера бронирования.
type Config struct {
	Destination string
	Location    *time.Location
}

// DefaultConfig возвращает конфигурацию по умолчанию. Если база часовых
// поясов недоступна, используется UTC.
func DefaultConfig() Config {
	loc, err := LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Destination: DefaultDestination,
		Location:    loc,
	}
}

// LoadLocation загружает часовой пояс; пустое имя означает UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
