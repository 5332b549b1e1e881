package reservation

import (
	"net/url"
	"strings"
)

// NotificationURL строит ссылку wa.me с текстом сообщения. Пробелы кодируются
// как %20: WhatsApp не декодирует «+» в пробел.
func NotificationURL(destination, text string) string {
	destination = strings.TrimPrefix(strings.TrimSpace(destination), "+")
	return "https://wa.me/" + destination + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
