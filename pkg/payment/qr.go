package payment

import (
	"net/url"
	"strings"
	"unicode"
)

const qrServiceURL = "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data="

// ExtractQRCode finds the QR payload in a provider response. The provider
// returns it as a string, a nested object, under qr_code_data, or as a link.
func ExtractQRCode(data map[string]interface{}) string {
	if data == nil {
		return ""
	}
	switch v := data["qr_code"].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case map[string]interface{}:
		if s := firstString(v, "qr_code", "base64", "image", "url"); s != "" {
			return s
		}
	}
	if nested, ok := data["qr_code_data"].(map[string]interface{}); ok {
		if s := firstString(nested, "qr_code", "base64", "image"); s != "" {
			return s
		}
	}
	return firstString(data, "qr_code_url", "qr_code_link", "url")
}

// NormalizeQRCode turns a raw QR payload into something an <img> can show:
// a data URI, an image URL, or a QR-service URL wrapping a plain link.
func NormalizeQRCode(raw string) string {
	qr := strings.TrimSpace(raw)
	if qr == "" {
		return ""
	}
	lowered := strings.ToLower(qr)
	if strings.HasPrefix(lowered, "data:image") {
		return qr
	}
	if strings.HasPrefix(qr, "http://") || strings.HasPrefix(qr, "https://") {
		for _, ext := range []string{".png", ".jpg", ".jpeg"} {
			if strings.HasSuffix(lowered, ext) {
				return qr
			}
		}
		return qrServiceURL + url.QueryEscape(qr)
	}
	if strings.HasPrefix(qr, "/") {
		return qr
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, qr)
	return "data:image/png;base64," + compact
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
