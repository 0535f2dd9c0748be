package payment

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQRCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank", "   ", ""},
		{"data uri", "data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
		{"png link", "https://cdn.example.com/qr.png", "https://cdn.example.com/qr.png"},
		{"jpeg link upper", "https://cdn.example.com/QR.JPEG", "https://cdn.example.com/QR.JPEG"},
		{"checkout link", "https://pay.example.com/c/123", qrServiceURL + url.QueryEscape("https://pay.example.com/c/123")},
		{"relative path", "/media/qr/1.png", "/media/qr/1.png"},
		{"bare base64", "iVBO Rw0K\nGgo=", "data:image/png;base64,iVBORw0KGgo="},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeQRCode(tc.in))
		})
	}
}

func TestNormalizeQRCodeIsStable(t *testing.T) {
	for _, in := range []string{"abc", "https://x.example/a", "data:image/png;base64,abc", "/a.png"} {
		once := NormalizeQRCode(in)
		assert.Equal(t, once, NormalizeQRCode(in))
		assert.True(t, strings.HasPrefix(once, "data:image") || strings.HasPrefix(once, "http") || strings.HasPrefix(once, "/"))
	}
}

func TestExtractQRCode(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", map[string]interface{}{"qr_code": "abc"}, "abc"},
		{"nested object", map[string]interface{}{"qr_code": map[string]interface{}{"base64": "b64"}}, "b64"},
		{"nested url", map[string]interface{}{"qr_code": map[string]interface{}{"url": "https://x/y"}}, "https://x/y"},
		{"qr_code_data", map[string]interface{}{"qr_code_data": map[string]interface{}{"image": "img"}}, "img"},
		{"empty qr_code falls through", map[string]interface{}{"qr_code": "", "qr_code_url": "https://q"}, "https://q"},
		{"link fallback", map[string]interface{}{"qr_code_link": "https://l"}, "https://l"},
		{"checkout url fallback", map[string]interface{}{"url": "https://c"}, "https://c"},
		{"qr_code wins over url", map[string]interface{}{"qr_code": "abc", "url": "https://c"}, "abc"},
		{"nothing", map[string]interface{}{"id": "1"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractQRCode(tc.in))
		})
	}
}
