package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyBodySignature checks a hex HMAC-SHA256 of the raw request body.
func VerifyBodySignature(salt string, body []byte, signature string) bool {
	if salt == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// VerifyFormSignature checks HitPay's form webhook "hmac" field: keys other
// than hmac are sorted and concatenated as key+value, then signed with the salt.
func VerifyFormSignature(salt string, form url.Values) bool {
	signature := form.Get("hmac")
	if salt == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(FormSignature(salt, form)))
}

// FormSignature computes the signature VerifyFormSignature expects.
func FormSignature(salt string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
