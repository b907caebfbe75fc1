package oauth1

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unreserved", "abcXYZ019-._~", "abcXYZ019-._~"},
		{"space", "r b", "r%20b"},
		{"plus", "2+q", "2%2Bq"},
		{"equals", "=%3D", "%3D%253D"},
		{"unicode", "é", "%C3%A9"},
		{"empty", "", ""},
		{"ampersand", "a&b", "a%26b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PercentEncode(tt.input))
		})
	}
}

func TestBaseStringURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		host   string
		proto  string
		want   string
	}{
		{"default http port dropped", "http://Example.COM:80/r%20v/X?id=123", "Example.COM:80", "", "http://example.com/r%20v/X"},
		{"non default port kept", "http://example.com:8080/r", "example.com:8080", "", "http://example.com:8080/r"},
		{"forwarded https", "http://example.com:443/r", "example.com:443", "https", "https://example.com/r"},
		{"empty path", "http://example.com", "example.com", "", "http://example.com/"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptestRequest(t, "GET", tt.target, "")
			r.Host = tt.host
			if tt.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			assert.Equal(t, tt.want, baseStringURI(r))
		})
	}
}

// The request and expected base string come from RFC 5849 §3.4.1.1.
func TestBaseStringRFCExample(t *testing.T) {
	t.Parallel()

	r := httptestRequest(t, "POST",
		"http://example.com/request?b5=%3D%253D&a3=a&c%40=&a2=r%20b",
		"c2&a3=2+q")
	r.Host = "example.com"
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Authorization", `OAuth realm="Example", `+
		`oauth_consumer_key="9djdj82h48djs9d2", `+
		`oauth_token="kkk9d7dh3k39sjv7", `+
		`oauth_signature_method="HMAC-SHA1", `+
		`oauth_timestamp="137131201", `+
		`oauth_nonce="7d8f3e4a", `+
		`oauth_signature="djosJKDKJSD8743243%2Fjdk33klY%3D"`)

	set, err := Extract(r)
	require.NoError(t, err)

	const want = "POST&http%3A%2F%2Fexample.com%2Frequest&a2%3Dr%2520b%26a3%3D2%2520q" +
		"%26a3%3Da%26b5%3D%253D%25253D%26c%2540%3D%26c2%3D%26oauth_consumer_key%3D" +
		"9djdj82h48djs9d2%26oauth_nonce%3D7d8f3e4a%26oauth_signature_method%3D" +
		"HMAC-SHA1%26oauth_timestamp%3D137131201%26oauth_token%3Dkkk9d7dh3k39sjv7"
	assert.Equal(t, want, BaseString(r, set.Pairs()))
}

func TestNormalizeParameters(t *testing.T) {
	t.Parallel()

	t.Run("sorts by encoded name then value", func(t *testing.T) {
		t.Parallel()
		pairs := []Parameter{
			{Name: "b", Value: "1"},
			{Name: "a", Value: "z"},
			{Name: "a", Value: "b"},
		}
		assert.Equal(t, "a=b&a=z&b=1", normalizeParameters(pairs))
	})

	t.Run("encodes before sorting", func(t *testing.T) {
		t.Parallel()
		pairs := []Parameter{
			{Name: "a", Value: "x"},
			{Name: "a b", Value: "y"},
		}
		assert.Equal(t, "a=x&a%20b=y", normalizeParameters(pairs))
	})
}

func TestVerifySignaturePlaintext(t *testing.T) {
	t.Parallel()

	assert.NoError(t, VerifySignature(MethodPlaintext, "cs1&ts1", "", "cs1", "ts1", ""))
	assert.ErrorIs(t, VerifySignature(MethodPlaintext, "cs1&wrong", "", "cs1", "ts1", ""),
		ErrSignatureInvalid)
	assert.NoError(t, VerifySignature(MethodPlaintext, "c%20s&t%2Fs", "", "c s", "t/s", ""))
}

func TestVerifySignatureHMACSHA1(t *testing.T) {
	t.Parallel()

	base := "GET&http%3A%2F%2Fexample.com%2F&a%3Db"
	valid := hmacSHA1Sign(base, "cs1", "ts1")

	t.Run("valid signature accepted", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, VerifySignature(MethodHMACSHA1, valid, base, "cs1", "ts1", ""))
	})

	t.Run("flipping any character is rejected", func(t *testing.T) {
		t.Parallel()
		for i := 0; i < len(valid); i++ {
			flipped := []byte(valid)
			if flipped[i] == 'A' {
				flipped[i] = 'B'
			} else {
				flipped[i] = 'A'
			}
			assert.Error(t,
				VerifySignature(MethodHMACSHA1, string(flipped), base, "cs1", "ts1", ""),
				"position %d", i)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, VerifySignature(MethodHMACSHA1, valid, base, "cs1", "other", ""),
			ErrSignatureInvalid)
	})

	t.Run("non base64 rejected", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, VerifySignature(MethodHMACSHA1, "!!!", base, "cs1", "ts1", ""),
			ErrSignatureInvalid)
	})
}

func TestVerifySignatureRSASHA1(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemPub := marshalPublicKeyPEM(t, &key.PublicKey)

	base := "GET&http%3A%2F%2Fexample.com%2F&a%3Db"
	digest := sha1.Sum([]byte(base))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	presented := base64.StdEncoding.EncodeToString(sig)

	assert.NoError(t, VerifySignature(MethodRSASHA1, presented, base, "", "", pemPub))
	assert.ErrorIs(t,
		VerifySignature(MethodRSASHA1, presented, base+"x", "", "", pemPub),
		ErrSignatureInvalid)
	assert.ErrorIs(t,
		VerifySignature(MethodRSASHA1, presented, base, "", "", ""),
		ErrNoRSAPublicKey)
	assert.Error(t,
		VerifySignature(MethodRSASHA1, presented, base, "", "", "not a pem"))
}

func TestVerifySignatureUnsupportedMethod(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, VerifySignature("HMAC-SHA256", "x", "b", "cs", "ts", ""),
		ErrUnsupportedSignatureMethod)
	assert.ErrorIs(t, VerifySignature("", "x", "b", "cs", "ts", ""),
		ErrUnsupportedSignatureMethod)
}

func hmacSHA1Sign(base, consumerSecret, tokenSecret string) string {
	mac := hmac.New(sha1.New, []byte(PercentEncode(consumerSecret)+"&"+PercentEncode(tokenSecret)))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func marshalPublicKeyPEM(t *testing.T, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func httptestRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var r *http.Request
	var err error
	if body != "" {
		r, err = http.NewRequest(method, target, strings.NewReader(body))
	} else {
		r, err = http.NewRequest(method, target, nil)
	}
	require.NoError(t, err)
	return r
}
