package classify

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authcore/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    models.ClientType
	}{
		{
			name:    "no headers",
			headers: map[string]string{},
			want:    models.ClientWeb,
		},
		{
			name:    "desktop browser",
			headers: map[string]string{"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0 Safari/537.36"},
			want:    models.ClientWeb,
		},
		{
			name:    "okhttp",
			headers: map[string]string{"User-Agent": "okhttp/4.12.0"},
			want:    models.ClientMobile,
		},
		{
			name:    "ios native stack",
			headers: map[string]string{"User-Agent": "MyApp/1.2 CFNetwork/1490.0.4 Darwin/23.2.0"},
			want:    models.ClientMobile,
		},
		{
			name:    "android runtime",
			headers: map[string]string{"User-Agent": "Dalvik/2.1.0 (Linux; U; Android 14)"},
			want:    models.ClientMobile,
		},
		{
			name:    "flutter",
			headers: map[string]string{"User-Agent": "Dart/3.3 (dart:io)"},
			want:    models.ClientMobile,
		},
		{
			name:    "expo",
			headers: map[string]string{"User-Agent": "Expo/2.30 CFNetwork"},
			want:    models.ClientMobile,
		},
		{
			name:    "platform header",
			headers: map[string]string{"X-Platform": "Android"},
			want:    models.ClientMobile,
		},
		{
			name:    "client platform header",
			headers: map[string]string{"X-Client-Platform": "ios"},
			want:    models.ClientMobile,
		},
		{
			name:    "unknown platform",
			headers: map[string]string{"X-Platform": "windows"},
			want:    models.ClientWeb,
		},
		{
			name:    "explicit mobile",
			headers: map[string]string{"X-Client-Type": "MOBILE"},
			want:    models.ClientMobile,
		},
		{
			name:    "explicit web beats mobile user agent",
			headers: map[string]string{"X-Client-Type": "web", "User-Agent": "okhttp/4.12.0"},
			want:    models.ClientWeb,
		},
		{
			name:    "garbage client type falls through",
			headers: map[string]string{"X-Client-Type": "tv", "User-Agent": "Alamofire/5.8"},
			want:    models.ClientMobile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			got := Classify(h)

			require.Equal(t, tt.want, got)
			require.Equal(t, got, Classify(h.Clone()), "same headers must give same answer")
		})
	}
}
