package credentials

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		method     models.LoginMethod
		want       string
		wantErr    bool
	}{
		{"email lower cased", "  User@Example.COM ", models.LoginMethodEmail, "user@example.com", false},
		{"email without at", "user.example.com", models.LoginMethodEmail, "", true},
		{"email without domain", "user@", models.LoginMethodEmail, "", true},
		{"email with inner space", "us er@example.com", models.LoginMethodEmail, "", true},
		{"phone formatted", "+1 (555) 123-4567", models.LoginMethodPhone, "15551234567", false},
		{"phone too short", "12-34", models.LoginMethodPhone, "", true},
		{"phone with letters", "555-CALL-NOW", models.LoginMethodPhone, "", true},
		{"unknown method", "user@example.com", models.LoginMethod("sms"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.identifier, tt.method)

			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRedactIdentifier(t *testing.T) {
	require.Equal(t, "us***@example.com", RedactIdentifier("user@example.com"))
	require.Equal(t, "a***@example.com", RedactIdentifier("a@example.com"))
	require.Equal(t, "***4567", RedactIdentifier("15551234567"))
	require.Equal(t, "***", RedactIdentifier("123"))

	for _, id := range []string{"élodie@example.com", "日本語ユーザー@example.jp", "ユーザー名前です"} {
		redacted := RedactIdentifier(id)
		require.True(t, utf8.ValidString(redacted), "%q redacted to invalid utf-8 %q", id, redacted)
	}
	require.Equal(t, "él***@example.com", RedactIdentifier("élodie@example.com"))
	require.Equal(t, "***名前です", RedactIdentifier("ユーザー名前です"))
}
