package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "all classes present", password: "Abcdef1!", want: true},
		{name: "all character classes", password: "Str0ng!pw", want: true},
		{name: "too short", password: "Ab1!xyz", want: false},
		{name: "missing uppercase", password: "abcdef1!", want: false},
		{name: "missing lowercase", password: "ABCDEF1!", want: false},
		{name: "missing digit", password: "Abcdefg!", want: false},
		{name: "missing symbol", password: "Abcdefg1", want: false},
		{name: "symbol outside the fixed set", password: "Abcdef1~", want: false},
		{name: "underscore is not a symbol", password: "Abcdef1_", want: false},
		{name: "non-ascii letters do not count", password: "Ébcdef1!", want: false},
		{name: "empty", password: "", want: false},
		{name: "every symbol of the set accepted", password: "Abcdef1" + `"`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePasswordStrength(tt.password))
		})
	}
}

func TestValidatePasswordStrength_EachSymbol(t *testing.T) {
	for _, c := range passwordSymbols {
		pw := "Abcdef1" + string(c)
		assert.True(t, ValidatePasswordStrength(pw), "symbol %q should satisfy the rule", c)
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{name: "letters digits underscore", username: "user_123", want: true},
		{name: "single letter", username: "a", want: true},
		{name: "only underscores", username: "___", want: true},
		{name: "empty", username: "", want: false},
		{name: "space", username: "user 123", want: false},
		{name: "angle bracket", username: "<script>", want: false},
		{name: "dollar", username: "us$er", want: false},
		{name: "hyphen", username: "user-name", want: false},
		{name: "dot", username: "user.name", want: false},
		{name: "non-ascii letter", username: "usér", want: false},
		{name: "longer than column is still well-formed", username: strings.Repeat("a", MaxFieldLength+1), want: true},
		{name: "max length", username: strings.Repeat("a", MaxFieldLength), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateUsername(tt.username))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("alice@x.com"))
	assert.True(t, ValidateEmail("a@b.com"))
	assert.False(t, ValidateEmail(""))
	assert.False(t, ValidateEmail("not-an-email"))
	assert.False(t, ValidateEmail("alice@"))
	assert.False(t, ValidateEmail(strings.Repeat("a", 250)+"@x.com"))
}
