package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAccumulate(t *testing.T) {
	errs := Errors{}
	assert.False(t, errs.Any())

	errs.Add("email", "The email field is required.")
	errs.Add("email", "The email must be a valid email address.")
	errs.Add("name", "The name field is required.")

	assert.True(t, errs.Any())
	assert.Len(t, errs["email"], 2)
	assert.Len(t, errs["name"], 1)
}

func TestRequire(t *testing.T) {
	errs := Errors{}
	assert.False(t, errs.Require("name", "   ", "The name field is required."))
	assert.True(t, errs.Require("email", "a@b.com", "The email field is required."))
	assert.Equal(t, []string{"The name field is required."}, errs["name"])
	assert.Empty(t, errs["email"])
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("alice@example.com"))
	assert.True(t, ValidEmail("a.b+c@sub.example.org"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("Alice <alice@example.com>"))
	assert.False(t, ValidEmail("alice@"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "groceries", SanitizeText("  groceries  "))
	assert.Equal(t, "hello", SanitizeText("<script>alert(1)</script>hello"))
	assert.Equal(t, "bold", SanitizeText("<b>bold</b>"))
	assert.Equal(t, "ab", SanitizeText("a\x00b"))
	assert.Equal(t, "", SanitizeText("   "))
}
