package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type printJob struct {
	Color string `validate:"htmlcolor"`
	CMYK  string `validate:"cmyk"`
	Year  int    `validate:"year"`
	Pages string `validate:"pagerange"`
}

func TestStructValidation(t *testing.T) {
	v := Validator()

	require.NoError(t, v.Struct(printJob{Color: "#FFCC00", CMYK: "0,20,100,0", Year: 2024, Pages: "16"}))
	require.NoError(t, v.Struct(printJob{}), "empty values are allowed; required is separate")

	err := v.Struct(printJob{Color: "FFCC00", CMYK: "0,20,120,0", Year: 1899, Pages: "10"})
	require.Error(t, err)
	errs := err.(validator.ValidationErrors)
	tags := map[string]bool{}
	for _, fe := range errs {
		tags[fe.Tag()] = true
	}
	assert.Equal(t, map[string]bool{"htmlcolor": true, "cmyk": true, "year": true, "pagerange": true}, tags)
}

func TestIsYear(t *testing.T) {
	assert.True(t, IsYear("1900"))
	assert.True(t, IsYear("2099"))
	assert.False(t, IsYear("2100"))
	assert.False(t, IsYear("year"))
}

func TestIsPageRange(t *testing.T) {
	assert.True(t, IsPageRange(""))
	assert.True(t, IsPageRange("32"))
	assert.False(t, IsPageRange("30"))
	assert.False(t, IsPageRange("many"))
}

func TestVar_Messages(t *testing.T) {
	assert.Nil(t, Var("#000", "htmlcolor"))
	assert.Equal(t, []string{Messages["htmlcolor"]}, Var("red", "htmlcolor"))
	assert.Equal(t, []string{"This field is required."}, Var("", "required"))
	assert.Equal(t, []string{"Ensure this value has at most 3 characters."}, Var("abcd", "max=3"))
}

func TestRegister_OnFreshValidator(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))
	assert.NoError(t, v.Var("0,0,0,100", "cmyk"))
	assert.Error(t, v.Var("0,0,0", "cmyk"))
}
