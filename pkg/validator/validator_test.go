package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewLike struct {
	Rating int      `json:"rating" validate:"required,min=1,max=5"`
	Title  string   `json:"title" validate:"max=10"`
	Kind   string   `json:"kind" validate:"required,oneof=place destination"`
	Images []string `json:"images" validate:"max=2,dive,url"`
}

func validReviewLike() reviewLike {
	return reviewLike{Rating: 4, Title: "Nice", Kind: "place", Images: []string{"https://cdn.example.com/a.jpg"}}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validReviewLike()))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	s := validReviewLike()
	s.Rating = 9
	s.Kind = "hotel"

	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "must be at most 5", fields["rating"])
	assert.Equal(t, "must be one of: place destination", fields["kind"])
}

func TestValidate_SliceRules(t *testing.T) {
	s := validReviewLike()
	s.Images = []string{"https://a.example.com/1.jpg", "not a url"}

	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid URL", valErr.Fields()["images[1]"])

	s.Images = []string{"https://a.example.com/1.jpg", "https://a.example.com/2.jpg", "https://a.example.com/3.jpg"}
	err = Validate(s)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must contain at most 2 items", valErr.Fields()["images"])
}

func TestValidate_StringLength(t *testing.T) {
	s := validReviewLike()
	s.Title = strings.Repeat("x", 11)

	err := Validate(s)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be at most 10 characters", valErr.Fields()["title"])
	assert.Contains(t, err.Error(), "field 'title'")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("https://example.com/x.png", "url"))
	assert.Error(t, Var("nope", "url"))
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"rating":5,"title":"ok","kind":"destination","images":[]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst reviewLike
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, 5, dst.Rating)
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	body := `{"rating":5,"kind":"place","placeId":"p1"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst reviewLike
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))

	var dst reviewLike
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
