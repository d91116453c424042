package tracker

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSKUPrefix(t *testing.T) {
	cases := []struct {
		category *string
		want     string
	}{
		{nil, "GEN"},
		{strPtr(""), "GEN"},
		{strPtr("123 / 456"), "GEN"},
		{strPtr("Lumber"), "LUM"},
		{strPtr("  3/4 plywood"), "PLY"},
		{strPtr("Électrique"), "ELE"},
		{strPtr("Ok"), "OK"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, skuPrefix(c.category), "category %v", c.category)
	}
	assert.Equal(t, "LUM-0042", formatSKU("LUM", 42))
	assert.Equal(t, "GEN-12345", formatSKU("GEN", 12345))
}

func names(ps []Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestRankSimilar(t *testing.T) {
	catalog := []Product{
		{Name: "2x4 Lumber Premium"},
		{Name: "Plywood Sheet"},
		{Name: "Drywall Screws"},
		{Name: "2x4 Lumber"},
		{Name: "Wood Screws"},
	}

	t.Run("exact before substring", func(t *testing.T) {
		got := rankSimilar("2X4  lumber", catalog)
		require.GreaterOrEqual(t, len(got), 2)
		assert.Equal(t, []string{"2x4 Lumber", "2x4 Lumber Premium"}, names(got)[:2])
	})

	t.Run("typo", func(t *testing.T) {
		got := rankSimilar("plywod sheet", catalog)
		assert.Equal(t, []string{"Plywood Sheet"}, names(got))
	})

	t.Run("accents fold", func(t *testing.T) {
		got := rankSimilar("PLYWÓOD", catalog)
		assert.Equal(t, []string{"Plywood Sheet"}, names(got))
	})

	t.Run("nothing close", func(t *testing.T) {
		got := rankSimilar("concrete mixer", catalog)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("blank query", func(t *testing.T) {
		assert.Empty(t, rankSimilar("   ", catalog))
	})
}

func TestRankSimilar_CapsFuzzyMatchesOnly(t *testing.T) {
	var catalog []Product
	for c := 'a'; c <= 'l'; c++ {
		catalog = append(catalog, Product{Name: fmt.Sprintf("Hinqe %c", c)})
	}
	catalog = append(catalog, Product{Name: "Door Hinge"})

	got := rankSimilar("hinge", catalog)
	require.Len(t, got, maxSimilar)
	assert.Equal(t, "Door Hinge", got[0].Name)

	var screws []Product
	for i := range 15 {
		screws = append(screws, Product{Name: fmt.Sprintf("Screw %02d", i)})
	}
	assert.Len(t, rankSimilar("screw", screws), 15)
}

func TestEditSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, editSimilarity("", ""))
	assert.Equal(t, 1.0, editSimilarity("nail", "nail"))
	assert.InDelta(t, 0.75, editSimilarity("nail", "mail"), 1e-9)
	assert.InDelta(t, 0.0, editSimilarity("abc", "xyz"), 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.Zero(t, jaccard(nil, []string{"a"}))
	assert.InDelta(t, 1.0/3, jaccard([]string{"plywod", "sheet"}, []string{"plywood", "sheet"}), 1e-9)
	assert.Equal(t, 1.0, jaccard([]string{"a", "b", "a"}, []string{"b", "a"}))
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money  `json:"total"`
		Opt   *Money `json:"opt"`
	}{Total: NewMoney(decimal.NewFromFloat(45.5))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"45.50","opt":null}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.3, "b": "7"}`), &in))
	assert.Equal(t, "12.30", in.A.String())
	assert.Equal(t, "7.00", in.B.String())
}
