package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeysIsDeterministic(t *testing.T) {
	criteria := map[string]CriterionScore{
		"точность":  {Score: 5},
		"беглость":  {Score: 6},
		"диапазон":  {Score: 4},
		"связность": {Score: 7},
	}

	want := []string{"беглость", "диапазон", "связность", "точность"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, sortedKeys(criteria))
	}

	resources := map[string][]string{
		"series": {"s"},
		"books":  {"b"},
		"apps":   {"a"},
	}
	assert.Equal(t, []string{"apps", "books", "series"}, sortedKeys(resources))
}
