package student

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/SeerNT/UniversityAPI/internal/store"
)

var (
	stringFilters = []string{"first_name", "last_name", "email", "phone_number"}
	intFilters    = []string{"id", "course", "enrollment_year", "major_id"}
)

// ParseFilter builds an exact-match filter from query parameters. Parameters
// other than the student columns are ignored.
func ParseFilter(values url.Values) (store.Filter, error) {
	var f store.Filter

	for _, name := range intFilters {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidInput, name)
		}
		f = f.And(name, n)
	}

	for _, name := range stringFilters {
		if raw := values.Get(name); raw != "" {
			f = f.And(name, raw)
		}
	}

	return f, nil
}
