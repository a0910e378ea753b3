package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number decodes the numeric encodings upstream APIs actually send:
// JSON numbers, quoted numbers, null, and empty strings.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var q string
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		q = strings.TrimSpace(q)
		if q == "" {
			*n = 0
			return nil
		}
		s = q
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 { return float64(n) }
func (n Number) Int() int       { return int(n) }
