// Package recordstore talks to the append-only tabular store holding employee
// and ticket rows.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

var (
	// ErrStoreUnavailable covers network errors, timeouts and non-success statuses.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrStoreFormat means the store answered with something other than a list
	// of flat key-value records.
	ErrStoreFormat = errors.New("record store returned unexpected format")
)

// DefaultTimeout bounds every store call.
const DefaultTimeout = 8 * time.Second

// Client is the narrow contract the conversation needs. There is no update or
// delete: an update is a newer appended row.
type Client interface {
	FetchAll(ctx context.Context) ([]helpdesk.Record, error)
	Append(ctx context.Context, record helpdesk.Record) error
}

// decodeRecords parses a JSON array of flat objects. Scalars are stringified;
// nested objects or arrays make the payload a format error.
func decodeRecords(body []byte) ([]helpdesk.Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: body is not a JSON array: %v", ErrStoreFormat, err)
	}

	records := make([]helpdesk.Record, 0, len(raw))
	for i, item := range raw {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrStoreFormat, i)
		}
		rec := make(helpdesk.Record, len(obj))
		for k, v := range obj {
			s, ok := scalarString(v)
			if !ok {
				return nil, fmt.Errorf("%w: element %d field %q is not a scalar", ErrStoreFormat, i, k)
			}
			rec[k] = s
		}
		records = append(records, rec)
	}
	return records, nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrStoreFormat):
		return "format"
	default:
		return "unavailable"
	}
}

func observe(backend, op string, started time.Time, err error) {
	metrics.ObserveStoreRequest(backend, op, outcomeOf(err), time.Since(started))
}
