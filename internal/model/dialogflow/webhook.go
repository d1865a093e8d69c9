package dialogflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Intent identifies the matched intent of a turn.
type Intent struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// QueryResult carries what the platform recognised for the turn.
type QueryResult struct {
	QueryText    string         `json:"queryText"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Intent       Intent         `json:"intent,omitempty"`
	LanguageCode string         `json:"languageCode,omitempty"`
}

// WebhookRequest is the fulfillment request body.
type WebhookRequest struct {
	ResponseID  string      `json:"responseId,omitempty"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

// EventInput triggers a follow-up intent on the platform side.
type EventInput struct {
	Name         string         `json:"name"`
	LanguageCode string         `json:"languageCode"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// Context is an output context attached to the response.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// WebhookResponse is the fulfillment response body.
type WebhookResponse struct {
	FulfillmentText    string      `json:"fulfillmentText"`
	FollowupEventInput *EventInput `json:"followupEventInput,omitempty"`
	OutputContexts     []Context   `json:"outputContexts,omitempty"`
}

// ContextName builds the fully qualified name of a context for the session.
func ContextName(session, name string) string {
	return strings.TrimRight(session, "/") + "/contexts/" + name
}

// Params is the parameter bag of a turn with string coercion helpers.
type Params map[string]any

// String returns the trimmed string form of a parameter. Numbers coming from
// @sys.number entities are rendered without a fractional part when integral;
// list values use their first element.
func (p Params) String(key string) string {
	if p == nil {
		return ""
	}
	return stringify(p[key])
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		if len(val) == 0 {
			return ""
		}
		return stringify(val[0])
	case map[string]any:
		// @sys.person and similar composite entities
		if name, ok := val["name"]; ok {
			return stringify(name)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
