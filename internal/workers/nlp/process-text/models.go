package processtext

import (
	"encoding/json"
	"strconv"
	"strings"

	"banking-command-workers/internal/models"
)

type Input struct {
	Text         string   `json:"text"`
	UserID       string   `json:"userId"`
	IsNewSession flexBool `json:"isNewSession"`
}

type Output struct {
	Response models.SimplifiedResponse `json:"response"`
}

// flexBool accepts true/false as JSON booleans or strings; clients send
// isNewSession as "true".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		parsed = false
	}
	*b = flexBool(parsed)
	return nil
}
