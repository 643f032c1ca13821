package splitwise

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidCost  = errors.New("invalid cost format")
	ErrInvalidShare = errors.New("invalid share format")
	ErrNoUsers      = errors.New("at least one user must be specified")
)

func userKey(i int, field string) string {
	return fmt.Sprintf("users__%d__%s", i, field)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		return decimal.NewFromFloat(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	}
	return decimal.Zero, fmt.Errorf("unsupported value %v", v)
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	}
	return true
}

// NormalizeShares turns a flat create_expense request (users__N__paid_share
// style keys) into the payload Splitwise expects. Cost and every share are
// rounded to cents; if the owed shares no longer add up to the cost, the last
// user with a positive owed share absorbs the difference.
//
// groupID comes from the query string; now supplies the default date.
func NormalizeShares(req map[string]any, groupID string, now time.Time) (map[string]any, error) {
	for _, f := range []string{"cost", "description"} {
		if !present(req[f]) {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	cost, err := toDecimal(req["cost"])
	if err != nil {
		return nil, ErrInvalidCost
	}
	cost = cost.Round(2)

	type shares struct {
		owed    decimal.Decimal
		hasOwed bool
	}
	var users []shares
	out := map[string]any{}
	for i := 0; ; i++ {
		id, ok := req[userKey(i, "user_id")]
		if !ok {
			break
		}
		out[userKey(i, "user_id")] = id
		var s shares
		for _, field := range []string{"paid_share", "owed_share"} {
			raw, ok := req[userKey(i, field)]
			if !ok {
				continue
			}
			d, err := toDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidShare, field)
			}
			d = d.Round(2)
			out[userKey(i, field)] = d.String()
			if field == "owed_share" {
				s.owed, s.hasOwed = d, true
			}
		}
		users = append(users, s)
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}

	total := decimal.Zero
	for _, u := range users {
		total = total.Add(u.owed)
	}
	if !total.Equal(cost) {
		for j := len(users) - 1; j >= 0; j-- {
			if users[j].hasOwed && users[j].owed.IsPositive() {
				adjusted := cost.Sub(total.Sub(users[j].owed)).Round(2)
				out[userKey(j, "owed_share")] = adjusted.String()
				break
			}
		}
	}

	date := now.UTC().Format(time.DateOnly)
	if d, ok := req["date"].(string); ok && d != "" {
		date = d
	}

	gid, _ := strconv.ParseInt(groupID, 10, 64)
	out["cost"] = cost.InexactFloat64()
	out["description"] = req["description"]
	out["date"] = date + "T00:00:00Z"
	out["repeat_interval"] = stringOr(req["repeat_interval"], "never")
	out["currency_code"] = stringOr(req["currency_code"], "USD")
	out["category_id"] = valueOr(req["category_id"], 1)
	out["group_id"] = gid
	out["split_equally"] = false
	if present(req["details"]) {
		out["details"] = req["details"]
	}
	return out, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}
