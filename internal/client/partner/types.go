package partner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Number accepts both string and numeric JSON encodings; the partner API is
// inconsistent about which one it emits for scores and values.
type Number struct {
	decimal.Decimal
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		n.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid number: %s", string(b))
}

// Round lifecycle states as reported by the partner.
const (
	RoundPending     = "Pending"
	RoundCurrentOpen = "CurrentOpen"
	RoundEnded       = "Ended"
	RoundEndedLatest = "EndedLatest"
)

type Round struct {
	Number        int        `json:"number"`
	State         string     `json:"state"`
	StartsAt      *time.Time `json:"startsAt"`
	EndsAt        *time.Time `json:"endsAt"`
	TradeDeadline *time.Time `json:"tradeDeadline"`
}

// GameInfo is the meta payload of GET .../games/{gameKey}.
type GameInfo struct {
	ID         int64   `json:"id"`
	GameKey    string  `json:"gameKey"`
	Name       string  `json:"name"`
	Sport      string  `json:"sport"`
	UsersTotal int     `json:"usersTotal"`
	Rounds     []Round `json:"rounds"`
}

// Element is one catalog item of GET .../games/{gameKey}/elements.
type Element struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Team        string `json:"team"`
	Position    string `json:"position"`
	Trend       Number `json:"trend"`
	Growth      Number `json:"growth"`
	TotalGrowth Number `json:"totalGrowth"`
	Value       Number `json:"value"`
	Popularity  Number `json:"popularity"`
	Injured     bool   `json:"injured"`
	Suspended   bool   `json:"suspended"`
}

// User is one row of a users page. UserID may be empty for accounts the
// partner cannot identify; those cannot be joined to a local account.
type User struct {
	UserID         string  `json:"userId"`
	TeamName       string  `json:"teamName"`
	TotalScore     Number  `json:"totalScore"`
	RoundScore     Number  `json:"roundScore"`
	TotalRank      int     `json:"totalRank"`
	RoundRank      int     `json:"roundRank"`
	Lineup         []int64 `json:"lineup"`
	InjuredCount   int     `json:"injuredCount"`
	SuspendedCount int     `json:"suspendedCount"`
}

// UsersPage is the paginated payload of GET .../games/{gameKey}/users.
type UsersPage struct {
	Page       int    `json:"page"`
	Pages      int    `json:"pages"`
	PageSize   int    `json:"pageSize"`
	UsersTotal int    `json:"usersTotal"`
	Users      []User `json:"users"`
}
