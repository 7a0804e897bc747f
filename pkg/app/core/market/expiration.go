package market

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ExpirationKind tags the Expiration union
type ExpirationKind uint8

const (
	ExpiresNever    ExpirationKind = iota // Zero value: never expires
	ExpiresAtHeight                       // Block height bound
	ExpiresAtTime                         // Unix seconds bound
)

// Expiration bounds the life of an Order or Bid.
// JSON: {"at_height":123} | {"at_time":1700000000} | {"never":{}}
type Expiration struct {
	Kind  ExpirationKind
	Value uint64
}

// AtHeight expires once the chain passes height h
func AtHeight(h uint64) Expiration { return Expiration{Kind: ExpiresAtHeight, Value: h} }

// AtTime expires once block time passes t (unix seconds)
func AtTime(t uint64) Expiration { return Expiration{Kind: ExpiresAtTime, Value: t} }

// Never does not expire
func Never() Expiration { return Expiration{Kind: ExpiresNever} }

// TimeExpired reports whether a time-bound expiration is before now.
// Height-bound and never-expiring values are not time-expired.
func (e Expiration) TimeExpired(now uint64) bool {
	return e.Kind == ExpiresAtTime && e.Value < now
}

// IsTime reports whether the expiration is time-bound
func (e Expiration) IsTime() bool { return e.Kind == ExpiresAtTime }

func (e Expiration) String() string {
	switch e.Kind {
	case ExpiresAtHeight:
		return fmt.Sprintf("expiration height: %d", e.Value)
	case ExpiresAtTime:
		return fmt.Sprintf("expiration time: %d", e.Value)
	default:
		return "expiration: never"
	}
}

type expirationJSON struct {
	AtHeight *uint64   `json:"at_height,omitempty"`
	AtTime   *uint64   `json:"at_time,omitempty"`
	Never    *struct{} `json:"never,omitempty"`
}

func (e Expiration) MarshalJSON() ([]byte, error) {
	var raw expirationJSON
	switch e.Kind {
	case ExpiresAtHeight:
		v := e.Value
		raw.AtHeight = &v
	case ExpiresAtTime:
		v := e.Value
		raw.AtTime = &v
	case ExpiresNever:
		raw.Never = &struct{}{}
	default:
		return nil, fmt.Errorf("market: unknown expiration kind %d", e.Kind)
	}
	return json.Marshal(raw)
}

func (e *Expiration) UnmarshalJSON(data []byte) error {
	var raw expirationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := 0
	if raw.AtHeight != nil {
		set++
		*e = AtHeight(*raw.AtHeight)
	}
	if raw.AtTime != nil {
		set++
		*e = AtTime(*raw.AtTime)
	}
	if raw.Never != nil {
		set++
		*e = Never()
	}
	if set != 1 {
		return errors.New("market: expiration must set exactly one of at_height, at_time, never")
	}
	return nil
}
