package market

import (
	"fmt"
	"strconv"
)

// Instantiate writes the Config singleton with the caller as owner and
// clears the pause flag
func Instantiate(store Store, info Info, msg InstantiateMsg) (*Response, error) {
	cfg, err := NewConfig(info.Sender, msg.AcceptedToken, msg.OwnerCutRate)
	if err != nil {
		return nil, err
	}
	if err := store.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	if err := store.SetPaused(false); err != nil {
		return nil, fmt.Errorf("save paused: %w", err)
	}
	return NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("owner", cfg.Owner.Hex()).
		AddAttribute("owner_cut_rate", cfg.OwnerCutRate.String()), nil
}

// SetPaused toggles the pause gate. Only the Config owner may call it.
func SetPaused(deps Deps, env Env, info Info, msg SetPausedMsg) (*Response, error) {
	cfg, err := deps.Store.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Owner != info.Sender {
		return nil, ErrUnauthorized
	}
	if err := deps.Store.SetPaused(msg.Paused); err != nil {
		return nil, fmt.Errorf("save paused: %w", err)
	}
	return NewResponse().
		AddAttribute("action", ActionSetPaused).
		AddAttribute("paused", strconv.FormatBool(msg.Paused)), nil
}

// QueryOrder returns the Order on key, or ErrNoOrder
func QueryOrder(store Store, key Key) (*Order, error) {
	return loadOrder(store, key)
}

// QueryBid returns the Bid on key, or ErrNoBid
func QueryBid(store Store, key Key) (*Bid, error) {
	bid, found, err := store.GetBid(key)
	if err != nil {
		return nil, fmt.Errorf("load bid %s: %w", key, err)
	}
	if !found {
		return nil, ErrNoBid
	}
	return bid, nil
}
