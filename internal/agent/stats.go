package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// BotStats is the per-account summary assembled from the RuneLite plugin
// drops (bank-wealth and membership-days JSON files written by the client).
type BotStats struct {
	Username       string `json:"username"`
	RSN            string `json:"rsn,omitempty"`
	BankValue      *int64 `json:"bankValue"`
	Coins          *int64 `json:"coins"`
	MembershipDays *int   `json:"membershipDays"`
}

type bankWealthFile struct {
	RSN     string `json:"rsn"`
	Entries []struct {
		BankCoins      int64 `json:"bank_coins"`
		InventoryCoins int64 `json:"inventory_coins"`
		BankGEValue    int64 `json:"bank_ge_value"`
		Timestamp      int64 `json:"timestamp"`
	} `json:"entries"`
}

type membershipFile struct {
	Days int `json:"days"`
}

// Stats reads the latest plugin drop for the account's RSN. Missing files or
// an unset RSN simply leave the fields null.
func (s *Supervisor) Stats(ctx context.Context, username string) (*BotStats, error) {
	acct, err := s.accounts.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	stats := &BotStats{Username: username, RSN: acct.RSN}
	if acct.RSN == "" {
		return stats, nil
	}

	wealthPath := filepath.Join(s.cfg.RuneLiteHome, "bank-wealth", acct.RSN+".json")
	if b, err := os.ReadFile(wealthPath); err == nil {
		var w bankWealthFile
		if err := json.Unmarshal(b, &w); err == nil && len(w.Entries) > 0 {
			latest := w.Entries[len(w.Entries)-1]
			// bank value = GE value + carried coins; coins = all coins
			bankValue := latest.BankGEValue + latest.InventoryCoins
			coins := latest.BankCoins + latest.InventoryCoins
			stats.BankValue = &bankValue
			stats.Coins = &coins
		}
	}

	memPath := filepath.Join(s.cfg.RuneLiteHome, "membership-days", acct.RSN+".json")
	if b, err := os.ReadFile(memPath); err == nil {
		var m membershipFile
		if err := json.Unmarshal(b, &m); err == nil {
			days := m.Days
			stats.MembershipDays = &days
		}
	}
	return stats, nil
}
