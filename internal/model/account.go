package model

import (
	"fmt"
	"strings"
)

// AccountType is the kind of sync backend an account represents.
type AccountType string

// Account kinds.
const (
	AccountLocal      AccountType = "local"
	AccountICloud     AccountType = "icloud"
	AccountGoogleSync AccountType = "google"
	AccountLive365    AccountType = "live365"
	AccountUbuntuOne  AccountType = "ubuntuone"
)

var accountNames = map[AccountType]AccountName{
	AccountLocal:      "On Device",
	AccountICloud:     "iCloud",
	AccountGoogleSync: "Google Sync",
	AccountLive365:    "Live 365",
	AccountUbuntuOne:  "Ubuntu One",
}

// AccountTypes lists every account kind in display order.
func AccountTypes() []AccountType {
	return []AccountType{AccountLocal, AccountICloud, AccountGoogleSync, AccountLive365, AccountUbuntuOne}
}

// DisplayName returns the canonical account name for the kind.
func (t AccountType) DisplayName() AccountName {
	return accountNames[t]
}

func (t AccountType) String() string { return string(t) }

// ParseAccountType accepts either the lowercase key or the display name.
func ParseAccountType(s string) (AccountType, error) {
	for _, t := range AccountTypes() {
		if strings.EqualFold(s, string(t)) || s == string(t.DisplayName()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}
