package domain

import "errors"

var (
	errInvalidRuleCompany      = errors.New("commission rule requires a company")
	errInvalidRuleDenomination = errors.New("commission rule requires a positive denomination")
	errInvalidRuleAmount       = errors.New("commission amount cannot be negative")
)
