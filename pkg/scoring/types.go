// Package scoring implements the credscope credibility score engine.
// It evaluates a fixed set of independently sourced signals for a target,
// combines them through a calculation tree and explains the result.
package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignalName identifies one of the engine's signals. The set is closed.
type SignalName string

const (
	SignalAddressAge            SignalName = "address_age"
	SignalSocialAge             SignalName = "social_age"
	SignalReviewImpact          SignalName = "review_impact"
	SignalStakeImpact           SignalName = "stake_impact"
	SignalBackerImpact          SignalName = "backer_impact"
	SignalInvitationCredibility SignalName = "invitation_credibility"
)

var signalNames = []SignalName{
	SignalAddressAge,
	SignalSocialAge,
	SignalReviewImpact,
	SignalStakeImpact,
	SignalBackerImpact,
	SignalInvitationCredibility,
}

var signalLabels = map[SignalName]string{
	SignalAddressAge:            "Address age",
	SignalSocialAge:             "Social account age",
	SignalReviewImpact:          "Review impact",
	SignalStakeImpact:           "Staked amount impact",
	SignalBackerImpact:          "Backer count impact",
	SignalInvitationCredibility: "Invitation source credibility",
}

// AllSignals returns every known signal name in canonical order.
func AllSignals() []SignalName {
	out := make([]SignalName, len(signalNames))
	copy(out, signalNames)
	return out
}

// Known reports whether n is part of the signal enumeration.
func (n SignalName) Known() bool {
	_, ok := signalLabels[n]
	return ok
}

// Label returns the human-readable signal name.
func (n SignalName) Label() string {
	if l, ok := signalLabels[n]; ok {
		return l
	}
	return string(n)
}

// ParseSignalName converts a string into a known SignalName.
func ParseSignalName(s string) (SignalName, error) {
	n := SignalName(strings.TrimSpace(strings.ToLower(s)))
	if !n.Known() {
		return "", fmt.Errorf("unknown signal %q", s)
	}
	return n, nil
}

// TargetKind tags the variant held by a Target.
type TargetKind string

const (
	TargetAddress         TargetKind = "address"
	TargetProfile         TargetKind = "profileId"
	TargetServiceAccount  TargetKind = "serviceAccount"
	TargetServiceUsername TargetKind = "serviceUsername"
)

// Target is an opaque identity reference. Exactly one variant is populated,
// selected by Kind. Resolution to addresses and profiles happens outside the engine.
type Target struct {
	Kind      TargetKind `json:"kind"`
	Address   string     `json:"address,omitempty"`
	ProfileID int64      `json:"profile_id,omitempty"`
	Service   string     `json:"service,omitempty"`
	Account   string     `json:"account,omitempty"`
	Username  string     `json:"username,omitempty"`
}

// AddressTarget references a wallet address. Addresses are case-insensitive
// and kept in lower case.
func AddressTarget(address string) Target {
	return Target{Kind: TargetAddress, Address: strings.ToLower(strings.TrimSpace(address))}
}

// ProfileTarget references an internal profile.
func ProfileTarget(id int64) Target {
	return Target{Kind: TargetProfile, ProfileID: id}
}

// ServiceAccountTarget references an external account by its stable id.
func ServiceAccountTarget(service, account string) Target {
	return Target{Kind: TargetServiceAccount, Service: service, Account: account}
}

// ServiceUsernameTarget references an external account by username.
func ServiceUsernameTarget(service, username string) Target {
	return Target{Kind: TargetServiceUsername, Service: service, Username: username}
}

// Validate checks that the populated fields match Kind.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetAddress:
		if t.Address == "" {
			return fmt.Errorf("address target without address")
		}
	case TargetProfile:
		if t.ProfileID <= 0 {
			return fmt.Errorf("profile target with invalid id %d", t.ProfileID)
		}
	case TargetServiceAccount:
		if t.Service == "" || t.Account == "" {
			return fmt.Errorf("service account target requires service and account")
		}
	case TargetServiceUsername:
		if t.Service == "" || t.Username == "" {
			return fmt.Errorf("service username target requires service and username")
		}
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
	return nil
}

// String renders the target as a userkey:
//
//	address:0xabc…
//	profileId:42
//	service:x.com:123456
//	service:x.com:username:alice
func (t Target) String() string {
	switch t.Kind {
	case TargetAddress:
		return "address:" + t.Address
	case TargetProfile:
		return "profileId:" + strconv.FormatInt(t.ProfileID, 10)
	case TargetServiceAccount:
		return "service:" + t.Service + ":" + t.Account
	case TargetServiceUsername:
		return "service:" + t.Service + ":username:" + t.Username
	default:
		return "unknown:"
	}
}

// ParseTarget parses the userkey form produced by Target.String.
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var t Target
	switch {
	case len(parts) == 2 && parts[0] == "address":
		t = AddressTarget(parts[1])
	case len(parts) == 2 && parts[0] == "profileId":
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("parsing profile id %q: %w", parts[1], err)
		}
		t = ProfileTarget(id)
	case len(parts) == 3 && parts[0] == "service":
		t = ServiceAccountTarget(parts[1], parts[2])
	case len(parts) == 4 && parts[0] == "service" && parts[2] == "username":
		t = ServiceUsernameTarget(parts[1], parts[3])
	default:
		return Target{}, fmt.Errorf("unrecognized target %q", s)
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// SignalResult is the outcome of a single signal for one request.
// A failed signal carries no raw value and contributes nothing to the score.
type SignalResult struct {
	Name     SignalName    `json:"name"`
	Raw      float64       `json:"raw"`
	Weighted float64       `json:"weighted"`
	Failed   bool          `json:"failed"`
	Error    string        `json:"error,omitempty"`
	Override bool          `json:"override,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// ScoreResult is the complete output of one score calculation.
// Errors lists exactly the signals whose evaluation failed during the call.
type ScoreResult struct {
	Target    Target                      `json:"target"`
	Score     float64                     `json:"score"`
	Signals   map[SignalName]SignalResult `json:"signals"`
	Errors    []SignalName                `json:"errors"`
	Simulated bool                        `json:"simulated"`
}

// Partial reports whether some signals failed and the score is best-effort.
func (r *ScoreResult) Partial() bool {
	return len(r.Errors) > 0
}

// RawValues returns the raw values of every signal that did not fail.
func (r *ScoreResult) RawValues() map[SignalName]float64 {
	out := make(map[SignalName]float64, len(r.Signals))
	for name, s := range r.Signals {
		if s.Failed {
			continue
		}
		out[name] = s.Raw
	}
	return out
}
