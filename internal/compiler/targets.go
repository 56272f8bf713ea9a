package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Target parameter keys, after canonicalization.
const (
	keyAccount  = "Account"
	keyAccounts = "Accounts"
	keyRegion   = "Region"
	keyRegions  = "Regions"
)

// Targets is the deduplicated account and region set of one spec entry.
type Targets struct {
	Accounts []string
	Regions  []string
}

// TargetsOf reads the singular and plural account and region fields of canonical params.
// Plural values come first. Regions fall back to defaultRegion when none is given.
func TargetsOf(p map[string]any, defaultRegion string) Targets {
	t := Targets{
		Accounts: dedup(append(stringList(p[keyAccounts]), stringList(p[keyAccount])...)),
		Regions:  dedup(append(stringList(p[keyRegions]), stringList(p[keyRegion])...)),
	}
	if len(t.Regions) == 0 && defaultRegion != "" {
		t.Regions = []string{defaultRegion}
	}
	return t
}

// Names returns the compiled action names for label, accounts outer, regions inner.
func (t Targets) Names(label string) []string {
	out := make([]string, 0, len(t.Accounts)*len(t.Regions))
	for _, a := range t.Accounts {
		for _, r := range t.Regions {
			out = append(out, ActionName(label, a, r))
		}
	}
	return out
}

// ActionName is the compiled name of label bound to account and region.
func ActionName(label, account, region string) string {
	return fmt.Sprintf("%s-%s-%s", label, account, region)
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{strings.TrimSpace(t)}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, stringList(e)...)
		}
		return out
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	}
	return []string{fmt.Sprint(v)}
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
