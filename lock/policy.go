// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package lock

import "fmt"

// OptimisticPolicy decides whether a successful lock or unlock sets the shadow status
// right away, or whether the status is left to the next push update or fetch.
type OptimisticPolicy int

// all policies
const (
	// OptimisticWithoutPush updates only devices without a push channel
	OptimisticWithoutPush OptimisticPolicy = iota
	// OptimisticAlways updates after every successful command
	OptimisticAlways
	// OptimisticNever never updates
	OptimisticNever
)

var policyNames = map[OptimisticPolicy]string{
	OptimisticWithoutPush: "without-push",
	OptimisticAlways:      "always",
	OptimisticNever:       "never",
}

func (p OptimisticPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("OptimisticPolicy(%d)", int(p))
}

// ParseOptimisticPolicy parses a policy name as returned by String
func ParseOptimisticPolicy(name string) (OptimisticPolicy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return OptimisticWithoutPush, fmt.Errorf("unknown optimistic update policy %q", name)
}

func (p OptimisticPolicy) applies(hasPush bool) bool {
	switch p {
	case OptimisticAlways:
		return true
	case OptimisticNever:
		return false
	default:
		return !hasPush
	}
}
