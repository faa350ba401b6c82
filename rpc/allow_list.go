// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"maps"
	"slices"
)

// AllowList restricts a server to the listed methods. Empty means everything.
type AllowList map[string]struct{}

func NewAllowList(methods ...string) AllowList {
	a := make(AllowList, len(methods))
	for _, m := range methods {
		a[m] = struct{}{}
	}
	return a
}

func (a AllowList) Allowed(method string) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[method]
	return ok
}

func (a *AllowList) UnmarshalJSON(data []byte) error {
	var methods []string
	if err := jsonCodec.Unmarshal(data, &methods); err != nil {
		return err
	}
	*a = NewAllowList(methods...)
	return nil
}

// MarshalJSON encodes the list as a sorted array of method names.
func (a AllowList) MarshalJSON() ([]byte, error) {
	return jsonCodec.Marshal(slices.Sorted(maps.Keys(a)))
}
