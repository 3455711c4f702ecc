// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"sort"
	"sync"
)

// subState mirrors the subscription set as last acknowledged by the gateway.
// It is bookkeeping only: the gateway owns the truth, and the mirror changes
// only after a Qot_Sub round-trip succeeds. Quota or permission rejections
// therefore never leave phantom entries here.
type subState struct {
	mu sync.Mutex
	m  map[Security]map[SubType]struct{}
}

func (s *subState) add(secs []Security, subs []SubType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[Security]map[SubType]struct{})
	}
	for _, sec := range secs {
		set := s.m[sec]
		if set == nil {
			set = make(map[SubType]struct{})
			s.m[sec] = set
		}
		for _, st := range subs {
			set[st] = struct{}{}
		}
	}
}

func (s *subState) remove(secs []Security, subs []SubType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range secs {
		set := s.m[sec]
		if set == nil {
			continue
		}
		for _, st := range subs {
			delete(set, st)
		}
		if len(set) == 0 {
			delete(s.m, sec)
		}
	}
}

// Subscription is one security's active subscription types.
type Subscription struct {
	Symbol   string   `json:"symbol"`
	SubTypes []string `json:"sub_types"`
}

// snapshot returns the mirror in a deterministic order: symbols ascending,
// type names ascending.
func (s *subState) snapshot() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Subscription, 0, len(s.m))
	for sec, set := range s.m {
		names := make([]string, 0, len(set))
		for st := range set {
			names = append(names, st.String())
		}
		sort.Strings(names)
		out = append(out, Subscription{Symbol: sec.String(), SubTypes: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Subscriptions returns what this client believes is subscribed at the
// gateway, i.e. the set last confirmed by Qot_Sub.
func (c *Client) Subscriptions() []Subscription {
	return c.subs.snapshot()
}
