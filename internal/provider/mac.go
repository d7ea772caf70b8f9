// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"crypto/sha256"
	"fmt"
)

// DeriveMAC produces a stable pseudo hardware address from a player name.
// The 0x02 first octet marks it locally administered and unicast, so it can
// never collide with a real vendor-assigned address. Deterministic: the same
// name always yields the same MAC, which keeps server-side player identity
// stable across restarts and container rebuilds.
func DeriveMAC(name string) string {
	sum := sha256.Sum256([]byte(name))
	return fmt.Sprintf("02:%02x:%02x:%02x:%02x:%02x", sum[0], sum[1], sum[2], sum[3], sum[4])
}
