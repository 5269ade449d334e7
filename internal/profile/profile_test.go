// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionNameConvention(t *testing.T) {
	require.Equal(t, "pop0_step", RegionName("pop0", "step"))
	require.Equal(t, "proj1_psp", RegionName("proj1", "psp"))
}

func TestMixinDisabledIsPassthrough(t *testing.T) {
	m := NewMixin(false)
	body := "v += dt * (a - v);"
	require.Equal(t, body, m.Wrap("pop0_step", body))
	require.Empty(t, m.Regions())
}

func TestMixinWrapsWithoutReordering(t *testing.T) {
	m := NewMixin(true)
	body := "line1;\nline2;"
	wrapped := m.Wrap("pop0_step", body)
	require.Contains(t, wrapped, "line1;\nline2;")
	require.Contains(t, wrapped, `__profile_regions__["pop0_step"].Start()`)
	require.Contains(t, wrapped, `__profile_regions__["pop0_step"].Stop()`)
	require.True(t, indexOf(wrapped, "Start()") < indexOf(wrapped, "line1"))
	require.True(t, indexOf(wrapped, "line2") < indexOf(wrapped, "Stop()"))
}

func TestMixinRegionsDeduplicateAndPreserveFirstUseOrder(t *testing.T) {
	m := NewMixin(true)
	m.Wrap("proj1_psp", "a();")
	m.Wrap("pop0_step", "b();")
	m.Wrap("proj1_psp", "c();")
	require.Equal(t, []string{"proj1_psp", "pop0_step"}, m.Regions())
	require.Equal(t, []string{"pop0_step", "proj1_psp"}, m.SortedRegions())
}

func TestRegionAccumulatesAverage(t *testing.T) {
	r := &Region{Name: "pop0_step"}
	require.Equal(t, int64(0), r.Avg().Nanoseconds())
	r.Start()
	r.Stop()
	r.Start()
	r.Stop()
	require.GreaterOrEqual(t, r.Avg().Nanoseconds(), int64(0))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
