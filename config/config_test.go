package config

import (
	"testing"

	"github.com/irobf/obfuscator/criticality"
	"github.com/stretchr/testify/require"
)

func TestPreset_Minimal(t *testing.T) {
	cfg, err := Preset("minimal")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Cycles)
	require.True(t, cfg.Toggles.Enabled(TechControlFlow))
	require.True(t, cfg.Toggles.Enabled(TechStringEncryption))
	require.False(t, cfg.Toggles.Enabled(TechBogusCode))
}

func TestPreset_Aggressive(t *testing.T) {
	cfg, err := Preset("aggressive")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Cycles)
	require.Equal(t, 50, cfg.BogusPercent)
	require.Equal(t, SchemeRC4Derived, cfg.StringScheme)
	require.Equal(t, 2000, cfg.PBKDF2Iters)
	require.False(t, cfg.Toggles.Enabled(TechVirtualize))
	require.True(t, cfg.Toggles.Enabled(TechMetamorphic))
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("nonexistent")
	require.Error(t, err)
}

func TestOptions_Clamp(t *testing.T) {
	cfg := New(WithCycles(999), WithBogusPercent(-5), WithMBALevel(0))
	require.Equal(t, 10, cfg.Cycles)
	require.Equal(t, 0, cfg.BogusPercent)
	require.Equal(t, 1, cfg.MBALevel)
}

func TestResolve_CriticalEnablesAll(t *testing.T) {
	base := New(WithTechniques(TechControlFlow), WithAutoSelect(true))
	eff := Resolve(base, criticality.Record{Level: criticality.LevelCritical})
	for _, tech := range Techniques() {
		require.True(t, eff.Toggles.Enabled(tech), tech)
	}
}

func TestResolve_MinimalDropsHeavy(t *testing.T) {
	base := New(WithTechniques(TechFlatten, TechControlFlow), WithAutoSelect(true))
	eff := Resolve(base, criticality.Record{Level: criticality.LevelMinimal})
	require.False(t, eff.Toggles.Enabled(TechFlatten))
	require.True(t, eff.Toggles.Enabled(TechControlFlow))
}

func TestResolve_AutoSelectOffPassesThrough(t *testing.T) {
	base := New(WithTechniques(TechFlatten), WithAutoSelect(false))
	eff := Resolve(base, criticality.Record{Level: criticality.LevelMinimal})
	require.True(t, eff.Toggles.Enabled(TechFlatten))
}

func TestResolve_FitsGrowthCap(t *testing.T) {
	base := New(
		WithTechniques(allTechniques...),
		WithAutoSelect(true),
		WithMaxGrowthPct(50),
		WithMBALevel(5),
		WithVMLevel(3),
	)
	eff := Resolve(base, criticality.Record{Level: criticality.LevelImportant})
	require.LessOrEqual(t, EstimateGrowthPercent(eff.Toggles, eff), 50)
}

func TestEstimateGrowthPercent_PolymorphicContributesNothing(t *testing.T) {
	toggles := Toggles{TechPolymorphic: true}
	require.Equal(t, 0, EstimateGrowthPercent(toggles, Default()))
}
